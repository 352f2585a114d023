package cart

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/phoneplace/internal/domain/identity"
	"github.com/xenking/phoneplace/internal/domain/pricing"
)

var (
	// ErrCartNotFound is returned when the identity has no cart.
	ErrCartNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a cart line does not exist in the
	// caller's cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned for quantities outside 1..MaxQuantity,
	// including a merged line quantity that would exceed MaxQuantity.
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 2147483647")
)

// MaxQuantity is the largest quantity a cart line can hold (INTEGER column).
const MaxQuantity = math.MaxInt32

func validQuantity(qty int) bool {
	return qty >= 1 && qty <= MaxQuantity
}

// Owner identifies the cart of a user or of an anonymous session. Exactly one
// field is set.
type Owner struct {
	UserID    int64
	SessionID string
}

// OwnerOf maps an identity to its cart owner.
func OwnerOf(id identity.Identity) Owner {
	if id.IsAuthenticated() {
		return Owner{UserID: id.UserID}
	}
	return Owner{SessionID: id.SessionID}
}

// Cart is the container of line items owned by one identity.
type Cart struct {
	ID        int64
	Owner     Owner
	CreatedAt time.Time
}

// Line is a cart item joined with the product data needed to render and
// price it.
type Line struct {
	ItemID    int64
	ProductID int64
	VariantID *int64
	Qty       int
	Title     string
	Slug      string
	Price     decimal.Decimal
	Discount  int
	Image     string
}

// UnitPrice returns the effective unit price at read time.
func (l Line) UnitPrice() decimal.Decimal {
	return pricing.EffectivePrice(l.Price, l.Discount)
}

// PricingLines converts cart lines to pricing lines.
func PricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{Price: l.Price, Discount: l.Discount, Qty: l.Qty}
	}
	return out
}

// AddResult reports the state of the line touched by AddItem.
type AddResult struct {
	ItemID   int64
	Qty      int
	Inserted bool
}

// Repository persists carts and their lines. Implementations must make
// GetOrCreate and AddItem atomic with respect to concurrent callers.
type Repository interface {
	GetOrCreate(ctx context.Context, owner Owner) (*Cart, error)
	Find(ctx context.Context, owner Owner) (*Cart, error)
	AddItem(ctx context.Context, cartID, productID int64, variantID *int64, qty int) (AddResult, error)
	UpdateQuantity(ctx context.Context, cartID, itemID int64, qty int) error
	RemoveItem(ctx context.Context, cartID, itemID int64) error
	ListLines(ctx context.Context, cartID int64) ([]Line, error)
	Merge(ctx context.Context, from, into Owner) (int, error)
}
