package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/phoneplace/internal/domain/cart"
)

var (
	// ErrOrderNotFound is returned when an order does not exist or is not
	// visible to the caller.
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checkout is attempted on a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUnauthorized is returned when the caller may not perform an operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPaymentMethodRequired is returned when no payment method label is given.
	ErrPaymentMethodRequired = errors.New("payment method is required")
	// ErrPaymentMethodTooLong is returned when the label exceeds 64 characters.
	ErrPaymentMethodTooLong = errors.New("payment method must be at most 64 characters")
)

// PriceMismatchError indicates a client supplied amount that differs from the
// server computed one.
type PriceMismatchError struct {
	Field    string
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: expected %s, got %s", e.Field, e.Expected.StringFixed(2), e.Got.StringFixed(2))
}

// CreationFailedError wraps a storage failure that aborted checkout. The cart
// is unchanged and checkout may be retried.
type CreationFailedError struct {
	Err error
}

func (e *CreationFailedError) Error() string {
	return fmt.Sprintf("order creation failed: %v", e.Err)
}

func (e *CreationFailedError) Unwrap() error {
	return e.Err
}

// Order is a placed order. Everything except Status is immutable.
type Order struct {
	ID            int64
	UserID        *int64
	Status        Status
	Total         decimal.Decimal
	DeliveryFee   decimal.Decimal
	Address       Address
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []Item
}

// Item is an order line. PriceAtPurchase is the effective unit price captured
// at checkout; Title and Slug reflect the current catalog.
type Item struct {
	ID              int64
	ProductID       int64
	VariantID       *int64
	Qty             int
	PriceAtPurchase decimal.Decimal
	Title           string
	Slug            string
}

// LineTotal returns PriceAtPurchase multiplied by Qty.
func (i Item) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// Draft is an order computed from cart lines, ready to be persisted.
type Draft struct {
	UserID        *int64
	Total         decimal.Decimal
	DeliveryFee   decimal.Decimal
	Address       Address
	PaymentMethod string
	Items         []Item
}

// BuildFunc turns the locked cart lines into a Draft. Returning an error
// aborts the checkout transaction.
type BuildFunc func(lines []cart.Line) (*Draft, error)

// Stats summarises store activity for the admin dashboard.
type Stats struct {
	Orders    int64
	Revenue   decimal.Decimal
	Customers int64
	Products  int64
}

// Repository persists orders.
type Repository interface {
	// Checkout locks the owner's cart, builds a draft from its lines, inserts
	// the order with its items and clears the cart in one transaction. It
	// returns cart.ErrCartNotFound when the owner has no cart.
	Checkout(ctx context.Context, owner cart.Owner, build BuildFunc) (*Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListRecent(ctx context.Context, limit int) ([]Order, error)
	// UpdateStatus reads the current status under lock and stores the value
	// returned by next.
	UpdateStatus(ctx context.Context, id int64, next func(current Status) (Status, error)) (*Order, error)
	Stats(ctx context.Context) (*Stats, error)
}
