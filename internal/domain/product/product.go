package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrVariantNotFound is returned when a variant does not exist or belongs
	// to a different product.
	ErrVariantNotFound = errors.New("product variant not found")
)

// Product is a catalog item. Price and Discount are owned by catalog
// management and may change at any time.
type Product struct {
	ID       int64
	Title    string
	Slug     string
	Price    decimal.Decimal
	Discount int
	Stock    int
	Image    string
}

// Variant is a purchasable option of a product. PriceOverride is stored but
// not applied by pricing.
type Variant struct {
	ID            int64
	ProductID     int64
	SKU           string
	Color         string
	Storage       string
	Stock         int
	PriceOverride decimal.NullDecimal
}

// Image is a product picture.
type Image struct {
	URL     string
	Primary bool
}

// Listing is a full catalog entry as loaded by the seeding tool. Products
// are keyed by Slug and variants by SKU.
type Listing struct {
	Title    string
	Slug     string
	Brand    string
	Price    decimal.Decimal
	Discount int
	Stock    int
	Images   []Image
	Variants []Variant
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetVariant(ctx context.Context, id int64) (*Variant, error)
}
