package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/phoneplace/internal/domain/identity"
	"github.com/xenking/phoneplace/internal/domain/pricing"
	"github.com/xenking/phoneplace/internal/domain/product"
)

// AddItemRequest holds the input for adding a product to a cart.
type AddItemRequest struct {
	ProductID int64
	VariantID *int64
	Qty       int
}

// View is a cart rendered for display.
type View struct {
	Lines   []Line
	Summary pricing.Summary
}

// Service implements cart operations on top of a Repository.
type Service struct {
	carts       Repository
	products    product.Repository
	deliveryFee decimal.Decimal
}

// NewService creates a cart Service. deliveryFee is the flat fee shown in
// cart summaries.
func NewService(carts Repository, products product.Repository, deliveryFee decimal.Decimal) *Service {
	return &Service{
		carts:       carts,
		products:    products,
		deliveryFee: deliveryFee,
	}
}

// GetOrCreate returns the identity's cart, creating an empty one if needed.
func (s *Service) GetOrCreate(ctx context.Context, id identity.Identity) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, OwnerOf(id))
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return c, nil
}

// AddItem adds qty units of a product (and optional variant) to the cart,
// merging with an existing line for the same combination.
func (s *Service) AddItem(ctx context.Context, id identity.Identity, req AddItemRequest) (AddResult, error) {
	if !validQuantity(req.Qty) {
		return AddResult{}, ErrInvalidQuantity
	}

	if _, err := s.products.GetByID(ctx, req.ProductID); err != nil {
		return AddResult{}, fmt.Errorf("get product %d: %w", req.ProductID, err)
	}
	if req.VariantID != nil {
		v, err := s.products.GetVariant(ctx, *req.VariantID)
		if err != nil {
			return AddResult{}, fmt.Errorf("get variant %d: %w", *req.VariantID, err)
		}
		if v.ProductID != req.ProductID {
			return AddResult{}, product.ErrVariantNotFound
		}
	}

	c, err := s.GetOrCreate(ctx, id)
	if err != nil {
		return AddResult{}, err
	}

	res, err := s.carts.AddItem(ctx, c.ID, req.ProductID, req.VariantID, req.Qty)
	if err != nil {
		return AddResult{}, fmt.Errorf("add item: %w", err)
	}
	return res, nil
}

// UpdateQuantity sets the quantity of a line in the caller's cart.
func (s *Service) UpdateQuantity(ctx context.Context, id identity.Identity, itemID int64, qty int) error {
	if !validQuantity(qty) {
		return ErrInvalidQuantity
	}

	c, err := s.carts.Find(ctx, OwnerOf(id))
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return ErrItemNotFound
		}
		return fmt.Errorf("find cart: %w", err)
	}

	if err := s.carts.UpdateQuantity(ctx, c.ID, itemID, qty); err != nil {
		return fmt.Errorf("update item %d: %w", itemID, err)
	}
	return nil
}

// RemoveItem deletes a line from the caller's cart. Removing a line that does
// not exist succeeds.
func (s *Service) RemoveItem(ctx context.Context, id identity.Identity, itemID int64) error {
	c, err := s.carts.Find(ctx, OwnerOf(id))
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil
		}
		return fmt.Errorf("find cart: %w", err)
	}

	if err := s.carts.RemoveItem(ctx, c.ID, itemID); err != nil {
		return fmt.Errorf("remove item %d: %w", itemID, err)
	}
	return nil
}

// ListItems returns the cart lines of the identity. An identity without a
// cart has no lines.
func (s *Service) ListItems(ctx context.Context, id identity.Identity) ([]Line, error) {
	c, err := s.carts.Find(ctx, OwnerOf(id))
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return []Line{}, nil
		}
		return nil, fmt.Errorf("find cart: %w", err)
	}

	lines, err := s.carts.ListLines(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if lines == nil {
		lines = []Line{}
	}
	return lines, nil
}

// View returns the cart lines together with their totals.
func (s *Service) View(ctx context.Context, id identity.Identity) (*View, error) {
	lines, err := s.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &View{
		Lines:   lines,
		Summary: pricing.Summarize(PricingLines(lines), s.deliveryFee),
	}, nil
}

// MergeSessionCart moves the anonymous session cart into the user's cart,
// summing quantities of matching lines. It returns the number of lines moved.
func (s *Service) MergeSessionCart(ctx context.Context, sessionID string, userID int64) (int, error) {
	if sessionID == "" || userID <= 0 {
		return 0, nil
	}

	n, err := s.carts.Merge(ctx, Owner{SessionID: sessionID}, Owner{UserID: userID})
	if err != nil {
		return 0, fmt.Errorf("merge session cart: %w", err)
	}
	if n > 0 {
		zctx.From(ctx).Info("Merged session cart",
			zap.Int64("user_id", userID),
			zap.Int("lines", n),
		)
	}
	return n, nil
}
