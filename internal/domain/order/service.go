package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/phoneplace/internal/domain/cart"
	"github.com/xenking/phoneplace/internal/domain/identity"
	"github.com/xenking/phoneplace/internal/domain/pricing"
)

const (
	// DefaultAdminLimit is the number of orders shown on the admin dashboard.
	DefaultAdminLimit = 50
	// MaxAdminLimit caps the admin listing size.
	MaxAdminLimit = 200
)

// Config holds checkout pricing policy.
type Config struct {
	// DeliveryFee is the flat fee charged once per non-empty order.
	DeliveryFee decimal.Decimal
	// AdminLimit is the default admin listing size.
	AdminLimit int
}

// PlaceOrderRequest holds the input for checkout. Total and DeliveryFee are
// the amounts the client displayed; when set they must match the server
// computed values.
type PlaceOrderRequest struct {
	Address       Address
	PaymentMethod string
	Total         *decimal.Decimal
	DeliveryFee   *decimal.Decimal
}

// Service implements checkout, order reads and status management.
type Service struct {
	orders Repository
	cfg    Config
}

// NewService creates an order Service.
func NewService(orders Repository, cfg Config) *Service {
	if cfg.AdminLimit <= 0 {
		cfg.AdminLimit = DefaultAdminLimit
	}
	return &Service{orders: orders, cfg: cfg}
}

// PlaceOrder converts the identity's cart into an order. Prices are
// snapshotted from the catalog at this instant and the cart is cleared in the
// same transaction.
func (s *Service) PlaceOrder(ctx context.Context, id identity.Identity, req PlaceOrderRequest) (*Order, error) {
	addr := req.Address.Normalize()
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	payment := strings.TrimSpace(req.PaymentMethod)
	if payment == "" {
		return nil, ErrPaymentMethodRequired
	}
	if err := validate.Var(payment, "max=64"); err != nil {
		return nil, ErrPaymentMethodTooLong
	}

	var userID *int64
	if id.IsAuthenticated() {
		uid := id.UserID
		userID = &uid
	}

	build := func(lines []cart.Line) (*Draft, error) {
		if len(lines) == 0 {
			return nil, ErrEmptyCart
		}
		return s.draft(lines, req, Draft{
			UserID:        userID,
			Address:       addr,
			PaymentMethod: payment,
		})
	}

	o, err := s.orders.Checkout(ctx, cart.OwnerOf(id), build)
	if err != nil {
		var mismatch *PriceMismatchError
		switch {
		case errors.Is(err, cart.ErrCartNotFound), errors.Is(err, ErrEmptyCart), errors.As(err, &mismatch):
			return nil, err
		default:
			return nil, &CreationFailedError{Err: err}
		}
	}

	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Stringer("identity", id),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Int("items", len(o.Items)),
	)
	return o, nil
}

func (s *Service) draft(lines []cart.Line, req PlaceOrderRequest, d Draft) (*Draft, error) {
	d.Items = make([]Item, len(lines))
	for i, l := range lines {
		d.Items[i] = Item{
			ProductID:       l.ProductID,
			VariantID:       l.VariantID,
			Qty:             l.Qty,
			PriceAtPurchase: pricing.EffectivePrice(l.Price, l.Discount),
			Title:           l.Title,
			Slug:            l.Slug,
		}
	}

	subtotal := decimal.Zero
	for _, it := range d.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	d.DeliveryFee = pricing.DeliveryFee(cart.PricingLines(lines), s.cfg.DeliveryFee)
	d.Total = subtotal.Add(d.DeliveryFee)

	if req.DeliveryFee != nil && !req.DeliveryFee.Equal(d.DeliveryFee) {
		return nil, &PriceMismatchError{Field: "deliveryFee", Expected: d.DeliveryFee, Got: *req.DeliveryFee}
	}
	if req.Total != nil && !req.Total.Round(2).Equal(d.Total.Round(2)) {
		return nil, &PriceMismatchError{Field: "total", Expected: d.Total, Got: *req.Total}
	}
	return &d, nil
}

// GetOrder returns an order with its items. Orders owned by a user are only
// visible to that user and to administrators. Guest orders have no owner to
// check against: the order id returned at checkout is the guest's only handle
// on the order, so anyone holding the id can read it, address included.
func (s *Service) GetOrder(ctx context.Context, viewer identity.Identity, orderID int64) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if o.UserID != nil && !viewer.IsAdmin() && (!viewer.IsAuthenticated() || viewer.UserID != *o.UserID) {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ListOrders returns the authenticated user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, id identity.Identity) ([]Order, error) {
	if !id.IsAuthenticated() {
		return nil, ErrUnauthorized
	}
	orders, err := s.orders.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", id.UserID, err)
	}
	return orders, nil
}

// ListOrdersForAdmin returns the most recent orders across all users.
func (s *Service) ListOrdersForAdmin(ctx context.Context, actor identity.Identity, limit int) ([]Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if limit <= 0 {
		limit = s.cfg.AdminLimit
	}
	limit = min(limit, MaxAdminLimit)

	orders, err := s.orders.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	return orders, nil
}

// SetStatus moves an order to a new lifecycle status.
func (s *Service) SetStatus(ctx context.Context, actor identity.Identity, orderID int64, raw string) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	next, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	var prev Status
	o, err := s.orders.UpdateStatus(ctx, orderID, func(current Status) (Status, error) {
		prev = current
		if err := current.Transition(next); err != nil {
			return "", err
		}
		return next, nil
	})
	if err != nil {
		var te *InvalidTransitionError
		if errors.Is(err, ErrOrderNotFound) || errors.As(err, &te) {
			return nil, err
		}
		return nil, fmt.Errorf("update order %d status: %w", orderID, err)
	}

	if prev != next {
		zctx.From(ctx).Info("Order status changed",
			zap.Int64("order_id", orderID),
			zap.String("from", string(prev)),
			zap.String("to", string(next)),
			zap.Int64("admin_id", actor.UserID),
		)
	}
	return o, nil
}

// Stats returns store totals for administrators.
func (s *Service) Stats(ctx context.Context, actor identity.Identity) (*Stats, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	st, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return st, nil
}
