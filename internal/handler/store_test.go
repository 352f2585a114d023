package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/phoneplace/internal/domain/cart"
	"github.com/xenking/phoneplace/internal/domain/order"
	"github.com/xenking/phoneplace/internal/domain/product"
)

// --- Mock implementations ---

type memLine struct {
	id        int64
	productID int64
	variantID *int64
	qty       int
}

type memCart struct {
	cart  cart.Cart
	lines []*memLine
}

// memStore implements the cart, product and order repositories in memory.
type memStore struct {
	mu sync.Mutex

	products map[int64]product.Product
	variants map[int64]product.Variant
	carts    map[cart.Owner]*memCart
	orders   map[int64]*order.Order

	nextID      int64
	checkoutErr error
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]product.Product),
		variants: make(map[int64]product.Variant),
		carts:    make(map[cart.Owner]*memCart),
		orders:   make(map[int64]*order.Order),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addProduct(id int64, price string, discount int) {
	s.products[id] = product.Product{
		ID:       id,
		Title:    "Phone",
		Slug:     "phone",
		Price:    decimal.RequireFromString(price),
		Discount: discount,
		Image:    "img/phone.jpg",
	}
}

func (s *memStore) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) GetVariant(_ context.Context, id int64) (*product.Variant, error) {
	v, ok := s.variants[id]
	if !ok {
		return nil, product.ErrVariantNotFound
	}
	return &v, nil
}

func (s *memStore) GetOrCreate(_ context.Context, owner cart.Owner) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[owner]
	if !ok {
		c = &memCart{cart: cart.Cart{ID: s.id(), Owner: owner}}
		s.carts[owner] = c
	}
	out := c.cart
	return &out, nil
}

func (s *memStore) Find(_ context.Context, owner cart.Owner) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[owner]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	out := c.cart
	return &out, nil
}

func (s *memStore) byID(cartID int64) *memCart {
	for _, c := range s.carts {
		if c.cart.ID == cartID {
			return c
		}
	}
	return nil
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *memStore) AddItem(_ context.Context, cartID, productID int64, variantID *int64, qty int) (cart.AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byID(cartID)
	for _, l := range c.lines {
		if l.productID == productID && sameVariant(l.variantID, variantID) {
			l.qty += qty
			return cart.AddResult{ItemID: l.id, Qty: l.qty}, nil
		}
	}
	l := &memLine{id: s.id(), productID: productID, variantID: variantID, qty: qty}
	c.lines = append(c.lines, l)
	return cart.AddResult{ItemID: l.id, Qty: qty, Inserted: true}, nil
}

func (s *memStore) UpdateQuantity(_ context.Context, cartID, itemID int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.byID(cartID).lines {
		if l.id == itemID {
			l.qty = qty
			return nil
		}
	}
	return cart.ErrItemNotFound
}

func (s *memStore) RemoveItem(_ context.Context, cartID, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byID(cartID)
	for i, l := range c.lines {
		if l.id == itemID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) linesOf(c *memCart) []cart.Line {
	out := make([]cart.Line, 0, len(c.lines))
	for _, l := range c.lines {
		p := s.products[l.productID]
		out = append(out, cart.Line{
			ItemID:    l.id,
			ProductID: l.productID,
			VariantID: l.variantID,
			Qty:       l.qty,
			Title:     p.Title,
			Slug:      p.Slug,
			Price:     p.Price,
			Discount:  p.Discount,
			Image:     p.Image,
		})
	}
	return out
}

func (s *memStore) ListLines(_ context.Context, cartID int64) ([]cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesOf(s.byID(cartID)), nil
}

func (s *memStore) Merge(ctx context.Context, from, into cart.Owner) (int, error) {
	s.mu.Lock()
	src, ok := s.carts[from]
	s.mu.Unlock()
	if !ok {
		return 0, nil
	}
	dst, _ := s.GetOrCreate(ctx, into)
	for _, l := range src.lines {
		if _, err := s.AddItem(ctx, dst.ID, l.productID, l.variantID, l.qty); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	delete(s.carts, from)
	s.mu.Unlock()
	return len(src.lines), nil
}

func (s *memStore) Checkout(_ context.Context, owner cart.Owner, build order.BuildFunc) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[owner]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	d, err := build(s.linesOf(c))
	if err != nil {
		return nil, err
	}
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := &order.Order{
		ID:            s.id(),
		UserID:        d.UserID,
		Status:        order.StatusPlaced,
		Total:         d.Total,
		DeliveryFee:   d.DeliveryFee,
		Address:       d.Address,
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items:         append([]order.Item(nil), d.Items...),
	}
	for i := range o.Items {
		o.Items[i].ID = s.id()
	}
	s.orders[o.ID] = o
	c.lines = nil
	out := *o
	return &out, nil
}

func (s *memStore) Get(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	out := *o
	return &out, nil
}

func (s *memStore) sortedOrders(keep func(*order.Order) bool) []order.Order {
	var out []order.Order
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *memStore) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedOrders(func(o *order.Order) bool {
		return o.UserID != nil && *o.UserID == userID
	}), nil
}

func (s *memStore) ListRecent(_ context.Context, limit int) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sortedOrders(func(*order.Order) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id int64, next func(order.Status) (order.Status, error)) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	st, err := next(o.Status)
	if err != nil {
		return nil, err
	}
	o.Status = st
	out := *o
	return &out, nil
}

func (s *memStore) Stats(_ context.Context) (*order.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &order.Stats{Orders: int64(len(s.orders)), Products: int64(len(s.products))}
	for _, o := range s.orders {
		if o.Status != order.StatusCancelled {
			st.Revenue = st.Revenue.Add(o.Total)
		}
	}
	return st, nil
}
