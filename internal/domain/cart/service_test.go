package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/phoneplace/internal/domain/identity"
	"github.com/xenking/phoneplace/internal/domain/product"
)

// overMax is one past MaxQuantity, converted at run time.
var overMax int64 = MaxQuantity + 1

// --- Mock implementations ---

type memItem struct {
	id        int64
	cartID    int64
	productID int64
	variantID *int64
	qty       int
}

type memCartRepo struct {
	carts   map[Owner]*Cart
	items   []*memItem
	nextID  int64
	findErr error
	writes  int
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[Owner]*Cart)}
}

func (m *memCartRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memCartRepo) GetOrCreate(_ context.Context, owner Owner) (*Cart, error) {
	if c, ok := m.carts[owner]; ok {
		return c, nil
	}
	c := &Cart{ID: m.id(), Owner: owner}
	m.carts[owner] = c
	return c, nil
}

func (m *memCartRepo) Find(_ context.Context, owner Owner) (*Cart, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.carts[owner]
	if !ok {
		return nil, ErrCartNotFound
	}
	return c, nil
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *memCartRepo) AddItem(_ context.Context, cartID, productID int64, variantID *int64, qty int) (AddResult, error) {
	m.writes++
	for _, it := range m.items {
		if it.cartID == cartID && it.productID == productID && sameVariant(it.variantID, variantID) {
			it.qty += qty
			return AddResult{ItemID: it.id, Qty: it.qty}, nil
		}
	}
	it := &memItem{id: m.id(), cartID: cartID, productID: productID, variantID: variantID, qty: qty}
	m.items = append(m.items, it)
	return AddResult{ItemID: it.id, Qty: qty, Inserted: true}, nil
}

func (m *memCartRepo) UpdateQuantity(_ context.Context, cartID, itemID int64, qty int) error {
	m.writes++
	for _, it := range m.items {
		if it.id == itemID && it.cartID == cartID {
			it.qty = qty
			return nil
		}
	}
	return ErrItemNotFound
}

func (m *memCartRepo) RemoveItem(_ context.Context, cartID, itemID int64) error {
	for i, it := range m.items {
		if it.id == itemID && it.cartID == cartID {
			m.writes++
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memCartRepo) ListLines(_ context.Context, cartID int64) ([]Line, error) {
	var out []Line
	for _, it := range m.items {
		if it.cartID == cartID {
			out = append(out, Line{
				ItemID:    it.id,
				ProductID: it.productID,
				VariantID: it.variantID,
				Qty:       it.qty,
				Price:     decimal.NewFromInt(1000),
				Discount:  20,
			})
		}
	}
	return out, nil
}

func (m *memCartRepo) Merge(ctx context.Context, from, into Owner) (int, error) {
	src, ok := m.carts[from]
	if !ok {
		return 0, nil
	}
	dst, _ := m.GetOrCreate(ctx, into)
	moved := 0
	var keep []*memItem
	for _, it := range m.items {
		if it.cartID != src.ID {
			keep = append(keep, it)
		}
	}
	srcItems := make([]*memItem, 0)
	for _, it := range m.items {
		if it.cartID == src.ID {
			srcItems = append(srcItems, it)
		}
	}
	m.items = keep
	for _, it := range srcItems {
		_, _ = m.AddItem(ctx, dst.ID, it.productID, it.variantID, it.qty)
		moved++
	}
	delete(m.carts, from)
	return moved, nil
}

type mockProductRepo struct {
	products map[int64]*product.Product
	variants map[int64]*product.Variant
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetVariant(_ context.Context, id int64) (*product.Variant, error) {
	v, ok := m.variants[id]
	if !ok {
		return nil, product.ErrVariantNotFound
	}
	return v, nil
}

// --- Helpers ---

func newCatalog() *mockProductRepo {
	return &mockProductRepo{
		products: map[int64]*product.Product{
			1: {ID: 1, Title: "Phone", Price: decimal.NewFromInt(1000), Discount: 20},
			5: {ID: 5, Title: "Case", Price: decimal.NewFromInt(100)},
		},
		variants: map[int64]*product.Variant{
			10: {ID: 10, ProductID: 1, Color: "black"},
			11: {ID: 11, ProductID: 1, Color: "white"},
			50: {ID: 50, ProductID: 5, Color: "red"},
		},
	}
}

func ptr(v int64) *int64 { return &v }

func newTestService() (*Service, *memCartRepo) {
	repo := newMemCartRepo()
	return NewService(repo, newCatalog(), decimal.NewFromInt(200)), repo
}

// --- Tests ---

func TestAddItem_MergesSameCombination(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	id := identity.Session("abc")

	first, err := svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, Qty: 2})
	require.NoError(t, err)
	assert.True(t, first.Inserted)

	second, err := svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, Qty: 1})
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.ItemID, second.ItemID)
	assert.Equal(t, 3, second.Qty)

	lines, err := svc.ListItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Qty)
	assert.Equal(t, 2, repo.writes)
}

func TestAddItem_DistinctVariantsAreSeparateLines(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := identity.User(4, identity.RoleUser)

	_, err := svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, VariantID: ptr(10), Qty: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, VariantID: ptr(11), Qty: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, Qty: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, VariantID: ptr(10), Qty: 4})
	require.NoError(t, err)

	lines, err := svc.ListItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, 5, lines[0].Qty)
}

func TestAddItem_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     AddItemRequest
		wantErr error
	}{
		{name: "zero quantity", req: AddItemRequest{ProductID: 1, Qty: 0}, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", req: AddItemRequest{ProductID: 1, Qty: -3}, wantErr: ErrInvalidQuantity},
		{name: "quantity above column range", req: AddItemRequest{ProductID: 1, Qty: int(overMax)}, wantErr: ErrInvalidQuantity},
		{name: "unknown product", req: AddItemRequest{ProductID: 99, Qty: 1}, wantErr: product.ErrNotFound},
		{name: "unknown variant", req: AddItemRequest{ProductID: 1, VariantID: ptr(77), Qty: 1}, wantErr: product.ErrVariantNotFound},
		{name: "variant of another product", req: AddItemRequest{ProductID: 1, VariantID: ptr(50), Qty: 1}, wantErr: product.ErrVariantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()

			_, err := svc.AddItem(context.Background(), identity.Session("s"), tt.req)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, repo.writes)
			assert.Empty(t, repo.carts)
		})
	}
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := identity.Session("abc")

	a, err := svc.GetOrCreate(ctx, id)
	require.NoError(t, err)
	b, err := svc.GetOrCreate(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
}

func TestUpdateQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := identity.Session("abc")

	res, err := svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, Qty: 2})
	require.NoError(t, err)

	for _, qty := range []int{0, -1, int(overMax)} {
		err := svc.UpdateQuantity(ctx, id, res.ItemID, qty)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}

	lines, err := svc.ListItems(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, lines[0].Qty)

	require.NoError(t, svc.UpdateQuantity(ctx, id, res.ItemID, 7))
	lines, err = svc.ListItems(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, lines[0].Qty)
}

func TestUpdateQuantity_ForeignOrMissingItem(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	res, err := svc.AddItem(ctx, identity.Session("owner"), AddItemRequest{ProductID: 1, Qty: 1})
	require.NoError(t, err)

	err = svc.UpdateQuantity(ctx, identity.Session("nobody"), res.ItemID, 3)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.AddItem(ctx, identity.Session("other"), AddItemRequest{ProductID: 5, Qty: 1})
	require.NoError(t, err)
	err = svc.UpdateQuantity(ctx, identity.Session("other"), res.ItemID, 3)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	id := identity.Session("abc")

	res, err := svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, Qty: 1})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, id, res.ItemID))
	writes := repo.writes

	require.NoError(t, svc.RemoveItem(ctx, id, res.ItemID))
	require.NoError(t, svc.RemoveItem(ctx, id, 12345))
	require.NoError(t, svc.RemoveItem(ctx, identity.Session("no-cart"), 1))
	assert.Equal(t, writes, repo.writes)

	lines, err := svc.ListItems(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestListItems_NoCart(t *testing.T) {
	svc, repo := newTestService()

	lines, err := svc.ListItems(context.Background(), identity.Session("nobody"))

	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
	assert.Empty(t, repo.carts, "listing must not create a cart")
}

func TestListItems_StorageError(t *testing.T) {
	svc, repo := newTestService()
	repo.findErr = errors.New("db down")

	_, err := svc.ListItems(context.Background(), identity.Session("x"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "find cart")
}

func TestView_Summary(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	id := identity.Session("abc")

	_, err := svc.AddItem(ctx, id, AddItemRequest{ProductID: 1, Qty: 3})
	require.NoError(t, err)

	v, err := svc.View(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 3, v.Summary.Items)
	assert.True(t, decimal.NewFromInt(2400).Equal(v.Summary.Subtotal), "subtotal %s", v.Summary.Subtotal)
	assert.True(t, decimal.NewFromInt(2600).Equal(v.Summary.Total), "total %s", v.Summary.Total)
}

func TestMergeSessionCart(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	guest := identity.Session("guest")
	user := identity.User(8, identity.RoleUser)

	_, err := svc.AddItem(ctx, guest, AddItemRequest{ProductID: 1, Qty: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, AddItemRequest{ProductID: 5, Qty: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user, AddItemRequest{ProductID: 1, Qty: 1})
	require.NoError(t, err)

	n, err := svc.MergeSessionCart(ctx, "guest", 8)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines, err := svc.ListItems(ctx, user)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Qty)
	assert.Equal(t, 1, lines[1].Qty)

	guestLines, err := svc.ListItems(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, guestLines)
}

func TestMergeSessionCart_NothingToMerge(t *testing.T) {
	svc, _ := newTestService()

	n, err := svc.MergeSessionCart(context.Background(), "", 8)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.MergeSessionCart(context.Background(), "unknown", 8)
	require.NoError(t, err)
	assert.Zero(t, n)
}
