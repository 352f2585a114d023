package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/phoneplace/internal/domain/cart"
)

const (
	// Upsert with a no-op update so RETURNING yields the row on conflict too.
	getOrCreateCartSQL = `INSERT INTO carts (%[1]s) VALUES ($1)
		ON CONFLICT (%[1]s) DO UPDATE SET %[1]s = EXCLUDED.%[1]s
		RETURNING id, user_id, session_id, created_at`

	findCartSQL = `SELECT id, user_id, session_id, created_at FROM carts WHERE %s = $1`

	lockCartSQL = `SELECT id FROM carts WHERE %s = $1 FOR UPDATE`

	addCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, variant_id, qty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT cart_items_line_key
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty
		RETURNING id, qty, (xmax = 0)`

	updateCartItemSQL = `UPDATE cart_items SET qty = $3 WHERE id = $2 AND cart_id = $1`

	removeCartItemSQL = `DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`

	listCartLinesSQL = `SELECT ci.id, ci.product_id, ci.variant_id, ci.qty,
			p.title, p.slug, p.price, p.discount, ` + primaryImageSQL + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	mergeCartItemsSQL = `INSERT INTO cart_items (cart_id, product_id, variant_id, qty)
		SELECT $2, product_id, variant_id, qty FROM cart_items WHERE cart_id = $1
		ORDER BY id
		ON CONFLICT ON CONSTRAINT cart_items_line_key
		DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty`

	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

var errEmptyOwner = errors.New("cart owner is empty")

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ownerColumn returns the carts column and value identifying owner.
func ownerColumn(owner cart.Owner) (string, any, error) {
	switch {
	case owner.UserID > 0:
		return "user_id", owner.UserID, nil
	case owner.SessionID != "":
		return "session_id", owner.SessionID, nil
	default:
		return "", nil, errEmptyOwner
	}
}

// GetOrCreate returns the owner's cart, creating it on first use. Concurrent
// callers converge on the same row through the unique owner constraint.
func (r *CartRepository) GetOrCreate(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	return getOrCreateCart(ctx, r.pool, owner)
}

func getOrCreateCart(ctx context.Context, q querier, owner cart.Owner) (*cart.Cart, error) {
	col, val, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, fmt.Sprintf(getOrCreateCartSQL, col), val)
	if err != nil {
		return nil, fmt.Errorf("creating cart: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		return nil, fmt.Errorf("creating cart: %w", err)
	}
	return &c, nil
}

// Find returns the owner's cart or cart.ErrCartNotFound.
func (r *CartRepository) Find(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	col, val, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(findCartSQL, col), val)
	if err != nil {
		return nil, fmt.Errorf("finding cart: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("finding cart: %w", err)
	}
	return &c, nil
}

// AddItem inserts a line or increments the quantity of the existing line for
// the same (product, variant) in one statement.
func (r *CartRepository) AddItem(ctx context.Context, cartID, productID int64, variantID *int64, qty int) (cart.AddResult, error) {
	var res cart.AddResult
	err := r.pool.QueryRow(ctx, addCartItemSQL, cartID, productID, variantID, qty).
		Scan(&res.ItemID, &res.Qty, &res.Inserted)
	if isOutOfRange(err) {
		return cart.AddResult{}, cart.ErrInvalidQuantity
	}
	if err != nil {
		return cart.AddResult{}, fmt.Errorf("adding product %d to cart %d: %w", productID, cartID, err)
	}
	return res, nil
}

// UpdateQuantity sets the quantity of a line in the given cart.
func (r *CartRepository) UpdateQuantity(ctx context.Context, cartID, itemID int64, qty int) error {
	tag, err := r.pool.Exec(ctx, updateCartItemSQL, cartID, itemID, qty)
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// RemoveItem deletes a line from the given cart. Removing a missing line is
// not an error.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, itemID int64) error {
	if _, err := r.pool.Exec(ctx, removeCartItemSQL, cartID, itemID); err != nil {
		return fmt.Errorf("removing cart item %d: %w", itemID, err)
	}
	return nil
}

// ListLines returns the cart lines joined with current product data.
func (r *CartRepository) ListLines(ctx context.Context, cartID int64) ([]cart.Line, error) {
	return listCartLines(ctx, r.pool, cartID)
}

func listCartLines(ctx context.Context, q querier, cartID int64) ([]cart.Line, error) {
	rows, err := q.Query(ctx, listCartLinesSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing cart %d: %w", cartID, err)
	}
	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("listing cart %d: %w", cartID, err)
	}
	return lines, nil
}

// Merge moves every line of from's cart into into's cart, summing quantities
// of matching lines, and deletes from's cart. It returns the number of lines
// moved; zero when from has no cart.
func (r *CartRepository) Merge(ctx context.Context, from, into cart.Owner) (int, error) {
	fromCol, fromVal, err := ownerColumn(from)
	if err != nil {
		return 0, err
	}

	var moved int
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var fromID int64
		err := tx.QueryRow(ctx, fmt.Sprintf(lockCartSQL, fromCol), fromVal).Scan(&fromID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("locking source cart: %w", err)
		}

		dst, err := getOrCreateCart(ctx, tx, into)
		if err != nil {
			return err
		}
		if dst.ID == fromID {
			return nil
		}

		tag, err := tx.Exec(ctx, mergeCartItemsSQL, fromID, dst.ID)
		if isOutOfRange(err) {
			return cart.ErrInvalidQuantity
		}
		if err != nil {
			return fmt.Errorf("moving cart items: %w", err)
		}
		moved = int(tag.RowsAffected())

		if _, err := tx.Exec(ctx, deleteCartSQL, fromID); err != nil {
			return fmt.Errorf("deleting source cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("merging carts: %w", err)
	}
	return moved, nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c         cart.Cart
		userID    *int64
		sessionID *string
	)
	if err := row.Scan(&c.ID, &userID, &sessionID, &c.CreatedAt); err != nil {
		return c, err
	}
	if userID != nil {
		c.Owner.UserID = *userID
	}
	if sessionID != nil {
		c.Owner.SessionID = *sessionID
	}
	return c, nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(
		&l.ItemID, &l.ProductID, &l.VariantID, &l.Qty,
		&l.Title, &l.Slug, &l.Price, &l.Discount, &l.Image,
	)
	return l, err
}
