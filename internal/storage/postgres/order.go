package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/phoneplace/internal/domain/cart"
	"github.com/xenking/phoneplace/internal/domain/order"
)

const orderColumns = `id, user_id, status, total, delivery_fee, address_json, payment_method, created_at, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (user_id, status, total, delivery_fee, address_json, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + orderColumns

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, variant_id, qty, price_at_purchase)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	lockOrderSQL = `SELECT status FROM orders WHERE id = $1 FOR UPDATE`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	listRecentOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC, id DESC LIMIT $1`

	// Items keep their snapshot price; title and slug come from the current
	// catalog row.
	listOrderItemsSQL = `SELECT oi.order_id, oi.id, oi.product_id, oi.variant_id, oi.qty, oi.price_at_purchase,
			COALESCE(p.title, ''), COALESCE(p.slug, '')
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`

	countOrdersSQL    = `SELECT count(*) FROM orders`
	sumRevenueSQL     = `SELECT COALESCE(sum(total), 0) FROM orders WHERE status <> 'cancelled'`
	countCustomersSQL = `SELECT count(DISTINCT user_id) FROM orders WHERE user_id IS NOT NULL`
	countProductsSQL  = `SELECT count(*) FROM products`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Checkout locks the owner's cart row, so concurrent checkouts of the same
// cart serialize and the second one sees the cart already cleared.
func (r *OrderRepository) Checkout(ctx context.Context, owner cart.Owner, build order.BuildFunc) (*order.Order, error) {
	col, val, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}

	var created *order.Order
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var cartID int64
		err := tx.QueryRow(ctx, fmt.Sprintf(lockCartSQL, col), val).Scan(&cartID)
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrCartNotFound
		}
		if err != nil {
			return fmt.Errorf("locking cart: %w", err)
		}

		lines, err := listCartLines(ctx, tx, cartID)
		if err != nil {
			return err
		}
		d, err := build(lines)
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, insertOrderSQL,
			d.UserID, order.StatusPlaced, d.Total, d.DeliveryFee, d.Address, d.PaymentMethod,
		)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}
		o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		o.Items = make([]order.Item, len(d.Items))
		copy(o.Items, d.Items)

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(insertOrderItemSQL, o.ID, it.ProductID, it.VariantID, it.Qty, it.PriceAtPurchase)
		}
		results := tx.SendBatch(ctx, batch)
		for i := range o.Items {
			if err := results.QueryRow().Scan(&o.Items[i].ID); err != nil {
				_ = results.Close()
				return fmt.Errorf("inserting order item %d: %w", i, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("inserting order items: %w", err)
		}

		if _, err := tx.Exec(ctx, clearCartSQL, cartID); err != nil {
			return fmt.Errorf("clearing cart %d: %w", cartID, err)
		}

		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns an order with its items.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	return getOrder(ctx, r.pool, id)
}

func getOrder(ctx context.Context, q querier, id int64) (*order.Order, error) {
	rows, err := q.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	orders := []order.Order{o}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByUser returns the user's orders with items, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.list(ctx, listOrdersByUserSQL, userID)
}

// ListRecent returns the most recent orders with items, newest first.
func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]order.Order, error) {
	return r.list(ctx, listRecentOrdersSQL, limit)
}

func (r *OrderRepository) list(ctx context.Context, sql string, arg any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all given orders with one query.
func attachItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []order.Item{}
	}

	rows, err := q.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			it      order.Item
		)
		if err := rows.Scan(
			&orderID, &it.ID, &it.ProductID, &it.VariantID, &it.Qty, &it.PriceAtPurchase,
			&it.Title, &it.Slug,
		); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	return nil
}

// UpdateStatus reads the current status under a row lock, asks next for the
// new one and stores it. Returning the current status from next leaves the
// row untouched.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, next func(order.Status) (order.Status, error)) (*order.Order, error) {
	var updated *order.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var current order.Status
		err := tx.QueryRow(ctx, lockOrderSQL, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("locking order %d: %w", id, err)
		}

		st, err := next(current)
		if err != nil {
			return err
		}
		if st != current {
			if _, err := tx.Exec(ctx, updateOrderStatusSQL, id, st); err != nil {
				return fmt.Errorf("updating order %d status: %w", id, err)
			}
		}

		updated, err = getOrder(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Stats runs the dashboard aggregates concurrently.
func (r *OrderRepository) Stats(ctx context.Context) (*order.Stats, error) {
	var st order.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(gctx, countOrdersSQL).Scan(&st.Orders)
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, sumRevenueSQL).Scan(&st.Revenue)
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, countCustomersSQL).Scan(&st.Customers)
	})
	g.Go(func() error {
		return r.pool.QueryRow(gctx, countProductsSQL).Scan(&st.Products)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading stats: %w", err)
	}
	return &st, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Status, &o.Total, &o.DeliveryFee,
		&o.Address, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}
