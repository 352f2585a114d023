package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/phoneplace/internal/domain/product"
)

// primaryImageSQL selects the primary image of product p, falling back to
// the first image when none is flagged.
const primaryImageSQL = `COALESCE((SELECT pi.url FROM product_images pi
		WHERE pi.product_id = p.id ORDER BY pi.is_primary DESC, pi.id LIMIT 1), '')`

const (
	getProductSQL = `SELECT p.id, p.title, p.slug, p.price, p.discount, p.stock, ` + primaryImageSQL + `
		FROM products p WHERE p.id = $1`

	getVariantSQL = `SELECT id, product_id, COALESCE(sku, ''), color, storage, stock, price_override
		FROM product_variants WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (title, slug, price, discount, brand, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			discount = EXCLUDED.discount,
			brand = EXCLUDED.brand,
			stock = EXCLUDED.stock
		RETURNING id`

	deleteProductImagesSQL = `DELETE FROM product_images WHERE product_id = $1`

	insertProductImageSQL = `INSERT INTO product_images (product_id, url, is_primary) VALUES ($1, $2, $3)`

	upsertVariantSQL = `INSERT INTO product_variants (product_id, sku, color, storage, stock, price_override)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sku) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			color = EXCLUDED.color,
			storage = EXCLUDED.storage,
			stock = EXCLUDED.stock,
			price_override = EXCLUDED.price_override`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product with its primary image.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (product.Product, error) {
		var p product.Product
		err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Price, &p.Discount, &p.Stock, &p.Image)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetVariant returns a single product variant.
func (r *ProductRepository) GetVariant(ctx context.Context, id int64) (*product.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variant %d: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (product.Variant, error) {
		var v product.Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Color, &v.Storage, &v.Stock, &v.PriceOverride)
		return v, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrVariantNotFound
		}
		return nil, fmt.Errorf("getting variant %d: %w", id, err)
	}
	return &v, nil
}

// Upsert creates or updates a product by slug, replaces its images and
// upserts its variants by SKU, all in one transaction.
func (r *ProductRepository) Upsert(ctx context.Context, l product.Listing) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, upsertProductSQL,
			l.Title, l.Slug, l.Price, l.Discount, l.Brand, l.Stock,
		).Scan(&id); err != nil {
			return fmt.Errorf("upserting product: %w", err)
		}

		batch := &pgx.Batch{}
		batch.Queue(deleteProductImagesSQL, id)
		for _, img := range l.Images {
			batch.Queue(insertProductImageSQL, id, img.URL, img.Primary)
		}
		for _, v := range l.Variants {
			batch.Queue(upsertVariantSQL, id, v.SKU, v.Color, v.Storage, v.Stock, v.PriceOverride)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("writing images and variants: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upserting product %q: %w", l.Slug, err)
	}
	return id, nil
}
