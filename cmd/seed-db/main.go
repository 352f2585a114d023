// Command seed-db loads the phone catalog into PostgreSQL and can mint an
// admin token for local testing.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/phoneplace/internal/domain/identity"
	"github.com/xenking/phoneplace/internal/domain/product"
	"github.com/xenking/phoneplace/internal/storage/postgres"
)

type imageJSON struct {
	URL     string `json:"url"`
	Primary bool   `json:"primary"`
}

type variantJSON struct {
	SKU           string              `json:"sku"`
	Color         string              `json:"color"`
	Storage       string              `json:"storage"`
	Stock         int                 `json:"stock"`
	PriceOverride decimal.NullDecimal `json:"priceOverride"`
}

type productJSON struct {
	Title    string          `json:"title"`
	Slug     string          `json:"slug"`
	Brand    string          `json:"brand"`
	Price    decimal.Decimal `json:"price"`
	Discount int             `json:"discount"`
	Stock    int             `json:"stock"`
	Images   []imageJSON     `json:"images"`
	Variants []variantJSON   `json:"variants"`
}

func (p productJSON) listing() product.Listing {
	l := product.Listing{
		Title:    p.Title,
		Slug:     p.Slug,
		Brand:    p.Brand,
		Price:    p.Price,
		Discount: p.Discount,
		Stock:    p.Stock,
	}
	for _, img := range p.Images {
		l.Images = append(l.Images, product.Image{URL: img.URL, Primary: img.Primary})
	}
	for _, v := range p.Variants {
		l.Variants = append(l.Variants, product.Variant{
			SKU:           v.SKU,
			Color:         v.Color,
			Storage:       v.Storage,
			Stock:         v.Stock,
			PriceOverride: v.PriceOverride,
		})
	}
	return l
}

func main() {
	var (
		databaseURL  string
		productsFile string
		authSecret   string
		adminID      int64
		tokenTTL     time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file, optionally gzipped (.gz)")
	flag.StringVar(&authSecret, "auth-secret", "", "token secret used to print an admin token (or SHOP_AUTH_SECRET env)")
	flag.Int64Var(&adminID, "admin-id", 1, "user id of the printed admin token")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of the printed admin token")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if authSecret == "" {
		authSecret = os.Getenv("SHOP_AUTH_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if authSecret != "" {
		tok, err := identity.NewResolver([]byte(authSecret)).Issue(adminID, identity.RoleAdmin, tokenTTL)
		if err != nil {
			slog.Error("issue admin token", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("admin token", slog.Int64("user_id", adminID), slog.String("token", tok))
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	products, err := readProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		id, err := repo.Upsert(ctx, p.listing())
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.Slug)
		}
		slog.Info("upserted product",
			slog.Int64("id", id),
			slog.String("slug", p.Slug),
			slog.Int("variants", len(p.Variants)),
		)
	}

	return nil
}

// readProducts decodes the catalog file, decompressing .gz files in parallel
// blocks.
func readProducts(path string) ([]productJSON, error) {
	slog.Info("reading products file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	for i, p := range products {
		if p.Slug == "" || p.Title == "" {
			return nil, errors.Errorf("product %d: title and slug are required", i)
		}
		for _, v := range p.Variants {
			if v.SKU == "" {
				return nil, errors.Errorf("product %s: variant without sku", p.Slug)
			}
		}
	}
	return products, nil
}
