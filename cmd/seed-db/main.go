// Command seed-db prepares a database for a fresh venue: it runs migrations
// and upserts the dining tables, the product catalog and the payment methods.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cantina/pos-backoffice/internal/postgres"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		tableCount   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.IntVar(&tableCount, "tables", 12, "number of dining tables to create")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, tableCount); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, tableCount int) error {
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

	if err := seedTables(ctx, pool, tableCount); err != nil {
		return errors.Wrap(err, "seed tables")
	}
	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedPaymentMethods(ctx, pool); err != nil {
		return errors.Wrap(err, "seed payment methods")
	}

	return nil
}

const upsertTableSQL = `INSERT INTO dining_tables (id, table_number)
	VALUES ($1, $2)
	ON CONFLICT (table_number) DO NOTHING`

func seedTables(ctx context.Context, pool *pgxpool.Pool, count int) error {
	slog.Info("seeding dining tables", slog.Int("count", count))

	for n := 1; n <= count; n++ {
		id := fmt.Sprintf("table-%d", n)
		if _, err := pool.Exec(ctx, upsertTableSQL, id, n); err != nil {
			return errors.Wrapf(err, "upsert table %d", n)
		}
	}
	return nil
}

const upsertProductSQL = `INSERT INTO products (id, name, category, price)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		price = EXCLUDED.price`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Category, p.Price); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

const upsertMethodSQL = `INSERT INTO payment_methods (id, name, active)
	VALUES ($1, $2, $3)
	ON CONFLICT (name) DO UPDATE SET active = EXCLUDED.active`

func seedPaymentMethods(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding payment methods")

	methods := []struct {
		id     string
		name   string
		active bool
	}{
		{id: "cash", name: "Cash", active: true},
		{id: "card", name: "Card", active: true},
		{id: "voucher", name: "Voucher", active: true},
		{id: "house-account", name: "House Account", active: false},
	}

	for _, m := range methods {
		if _, err := pool.Exec(ctx, upsertMethodSQL, m.id, m.name, m.active); err != nil {
			return errors.Wrapf(err, "upsert payment method %s", m.id)
		}

		slog.Info("upserted payment method", slog.String("id", m.id), slog.Bool("active", m.active))
	}

	return nil
}
