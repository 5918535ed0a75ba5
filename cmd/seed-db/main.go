// Command seed-db loads the product catalog, user accounts and their API keys.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

const upsertWorkers = 8

func main() {
	var (
		databaseURL  string
		seedFile     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedFile, "seed-file", "db/seed/seed.json", "path to seed JSON file, optionally .gz")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, seedFile, []byte(apiKeyPepper)); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, seedFile string, pepper []byte) error {
	rc, err := openSeed(seedFile)
	if err != nil {
		return err
	}
	data, err := decodeSeed(rc)
	_ = rc.Close()
	if err != nil {
		return err
	}
	lg.Info("Seed file loaded",
		zap.String("path", seedFile),
		zap.Int("products", len(data.Products)),
		zap.Int("users", len(data.Users)),
	)

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products := postgres.NewProductRepository(pool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)
	for i := range data.Products {
		p := &data.Products[i]
		g.Go(func() error {
			if err := products.Upsert(gctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.SKU)
			}
			lg.Debug("Upserted product", zap.String("sku", p.SKU), zap.Int64("id", p.ID))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	users := postgres.NewUserRepository(pool)
	apikeys := postgres.NewAPIKeyRepository(pool)
	for _, u := range data.Users {
		if err := users.Upsert(ctx, u.User); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.Username)
		}
		if u.APIKey == "" {
			continue
		}
		if err := apikeys.Insert(ctx, uuid.NewString(), handler.HashKey(pepper, u.APIKey), u.ID); err != nil {
			return errors.Wrapf(err, "insert api key of %s", u.Username)
		}
		lg.Info("Seeded user", zap.String("username", u.Username))
	}
	return nil
}
