//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/user"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shop"),
		tcpostgres.WithUsername("shop"),
		tcpostgres.WithPassword("shop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Idempotent schema.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedCatalog(t *testing.T, pool *pgxpool.Pool) (brakes, filter product.Product) {
	t.Helper()
	ctx := context.Background()
	products := NewProductRepository(pool)

	brakes = product.Product{SKU: "BRK-1", Title: "Brake Pads", Category: "Brakes", Price: decimal.RequireFromString("10.00")}
	filter = product.Product{SKU: "OIL-1", Title: "Oil Filter", Category: "Engine", Price: decimal.RequireFromString("5.00")}
	require.NoError(t, products.Upsert(ctx, &brakes))
	require.NoError(t, products.Upsert(ctx, &filter))

	users := NewUserRepository(pool)
	require.NoError(t, users.Upsert(ctx, user.User{ID: "u-alice", Username: "alice", Email: "alice@example.com", Name: "Alice"}))
	return brakes, filter
}

func TestProductRepository(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	brakes, _ := seedCatalog(t, pool)
	repo := NewProductRepository(pool)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Brake Pads", list[0].Title)

	got, err := repo.GetByID(ctx, brakes.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.00").Equal(got.Price))

	_, err = repo.GetByID(ctx, 9999)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAPIKeyRepository(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	seedCatalog(t, pool)
	repo := NewAPIKeyRepository(pool)

	require.NoError(t, repo.Insert(ctx, "k1", "hash-1", "u-alice"))

	info, err := repo.FindByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", info.UserID)
	assert.Equal(t, "alice", info.Username)

	_, err = repo.FindByHash(ctx, "missing")
	require.ErrorIs(t, err, auth.ErrKeyNotFound)
}

func TestCartRepository(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	brakes, filter := seedCatalog(t, pool)
	repo := NewCartRepository(pool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	it := cart.Item{OwnerKey: "owner-1", ProductID: brakes.ID, Quantity: 1, UnitPrice: brakes.Price, CreatedAt: now}
	require.NoError(t, repo.Upsert(ctx, &it))
	require.NotZero(t, it.ID)

	// Same product again replaces the quantity on the same line.
	again := it
	again.ID = 0
	again.Quantity = 3
	require.NoError(t, repo.Upsert(ctx, &again))
	assert.Equal(t, it.ID, again.ID)

	other := cart.Item{OwnerKey: "owner-1", ProductID: filter.ID, Quantity: 1, UnitPrice: filter.Price, CreatedAt: now.Add(time.Second)}
	require.NoError(t, repo.Upsert(ctx, &other))

	items, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, filter.ID, items[1].ProductID)

	// Foreign owner cannot delete.
	require.NoError(t, repo.Delete(ctx, "owner-2", it.ID))
	items, err = repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, repo.Delete(ctx, "owner-1", it.ID))
	items, err = repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestOrderRepository_CreateFromCart(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	brakes, filter := seedCatalog(t, pool)
	carts := NewCartRepository(pool)
	orders := NewOrderRepository(pool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	for _, it := range []cart.Item{
		{OwnerKey: "u-alice", ProductID: brakes.ID, Quantity: 2, UnitPrice: brakes.Price, CreatedAt: now},
		{OwnerKey: "u-alice", ProductID: filter.ID, Quantity: 1, UnitPrice: filter.Price, CreatedAt: now},
	} {
		require.NoError(t, carts.Upsert(ctx, &it))
	}

	o := &checkout.Order{
		Contact: checkout.Contact{
			Name: "Alice", Email: "alice@example.com", Phone: "555", Address: "1 Main St",
			City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
		},
		Username:       "alice",
		OrderDate:      now,
		Total:          decimal.RequireFromString("36.75"),
		Donated:        true,
		DonationAmount: decimal.RequireFromString("0.25"),
		Status:         checkout.StatusDonationPending,
		Lines: []checkout.Line{
			{ProductID: brakes.ID, Quantity: 2, UnitPrice: brakes.Price},
			{ProductID: filter.ID, Quantity: 1, UnitPrice: filter.Price},
		},
	}
	require.NoError(t, orders.CreateFromCart(ctx, o, "u-alice"))
	require.NotZero(t, o.ID)

	items, err := carts.ListByOwner(ctx, "u-alice")
	require.NoError(t, err)
	assert.Empty(t, items)

	got, err := orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, o.Total.Equal(got.Total))
	assert.True(t, o.DonationAmount.Equal(got.DonationAmount))
	assert.Equal(t, checkout.StatusDonationPending, got.Status)
	assert.Len(t, got.Lines, 2)

	require.NoError(t, orders.UpdateStatus(ctx, o.ID, checkout.StatusFinalized))
	got, err = orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusFinalized, got.Status)

	list, err := orders.ListByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Lines, 2)

	_, err = orders.FindByID(ctx, o.ID+100)
	require.ErrorIs(t, err, checkout.ErrOrderNotFound)
	require.ErrorIs(t, orders.UpdateStatus(ctx, o.ID+100, checkout.StatusFinalized), checkout.ErrOrderNotFound)
}

func TestOrderRepository_RollbackKeepsCart(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	brakes, _ := seedCatalog(t, pool)
	carts := NewCartRepository(pool)
	orders := NewOrderRepository(pool)

	it := cart.Item{OwnerKey: "u-alice", ProductID: brakes.ID, Quantity: 1, UnitPrice: brakes.Price, CreatedAt: time.Now()}
	require.NoError(t, carts.Upsert(ctx, &it))

	o := &checkout.Order{
		Contact:   checkout.Contact{Name: "A", Email: "a@example.com", Phone: "1", Address: "x", City: "c", State: "s", PostalCode: "p", Country: "US"},
		Username:  "alice",
		OrderDate: time.Now(),
		Total:     decimal.RequireFromString("15.50"),
		Status:    checkout.StatusFinalized,
		// Unknown product violates the foreign key and aborts the transaction.
		Lines: []checkout.Line{{ProductID: 424242, Quantity: 1, UnitPrice: decimal.RequireFromString("1.00")}},
	}
	require.Error(t, orders.CreateFromCart(ctx, o, "u-alice"))
	assert.Zero(t, o.ID)

	items, err := carts.ListByOwner(ctx, "u-alice")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	list, err := orders.ListByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, list)
}
