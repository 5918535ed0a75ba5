package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

const (
	listCartItemsSQL = `SELECT id, owner_key, product_id, quantity, unit_price, created_at
		FROM cart_items WHERE owner_key = $1 ORDER BY created_at, id`

	upsertCartItemSQL = `INSERT INTO cart_items (owner_key, product_id, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_key, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE owner_key = $1 AND id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE owner_key = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ListByOwner returns the cart lines of owner in insertion order.
func (r *CartRepository) ListByOwner(ctx context.Context, owner string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartItemsSQL, owner)
	if err != nil {
		return nil, fmt.Errorf("listing cart items of %q: %w", owner, err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// Upsert stores the line, replacing the quantity of an existing line for the
// same owner and product.
func (r *CartRepository) Upsert(ctx context.Context, it *cart.Item) error {
	err := r.pool.QueryRow(ctx, upsertCartItemSQL,
		it.OwnerKey, it.ProductID, it.Quantity, it.UnitPrice, it.CreatedAt,
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("upserting cart item of %q: %w", it.OwnerKey, err)
	}
	return nil
}

// Delete removes the line id of owner. Deleting a missing line is not an
// error.
func (r *CartRepository) Delete(ctx context.Context, owner string, id int64) error {
	if _, err := r.pool.Exec(ctx, deleteCartItemSQL, owner, id); err != nil {
		return fmt.Errorf("deleting cart item %d: %w", id, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.OwnerKey, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.CreatedAt)
	return it, err
}
