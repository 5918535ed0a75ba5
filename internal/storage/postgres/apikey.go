package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT k.id, k.key_hash, u.id, u.username
		FROM api_keys k JOIN users u ON u.id = k.user_id
		WHERE k.key_hash = $1 AND k.active = TRUE`

	insertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_hash) DO NOTHING`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash together with
// the user it belongs to.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var info auth.APIKeyInfo
	err := r.pool.QueryRow(ctx, getAPIKeyByHashSQL, hash).Scan(
		&info.ID, &info.KeyHash, &info.UserID, &info.Username,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &info, nil
}

// Insert stores a new key hash for userID. Existing hashes are left untouched.
func (r *APIKeyRepository) Insert(ctx context.Context, id, hash, userID string) error {
	if _, err := r.pool.Exec(ctx, insertAPIKeySQL, id, hash, userID); err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}
