// Package auth resolves the storefront identity behind a request.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthorized is returned when a request carries no valid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrKeyNotFound is returned by Repository when no active key matches.
	ErrKeyNotFound = errors.New("api key not found")
)

// APIKeyInfo holds the identity bound to a validated API key.
type APIKeyInfo struct {
	ID       string
	KeyHash  string
	UserID   string
	Username string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// Identity is the authenticated user a request acts on behalf of.
type Identity struct {
	UserID   string
	Username string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
