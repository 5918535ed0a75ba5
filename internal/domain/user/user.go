// Package user describes storefront accounts as seen by checkout.
package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no user exists for an identifier.
var ErrNotFound = errors.New("user not found")

// User holds the account details used to prefill an order.
type User struct {
	ID       string
	Username string
	Email    string
	Name     string
}

// Repository looks up users.
type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
}
