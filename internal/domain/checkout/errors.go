package checkout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrOrderNotFound is returned for orders that do not exist and for orders
	// owned by someone else; callers cannot tell the two apart.
	ErrOrderNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checking out a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
)

// ValidationError reports malformed contact fields of an order draft.
type ValidationError struct {
	Draft  Order
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("invalid order: %s", strings.Join(keys, ", "))
}

// FailedError reports that an order could not be persisted. Nothing was
// committed and Draft holds the submitted input unchanged.
type FailedError struct {
	Draft Order
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("checkout failed: %v", e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}
