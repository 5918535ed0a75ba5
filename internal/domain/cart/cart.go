// Package cart holds shopping cart line items per owner and serializes
// mutations of a single owner's cart.
package cart

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/pricing"
)

var (
	// ErrItemNotFound is returned when a cart line does not exist or belongs
	// to another owner.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrEmptyOwner is returned when an operation is called without an owner key.
	ErrEmptyOwner = errors.New("cart owner key required")
)

// Item is a single product line in a cart. Quantity is always at least 1;
// ID is zero until the line has been persisted.
type Item struct {
	ID        int64
	OwnerKey  string
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// Cart is the set of lines owned by one cart owner key, in insertion order.
type Cart struct {
	OwnerKey string
	items    []Item
}

// New creates a cart for owner from previously stored items.
func New(owner string, items []Item) *Cart {
	return &Cart{OwnerKey: owner, items: slices.Clone(items)}
}

// Add increments the quantity of the line holding productID, or appends a new
// line with quantity 1. It returns the resulting line.
func (c *Cart) Add(productID int64, unitPrice decimal.Decimal, now time.Time) Item {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Quantity++
			return c.items[i]
		}
	}
	it := Item{
		OwnerKey:  c.OwnerKey,
		ProductID: productID,
		Quantity:  1,
		UnitPrice: unitPrice,
		CreatedAt: now,
	}
	c.items = append(c.items, it)
	return it
}

// Remove decrements the line itemID by one and drops it when it reaches zero.
// The returned item carries the remaining quantity, which is 0 when the line
// was removed entirely.
func (c *Cart) Remove(itemID int64) (Item, error) {
	idx := slices.IndexFunc(c.items, func(it Item) bool { return it.ID == itemID })
	if idx < 0 {
		return Item{}, ErrItemNotFound
	}
	c.items[idx].Quantity--
	it := c.items[idx]
	if it.Quantity <= 0 {
		it.Quantity = 0
		c.items = slices.Delete(c.items, idx, idx+1)
	}
	return it, nil
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []Item {
	return slices.Clone(c.items)
}

// Count returns the total quantity across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// Lines converts the cart into pricing lines.
func (c *Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, len(c.items))
	for i, it := range c.items {
		lines[i] = pricing.Line{Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return lines
}

// Repository persists cart lines. Implementations must return lines of one
// owner ordered by insertion.
type Repository interface {
	ListByOwner(ctx context.Context, owner string) ([]Item, error)
	// Upsert inserts the line or replaces its quantity, setting item.ID.
	Upsert(ctx context.Context, item *Item) error
	Delete(ctx context.Context, owner string, id int64) error
}
