package checkout

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusSubmitted       Status = "submitted"
	StatusDonationPending Status = "donation_pending"
	StatusDonationSkipped Status = "donation_skipped"
	StatusFinalized       Status = "finalized"
)

// ErrInvalidTransition is returned when an order is moved to a state that is
// not reachable from its current one.
var ErrInvalidTransition = errors.New("invalid order status transition")

var transitions = map[Status][]Status{
	StatusDraft:           {StatusSubmitted},
	StatusSubmitted:       {StatusDonationPending, StatusDonationSkipped},
	StatusDonationPending: {StatusFinalized},
	StatusDonationSkipped: {StatusFinalized},
}

// CanTransition reports whether to directly follows s.
func (s Status) CanTransition(to Status) bool {
	return slices.Contains(transitions[s], to)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Contact holds the customer-supplied delivery details of an order.
type Contact struct {
	Name       string `validate:"required,max=160"`
	Email      string `validate:"required,email,max=160"`
	Phone      string `validate:"required,max=24"`
	Address    string `validate:"required,max=70"`
	City       string `validate:"required,max=40"`
	State      string `validate:"required,max=40"`
	PostalCode string `validate:"required,max=10"`
	Country    string `validate:"required,max=40"`
}

// Order is a priced customer order. ID is assigned when the order is
// persisted; Total never changes after submission.
type Order struct {
	Contact

	ID             int64
	Username       string
	OrderDate      time.Time
	Total          decimal.Decimal
	Donated        bool
	DonationAmount decimal.Decimal
	Status         Status
	Lines          []Line
}

// Advance moves the order to status to.
func (o *Order) Advance(to Status) error {
	if !o.Status.CanTransition(to) {
		return errors.Wrapf(ErrInvalidTransition, "%s to %s", o.Status, to)
	}
	o.Status = to
	return nil
}

// Line is a product line copied from the cart when the order is submitted.
type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateFromCart stores the order with its lines and deletes the cart
	// lines of owner in a single transaction, then sets o.ID.
	CreateFromCart(ctx context.Context, o *Order, owner string) error
	FindByID(ctx context.Context, id int64) (*Order, error)
	ListByUsername(ctx context.Context, username string) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}
