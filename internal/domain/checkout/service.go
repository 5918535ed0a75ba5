// Package checkout turns a cart into a persisted order and triggers the
// optional round-up donation.
package checkout

import (
	"context"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/donation"
	"github.com/xenking/storefront-checkout/internal/domain/pricing"
	"github.com/xenking/storefront-checkout/internal/domain/user"
)

// CartSource gives checkout serialized access to an owner's cart.
type CartSource interface {
	Lock(ctx context.Context, owner string) (func(), error)
	Load(ctx context.Context, owner string) (*cart.Cart, error)
}

// Dispatcher delivers donation notifications without blocking the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, d donation.Donation, done func(donation.Result))
}

// Observer receives submitted orders. Implementations must not block.
type Observer interface {
	ObserveOrder(ctx context.Context, o *Order)
}

type nopObserver struct{}

func (nopObserver) ObserveOrder(context.Context, *Order) {}

// Config holds the donation reporting identity of the storefront.
type Config struct {
	Retailer string
	Currency string
	// FinalizeTimeout bounds the status update after a donation notification.
	FinalizeTimeout time.Duration
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	Order *Order
	// Donation is set when a notification was dispatched.
	Donation *donation.Donation
}

// Service orchestrates checkout.
type Service struct {
	users      user.Repository
	carts      CartSource
	orders     Repository
	pricing    *pricing.Calculator
	donations  *donation.Calculator
	dispatcher Dispatcher
	validate   *validator.Validate
	observer   Observer
	cfg        Config
	now        func() time.Time
}

// NewService creates a checkout Service.
func NewService(
	cfg Config,
	users user.Repository,
	carts CartSource,
	orders Repository,
	calc *pricing.Calculator,
	donations *donation.Calculator,
	dispatcher Dispatcher,
) *Service {
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 5 * time.Second
	}
	return &Service{
		users:      users,
		carts:      carts,
		orders:     orders,
		pricing:    calc,
		donations:  donations,
		dispatcher: dispatcher,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		observer:   nopObserver{},
		cfg:        cfg,
		now:        time.Now,
	}
}

// SetObserver sets the telemetry sink for submitted orders.
func (s *Service) SetObserver(o Observer) {
	s.observer = o
}

// BeginCheckout returns an unpersisted order prefilled with the user's
// details and the current cart total.
func (s *Service) BeginCheckout(ctx context.Context, userID string) (*Order, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	c, err := s.carts.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if c.Len() == 0 {
		return nil, ErrEmptyCart
	}

	return &Order{
		Contact:  Contact{Name: u.Name, Email: u.Email},
		Username: u.Username,
		Total:    s.pricing.Calculate(c.Lines()).Total,
		Status:   StatusDraft,
	}, nil
}

// SubmitOrder persists an order for the authenticated identity from the
// contact details in draft and the identity's current cart. Identity-derived
// fields, the date and the total are always set server-side.
func (s *Service) SubmitOrder(ctx context.Context, draft Order, id auth.Identity) (*SubmitResult, error) {
	lg := zctx.From(ctx)

	if err := s.validate.Struct(draft.Contact); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, &ValidationError{Draft: draft, Fields: fieldMessages(verrs)}
		}
		return nil, errors.Wrap(err, "validate order")
	}

	o := &Order{
		Contact:   draft.Contact,
		Username:  id.Username,
		OrderDate: s.now(),
		Donated:   draft.Donated,
		Status:    StatusDraft,
	}
	if err := o.Advance(StatusSubmitted); err != nil {
		return nil, err
	}

	// Storage failures past validation hand the draft back so it can be
	// redisplayed.
	unlock, err := s.carts.Lock(ctx, id.UserID)
	if err != nil {
		return nil, &FailedError{Draft: draft, Err: err}
	}
	defer unlock()

	c, err := s.carts.Load(ctx, id.UserID)
	if err != nil {
		return nil, &FailedError{Draft: draft, Err: errors.Wrap(err, "load cart")}
	}
	if c.Len() == 0 {
		return nil, ErrEmptyCart
	}

	o.Total = s.pricing.Calculate(c.Lines()).Total
	for _, it := range c.Items() {
		o.Lines = append(o.Lines, Line{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	next := StatusDonationSkipped
	if o.Donated {
		amount := s.donations.Compute(o.Total)
		if s.donations.Allowed(amount) {
			o.DonationAmount = amount
			next = StatusDonationPending
		} else {
			lg.Warn("Donation suppressed above cap", zap.String("donation_amount", amount.StringFixed(2)))
		}
	}
	if err := o.Advance(next); err != nil {
		return nil, err
	}
	if next == StatusDonationSkipped {
		// Nothing left to wait for.
		if err := o.Advance(StatusFinalized); err != nil {
			return nil, err
		}
	}

	if err := s.orders.CreateFromCart(ctx, o, id.UserID); err != nil {
		return nil, &FailedError{Draft: draft, Err: err}
	}
	s.observer.ObserveOrder(ctx, o)

	lg.Info("Order submitted",
		zap.Int64("order_id", o.ID),
		zap.String("username", o.Username),
		zap.String("total", o.Total.StringFixed(2)),
		zap.String("status", string(o.Status)),
	)

	res := &SubmitResult{Order: o}
	if o.Status == StatusDonationPending {
		d := donation.Donation{
			SourceRetailer: s.cfg.Retailer,
			CustomerID:     o.Email,
			OrderID:        donation.Reference(s.cfg.Retailer, o.ID),
			Currency:       s.cfg.Currency,
			DateTime:       o.OrderDate,
			Amount:         o.DonationAmount,
		}
		res.Donation = &d
		s.dispatcher.Dispatch(ctx, d, s.finalizer(ctx, o.ID))
	}
	return res, nil
}

// finalizer marks the order finalized once its donation notification has
// reached a terminal outcome, whatever that outcome was.
func (s *Service) finalizer(ctx context.Context, orderID int64) func(donation.Result) {
	ctx = context.WithoutCancel(ctx)
	return func(donation.Result) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.FinalizeTimeout)
		defer cancel()

		if err := s.orders.UpdateStatus(ctx, orderID, StatusFinalized); err != nil {
			zctx.From(ctx).Error("Finalize order", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}
}

// GetOrder returns the order only when it belongs to username.
func (s *Service) GetOrder(ctx context.Context, orderID int64, username string) (*Order, error) {
	if username == "" {
		return nil, ErrOrderNotFound
	}
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "find order %d", orderID)
	}
	if o.Username != username {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// ListOrders returns the orders placed by username, newest first.
func (s *Service) ListOrders(ctx context.Context, username string) ([]Order, error) {
	orders, err := s.orders.ListByUsername(ctx, username)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// DonationFor previews the donation that would accompany a checkout of total.
// ok is false when the amount is above the cap and would not be sent.
func (s *Service) DonationFor(total decimal.Decimal) (amount decimal.Decimal, ok bool) {
	amount = s.donations.Compute(total)
	return amount, s.donations.Allowed(amount)
}

func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "email":
			out[field] = fmt.Sprintf("%s must be a valid email address", field)
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
