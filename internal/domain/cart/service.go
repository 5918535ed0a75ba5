package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/pricing"
	"github.com/xenking/storefront-checkout/internal/domain/product"
)

// Observer receives timing of cart operations. Implementations must not block.
type Observer interface {
	ObserveCartOperation(ctx context.Context, op string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveCartOperation(context.Context, string, time.Duration) {}

// View is the full state of a cart as shown to its owner.
type View struct {
	OwnerKey string
	Items    []Item
	Count    int
	Summary  pricing.Summary
}

// RemoveResult describes the outcome of removing one unit of a cart line.
type RemoveResult struct {
	ItemID       int64
	ProductID    int64
	ProductTitle string
	// Remaining is the quantity left on the line; 0 means the line is gone.
	Remaining int
	Count     int
	Summary   pricing.Summary
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the default in-process per-owner lock.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithObserver sets the telemetry sink for cart operations.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// Service implements cart operations for an owner key. Mutations for the same
// owner are serialized by the Locker so concurrent read-modify-write cycles
// cannot lose increments.
type Service struct {
	items    Repository
	products product.Repository
	pricing  *pricing.Calculator
	locker   Locker
	observer Observer
	now      func() time.Time
}

// NewService creates a cart Service.
func NewService(items Repository, products product.Repository, calc *pricing.Calculator, opts ...Option) *Service {
	s := &Service{
		items:    items,
		products: products,
		pricing:  calc,
		locker:   NewKeyedMutex(),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Lock acquires the per-owner lock. Checkout uses it to keep order submission
// from interleaving with cart mutations.
func (s *Service) Lock(ctx context.Context, owner string) (func(), error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	unlock, err := s.locker.Lock(ctx, owner)
	if err != nil {
		return nil, errors.Wrapf(err, "lock cart %q", owner)
	}
	return unlock, nil
}

// Load reads the cart of owner without locking.
func (s *Service) Load(ctx context.Context, owner string) (*Cart, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}
	items, err := s.items.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	return New(owner, items), nil
}

// AddItem adds one unit of productID to the owner's cart at the product's
// current price.
func (s *Service) AddItem(ctx context.Context, owner string, productID int64) (Item, error) {
	start := s.now()
	defer func() { s.observer.ObserveCartOperation(ctx, "add", s.now().Sub(start)) }()

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return Item{}, errors.Wrap(err, "get product")
	}

	unlock, err := s.Lock(ctx, owner)
	if err != nil {
		return Item{}, err
	}
	defer unlock()

	c, err := s.Load(ctx, owner)
	if err != nil {
		return Item{}, err
	}
	it := c.Add(p.ID, p.Price, s.now())
	if err := s.items.Upsert(ctx, &it); err != nil {
		return Item{}, fmt.Errorf("upsert cart item: %w", err)
	}

	zctx.From(ctx).Debug("Cart item added",
		zap.String("owner", owner),
		zap.Int64("product_id", p.ID),
		zap.Int("quantity", it.Quantity),
	)
	return it, nil
}

// RemoveItem removes one unit of the line itemID from the owner's cart.
func (s *Service) RemoveItem(ctx context.Context, owner string, itemID int64) (*RemoveResult, error) {
	start := s.now()
	defer func() { s.observer.ObserveCartOperation(ctx, "remove", s.now().Sub(start)) }()

	unlock, err := s.Lock(ctx, owner)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	it, err := c.Remove(itemID)
	if err != nil {
		return nil, err
	}

	if it.Quantity == 0 {
		err = s.items.Delete(ctx, owner, it.ID)
	} else {
		err = s.items.Upsert(ctx, &it)
	}
	if err != nil {
		return nil, fmt.Errorf("persist cart item %d: %w", itemID, err)
	}

	res := &RemoveResult{
		ItemID:    it.ID,
		ProductID: it.ProductID,
		Remaining: it.Quantity,
		Count:     c.Count(),
		Summary:   s.pricing.Calculate(c.Lines()),
	}
	// The title is only used for the confirmation message; a product that
	// vanished from the catalog must not fail the removal.
	if p, err := s.products.GetByID(ctx, it.ProductID); err == nil {
		res.ProductTitle = p.Title
	} else if !errors.Is(err, product.ErrNotFound) {
		zctx.From(ctx).Warn("Lookup removed product", zap.Int64("product_id", it.ProductID), zap.Error(err))
	}
	return res, nil
}

// Items returns the owner's cart lines in insertion order.
func (s *Service) Items(ctx context.Context, owner string) ([]Item, error) {
	c, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return c.Items(), nil
}

// Count returns the total quantity in the owner's cart.
func (s *Service) Count(ctx context.Context, owner string) (int, error) {
	c, err := s.Load(ctx, owner)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Summary returns the cost summary of the owner's cart.
func (s *Service) Summary(ctx context.Context, owner string) (pricing.Summary, error) {
	c, err := s.Load(ctx, owner)
	if err != nil {
		return pricing.Summary{}, err
	}
	return s.pricing.Calculate(c.Lines()), nil
}

// View returns items, count and summary from a single read.
func (s *Service) View(ctx context.Context, owner string) (*View, error) {
	start := s.now()
	defer func() { s.observer.ObserveCartOperation(ctx, "view", s.now().Sub(start)) }()

	c, err := s.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &View{
		OwnerKey: owner,
		Items:    c.Items(),
		Count:    c.Count(),
		Summary:  s.pricing.Calculate(c.Lines()),
	}, nil
}
