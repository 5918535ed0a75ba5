package cart

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/pricing"
	"github.com/xenking/storefront-checkout/internal/domain/product"
)

// --- Mock implementations ---

// memItems is a deliberately naive store: every call is atomic on its own but
// nothing protects a list-then-upsert sequence.
type memItems struct {
	mu     sync.Mutex
	nextID int64
	rows   []Item

	upsertErr error
}

func (m *memItems) ListByOwner(_ context.Context, owner string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Item
	for _, it := range m.rows {
		if it.OwnerKey == owner {
			out = append(out, it)
		}
	}
	runtime.Gosched()
	return out, nil
}

func (m *memItems) Upsert(_ context.Context, item *Item) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if item.ID == 0 {
		m.nextID++
		item.ID = m.nextID
		m.rows = append(m.rows, *item)
		return nil
	}
	for i := range m.rows {
		if m.rows[i].ID == item.ID {
			m.rows[i].Quantity = item.Quantity
			return nil
		}
	}
	return errors.New("row vanished")
}

func (m *memItems) Delete(_ context.Context, owner string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rows = slices.DeleteFunc(m.rows, func(it Item) bool {
		return it.ID == id && it.OwnerKey == owner
	})
	return nil
}

type mockProductRepo struct {
	byID map[int64]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingObserver) ObserveCartOperation(_ context.Context, op string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// --- Helpers ---

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

func newTestService(items *memItems, opts ...Option) *Service {
	products := newProductRepo(
		product.Product{ID: 5, Title: "Brake Pads", Price: decimal.RequireFromString("10.00")},
		product.Product{ID: 6, Title: "Oil Filter", Price: decimal.RequireFromString("5.00")},
	)
	return NewService(items, products, pricing.NewCalculator(pricing.DefaultRates()), opts...)
}

// --- Tests ---

func TestAddItem_Twice(t *testing.T) {
	items := &memItems{}
	svc := newTestService(items)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "alice", 5)
	require.NoError(t, err)
	it, err := svc.AddItem(ctx, "alice", 5)
	require.NoError(t, err)

	assert.Equal(t, 2, it.Quantity)
	got, err := svc.Items(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Quantity)
	assert.True(t, decimal.RequireFromString("10.00").Equal(got[0].UnitPrice))
}

func TestAddItem_ProductNotFound(t *testing.T) {
	svc := newTestService(&memItems{})

	_, err := svc.AddItem(context.Background(), "alice", 404)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddItem_EmptyOwner(t *testing.T) {
	svc := newTestService(&memItems{})

	_, err := svc.AddItem(context.Background(), "", 5)
	require.ErrorIs(t, err, ErrEmptyOwner)
}

func TestAddItem_UpsertError(t *testing.T) {
	svc := newTestService(&memItems{upsertErr: errors.New("db write failed")})

	_, err := svc.AddItem(context.Background(), "alice", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert cart item")
}

func TestAddItem_ConcurrentSameOwner(t *testing.T) {
	for range 50 {
		items := &memItems{}
		svc := newTestService(items)
		ctx := context.Background()

		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddItem(ctx, "alice", 5)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := svc.Items(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, 2, got[0].Quantity)
	}
}

func TestAddItem_OwnersAreIsolated(t *testing.T) {
	items := &memItems{}
	svc := newTestService(items)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "alice", 5)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "bob", 6)
	require.NoError(t, err)

	n, err := svc.Count(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemoveItem(t *testing.T) {
	items := &memItems{}
	svc := newTestService(items)
	ctx := context.Background()

	first, err := svc.AddItem(ctx, "alice", 5)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "alice", 5)
	require.NoError(t, err)

	res, err := svc.RemoveItem(ctx, "alice", first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, "Brake Pads", res.ProductTitle)
	assert.Equal(t, 1, res.Count)
	assert.True(t, decimal.RequireFromString("15.75").Equal(res.Summary.Total), "total %s", res.Summary.Total)

	res, err = svc.RemoveItem(ctx, "alice", first.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 0, res.Count)
	assert.True(t, res.Summary.Total.IsZero())

	got, err := svc.Items(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRemoveItem_ForeignLine(t *testing.T) {
	items := &memItems{}
	svc := newTestService(items)
	ctx := context.Background()

	bobs, err := svc.AddItem(ctx, "bob", 5)
	require.NoError(t, err)

	_, err = svc.RemoveItem(ctx, "alice", bobs.ID)
	require.ErrorIs(t, err, ErrItemNotFound)

	n, err := svc.Count(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestView(t *testing.T) {
	obs := &recordingObserver{}
	svc := newTestService(&memItems{}, WithObserver(obs))
	ctx := context.Background()

	for _, id := range []int64{5, 5, 6} {
		_, err := svc.AddItem(ctx, "alice", id)
		require.NoError(t, err)
	}

	v, err := svc.View(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, v.Items, 2)
	assert.Equal(t, 3, v.Count)
	assert.True(t, decimal.RequireFromString("25.00").Equal(v.Summary.SubTotal))
	assert.True(t, decimal.RequireFromString("10.00").Equal(v.Summary.Shipping))
	assert.True(t, decimal.RequireFromString("1.75").Equal(v.Summary.Tax))
	assert.True(t, decimal.RequireFromString("36.75").Equal(v.Summary.Total))
	assert.Equal(t, []string{"add", "add", "add", "view"}, obs.ops)
}

func TestView_EmptyCart(t *testing.T) {
	svc := newTestService(&memItems{})

	v, err := svc.View(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, v.Items)
	assert.Equal(t, 0, v.Count)
	assert.True(t, v.Summary.Total.IsZero())
}
