package checkout

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-bullion-checkout/internal/memstore"
	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
	"github.com/ariefcatur/go-bullion-checkout/internal/pricing"
)

type mockInventory struct{ mock.Mock }

func (m *mockInventory) AvailableQuantity(ctx context.Context, sku string) (int64, error) {
	args := m.Called(ctx, sku)
	return args.Get(0).(int64), args.Error(1)
}

type mockEvents struct{ mock.Mock }

func (m *mockEvents) OrderCreated(ctx context.Context, o orders.Order, lines []orders.OrderLine) {
	m.Called(ctx, o, lines)
}

type mockCache struct{ mock.Mock }

func (m *mockCache) Fill(ctx context.Context, orderID int64, status orders.Status) {
	m.Called(ctx, orderID, status)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var t0 = time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)

type fixture struct {
	store *memstore.Store
	inv   *mockInventory
	clock *clock
	svc   *Service
	quote orders.Quote
}

func setup(t *testing.T, qty int64) *fixture {
	t.Helper()
	st := memstore.New()
	st.PutProduct(orders.Product{SKU: "GOLD1OZ", Name: "Gold Eagle 1oz", Metal: "gold", WeightOz: 1, PremiumCents: 8_500, Active: true})
	st.AppendSpot("gold", 200_000, t0.Add(-time.Minute))

	clk := &clock{t: t0}
	q, err := pricing.NewEngine(st, clk, nil).Quote(context.Background(), pricing.QuoteInput{
		UserID: "u1", SKU: "GOLD1OZ", Qty: qty, ToleranceBps: pricing.DefaultToleranceBps,
	})
	require.NoError(t, err)

	inv := &mockInventory{}
	var n atomic.Int64
	svc := NewService(st, inv, nil, clk, nil)
	svc.NewIntentID = func() string { return fmt.Sprintf("pi_test_%d", n.Add(1)) }
	return &fixture{store: st, inv: inv, clock: clk, svc: svc, quote: q}
}

func TestBeginCheckoutCommitsOrder(t *testing.T) {
	f := setup(t, 3)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil).Once()
	events := &mockEvents{}
	events.On("OrderCreated", mock.Anything, mock.AnythingOfType("orders.Order"), mock.Anything).Once()
	f.svc.Events = events

	res, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, "pi_test_1", res.PaymentIntentID)

	o, err := f.store.OrderByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, f.quote.UnitPriceCents*3, o.TotalCents)

	lines, err := f.store.OrderLines(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, f.quote.UnitPriceCents, lines[0].UnitPriceCents)
	assert.Equal(t, lines[0].UnitPriceCents*lines[0].Qty, lines[0].SubtotalCents)
	assert.Equal(t, o.TotalCents, orders.TotalOf(lines))

	k, err := f.store.IdempotencyKey(context.Background(), "key-1", orders.PurposeCheckout)
	require.NoError(t, err)
	assert.Equal(t, o.ID, k.OrderID)

	f.inv.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestCommitPrimesStatusCache(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil).Once()
	cache := &mockCache{}
	cache.On("Fill", mock.Anything, mock.AnythingOfType("int64"), orders.StatusPending).Once()
	f.svc.Cache = cache

	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)

	// replays do not touch the cache
	_, err = f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)

	cache.AssertExpectations(t)
}

func TestReplayReturnsSameOrderWithoutInventoryCall(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil).Once()

	first, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)

	second, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.PaymentIntentID, second.PaymentIntentID)
	assert.Equal(t, 1, f.store.CountOrders())

	f.inv.AssertNumberOfCalls(t, "AvailableQuantity", 1)
}

func TestReplayStillRevalidatesExpiry(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil).Once()

	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)

	f.clock.Set(f.quote.ExpiresAt)
	_, err = f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	assert.ErrorIs(t, err, orders.ErrRequoteRequired)
}

func TestExpiryBoundary(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil)

	f.clock.Set(f.quote.ExpiresAt)
	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-at")
	assert.ErrorIs(t, err, orders.ErrRequoteRequired, "the expiry instant is expired")

	f.clock.Set(f.quote.ExpiresAt.Add(-time.Nanosecond))
	_, err = f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-before")
	assert.NoError(t, err)
}

func TestForcedExpiry(t *testing.T) {
	f := setup(t, 1)
	require.NoError(t, f.store.ExpireQuote(context.Background(), f.quote.ID, t0.Add(-time.Second)))

	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	assert.ErrorIs(t, err, orders.ErrRequoteRequired)
	f.inv.AssertNotCalled(t, "AvailableQuantity", mock.Anything, mock.Anything)
}

func TestDriftBoundary(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil)

	// basis 200_000, tolerance 50bps: 201_000 is exactly 50bps
	f.store.AppendSpot("gold", 201_000, t0)
	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-eq")
	require.NoError(t, err)

	f.store.AppendSpot("gold", 201_020, t0.Add(time.Second))
	_, err = f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-over")
	assert.ErrorIs(t, err, orders.ErrRequoteRequired)
}

func TestSpotDoubledRequiresRequote(t *testing.T) {
	f := setup(t, 1)
	f.store.AppendSpot("gold", 400_000, t0)

	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	assert.ErrorIs(t, err, orders.ErrRequoteRequired)
	assert.Zero(t, f.store.CountOrders())
	f.inv.AssertNotCalled(t, "AvailableQuantity", mock.Anything, mock.Anything)
}

func TestZeroBasisSkipsDrift(t *testing.T) {
	st := memstore.New()
	st.PutProduct(orders.Product{SKU: "TOKEN", Metal: "gold", WeightOz: 1, PremiumCents: 100, Active: true})
	st.AppendSpot("gold", 0, t0.Add(-time.Minute))
	clk := &clock{t: t0}
	q, err := pricing.NewEngine(st, clk, nil).Quote(context.Background(), pricing.QuoteInput{UserID: "u1", SKU: "TOKEN", Qty: 1})
	require.NoError(t, err)
	st.AppendSpot("gold", 500_000, t0)

	inv := &mockInventory{}
	inv.On("AvailableQuantity", mock.Anything, "TOKEN").Return(int64(1), nil)
	_, err = NewService(st, inv, nil, clk, nil).BeginCheckout(context.Background(), q.ID, "key-1")
	assert.NoError(t, err)
}

func TestOutOfStock(t *testing.T) {
	f := setup(t, 5)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(0), nil)

	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	assert.ErrorIs(t, err, orders.ErrOutOfStock)
	assert.Zero(t, f.store.CountOrders())

	_, err = f.store.IdempotencyKey(context.Background(), "key-1", orders.PurposeCheckout)
	assert.ErrorIs(t, err, orders.ErrNotFound, "a failed checkout binds nothing")
}

func TestInventoryFailureIsRetryable(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(0), context.DeadlineExceeded)

	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	assert.ErrorIs(t, err, orders.ErrInventoryUnavailable)
	assert.Zero(t, f.store.CountOrders())
}

func TestLookupFailures(t *testing.T) {
	f := setup(t, 1)

	_, err := f.svc.BeginCheckout(context.Background(), 9999, "key-1")
	assert.ErrorIs(t, err, orders.ErrQuoteNotFound)

	_, err = f.svc.BeginCheckout(context.Background(), f.quote.ID, "")
	assert.ErrorIs(t, err, orders.ErrValidation)

	long := make([]byte, MaxKeyLen+1)
	for i := range long {
		long[i] = 'k'
	}
	_, err = f.svc.BeginCheckout(context.Background(), f.quote.ID, string(long))
	assert.ErrorIs(t, err, orders.ErrValidation)

	f.store.DeleteProduct("GOLD1OZ")
	_, err = f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	assert.ErrorIs(t, err, orders.ErrProductNotFound)
}

func TestCheckoutAllowsDeactivatedProduct(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(1), nil)
	f.store.PutProduct(orders.Product{SKU: "GOLD1OZ", Metal: "gold", WeightOz: 1, PremiumCents: 8_500, Active: false})

	_, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	assert.NoError(t, err)
}

// staleLookup hides the first committed key from the replay lookup, the way
// a concurrent request sees it before the other transaction commits.
type staleLookup struct {
	*memstore.Store
	hidden atomic.Bool
}

func (s *staleLookup) IdempotencyKey(ctx context.Context, key, purpose string) (orders.IdempotencyKey, error) {
	if s.hidden.CompareAndSwap(true, false) {
		return orders.IdempotencyKey{}, orders.ErrNotFound
	}
	return s.Store.IdempotencyKey(ctx, key, purpose)
}

func TestConflictRecoversExistingOrder(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil)

	first, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)

	stale := &staleLookup{Store: f.store}
	stale.hidden.Store(true)
	f.svc.Store = stale

	second, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.PaymentIntentID, second.PaymentIntentID)
	assert.Equal(t, 1, f.store.CountOrders())
	f.inv.AssertNumberOfCalls(t, "AvailableQuantity", 2)
}

func TestConcurrentSameKeyCreatesOneOrder(t *testing.T) {
	f := setup(t, 1)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil)

	const n = 16
	results := make([]Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.BeginCheckout(context.Background(), f.quote.ID, "same-key")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].OrderID, results[i].OrderID)
	}
	assert.Equal(t, 1, f.store.CountOrders())
}

func TestDistinctKeysCreateDistinctOrders(t *testing.T) {
	f := setup(t, 2)
	f.inv.On("AvailableQuantity", mock.Anything, "GOLD1OZ").Return(int64(10), nil)

	a, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-a")
	require.NoError(t, err)
	b, err := f.svc.BeginCheckout(context.Background(), f.quote.ID, "key-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.OrderID, b.OrderID)
	assert.NotEqual(t, a.PaymentIntentID, b.PaymentIntentID)
	assert.Equal(t, 2, f.store.CountOrders())
}

func TestNewPaymentIntentID(t *testing.T) {
	id := NewPaymentIntentID()
	assert.Regexp(t, `^pi_[0-9a-f]{32}$`, id)
	assert.NotEqual(t, id, NewPaymentIntentID())
}
