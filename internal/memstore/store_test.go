package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

func newOrder(key, intent string) orders.NewOrder {
	return orders.NewOrder{
		UserID:          "u1",
		PaymentIntentID: intent,
		Lines:           []orders.OrderLine{orders.NewLine("GOLD1OZ", 2, 243_500)},
		IdempotencyKey:  key,
		Purpose:         orders.PurposeCheckout,
	}
}

func TestCreateOrderBindsKey(t *testing.T) {
	s := New()
	ctx := context.Background()

	o, err := s.CreateOrder(ctx, newOrder("k1", "pi_1"))
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, int64(487_000), o.TotalCents)

	k, err := s.IdempotencyKey(ctx, "k1", orders.PurposeCheckout)
	require.NoError(t, err)
	assert.Equal(t, o.ID, k.OrderID)

	_, err = s.IdempotencyKey(ctx, "k1", "refund")
	assert.ErrorIs(t, err, orders.ErrNotFound, "purpose is part of the key")
}

func TestCreateOrderConstraintsWriteNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.CreateOrder(ctx, newOrder("k1", "pi_1"))
	require.NoError(t, err)

	_, err = s.CreateOrder(ctx, newOrder("k1", "pi_2"))
	assert.ErrorIs(t, err, orders.ErrIdempotencyConflict)

	_, err = s.CreateOrder(ctx, newOrder("k2", "pi_1"))
	assert.Error(t, err)

	bad := newOrder("k3", "pi_3")
	bad.Lines[0].SubtotalCents++
	_, err = s.CreateOrder(ctx, bad)
	assert.Error(t, err)

	assert.Equal(t, 1, s.CountOrders())
	_, err = s.OrderByPaymentIntent(ctx, "pi_2")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestLatestSpotPicksNewestAsOf(t *testing.T) {
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.AppendSpot("gold", 1, base.Add(time.Hour))
	s.AppendSpot("gold", 2, base) // older row appended later
	s.AppendSpot("silver", 3, base.Add(2*time.Hour))

	sp, err := s.LatestSpot(context.Background(), "gold")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sp.PricePerOzCents)

	_, err = s.LatestSpot(context.Background(), "platinum")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestApplyTransition(t *testing.T) {
	s := New()
	ctx := context.Background()
	o, err := s.CreateOrder(ctx, newOrder("k1", "pi_1"))
	require.NoError(t, err)

	capture, _ := orders.TransitionFor(orders.PaymentCaptured)
	_, applied, err := s.ApplyTransition(ctx, o.ID, capture)
	require.NoError(t, err)
	assert.False(t, applied)

	authorize, _ := orders.TransitionFor(orders.PaymentAuthorized)
	prev, applied, err := s.ApplyTransition(ctx, o.ID, authorize)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, orders.StatusPending, prev)

	prev, applied, err = s.ApplyTransition(ctx, o.ID, capture)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, orders.StatusAuthorized, prev)

	_, applied, err = s.ApplyTransition(ctx, 999, authorize)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestSeedDemo(t *testing.T) {
	s := New()
	s.SeedDemo(time.Now())
	p, err := s.ProductBySKU(context.Background(), "SILV10OZ")
	require.NoError(t, err)
	assert.True(t, p.Active)
	_, err = s.LatestSpot(context.Background(), "silver")
	assert.NoError(t, err)
}
