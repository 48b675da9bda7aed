package redisx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "order_status:42", statusKey(42))
	assert.Equal(t, "stock:GOLD1OZ", stockKey("GOLD1OZ"))
	assert.Equal(t, "dedup:inventory:ev-1", NewDedup(nil, "inventory").key("ev-1"))
}

func TestNilStatusCacheNeverHits(t *testing.T) {
	c := NewStatusCache(nil)
	assert.Nil(t, c)

	ctx := context.Background()
	c.Set(ctx, 1, orders.StatusCaptured)
	c.Fill(ctx, 1, orders.StatusPending)
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)
}
