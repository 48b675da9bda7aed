package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-bullion-checkout/internal/orders"
)

// StatusCache caches order status. Writers that change a status call Set;
// readers only Fill, which never overwrites. A nil *StatusCache is a valid
// cache that never hits. Errors are swallowed; Postgres is the source of truth.
type StatusCache struct{ rdb *redis.Client }

func NewStatusCache(rdb *redis.Client) *StatusCache {
	if rdb == nil {
		return nil
	}
	return &StatusCache{rdb: rdb}
}

func statusKey(orderID int64) string { return fmt.Sprintf(KeyOrderStatus, orderID) }

func (c *StatusCache) Get(ctx context.Context, orderID int64) (orders.Status, bool) {
	if c == nil {
		return "", false
	}
	s, err := c.rdb.Get(ctx, statusKey(orderID)).Result()
	if err != nil || s == "" {
		return "", false
	}
	return orders.Status(s), true
}

func (c *StatusCache) Set(ctx context.Context, orderID int64, status orders.Status) {
	if c == nil {
		return
	}
	_ = c.rdb.Set(ctx, statusKey(orderID), string(status), TTLStatusCache).Err()
}

// Fill caches status only when no entry exists, so a reader holding a value
// read before a transition cannot overwrite the writer's Set.
func (c *StatusCache) Fill(ctx context.Context, orderID int64, status orders.Status) {
	if c == nil {
		return
	}
	_ = c.rdb.SetNX(ctx, statusKey(orderID), string(status), TTLStatusCache).Err()
}
