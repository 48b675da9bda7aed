package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Stock keeps mock fulfillment quantities. Unknown skus read as the default.
type Stock struct {
	rdb        *redis.Client
	defaultQty int64
}

func NewStock(rdb *redis.Client, defaultQty int64) *Stock {
	return &Stock{rdb: rdb, defaultQty: defaultQty}
}

func stockKey(sku string) string { return fmt.Sprintf(KeyStock, sku) }

func (s *Stock) Get(ctx context.Context, sku string) (int64, error) {
	n, err := s.rdb.Get(ctx, stockKey(sku)).Int64()
	if errors.Is(err, redis.Nil) {
		return s.defaultQty, nil
	}
	return n, err
}

func (s *Stock) Set(ctx context.Context, sku string, qty int64) error {
	return s.rdb.Set(ctx, stockKey(sku), qty, TTLStock).Err()
}

// Decrement seeds a missing key with the default and subtracts qty. The
// result may go negative; there is no reservation.
func (s *Stock) Decrement(ctx context.Context, sku string, qty int64) (int64, error) {
	key := stockKey(sku)
	pipe := s.rdb.TxPipeline()
	pipe.SetNX(ctx, key, s.defaultQty, TTLStock)
	left := pipe.DecrBy(ctx, key, qty)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return left.Val(), nil
}
