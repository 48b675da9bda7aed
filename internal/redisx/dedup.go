package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup claims event ids so at-least-once deliveries are handled once.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

func (d *Dedup) key(eventID string) string { return fmt.Sprintf(KeyDedup, d.service, eventID) }

// Claim returns true for the first caller of eventID within TTLDedup.
func (d *Dedup) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, d.key(eventID), "1", TTLDedup).Result()
}

// Release gives a claim back so a retry of a failed event can claim it again.
func (d *Dedup) Release(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, d.key(eventID)).Err()
}
