package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper remembers webhook deliveries that were fully processed so gateway
// retries of the same event are acknowledged without work.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(rdb *redis.Client, prefix string, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, d.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("checking webhook event[%s]: %w", eventID, err)
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, eventID string) error {
	if err := d.rdb.SetNX(ctx, d.prefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err(); err != nil {
		return fmt.Errorf("marking webhook event[%s]: %w", eventID, err)
	}
	return nil
}

// NopDeduper processes every delivery; the entitlement insert is idempotent
// on its own.
type NopDeduper struct{}

func (NopDeduper) Seen(context.Context, string) (bool, error) { return false, nil }

func (NopDeduper) Mark(context.Context, string) error { return nil }
