package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mokanichokani/ledger-service/internal/logger"
)

// ViewCache stores one JSON document per key in Redis, typed to the view it
// holds. The telemetry recorder keeps its per-account activity views in
// one. A zero ttl means keys never expire.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewViewCache creates a ViewCache backed by the provided Redis client. A
// nil logger is replaced with a no-op.
func NewViewCache[T any](client *goredis.Client, ttl time.Duration, log *logger.Logger) *ViewCache[T] {
	if log == nil {
		log = logger.NewNop()
	}
	return &ViewCache[T]{client: client, ttl: ttl, log: log}
}

// Get loads and decodes the view stored under key. A miss, an expired key
// and an undecodable value all come back as (nil, false).
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var view T
	if err := json.Unmarshal(raw, &view); err != nil {
		return nil, false
	}
	return &view, true
}

// Set encodes view and writes it under key with the cache TTL. Failures are
// logged and swallowed: the views are derived, so a lost write costs
// freshness, never correctness.
func (c *ViewCache[T]) Set(ctx context.Context, key string, view *T) {
	raw, err := json.Marshal(view)
	if err != nil {
		c.log.Warn("view encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("view write failed", "key", key, "error", err)
	}
}
