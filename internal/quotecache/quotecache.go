// Package quotecache is a Redis-backed, TTL-bounded cache for market
// quotes, adapted from the teacher's internal/cache.QueryCache (same
// Get/Set/stats shape, ported from go-redis v8 to v9 and specialized to
// ports.Quote instead of arbitrary query results).
package quotecache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradecore/engine/internal/ports"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("quotecache: miss")

// Stats tracks cache hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache wraps a redis.Client with quote-shaped Get/Set and two TTL bands:
// a longer one for REST-polled quotes, a shorter one for the live
// streaming feed (spec §6.2).
type Cache struct {
	client      *redis.Client
	stats       Stats
	quoteTTL    time.Duration
	streamTTL   time.Duration
}

// Config tunes the two TTL bands.
type Config struct {
	QuoteTTL  time.Duration // default 60s, REST-polled quotes
	StreamTTL time.Duration // default 5s, live streaming cache
}

// DefaultConfig matches spec §6.2's stated cache lifetimes.
func DefaultConfig() Config {
	return Config{QuoteTTL: 60 * time.Second, StreamTTL: 5 * time.Second}
}

// New constructs a Cache over an existing redis.Client.
func New(client *redis.Client, cfg Config) *Cache {
	return &Cache{client: client, quoteTTL: cfg.QuoteTTL, streamTTL: cfg.StreamTTL}
}

func quoteKey(symbol string) string { return "quote:" + symbol }

// GetQuote returns the cached quote for symbol, or ErrMiss.
func (c *Cache) GetQuote(ctx context.Context, symbol string) (*ports.Quote, error) {
	data, err := c.client.Get(ctx, quoteKey(symbol)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddInt64(&c.stats.Misses, 1)
			return nil, ErrMiss
		}
		return nil, err
	}
	atomic.AddInt64(&c.stats.Hits, 1)

	var q ports.Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// SetQuote caches a REST-polled quote under the quote TTL.
func (c *Cache) SetQuote(ctx context.Context, q ports.Quote) error {
	return c.set(ctx, quoteKey(q.Symbol), q, c.quoteTTL)
}

// SetStreamingQuote caches a live-streamed quote under the shorter
// streaming TTL, reflecting that it goes stale faster than a polled quote.
func (c *Cache) SetStreamingQuote(ctx context.Context, q ports.Quote) error {
	return c.set(ctx, quoteKey(q.Symbol), q, c.streamTTL)
}

func (c *Cache) set(ctx context.Context, key string, q ports.Quote, ttl time.Duration) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Invalidate removes the cached quote for a symbol.
func (c *Cache) Invalidate(ctx context.Context, symbol string) error {
	return c.client.Del(ctx, quoteKey(symbol)).Err()
}

// GetStats returns a snapshot of hit/miss counters.
func (c *Cache) GetStats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.stats.Hits),
		Misses: atomic.LoadInt64(&c.stats.Misses),
	}
}
