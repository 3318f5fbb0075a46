// Package cache keeps computed report payloads keyed by filter fingerprint.
package cache

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/marketreports-backend/pkg/logger"
	"github.com/angelmondragon/marketreports-backend/pkg/metrics"
)

// DefaultTTL is how long a computed report stays fresh.
const DefaultTTL = time.Hour

// Store is the byte-level backend behind ReportCache.
type Store interface {
	// Get returns the payload and true on hit, nil and false on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ReportCache wraps a Store with encode/decode, miss collapsing and metrics.
type ReportCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.ReportMetrics
	logg    *logger.Logger
}

func New(store Store, ttl time.Duration, m *metrics.ReportMetrics, logg *logger.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &ReportCache{store: store, ttl: ttl, metrics: m, logg: logg}
}

// TTL reports the freshness window applied to every entry.
func (c *ReportCache) TTL() time.Duration {
	return c.ttl
}

// Forget drops key immediately.
func (c *ReportCache) Forget(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("forget %s: %w", key, err)
	}
	return nil
}

// Remember returns the cached payload for key, or runs compute, stores its
// result and returns it. A failed compute is never stored. Concurrent misses
// for the same key share one compute; every caller decodes its own copy of the
// stored bytes so results are never aliased between requests.
//
// Cache backend failures degrade to computing without caching.
func Remember[T any](ctx context.Context, c *ReportCache, report, key string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	ctx = c.logg.WithFields(ctx, map[string]any{"report": report, "cache_key": key})

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.metrics.IncCache(report, metrics.CacheResultError)
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "report cache read failed")
	} else if ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			c.metrics.IncCache(report, metrics.CacheResultHit)
			c.logg.Debug(ctx, "report cache hit")
			return out, nil
		}
		c.logg.Warn(ctx, "report cache entry undecodable, recomputing")
	}

	c.metrics.IncCache(report, metrics.CacheResultMiss)
	c.logg.Debug(ctx, "report cache miss")

	ch := c.group.DoChan(key, func() (any, error) {
		// detached so one caller going away does not fail the others
		computeCtx := context.WithoutCancel(ctx)
		started := time.Now()
		value, err := compute(computeCtx)
		c.metrics.ObserveCompute(report, time.Since(started))
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", report, err)
		}
		if err := c.store.Set(computeCtx, key, encoded, c.ttl); err != nil {
			c.metrics.IncCache(report, metrics.CacheResultError)
			c.logg.Warn(c.logg.WithField(computeCtx, "error", err.Error()), "report cache write failed")
		}
		return encoded, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		var out T
		if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
			return zero, fmt.Errorf("decode %s payload: %w", report, err)
		}
		return out, nil
	}
}
