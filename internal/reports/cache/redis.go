package cache

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/marketreports-backend/pkg/logger"
	"github.com/angelmondragon/marketreports-backend/pkg/redis"
)

// KV is the slice of the redis client the store relies on.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ReportKey(fingerprint string) string
}

// BreakerSettings controls when the redis store stops being consulted.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	Cooldown            time.Duration
}

// ErrBypassed is returned while the breaker is open; ReportCache treats it
// like any other backend failure and computes directly.
var ErrBypassed = errors.New("report cache bypassed: redis breaker open")

// RedisStore is a shared Store backed by redis and guarded by a circuit breaker.
type RedisStore struct {
	kv      KV
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewRedisStore(kv KV, settings BreakerSettings, logg *logger.Logger) *RedisStore {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "report-cache-redis",
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "report cache breaker state change")
		},
	})

	return &RedisStore{kv: kv, breaker: breaker}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.breaker.Execute(func() ([]byte, error) {
		raw, err := r.kv.Get(ctx, r.kv.ReportKey(key))
		if redis.IsNil(err) {
			return nil, nil
		}
		return raw, err
	})
	if err != nil {
		return nil, false, translateBreakerErr(err)
	}
	if payload == nil {
		return nil, false, nil
	}
	return payload, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.breaker.Execute(func() ([]byte, error) {
		return nil, r.kv.Set(ctx, r.kv.ReportKey(key), value, ttl)
	})
	return translateBreakerErr(err)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := r.breaker.Execute(func() ([]byte, error) {
		return nil, r.kv.Del(ctx, r.kv.ReportKey(key))
	})
	return translateBreakerErr(err)
}

// State exposes the breaker state for health reporting.
func (r *RedisStore) State() string {
	return r.breaker.State().String()
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBypassed
	}
	return err
}
