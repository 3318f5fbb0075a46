package reports

import (
	"context"
	"errors"
	"iter"
	"slices"

	"github.com/angelmondragon/marketreports-backend/internal/reports/cache"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
)

// Source is the row-level query surface the aggregators read from.
type Source interface {
	// DailyBookings returns per (market, day) booking counts ordered by date
	// then market name.
	DailyBookings(ctx context.Context, f Filter) ([]BookingRow, error)
	// FunnelSessionCounts returns distinct-session counts per (market, event)
	// for the given events, ordered by market name.
	FunnelSessionCounts(ctx context.Context, f Filter, eventIDs []int64) ([]FunnelCount, error)
}

// StepProvider resolves the configured funnel definition.
type StepProvider interface {
	FunnelSteps(ctx context.Context) ([]FunnelStep, error)
}

// StaticSteps serves a fixed funnel definition.
type StaticSteps []FunnelStep

func (s StaticSteps) FunnelSteps(context.Context) ([]FunnelStep, error) {
	return slices.Clone(s), nil
}

// BookingsAggregator serves daily booking counts through the report cache.
type BookingsAggregator struct {
	source Source
	cache  *cache.ReportCache
}

func NewBookingsAggregator(source Source, c *cache.ReportCache) *BookingsAggregator {
	return &BookingsAggregator{source: source, cache: c}
}

// Aggregated returns the cached rows for f, computing them on a miss. An empty
// scope yields no rows without touching the store or the cache.
func (a *BookingsAggregator) Aggregated(ctx context.Context, f Filter) ([]BookingRow, error) {
	if f.IsEmpty() {
		return []BookingRow{}, nil
	}
	return cache.Remember(ctx, a.cache, KindJobBookings.String(), f.Fingerprint(KindJobBookings),
		func(ctx context.Context) ([]BookingRow, error) {
			rows, err := a.source.DailyBookings(ctx, f)
			if err != nil {
				return nil, storeError(err, "bookings query failed")
			}
			if rows == nil {
				rows = []BookingRow{}
			}
			return rows, nil
		})
}

// Stream yields the same rows Aggregated returns, one at a time. Lookup errors
// surface before iteration starts.
func (a *BookingsAggregator) Stream(ctx context.Context, f Filter) (iter.Seq[BookingRow], error) {
	rows, err := a.Aggregated(ctx, f)
	if err != nil {
		return nil, err
	}
	return slices.Values(rows), nil
}

// Forget evicts the cached rows for f.
func (a *BookingsAggregator) Forget(ctx context.Context, f Filter) error {
	return a.cache.Forget(ctx, f.Fingerprint(KindJobBookings))
}

// FunnelAggregator serves computed funnel rows through the report cache.
type FunnelAggregator struct {
	source Source
	steps  StepProvider
	cache  *cache.ReportCache
}

func NewFunnelAggregator(source Source, steps StepProvider, c *cache.ReportCache) *FunnelAggregator {
	return &FunnelAggregator{source: source, steps: steps, cache: c}
}

// Aggregated returns the cached funnel for f. Steps are resolved on every call
// and keyed into the fingerprint; percentages are computed once on the miss
// path and cached with the rows.
func (a *FunnelAggregator) Aggregated(ctx context.Context, f Filter) ([]FunnelRow, error) {
	if f.IsEmpty() {
		return []FunnelRow{}, nil
	}
	steps, err := a.resolveSteps(ctx)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return []FunnelRow{}, nil
	}
	eventIDs := StepEventIDs(steps)
	return cache.Remember(ctx, a.cache, KindConversionFunnel.String(), f.FingerprintWithSteps(KindConversionFunnel, eventIDs),
		func(ctx context.Context) ([]FunnelRow, error) {
			counts, err := a.source.FunnelSessionCounts(ctx, f, eventIDs)
			if err != nil {
				return nil, storeError(err, "funnel query failed")
			}
			return CalculateFunnel(steps, counts), nil
		})
}

func (a *FunnelAggregator) resolveSteps(ctx context.Context) ([]FunnelStep, error) {
	steps, err := a.steps.FunnelSteps(ctx)
	if err != nil {
		return nil, storeError(err, "funnel steps unavailable")
	}
	return steps, nil
}

// Stream yields the cached funnel rows one at a time.
func (a *FunnelAggregator) Stream(ctx context.Context, f Filter) (iter.Seq[FunnelRow], error) {
	rows, err := a.Aggregated(ctx, f)
	if err != nil {
		return nil, err
	}
	return slices.Values(rows), nil
}

// Forget evicts the cached funnel for f under the current step definition.
func (a *FunnelAggregator) Forget(ctx context.Context, f Filter) error {
	steps, err := a.resolveSteps(ctx)
	if err != nil {
		return err
	}
	return a.cache.Forget(ctx, f.FingerprintWithSteps(KindConversionFunnel, StepEventIDs(steps)))
}

func storeError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, err, msg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
