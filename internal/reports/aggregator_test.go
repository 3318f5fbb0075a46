package reports

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
)

func januaryFilter(t *testing.T, ids ...int64) Filter {
	t.Helper()
	f, err := NewFilter(ids, day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	return f
}

func TestBookingsAggregatedReturnsDailyCounts(t *testing.T) {
	src := &fakeSource{bookings: marketSevenBookings()}
	agg := NewBookingsAggregator(src, newTestCache())

	rows, err := agg.Aggregated(context.Background(), januaryFilter(t, 7))
	require.NoError(t, err)
	assert.Equal(t, marketSevenBookings(), rows)
}

func TestBookingsAggregatedIsCached(t *testing.T) {
	src := &fakeSource{bookings: marketSevenBookings()}
	agg := NewBookingsAggregator(src, newTestCache())
	ctx := context.Background()

	first, err := agg.Aggregated(ctx, januaryFilter(t, 7))
	require.NoError(t, err)

	src.bookings = nil
	second, err := agg.Aggregated(ctx, januaryFilter(t, 7))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	calls, _ := src.calls()
	assert.Equal(t, 1, calls)
}

func TestBookingsForgetRecomputes(t *testing.T) {
	src := &fakeSource{bookings: marketSevenBookings()}
	agg := NewBookingsAggregator(src, newTestCache())
	ctx := context.Background()
	f := januaryFilter(t, 7)

	_, err := agg.Aggregated(ctx, f)
	require.NoError(t, err)
	require.NoError(t, agg.Forget(ctx, f))

	src.bookings = []BookingRow{{MarketID: 7, MarketName: "Austin", Date: "2024-01-03", BookingsCount: 9}}
	rows, err := agg.Aggregated(ctx, f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(9), rows[0].BookingsCount)
}

func TestBookingsStreamMatchesAggregated(t *testing.T) {
	src := &fakeSource{bookings: marketSevenBookings()}
	agg := NewBookingsAggregator(src, newTestCache())
	ctx := context.Background()

	seq, err := agg.Stream(ctx, januaryFilter(t, 7))
	require.NoError(t, err)
	rows, err := agg.Aggregated(ctx, januaryFilter(t, 7))
	require.NoError(t, err)

	assert.Equal(t, rows, slices.Collect(seq))
}

func TestEmptyScopeSkipsSource(t *testing.T) {
	src := &fakeSource{bookings: marketSevenBookings()}
	ctx := context.Background()
	empty := januaryFilter(t)

	bookings, err := NewBookingsAggregator(src, newTestCache()).Aggregated(ctx, empty)
	require.NoError(t, err)
	assert.NotNil(t, bookings)
	assert.Empty(t, bookings)

	funnel, err := NewFunnelAggregator(src, StaticSteps(StepsFromEventIDs(DefaultFunnelEventIDs)), newTestCache()).Aggregated(ctx, empty)
	require.NoError(t, err)
	assert.NotNil(t, funnel)
	assert.Empty(t, funnel)

	b, f := src.calls()
	assert.Zero(t, b)
	assert.Zero(t, f)
}

func TestNilSourceRowsBecomeEmpty(t *testing.T) {
	src := &fakeSource{}
	rows, err := NewBookingsAggregator(src, newTestCache()).Aggregated(context.Background(), januaryFilter(t, 7))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSourceFailureIsDependencyAndNotCached(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	agg := NewBookingsAggregator(src, newTestCache())
	ctx := context.Background()
	f := januaryFilter(t, 7)

	_, err := agg.Aggregated(ctx, f)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	assert.True(t, pkgerrors.IsRetryable(err))

	src.err = nil
	src.bookings = marketSevenBookings()
	rows, err := agg.Aggregated(ctx, f)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	calls, _ := src.calls()
	assert.Equal(t, 2, calls)
}

func TestSourceDeadlineIsCanceled(t *testing.T) {
	src := &fakeSource{err: context.DeadlineExceeded}
	_, err := NewBookingsAggregator(src, newTestCache()).Aggregated(context.Background(), januaryFilter(t, 7))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeCanceled, pkgerrors.CodeOf(err))
}

func TestTypedSourceErrorsPassThrough(t *testing.T) {
	src := &fakeSource{err: pkgerrors.New(pkgerrors.CodeValidation, "bad market")}
	_, err := NewBookingsAggregator(src, newTestCache()).Aggregated(context.Background(), januaryFilter(t, 7))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestFunnelAggregatedComputesPercentages(t *testing.T) {
	src := &fakeSource{counts: []FunnelCount{
		{MarketID: 7, MarketName: "Austin", EventID: 2, EventName: "Visit", Sessions: 100},
		{MarketID: 7, MarketName: "Austin", EventID: 3, EventName: "Quote", Sessions: 40},
	}}
	agg := NewFunnelAggregator(src, StaticSteps(StepsFromEventIDs([]int64{2, 3})), newTestCache())

	rows, err := agg.Aggregated(context.Background(), januaryFilter(t, 7))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(100), rows[0].ConversionsPercentage)
	assert.Equal(t, float64(40), rows[1].ConversionsPercentage)
	assert.Equal(t, []int64{2, 3}, src.lastIDs)
}

func TestFunnelCachedSeparatelyFromBookings(t *testing.T) {
	src := &fakeSource{
		bookings: marketSevenBookings(),
		counts:   []FunnelCount{{MarketID: 7, MarketName: "Austin", EventID: 2, EventName: "Visit", Sessions: 5}},
	}
	c := newTestCache()
	ctx := context.Background()
	f := januaryFilter(t, 7)

	_, err := NewBookingsAggregator(src, c).Aggregated(ctx, f)
	require.NoError(t, err)
	rows, err := NewFunnelAggregator(src, StaticSteps(StepsFromEventIDs([]int64{2})), c).Aggregated(ctx, f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].ConversionsTotal)
}

type failingSteps struct{}

func (failingSteps) FunnelSteps(context.Context) ([]FunnelStep, error) {
	return nil, errors.New("settings table missing")
}

func TestFunnelStepFailureIsDependency(t *testing.T) {
	src := &fakeSource{}
	_, err := NewFunnelAggregator(src, failingSteps{}, newTestCache()).Aggregated(context.Background(), januaryFilter(t, 7))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
	_, funnelCalls := src.calls()
	assert.Zero(t, funnelCalls)
}

func TestFunnelWithoutStepsIsEmpty(t *testing.T) {
	src := &fakeSource{}
	rows, err := NewFunnelAggregator(src, StaticSteps(nil), newTestCache()).Aggregated(context.Background(), januaryFilter(t, 7))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type switchableSteps struct {
	mu  sync.Mutex
	ids []int64
}

func (s *switchableSteps) FunnelSteps(context.Context) ([]FunnelStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StepsFromEventIDs(s.ids), nil
}

func (s *switchableSteps) set(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = ids
}

func TestFunnelRecomputesWhenStepsChange(t *testing.T) {
	src := &fakeSource{counts: []FunnelCount{
		{MarketID: 7, MarketName: "Austin", EventID: 2, EventName: "Visit", Sessions: 100},
		{MarketID: 7, MarketName: "Austin", EventID: 3, EventName: "Quote", Sessions: 40},
		{MarketID: 7, MarketName: "Austin", EventID: 7, EventName: "Book", Sessions: 10},
	}}
	steps := &switchableSteps{ids: []int64{2, 3}}
	agg := NewFunnelAggregator(src, steps, newTestCache())
	ctx := context.Background()
	f := januaryFilter(t, 7)

	rows, err := agg.Aggregated(ctx, f)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	_, err = agg.Aggregated(ctx, f)
	require.NoError(t, err)
	_, funnelCalls := src.calls()
	assert.Equal(t, 1, funnelCalls)

	steps.set(2, 3, 7)
	rows, err = agg.Aggregated(ctx, f)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, float64(25), rows[2].ConversionsPercentage)
	assert.Equal(t, []int64{2, 3, 7}, src.lastIDs)
	_, funnelCalls = src.calls()
	assert.Equal(t, 2, funnelCalls)
}

func TestFunnelForgetUsesCurrentSteps(t *testing.T) {
	src := &fakeSource{counts: []FunnelCount{
		{MarketID: 7, MarketName: "Austin", EventID: 2, EventName: "Visit", Sessions: 100},
	}}
	agg := NewFunnelAggregator(src, StaticSteps(StepsFromEventIDs([]int64{2})), newTestCache())
	ctx := context.Background()
	f := januaryFilter(t, 7)

	_, err := agg.Aggregated(ctx, f)
	require.NoError(t, err)
	require.NoError(t, agg.Forget(ctx, f))
	_, err = agg.Aggregated(ctx, f)
	require.NoError(t, err)

	_, funnelCalls := src.calls()
	assert.Equal(t, 2, funnelCalls)
}

func TestFunnelForgetStepFailureIsDependency(t *testing.T) {
	err := NewFunnelAggregator(&fakeSource{}, failingSteps{}, newTestCache()).Forget(context.Background(), januaryFilter(t, 7))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}
