package reports

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/marketreports-backend/api/middleware"
	"github.com/angelmondragon/marketreports-backend/internal/markets"
	"github.com/angelmondragon/marketreports-backend/internal/reports"
	"github.com/angelmondragon/marketreports-backend/internal/reports/cache"
	"github.com/angelmondragon/marketreports-backend/pkg/auth"
	"github.com/angelmondragon/marketreports-backend/pkg/csvstream"
)

type testSource struct {
	mu       sync.Mutex
	bookings []reports.BookingRow
	counts   []reports.FunnelCount
	err      error
	filters  []reports.Filter
}

func (s *testSource) DailyBookings(_ context.Context, f reports.Filter) ([]reports.BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	if s.err != nil {
		return nil, s.err
	}
	return append([]reports.BookingRow(nil), s.bookings...), nil
}

func (s *testSource) FunnelSessionCounts(_ context.Context, f reports.Filter, _ []int64) ([]reports.FunnelCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	if s.err != nil {
		return nil, s.err
	}
	return append([]reports.FunnelCount(nil), s.counts...), nil
}

func (s *testSource) lastFilter() (reports.Filter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.filters) == 0 {
		return reports.Filter{}, false
	}
	return s.filters[len(s.filters)-1], true
}

func (s *testSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filters)
}

type testResolver struct {
	ids    []int64
	err    error
	caller markets.Caller
}

func (r *testResolver) AccessibleMarketIDs(_ context.Context, caller markets.Caller) ([]int64, error) {
	r.caller = caller
	if r.err != nil {
		return nil, r.err
	}
	return r.ids, nil
}

func newTestReportService(t *testing.T, src *testSource) reports.Service {
	t.Helper()
	c := cache.New(cache.NewMemoryStore(), time.Hour, nil, nil)
	svc, err := reports.NewService(reports.ServiceParams{
		Bookings: reports.NewBookingsAggregator(src, c),
		Funnel:   reports.NewFunnelAggregator(src, reports.StaticSteps(reports.StepsFromEventIDs([]int64{2, 3})), c),
		Exporter: csvstream.New(1),
		Now:      func() time.Time { return time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func withMarketUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(middleware.WithCaller(r.Context(), userID, auth.RoleMarketUser))
}

func withAdmin(r *http.Request, userID int64) *http.Request {
	return r.WithContext(middleware.WithCaller(r.Context(), userID, auth.RoleAdmin))
}

func fixedNow(t *testing.T, now time.Time) {
	t.Helper()
	timeNowUTC = func() time.Time { return now }
	t.Cleanup(func() { timeNowUTC = func() time.Time { return time.Now().UTC() } })
}
