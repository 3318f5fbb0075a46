package reports

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/marketreports-backend/internal/reports/cache"
)

type fakeSource struct {
	mu          sync.Mutex
	bookings    []BookingRow
	counts      []FunnelCount
	err         error
	bookingCall int
	funnelCall  int
	lastIDs     []int64
}

func (s *fakeSource) DailyBookings(_ context.Context, _ Filter) ([]BookingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookingCall++
	if s.err != nil {
		return nil, s.err
	}
	return append([]BookingRow(nil), s.bookings...), nil
}

func (s *fakeSource) FunnelSessionCounts(_ context.Context, _ Filter, eventIDs []int64) ([]FunnelCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funnelCall++
	s.lastIDs = append([]int64(nil), eventIDs...)
	if s.err != nil {
		return nil, s.err
	}
	return append([]FunnelCount(nil), s.counts...), nil
}

func (s *fakeSource) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookingCall, s.funnelCall
}

func newTestCache() *cache.ReportCache {
	return cache.New(cache.NewMemoryStore(), time.Hour, nil, nil)
}

func marketSevenBookings() []BookingRow {
	return []BookingRow{
		{MarketID: 7, MarketName: "Austin", Date: "2024-01-01", BookingsCount: 2},
		{MarketID: 7, MarketName: "Austin", Date: "2024-01-02", BookingsCount: 1},
	}
}
