// Package store implements the report row sources over the relational store
// and the BigQuery warehouse.
package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketreports-backend/internal/reports"
)

// SQLSource reads bookings and funnel events through GORM. It works against
// postgres and sqlite.
type SQLSource struct {
	db *gorm.DB
}

// NewSQLSource binds a GORM DB to the report queries.
func NewSQLSource(db *gorm.DB) (*SQLSource, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db required")
	}
	return &SQLSource{db: db}, nil
}

type bookingScan struct {
	MarketID   int64
	MarketName string
	Day        string
	Bookings   int64
}

// DailyBookings counts non-deleted jobs per market and start day.
func (s *SQLSource) DailyBookings(ctx context.Context, f reports.Filter) ([]reports.BookingRow, error) {
	if f.IsEmpty() {
		return []reports.BookingRow{}, nil
	}
	day := dayExpr(s.db.Dialector.Name(), "j.start")

	var scanned []bookingScan
	err := s.db.WithContext(ctx).
		Table("log_service_titan_jobs AS j").
		Select("j.market_id AS market_id, m.name AS market_name, "+day+" AS day, COUNT(*) AS bookings").
		Joins("JOIN markets AS m ON m.id = j.market_id").
		Where("j.market_id IN ?", f.MarketIDs()).
		Where("j.start >= ? AND j.start < ?", f.Start(), f.EndExclusive()).
		Where("j.deleted_at IS NULL AND m.deleted_at IS NULL").
		Group("j.market_id, m.name, " + day).
		Order("day ASC, m.name ASC").
		Scan(&scanned).Error
	if err != nil {
		return nil, fmt.Errorf("daily bookings: %w", err)
	}

	rows := make([]reports.BookingRow, 0, len(scanned))
	for _, r := range scanned {
		rows = append(rows, reports.BookingRow{
			MarketID:      r.MarketID,
			MarketName:    r.MarketName,
			Date:          r.Day,
			BookingsCount: r.Bookings,
		})
	}
	return rows, nil
}

type funnelScan struct {
	MarketID    int64
	MarketName  string
	EventNameID int64
	EventName   *string
	Sessions    int64
}

// FunnelSessionCounts counts distinct sessions per market and event.
func (s *SQLSource) FunnelSessionCounts(ctx context.Context, f reports.Filter, eventIDs []int64) ([]reports.FunnelCount, error) {
	if f.IsEmpty() || len(eventIDs) == 0 {
		return []reports.FunnelCount{}, nil
	}

	var scanned []funnelScan
	err := s.db.WithContext(ctx).
		Table("log_events AS e").
		Select("e.market_id AS market_id, m.name AS market_name, e.event_name_id AS event_name_id, n.name AS event_name, COUNT(DISTINCT e.session_id) AS sessions").
		Joins("JOIN markets AS m ON m.id = e.market_id").
		Joins("LEFT JOIN event_names AS n ON n.id = e.event_name_id").
		Where("e.market_id IN ?", f.MarketIDs()).
		Where("e.event_name_id IN ?", eventIDs).
		Where("e.created_at >= ? AND e.created_at < ?", f.Start(), f.EndExclusive()).
		Where("e.deleted_at IS NULL AND m.deleted_at IS NULL").
		Group("e.market_id, m.name, e.event_name_id, n.name").
		Order("m.name ASC, e.market_id ASC, e.event_name_id ASC").
		Scan(&scanned).Error
	if err != nil {
		return nil, fmt.Errorf("funnel session counts: %w", err)
	}

	counts := make([]reports.FunnelCount, 0, len(scanned))
	for _, r := range scanned {
		name := reports.UnknownEventName
		if r.EventName != nil && *r.EventName != "" {
			name = *r.EventName
		}
		counts = append(counts, reports.FunnelCount{
			MarketID:   r.MarketID,
			MarketName: r.MarketName,
			EventID:    r.EventNameID,
			EventName:  name,
			Sessions:   r.Sessions,
		})
	}
	return counts, nil
}

// dayExpr renders column as a YYYY-MM-DD string in the dialect's syntax.
func dayExpr(dialect, column string) string {
	switch dialect {
	case "sqlite":
		return "DATE(" + column + ")"
	default:
		return "TO_CHAR(" + column + ", 'YYYY-MM-DD')"
	}
}
