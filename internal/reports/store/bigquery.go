package store

import (
	"context"
	"errors"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/marketreports-backend/internal/reports"
)

const (
	dailyBookingsSQL = `
SELECT
  j.market_id AS market_id,
  m.name AS market_name,
  FORMAT_DATE('%%F', DATE(j.start)) AS day,
  COUNT(*) AS bookings
FROM %s AS j
JOIN %s AS m ON m.id = j.market_id
WHERE j.market_id IN UNNEST(@marketIDs)
  AND j.start >= @start AND j.start < @end
  AND j.deleted_at IS NULL
  AND m.deleted_at IS NULL
GROUP BY market_id, market_name, day
ORDER BY day ASC, market_name ASC
`

	funnelSessionsSQL = `
SELECT
  e.market_id AS market_id,
  m.name AS market_name,
  e.event_name_id AS event_name_id,
  n.name AS event_name,
  COUNT(DISTINCT e.session_id) AS sessions
FROM %s AS e
JOIN %s AS m ON m.id = e.market_id
LEFT JOIN %s AS n ON n.id = e.event_name_id
WHERE e.market_id IN UNNEST(@marketIDs)
  AND e.event_name_id IN UNNEST(@eventIDs)
  AND e.created_at >= @start AND e.created_at < @end
  AND e.deleted_at IS NULL
  AND m.deleted_at IS NULL
GROUP BY market_id, market_name, event_name_id, event_name
ORDER BY market_name ASC, market_id ASC, event_name_id ASC
`
)

// Querier runs parameterized warehouse SQL. *pkg/bigquery.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

// BigQueryTables names the warehouse tables the source reads.
type BigQueryTables struct {
	Bookings   string
	Events     string
	Markets    string
	EventNames string
}

// BigQuerySource reads report rows from the warehouse mirror of the
// operational tables.
type BigQuerySource struct {
	client Querier
	tables BigQueryTables
}

func NewBigQuerySource(client Querier, tables BigQueryTables) (*BigQuerySource, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if tables.Bookings == "" || tables.Events == "" || tables.Markets == "" || tables.EventNames == "" {
		return nil, fmt.Errorf("bookings, events, markets and event names tables are required")
	}
	return &BigQuerySource{client: client, tables: tables}, nil
}

func (s *BigQuerySource) bookingsSQL() string {
	return fmt.Sprintf(dailyBookingsSQL, s.tables.Bookings, s.tables.Markets)
}

func (s *BigQuerySource) funnelSQL() string {
	return fmt.Sprintf(funnelSessionsSQL, s.tables.Events, s.tables.Markets, s.tables.EventNames)
}

func baseParams(f reports.Filter) []cloudbigquery.QueryParameter {
	return []cloudbigquery.QueryParameter{
		{Name: "marketIDs", Value: f.MarketIDs()},
		{Name: "start", Value: f.Start()},
		{Name: "end", Value: f.EndExclusive()},
	}
}

func (s *BigQuerySource) DailyBookings(ctx context.Context, f reports.Filter) ([]reports.BookingRow, error) {
	if f.IsEmpty() {
		return []reports.BookingRow{}, nil
	}
	it, err := s.client.Query(ctx, s.bookingsSQL(), baseParams(f))
	if err != nil {
		return nil, fmt.Errorf("query daily bookings: %w", err)
	}

	rows := []reports.BookingRow{}
	for {
		var row struct {
			MarketID   int64  `bigquery:"market_id"`
			MarketName string `bigquery:"market_name"`
			Day        string `bigquery:"day"`
			Bookings   int64  `bigquery:"bookings"`
		}
		if err := it.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("reading bookings row: %w", err)
		}
		rows = append(rows, reports.BookingRow{
			MarketID:      row.MarketID,
			MarketName:    row.MarketName,
			Date:          row.Day,
			BookingsCount: row.Bookings,
		})
	}
	return rows, nil
}

func (s *BigQuerySource) FunnelSessionCounts(ctx context.Context, f reports.Filter, eventIDs []int64) ([]reports.FunnelCount, error) {
	if f.IsEmpty() || len(eventIDs) == 0 {
		return []reports.FunnelCount{}, nil
	}
	params := append(baseParams(f), cloudbigquery.QueryParameter{Name: "eventIDs", Value: eventIDs})
	it, err := s.client.Query(ctx, s.funnelSQL(), params)
	if err != nil {
		return nil, fmt.Errorf("query funnel sessions: %w", err)
	}

	counts := []reports.FunnelCount{}
	for {
		var row struct {
			MarketID    int64                    `bigquery:"market_id"`
			MarketName  string                   `bigquery:"market_name"`
			EventNameID int64                    `bigquery:"event_name_id"`
			EventName   cloudbigquery.NullString `bigquery:"event_name"`
			Sessions    int64                    `bigquery:"sessions"`
		}
		if err := it.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("reading funnel row: %w", err)
		}
		name := reports.UnknownEventName
		if row.EventName.Valid && row.EventName.StringVal != "" {
			name = row.EventName.StringVal
		}
		counts = append(counts, reports.FunnelCount{
			MarketID:   row.MarketID,
			MarketName: row.MarketName,
			EventID:    row.EventNameID,
			EventName:  name,
			Sessions:   row.Sessions,
		})
	}
	return counts, nil
}
