package reports

import (
	"iter"
	"strconv"
	"time"
)

var (
	BookingsCSVHeaders = []string{"market", "date", "bookings"}
	FunnelCSVHeaders   = []string{"market", "event", "conversions_total", "conversions_percentage"}
)

// BookingRecords maps booking rows onto CSV records lazily.
func BookingRecords(rows iter.Seq[BookingRow]) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for r := range rows {
			record := []string{r.MarketName, r.Date, strconv.FormatInt(r.BookingsCount, 10)}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// FunnelRecords maps funnel rows onto CSV records lazily.
func FunnelRecords(rows iter.Seq[FunnelRow]) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		for r := range rows {
			record := []string{
				r.MarketName,
				r.EventName,
				strconv.FormatInt(r.ConversionsTotal, 10),
				FormatPercentage(r.ConversionsPercentage),
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// FormatPercentage renders a percentage with two decimals and a trailing "%".
func FormatPercentage(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 2, 64) + "%"
}

// ExportFilename is "<report>-<YYYY-MM-DD>.csv" for the given day.
func ExportFilename(kind Kind, now time.Time) string {
	return string(kind) + "-" + now.UTC().Format(DateLayout) + ".csv"
}
