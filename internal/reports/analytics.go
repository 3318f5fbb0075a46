package reports

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// BookingsAnalytics summarizes a bookings payload.
type BookingsAnalytics struct {
	TotalBookings   int64   `json:"total_bookings"`
	AverageBookings float64 `json:"average_bookings"`
	HighestMarket   *string `json:"highest_market"`
	LowestMarket    *string `json:"lowest_market"`
	HighestDate     *string `json:"highest_date"`
}

// SummarizeBookings derives totals from already aggregated rows. The average is
// per distinct day with bookings. Ties go to the market or day seen first.
func SummarizeBookings(rows []BookingRow) BookingsAnalytics {
	if len(rows) == 0 {
		return BookingsAnalytics{}
	}

	type total struct {
		key   string
		count int64
	}
	var (
		sum       int64
		marketTot []total
		dateTot   []total
		marketIdx = map[string]int{}
		dateIdx   = map[string]int{}
	)
	for _, r := range rows {
		sum += r.BookingsCount
		if i, ok := marketIdx[r.MarketName]; ok {
			marketTot[i].count += r.BookingsCount
		} else {
			marketIdx[r.MarketName] = len(marketTot)
			marketTot = append(marketTot, total{key: r.MarketName, count: r.BookingsCount})
		}
		if i, ok := dateIdx[r.Date]; ok {
			dateTot[i].count += r.BookingsCount
		} else {
			dateIdx[r.Date] = len(dateTot)
			dateTot = append(dateTot, total{key: r.Date, count: r.BookingsCount})
		}
	}

	byCountDesc := func(a, b total) int { return cmp.Compare(b.count, a.count) }
	slices.SortStableFunc(marketTot, byCountDesc)
	slices.SortStableFunc(dateTot, byCountDesc)

	highest := marketTot[0].key
	lowest := marketTot[len(marketTot)-1].key
	highestDate := formatHighestDate(dateTot[0].key, dateTot[0].count)

	return BookingsAnalytics{
		TotalBookings:   sum,
		AverageBookings: decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(dateTot))), 2).InexactFloat64(),
		HighestMarket:   &highest,
		LowestMarket:    &lowest,
		HighestDate:     &highestDate,
	}
}

func formatHighestDate(date string, count int64) string {
	parsed, err := time.Parse(DateLayout, date)
	if err != nil {
		return fmt.Sprintf("%s (%d)", date, count)
	}
	return fmt.Sprintf("%s (%d)", parsed.Format("Jan 02, 2006"), count)
}

// FunnelAnalytics summarizes a funnel payload across markets.
type FunnelAnalytics struct {
	Entries                     int64   `json:"entries"`
	Completions                 int64   `json:"completions"`
	OverallConversionPercentage float64 `json:"overall_conversion_percentage"`
}

// SummarizeFunnel totals the first and last steps across markets.
func SummarizeFunnel(rows []FunnelRow) FunnelAnalytics {
	if len(rows) == 0 {
		return FunnelAnalytics{}
	}
	first, last := rows[0].StepNumber, rows[0].StepNumber
	for _, r := range rows {
		first = min(first, r.StepNumber)
		last = max(last, r.StepNumber)
	}

	var out FunnelAnalytics
	for _, r := range rows {
		if r.StepNumber == first {
			out.Entries += r.ConversionsTotal
		}
		if r.StepNumber == last {
			out.Completions += r.ConversionsTotal
		}
	}
	out.OverallConversionPercentage = conversionPercentage(out.Completions, out.Entries)
	return out
}
