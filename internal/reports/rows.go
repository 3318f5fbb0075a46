package reports

// BookingRow is one (market, day) bucket with at least one booking.
type BookingRow struct {
	MarketID      int64  `json:"market_id"`
	MarketName    string `json:"market_name"`
	Date          string `json:"date"`
	BookingsCount int64  `json:"bookings_count"`
}

// FunnelCount is a raw distinct-session count for one (market, event).
type FunnelCount struct {
	MarketID   int64
	MarketName string
	EventID    int64
	EventName  string
	Sessions   int64
}

// FunnelRow is one (market, step) of a computed conversion funnel.
type FunnelRow struct {
	MarketID              int64   `json:"market_id"`
	MarketName            string  `json:"market_name"`
	EventID               int64   `json:"event_name_id"`
	EventName             string  `json:"event_name"`
	StepNumber            int     `json:"step_number"`
	ConversionsTotal      int64   `json:"conversions_total"`
	ConversionsPercentage float64 `json:"conversions_percentage"`
}
