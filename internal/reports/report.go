// Package reports aggregates market-scoped booking and funnel data, caches the
// aggregation and reshapes it for charts and CSV export.
package reports

import (
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
)

// Kind names a report; it doubles as the cache namespace and export filename prefix.
type Kind string

const (
	KindJobBookings      Kind = "job-bookings"
	KindConversionFunnel Kind = "conversion-funnel"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindJobBookings, KindConversionFunnel:
		return true
	default:
		return false
	}
}

// ParseKind validates a raw report name.
func ParseKind(value string) (Kind, error) {
	k := Kind(value)
	if !k.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "unknown report").WithDetails(map[string]any{"report": value})
	}
	return k, nil
}
