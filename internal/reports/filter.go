package reports

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"time"

	json "github.com/goccy/go-json"

	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
)

// DateLayout is the wire format for report dates.
const DateLayout = "2006-01-02"

// Filter is the normalized, immutable scope of a report request. Market ids are
// sorted and unique; dates are UTC midnights and the range is inclusive.
type Filter struct {
	marketIDs []int64
	start     time.Time
	end       time.Time
}

// NewFilter builds a filter from an already-authorized market set.
func NewFilter(marketIDs []int64, start, end time.Time) (Filter, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "end_date must not be before start_date").
			WithDetails(map[string]any{
				"start_date": start.Format(DateLayout),
				"end_date":   end.Format(DateLayout),
			})
	}

	ids := make([]int64, 0, len(marketIDs))
	ids = append(ids, marketIDs...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	return Filter{marketIDs: ids, start: start, end: end}, nil
}

// Normalize scopes a raw request to what the caller may see. No requested ids
// means every accessible market; otherwise the request is intersected with the
// accessible set so a caller can never widen their scope. Missing dates fall
// back to the previous calendar month relative to now.
func Normalize(requested []int64, start, end *time.Time, accessible []int64, now time.Time) (Filter, error) {
	defStart, defEnd := PreviousMonth(now)
	from, to := defStart, defEnd
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}

	scope := accessible
	if len(requested) > 0 {
		allowed := make(map[int64]struct{}, len(accessible))
		for _, id := range accessible {
			allowed[id] = struct{}{}
		}
		scope = make([]int64, 0, len(requested))
		for _, id := range requested {
			if _, ok := allowed[id]; ok {
				scope = append(scope, id)
			}
		}
	}

	return NewFilter(scope, from, to)
}

// PreviousMonth returns the first and last day of the calendar month before now.
func PreviousMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfThisMonth.AddDate(0, -1, 0)
	end := firstOfThisMonth.AddDate(0, 0, -1)
	return start, end
}

// MarketIDs returns a copy of the scoped market ids.
func (f Filter) MarketIDs() []int64 {
	return slices.Clone(f.marketIDs)
}

func (f Filter) Start() time.Time { return f.start }
func (f Filter) End() time.Time   { return f.end }

// EndExclusive is the first instant after the inclusive end date.
func (f Filter) EndExclusive() time.Time {
	return f.end.AddDate(0, 0, 1)
}

// IsEmpty reports an empty authorized scope.
func (f Filter) IsEmpty() bool {
	return len(f.marketIDs) == 0
}

type fingerprintPayload struct {
	MarketIDs []int64 `json:"market_ids"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Steps     []int64 `json:"steps,omitempty"`
}

// Fingerprint is the cache key for this filter under the report namespace. It
// is independent of the order market ids were supplied in.
func (f Filter) Fingerprint(kind Kind) string {
	return f.FingerprintWithSteps(kind, nil)
}

// FingerprintWithSteps also keys on the ordered funnel step event ids, so a
// changed funnel definition never reads a payload computed for the old one.
func (f Filter) FingerprintWithSteps(kind Kind, stepEventIDs []int64) string {
	ids := f.marketIDs
	if ids == nil {
		ids = []int64{}
	}
	// struct of slices and strings; Marshal cannot fail
	raw, _ := json.Marshal(fingerprintPayload{
		MarketIDs: ids,
		StartDate: f.start.Format(DateLayout),
		EndDate:   f.end.Format(DateLayout),
		Steps:     stepEventIDs,
	})
	sum := sha256.Sum256(raw)
	return string(kind) + ":" + hex.EncodeToString(sum[:16])
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
