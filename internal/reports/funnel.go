package reports

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"
)

// UnknownEventName labels a step with no recorded data for a market.
const UnknownEventName = "Unknown Event"

// DefaultFunnelEventIDs is the out-of-the-box funnel, entry event first.
var DefaultFunnelEventIDs = []int64{2, 3, 7, 623, 8}

var hundred = decimal.NewFromInt(100)

// FunnelStep binds a 1-based funnel position to the event that marks it.
type FunnelStep struct {
	Number  int   `json:"step_number"`
	EventID int64 `json:"event_name_id"`
}

// StepsFromEventIDs numbers event ids in the order given.
func StepsFromEventIDs(eventIDs []int64) []FunnelStep {
	steps := make([]FunnelStep, 0, len(eventIDs))
	for i, id := range eventIDs {
		steps = append(steps, FunnelStep{Number: i + 1, EventID: id})
	}
	return steps
}

// StepEventIDs lists the event ids of steps in step order.
func StepEventIDs(steps []FunnelStep) []int64 {
	ordered := sortedSteps(steps)
	ids := make([]int64, 0, len(ordered))
	for _, s := range ordered {
		ids = append(ids, s.EventID)
	}
	return ids
}

// CalculateFunnel turns raw per-event session counts into funnel rows. Markets
// keep the order they first appear in counts; within a market steps run in
// ascending step number regardless of count order. The first step is always
// 100%. Every later step is its share of the step before it, rounded to two
// places, or 0 when the previous step had no sessions.
func CalculateFunnel(steps []FunnelStep, counts []FunnelCount) []FunnelRow {
	ordered := sortedSteps(steps)

	type marketCounts struct {
		id      int64
		name    string
		byEvent map[int64]FunnelCount
	}
	var markets []*marketCounts
	index := make(map[int64]*marketCounts)
	for _, c := range counts {
		m, ok := index[c.MarketID]
		if !ok {
			m = &marketCounts{id: c.MarketID, name: c.MarketName, byEvent: make(map[int64]FunnelCount)}
			index[c.MarketID] = m
			markets = append(markets, m)
		}
		if _, seen := m.byEvent[c.EventID]; !seen {
			m.byEvent[c.EventID] = c
		}
	}

	rows := make([]FunnelRow, 0, len(markets)*len(ordered))
	for _, m := range markets {
		var previous int64
		for i, step := range ordered {
			current := int64(0)
			name := UnknownEventName
			if c, ok := m.byEvent[step.EventID]; ok {
				current = c.Sessions
				name = c.EventName
			}

			pct := 100.0
			if i > 0 {
				pct = conversionPercentage(current, previous)
			}

			rows = append(rows, FunnelRow{
				MarketID:              m.id,
				MarketName:            m.name,
				EventID:               step.EventID,
				EventName:             name,
				StepNumber:            step.Number,
				ConversionsTotal:      current,
				ConversionsPercentage: pct,
			})
			previous = current
		}
	}
	return rows
}

func conversionPercentage(current, previous int64) float64 {
	if previous <= 0 {
		return 0
	}
	return decimal.NewFromInt(current).
		Mul(hundred).
		DivRound(decimal.NewFromInt(previous), 2).
		InexactFloat64()
}

func sortedSteps(steps []FunnelStep) []FunnelStep {
	ordered := slices.Clone(steps)
	slices.SortStableFunc(ordered, func(a, b FunnelStep) int {
		return cmp.Compare(a.Number, b.Number)
	})
	return ordered
}
