package reports

import (
	"fmt"
	"hash/crc32"
	"slices"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type ChartType string

const (
	ChartTypeLine ChartType = "line"
	ChartTypeBar  ChartType = "bar"
)

// Dataset is one market's series, aligned index-for-index with ChartDataset.Labels.
type Dataset struct {
	Label           string   `json:"label"`
	Data            []int64  `json:"data"`
	DataLabels      []string `json:"data_labels,omitempty"`
	BorderColor     string   `json:"border_color"`
	BackgroundColor string   `json:"background_color"`
}

// ChartDataset is the single chart shape both reports render to.
type ChartDataset struct {
	Type     ChartType `json:"type"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

var (
	linePalette = []string{
		"rgba(255, 99, 132, %s)",
		"rgba(54, 162, 235, %s)",
		"rgba(255, 206, 86, %s)",
		"rgba(75, 192, 192, %s)",
		"rgba(153, 102, 255, %s)",
	}
	barPalette = append(slices.Clone(linePalette),
		"rgba(255, 159, 64, %s)",
		"rgba(201, 203, 207, %s)",
	)
)

// marketColor picks a stable palette entry from the market name.
func marketColor(palette []string, marketName string, alpha float64) string {
	idx := crc32.ChecksumIEEE([]byte(marketName)) % uint32(len(palette))
	return fmt.Sprintf(palette[idx], strconv.FormatFloat(alpha, 'f', -1, 64))
}

// BookingsChart builds a line chart: labels are the sorted unique dates and
// each market gets a series with 0 on dates it has no bookings.
func BookingsChart(rows []BookingRow) ChartDataset {
	labels := make([]string, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, r.Date)
	}
	slices.Sort(labels)
	labels = slices.Compact(labels)

	position := make(map[string]int, len(labels))
	for i, d := range labels {
		position[d] = i
	}

	datasets := make([]Dataset, 0)
	byMarket := make(map[int64]int)
	for _, r := range rows {
		idx, ok := byMarket[r.MarketID]
		if !ok {
			idx = len(datasets)
			byMarket[r.MarketID] = idx
			datasets = append(datasets, Dataset{
				Label:           r.MarketName,
				Data:            make([]int64, len(labels)),
				BorderColor:     marketColor(linePalette, r.MarketName, 1),
				BackgroundColor: marketColor(linePalette, r.MarketName, 0.1),
			})
		}
		datasets[idx].Data[position[r.Date]] += r.BookingsCount
	}

	return ChartDataset{Type: ChartTypeLine, Labels: labels, Datasets: datasets}
}

// FunnelChart builds a bar chart with one label per funnel step in ascending
// step order, so the entry step is first. A step is labelled with the first
// known event name across markets. Each market series holds conversion totals
// with a "40.0% (1,234)" data label per point.
func FunnelChart(rows []FunnelRow) ChartDataset {
	stepNames := make(map[int]string)
	for _, r := range rows {
		name, seen := stepNames[r.StepNumber]
		if !seen || (name == UnknownEventName && r.EventName != UnknownEventName) {
			stepNames[r.StepNumber] = r.EventName
		}
	}
	stepOrder := make([]int, 0, len(stepNames))
	for step := range stepNames {
		stepOrder = append(stepOrder, step)
	}
	slices.Sort(stepOrder)

	labels := make([]string, 0, len(stepOrder))
	position := make(map[int]int, len(stepOrder))
	for i, step := range stepOrder {
		labels = append(labels, stepNames[step])
		position[step] = i
	}

	printer := message.NewPrinter(language.English)
	datasets := make([]Dataset, 0)
	byMarket := make(map[int64]int)
	for _, r := range rows {
		idx, ok := byMarket[r.MarketID]
		if !ok {
			idx = len(datasets)
			byMarket[r.MarketID] = idx
			dataLabels := make([]string, len(labels))
			for i := range dataLabels {
				dataLabels[i] = "0% (0)"
			}
			color := marketColor(barPalette, r.MarketName, 0.8)
			datasets = append(datasets, Dataset{
				Label:           r.MarketName,
				Data:            make([]int64, len(labels)),
				DataLabels:      dataLabels,
				BorderColor:     color,
				BackgroundColor: color,
			})
		}
		pos := position[r.StepNumber]
		datasets[idx].Data[pos] = r.ConversionsTotal
		datasets[idx].DataLabels[pos] = printer.Sprintf("%.1f%% (%d)", r.ConversionsPercentage, r.ConversionsTotal)
	}

	return ChartDataset{Type: ChartTypeBar, Labels: labels, Datasets: datasets}
}
