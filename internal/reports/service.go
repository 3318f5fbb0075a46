package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/angelmondragon/marketreports-backend/pkg/csvstream"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
	"github.com/angelmondragon/marketreports-backend/pkg/metrics"
)

// Service exposes the chart and export views of both reports.
type Service interface {
	// Chart returns the chart-ready dataset and summary for the filter.
	Chart(ctx context.Context, kind Kind, f Filter) (*ChartReport, error)
	// Export resolves the rows for the filter and returns a stream ready to be
	// written. Lookup failures surface here, before anything is written.
	Export(ctx context.Context, kind Kind, f Filter) (*ExportStream, error)
	// Forget evicts the cached payload for the filter.
	Forget(ctx context.Context, kind Kind, f Filter) error
}

// ChartReport is the JSON body of a chart request.
type ChartReport struct {
	Report    Kind         `json:"report"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	MarketIDs []int64      `json:"market_ids"`
	Chart     ChartDataset `json:"chart"`
	Analytics any          `json:"analytics"`
}

// ServiceParams wires the report service.
type ServiceParams struct {
	Bookings *BookingsAggregator
	Funnel   *FunnelAggregator
	Exporter *csvstream.Exporter
	Metrics  *metrics.ReportMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	bookings *BookingsAggregator
	funnel   *FunnelAggregator
	exporter *csvstream.Exporter
	metrics  *metrics.ReportMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Bookings == nil || p.Funnel == nil {
		return nil, fmt.Errorf("bookings and funnel aggregators are required")
	}
	if p.Exporter == nil {
		p.Exporter = csvstream.New(csvstream.DefaultFlushEvery)
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		bookings: p.Bookings,
		funnel:   p.Funnel,
		exporter: p.Exporter,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      p.Now,
	}, nil
}

func (s *service) Chart(ctx context.Context, kind Kind, f Filter) (*ChartReport, error) {
	out := &ChartReport{
		Report:    kind,
		StartDate: f.Start().Format(DateLayout),
		EndDate:   f.End().Format(DateLayout),
		MarketIDs: f.MarketIDs(),
	}

	switch kind {
	case KindJobBookings:
		rows, err := s.bookings.Aggregated(ctx, f)
		if err != nil {
			return nil, err
		}
		out.Chart = BookingsChart(rows)
		out.Analytics = SummarizeBookings(rows)
	case KindConversionFunnel:
		rows, err := s.funnel.Aggregated(ctx, f)
		if err != nil {
			return nil, err
		}
		out.Chart = FunnelChart(rows)
		out.Analytics = SummarizeFunnel(rows)
	default:
		return nil, unknownKind(kind)
	}
	return out, nil
}

func (s *service) Export(ctx context.Context, kind Kind, f Filter) (*ExportStream, error) {
	stream := &ExportStream{
		Kind:     kind,
		Filename: ExportFilename(kind, s.now()),
		exporter: s.exporter,
		metrics:  s.metrics,
		logg:     s.logg,
	}

	switch kind {
	case KindJobBookings:
		rows, err := s.bookings.Stream(ctx, f)
		if err != nil {
			return nil, err
		}
		stream.headers = BookingsCSVHeaders
		stream.records = BookingRecords(rows)
	case KindConversionFunnel:
		rows, err := s.funnel.Stream(ctx, f)
		if err != nil {
			return nil, err
		}
		stream.headers = FunnelCSVHeaders
		stream.records = FunnelRecords(rows)
	default:
		return nil, unknownKind(kind)
	}
	return stream, nil
}

func (s *service) Forget(ctx context.Context, kind Kind, f Filter) error {
	switch kind {
	case KindJobBookings:
		return s.bookings.Forget(ctx, f)
	case KindConversionFunnel:
		return s.funnel.Forget(ctx, f)
	default:
		return unknownKind(kind)
	}
}

// ExportStream is a single-use CSV rendering of a report.
type ExportStream struct {
	Kind     Kind
	Filename string

	headers  []string
	records  iter.Seq2[[]string, error]
	exporter *csvstream.Exporter
	metrics  *metrics.ReportMetrics
	logg     *logger.Logger
}

// Headers returns the CSV header row.
func (e *ExportStream) Headers() []string {
	return append([]string(nil), e.headers...)
}

// WriteTo streams the CSV into sink and returns the number of data rows
// written. Failures after the first byte cannot be retracted; they come back
// as CodeCanceled when the caller went away and CodeStreamAborted otherwise.
func (e *ExportStream) WriteTo(ctx context.Context, sink io.Writer) (int, error) {
	ctx = e.logg.WithReport(ctx, e.Kind.String())
	written, err := e.exporter.Export(ctx, sink, e.headers, e.records)
	e.metrics.AddExportRows(e.Kind.String(), written)
	if err != nil {
		e.metrics.IncExportFailure(e.Kind.String())
		code := pkgerrors.CodeStreamAborted
		if errors.Is(err, csvstream.ErrCanceled) {
			code = pkgerrors.CodeCanceled
		}
		e.logg.Error(e.logg.WithField(ctx, "rows_written", written), "report export aborted", err)
		return written, pkgerrors.Wrap(code, err, "export aborted")
	}
	e.logg.Info(e.logg.WithField(ctx, "rows_written", written), "report export completed")
	return written, nil
}

func unknownKind(kind Kind) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "unknown report").WithDetails(map[string]any{"report": string(kind)})
}
