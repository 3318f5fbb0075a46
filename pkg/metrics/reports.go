package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache lookup outcomes used as the "result" label.
const (
	CacheResultHit    = "hit"
	CacheResultMiss   = "miss"
	CacheResultError  = "error"
	CacheResultBypass = "bypass"
)

// ReportMetrics records cache, compute and export activity per report.
type ReportMetrics struct {
	cacheRequests  *prometheus.CounterVec
	computeTime    *prometheus.HistogramVec
	exportRows     *prometheus.CounterVec
	exportFailures *prometheus.CounterVec
}

// NewReportMetrics registers the report metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewReportMetrics(reg prometheus.Registerer) *ReportMetrics {
	if reg == nil {
		return &ReportMetrics{}
	}
	cacheRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_cache_requests_total",
		Help: "Report cache lookups by outcome.",
	}, []string{"report", "result"})
	computeTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_compute_duration_seconds",
		Help:    "Time spent computing a report on cache miss.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})
	exportRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_export_rows_total",
		Help: "CSV rows written by report exports.",
	}, []string{"report"})
	exportFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_export_failures_total",
		Help: "Report exports aborted mid-stream.",
	}, []string{"report"})
	reg.MustRegister(cacheRequests, computeTime, exportRows, exportFailures)
	return &ReportMetrics{
		cacheRequests:  cacheRequests,
		computeTime:    computeTime,
		exportRows:     exportRows,
		exportFailures: exportFailures,
	}
}

// IncCache counts a cache lookup with the given outcome.
func (m *ReportMetrics) IncCache(report, result string) {
	if m == nil || m.cacheRequests == nil {
		return
	}
	m.cacheRequests.WithLabelValues(normalizeLabel(report), normalizeLabel(result)).Inc()
}

// ObserveCompute records how long a miss took to compute.
func (m *ReportMetrics) ObserveCompute(report string, duration time.Duration) {
	if m == nil || m.computeTime == nil {
		return
	}
	m.computeTime.WithLabelValues(normalizeLabel(report)).Observe(duration.Seconds())
}

// AddExportRows adds n written rows for the report.
func (m *ReportMetrics) AddExportRows(report string, n int) {
	if m == nil || m.exportRows == nil || n <= 0 {
		return
	}
	m.exportRows.WithLabelValues(normalizeLabel(report)).Add(float64(n))
}

// IncExportFailure counts an aborted export.
func (m *ReportMetrics) IncExportFailure(report string) {
	if m == nil || m.exportFailures == nil {
		return
	}
	m.exportFailures.WithLabelValues(normalizeLabel(report)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
