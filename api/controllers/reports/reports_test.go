package reports

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketreports-backend/internal/reports"
	"github.com/angelmondragon/marketreports-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
)

func testRouter(svc reports.Service, resolver *testResolver) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test"})
	r := chi.NewRouter()
	r.Get("/reports/{report}", Chart(svc, resolver, logg))
	r.Get("/reports/{report}/export", Export(svc, resolver, logg))
	r.Delete("/reports/{report}/cache", Forget(svc, resolver, logg))
	return r
}

func austinBookings() []reports.BookingRow {
	return []reports.BookingRow{
		{MarketID: 7, MarketName: "Austin", Date: "2024-01-01", BookingsCount: 2},
		{MarketID: 7, MarketName: "Austin", Date: "2024-01-02", BookingsCount: 1},
	}
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
	} `json:"error"`
}

func decodeError(t *testing.T, body *strings.Reader) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestChartRequiresCaller(t *testing.T) {
	src := &testSource{}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/reports/job-bookings", nil))

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Zero(t, src.calls())
}

func TestChartUnknownReport(t *testing.T) {
	handler := testRouter(newTestReportService(t, &testSource{}), &testResolver{ids: []int64{7}})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withMarketUser(httptest.NewRequest(http.MethodGet, "/reports/revenue", nil), 100))

	assert.Equal(t, http.StatusNotFound, resp.Code)
	body := decodeError(t, strings.NewReader(resp.Body.String()))
	assert.Equal(t, string(pkgerrors.CodeNotFound), body.Error.Code)
}

func TestChartDefaultsToPreviousMonthAndAccessibleMarkets(t *testing.T) {
	fixedNow(t, time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC))
	src := &testSource{bookings: austinBookings()}
	resolver := &testResolver{ids: []int64{7, 8}}
	handler := testRouter(newTestReportService(t, src), resolver)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withMarketUser(httptest.NewRequest(http.MethodGet, "/reports/job-bookings", nil), 100))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.Equal(t, int64(100), resolver.caller.UserID)
	assert.Equal(t, auth.RoleMarketUser, resolver.caller.Role)

	f, ok := src.lastFilter()
	require.True(t, ok)
	assert.Equal(t, []int64{7, 8}, f.MarketIDs())
	assert.Equal(t, "2024-01-01", f.Start().Format(reports.DateLayout))
	assert.Equal(t, "2024-01-31", f.End().Format(reports.DateLayout))

	var envelope struct {
		Data reports.ChartReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, reports.KindJobBookings, envelope.Data.Report)
	assert.Equal(t, "2024-01-01", envelope.Data.StartDate)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, envelope.Data.Chart.Labels)
	require.Len(t, envelope.Data.Chart.Datasets, 1)
}

func TestChartIntersectsRequestedMarkets(t *testing.T) {
	src := &testSource{bookings: austinBookings()}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7, 8}})

	req := httptest.NewRequest(http.MethodGet, "/reports/job-bookings?market_ids=7,9&start_date=2024-01-01&end_date=2024-01-31", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withMarketUser(req, 100))
	require.Equal(t, http.StatusOK, resp.Code)

	f, ok := src.lastFilter()
	require.True(t, ok)
	assert.Equal(t, []int64{7}, f.MarketIDs())
}

func TestChartForeignMarketsOnlyYieldsEmptyReport(t *testing.T) {
	src := &testSource{bookings: austinBookings()}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})

	req := httptest.NewRequest(http.MethodGet, "/reports/job-bookings?market_ids=9&start_date=2024-01-01&end_date=2024-01-31", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withMarketUser(req, 100))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, src.calls())

	var envelope struct {
		Data reports.ChartReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Empty(t, envelope.Data.Chart.Labels)
	assert.Empty(t, envelope.Data.MarketIDs)
}

func TestChartValidation(t *testing.T) {
	cases := map[string]string{
		"bad market id":  "/reports/job-bookings?market_ids=abc",
		"zero market id": "/reports/job-bookings?market_ids=0",
		"bad date":       "/reports/job-bookings?start_date=2024/01/01",
		"inverted range": "/reports/job-bookings?start_date=2024-02-01&end_date=2024-01-01",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			src := &testSource{}
			handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, withMarketUser(httptest.NewRequest(http.MethodGet, target, nil), 100))
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Zero(t, src.calls())
		})
	}
}

func TestChartSourceFailureIsRetryable(t *testing.T) {
	src := &testSource{err: errors.New("connection reset")}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})

	req := httptest.NewRequest(http.MethodGet, "/reports/job-bookings?start_date=2024-01-01&end_date=2024-01-31", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withAdmin(req, 1))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	body := decodeError(t, strings.NewReader(resp.Body.String()))
	assert.True(t, body.Error.Retryable)
}

func TestChartResolverFailure(t *testing.T) {
	resolver := &testResolver{err: pkgerrors.New(pkgerrors.CodeDependency, "market lookup failed")}
	handler := testRouter(newTestReportService(t, &testSource{}), resolver)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withMarketUser(httptest.NewRequest(http.MethodGet, "/reports/conversion-funnel", nil), 100))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestExportStreamsCSV(t *testing.T) {
	src := &testSource{bookings: austinBookings()}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})

	req := httptest.NewRequest(http.MethodGet, "/reports/job-bookings/export?start_date=2024-01-01&end_date=2024-01-31", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withMarketUser(req, 100))
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, "text/csv; charset=UTF-8", resp.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="job-bookings-2024-03-09.csv"`, resp.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header().Get("Cache-Control"))

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"market", "date", "bookings"},
		{"Austin", "2024-01-01", "2"},
		{"Austin", "2024-01-02", "1"},
	}, records)
}

func TestExportLookupFailureWritesEnvelope(t *testing.T) {
	src := &testSource{err: errors.New("timeout")}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})

	req := httptest.NewRequest(http.MethodGet, "/reports/conversion-funnel/export", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withMarketUser(req, 100))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
	assert.Empty(t, resp.Header().Get("Content-Disposition"))
}

type brokenResponseWriter struct {
	header http.Header
	status int
}

func (w *brokenResponseWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *brokenResponseWriter) WriteHeader(code int) { w.status = code }

func (w *brokenResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestExportAbortsConnectionOnWriteFailure(t *testing.T) {
	src := &testSource{bookings: austinBookings()}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})

	req := httptest.NewRequest(http.MethodGet, "/reports/job-bookings/export", nil)
	w := &brokenResponseWriter{}
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(w, withMarketUser(req, 100))
	})
	assert.Equal(t, http.StatusOK, w.status)
}

func TestForgetRecomputesNextChart(t *testing.T) {
	src := &testSource{bookings: austinBookings()}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})
	target := "/reports/job-bookings?start_date=2024-01-01&end_date=2024-01-31"

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, withAdmin(httptest.NewRequest(http.MethodGet, target, nil), 1))
		require.Equal(t, http.StatusOK, resp.Code)
	}
	assert.Equal(t, 1, src.calls())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, withAdmin(httptest.NewRequest(http.MethodDelete, "/reports/job-bookings/cache?start_date=2024-01-01&end_date=2024-01-31", nil), 1))
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, withAdmin(httptest.NewRequest(http.MethodGet, target, nil), 1))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 2, src.calls())
}

func TestChartTooManyMarketsNamesQueryField(t *testing.T) {
	ids := make([]string, 0, 501)
	for i := 1; i <= 501; i++ {
		ids = append(ids, strconv.Itoa(i))
	}
	src := &testSource{}
	handler := testRouter(newTestReportService(t, src), &testResolver{ids: []int64{7}})

	resp := httptest.NewRecorder()
	target := "/reports/job-bookings?market_ids=" + strings.Join(ids, ",")
	handler.ServeHTTP(resp, withMarketUser(httptest.NewRequest(http.MethodGet, target, nil), 100))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, src.calls())

	var body struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "must be at most 500", body.Error.Details["market_ids"])
}
