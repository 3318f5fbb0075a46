// Package reports serves the chart, export and cache endpoints of the report engine.
package reports

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/marketreports-backend/api/responses"
	"github.com/angelmondragon/marketreports-backend/internal/markets"
	"github.com/angelmondragon/marketreports-backend/internal/reports"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
)

// Chart renders the chart dataset and summary as JSON.
func Chart(service reports.Service, resolver markets.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind, err := parseKind(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithReport(ctx, kind.String())

		filter, err := resolveFilter(r, resolver)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := service.Chart(ctx, kind, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, contextError(err))
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Export streams the report as a CSV attachment. Errors before the first byte
// get a JSON envelope; later failures abort the connection so the client sees a
// truncated transfer instead of a complete-looking file.
func Export(service reports.Service, resolver markets.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind, err := parseKind(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithReport(ctx, kind.String())

		filter, err := resolveFilter(r, resolver)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		stream, err := service.Export(ctx, kind, filter)
		if err != nil {
			responses.WriteError(ctx, logg, w, contextError(err))
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=UTF-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", stream.Filename))
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)

		if _, err := stream.WriteTo(ctx, w); err != nil {
			panic(http.ErrAbortHandler)
		}
	}
}

// Forget evicts the cached aggregation for the caller's filter.
func Forget(service reports.Service, resolver markets.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		kind, err := parseKind(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithReport(ctx, kind.String())

		filter, err := resolveFilter(r, resolver)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := service.Forget(ctx, kind, filter); err != nil {
			responses.WriteError(ctx, logg, w, contextError(err))
			return
		}
		logg.Info(ctx, "report cache forgotten")
		w.WriteHeader(http.StatusNoContent)
	}
}
