package reports

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/marketreports-backend/api/middleware"
	"github.com/angelmondragon/marketreports-backend/api/validators"
	"github.com/angelmondragon/marketreports-backend/internal/markets"
	"github.com/angelmondragon/marketreports-backend/internal/reports"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
)

var timeNowUTC = func() time.Time {
	return time.Now().UTC()
}

type reportQuery struct {
	MarketIDs []int64 `query:"market_ids" validate:"max=500,dive,gt=0"`
	StartDate *time.Time
	EndDate   *time.Time
}

func parseReportQuery(r *http.Request) (reportQuery, error) {
	var q reportQuery
	var err error
	if q.MarketIDs, err = validators.ParseQueryInt64List(r, "market_ids"); err != nil {
		return q, err
	}
	if q.StartDate, err = validators.ParseQueryDate(r, "start_date"); err != nil {
		return q, err
	}
	if q.EndDate, err = validators.ParseQueryDate(r, "end_date"); err != nil {
		return q, err
	}
	if err := validators.ValidateStruct(q); err != nil {
		return q, err
	}
	return q, nil
}

func parseKind(r *http.Request) (reports.Kind, error) {
	return reports.ParseKind(chi.URLParam(r, "report"))
}

// resolveFilter authorizes the caller and narrows the request to their markets.
func resolveFilter(r *http.Request, resolver markets.Resolver) (reports.Filter, error) {
	ctx := r.Context()
	caller := markets.Caller{
		UserID: middleware.UserIDFromContext(ctx),
		Role:   middleware.RoleFromContext(ctx),
	}
	if caller.UserID == 0 || !caller.Role.IsValid() {
		return reports.Filter{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	q, err := parseReportQuery(r)
	if err != nil {
		return reports.Filter{}, err
	}

	accessible, err := resolver.AccessibleMarketIDs(ctx, caller)
	if err != nil {
		return reports.Filter{}, err
	}
	return reports.Normalize(q.MarketIDs, q.StartDate, q.EndDate, accessible, timeNowUTC())
}

func contextError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, err, "request canceled")
	}
	return err
}
