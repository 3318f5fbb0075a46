package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/angelmondragon/marketreports-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
)

// ExportRateLimit caps CSV exports per authenticated caller per window,
// falling back to the client IP for anonymous requests. A non-positive limit
// disables the check.
func ExportRateLimit(limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(callerKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many export requests"))
		}),
	)
}

func callerKey(r *http.Request) (string, error) {
	if id := UserIDFromContext(r.Context()); id > 0 {
		return "user:" + strconv.FormatInt(id, 10), nil
	}
	return httprate.KeyByIP(r)
}
