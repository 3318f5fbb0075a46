package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/marketreports-backend/api/responses"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
)

// Recoverer turns panics into a 500 envelope. http.ErrAbortHandler is passed
// on to the server so a half-written stream is cut instead of completed.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
						panic(rec)
					}
					err := fmt.Errorf("panic: %v", rec)
					ctx := r.Context()
					if logg != nil {
						ctx = logg.WithFields(ctx, map[string]any{"panic": rec})
						logg.Error(ctx, "panic.recovered", err)
					}
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
