package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/marketreports-backend/api/responses"
	"github.com/angelmondragon/marketreports-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketreports-backend/pkg/errors"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Dependency is a named readiness probe.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MarketReports-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency and reports 503 when any of them fails.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps ...Dependency) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MarketReports-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for _, dep := range deps {
			if dep.Ping == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, dep.Name+" unavailable").
					WithDetails(map[string]any{"dependency": dep.Name}))
				return
			}
			checks[dep.Name] = "up"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
