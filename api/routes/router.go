package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketreports-backend/api/controllers"
	reportcontrollers "github.com/angelmondragon/marketreports-backend/api/controllers/reports"
	"github.com/angelmondragon/marketreports-backend/api/middleware"
	"github.com/angelmondragon/marketreports-backend/internal/markets"
	"github.com/angelmondragon/marketreports-backend/internal/reports"
	"github.com/angelmondragon/marketreports-backend/pkg/auth"
	"github.com/angelmondragon/marketreports-backend/pkg/config"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
)

const exportRateWindow = time.Minute

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	reportService reports.Service,
	marketResolver markets.Resolver,
	readiness ...controllers.Dependency,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/{report}", reportcontrollers.Chart(reportService, marketResolver, logg))
		r.With(middleware.ExportRateLimit(cfg.Reports.ExportRateLimit, exportRateWindow, logg)).
			Get("/{report}/export", reportcontrollers.Export(reportService, marketResolver, logg))
		r.With(middleware.RequireRole(auth.RoleAdmin, logg)).
			Delete("/{report}/cache", reportcontrollers.Forget(reportService, marketResolver, logg))
	})

	return r
}
