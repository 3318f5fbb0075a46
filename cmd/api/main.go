package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/marketreports-backend/api"
	"github.com/angelmondragon/marketreports-backend/api/controllers"
	"github.com/angelmondragon/marketreports-backend/api/routes"
	"github.com/angelmondragon/marketreports-backend/internal/markets"
	"github.com/angelmondragon/marketreports-backend/internal/reports"
	"github.com/angelmondragon/marketreports-backend/internal/reports/cache"
	"github.com/angelmondragon/marketreports-backend/internal/reports/store"
	"github.com/angelmondragon/marketreports-backend/internal/settings"
	"github.com/angelmondragon/marketreports-backend/pkg/bigquery"
	"github.com/angelmondragon/marketreports-backend/pkg/config"
	"github.com/angelmondragon/marketreports-backend/pkg/csvstream"
	"github.com/angelmondragon/marketreports-backend/pkg/db"
	"github.com/angelmondragon/marketreports-backend/pkg/logger"
	"github.com/angelmondragon/marketreports-backend/pkg/metrics"
	"github.com/angelmondragon/marketreports-backend/pkg/migrate"
	"github.com/angelmondragon/marketreports-backend/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reportMetrics := metrics.NewReportMetrics(registry)

	readiness := []controllers.Dependency{{Name: "db", Ping: dbClient.Ping}}

	var cacheStore cache.Store = cache.NewMemoryStore()
	if cfg.Reports.CacheDriver == config.CacheDriverRedis {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		cacheStore = cache.NewRedisStore(redisClient, cache.BreakerSettings{
			ConsecutiveFailures: cfg.Reports.CacheBreakerFailures,
			Cooldown:            cfg.Reports.CacheBreakerCooldown,
		}, logg)
		readiness = append(readiness, controllers.Dependency{Name: "redis", Ping: redisClient.Ping})
	}
	reportCache := cache.New(cacheStore, cfg.Reports.CacheTTL, reportMetrics, logg)

	var source reports.Source
	switch cfg.Reports.Source {
	case config.ReportSourceBigQuery:
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		source, err = store.NewBigQuerySource(bqClient, store.BigQueryTables{
			Bookings:   bqClient.BookingsTable(),
			Events:     bqClient.EventsTable(),
			Markets:    bqClient.MarketsTable(),
			EventNames: bqClient.EventNamesTable(),
		})
		if err != nil {
			logg.Error(ctx, "failed to create bigquery report source", err)
			os.Exit(1)
		}
		readiness = append(readiness, controllers.Dependency{Name: "bigquery", Ping: bqClient.Ping})
	default:
		source, err = store.NewSQLSource(dbClient.DB())
		if err != nil {
			logg.Error(ctx, "failed to create sql report source", err)
			os.Exit(1)
		}
	}

	steps := settings.NewRepository(dbClient.DB(), cfg.Reports.FunnelEventIDs, logg)
	reportService, err := reports.NewService(reports.ServiceParams{
		Bookings: reports.NewBookingsAggregator(source, reportCache),
		Funnel:   reports.NewFunnelAggregator(source, steps, reportCache),
		Exporter: csvstream.New(cfg.Reports.ExportFlushRows),
		Metrics:  reportMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create report service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(cfg, logg, registry, reportService, markets.NewRepository(dbClient.DB()), readiness...)
	server := api.NewServer(cfg, router)

	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         server.Addr,
		"instance":     id,
		"report_src":   cfg.Reports.Source,
		"cache_driver": cfg.Reports.CacheDriver,
	})
	logg.Info(runCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}
