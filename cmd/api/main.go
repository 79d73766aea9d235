package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkbook/studio-admin/internal/api/router"
	"github.com/inkbook/studio-admin/internal/app/bootstrap"
	"github.com/inkbook/studio-admin/internal/availability"
	appconfig "github.com/inkbook/studio-admin/internal/config"
	"github.com/inkbook/studio-admin/internal/events"
	"github.com/inkbook/studio-admin/internal/hours"
	"github.com/inkbook/studio-admin/internal/http/handlers"
	httpmiddleware "github.com/inkbook/studio-admin/internal/http/middleware"
	"github.com/inkbook/studio-admin/internal/observability/metrics"
	"github.com/inkbook/studio-admin/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting inkbook studio admin API",
		"env", cfg.Env,
		"port", cfg.Port,
		"shop_id", cfg.ShopID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.deliverer != nil {
		go app.deliverer.Start(ctx)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// application is everything main needs to serve and later release.
type application struct {
	handler   http.Handler
	deliverer *events.Deliverer
	closers   []func() error
	logger    *logging.Logger
}

// Close releases connections in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{logger: logger}

	rules, err := bootstrap.SchedulingRules(cfg)
	if err != nil {
		return nil, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}
	hoursStore := bootstrap.BuildHoursStore(redisClient)

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
	}
	db, err := bootstrap.BuildSQLDB(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if db != nil {
		app.closers = append(app.closers, db.Close)
	}
	storage := bootstrap.BuildStorage(pool, db, logger)

	pipeline, err := bootstrap.BuildEventPipeline(ctx, cfg, pool, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, pipeline.Close)
	app.deliverer = pipeline.Deliverer

	metricsHandler, schedulingMetrics := setupMetrics()

	availabilityCfg := availability.HandlerConfig{
		ShopID:       cfg.ShopID,
		Appointments: storage.Appointments,
		Staff:        storage.Staff,
		Rules:        rules,
		Metrics:      schedulingMetrics,
		Logger:       logger,
	}
	var hoursHandler *hours.Handler
	if hoursStore != nil {
		availabilityCfg.Hours = hoursStore
		hoursHandler = hours.NewHandler(hoursStore, cfg.ShopID, pipeline.Recorder, logger)
	} else {
		logger.Warn("redis not configured; serving default business hours read-only")
	}
	availabilityHandler := availability.NewHandler(availabilityCfg)

	appointmentsCfg := handlers.AppointmentsConfig{
		Repo:       storage.Appointments,
		Validators: availabilityHandler,
		Recorder:   pipeline.Recorder,
		ShopID:     cfg.ShopID,
		Logger:     logger,
	}
	if storage.Postgres != nil {
		appointmentsCfg.Transactions = storage.Postgres
	}
	appointmentsHandler := handlers.NewAppointmentsHandler(appointmentsCfg)

	if cfg.SupabaseJWTSecret == "" {
		logger.Warn("SUPABASE_JWT_SECRET not set; staff API disabled")
	}

	app.handler = router.New(&router.Config{
		Logger:             logger,
		Availability:       availabilityHandler,
		Appointments:       appointmentsHandler,
		Hours:              hoursHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		JWTSecret:          cfg.SupabaseJWTSecret,
		PublicRateLimit:    httpmiddleware.RateLimit(ctx, cfg.PublicRateLimitRPS, cfg.PublicRateLimitBurst),
	})
	return app, nil
}

// setupMetrics builds the registry behind /metrics with runtime and scheduling
// collectors.
func setupMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), metrics.NewSchedulingMetrics(registry)
}
