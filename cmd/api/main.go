package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brickline/realty-leads/cmd/mainconfig"
	"github.com/brickline/realty-leads/internal/api/router"
	"github.com/brickline/realty-leads/internal/app/bootstrap"
	appconfig "github.com/brickline/realty-leads/internal/config"
	"github.com/brickline/realty-leads/internal/leads"
	"github.com/brickline/realty-leads/internal/notify"
	"github.com/brickline/realty-leads/internal/observability/metrics"
	"github.com/brickline/realty-leads/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting realty-leads API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"lead_store", cfg.LeadStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type app struct {
	Handler http.Handler
	Service *leads.Service
	Email   notify.EmailSender
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires the store, alerting, rate limiting and HTTP routes.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}

	metricsHandler, leadMetrics := setupMetrics(reg)

	store, err := bootstrap.BuildLeadRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}
	limiter := bootstrap.BuildIntakeLimiter(ctx, cfg, redisClient, logger)

	sender, err := bootstrap.BuildEmailSender(ctx, cfg, logger, mainconfig.LoadAWSConfig)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Email = sender

	loc := cfg.ReportLocation()
	var notifier leads.Notifier
	if alerter := notify.NewLeadAlerter(sender, alertRecipients(cfg.LeadAlertEmail), loc, logger, leadMetrics); alerter != nil {
		notifier = alerter
	}

	a.Service = leads.NewService(store.Repo, logger,
		leads.WithMetrics(leadMetrics),
		leads.WithReportLocation(loc),
	)

	if strings.TrimSpace(cfg.AdminJWTSecret) == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin lead routes are disabled")
	}

	a.Handler = router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       leads.NewHandler(a.Service, logger, notifier),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		IntakeLimiter:      limiter,
		Metrics:            leadMetrics,
		HealthCheck:        store.Ping,
	})
	return a, nil
}

func setupMetrics(reg *prometheus.Registry) (http.Handler, *metrics.LeadMetrics) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewLeadMetrics(reg)
}

func alertRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
