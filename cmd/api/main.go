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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/medtrack/cmd/mainconfig"
	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/api/router"
	"github.com/wolfman30/medtrack/internal/app/bootstrap"
	"github.com/wolfman30/medtrack/internal/appointments"
	appconfig "github.com/wolfman30/medtrack/internal/config"
	"github.com/wolfman30/medtrack/internal/dashboard"
	httpmiddleware "github.com/wolfman30/medtrack/internal/http/middleware"
	"github.com/wolfman30/medtrack/internal/notify"
	"github.com/wolfman30/medtrack/internal/observability/metrics"
	"github.com/wolfman30/medtrack/internal/session"
	"github.com/wolfman30/medtrack/internal/web"
	"github.com/wolfman30/medtrack/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting medtrack server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"sessions", cfg.SessionBackend,
	)
	if cfg.UsesInsecureSecret() {
		logger.Warn("SECRET_KEY is not set; sessions are signed with the built-in development key")
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
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
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.close(shutdownCtx, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler    http.Handler
	dispatcher *notify.Dispatcher
	limiter    *httpmiddleware.RateLimiter
}

// close drains queued notifications and stops background goroutines.
func (a *application) close(ctx context.Context, logger *logging.Logger) {
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			logger.Warn("notification queue not drained", "error", err)
		}
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	store, err := bootstrap.BuildRecordStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	sessionStore, err := bootstrap.BuildSessionStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sessions := session.NewManager(sessionStore, bootstrap.SessionConfig(cfg), logger)

	metricsHandler, clinicMetrics := setupMetrics()

	publisher, err := bootstrap.BuildPublisher(cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("booking notifications enabled", "provider", publisher.Name())
	dispatcher := bootstrap.BuildDispatcher(cfg, publisher, clinicMetrics, logger)

	accountSvc := accounts.NewService(store, clinicMetrics, logger)
	workflowSvc := appointments.NewService(store, dispatcher, clinicMetrics, logger)
	dashboardSvc := dashboard.NewService(store, logger)

	pages, err := web.NewHandler(accountSvc, workflowSvc, dashboardSvc, sessions, logger)
	if err != nil {
		_ = dispatcher.Close(ctx)
		return nil, fmt.Errorf("load templates: %w", err)
	}

	limiter := setupAuthLimiter(cfg)

	handler := router.New(&router.Config{
		Logger:         logger,
		Sessions:       sessions,
		Pages:          pages,
		MetricsHandler: metricsHandler,
		AuthLimiter:    limiter,
	})

	return &application{handler: handler, dispatcher: dispatcher, limiter: limiter}, nil
}

// setupMetrics builds a dedicated registry so repeated calls in tests do not
// collide on the default registerer.
func setupMetrics() (http.Handler, *metrics.ClinicMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewClinicMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

func setupAuthLimiter(cfg *appconfig.Config) *httpmiddleware.RateLimiter {
	if cfg.AuthRateLimitRPS <= 0 {
		return nil
	}
	return httpmiddleware.NewRateLimiter(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst)
}
