package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/salespulse/salespulse/internal/analytics"
	"github.com/salespulse/salespulse/internal/app"
	"github.com/salespulse/salespulse/internal/db"
	"github.com/salespulse/salespulse/internal/health"
	"github.com/salespulse/salespulse/internal/observability"
	"github.com/salespulse/salespulse/internal/platform/cache"
	platformdb "github.com/salespulse/salespulse/internal/platform/db"
	"github.com/salespulse/salespulse/internal/rbac"
	"github.com/salespulse/salespulse/internal/sales"
	"github.com/salespulse/salespulse/internal/settings"
	"github.com/salespulse/salespulse/internal/shared"
	"github.com/salespulse/salespulse/internal/users"
	"github.com/salespulse/salespulse/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := platformdb.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	bootstrapper := db.NewBootstrapper(pool, logger)
	if err := bootstrapper.EnsureInitialized(ctx); err != nil {
		// Serve degraded; /health reports it and /init_db can retry.
		logger.Error("database bootstrap", slog.Any("error", err))
	}

	sessionManager := shared.NewSessionManager(redisClient, "salespulse_session", cfg.SecretKey, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.SecretKey)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)

	settingsRepo := settings.NewRepository(pool)
	settingsService := settings.NewService(settingsRepo)

	analyticsRepo := analytics.NewRepository(pool)
	analyticsCache := analytics.NewCache(redisClient, cfg.CacheTTL)
	analyticsService := analytics.NewService(analyticsRepo, analyticsCache)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, usersService, settingsService, analyticsCache)

	rbacMiddleware := rbac.Middleware{Users: usersService, Logger: logger}

	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, settingsService)
	salesHandler := sales.NewHandler(logger, salesService, usersService, templates, csrfManager, metrics, cfg.MaxUploadBytes)
	analyticsHandler := analytics.NewHandler(logger, analyticsService, analytics.NewDemoSource(), settingsService, usersService, templates)
	settingsHandler := settings.NewHandler(logger, settingsService, templates, csrfManager)
	healthHandler := health.NewHandler(logger, pool, settingsService)
	initHandler := db.NewInitHandler(logger, bootstrapper)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		UsersHandler:     usersHandler,
		SalesHandler:     salesHandler,
		AnalyticsHandler: analyticsHandler,
		SettingsHandler:  settingsHandler,
		HealthHandler:    healthHandler,
		InitHandler:      initHandler,
		RBACMiddleware:   rbacMiddleware,
		Metrics:          metrics,
		Pool:             pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
