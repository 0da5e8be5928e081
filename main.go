package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rescuelog/backend/internal/config"
	"github.com/rescuelog/backend/internal/db"
	"github.com/rescuelog/backend/internal/handler"
	"github.com/rescuelog/backend/internal/logging"
	"github.com/rescuelog/backend/internal/metrics"
	"github.com/rescuelog/backend/internal/notify"
	"github.com/rescuelog/backend/internal/service"
	"github.com/rescuelog/backend/internal/telemetry"
)

// @title RescueLog API
// @version 1.0
// @description Authentication, session and first-aid lookup API for the RescueLog emergency reporting app.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// .env 파일이 있으면 로드 (없어도 무시)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// OTLP 엔드포인트가 있을 때만 트레이싱
	tracing := cfg.App.OTLPEndpoint != ""
	if tracing {
		shutdownTracer, err := telemetry.InitTracer(ctx, cfg.App.ServiceName, cfg.App.Env, cfg.App.OTLPEndpoint)
		if err != nil {
			logger.Error("tracer init failed", slog.Any("error", err))
			tracing = false
		} else {
			defer func() { _ = shutdownTracer(context.Background()) }()
		}
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 서비스 구성은 DB 연결 전에 검증
	hasher, err := service.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, nil)
	if err != nil {
		return err
	}
	lockout, err := service.NewLockoutPolicy(cfg.Auth.LockoutThreshold, cfg.Auth.LockoutStep, cfg.Auth.LockoutTimezone)
	if err != nil {
		return err
	}

	dsn, err := cfg.Postgres.DSN()
	if err != nil {
		return err
	}
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := db.NewPostgresPool(connectCtx, dsn)
	cancel()
	if err != nil {
		return err
	}
	defer pool.Close()

	store := db.NewPostgres(pool)
	if err := store.EnsureAuthSchema(ctx); err != nil {
		return fmt.Errorf("ensure auth schema: %w", err)
	}
	if err := store.EnsureFirstAidSchema(ctx); err != nil {
		return fmt.Errorf("ensure first aid schema: %w", err)
	}
	if cfg.App.SeedFirstAid {
		for _, g := range db.DefaultFirstAidGuides() {
			if err := store.UpsertFirstAidGuide(ctx, g); err != nil {
				return fmt.Errorf("seed first aid guide %q: %w", g.Condition, err)
			}
		}
		logger.Info("first aid guides seeded")
	}

	authOpts := service.AuthOptions{RotateRefreshOnUse: cfg.Auth.RotateRefreshOnUse}
	if slack := notify.NewSlackNotifier(cfg.Slack, cfg.App.ServiceName, nil); slack != nil {
		authOpts.Notifier = slack
		logger.Info("slack lockout alerts enabled", slog.String("channel", cfg.Slack.ChannelID))
	}
	authService := service.NewAuthService(store, hasher, tokens, lockout, nil, logger, authOpts)
	firstAidService := service.NewFirstAidService(store)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	health := handler.NewHealth(true, store)

	router := handler.NewRouter(handler.RouterConfig{
		ServiceName:      cfg.App.ServiceName,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		MetricsPath:      cfg.App.MetricsPath,
		EnableTestRoutes: cfg.Auth.EnableTestRoutes,
		Tracing:          tracing,
	}, handler.RouterDeps{
		Auth:     authService,
		FirstAid: firstAidService,
		Health:   health,
		Registry: registry,
		Logger:   logger,
	})

	if cfg.Auth.EnableTestRoutes {
		logger.Warn("test routes enabled", slog.String("route", "/api/auth/delete-test-user"))
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("api server starting", slog.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	return waitForShutdown(server, health, serverErr, cfg.HTTP.ShutdownTimeout, logger)
}

// waitForShutdown marks the instance unready first so load balancers drain it,
// then gives in-flight requests until timeout to finish.
func waitForShutdown(server *http.Server, health *handler.Health, serverErr <-chan error, timeout time.Duration, logger *slog.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			return err
		}
		return nil
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	health.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
