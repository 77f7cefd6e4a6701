package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	calsyncecho "github.com/labkit-dev/calsync/api/echo"
	"github.com/labkit-dev/calsync/config"
	"github.com/labkit-dev/calsync/domain"
	"github.com/labkit-dev/calsync/internal/connect"
	"github.com/labkit-dev/calsync/internal/executor"
	"github.com/labkit-dev/calsync/internal/feed"
	"github.com/labkit-dev/calsync/internal/identity"
	"github.com/labkit-dev/calsync/internal/metrics"
	"github.com/labkit-dev/calsync/internal/provider"
	"github.com/labkit-dev/calsync/internal/scheduler"
	"github.com/labkit-dev/calsync/internal/server"
	"github.com/labkit-dev/calsync/internal/synclock"
	syncengine "github.com/labkit-dev/calsync/internal/sync"
	"github.com/labkit-dev/calsync/log"
	"github.com/labkit-dev/calsync/mongodb"
	"github.com/labkit-dev/calsync/tracing"

	"github.com/labstack/echo/v4"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		stdLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)
	appLogger.Info(context.Background(), "Starting calsync server...", map[string]any{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"log_level":     cfg.LogLevel,
		"otel_service":  cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(context.Background(), "Failed to initialize TracerProvider", err, nil)
	}
	tracerProvider = tp

	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", initErr, nil)
	}
	db := mongodb.GetDB()

	// Repositories
	tokenRepo, err := mongodb.NewProviderTokenRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize ProviderTokenRepository", err, nil)
	}
	mappingRepo, err := mongodb.NewEventMappingRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize EventMappingRepository", err, nil)
	}
	eventRepo, err := mongodb.NewCalendarEventRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize CalendarEventRepository", err, nil)
	}
	feedTokenRepo, err := mongodb.NewFeedTokenRepository(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize FeedTokenRepository", err, nil)
	}
	jobRepo := mongodb.NewOperatorJobRepository(db)

	// Feed pipeline
	builder := feed.NewBuilder(appLogger,
		mongodb.NewNativeEventSource(eventRepo),
		mongodb.NewPlannerSource(db),
		mongodb.NewTimepointSource(db),
		mongodb.NewProtocolRunSource(db),
	)
	renderer := feed.NewICSRenderer(builder)

	// Provider clients and identity mapping strategies
	clients := map[domain.Provider]provider.Client{
		domain.ProviderGoogle:  provider.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret),
		domain.ProviderOutlook: provider.NewOutlookClient(cfg.OutlookClientID, cfg.OutlookClientSecret),
	}
	mappers := map[domain.Provider]identity.Mapper{
		domain.ProviderGoogle:  identity.NewHashMapper(),
		domain.ProviderOutlook: identity.NewStoredMapper(domain.ProviderOutlook, mappingRepo),
	}

	// Sync locks: Redis when configured, in-process otherwise.
	lockTTL := time.Duration(cfg.SyncLockTTLSec) * time.Second
	var locker synclock.Locker
	if cfg.RedisAddr != "" {
		locker = synclock.NewRedisLocker(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), lockTTL)
		appLogger.Info(ctx, "Using Redis sync locks", map[string]any{"addr": cfg.RedisAddr})
	} else {
		locker = synclock.NewMemoryLocker(lockTTL)
	}

	engine := syncengine.NewEngine(clients, mappers, tokenRepo, eventRepo, builder, locker, appLogger)
	connects := connect.NewService(clients, tokenRepo, mappingRepo, appLogger)

	// Operator job scheduling
	exec := executor.NewHTTPExecutor(cfg.OperatorExecutorURL)
	runner := scheduler.NewRunner(jobRepo, exec, appLogger)
	scanner := scheduler.NewScanner(jobRepo, runner, appLogger)

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	api := calsyncecho.NewAPI(engine, connects, renderer, runner, scanner, jobRepo, feedTokenRepo, appLogger, calsyncecho.Config{
		PublicBaseURL:   cfg.PublicBaseURL,
		GoogleRedirect:  cfg.GoogleRedirectURI(),
		OutlookRedirect: cfg.OutlookRedirectURI(),
		Health: func(c echo.Context) error {
			return mongodb.Ping(c.Request().Context())
		},
	})

	httpServer = server.NewHTTPServer(cfg, appLogger, api)
	go func() {
		appLogger.Info(context.Background(), fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", err, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	appLogger.Info(context.Background(), fmt.Sprintf("Received signal: %v. Shutting down...", receivedSignal))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}
	connects.Close()
	renderer.Close()

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "TracerProvider shutdown error", err, nil)
		}
	}

	mongodb.CloseMongoDB(shutdownCtx)
	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}
