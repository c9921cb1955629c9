package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	commerceapp "github.com/erp/backoffice/internal/application/commerce"
	draftapp "github.com/erp/backoffice/internal/application/draft"
	"github.com/erp/backoffice/internal/infrastructure/cache"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/event"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/erp/backoffice/internal/interfaces/http/handler"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = baseLog.Sync() }()

	ctx := context.Background()

	providers, err := telemetry.NewProviders(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := providers.BridgeLogger(baseLog, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.Profiling.Enabled,
		ServerAddress:   cfg.Telemetry.Profiling.ServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Telemetry.Profiling.SpanProfiles && profiler.IsEnabled() {
		providers.EnableSpanProfiles()
	}

	log.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.Bool("telemetry", providers.IsEnabled()),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.App.Env == "development",
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	drafts, err := cache.NewDraftStoreFactory(cfg.Redis, cfg.Draft, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to initialize draft store", zap.Error(err))
	}
	defer func() {
		if err := drafts.Close(); err != nil {
			log.Error("Failed to close draft store", zap.Error(err))
		}
	}()

	sessions := draftapp.NewSessionManager(drafts, log)
	catalog := cache.NewCoalescingCatalog(persistence.NewGormCatalogService(db.DB), cfg.Pricing.LookupTimeout)
	documents := commerceapp.NewDocumentService(
		persistence.NewGormDocumentStore(db.DB),
		persistence.NewGormCustomerService(db.DB),
		catalog,
		sessions,
		log,
	)
	documents.SetMaxParallelLookups(cfg.Pricing.MaxParallel)

	bus := event.NewInMemoryEventBus(log)
	documents.SetEventPublisher(bus)

	meter := providers.Meter("pos-backoffice")
	metrics, err := telemetry.NewCommerceMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create commerce metrics", zap.Error(err))
	}
	documents.SetMetrics(metrics)
	bus.Subscribe(metrics, metrics.EventTypes()...)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = providers.IsEnabled()

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.App.Env == "development"

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine := gin.New()
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.TracingWithConfig(tracingCfg),
		middleware.SpanEnricher(),
		middleware.Profiling(profiler.IsEnabled()),
		middleware.HTTPMetrics(meter),
		middleware.SecureWithConfig(securityCfg),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.RateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateWindow),
		middleware.Timeout(cfg.HTTP.WriteTimeout),
	)

	system := handler.NewSystemHandler(cfg.App.Name, version).
		AddCheck("database", db.Ping).
		AddCheck("drafts", drafts.Ping).
		AddStats("database", func() (any, error) { return db.Stats() })

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	handler.NewHandlers(documents, sessions, system).Register(r)
	r.Setup()

	// Load balancers probe the bare path
	engine.GET("/health", system.Health)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush telemetry", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Failed to stop profiler", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
