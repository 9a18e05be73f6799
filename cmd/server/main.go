package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	insightsapp "github.com/retailpulse/backend/internal/application/insights"
	notificationapp "github.com/retailpulse/backend/internal/application/notification"
	notifierapp "github.com/retailpulse/backend/internal/application/notifier"
	sourceapp "github.com/retailpulse/backend/internal/application/source"
	"github.com/retailpulse/backend/internal/infrastructure/auth"
	"github.com/retailpulse/backend/internal/infrastructure/cache"
	"github.com/retailpulse/backend/internal/infrastructure/config"
	"github.com/retailpulse/backend/internal/infrastructure/logger"
	"github.com/retailpulse/backend/internal/infrastructure/persistence"
	"github.com/retailpulse/backend/internal/infrastructure/realtime"
	"github.com/retailpulse/backend/internal/infrastructure/scheduler"
	"github.com/retailpulse/backend/internal/infrastructure/sheets"
	"github.com/retailpulse/backend/internal/infrastructure/telemetry"
	"github.com/retailpulse/backend/internal/interfaces/http/handler"
	"github.com/retailpulse/backend/internal/interfaces/http/middleware"
	"github.com/retailpulse/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Bootstrap logger, replaced once the OTel log pipeline is up
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	bootLog := logger.New(logCfg)

	ctx := context.Background()
	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log := logger.New(logCfg, logProvider.Core(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	defer logger.Sync(log)

	log.Info("Starting RetailPulse backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("go_version", runtime.Version()),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter", zap.Error(err))
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingEndpoint,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)
	metrics, err := telemetry.NewInsightsMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register insights metrics", zap.Error(err))
	}

	// Initialize database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, cfg.Database.Driver); err != nil {
			log.Fatal("Failed to enable database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr()))
		}
		defer redisClient.Close()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	google, err := sheets.NewClient(ctx, sheets.Config{
		CredentialsFile: cfg.Google.CredentialsFile,
		FetchTimeout:    cfg.Google.FetchTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize Google client", zap.Error(err))
	}
	reader := google.Reader().WithMetrics(metrics)

	// Realtime
	hub := realtime.NewHub(
		realtime.WithHubLogger(log),
		realtime.WithHubHeartbeat(cfg.Realtime.HeartbeatInterval),
		realtime.WithHubBufferSize(cfg.Realtime.BufferSize),
		realtime.WithHubMetrics(metrics),
	)
	if err := hub.Start(); err != nil {
		log.Fatal("Failed to start realtime hub", zap.Error(err))
	}
	var emitter realtime.Emitter = hub
	var relay *realtime.RedisRelay
	if cfg.Realtime.RedisRelay {
		relay = realtime.NewRedisRelay(redisClient, hub,
			realtime.WithRelayChannel(cfg.Realtime.Channel),
			realtime.WithRelayLogger(log),
		)
		emitter = relay
	}

	// Repositories
	sourceRepo := persistence.NewGormSourceRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)

	// Application services
	notificationService := notificationapp.NewService(notificationRepo, log)
	localCache := cache.NewInsightsCache(
		cache.WithInsightsCacheTTL(cfg.Insights.CacheTTL),
		cache.WithInsightsCacheLogger(log),
	)
	var reportCache insightsapp.ReportCache = localCache
	var sharedCache *cache.SharedInsightsCache
	if redisClient != nil {
		sharedCache = cache.NewSharedInsightsCache(localCache, redisClient, cache.WithInvalidationLogger(log))
		reportCache = sharedCache
	}
	insightsService := insightsapp.NewService(
		sourceRepo,
		reader,
		google.Writer(),
		reportCache,
		notificationService,
		emitter,
		insightsapp.WithMetrics(metrics),
		insightsapp.WithLogger(log),
	)
	deliveries := cache.NewDeliveryStore(redisClient, log)
	notifierService := notifierapp.NewService(
		sourceRepo,
		subscriptionRepo,
		google.Watcher(),
		insightsService,
		cfg.App.WebhookAddress(),
		notifierapp.WithRenewWithin(cfg.Watch.RenewWithin),
		notifierapp.WithMetrics(metrics),
		notifierapp.WithDeliveryStore(deliveries),
		notifierapp.WithLogger(log),
	)
	sourceService := sourceapp.NewService(sourceRepo, reader, notifierService, insightsService, log)

	renewal := scheduler.NewWatchRenewalScheduler(notifierService, log, scheduler.WatchRenewalSchedulerConfig{
		Enabled:          cfg.Watch.RenewalInterval > 0,
		Interval:         cfg.Watch.RenewalInterval,
		RunOnImmediately: cfg.Watch.RunOnStart,
		SweepTimeout:     10 * time.Minute,
	})

	// Background workers share one lifetime
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	// A failed worker is logged and leaves the others running.
	var bg errgroup.Group
	if err := renewal.Start(bgCtx); err != nil {
		log.Fatal("Failed to start watch renewal scheduler", zap.Error(err))
	}
	if relay != nil {
		bg.Go(worker(bgCtx, log, "realtime relay", relay.Run))
	}
	if sharedCache != nil {
		bg.Go(worker(bgCtx, log, "report invalidation", sharedCache.Run))
	}
	if local, ok := deliveries.(*cache.InMemoryDeliveryStore); ok {
		bg.Go(func() error {
			local.RunCleanup(bgCtx, 5*time.Minute)
			return nil
		})
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(meter)
	if err != nil {
		log.Fatal("Failed to register HTTP metrics", zap.Error(err))
	}
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(cfg.Telemetry.ServiceName, tracerProvider.IsEnabled()),
		httpMetrics,
		middleware.Profiling(profiler.IsEnabled()),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(cfg.App.Env == "production"),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		bg.Go(func() error {
			limiter.RunCleanup(bgCtx)
			return nil
		})
		engine.Use(middleware.RateLimit(limiter))
	}

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	jwtAuth := middleware.JWTAuthMiddleware(middleware.JWTMiddlewareConfig{
		Validator:  auth.NewJWTService(cfg.JWT),
		CookieName: cfg.JWT.CookieName,
		Logger:     log,
	})
	router.Setup(engine, router.Handlers{
		Inventory:    handler.NewInventoryHandler(insightsService, sourceService),
		Notification: handler.NewNotificationHandler(notificationService),
		Realtime:     handler.NewRealtimeHandler(hub, log),
		Webhook:      handler.NewWebhookHandler(notifierService),
		Health:       handler.NewHealthHandler(checks),
	}, jwtAuth, middleware.TracingAttributeInjector())

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		// SSE streams stay open far longer than any write timeout.
		WriteTimeout:   0,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Closing the hub ends open SSE streams so Shutdown does not wait on them.
	hub.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := renewal.Stop(shutdownCtx); err != nil {
		log.Warn("Watch renewal scheduler did not stop cleanly", zap.Error(err))
	}
	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Warn("Realtime relay did not stop cleanly", zap.Error(err))
		}
	}
	stopBackground()
	_ = bg.Wait()

	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush metrics", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush logs", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// worker adapts a blocking Run method for the background group.
func worker(ctx context.Context, log *zap.Logger, name string, run func(context.Context) error) func() error {
	return func() error {
		err := run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Background worker stopped", zap.String("worker", name), zap.Error(err))
		}
		return err
	}
}
