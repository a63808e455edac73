package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	labfeeapp "github.com/clinic/backend/internal/application/labfee"
	laboratoryapp "github.com/clinic/backend/internal/application/laboratory"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/clinic/backend/internal/infrastructure/auth"
	"github.com/clinic/backend/internal/infrastructure/cache"
	"github.com/clinic/backend/internal/infrastructure/config"
	"github.com/clinic/backend/internal/infrastructure/ledgerclient"
	"github.com/clinic/backend/internal/infrastructure/logger"
	"github.com/clinic/backend/internal/infrastructure/persistence"
	"github.com/clinic/backend/internal/infrastructure/storage"
	"github.com/clinic/backend/internal/infrastructure/telemetry"
	"github.com/clinic/backend/internal/interfaces/http/handler"
	"github.com/clinic/backend/internal/interfaces/http/middleware"
	"github.com/clinic/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			Lab Fee Reconciliation API
//	@version		1.0
//	@description	Monthly lab fee reconciliation backend for dental clinics

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting lab fee backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Continuous profiler (optional)
	if cfg.Telemetry.ProfilerEnabled {
		profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:             true,
			ServerAddress:       cfg.Telemetry.ProfilerEndpoint,
			ApplicationName:     cfg.Telemetry.ServiceName,
			ProfileCPU:          true,
			ProfileAllocObjects: true,
			ProfileAllocSpace:   true,
		}, log)
		if err != nil {
			log.Warn("Failed to start profiler", zap.Error(err))
		} else {
			defer func() {
				if err := profiler.Stop(); err != nil {
					log.Error("Error stopping profiler", zap.Error(err))
				}
			}()
		}
	}

	// Initialize database connection
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithGormLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Attach DB observability plugins
	if cfg.Telemetry.DBTraceEnabled && tracerProvider.IsEnabled() {
		tracingPlugin := telemetry.NewDBTracingPlugin(telemetry.DefaultDBTracingConfig(), log)
		if err := tracingPlugin.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register DB tracing", zap.Error(err))
		}
	}
	if meterProvider.IsEnabled() {
		dbMetrics, err := telemetry.NewDBMetrics(
			meterProvider.Meter("labfee.db"), telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to create DB metrics", zap.Error(err))
		} else {
			if sqlDB, err := db.DB.DB(); err == nil {
				dbMetrics.SetSQLDB(sqlDB)
				dbMetrics.StartPoolStatsCollection(context.Background())
				defer dbMetrics.Stop()
			}
			if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
				log.Warn("Failed to register DB metrics plugin", zap.Error(err))
			}
		}
	}

	// Initialize repositories
	recordRepo := persistence.NewGormTechnicianRecordRepository(db.DB)
	labRepo := persistence.NewGormLaboratoryRepository(db.DB)

	// Ledger upstream client
	ledgerReader, err := ledgerclient.NewHTTPReader(cfg.Ledger)
	if err != nil {
		log.Fatal("Failed to create ledger client", zap.Error(err))
	}
	log.Info("Ledger client configured", zap.String("base_url", cfg.Ledger.BaseURL))

	// Save guard (Redis-backed when available, in-memory otherwise)
	guardFactory := cache.NewOperationGuardFactory(cfg.Redis, cfg.Guard, cache.WithLogger(log))
	guard, err := guardFactory.CreateGuard()
	if err != nil {
		log.Fatal("Failed to create save guard", zap.Error(err))
	}
	defer func() {
		if err := guard.Close(); err != nil {
			log.Error("Error closing save guard", zap.Error(err))
		}
	}()

	// Receipt object storage (S3-compatible or stub)
	objectStorage, err := storage.NewObjectStorage(&cfg.Storage)
	if err != nil {
		log.Fatal("Failed to create object storage", zap.Error(err))
	}
	log.Info("Object storage configured", zap.String("provider", cfg.Storage.Provider))

	// Initialize application services
	reconciliationService := labfeeapp.NewReconciliationService(
		ledgerReader, recordRepo, labRepo, guard,
		shared.GuardConfig{Enabled: cfg.Guard.Enabled, TTL: cfg.Guard.TTL}, log)
	attachmentService := labfeeapp.NewAttachmentService(objectStorage, cfg.Storage.KeyPrefix, log)
	laboratoryService := laboratoryapp.NewLaboratoryService(labRepo)

	// Reconciliation domain metrics with periodic record-count collection
	if meterProvider.IsEnabled() {
		reconciliationMetrics, err := telemetry.NewReconciliationMetrics(telemetry.ReconciliationMetricsConfig{
			Meter:          meterProvider.Meter("labfee.reconciliation"),
			Logger:         log,
			RecordProvider: telemetry.NewGormRecordMetricsProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to create reconciliation metrics", zap.Error(err))
		} else {
			reconciliationService.SetMetrics(reconciliationMetrics)
			reconciliationMetrics.StartPeriodicCollection(
				context.Background(), telemetry.NewGormClinicProvider(db.DB), 5*time.Minute)
			defer reconciliationMetrics.Stop()
		}
	}

	// JWT validation for operator tokens issued by the main clinic system
	jwtService := auth.NewJWTService(cfg.JWT)

	// Initialize HTTP handlers
	labFeeHandler := handler.NewLabFeeHandler(reconciliationService, attachmentService)
	laboratoryHandler := handler.NewLaboratoryHandler(laboratoryService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing/metrics - Observe requests
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if tracerProvider.IsEnabled() {
		engine.Use(middleware.Tracing())
		engine.Use(middleware.SpanErrorMarker())
	}
	if meterProvider.IsEnabled() {
		engine.Use(middleware.HTTPMetricsWithMeter(meterProvider.Meter("labfee.http"), true))
	}
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes; every versioned route carries operator identity and
	// clinic scope resolved from the JWT
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	apiMiddleware := []gin.HandlerFunc{
		middleware.JWTAuthMiddlewareWithConfig(jwtConfig),
		middleware.ClinicMiddleware(),
	}
	if cfg.Telemetry.ProfilerEnabled {
		// Profiling labels include the clinic scope, so this runs after auth.
		apiMiddleware = append(apiMiddleware, middleware.Profiling())
	}
	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithMiddleware(apiMiddleware...),
	)

	r.Register(labFeeHandler)
	r.Register(laboratoryHandler)
	r.Register(systemHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
