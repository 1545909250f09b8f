package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/crm/invoicing/internal/application/billing"
	"github.com/crm/invoicing/internal/domain/billing"
	"github.com/crm/invoicing/internal/domain/shared/valueobject"
	"github.com/crm/invoicing/internal/infrastructure/config"
	"github.com/crm/invoicing/internal/infrastructure/event"
	"github.com/crm/invoicing/internal/infrastructure/identity"
	"github.com/crm/invoicing/internal/infrastructure/logger"
	"github.com/crm/invoicing/internal/infrastructure/persistence"
	"github.com/crm/invoicing/internal/infrastructure/scheduler"
	"github.com/crm/invoicing/internal/infrastructure/telemetry"
	"github.com/crm/invoicing/internal/interfaces/http/handler"
	"github.com/crm/invoicing/internal/interfaces/http/middleware"
	"github.com/crm/invoicing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

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

	log.Info("Starting invoicing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize telemetry
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	businessMetrics, err := telemetry.NewBusinessMetrics(meterProvider.Meter("invoicing"), log)
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize Redis client (notifications and job locks)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()

	// Initialize repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	dunningRepo := persistence.NewGormDunningRepository(db.DB)

	// Invoice number generator per the configured scheme
	numberGen, err := persistence.NewNumberGenerator(
		billing.NumberingScheme(cfg.Billing.NumberingScheme), db.DB, invoiceRepo,
	)
	if err != nil {
		log.Fatal("Failed to initialize number generator", zap.Error(err))
	}

	// Customer lookup against the identity service
	customerClient := identity.NewCustomerClient(cfg.Identity, log)

	// Initialize application services
	invoiceService := billingapp.NewInvoiceService(invoiceRepo, numberGen, customerClient,
		billingapp.InvoiceServiceConfig{
			DefaultDueDays:  cfg.Billing.DefaultDueDays,
			DefaultCurrency: valueobject.Currency(cfg.Billing.DefaultCurrency),
		}, log)
	paymentService := billingapp.NewPaymentService(paymentRepo, invoiceRepo, log)
	dunningService := billingapp.NewDunningService(dunningRepo, invoiceRepo,
		billingapp.DunningServiceConfig{
			Thresholds: cfg.Billing.DunningThresholds,
			Templates:  cfg.Billing.DunningTemplates,
			AutoSend:   cfg.Billing.DunningAutoSend,
		}, log)

	// Initialize event bus with the notification fan-out and metrics recorder
	eventBus := event.NewInMemoryEventBus(log)

	notifier := event.NewNotifier(redisClient, log)
	eventBus.Subscribe(notifier)

	metricsRecorder := event.NewMetricsRecorder(businessMetrics)
	eventBus.Subscribe(metricsRecorder)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	invoiceService.SetEventPublisher(eventBus)
	paymentService.SetEventPublisher(eventBus)
	dunningService.SetEventPublisher(eventBus)

	// Build the daily jobs. The scheduler is always constructed so the
	// manual trigger endpoint works; the loop only starts when enabled.
	sweepHour, sweepMinute, err := scheduler.ParseDailySchedule(cfg.Scheduler.OverdueSweepSchedule)
	if err != nil {
		log.Fatal("Invalid overdue sweep schedule", zap.Error(err))
	}
	dunningHour, dunningMinute, err := scheduler.ParseDailySchedule(cfg.Scheduler.DunningRunSchedule)
	if err != nil {
		log.Fatal("Invalid dunning run schedule", zap.Error(err))
	}

	tenantProvider := persistence.NewGormTenantProvider(db.DB)
	jobLock := scheduler.NewRedisJobLock(redisClient, cfg.Scheduler.LockTTL, log)

	jobScheduler := scheduler.NewScheduler(cfg.Scheduler, jobLock, log,
		scheduler.NewOverdueSweepJob(sweepHour, sweepMinute, tenantProvider, invoiceService, log),
		scheduler.NewDunningRunJob(dunningHour, dunningMinute, tenantProvider, dunningService, log),
	)
	if cfg.Scheduler.Enabled {
		if err := jobScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()
	}

	// Initialize HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	dunningHandler := handler.NewDunningHandler(dunningService)
	systemHandler := handler.NewSystemHandler(jobScheduler)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, outermost first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())

	// Tenant scoping for all billing endpoints. System and health endpoints
	// serve operators, not tenants.
	engine.Use(middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/api/v1/system"},
		Required:  true,
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Setup API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(invoiceHandler).
		Register(paymentHandler).
		Register(dunningHandler).
		Register(systemHandler)
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
