package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/catalog"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/clients"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/consumers"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/locking"
	"github.com/wms-platform/fulfillment-service/pkg/cloudevents"
	"github.com/wms-platform/fulfillment-service/pkg/config"
	"github.com/wms-platform/fulfillment-service/pkg/idempotency"
	"github.com/wms-platform/fulfillment-service/pkg/kafka"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/middleware"
	"github.com/wms-platform/fulfillment-service/pkg/outbox"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

const serviceName = "fulfillment-service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		logging.New(logging.DefaultConfig(serviceName)).WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	// Setup logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting fulfillment-service API", "storage", cfg.StorageDriver, "kafka", cfg.KafkaEnabled)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize OpenTelemetry tracing
	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		if cfg.Tracing.Enabled {
			logger.Info("Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
		}
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(serviceName))

	// Storage
	store, err := openStorage(ctx, cfg, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open storage")
		os.Exit(1)
	}
	defer store.close(context.Background())

	// Warehouse configuration
	cat := catalog.New()
	if cfg.CatalogFile != "" {
		cat, err = catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			logger.WithError(err).Error("Failed to load catalog", "file", cfg.CatalogFile)
			os.Exit(1)
		}
		logger.Info("Catalog loaded", "file", cfg.CatalogFile, "warehouses", len(cat.Warehouses()))
	}

	// Outbox: events are written with state changes and delivered by the publisher
	eventFactory := cloudevents.NewEventFactory("/" + serviceName)
	recorder := outbox.NewRecorder(store.outbox, eventFactory, kafka.Topics.FulfillmentEvents)

	var sink outbox.EventPublisher = outbox.LogPublisher{Logger: logger}
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg.Kafka, logger, m)
		defer producer.Close()
		sink = producer
		logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	}

	publisherConfig := outbox.DefaultPublisherConfig()
	publisherConfig.PollInterval = cfg.OutboxPollInterval
	outboxPublisher := outbox.NewPublisher(store.outbox, sink, logger, m, publisherConfig)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()

	// Route locks
	var locker application.Locker = locking.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		redisConfig := locking.DefaultRedisConfig(cfg.RedisAddr)
		redisConfig.TTL = cfg.RouteLockTTL
		redisLocker := locking.NewRedisLocker(locking.NewRedisClient(redisConfig), redisConfig, logger)
		if err := redisLocker.HealthCheck(ctx); err != nil {
			logger.WithError(err).Error("Failed to reach redis", "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer redisLocker.Close()
		locker = redisLocker
		logger.Info("Distributed route locks enabled", "addr", cfg.RedisAddr)
	}

	// Order service client
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("order-service"), logger.Logger, m)
	orderClient := clients.NewOrderServiceClient(clients.OrderClientConfig{
		BaseURL: cfg.OrderServiceURL,
		Timeout: cfg.OrderServiceTimeout,
		Retry:   resilience.DefaultRetryConfig(clients.RetryUpstream),
	}, breaker, logger)

	svc := newServices(store, cat, orderClient, recorder, locker, m, logger)

	// Keep the catalog in step with facility and product changes
	if cfg.KafkaEnabled {
		consumer := kafka.NewConsumer(cfg.Kafka, logger, m)
		projector := consumers.NewCatalogProjector(cat, svc.ledger, store.stock, logger)
		projector.Register(consumer)
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Consumer stopped")
			}
		}()
		defer consumer.Close()
		logger.Info("Catalog consumer started")
	}

	router := newRouter(svc, routerConfig{
		keys:          store.keys,
		ready:         store.health,
		metrics:       m,
		enableTracing: cfg.Tracing.Enabled,
		retention:     cfg.IdempotencyRetention,
	}, logger)

	// Start server
	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	stop()

	logger.Info("Server stopped")
}

// services holds the application layer
type services struct {
	ledger   *application.StockLedger
	queries  *application.StockQueryService
	advisory *application.TransferAdvisory
	routes   *application.RouteService
	scans    *application.ScanService
	returns  *application.ReturnService
}

func newServices(
	store *storage,
	cat *catalog.Catalog,
	orders application.OrderService,
	recorder application.EventRecorder,
	locker application.Locker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *services {
	ledger := application.NewStockLedger(store.stock, store.tx, cat, cat, recorder, m, logger)
	advisory := application.NewTransferAdvisory(store.routes, store.stock, store.tx, cat, m, logger)
	return &services{
		ledger:   ledger,
		queries:  application.NewStockQueryService(store.stock, store.tx, cat, m, logger),
		advisory: advisory,
		routes:   application.NewRouteService(store.routes, store.stock, ledger, advisory, orders, cat, store.tx, recorder, locker, m, logger),
		scans:    application.NewScanService(store.routes, store.stock, ledger, advisory, cat, store.tx, recorder, locker, m, logger),
		returns:  application.NewReturnService(store.returns, ledger, cat, cat, store.tx, recorder, logger),
	}
}

type routerConfig struct {
	keys          idempotency.KeyRepository
	ready         func(ctx context.Context) error
	metrics       *metrics.Metrics
	enableTracing bool
	retention     time.Duration
}

func newRouter(svc *services, rc routerConfig, logger *logging.Logger) *gin.Engine {
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middlewareConfig.Metrics = rc.metrics
	middlewareConfig.EnableTracing = rc.enableTracing
	middleware.Setup(router, middlewareConfig)

	// Retried scans replay the stored response
	idempotencyConfig := idempotency.DefaultConfig(serviceName, rc.keys, logger)
	if rc.metrics != nil {
		idempotencyConfig.Metrics = rc.metrics
	}
	if rc.retention > 0 {
		idempotencyConfig.RetentionPeriod = rc.retention
	}
	idempotent := idempotency.Middleware(idempotencyConfig)

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func(c *gin.Context) error {
		return rc.ready(c.Request.Context())
	}))

	// Metrics endpoint
	if rc.metrics != nil {
		router.GET("/metrics", middleware.MetricsEndpoint(rc.metrics))
	}

	api := router.Group("/api/v1")
	{
		// Routes
		api.POST("/routes", createRouteHandler(svc.routes, logger))
		api.GET("/routes", listRoutesHandler(svc.routes, logger))
		api.GET("/routes/:routeId", getRouteHandler(svc.routes, logger))
		api.POST("/routes/:routeId/cancel", cancelRouteHandler(svc.routes, logger))
		api.POST("/routes/:routeId/complete", completeRouteHandler(svc.routes, logger))
		api.GET("/routes/:routeId/progress", pickingProgressHandler(svc.routes, logger))
		api.GET("/routes/:routeId/transfer-check", transferCheckHandler(svc.advisory, logger))

		// Scanning
		api.POST("/routes/:routeId/scan/shelf", idempotent, scanShelfHandler(svc.scans, logger))
		api.POST("/routes/:routeId/scan/barcode", idempotent, scanBarcodeHandler(svc.scans, logger))

		// Stock
		api.GET("/stock/:productId", productStockHandler(svc.queries, logger))
		api.GET("/stock/:productId/shelves/:shelfId", locationStockHandler(svc.queries, logger))
		api.GET("/stock/:productId/reconcile", reconcileHandler(svc.queries, logger))
		api.POST("/stock/:productId/receive", idempotent, receiveStockHandler(svc.ledger, logger))
		api.POST("/stock/:productId/adjust", idempotent, adjustStockHandler(svc.ledger, logger))

		// Ledger
		api.POST("/movements", idempotent, recordMovementHandler(svc.ledger, logger))
		api.GET("/movements", listMovementsHandler(svc.queries, logger))
		api.POST("/movements/:movementId/reverse", reverseMovementHandler(svc.ledger, logger))
		api.POST("/transfers", idempotent, transferStockHandler(svc.ledger, logger))

		// Returns
		api.POST("/returns", idempotent, registerReturnHandler(svc.returns, logger))
		api.GET("/returns", listReturnsHandler(svc.returns, logger))
		api.GET("/returns/:returnId", getReturnHandler(svc.returns, logger))
		api.POST("/returns/:returnId/resolve", resolveReturnHandler(svc.returns, logger))
		api.POST("/returns/:returnId/restock", restockReturnHandler(svc.returns, logger))
	}

	return router
}
