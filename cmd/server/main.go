package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/dormitory/backend/internal/application/billing"
	residenceapp "github.com/dormitory/backend/internal/application/residence"
	"github.com/dormitory/backend/internal/domain/billing"
	"github.com/dormitory/backend/internal/infrastructure/cache"
	"github.com/dormitory/backend/internal/infrastructure/config"
	"github.com/dormitory/backend/internal/infrastructure/event"
	"github.com/dormitory/backend/internal/infrastructure/logger"
	"github.com/dormitory/backend/internal/infrastructure/payment"
	"github.com/dormitory/backend/internal/infrastructure/persistence"
	"github.com/dormitory/backend/internal/infrastructure/scheduler"
	"github.com/dormitory/backend/internal/infrastructure/telemetry"
	"github.com/dormitory/backend/internal/interfaces/http/handler"
	"github.com/dormitory/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

//	@title			Dormitory Billing API
//	@version		1.0
//	@description	Invoices, payments and VNPay reconciliation for student dormitories
//	@BasePath		/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.FromSettings(cfg.App, cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		_ = providers.Shutdown(context.Background())
	}()
	log = providers.BridgeLogger(log, zapcore.InfoLevel)

	profiler, err := telemetry.StartProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", zap.Error(err))
	} else {
		defer func() {
			_ = profiler.Stop()
		}()
		if profiler.Enabled() {
			providers.EnableSpanProfiles()
		}
	}

	log.Info("Starting dormitory billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.GormLoggerConfig{
		Level:         logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
	})
	db, err := persistence.OpenDatabase(ctx, &cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	var meter metric.Meter
	if providers.MetricsEnabled() {
		meter = providers.Meter(cfg.Telemetry.ServiceName)
	}

	dbMetrics := instrumentDatabase(ctx, db, cfg.Telemetry, meter, log)
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	studentRepo := persistence.NewGormStudentProfileRepository(db.DB)
	roomRepo := persistence.NewGormRoomRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	eventBus := event.NewInMemoryEventBus(log)
	auditHandler := event.NewBillingAuditHandler(log)
	eventBus.Subscribe(auditHandler, auditHandler.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		_ = eventBus.Stop(context.Background())
	}()

	idemStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cfg.Idempotency,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	if closer, ok := idemStore.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	gateway := newGateway(cfg.VNPay, log)

	var billingMetrics *telemetry.BillingMetrics
	if meter != nil {
		billingMetrics, err = telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{Meter: meter, Logger: log})
		if err != nil {
			log.Warn("Billing metrics disabled", zap.Error(err))
		}
	}

	invoiceService := billingapp.NewInvoiceService(billingapp.InvoiceServiceConfig{
		InvoiceRepo:         invoiceRepo,
		PaymentRepo:         paymentRepo,
		StudentRepo:         studentRepo,
		RoomRepo:            roomRepo,
		TxScope:             txScope,
		EventPublisher:      eventBus,
		Metrics:             billingMetrics,
		Logger:              log,
		LedgerRetryAttempts: cfg.Billing.LedgerRetryAttempts,
	})
	paymentService := billingapp.NewPaymentService(billingapp.PaymentServiceConfig{
		PaymentRepo:         paymentRepo,
		InvoiceRepo:         invoiceRepo,
		StudentRepo:         studentRepo,
		TxScope:             txScope,
		EventPublisher:      eventBus,
		Metrics:             billingMetrics,
		Logger:              log,
		LedgerRetryAttempts: cfg.Billing.LedgerRetryAttempts,
	})
	gatewayService := billingapp.NewGatewayService(billingapp.GatewayServiceConfig{
		PaymentRepo:         paymentRepo,
		InvoiceRepo:         invoiceRepo,
		StudentRepo:         studentRepo,
		TxScope:             txScope,
		Gateway:             gateway,
		IdempotencyStore:    idemStore,
		IdempotencyTTL:      cfg.Idempotency.TTL,
		EventPublisher:      eventBus,
		Metrics:             billingMetrics,
		Logger:              log,
		LedgerRetryAttempts: cfg.Billing.LedgerRetryAttempts,
	})
	residenceService := residenceapp.NewResidenceService(studentRepo, roomRepo, log)

	if cfg.Scheduler.OverdueSweepEnabled {
		sweeper, err := scheduler.NewOverdueSweeper(cfg.Scheduler, invoiceService, log)
		if err != nil {
			log.Fatal("Invalid scheduler configuration", zap.Error(err))
		}
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal("Failed to start overdue sweeper", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.JobTimeout)
			defer cancel()
			if err := sweeper.Stop(stopCtx); err != nil {
				log.Warn("Overdue sweeper did not stop cleanly", zap.Error(err))
			}
		}()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine, stopRouter := router.New(router.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		HTTP:             cfg.HTTP,
		TracingEnabled:   providers.TracingEnabled(),
		ProfilingEnabled: profiler != nil && profiler.Enabled(),
		Meter:            meter,
	}, router.Handlers{
		Invoice:   handler.NewInvoiceHandler(invoiceService, gatewayService),
		Payment:   handler.NewPaymentHandler(paymentService),
		Residence: handler.NewResidenceHandler(residenceService),
		VNPay:     handler.NewVNPayHandler(gatewayService),
		System:    handler.NewSystemHandler(db, cfg.App.Name, version),
	}, log)
	defer stopRouter()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// instrumentDatabase attaches tracing and query metrics to db. It returns
// nil when neither is enabled.
func instrumentDatabase(ctx context.Context, db *persistence.Database, tc config.TelemetryConfig, meter metric.Meter, log *zap.Logger) *telemetry.DBMetrics {
	if !tc.DBTraceEnabled && meter == nil {
		return nil
	}

	dbCfg := telemetry.DBConfig{
		Tracing:            tc.Enabled && tc.DBTraceEnabled,
		LogFullSQL:         tc.DBLogFullSQL,
		SlowQueryThreshold: tc.DBSlowQueryThresh,
	}

	var metrics *telemetry.DBMetrics
	if meter != nil {
		m, err := telemetry.NewDBMetrics(meter, dbCfg, log)
		if err != nil {
			log.Warn("Database metrics disabled", zap.Error(err))
		} else {
			metrics = m
		}
	}

	if err := telemetry.InstrumentDB(db.DB, dbCfg, metrics, log); err != nil {
		log.Warn("Database instrumentation failed", zap.Error(err))
	}

	if metrics != nil {
		if sqlDB, err := db.DB.DB(); err == nil {
			metrics.StartPoolStatsCollection(ctx, sqlDB)
		}
	}
	return metrics
}

// newGateway returns the VNPay adapter, or nil when merchant credentials are
// missing. Checkout then answers GATEWAY_NOT_CONFIGURED.
func newGateway(vc config.VNPayConfig, log *zap.Logger) billing.PaymentGateway {
	if !payment.IsConfigured(vc) {
		log.Warn("VNPay credentials not set, online payments are disabled")
		return nil
	}
	gwCfg, err := payment.NewVNPayConfig(vc)
	if err != nil {
		log.Fatal("Invalid VNPay configuration", zap.Error(err))
	}
	adapter, err := payment.NewVNPayAdapter(gwCfg)
	if err != nil {
		log.Fatal("Failed to create VNPay adapter", zap.Error(err))
	}
	log.Info("VNPay gateway configured", zap.String("tmn_code", vc.TmnCode))
	return adapter
}
