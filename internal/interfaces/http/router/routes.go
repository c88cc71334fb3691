package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/dormitory/backend/internal/infrastructure/config"
	"github.com/dormitory/backend/internal/infrastructure/logger"
	"github.com/dormitory/backend/internal/interfaces/http/handler"
	"github.com/dormitory/backend/internal/interfaces/http/middleware"
)

// healthPath is served outside the versioned API and skipped by tracing and profiling
const healthPath = "/health"

// Handlers bundles the HTTP handlers of the billing API
type Handlers struct {
	Invoice   *handler.InvoiceHandler
	Payment   *handler.PaymentHandler
	Residence *handler.ResidenceHandler
	VNPay     *handler.VNPayHandler
	System    *handler.SystemHandler
}

// Config controls the middleware chain
type Config struct {
	ServiceName      string
	HTTP             config.HTTPConfig
	TracingEnabled   bool
	ProfilingEnabled bool
	// Meter records HTTP server metrics; nil disables them
	Meter metric.Meter
}

// New builds the gin engine with the full middleware chain and every route.
// The returned stop function releases the rate limiter's background sweeper.
func New(cfg Config, h Handlers, log *zap.Logger) (*gin.Engine, func()) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Warn("Custom validations not registered", zap.Error(err))
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request ID feeds recovery, the request log and the
	// span; the span must exist before metrics and profiling labels read it.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
		SkipPaths:   []string{healthPath},
	}))
	if cfg.TracingEnabled {
		engine.Use(middleware.SpanEnricher())
	}
	if cfg.Meter != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Meter, log))
	}
	if cfg.ProfilingEnabled {
		engine.Use(middleware.Profiling(healthPath))
	}
	security := middleware.DefaultSecurityConfig()
	security.HSTSMaxAge = cfg.HTTP.HSTSMaxAge
	engine.Use(middleware.SecureWithConfig(security))
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg.HTTP)))
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	engine.GET(healthPath, h.System.Health)

	var apiMiddleware []gin.HandlerFunc
	stop := func() {}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
		stop = limiter.Stop
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}
	Mount(engine, "v1", apiMiddleware, BillingResources(h)...)

	return engine, stop
}

func corsConfig(hc config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = hc.CORSAllowOrigins
	if len(hc.CORSAllowMethods) > 0 {
		cors.AllowMethods = hc.CORSAllowMethods
	}
	if len(hc.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = hc.CORSAllowHeaders
	}
	return cors
}

// BillingResources lists the collections of the versioned API.
func BillingResources(h Handlers) []Resource {
	return []Resource{
		{Prefix: "/invoices", Routes: []Route{
			get("", h.Invoice.List),
			post("", h.Invoice.Create),
			post("/mark-overdue", h.Invoice.MarkOverdue),
			get("/:id", h.Invoice.GetByID),
			put("/:id", h.Invoice.Update),
			del("/:id", h.Invoice.Delete),
			put("/:id/items", h.Invoice.ReplaceItems),
			post("/:id/cancel", h.Invoice.Cancel),
			post("/:id/vnpay", h.Invoice.CreatePaymentURL),
		}},
		{Prefix: "/payments", Routes: []Route{
			get("", h.Payment.List),
			post("", h.Payment.Create),
			get("/:id", h.Payment.GetByID),
			put("/:id", h.Payment.Update),
			del("/:id", h.Payment.Delete),
		}},
		{Prefix: "/students", Routes: []Route{
			get("", h.Residence.ListStudents),
			post("", h.Residence.CreateStudent),
			get("/:id", h.Residence.GetStudent),
		}},
		{Prefix: "/rooms", Routes: []Route{
			get("", h.Residence.ListRooms),
			post("", h.Residence.CreateRoom),
			get("/:id", h.Residence.GetRoom),
		}},
		// called by the gateway and the payer's browser
		{Prefix: "/vnpay", Routes: []Route{
			get("/ipn", h.VNPay.IPN),
			get("/return", h.VNPay.Return),
		}},
		{Prefix: "/system", Routes: []Route{
			get("/info", h.System.GetSystemInfo),
		}},
	}
}
