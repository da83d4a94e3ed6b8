package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-core/internal/handler/health"
	"github.com/jwalitptl/clinic-core/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-core/internal/middleware"
	"github.com/jwalitptl/clinic-core/pkg/logger"
	"github.com/jwalitptl/clinic-core/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler serves the anonymous booking surface of a clinic
type PublicHandler interface {
	RegisterPublicRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	Mode             string
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RateIdleTTL      time.Duration
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
	MetricsPath      string
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	health  *health.Handler
	prom    *prometheus.Handler
	public  PublicHandler
	private []Handler
	limiter *middleware.RateLimiter
	config  RouterConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	promH *prometheus.Handler,
	public PublicHandler,
	private []Handler,
	log *logger.Logger,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine:  engine,
		auth:    auth,
		health:  healthH,
		prom:    promH,
		public:  public,
		private: private,
		config:  config,
	}
	if config.RateLimitEnabled {
		r.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:    config.RateLimit,
			Burst:   config.RateBurst,
			IdleTTL: config.RateIdleTTL,
		})
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.ErrorHandler(log),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)
	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	if r.prom != nil {
		r.engine.GET(r.config.MetricsPath, r.prom.Handler())
	}

	api := r.engine.Group("/api/v1")

	public := api.Group("/public/clinics/:slug")
	if r.limiter != nil {
		public.Use(r.limiter.RateLimit())
	}
	public.Use(r.auth.PublicTenant("slug"))
	r.public.RegisterPublicRoutes(public)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.private {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
