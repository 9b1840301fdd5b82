package router

import (
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/servease/marketplace-api/internal/handler/account"
	"github.com/servease/marketplace-api/internal/handler/auth"
	"github.com/servease/marketplace-api/internal/handler/booking"
	"github.com/servease/marketplace-api/internal/handler/catalog"
	"github.com/servease/marketplace-api/internal/handler/health"
	"github.com/servease/marketplace-api/internal/handler/payment"
	"github.com/servease/marketplace-api/internal/handler/review"
	"github.com/servease/marketplace-api/internal/middleware"
	"github.com/servease/marketplace-api/internal/model"
)

// pincodeRegex matches six-digit Indian postal codes.
var pincodeRegex = regexp.MustCompile(`^[1-9][0-9]{5}$`)

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	authH    *auth.Handler
	accountH *account.Handler
	catalogH *catalog.Handler
	bookingH *booking.Handler
	paymentH *payment.Handler
	reviewH  *review.Handler
	healthH  *health.Handler
	metrics  *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

type Config struct {
	RateLimit  rate.Limit
	RateBurst  int
	CORSConfig middleware.CORSConfig
}

func NewRouter(
	authMw *middleware.AuthMiddleware,
	authH *auth.Handler,
	accountH *account.Handler,
	catalogH *catalog.Handler,
	bookingH *booking.Handler,
	paymentH *payment.Handler,
	reviewH *review.Handler,
	healthH *health.Handler,
	logger *zerolog.Logger,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	registerValidators()

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     authMw,
		authH:    authH,
		accountH: accountH,
		catalogH: catalogH,
		bookingH: bookingH,
		paymentH: paymentH,
		reviewH:  reviewH,
		healthH:  healthH,
		metrics:  newRouterMetrics(),
	}

	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		r.metricsMiddleware(),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  config.RateLimit,
		Burst: config.RateBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	// Public routes
	r.authH.RegisterRoutes(api.Group("/auth"))
	r.catalogH.RegisterPublicRoutes(api)
	r.reviewH.RegisterPublicRoutes(api)

	// Authenticated routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.accountH.RegisterRoutes(protected)

	customer := protected.Group("")
	customer.Use(r.auth.RequireRole(model.UserRoleCustomer, model.UserRoleAdmin))
	r.bookingH.RegisterCustomerRoutes(customer)
	r.paymentH.RegisterCustomerRoutes(customer)
	r.reviewH.RegisterCustomerRoutes(customer)

	provider := protected.Group("/provider")
	provider.Use(r.auth.RequireRole(model.UserRoleProvider, model.UserRoleAdmin))
	r.catalogH.RegisterProviderRoutes(provider)
	r.bookingH.RegisterProviderRoutes(provider)

	admin := protected.Group("/admin")
	admin.Use(r.auth.RequireRole(model.UserRoleAdmin))
	r.catalogH.RegisterAdminRoutes(admin)
	r.paymentH.RegisterAdminRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
			return pincodeRegex.MatchString(fl.Field().String())
		})
	}
}

func newRouterMetrics() *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
