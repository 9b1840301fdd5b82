package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/servease/marketplace-api/internal/config"
	"github.com/servease/marketplace-api/internal/email"
	accountHandler "github.com/servease/marketplace-api/internal/handler/account"
	authHandler "github.com/servease/marketplace-api/internal/handler/auth"
	bookingHandler "github.com/servease/marketplace-api/internal/handler/booking"
	catalogHandler "github.com/servease/marketplace-api/internal/handler/catalog"
	healthHandler "github.com/servease/marketplace-api/internal/handler/health"
	paymentHandler "github.com/servease/marketplace-api/internal/handler/payment"
	reviewHandler "github.com/servease/marketplace-api/internal/handler/review"
	"github.com/servease/marketplace-api/internal/middleware"
	"github.com/servease/marketplace-api/internal/repository/postgres"
	"github.com/servease/marketplace-api/internal/router"
	accountService "github.com/servease/marketplace-api/internal/service/account"
	authService "github.com/servease/marketplace-api/internal/service/auth"
	bookingService "github.com/servease/marketplace-api/internal/service/booking"
	catalogService "github.com/servease/marketplace-api/internal/service/catalog"
	paymentService "github.com/servease/marketplace-api/internal/service/payment"
	reviewService "github.com/servease/marketplace-api/internal/service/review"
	"github.com/servease/marketplace-api/pkg/auth"
	"github.com/servease/marketplace-api/pkg/gateway"
	"github.com/servease/marketplace-api/pkg/logger"
	redisBroker "github.com/servease/marketplace-api/pkg/messaging/redis"
	"github.com/servease/marketplace-api/pkg/metrics"
	"github.com/servease/marketplace-api/pkg/security"
)

func main() {
	log := logger.NewLogger(nil).Zerolog()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	txRunner := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	reviewRepo := postgres.NewReviewRepository(db)

	// Infrastructure
	gatewayClient := gateway.NewRazorpayClient(gateway.Config{
		KeyID:     cfg.Gateway.KeyID,
		KeySecret: cfg.Gateway.KeySecret,
		BaseURL:   cfg.Gateway.BaseURL,
	})

	broker, err := redisBroker.NewRedisBroker(redisBroker.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	mailer := email.NewService(cfg.Email)
	appMetrics := metrics.NewMetrics("marketplace", "api")
	tokens := auth.NewJWTService(auth.Config{
		Secret:             cfg.JWT.Secret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		ExpiryHours:        cfg.JWT.ExpiryHours,
		RefreshExpiryHours: cfg.JWT.RefreshExpiryHours,
	})
	hasher := security.NewBcryptHasher(0)

	// Services
	authSvc := authService.NewService(userRepo, tokens, hasher, log)
	accountSvc := accountService.NewService(userRepo)
	catalogSvc := catalogService.NewService(categoryRepo, serviceRepo)
	bookingSvc := bookingService.NewService(bookingRepo, paymentRepo, catalogSvc, userRepo, gatewayClient, broker, appMetrics, log)
	paymentSvc := paymentService.NewService(txRunner, paymentRepo, bookingRepo, serviceRepo, userRepo, gatewayClient, broker, mailer, appMetrics, log)
	reviewSvc := reviewService.NewService(reviewRepo, bookingRepo, serviceRepo, log)

	// Handlers and router
	authMw := middleware.NewAuthMiddleware(tokens)
	r := router.NewRouter(
		authMw,
		authHandler.NewHandler(authSvc),
		accountHandler.NewHandler(accountSvc),
		catalogHandler.NewHandler(catalogSvc),
		bookingHandler.NewHandler(bookingSvc),
		paymentHandler.NewHandler(paymentSvc),
		reviewHandler.NewHandler(reviewSvc),
		healthHandler.NewHandler(db),
		log,
		router.Config{
			RateLimit:  rate.Limit(cfg.RateLimit.RPS),
			RateBurst:  cfg.RateLimit.Burst,
			CORSConfig: middleware.DefaultCORSConfig(),
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
