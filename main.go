package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/cache"
	apperrors "github.com/NewtonMutugi/ict-innovations-africa-backend/common/errors"
	applogger "github.com/NewtonMutugi/ict-innovations-africa-backend/common/logger"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/common/middleware"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/config"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/controllers"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/database"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/events"
	awspkg "github.com/NewtonMutugi/ict-innovations-africa-backend/pkg/aws"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/providers"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/repository"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/routes"
	servicepkg "github.com/NewtonMutugi/ict-innovations-africa-backend/services"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const serviceName = "hosting-payments"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// AWS is optional; without it SNS, SQS, Secrets Manager and CloudWatch stay off.
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx, awspkg.Options{
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.AWSEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
	})

	var logSink io.Writer
	if awsErr == nil && cfg.CloudWatchEnabled {
		if cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.LogGroup, serviceName); err == nil {
			logSink = cw
		} else {
			log.Printf("CloudWatch Logs unavailable: %v", err)
		}
	}

	logger, err := applogger.New(cfg.Env, logSink)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if awsErr != nil {
		logger.Warn("AWS config unavailable, AWS integrations disabled", zap.Error(awsErr))
	}

	if cfg.UseSecrets && awsErr == nil {
		cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	db, err := database.Connect(ctx, cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db) //nolint:errcheck

	if cfg.SeedPlans {
		if err := database.SeedPlans(ctx, db, database.DefaultPlans()); err != nil {
			logger.Fatal("Failed to seed hosting plans", zap.Error(err))
		}
	}

	var metrics awspkg.MetricsRecorder
	if awsErr == nil {
		metrics = awspkg.NewMetricsClient(awsCfg, "HostingPayments", cfg.CloudWatchEnabled)
	}

	var verifyCache cache.VerificationCache
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, verification cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			verifyCache = cache.NewRedisVerificationCache(client, cfg.VerifyCacheTTL)
		}
	}

	publisher := newPublisher(cfg, awsCfg, awsErr, logger)
	defer publisher.Close() //nolint:errcheck

	// Provider and DI chain
	gateway := providers.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.GatewayTimeout)
	paymentRepo := repository.NewGormPaymentRepository(db)
	planRepo := repository.NewGormHostingPlanRepository(db)
	resolver := servicepkg.TariffResolver{
		Fixed: servicepkg.FixedTariff{Value: cfg.FixedTariff, Currency: cfg.Currency},
		Plan:  servicepkg.PlanPricing{Plans: planRepo, Currency: cfg.Currency},
	}
	if len(cfg.CountryTariffs) > 0 {
		resolver.Country = servicepkg.CountryTariff{Tariffs: cfg.CountryTariffs, Currency: cfg.Currency}
	}

	paymentService := servicepkg.NewPaymentService(
		paymentRepo,
		gateway,
		resolver,
		publisher,
		verifyCache,
		metrics,
		servicepkg.Options{CallbackURL: cfg.CallbackURL, Channels: cfg.Channels},
		logger,
	)
	paymentController := controllers.NewPaymentController(paymentService)
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 3*time.Minute)

	var workers sync.WaitGroup
	startWorker := func(name string, fn func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			fn(ctx)
			logger.Info("Worker stopped", zap.String("worker", name))
		}()
	}

	startWorker("rate-limiter-cleanup", limiter.Run)
	if cfg.ReconcileEnabled {
		reconciler := servicepkg.NewReconciler(paymentRepo, paymentService, cfg.ReconcileInterval, cfg.ReconcileAfter, cfg.ReconcileBatch, logger)
		startWorker("reconciler", reconciler.Run)
	}
	if cfg.CallbackQueueURL != "" && awsErr == nil {
		consumer := servicepkg.NewCallbackConsumer(awspkg.NewSQSConsumer(awsCfg, cfg.CallbackQueueURL, logger), paymentService, logger)
		startWorker("callback-consumer", func(ctx context.Context) {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Callback consumer exited", zap.Error(err))
			}
		})
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(apperrors.ErrorMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})

	routes.RegisterPaymentRoutes(r, paymentController, limiter, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Payment service started", zap.String("port", cfg.Port), zap.String("event_bus", cfg.EventBus))
	<-ctx.Done()
	logger.Info("Shutting down payment service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	workers.Wait()
	logger.Info("Server exited cleanly")
}

// newPublisher picks the payment event sink named by EVENT_BUS.
func newPublisher(cfg *config.Config, awsCfg sdkaws.Config, awsErr error, logger *zap.Logger) events.Publisher {
	switch cfg.EventBus {
	case "sns":
		if awsErr != nil {
			logger.Warn("EVENT_BUS=sns without AWS config, events disabled")
			return events.Noop{}
		}
		return events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.PaymentTopicARN)
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}
	return events.Noop{}
}
