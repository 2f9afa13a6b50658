package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wellora/telehealth-booking/internal/api/router"
	"github.com/wellora/telehealth-booking/internal/appointments"
	appconfig "github.com/wellora/telehealth-booking/internal/config"
	"github.com/wellora/telehealth-booking/internal/content"
	"github.com/wellora/telehealth-booking/internal/customers"
	"github.com/wellora/telehealth-booking/internal/events"
	"github.com/wellora/telehealth-booking/internal/notify"
	"github.com/wellora/telehealth-booking/internal/observability/metrics"
	"github.com/wellora/telehealth-booking/internal/payments"
	"github.com/wellora/telehealth-booking/internal/qualiphy"
	"github.com/wellora/telehealth-booking/internal/subscriptions"
	"github.com/wellora/telehealth-booking/pkg/logging"
)

func main() {
	// .env is optional; real deployments set environment variables directly
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telehealth booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, booking velocity checks will fail open", "error", err)
	}

	// Stores and gateway clients
	contentClient := content.NewClient(cfg.ContentBaseURL, cfg.ContentDataset, cfg.ContentToken, logger)
	catalog := content.NewAppointmentStore(contentClient, logger)
	stripeClient := payments.NewClient(cfg.StripeSecretKey, logger)

	apptRepo := appointments.NewRepository(pool)
	custRepo := customers.NewRepository(pool)
	subRepo := subscriptions.NewRepository(pool)
	processedStore := events.NewProcessedStore(pool)

	notifier := notify.NewService(buildEmailSender(ctx, cfg, logger), logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	bookingMetrics := metrics.NewBookingMetrics(reg)

	velocityCfg := payments.VelocityConfig{
		MaxBookingsPerEmail: cfg.MaxBookingsPerEmail,
		BookingWindowHours:  cfg.BookingWindowHours,
		EnableBookingCheck:  true,
	}
	velocity := payments.NewVelocityChecker(redisClient, velocityCfg, logger)

	successURL := cfg.PublicBaseURL + cfg.CheckoutSuccessPath + "?session_id={CHECKOUT_SESSION_ID}"
	cancelURL := cfg.PublicBaseURL + cfg.CheckoutCancelPath

	bookingService := appointments.NewService(
		catalog,
		stripeClient,
		custRepo,
		subRepo,
		apptRepo,
		notifier,
		successURL,
		cancelURL,
		logger,
	)
	bookingHandler := appointments.NewHandler(bookingService, velocity, bookingMetrics, logger)

	stripeWebhook := payments.NewStripeWebhookHandler(
		cfg.StripeWebhookSecret,
		bookingService,
		processedStore,
		bookingMetrics,
		logger,
	)

	reconciler := qualiphy.NewReconciler(apptRepo, catalog, notifier, logger)
	qualiphyWebhook := qualiphy.NewHandler(reconciler, bookingMetrics, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		BookingHandler:  bookingHandler,
		StripeWebhook:   stripeWebhook,
		QualiphyWebhook: qualiphyWebhook,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildEmailSender picks the configured email provider. Returns nil when no
// provider is configured, which disables notifications.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("failed to load AWS config, email disabled", "error", err)
			return nil
		}
		client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			if cfg.AWSEndpointOverride != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointOverride)
			}
		})
		if sender := notify.NewSESSender(client, notify.SESConfig{
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger); sender != nil {
			return sender
		}
	default:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.NotifyFromEmail,
			FromName:  cfg.NotifyFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	logger.Warn("no email provider configured, notifications disabled")
	return nil
}
