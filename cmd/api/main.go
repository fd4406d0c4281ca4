package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/bookline/bookline/internal/api/router"
	"github.com/bookline/bookline/internal/appointments"
	"github.com/bookline/bookline/internal/availability"
	appconfig "github.com/bookline/bookline/internal/config"
	"github.com/bookline/bookline/internal/notifications"
	"github.com/bookline/bookline/internal/notify"
	"github.com/bookline/bookline/internal/observability/metrics"
	"github.com/bookline/bookline/internal/users"
	"github.com/bookline/bookline/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bookline API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	redisClient := buildRedisClient(ctx, cfg, logger)

	// Repositories
	userRepo := users.NewPostgresRepository(pool)
	apptRepo := appointments.NewPostgresRepository(pool)
	notifRepo := notifications.NewPostgresRepository(pool)

	// Services
	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	slotCache := availability.NewCache(redisClient, cfg.AvailabilityCacheTTL)
	mailer := notify.NewSendGridMailer(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger.Named("notify"))

	userService := users.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL, logger.Named("users"))
	bookingService := appointments.NewService(
		apptRepo,
		userRepo,
		notifRepo,
		notifications.NewFormatter(cfg.NotificationLocale),
		mailerOrNil(mailer),
		cacheOrNil(slotCache),
		bookingMetrics,
		logger.Named("appointments"),
	)
	availabilityService := availability.NewService(apptRepo, slotCache, logger.Named("availability"))

	// Router
	r := router.New(&router.Config{
		Logger:             logger,
		Users:              users.NewHandler(userService, logger),
		Appointments:       appointments.NewHandler(bookingService, logger),
		Notifications:      notifications.NewHandler(notifRepo, userRepo, logger),
		Availability:       availability.NewHandler(availabilityService, logger),
		JWTSecret:          cfg.JWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
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

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}

// buildRedisClient returns a configured Redis client or nil when disabled.
func buildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, availability cache disabled", "error", err)
		return nil
	}
	return client
}

// mailerOrNil avoids handing the service a typed nil interface value.
func mailerOrNil(m *notify.SendGridMailer) notify.Mailer {
	if m == nil {
		return nil
	}
	return m
}

// cacheOrNil avoids handing the service a typed nil interface value.
func cacheOrNil(c *availability.Cache) appointments.SlotInvalidator {
	if c == nil {
		return nil
	}
	return c
}
