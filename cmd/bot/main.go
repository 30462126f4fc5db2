package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tienditalabs/whatsapp-commerce-bot/internal/api/router"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/audit"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/bot"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/commerce"
	appconfig "github.com/tienditalabs/whatsapp-commerce-bot/internal/config"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/observability/metrics"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/webhook"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/whatsapp"
	"github.com/tienditalabs/whatsapp-commerce-bot/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting whatsapp-commerce-bot",
		"env", cfg.Env,
		"port", cfg.Port,
		"state_backend", cfg.StateBackend,
	)

	auditSink, err := audit.NewFileSink(cfg.AuditLogPath, logger)
	if err != nil {
		logger.Error("failed to open audit log", "error", err, "path", cfg.AuditLogPath)
		os.Exit(1)
	}

	botMetrics := metrics.NewBotMetrics(prometheus.DefaultRegisterer)

	stateStore := buildStateStore(cfg, logger)
	commerceClient := commerce.NewClient(cfg.CommerceBaseURL, logger)
	sender := whatsapp.NewSender(cfg.GraphAPIBaseURL, cfg.GraphAPIVersion, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken, auditSink, logger)

	dispatcher := bot.NewDispatcher(commerceClient, sender, stateStore, auditSink, botMetrics, cfg.CatalogImageURL(), logger)
	webhookHandler := webhook.NewHandler(cfg.WebhookVerifyToken, cfg.WebhookAppSecret, dispatcher, botMetrics, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		WebhookHandler:     webhookHandler,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
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

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// buildStateStore selects the pending-transaction backend. It falls back to
// the in-memory store when Redis is not reachable at startup.
func buildStateStore(cfg *appconfig.Config, logger *logging.Logger) bot.StateStore {
	if cfg.StateBackend != "redis" {
		return bot.NewMemoryStateStore()
	}

	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, using in-memory state", "error", err, "addr", cfg.RedisAddr)
		return bot.NewMemoryStateStore()
	}

	logger.Info("using redis state store", "addr", cfg.RedisAddr, "ttl", cfg.PendingTTL)
	return bot.NewRedisStateStore(client, cfg.PendingTTL)
}
