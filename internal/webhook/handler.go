// Package webhook receives WhatsApp Cloud API notifications and hands
// normalized messages to the dispatch engine.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tienditalabs/whatsapp-commerce-bot/internal/bot"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/observability/metrics"
	"github.com/tienditalabs/whatsapp-commerce-bot/pkg/logging"
)

var tracer = otel.Tracer("tiendita.internal.webhook")

const maxBodyBytes = 1 << 20

type messageDispatcher interface {
	Handle(ctx context.Context, msg bot.InboundMessage)
}

// Handler handles the Meta webhook verification handshake and inbound events.
type Handler struct {
	verifyToken string
	appSecret   string
	dispatcher  messageDispatcher
	metrics     *metrics.BotMetrics
	logger      *logging.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(verifyToken, appSecret string, dispatcher messageDispatcher, botMetrics *metrics.BotMetrics, logger *logging.Logger) *Handler {
	if dispatcher == nil {
		panic("webhook: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		dispatcher:  dispatcher,
		metrics:     botMetrics,
		logger:      logger,
	}
}

// Verify handles GET /webhook, Meta's subscription handshake.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.verifyToken {
		h.logger.Warn("webhook verification rejected", "mode", mode)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	h.logger.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// Receive handles POST /webhook. Each notification is processed to completion
// before the 200 acknowledgement is written.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "webhook.receive")
	defer span.End()
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	if h.appSecret != "" {
		if !ValidateSignature(r, h.appSecret, body) {
			h.logger.Warn("invalid webhook signature")
			h.metrics.ObserveInbound("unknown", "rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			span.RecordError(errors.New("invalid webhook signature"))
			return
		}
	}

	var notification Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		h.logger.Error("failed to parse webhook payload", "error", err)
		h.metrics.ObserveInbound("unknown", "rejected")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	// Delivery receipts are acknowledged without touching the dispatcher,
	// so re-sent status notifications stay idempotent.
	if notification.IsStatusOnly() {
		h.metrics.ObserveInbound("status", "skipped")
		h.metrics.ObserveWebhookLatency("status", time.Since(start).Seconds())
		w.WriteHeader(http.StatusOK)
		return
	}

	msg, ok := notification.Normalize()
	if !ok {
		h.logger.Debug("webhook payload carried no message")
		h.metrics.ObserveInbound("empty", "skipped")
		w.WriteHeader(http.StatusOK)
		return
	}
	span.SetAttributes(
		attribute.String("tiendita.sender", msg.Sender),
		attribute.String("tiendita.kind", string(msg.Kind)),
	)

	h.dispatcher.Handle(ctx, msg)

	h.metrics.ObserveInbound(string(msg.Kind), "dispatched")
	h.metrics.ObserveWebhookLatency(string(msg.Kind), time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
