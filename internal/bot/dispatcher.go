package bot

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tienditalabs/whatsapp-commerce-bot/internal/audit"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/commerce"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/observability/metrics"
	"github.com/tienditalabs/whatsapp-commerce-bot/internal/whatsapp"
	"github.com/tienditalabs/whatsapp-commerce-bot/pkg/logging"
)

var tracer = otel.Tracer("tiendita.internal.bot")

// Free-text replies, fixed to Spanish like the registered templates.
const (
	replyProductNotFound     = "❌ Producto no encontrado."
	replyNoPendingPurchase   = "No hay ninguna compra pendiente."
	replyPurchaseFailed      = "❌ No se pudo completar tu compra."
	replyOrderDetailsMissing = "⚠️ No se pudo obtener los datos completos de la compra."
	replyGenericError        = "Lo sentimos, ocurrió un error. Intenta de nuevo más tarde."
)

// CommerceAPI is the slice of the commerce client the dispatcher needs.
type CommerceAPI interface {
	LookupProduct(ctx context.Context, id int) (*commerce.Product, error)
	SubmitPurchase(ctx context.Context, productID int) (*commerce.PurchaseResult, error)
	LookupOrder(ctx context.Context, folio string) (*commerce.Order, error)
}

// ReplySender delivers outbound messages. Send failures are logged by the
// dispatcher and never interrupt a conversational branch.
type ReplySender interface {
	SendTemplate(ctx context.Context, to, templateName string, params []string) error
	SendImageTemplate(ctx context.Context, to, templateName, imageURL string) error
	SendText(ctx context.Context, to, body string) error
}

// Dispatcher consumes normalized inbound messages, mutates pending-transaction
// state, calls the commerce API, and decides which reply to emit.
type Dispatcher struct {
	commerce        CommerceAPI
	replies         ReplySender
	state           StateStore
	audit           audit.Sink
	metrics         *metrics.BotMetrics
	logger          *logging.Logger
	catalogImageURL string
}

// NewDispatcher wires the dispatch engine. The state store is exclusively
// owned by the returned dispatcher.
func NewDispatcher(commerceAPI CommerceAPI, replies ReplySender, state StateStore, auditSink audit.Sink, botMetrics *metrics.BotMetrics, catalogImageURL string, logger *logging.Logger) *Dispatcher {
	if commerceAPI == nil {
		panic("bot: commerce api cannot be nil")
	}
	if replies == nil {
		panic("bot: reply sender cannot be nil")
	}
	if state == nil {
		state = NewMemoryStateStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		commerce:        commerceAPI,
		replies:         replies,
		state:           state,
		audit:           auditSink,
		metrics:         botMetrics,
		logger:          logger,
		catalogImageURL: catalogImageURL,
	}
}

// Handle processes one inbound message to completion. All failures are
// converted into replies (or silence) at the point of the failing call;
// nothing propagates to the transport layer.
func (d *Dispatcher) Handle(ctx context.Context, msg InboundMessage) {
	ctx, span := tracer.Start(ctx, "bot.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("tiendita.sender", msg.Sender),
		attribute.String("tiendita.kind", string(msg.Kind)),
	)

	d.appendAudit(ctx, "inbound_message", msg)

	intent := Classify(msg)
	span.SetAttributes(attribute.String("tiendita.intent", string(intent.Kind)))
	d.metrics.ObserveIntent(string(intent.Kind))

	switch intent.Kind {
	case IntentGreeting, IntentBackToStart:
		d.sendTemplate(ctx, msg.Sender, whatsapp.TemplateStartMenu, nil)
	case IntentProductQuery:
		d.handleProductQuery(ctx, msg.Sender, intent.ProductID)
	case IntentOrderQuery:
		d.handleOrderQuery(ctx, msg.Sender, intent.OrderRef)
	case IntentViewCatalog:
		d.sendImageTemplate(ctx, msg.Sender, whatsapp.TemplateCatalog, d.catalogImageURL)
	case IntentBuy, IntentDecline:
		d.sendTemplate(ctx, msg.Sender, whatsapp.TemplateBuyProducts, nil)
	case IntentConfirm:
		d.handleConfirm(ctx, msg.Sender)
	case IntentSearchOrder:
		d.sendTemplate(ctx, msg.Sender, whatsapp.TemplateSearchOrder, nil)
	case IntentFarewell:
		d.sendTemplate(ctx, msg.Sender, whatsapp.TemplateClosing, nil)
	default:
		// Unrecognized input is dropped without a reply. The audit entry
		// above is the only trace it leaves.
		d.logger.Debug("unrecognized message dropped", "sender", msg.Sender, "kind", msg.Kind)
	}
}

// handleProductQuery looks up the product and records a pending transaction
// for the sender, overwriting any prior one.
func (d *Dispatcher) handleProductQuery(ctx context.Context, sender string, productID int) {
	product, err := d.commerce.LookupProduct(ctx, productID)
	if errors.Is(err, commerce.ErrNotFound) {
		d.sendText(ctx, sender, replyProductNotFound)
		return
	}
	if err != nil {
		d.logger.Error("product lookup failed", "error", err, "sender", sender, "product_id", productID)
		d.sendText(ctx, sender, replyGenericError)
		return
	}
	d.appendAudit(ctx, "product_lookup", product)

	tx := PendingTransaction{Sender: sender, ProductID: productID, CreatedAt: time.Now().UTC()}
	if err := d.state.Set(ctx, sender, tx); err != nil {
		d.logger.Error("failed to store pending transaction", "error", err, "sender", sender)
		d.sendText(ctx, sender, replyGenericError)
		return
	}

	d.sendTemplate(ctx, sender, whatsapp.TemplateConfirmPurchase, []string{
		strconv.Itoa(productID),
		product.Nombre.String(),
		product.Marca.String(),
		product.Precio.String(),
	})
}

// handleOrderQuery looks up a finalized purchase by its numeric reference.
func (d *Dispatcher) handleOrderQuery(ctx context.Context, sender string, ref int) {
	order, err := d.commerce.LookupOrder(ctx, strconv.Itoa(ref))
	if errors.Is(err, commerce.ErrNotFound) {
		d.sendTemplate(ctx, sender, whatsapp.TemplateOrderNotFound, nil)
		return
	}
	if err != nil {
		d.logger.Error("order lookup failed", "error", err, "sender", sender, "folio", ref)
		d.sendText(ctx, sender, replyGenericError)
		return
	}
	d.appendAudit(ctx, "order_lookup", order)

	d.sendTemplate(ctx, sender, whatsapp.TemplateOrderFound, []string{
		order.Folio.String(),
		order.NID.String(),
		order.Nombre.String(),
		order.Marca.String(),
		order.Precio.String(),
	})
}

// handleConfirm runs the purchase confirmation flow. The pending transaction
// is cleared only after the full purchase-then-lookup sequence succeeds, so a
// failed submission or a partial completion stays retryable.
func (d *Dispatcher) handleConfirm(ctx context.Context, sender string) {
	pending, err := d.state.Get(ctx, sender)
	if err != nil {
		d.logger.Error("failed to read pending transaction", "error", err, "sender", sender)
		d.sendText(ctx, sender, replyGenericError)
		return
	}
	if pending == nil {
		d.sendText(ctx, sender, replyNoPendingPurchase)
		return
	}

	result, err := d.commerce.SubmitPurchase(ctx, pending.ProductID)
	if err != nil {
		d.logger.Error("purchase submission failed", "error", err, "sender", sender, "product_id", pending.ProductID)
		d.sendText(ctx, sender, replyPurchaseFailed)
		return
	}
	d.appendAudit(ctx, "purchase_submitted", result)

	folio := result.Folio.String()
	if folio == "" {
		d.sendText(ctx, sender, replyPurchaseFailed)
		return
	}

	order, err := d.commerce.LookupOrder(ctx, folio)
	if err != nil {
		// Reference issued but details unavailable: report the partial
		// completion and keep the pending transaction for retry.
		d.logger.Error("order lookup after purchase failed", "error", err, "sender", sender, "folio", folio)
		d.sendText(ctx, sender, replyOrderDetailsMissing)
		return
	}
	d.appendAudit(ctx, "purchase_completed", order)

	d.sendTemplate(ctx, sender, whatsapp.TemplatePurchaseComplete, []string{
		order.Folio.String(),
		order.NID.String(),
		order.Nombre.String(),
		order.Marca.String(),
		order.Precio.String(),
		order.Pago.String(),
	})

	if err := d.state.Clear(ctx, sender); err != nil {
		d.logger.Error("failed to clear pending transaction", "error", err, "sender", sender)
	}
}

func (d *Dispatcher) sendTemplate(ctx context.Context, to, templateName string, params []string) {
	if err := d.replies.SendTemplate(ctx, to, templateName, params); err != nil {
		d.metrics.ObserveOutbound("template", "error")
		d.logger.Error("failed to send template reply", "error", err, "to", to, "template", templateName)
		return
	}
	d.metrics.ObserveOutbound("template", "sent")
}

func (d *Dispatcher) sendImageTemplate(ctx context.Context, to, templateName, imageURL string) {
	if err := d.replies.SendImageTemplate(ctx, to, templateName, imageURL); err != nil {
		d.metrics.ObserveOutbound("template", "error")
		d.logger.Error("failed to send image template reply", "error", err, "to", to, "template", templateName)
		return
	}
	d.metrics.ObserveOutbound("template", "sent")
}

func (d *Dispatcher) sendText(ctx context.Context, to, body string) {
	if err := d.replies.SendText(ctx, to, body); err != nil {
		d.metrics.ObserveOutbound("text", "error")
		d.logger.Error("failed to send text reply", "error", err, "to", to)
		return
	}
	d.metrics.ObserveOutbound("text", "sent")
}

func (d *Dispatcher) appendAudit(ctx context.Context, label string, payload any) {
	if d.audit == nil {
		return
	}
	d.audit.Append(ctx, label, payload)
}
