// Package commerce wraps the remote catalog and purchase API.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tienditalabs/whatsapp-commerce-bot/pkg/logging"
)

var tracer = otel.Tracer("tiendita.internal.commerce")

// ErrNotFound is returned when the backend has no record for the requested
// product or order. It is distinct from transport failures.
var ErrNotFound = errors.New("commerce: not found")

// Client calls the commerce API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a client for the commerce API rooted at baseURL.
func NewClient(baseURL string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// LookupProduct fetches a catalog entry by numeric id.
// Returns ErrNotFound when the catalog has no such product.
func (c *Client) LookupProduct(ctx context.Context, id int) (*Product, error) {
	ctx, span := tracer.Start(ctx, "commerce.lookup_product")
	defer span.End()
	span.SetAttributes(attribute.Int("tiendita.product_id", id))

	endpoint := fmt.Sprintf("%s/productos.php?nid=%d", c.baseURL, id)
	var payload struct {
		Producto []Product `json:"producto"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(payload.Producto) == 0 {
		return nil, ErrNotFound
	}
	c.logger.Debug("product lookup", "nid", id, "nombre", payload.Producto[0].Nombre.String())
	return &payload.Producto[0], nil
}

// SubmitPurchase posts a purchase for the given product id. A result with an
// empty Folio means the backend accepted the call but issued no reference.
func (c *Client) SubmitPurchase(ctx context.Context, productID int) (*PurchaseResult, error) {
	ctx, span := tracer.Start(ctx, "commerce.submit_purchase")
	defer span.End()
	span.SetAttributes(attribute.Int("tiendita.product_id", productID))

	body := map[string]any{
		"compras": []map[string]int{{"nid": productID}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("commerce: marshal purchase payload: %w", err)
	}

	endpoint := c.baseURL + "/compras.php"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("commerce: build purchase request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("commerce: submit purchase: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("commerce: submit purchase: status %d", resp.StatusCode)
		span.RecordError(err)
		return nil, err
	}

	var result PurchaseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("commerce: decode purchase response: %w", err)
	}
	c.logger.Info("purchase submitted", "nid", productID, "folio", result.Folio.String())
	return &result, nil
}

// LookupOrder fetches a finalized purchase by its folio reference.
// Returns ErrNotFound when no order matches.
func (c *Client) LookupOrder(ctx context.Context, folio string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "commerce.lookup_order")
	defer span.End()
	span.SetAttributes(attribute.String("tiendita.folio", folio))

	endpoint := fmt.Sprintf("%s/compras.php?folio=%s", c.baseURL, url.QueryEscape(folio))
	var payload struct {
		Compras []Order `json:"compras"`
	}
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(payload.Compras) == 0 {
		return nil, ErrNotFound
	}
	return &payload.Compras[0], nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("commerce: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("commerce: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("commerce: request failed: status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("commerce: decode response: %w", err)
	}
	return nil
}
