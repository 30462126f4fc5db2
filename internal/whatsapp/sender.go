// Package whatsapp sends outbound messages through the Meta Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tienditalabs/whatsapp-commerce-bot/internal/audit"
	"github.com/tienditalabs/whatsapp-commerce-bot/pkg/logging"
)

var tracer = otel.Tracer("tiendita.internal.whatsapp")

// Sender posts template and free-text messages using the WhatsApp Cloud API.
type Sender struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	version       string
	httpClient    *http.Client
	audit         audit.Sink
	logger        *logging.Logger
}

// NewSender builds a sender for the Graph API messages endpoint.
func NewSender(baseURL, version, phoneNumberID, accessToken string, auditSink audit.Sink, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		baseURL:       strings.TrimRight(baseURL, "/"),
		version:       version,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		audit:  auditSink,
		logger: logger,
	}
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type  string    `json:"type"`
	Text  string    `json:"text,omitempty"`
	Image *imageArg `json:"image,omitempty"`
}

type imageArg struct {
	Link string `json:"link"`
}

// SendTemplate dispatches a pre-approved template with ordered body parameters.
func (s *Sender) SendTemplate(ctx context.Context, to, templateName string, params []string) error {
	var components []templateComponent
	if len(params) > 0 {
		body := templateComponent{Type: "body"}
		for _, p := range params {
			body.Parameters = append(body.Parameters, templateParameter{Type: "text", Text: sanitize(p)})
		}
		components = append(components, body)
	}
	return s.sendTemplatePayload(ctx, to, templateName, components)
}

// SendImageTemplate dispatches a template whose header carries an image link.
func (s *Sender) SendImageTemplate(ctx context.Context, to, templateName, imageURL string) error {
	components := []templateComponent{{
		Type: "header",
		Parameters: []templateParameter{{
			Type:  "image",
			Image: &imageArg{Link: imageURL},
		}},
	}}
	return s.sendTemplatePayload(ctx, to, templateName, components)
}

// SendText dispatches a plain text message outside the template system.
func (s *Sender) SendText(ctx context.Context, to, body string) error {
	normalized, err := normalizeRecipient(to)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                normalized,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return s.post(ctx, "whatsapp.send_text", payload, map[string]string{"to": normalized})
}

func (s *Sender) sendTemplatePayload(ctx context.Context, to, templateName string, components []templateComponent) error {
	normalized, err := normalizeRecipient(to)
	if err != nil {
		return err
	}
	template := map[string]any{
		"name":     templateName,
		"language": map[string]string{"code": TemplateLanguage},
	}
	if len(components) > 0 {
		template["components"] = components
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                normalized,
		"type":              "template",
		"template":          template,
	}
	return s.post(ctx, "whatsapp.send_template", payload, map[string]string{
		"to":       normalized,
		"template": templateName,
	})
}

// post delivers the payload, retrying transient failures.
func (s *Sender) post(ctx context.Context, spanName string, payload any, attrs map[string]string) error {
	if s.accessToken == "" {
		return errors.New("whatsapp: access token missing")
	}

	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	for k, v := range attrs {
		span.SetAttributes(attribute.String("tiendita."+k, v))
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.version, s.phoneNumberID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			lastErr = err
			break
		}
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				s.appendAudit(ctx, "whatsapp_sent", payload, respBody)
				s.logger.Info("whatsapp message sent", "to", attrs["to"], "template", attrs["template"])
				return nil
			}
			lastErr = fmt.Errorf("whatsapp: send failed: status %d, body: %s", resp.StatusCode, string(respBody))
			// 4xx means the payload itself is bad; retrying will not help.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				break
			}
		}

		if attempt < 3 {
			sleep := time.Duration(200+rand.Intn(300)) * time.Millisecond
			time.Sleep(sleep)
		}
	}

	span.RecordError(lastErr)
	s.appendAudit(ctx, "whatsapp_send_failed", payload, []byte(lastErr.Error()))
	s.logger.Error("failed to send whatsapp message", "error", lastErr, "to", attrs["to"])
	return lastErr
}

func (s *Sender) appendAudit(ctx context.Context, label string, payload any, response []byte) {
	if s.audit == nil {
		return
	}
	s.audit.Append(ctx, label, map[string]any{
		"request":  payload,
		"response": string(response),
	})
}

var whitespaceRun = regexp.MustCompile(`[\n\t]+`)
var multiSpace = regexp.MustCompile(`\s{2,}`)

// sanitize collapses whitespace and caps parameter length at the Graph API
// body-parameter limit.
func sanitize(text string) string {
	cleaned := whitespaceRun.ReplaceAllString(text, " ")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > 1024 {
		cleaned = cleaned[:1024]
	}
	return cleaned
}

// normalizeRecipient rewrites Mexican mobile numbers from the legacy 521
// prefix to 52 and rejects empty recipients.
func normalizeRecipient(to string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", errors.New("whatsapp: recipient required")
	}
	if strings.HasPrefix(to, "521") {
		return "52" + to[3:], nil
	}
	return to, nil
}
