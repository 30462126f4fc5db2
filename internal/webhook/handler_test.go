package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tienditalabs/whatsapp-commerce-bot/internal/bot"
)

type recordingDispatcher struct {
	handled []bot.InboundMessage
}

func (d *recordingDispatcher) Handle(ctx context.Context, msg bot.InboundMessage) {
	d.handled = append(d.handled, msg)
}

const textNotification = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "1",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"messages": [{
					"from": "5215550001111",
					"id": "wamid.1",
					"type": "text",
					"text": {"body": "nid: 42"}
				}]
			}
		}]
	}]
}`

const buttonNotification = `{
	"entry": [{
		"changes": [{
			"value": {
				"messages": [{
					"from": "5215550001111",
					"id": "wamid.2",
					"type": "button",
					"button": {"payload": "Sí", "text": "Sí"}
				}]
			}
		}]
	}]
}`

const statusNotification = `{
	"entry": [{
		"changes": [{
			"value": {
				"statuses": [{"id": "wamid.1", "status": "delivered"}]
			}
		}]
	}]
}`

func newTestHandler(verifyToken, appSecret string) (*Handler, *recordingDispatcher) {
	dispatcher := &recordingDispatcher{}
	return NewHandler(verifyToken, appSecret, dispatcher, nil, nil), dispatcher
}

func TestVerifyHandshake(t *testing.T) {
	handler, _ := newTestHandler("tok-123", "")

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=tok-123&hub.challenge=12345", nil)
	rr := httptest.NewRecorder()
	handler.Verify(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "12345", rr.Body.String())
}

func TestVerifyHandshakeRejectsBadToken(t *testing.T) {
	handler, _ := newTestHandler("tok-123", "")

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rr := httptest.NewRecorder()
	handler.Verify(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestReceiveDispatchesTextMessage(t *testing.T) {
	handler, dispatcher := newTestHandler("", "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textNotification))
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, dispatcher.handled, 1)
	msg := dispatcher.handled[0]
	assert.Equal(t, "5215550001111", msg.Sender)
	assert.Equal(t, bot.KindText, msg.Kind)
	assert.Equal(t, "nid: 42", msg.TextBody)
}

func TestReceiveDispatchesButtonMessage(t *testing.T) {
	handler, dispatcher := newTestHandler("", "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(buttonNotification))
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	require.Len(t, dispatcher.handled, 1)
	msg := dispatcher.handled[0]
	assert.Equal(t, bot.KindButton, msg.Kind)
	assert.Equal(t, "Sí", msg.ButtonPayload)
}

func TestReceiveSkipsStatusOnlyNotifications(t *testing.T) {
	handler, dispatcher := newTestHandler("", "")

	// The same receipt delivered twice never reaches the dispatcher.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(statusNotification))
		rr := httptest.NewRecorder()
		handler.Receive(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	assert.Empty(t, dispatcher.handled)
}

func TestReceiveSkipsEmptyPayload(t *testing.T) {
	handler, dispatcher := newTestHandler("", "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"entry":[]}`))
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, dispatcher.handled)
}

func TestReceiveRejectsMalformedJSON(t *testing.T) {
	handler, dispatcher := newTestHandler("", "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, dispatcher.handled)
}

func TestReceiveValidatesSignature(t *testing.T) {
	handler, dispatcher := newTestHandler("", "secret-key")

	body := textNotification
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(signatureHeader, "sha256="+computeSignature([]byte(body), "secret-key"))
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, dispatcher.handled, 1)
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	handler, dispatcher := newTestHandler("", "secret-key")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textNotification))
	req.Header.Set(signatureHeader, "sha256=deadbeef")
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, dispatcher.handled)
}

func TestReceiveRejectsMissingSignature(t *testing.T) {
	handler, dispatcher := newTestHandler("", "secret-key")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textNotification))
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, dispatcher.handled)
}

func TestNormalizeUnknownMessageType(t *testing.T) {
	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"521555","id":"wamid.3","type":"image"}]}}]}]}`
	handler, dispatcher := newTestHandler("", "")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rr := httptest.NewRecorder()
	handler.Receive(rr, req)

	require.Len(t, dispatcher.handled, 1)
	assert.Equal(t, bot.KindOther, dispatcher.handled[0].Kind)
}

func TestHealthCheck(t *testing.T) {
	handler, _ := newTestHandler("", "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.HealthCheck(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
