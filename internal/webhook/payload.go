package webhook

import (
	"encoding/json"

	"github.com/tienditalabs/whatsapp-commerce-bot/internal/bot"
)

// Notification is the envelope Meta posts to the webhook endpoint.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string            `json:"messaging_product"`
	Messages         []Message         `json:"messages"`
	Statuses         []json.RawMessage `json:"statuses"`
}

type Message struct {
	From   string  `json:"from"`
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Text   *Text   `json:"text,omitempty"`
	Button *Button `json:"button,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Button struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// firstChange returns the first change of the first entry, if any.
func (n *Notification) firstChange() (*Change, bool) {
	if len(n.Entry) == 0 || len(n.Entry[0].Changes) == 0 {
		return nil, false
	}
	return &n.Entry[0].Changes[0], true
}

// IsStatusOnly reports whether the notification is a delivery receipt with no
// message content. These never reach the dispatch engine.
func (n *Notification) IsStatusOnly() bool {
	change, ok := n.firstChange()
	if !ok {
		return false
	}
	return len(change.Value.Statuses) > 0 && len(change.Value.Messages) == 0
}

// Normalize extracts the first genuine message as a bot.InboundMessage.
// The second return is false when the notification carries no message.
func (n *Notification) Normalize() (bot.InboundMessage, bool) {
	change, ok := n.firstChange()
	if !ok || len(change.Value.Messages) == 0 {
		return bot.InboundMessage{}, false
	}
	raw := change.Value.Messages[0]
	if raw.From == "" {
		return bot.InboundMessage{}, false
	}

	msg := bot.InboundMessage{Sender: raw.From}
	switch raw.Type {
	case "text":
		msg.Kind = bot.KindText
		if raw.Text != nil {
			msg.TextBody = raw.Text.Body
		}
	case "button":
		msg.Kind = bot.KindButton
		if raw.Button != nil {
			msg.ButtonPayload = raw.Button.Payload
		}
	default:
		msg.Kind = bot.KindOther
	}
	return msg, true
}
