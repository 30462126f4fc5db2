// Package bot contains the conversational dispatch engine and its state.
package bot

// MessageKind discriminates the normalized inbound message types.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindButton MessageKind = "button"
	KindOther  MessageKind = "other"
)

// InboundMessage is one normalized webhook message. It is constructed by the
// transport layer and discarded after dispatch.
type InboundMessage struct {
	Sender        string
	Kind          MessageKind
	TextBody      string
	ButtonPayload string
}
