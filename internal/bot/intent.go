package bot

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// IntentKind enumerates the conversational branches the bot understands.
type IntentKind string

const (
	IntentGreeting     IntentKind = "greeting"
	IntentProductQuery IntentKind = "product_query"
	IntentOrderQuery   IntentKind = "order_query"
	IntentViewCatalog  IntentKind = "view_catalog"
	IntentBuy          IntentKind = "buy"
	IntentBackToStart  IntentKind = "back_to_start"
	IntentConfirm      IntentKind = "confirm"
	IntentDecline      IntentKind = "decline"
	IntentSearchOrder  IntentKind = "search_order"
	IntentFarewell     IntentKind = "farewell"
	IntentUnknown      IntentKind = "unknown"
)

// Intent is the tagged result of classifying one inbound message.
// ProductID is set for IntentProductQuery, OrderRef for IntentOrderQuery.
type Intent struct {
	Kind      IntentKind
	ProductID int
	OrderRef  int
}

const (
	greetingKeyword = "hola"
	productPrefix   = "nid:"
	orderPrefix     = "folio:"
)

// Classify maps a normalized inbound message to an intent. It is a pure
// function: no state, no network.
func Classify(msg InboundMessage) Intent {
	switch msg.Kind {
	case KindText:
		return classifyText(msg.TextBody)
	case KindButton:
		return classifyButton(msg.ButtonPayload)
	default:
		return Intent{Kind: IntentUnknown}
	}
}

// classifyText applies the keyword rules in priority order: greeting first,
// then product reference, then order reference.
func classifyText(body string) Intent {
	body = strings.ToLower(body)

	if strings.Contains(body, greetingKeyword) {
		return Intent{Kind: IntentGreeting}
	}

	if rest, ok := strings.CutPrefix(body, productPrefix); ok {
		id, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || id < 0 {
			return Intent{Kind: IntentUnknown}
		}
		return Intent{Kind: IntentProductQuery, ProductID: id}
	}

	if rest, ok := strings.CutPrefix(body, orderPrefix); ok {
		ref, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || ref < 0 {
			return Intent{Kind: IntentUnknown}
		}
		return Intent{Kind: IntentOrderQuery, OrderRef: ref}
	}

	return Intent{Kind: IntentUnknown}
}

// classifyButton switches on the fixed label vocabulary after folding case
// and diacritics, so "Sí" and "si" land on the same branch.
func classifyButton(payload string) Intent {
	switch foldLabel(payload) {
	case "ver el catalogo":
		return Intent{Kind: IntentViewCatalog}
	case "comprar":
		return Intent{Kind: IntentBuy}
	case "regresar a inicio", "regresar al inicio":
		return Intent{Kind: IntentBackToStart}
	case "si":
		return Intent{Kind: IntentConfirm}
	case "no":
		return Intent{Kind: IntentDecline}
	case "eso es todo, gracias":
		return Intent{Kind: IntentFarewell}
	case "buscar compra":
		return Intent{Kind: IntentSearchOrder}
	default:
		return Intent{Kind: IntentUnknown}
	}
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	folded, _, err := transform.String(diacriticStripper, label)
	if err != nil {
		return label
	}
	return folded
}
