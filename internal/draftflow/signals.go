package draftflow

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

// Checkout-intent phrases, stored pre-normalized (lowercase, no diacritics).
var closingSignalVocabulary = []string{
	"pode fechar",
	"fechar pedido",
	"fecha o pedido",
	"fechou",
	"so isso",
	"era so isso",
	"e so isso",
	"seria so isso",
	"mais nada",
	"nada mais",
	"finaliza",
	"finalizar",
	"pode mandar",
	"manda o pedido",
}

var addressHints = []string{
	"entrega na",
	"rua ",
	"rua.",
	"av ",
	"avenida",
	"quadra",
	"qd ",
	"lote",
	"lt ",
	"casa",
	"apartamento",
	"apto",
	"bloco",
	"condominio",
	"cep",
	"setor",
	"vila ",
}

var questionHints = []string{
	"tem ",
	"tem?",
	"quanto",
	"qual o valor",
	"qual valor",
	"aceita ",
	"pode ",
	"consegue ",
	"tem como",
}

var (
	streetNumberRe   = regexp.MustCompile(`\b\d{1,4}\b`)
	paymentMethodRe  = regexp.MustCompile(`\b(pix|dinheiro|cartao)\b`)
	paymentContextRe = regexp.MustCompile(`\b(pagamento|pagar|forma de pagamento|aceita|pode ser)\b`)
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalizeForMatch(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// DetectClosingSignals returns the subset of the checkout vocabulary found
// in text, matched case- and diacritic-insensitively.
func DetectClosingSignals(text string) []string {
	normalized := normalizeForMatch(text)
	if normalized == "" {
		return nil
	}
	var matched []string
	for _, signal := range closingSignalVocabulary {
		if strings.Contains(normalized, signal) {
			matched = append(matched, signal)
		}
	}
	return matched
}

// DetectAddressLike reports whether a short single-line message reads like
// a delivery address: at least one address hint plus a house number or lot.
func DetectAddressLike(text string) bool {
	raw := strings.TrimSpace(text)
	normalized := normalizeForMatch(raw)
	if normalized == "" {
		return false
	}
	if len(raw) > 160 || strings.Contains(raw, "\n") {
		return false
	}
	hasHint := false
	for _, hint := range addressHints {
		if strings.Contains(normalized, hint) {
			hasHint = true
			break
		}
	}
	if !hasHint {
		return false
	}
	return streetNumberRe.MatchString(normalized) || strings.Contains(normalized, "lote")
}

func DetectQuestionLike(text string) bool {
	normalized := normalizeForMatch(text)
	if normalized == "" {
		return false
	}
	if strings.Contains(text, "?") {
		return true
	}
	for _, hint := range questionHints {
		if strings.Contains(normalized, hint) {
			return true
		}
	}
	return false
}

// NormalizePaymentIntent maps free text to a payment method. It only fires
// when the text names a method or clearly talks about payment.
func NormalizePaymentIntent(text string) *string {
	normalized := normalizeForMatch(text)
	if normalized == "" {
		return nil
	}
	if !paymentMethodRe.MatchString(normalized) && !paymentContextRe.MatchString(normalized) {
		return nil
	}
	switch {
	case strings.Contains(normalized, orders.PaymentPix):
		v := orders.PaymentPix
		return &v
	case strings.Contains(normalized, orders.PaymentCash):
		v := orders.PaymentCash
		return &v
	case strings.Contains(normalized, orders.PaymentCard):
		v := orders.PaymentCard
		return &v
	default:
		return nil
	}
}
