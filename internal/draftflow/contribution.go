package draftflow

import (
	"strings"
	"time"

	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

// RawMessage is the inbound text as received from the messaging provider.
type RawMessage struct {
	ProviderMessageID string
	Text              string
	ProviderTimestamp *time.Time
}

// ParsedItem is one line item as extracted by the classifier.
type ParsedItem struct {
	Name     string
	Quantity *float64
	Unit     *string
	Notes    *string
}

type ParsedDelivery struct {
	Address      *string
	Neighborhood *string
	Reference    *string
}

// ParsedOrder is the classifier's reading of a single message. It is
// untrusted input: BuildContribution re-validates every field.
type ParsedOrder struct {
	Intent        string
	Confidence    *float64
	Items         []ParsedItem
	Delivery      ParsedDelivery
	PaymentMethod *string
	Observations  []string
	Ambiguities   []string
	ClosingSignal bool
	Summary       string
}

// Contribution is the normalized, merge-ready form of one message. All
// heuristic signal detection happens here so that merging stays pure.
type Contribution struct {
	Message    RawMessage
	Intent     string
	Confidence *float64
	Summary    string

	Items          []orders.AggregateItem
	Delivery       orders.AggregateDelivery
	PaymentIntent  *string
	Observations   []string
	Ambiguities    []string
	ClosingSignals []string

	AddressLike  bool
	QuestionLike bool
	Flags        orders.AggregateFlags

	// UnclassifiedContext marks a NOT_ORDER message that carried no signal
	// at all yet still reached a draft; the merge surfaces it as a review
	// flag.
	UnclassifiedContext bool
}

// HasAnySignal reports whether the contribution carries anything a draft
// could use: items, an address, payment, a closing phrase or a question.
func (c Contribution) HasAnySignal() bool {
	return c.Flags.HasItems ||
		c.Flags.HasDeliveryAddress ||
		c.Flags.HasPaymentIntent ||
		c.Flags.HasClosingSignal ||
		c.Flags.HasQuestionSignal
}

// IsNoise reports whether the message is a NOT_ORDER with no usable signal
// at all. Noise never opens a draft.
func (c Contribution) IsNoise() bool {
	return c.Intent == orders.IntentNotOrder && !c.HasAnySignal()
}

// BuildContribution normalizes a classifier result against the raw text.
// Heuristics only ever add signals on top of the parse, never remove them.
func BuildContribution(msg RawMessage, parsed ParsedOrder) Contribution {
	c := Contribution{
		Message:    msg,
		Intent:     normalizeIntent(parsed.Intent),
		Confidence: parsed.Confidence,
		Summary:    strings.TrimSpace(parsed.Summary),
	}

	for _, it := range parsed.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		item := orders.AggregateItem{
			Name:  name,
			Unit:  trimPtr(it.Unit),
			Notes: trimPtr(it.Notes),
		}
		if it.Quantity != nil && *it.Quantity > 0 {
			q := *it.Quantity
			item.Quantity = &q
		}
		c.Items = append(c.Items, item)
	}

	c.Delivery = orders.AggregateDelivery{
		Address:      trimPtr(parsed.Delivery.Address),
		Neighborhood: trimPtr(parsed.Delivery.Neighborhood),
		Reference:    trimPtr(parsed.Delivery.Reference),
	}
	c.AddressLike = DetectAddressLike(msg.Text)
	if c.Delivery.Address == nil && c.AddressLike {
		addr := strings.TrimSpace(msg.Text)
		c.Delivery.Address = &addr
	}

	if parsed.PaymentMethod != nil {
		c.PaymentIntent = NormalizePaymentIntent(*parsed.PaymentMethod)
	}
	if c.PaymentIntent == nil {
		c.PaymentIntent = NormalizePaymentIntent(msg.Text)
	}

	c.Observations = trimAll(parsed.Observations)
	c.Ambiguities = trimAll(parsed.Ambiguities)
	c.ClosingSignals = DetectClosingSignals(msg.Text)
	c.QuestionLike = DetectQuestionLike(msg.Text)

	c.Flags = orders.AggregateFlags{
		HasItems:           len(c.Items) > 0,
		HasDeliveryAddress: c.Delivery.Address != nil,
		HasPaymentIntent:   c.PaymentIntent != nil,
		HasClosingSignal:   len(c.ClosingSignals) > 0 || parsed.ClosingSignal,
		HasQuestionSignal:  c.QuestionLike,
	}
	c.UnclassifiedContext = c.Intent == orders.IntentNotOrder && !c.HasAnySignal()
	return c
}

func normalizeIntent(intent string) string {
	switch strings.ToUpper(strings.TrimSpace(intent)) {
	case orders.IntentOrder:
		return orders.IntentOrder
	case orders.IntentNotOrder:
		return orders.IntentNotOrder
	default:
		return orders.IntentUnclear
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if v := strings.TrimSpace(s); v != "" {
			out = append(out, v)
		}
	}
	return out
}
