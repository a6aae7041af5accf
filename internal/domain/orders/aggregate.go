package orders

import (
	"strings"
	"time"
)

const (
	IntentOrder    = "ORDER"
	IntentNotOrder = "NOT_ORDER"
	IntentUnclear  = "UNCLEAR"
)

const (
	PaymentPix  = "pix"
	PaymentCash = "dinheiro"
	PaymentCard = "cartao"
)

const (
	ReplyTypeAddress = "address"
	ReplyTypePayment = "payment"
)

type AggregateItem struct {
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     *string  `json:"unit,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

type AggregateDelivery struct {
	Address      *string `json:"address,omitempty"`
	Neighborhood *string `json:"neighborhood,omitempty"`
	Reference    *string `json:"reference,omitempty"`
}

// AggregateFlags only ever move false -> true across merges.
type AggregateFlags struct {
	HasItems           bool `json:"has_items"`
	HasDeliveryAddress bool `json:"has_delivery_address"`
	HasPaymentIntent   bool `json:"has_payment_intent"`
	HasClosingSignal   bool `json:"has_closing_signal"`
	HasQuestionSignal  bool `json:"has_question_signal"`
}

// AggregateControl holds the clarification state. The awaiting-reply triad
// is the one part of the document that is explicitly cleared once satisfied.
type AggregateControl struct {
	PauseForClarification bool       `json:"pause_for_clarification,omitempty"`
	AwaitingCustomerReply bool       `json:"awaiting_customer_reply,omitempty"`
	AwaitingReplyType     string     `json:"awaiting_reply_type,omitempty"`
	AwaitingReplySince    *time.Time `json:"awaiting_reply_since,omitempty"`
	AwaitingReplyUntil    *time.Time `json:"awaiting_reply_until,omitempty"`
}

type AggregateReviewFlags struct {
	HasUnclassifiedContextMessage bool `json:"has_unclassified_context_message,omitempty"`
}

type AggregateMessage struct {
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Text              string     `json:"text,omitempty"`
	ProviderTimestamp *time.Time `json:"provider_timestamp,omitempty"`
	Intent            string     `json:"intent,omitempty"`
	Confidence        *float64   `json:"confidence,omitempty"`
	Summary           string     `json:"summary,omitempty"`
}

type AggregateStats struct {
	MessageCount int `json:"message_count"`
	ItemCount    int `json:"item_count"`
}

// Aggregate is the accumulated negotiation state of a draft. It is built
// exclusively by draftflow.MergeAggregate and draftflow.NewAwaitingAggregate;
// nothing else may hand-patch it.
type Aggregate struct {
	Version        int                  `json:"version"`
	Items          []AggregateItem      `json:"items"`
	Delivery       AggregateDelivery    `json:"delivery"`
	PaymentIntent  *string              `json:"payment_intent,omitempty"`
	Observations   []string             `json:"observations"`
	Ambiguities    []string             `json:"ambiguities"`
	ClosingSignals []string             `json:"closing_signals"`
	Flags          AggregateFlags       `json:"flags"`
	Control        AggregateControl     `json:"control"`
	ReviewFlags    AggregateReviewFlags `json:"review_flags"`
	Messages       []AggregateMessage   `json:"messages"`
	Stats          AggregateStats       `json:"stats"`
}

// JoinedText is the denormalized rollup of every message text, oldest first.
func (a Aggregate) JoinedText() string {
	parts := make([]string, 0, len(a.Messages))
	for _, m := range a.Messages {
		t := strings.TrimSpace(m.Text)
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
