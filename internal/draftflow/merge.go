package draftflow

import (
	"time"

	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

// emptyAggregate returns the zero negotiation state with non-nil slices so
// the stored document always serializes arrays, never nulls.
func emptyAggregate() orders.Aggregate {
	return orders.Aggregate{
		Items:          []orders.AggregateItem{},
		Observations:   []string{},
		Ambiguities:    []string{},
		ClosingSignals: []string{},
		Messages:       []orders.AggregateMessage{},
	}
}

// MergeAggregate folds one contribution into prev and returns the new state.
// The merge is strictly additive: items and messages append, flags only move
// to true, and non-empty delivery or payment values replace older ones. The
// awaiting-reply triad is the single exception, cleared once the reply it
// waits for arrives.
func MergeAggregate(prev *orders.Aggregate, c Contribution) orders.Aggregate {
	agg := emptyAggregate()
	if prev != nil {
		agg = *prev
		agg.Items = append([]orders.AggregateItem{}, prev.Items...)
		agg.Observations = append([]string{}, prev.Observations...)
		agg.Ambiguities = append([]string{}, prev.Ambiguities...)
		agg.ClosingSignals = append([]string{}, prev.ClosingSignals...)
		agg.Messages = append([]orders.AggregateMessage{}, prev.Messages...)
	}

	agg.Items = append(agg.Items, c.Items...)
	agg.Observations = appendUnique(agg.Observations, c.Observations)
	agg.Ambiguities = appendUnique(agg.Ambiguities, c.Ambiguities)
	agg.ClosingSignals = appendUnique(agg.ClosingSignals, c.ClosingSignals)

	if c.Delivery.Address != nil {
		agg.Delivery.Address = c.Delivery.Address
	}
	if c.Delivery.Neighborhood != nil {
		agg.Delivery.Neighborhood = c.Delivery.Neighborhood
	}
	if c.Delivery.Reference != nil {
		agg.Delivery.Reference = c.Delivery.Reference
	}
	if c.PaymentIntent != nil {
		agg.PaymentIntent = c.PaymentIntent
	}

	agg.Flags.HasItems = agg.Flags.HasItems || c.Flags.HasItems
	agg.Flags.HasDeliveryAddress = agg.Flags.HasDeliveryAddress || c.Flags.HasDeliveryAddress
	agg.Flags.HasPaymentIntent = agg.Flags.HasPaymentIntent || c.Flags.HasPaymentIntent
	agg.Flags.HasClosingSignal = agg.Flags.HasClosingSignal || c.Flags.HasClosingSignal
	agg.Flags.HasQuestionSignal = agg.Flags.HasQuestionSignal || c.Flags.HasQuestionSignal

	agg.Control = mergeControl(agg.Control, c)
	if c.UnclassifiedContext {
		agg.ReviewFlags.HasUnclassifiedContextMessage = true
	}

	agg.Messages = append(agg.Messages, orders.AggregateMessage{
		ProviderMessageID: c.Message.ProviderMessageID,
		Text:              c.Message.Text,
		ProviderTimestamp: c.Message.ProviderTimestamp,
		Intent:            c.Intent,
		Confidence:        c.Confidence,
		Summary:           c.Summary,
	})

	agg.Stats.MessageCount = len(agg.Messages)
	agg.Stats.ItemCount = len(agg.Items)
	agg.Version++
	return agg
}

// mergeControl clears the awaiting-reply triad once satisfied: an address
// reply satisfies an address wait, a payment reply a payment wait, and items
// or a closing signal satisfy either kind. Customer questions pause the
// draft until substantive content resumes it.
func mergeControl(ctl orders.AggregateControl, c Contribution) orders.AggregateControl {
	if ctl.AwaitingCustomerReply && awaitingSatisfied(ctl.AwaitingReplyType, c) {
		ctl.AwaitingCustomerReply = false
		ctl.AwaitingReplyType = ""
		ctl.AwaitingReplySince = nil
		ctl.AwaitingReplyUntil = nil
	}
	if hasUsefulSignal(c) {
		ctl.PauseForClarification = false
	} else if c.Flags.HasQuestionSignal {
		ctl.PauseForClarification = true
	}
	return ctl
}

// hasUsefulSignal reports whether the contribution moves the order forward:
// items, an address, a payment intent or a closing phrase all resume a
// paused draft.
func hasUsefulSignal(c Contribution) bool {
	return c.Flags.HasItems ||
		c.Flags.HasDeliveryAddress ||
		c.Flags.HasPaymentIntent ||
		c.Flags.HasClosingSignal
}

func awaitingSatisfied(replyType string, c Contribution) bool {
	if c.Flags.HasItems || c.Flags.HasClosingSignal {
		return true
	}
	switch replyType {
	case orders.ReplyTypeAddress:
		return c.Flags.HasDeliveryAddress
	case orders.ReplyTypePayment:
		return c.Flags.HasPaymentIntent
	default:
		return false
	}
}

// WithAwaitingReply arms the clarification triad on an existing aggregate,
// used when an operator sends the customer a question from a draft.
func WithAwaitingReply(agg orders.Aggregate, replyType string, now time.Time, window time.Duration) orders.Aggregate {
	until := now.Add(window)
	agg.Control.PauseForClarification = false
	agg.Control.AwaitingCustomerReply = true
	agg.Control.AwaitingReplyType = replyType
	agg.Control.AwaitingReplySince = &now
	agg.Control.AwaitingReplyUntil = &until
	agg.Version++
	return agg
}

// NewAwaitingAggregate builds a fresh draft state that starts out pinned on
// a customer reply, used when a question opens the conversation.
func NewAwaitingAggregate(replyType string, now time.Time, window time.Duration) orders.Aggregate {
	return WithAwaitingReply(emptyAggregate(), replyType, now, window)
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		seen := false
		for _, have := range dst {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, s)
		}
	}
	return dst
}
