package draftflow

import (
	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

// Review reasons, most specific first. ReviewReason picks the first that
// applies.
const (
	ReviewPausedForCustomerQuestion = "paused_for_customer_question"
	ReviewUnclassifiedContext       = "unclassified_context_message"
	ReviewNoItemsDetected           = "no_items_detected"
	ReviewAwaitingSignals           = "awaiting_address_payment_or_close_signal"
	ReviewManualRequired            = "manual_review_required"
)

// ReviewReason explains why a draft parked in READY_FOR_REVIEW instead of
// committing.
func ReviewReason(agg orders.Aggregate) string {
	switch {
	case agg.Control.PauseForClarification:
		return ReviewPausedForCustomerQuestion
	case agg.ReviewFlags.HasUnclassifiedContextMessage:
		return ReviewUnclassifiedContext
	case !agg.Flags.HasItems:
		return ReviewNoItemsDetected
	case !agg.Flags.HasDeliveryAddress && !agg.Flags.HasPaymentIntent && !agg.Flags.HasClosingSignal:
		return ReviewAwaitingSignals
	default:
		return ReviewManualRequired
	}
}

// ShouldCloseEarly reports whether a draft may commit before its deadline:
// the toggle is on, items plus a closing signal are present, and nothing is
// pinning the draft on the customer.
func ShouldCloseEarly(cfg Config, agg orders.Aggregate) bool {
	if !cfg.CloseEarlyOnSignals {
		return false
	}
	if agg.Control.AwaitingCustomerReply || agg.Control.PauseForClarification {
		return false
	}
	return agg.Flags.HasItems && agg.Flags.HasClosingSignal
}

// TimeoutOutcome is the finalization verdict for a draft whose commit
// deadline has passed.
type TimeoutOutcome struct {
	Commit       bool
	ReviewReason string
}

// DecideOnTimeout resolves a due draft into either a commit or a review
// parking with a reason. Items are the only gate: address, payment and
// closing signals are informational and never block the commit.
func DecideOnTimeout(cfg Config, agg orders.Aggregate) TimeoutOutcome {
	if cfg.AutoCreateOrderOnTimeout && agg.Flags.HasItems {
		return TimeoutOutcome{Commit: true}
	}
	return TimeoutOutcome{ReviewReason: ReviewReason(agg)}
}
