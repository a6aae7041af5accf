package draftflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

// DraftSnapshot is the slice of a stored draft the selector needs. The
// engine builds snapshots from the customer's recent drafts before asking
// where a message belongs.
type DraftSnapshot struct {
	ID           uuid.UUID
	Status       string
	OrderID      *uuid.UUID
	OrderStatus  string
	LastMessage  time.Time
	ClosedAt     *time.Time
	CommittedAt  *time.Time
	Control      orders.AggregateControl
}

// SelectorInput bundles the candidates for one incoming contribution. Any
// snapshot may be nil when no such draft exists for the customer.
type SelectorInput struct {
	At              time.Time
	Contribution    Contribution
	AwaitingDraft   *DraftSnapshot
	OpenDraft       *DraftSnapshot
	LatestCommitted *DraftSnapshot
}

type SelectionKind string

const (
	SelectReuseAwaiting SelectionKind = "reuse_awaiting_reply"
	SelectReuseOpen     SelectionKind = "reuse_open"
	SelectAmendOrder    SelectionKind = "post_commit_amendment"
	SelectSkipNoise     SelectionKind = "skip_noise"
	SelectFreshDraft    SelectionKind = "fresh_draft"
)

// Selection is the routing verdict: which draft absorbs the message, or
// that a new one opens, or that the message is dropped as noise.
type Selection struct {
	Kind  SelectionKind
	Draft *DraftSnapshot
	// AmendOrderID is set only for post-commit amendments.
	AmendOrderID *uuid.UUID
}

type selectorRule struct {
	kind  SelectionKind
	apply func(cfg Config, in SelectorInput) *Selection
}

// Rules are evaluated in order; the first that fires wins. Keeping them as
// a named list makes the precedence explicit and testable one rule at a
// time.
var selectorRules = []selectorRule{
	{SelectReuseAwaiting, ruleReuseAwaiting},
	{SelectReuseOpen, ruleReuseOpen},
	{SelectAmendOrder, ruleAmendOrder},
	{SelectSkipNoise, ruleSkipNoise},
	{SelectFreshDraft, ruleFreshDraft},
}

// SelectDraft routes one contribution to its destination.
func SelectDraft(cfg Config, in SelectorInput) Selection {
	for _, r := range selectorRules {
		if sel := r.apply(cfg, in); sel != nil {
			return *sel
		}
	}
	// ruleFreshDraft always fires.
	return Selection{Kind: SelectFreshDraft}
}

// A draft whose committed order has moved past picking can no longer absorb
// messages; one with no order always can.
func (d *DraftSnapshot) orderAccepting() bool {
	if d.OrderID == nil {
		return true
	}
	return orders.IsAmendable(d.OrderStatus)
}

// ruleReuseAwaiting pins the message to a draft that asked the customer a
// question, as long as the reply window is still open.
func ruleReuseAwaiting(cfg Config, in SelectorInput) *Selection {
	d := in.AwaitingDraft
	if d == nil || !d.Control.AwaitingCustomerReply || d.Control.AwaitingReplyUntil == nil {
		return nil
	}
	if !d.orderAccepting() {
		return nil
	}
	if in.At.After(*d.Control.AwaitingReplyUntil) {
		return nil
	}
	return &Selection{Kind: SelectReuseAwaiting, Draft: d}
}

// ruleReuseOpen continues an open draft when the silence since its last
// message is within the aggregation gap.
func ruleReuseOpen(cfg Config, in SelectorInput) *Selection {
	d := in.OpenDraft
	if d == nil || d.Status != orders.DraftStatusOpen {
		return nil
	}
	if !d.orderAccepting() {
		return nil
	}
	if in.At.Sub(d.LastMessage) > cfg.AggregationGap {
		return nil
	}
	return &Selection{Kind: SelectReuseOpen, Draft: d}
}

// ruleAmendOrder routes the message onto a freshly committed order while it
// is still amendable and the post-commit window has not lapsed.
func ruleAmendOrder(cfg Config, in SelectorInput) *Selection {
	d := in.LatestCommitted
	if d == nil || d.Status != orders.DraftStatusCommitted || d.OrderID == nil {
		return nil
	}
	if !orders.IsAmendable(d.OrderStatus) {
		return nil
	}
	ref := d.CommittedAt
	if ref == nil {
		ref = d.ClosedAt
	}
	if ref == nil || in.At.Sub(*ref) > cfg.PostCommitAmendmentWindow {
		return nil
	}
	return &Selection{Kind: SelectAmendOrder, Draft: d, AmendOrderID: d.OrderID}
}

// ruleSkipNoise drops signal-free chatter instead of opening a draft.
func ruleSkipNoise(cfg Config, in SelectorInput) *Selection {
	if !in.Contribution.IsNoise() {
		return nil
	}
	return &Selection{Kind: SelectSkipNoise}
}

func ruleFreshDraft(cfg Config, in SelectorInput) *Selection {
	return &Selection{Kind: SelectFreshDraft}
}
