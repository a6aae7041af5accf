package draftflow

import (
	"testing"

	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

func TestReviewReasonPriority(t *testing.T) {
	cases := []struct {
		name string
		agg  orders.Aggregate
		want string
	}{
		{
			"pause outranks everything",
			orders.Aggregate{
				Control:     orders.AggregateControl{PauseForClarification: true},
				ReviewFlags: orders.AggregateReviewFlags{HasUnclassifiedContextMessage: true},
			},
			ReviewPausedForCustomerQuestion,
		},
		{
			"awaiting reply alone does not count as paused",
			orders.Aggregate{Control: orders.AggregateControl{AwaitingCustomerReply: true}},
			ReviewNoItemsDetected,
		},
		{
			"unclassified context before missing items",
			orders.Aggregate{ReviewFlags: orders.AggregateReviewFlags{HasUnclassifiedContextMessage: true}},
			ReviewUnclassifiedContext,
		},
		{
			"no items",
			orders.Aggregate{},
			ReviewNoItemsDetected,
		},
		{
			"items but nothing to close on",
			orders.Aggregate{Flags: orders.AggregateFlags{HasItems: true}},
			ReviewAwaitingSignals,
		},
		{
			"fallback",
			orders.Aggregate{Flags: orders.AggregateFlags{HasItems: true, HasClosingSignal: true}},
			ReviewManualRequired,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReviewReason(tc.agg); got != tc.want {
				t.Fatalf("ReviewReason = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestShouldCloseEarly(t *testing.T) {
	ready := orders.Aggregate{Flags: orders.AggregateFlags{HasItems: true, HasClosingSignal: true}}

	if ShouldCloseEarly(DefaultConfig(), ready) {
		t.Fatal("early close must stay off by default")
	}

	cfg := DefaultConfig()
	cfg.CloseEarlyOnSignals = true
	if !ShouldCloseEarly(cfg, ready) {
		t.Fatal("items + closing signal should close early when enabled")
	}

	noItems := ready
	noItems.Flags.HasItems = false
	if ShouldCloseEarly(cfg, noItems) {
		t.Fatal("closing signal without items must not commit")
	}

	awaiting := ready
	awaiting.Control.AwaitingCustomerReply = true
	if ShouldCloseEarly(cfg, awaiting) {
		t.Fatal("a pinned draft must not close early")
	}
}

func TestDecideOnTimeout(t *testing.T) {
	withItems := orders.Aggregate{Flags: orders.AggregateFlags{HasItems: true}}

	out := DecideOnTimeout(DefaultConfig(), withItems)
	if !out.Commit {
		t.Fatalf("items at deadline should commit, got %+v", out)
	}

	out = DecideOnTimeout(DefaultConfig(), orders.Aggregate{})
	if out.Commit || out.ReviewReason != ReviewNoItemsDetected {
		t.Fatalf("empty draft at deadline = %+v", out)
	}

	// Control state never blocks the commit; items are the only gate.
	paused := withItems
	paused.Control.PauseForClarification = true
	out = DecideOnTimeout(DefaultConfig(), paused)
	if !out.Commit {
		t.Fatalf("paused draft with items should still commit, got %+v", out)
	}
	awaiting := withItems
	awaiting.Control.AwaitingCustomerReply = true
	out = DecideOnTimeout(DefaultConfig(), awaiting)
	if !out.Commit {
		t.Fatalf("awaiting draft with items should still commit, got %+v", out)
	}

	cfg := DefaultConfig()
	cfg.AutoCreateOrderOnTimeout = false
	out = DecideOnTimeout(cfg, withItems)
	if out.Commit || out.ReviewReason != ReviewAwaitingSignals {
		t.Fatalf("auto-create off = %+v", out)
	}
}

func TestDecideOnTimeoutAddressOnlyDraft(t *testing.T) {
	addressOnly := orders.Aggregate{
		Flags: orders.AggregateFlags{HasDeliveryAddress: true},
	}
	out := DecideOnTimeout(DefaultConfig(), addressOnly)
	if out.Commit {
		t.Fatal("a draft without items must not commit")
	}
	if out.ReviewReason != ReviewNoItemsDetected {
		t.Fatalf("ReviewReason = %q, want %q", out.ReviewReason, ReviewNoItemsDetected)
	}
}
