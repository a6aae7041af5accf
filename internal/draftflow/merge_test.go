package draftflow

import (
	"testing"
	"time"

	"github.com/mercadomm/orders-backend/internal/domain/orders"
)

func orderContribution(t *testing.T, text string, parsed ParsedOrder) Contribution {
	t.Helper()
	if parsed.Intent == "" {
		parsed.Intent = orders.IntentOrder
	}
	return BuildContribution(RawMessage{ProviderMessageID: "wamid." + text, Text: text}, parsed)
}

func TestMergeAggregateAdditive(t *testing.T) {
	first := MergeAggregate(nil, orderContribution(t, "2kg de tomate", ParsedOrder{
		Items: []ParsedItem{{Name: "tomate", Quantity: floatPtr(2), Unit: strPtr("kg")}},
	}))
	if first.Version != 1 || len(first.Items) != 1 || len(first.Messages) != 1 {
		t.Fatalf("first merge: version=%d items=%d messages=%d", first.Version, len(first.Items), len(first.Messages))
	}

	second := MergeAggregate(&first, orderContribution(t, "e uma alface", ParsedOrder{
		Items: []ParsedItem{{Name: "alface"}},
	}))
	if second.Version != 2 {
		t.Fatalf("version = %d, want 2", second.Version)
	}
	if len(second.Items) != 2 || second.Items[0].Name != "tomate" || second.Items[1].Name != "alface" {
		t.Fatalf("items after second merge = %+v", second.Items)
	}
	if second.Stats.MessageCount != 2 || second.Stats.ItemCount != 2 {
		t.Fatalf("stats = %+v", second.Stats)
	}
	// The earlier state must not be mutated by the second merge.
	if len(first.Items) != 1 || len(first.Messages) != 1 {
		t.Fatalf("first aggregate mutated: items=%d messages=%d", len(first.Items), len(first.Messages))
	}
}

func TestMergeAggregateFlagsMonotonic(t *testing.T) {
	withItems := MergeAggregate(nil, orderContribution(t, "2kg de tomate", ParsedOrder{
		Items: []ParsedItem{{Name: "tomate", Quantity: floatPtr(2)}},
	}))
	if !withItems.Flags.HasItems {
		t.Fatal("HasItems not set")
	}

	// A later item-free message must not unset any flag.
	after := MergeAggregate(&withItems, orderContribution(t, "Rua das Flores 123", ParsedOrder{Intent: "UNCLEAR"}))
	if !after.Flags.HasItems {
		t.Fatal("HasItems dropped by item-free message")
	}
	if !after.Flags.HasDeliveryAddress {
		t.Fatal("HasDeliveryAddress not raised by address message")
	}
	if after.ReviewFlags.HasUnclassifiedContextMessage {
		t.Fatal("a signal-bearing message must not flag unclassified context")
	}

	greeting := MergeAggregate(&after, orderContribution(t, "bom dia", ParsedOrder{Intent: "NOT_ORDER"}))
	if !greeting.ReviewFlags.HasUnclassifiedContextMessage {
		t.Fatal("signal-free NOT_ORDER message should flag unclassified context")
	}
}

func TestMergeAggregateDeliveryOverwrite(t *testing.T) {
	agg := MergeAggregate(nil, orderContribution(t, "Rua A 1", ParsedOrder{
		Delivery: ParsedDelivery{Address: strPtr("Rua A 1")},
	}))
	agg = MergeAggregate(&agg, orderContribution(t, "errei, é Rua B 2", ParsedOrder{
		Delivery: ParsedDelivery{Address: strPtr("Rua B 2")},
	}))
	if agg.Delivery.Address == nil || *agg.Delivery.Address != "Rua B 2" {
		t.Fatalf("address = %v, want correction to win", agg.Delivery.Address)
	}
}

func TestMergeAggregateClosingSignalDedup(t *testing.T) {
	agg := MergeAggregate(nil, orderContribution(t, "pode fechar", ParsedOrder{}))
	agg = MergeAggregate(&agg, orderContribution(t, "pode fechar ja", ParsedOrder{}))
	if len(agg.ClosingSignals) != 1 || agg.ClosingSignals[0] != "pode fechar" {
		t.Fatalf("closing signals = %v, want single deduped entry", agg.ClosingSignals)
	}
}

func TestMergeAggregateObservationDedup(t *testing.T) {
	agg := MergeAggregate(nil, orderContribution(t, "sem cebola por favor", ParsedOrder{
		Observations: []string{"sem cebola"},
		Ambiguities:  []string{" qual tomate? "},
	}))
	agg = MergeAggregate(&agg, orderContribution(t, "lembra: sem cebola", ParsedOrder{
		Observations: []string{" sem cebola "},
		Ambiguities:  []string{"qual tomate?"},
	}))
	if len(agg.Observations) != 1 || agg.Observations[0] != "sem cebola" {
		t.Fatalf("observations = %v, want single deduped entry", agg.Observations)
	}
	if len(agg.Ambiguities) != 1 || agg.Ambiguities[0] != "qual tomate?" {
		t.Fatalf("ambiguities = %v, want single deduped entry", agg.Ambiguities)
	}
}

func TestMergeAggregateJoinedText(t *testing.T) {
	agg := MergeAggregate(nil, orderContribution(t, "2kg de tomate", ParsedOrder{}))
	agg = MergeAggregate(&agg, orderContribution(t, "  e uma alface  ", ParsedOrder{}))
	if got := agg.JoinedText(); got != "2kg de tomate\n\ne uma alface" {
		t.Fatalf("joined text = %q", got)
	}
}

func TestAwaitingReplySatisfaction(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		replyType string
		text      string
		parsed    ParsedOrder
		cleared   bool
	}{
		{"address wait satisfied by address", orders.ReplyTypeAddress, "Rua das Flores 123", ParsedOrder{Intent: "UNCLEAR"}, true},
		{"address wait not satisfied by payment", orders.ReplyTypeAddress, "vou pagar no pix", ParsedOrder{Intent: "UNCLEAR"}, false},
		{"payment wait satisfied by payment", orders.ReplyTypePayment, "pode ser pix", ParsedOrder{Intent: "UNCLEAR"}, true},
		{"payment wait not satisfied by address", orders.ReplyTypePayment, "Rua das Flores 123", ParsedOrder{Intent: "UNCLEAR"}, false},
		{"items satisfy any wait", orders.ReplyTypeAddress, "manda 2 alfaces", ParsedOrder{
			Items: []ParsedItem{{Name: "alface", Quantity: floatPtr(2)}},
		}, true},
		{"closing satisfies any wait", orders.ReplyTypePayment, "pode fechar", ParsedOrder{Intent: "UNCLEAR"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := NewAwaitingAggregate(tc.replyType, now, 5*time.Minute)
			if !base.Control.AwaitingCustomerReply || base.Control.AwaitingReplyUntil == nil {
				t.Fatal("awaiting triad not armed")
			}
			merged := MergeAggregate(&base, orderContribution(t, tc.text, tc.parsed))
			if tc.cleared {
				if merged.Control.AwaitingCustomerReply || merged.Control.AwaitingReplyType != "" ||
					merged.Control.AwaitingReplySince != nil || merged.Control.AwaitingReplyUntil != nil {
					t.Fatalf("awaiting triad not fully cleared: %+v", merged.Control)
				}
			} else {
				if !merged.Control.AwaitingCustomerReply || merged.Control.AwaitingReplyType != tc.replyType {
					t.Fatalf("awaiting triad lost without satisfaction: %+v", merged.Control)
				}
			}
		})
	}
}

func TestPauseForClarification(t *testing.T) {
	paused := MergeAggregate(nil, orderContribution(t, "tem entrega hoje?", ParsedOrder{Intent: "UNCLEAR"}))
	if !paused.Control.PauseForClarification {
		t.Fatal("question should pause the draft")
	}

	resumed := MergeAggregate(&paused, orderContribution(t, "então manda 2kg de tomate", ParsedOrder{
		Items: []ParsedItem{{Name: "tomate", Quantity: floatPtr(2)}},
	}))
	if resumed.Control.PauseForClarification {
		t.Fatal("items should resume a paused draft")
	}

	// Any useful signal resumes the draft, not just items.
	byAddress := MergeAggregate(&paused, orderContribution(t, "Rua das Flores 123", ParsedOrder{Intent: "UNCLEAR"}))
	if byAddress.Control.PauseForClarification {
		t.Fatal("an address should resume a paused draft")
	}
	byPayment := MergeAggregate(&paused, orderContribution(t, "vou pagar no pix", ParsedOrder{Intent: "UNCLEAR"}))
	if byPayment.Control.PauseForClarification {
		t.Fatal("a payment intent should resume a paused draft")
	}
	stillPaused := MergeAggregate(&paused, orderContribution(t, "e a que horas abre?", ParsedOrder{Intent: "UNCLEAR"}))
	if !stillPaused.Control.PauseForClarification {
		t.Fatal("another question must keep the draft paused")
	}
}

func TestWithAwaitingReplyArmsTriad(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	agg := MergeAggregate(nil, orderContribution(t, "tem tomate?", ParsedOrder{Intent: "UNCLEAR"}))
	armed := WithAwaitingReply(agg, orders.ReplyTypeAddress, now, 5*time.Minute)
	if !armed.Control.AwaitingCustomerReply || armed.Control.AwaitingReplyType != orders.ReplyTypeAddress {
		t.Fatalf("control = %+v", armed.Control)
	}
	if armed.Control.PauseForClarification {
		t.Fatal("asking clears the pause")
	}
	if armed.Control.AwaitingReplySince == nil || !armed.Control.AwaitingReplySince.Equal(now) {
		t.Fatalf("since = %v", armed.Control.AwaitingReplySince)
	}
	if armed.Control.AwaitingReplyUntil == nil || !armed.Control.AwaitingReplyUntil.Equal(now.Add(5*time.Minute)) {
		t.Fatalf("until = %v", armed.Control.AwaitingReplyUntil)
	}
	if armed.Version != agg.Version+1 {
		t.Fatalf("version = %d, want %d", armed.Version, agg.Version+1)
	}
}
