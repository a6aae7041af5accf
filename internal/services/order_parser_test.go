package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mercadomm/orders-backend/internal/data/repos/testutil"
	types "github.com/mercadomm/orders-backend/internal/domain"
)

type fakeAI struct {
	response map[string]any
	err      error
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", nil
}

func TestOpenAIOrderParserDecodesResponse(t *testing.T) {
	raw := `{
		"intent": "ORDER",
		"confidence": 0.92,
		"items": [
			{"name": "arroz", "quantity": 2, "unit": "kg", "notes": null},
			{"name": "leite", "quantity": null, "unit": null, "notes": "integral"}
		],
		"delivery": {"address": "Rua B 22", "neighborhood": null, "reference": null},
		"payment_method": "pix",
		"observations": ["troco para 50"],
		"ambiguities": [],
		"closing_signal": true,
		"summary": "2kg arroz e leite"
	}`
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}

	parser, err := NewOpenAIOrderParser(testutil.Logger(t), &fakeAI{response: obj})
	if err != nil {
		t.Fatalf("NewOpenAIOrderParser: %v", err)
	}

	parsed, err := parser.ParseMessage(context.Background(), "Dona Maria", "2kg de arroz e um leite, pix, pode fechar")
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if parsed.Intent != types.IntentOrder {
		t.Fatalf("intent: want=%s got=%s", types.IntentOrder, parsed.Intent)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("items: want=2 got=%d", len(parsed.Items))
	}
	if parsed.Items[0].Quantity == nil || *parsed.Items[0].Quantity != 2 {
		t.Fatalf("first quantity wrong: %+v", parsed.Items[0])
	}
	if parsed.Items[1].Quantity != nil {
		t.Fatalf("missing quantity must stay nil")
	}
	if parsed.Delivery.Address == nil || *parsed.Delivery.Address != "Rua B 22" {
		t.Fatalf("delivery address: %+v", parsed.Delivery)
	}
	if parsed.PaymentMethod == nil || *parsed.PaymentMethod != "pix" {
		t.Fatalf("payment method: %v", parsed.PaymentMethod)
	}
	if !parsed.ClosingSignal {
		t.Fatalf("closing signal lost")
	}
}

func TestHeuristicOrderParser(t *testing.T) {
	parser := NewHeuristicOrderParser(testutil.Logger(t))

	tests := []struct {
		name   string
		text   string
		intent string
	}{
		{"closing phrase", "pode fechar", types.IntentOrder},
		{"payment word", "vou pagar no pix", types.IntentOrder},
		{"address", "Rua das Flores 123", types.IntentOrder},
		{"plain chatter", "obrigado", types.IntentUnclear},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := parser.ParseMessage(context.Background(), "", tc.text)
			if err != nil {
				t.Fatalf("ParseMessage: %v", err)
			}
			if parsed.Intent != tc.intent {
				t.Fatalf("intent: want=%s got=%s", tc.intent, parsed.Intent)
			}
		})
	}
}
