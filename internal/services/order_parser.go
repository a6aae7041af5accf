package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mercadomm/orders-backend/internal/clients/openai"
	"github.com/mercadomm/orders-backend/internal/domain/orders"
	"github.com/mercadomm/orders-backend/internal/draftflow"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

// OrderParser classifies one inbound message. The result is untrusted:
// draftflow.BuildContribution re-validates every field against the raw text.
type OrderParser interface {
	ParseMessage(ctx context.Context, customerName, text string) (draftflow.ParsedOrder, error)
}

const parserSystemPrompt = `Voce interpreta mensagens de WhatsApp enviadas a um mercado de bairro brasileiro.
Classifique a mensagem e extraia os dados do pedido quando houver.

Regras:
- intent: "ORDER" quando a mensagem pede produtos; "NOT_ORDER" para conversa sem relacao com pedido; "UNCLEAR" quando nao da para afirmar.
- items: apenas produtos realmente pedidos nesta mensagem, com quantidade quando informada.
- delivery: endereco de entrega somente se a mensagem o contem.
- payment_method: "pix", "dinheiro" ou "cartao" somente se mencionado.
- closing_signal: true quando o cliente indica que terminou o pedido ("pode fechar", "so isso", "mais nada").
- Nao invente dados. Campos ausentes ficam null ou vazios.
Responda somente com o JSON pedido.`

var parserSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required": []string{
		"intent", "confidence", "items", "delivery", "payment_method",
		"observations", "ambiguities", "closing_signal", "summary",
	},
	"properties": map[string]any{
		"intent":     map[string]any{"type": "string", "enum": []string{"ORDER", "NOT_ORDER", "UNCLEAR"}},
		"confidence": map[string]any{"type": []string{"number", "null"}},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"name", "quantity", "unit", "notes"},
				"properties": map[string]any{
					"name":     map[string]any{"type": "string"},
					"quantity": map[string]any{"type": []string{"number", "null"}},
					"unit":     map[string]any{"type": []string{"string", "null"}},
					"notes":    map[string]any{"type": []string{"string", "null"}},
				},
			},
		},
		"delivery": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"address", "neighborhood", "reference"},
			"properties": map[string]any{
				"address":      map[string]any{"type": []string{"string", "null"}},
				"neighborhood": map[string]any{"type": []string{"string", "null"}},
				"reference":    map[string]any{"type": []string{"string", "null"}},
			},
		},
		"payment_method": map[string]any{"type": []string{"string", "null"}},
		"observations":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"ambiguities":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"closing_signal": map[string]any{"type": "boolean"},
		"summary":        map[string]any{"type": "string"},
	},
}

// parsedOrderDoc mirrors the schema for decoding.
type parsedOrderDoc struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
	Items      []struct {
		Name     string   `json:"name"`
		Quantity *float64 `json:"quantity"`
		Unit     *string  `json:"unit"`
		Notes    *string  `json:"notes"`
	} `json:"items"`
	Delivery struct {
		Address      *string `json:"address"`
		Neighborhood *string `json:"neighborhood"`
		Reference    *string `json:"reference"`
	} `json:"delivery"`
	PaymentMethod *string  `json:"payment_method"`
	Observations  []string `json:"observations"`
	Ambiguities   []string `json:"ambiguities"`
	ClosingSignal bool     `json:"closing_signal"`
	Summary       string   `json:"summary"`
}

type openaiOrderParser struct {
	log *logger.Logger
	ai  openai.Client
}

func NewOpenAIOrderParser(baseLog *logger.Logger, ai openai.Client) (OrderParser, error) {
	if ai == nil {
		return nil, fmt.Errorf("openai client required")
	}
	return &openaiOrderParser{
		log: baseLog.With("service", "OrderParser"),
		ai:  ai,
	}, nil
}

func (p *openaiOrderParser) ParseMessage(ctx context.Context, customerName, text string) (draftflow.ParsedOrder, error) {
	user := fmt.Sprintf("Cliente: %s\nMensagem:\n%s", strings.TrimSpace(customerName), text)

	obj, err := p.ai.GenerateJSON(ctx, parserSystemPrompt, user, "order_message", parserSchema)
	if err != nil {
		return draftflow.ParsedOrder{}, fmt.Errorf("parse message: %w", err)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return draftflow.ParsedOrder{}, err
	}
	var doc parsedOrderDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return draftflow.ParsedOrder{}, fmt.Errorf("decode parser output: %w", err)
	}

	parsed := draftflow.ParsedOrder{
		Intent:        doc.Intent,
		Confidence:    doc.Confidence,
		PaymentMethod: doc.PaymentMethod,
		Observations:  doc.Observations,
		Ambiguities:   doc.Ambiguities,
		ClosingSignal: doc.ClosingSignal,
		Summary:       doc.Summary,
		Delivery: draftflow.ParsedDelivery{
			Address:      doc.Delivery.Address,
			Neighborhood: doc.Delivery.Neighborhood,
			Reference:    doc.Delivery.Reference,
		},
	}
	for _, it := range doc.Items {
		parsed.Items = append(parsed.Items, draftflow.ParsedItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Unit:     it.Unit,
			Notes:    it.Notes,
		})
	}
	return parsed, nil
}

type heuristicOrderParser struct {
	log *logger.Logger
}

// NewHeuristicOrderParser is the degraded-mode parser used when no OpenAI
// key is configured. It never extracts items, so drafts built from it end
// up in review; the text heuristics still pick up addresses, payment and
// closing phrases.
func NewHeuristicOrderParser(baseLog *logger.Logger) OrderParser {
	return &heuristicOrderParser{log: baseLog.With("service", "OrderParser")}
}

func (p *heuristicOrderParser) ParseMessage(ctx context.Context, customerName, text string) (draftflow.ParsedOrder, error) {
	intent := orders.IntentUnclear
	if len(draftflow.DetectClosingSignals(text)) > 0 ||
		draftflow.DetectAddressLike(text) ||
		draftflow.NormalizePaymentIntent(text) != nil {
		intent = orders.IntentOrder
	}
	return draftflow.ParsedOrder{Intent: intent}, nil
}
