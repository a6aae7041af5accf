package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mercadomm/orders-backend/internal/data/repos"
	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

// OrderMaterializer turns a committed draft's aggregate into an order row
// with items and history, and applies post-commit amendments.
type OrderMaterializer interface {
	// CreateFromDraft must run inside the caller's transaction.
	CreateFromDraft(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft, agg types.Aggregate) (*types.Order, error)
	// AmendFromDraft folds a committed follow-up draft's aggregate onto
	// the amendable order it is linked to. Runs inside the caller's
	// transaction.
	AmendFromDraft(ctx context.Context, tx *gorm.DB, order *types.Order, agg types.Aggregate) error
}

type orderMaterializer struct {
	log       *logger.Logger
	customers repos.CustomerRepo
	ordersR   repos.OrderRepo
}

func NewOrderMaterializer(
	baseLog *logger.Logger,
	customers repos.CustomerRepo,
	ordersR repos.OrderRepo,
) OrderMaterializer {
	return &orderMaterializer{
		log:       baseLog.With("service", "OrderMaterializer"),
		customers: customers,
		ordersR:   ordersR,
	}
}

func (m *orderMaterializer) CreateFromDraft(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft, agg types.Aggregate) (*types.Order, error) {
	if m == nil || m.customers == nil || m.ordersR == nil {
		return nil, fmt.Errorf("order materializer not configured")
	}
	if draft == nil {
		return nil, fmt.Errorf("missing draft")
	}
	if tx == nil {
		return nil, fmt.Errorf("CreateFromDraft requires a db transaction")
	}

	address, err := m.resolveAddress(ctx, tx, draft, agg)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &types.Order{
		CustomerID:      draft.CustomerID,
		Status:          types.OrderStatusNew,
		RawMessage:      agg.JoinedText(),
		InterpretedText: interpretedText(agg),
		DeliveryAddress: address,
		Notes:           orderNotes(agg),
	}
	if _, err := m.ordersR.Create(ctx, tx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := buildOrderItems(order, agg.Items)
	if err := m.ordersR.AddItems(ctx, tx, items); err != nil {
		return nil, fmt.Errorf("create order items: %w", err)
	}
	order.Items = make([]types.OrderItem, 0, len(items))
	for _, it := range items {
		order.Items = append(order.Items, *it)
	}

	if err := m.ordersR.AppendHistory(ctx, tx, &types.OrderStatusHistory{
		OrderID:   order.ID,
		ToStatus:  types.OrderStatusNew,
		ChangedBy: types.ActorSystemDraft,
	}); err != nil {
		return nil, fmt.Errorf("append order history: %w", err)
	}

	if err := m.customers.RecordOrderCommitted(ctx, tx, draft.CustomerID, now); err != nil {
		return nil, fmt.Errorf("record customer order: %w", err)
	}
	if agg.Delivery.Address != nil {
		if err := m.customers.UpdateDefaultAddress(ctx, tx, draft.CustomerID, *agg.Delivery.Address); err != nil {
			return nil, fmt.Errorf("update default address: %w", err)
		}
	}

	m.log.Info("order materialized",
		"order_id", order.ID.String(),
		"draft_id", draft.ID.String(),
		"customer_id", draft.CustomerID.String(),
		"items", len(items),
	)
	return order, nil
}

// resolveAddress walks the fallback chain: the aggregate's own address,
// then the customer's default, then the newest non-canceled order that
// carried one.
func (m *orderMaterializer) resolveAddress(ctx context.Context, tx *gorm.DB, draft *types.OrderDraft, agg types.Aggregate) (*string, error) {
	if agg.Delivery.Address != nil {
		return agg.Delivery.Address, nil
	}

	customer, err := m.customers.GetByID(ctx, tx, draft.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	if customer.DefaultDeliveryAddress != nil && strings.TrimSpace(*customer.DefaultDeliveryAddress) != "" {
		return customer.DefaultDeliveryAddress, nil
	}

	prev, err := m.ordersR.FindLatestWithAddress(ctx, tx, draft.CustomerID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		return prev.DeliveryAddress, nil
	}
	return nil, nil
}

func (m *orderMaterializer) AmendFromDraft(ctx context.Context, tx *gorm.DB, order *types.Order, agg types.Aggregate) error {
	if m == nil || m.customers == nil || m.ordersR == nil {
		return fmt.Errorf("order materializer not configured")
	}
	if order == nil {
		return fmt.Errorf("missing order")
	}
	if tx == nil {
		return fmt.Errorf("AmendFromDraft requires a db transaction")
	}
	if !types.IsAmendable(order.Status) {
		return fmt.Errorf("order %s is not amendable in status %s", order.ID.String(), order.Status)
	}

	items := buildOrderItems(order, agg.Items)
	if err := m.ordersR.AddItems(ctx, tx, items); err != nil {
		return fmt.Errorf("append amendment items: %w", err)
	}

	if text := strings.TrimSpace(agg.JoinedText()); text != "" {
		order.RawMessage = order.RawMessage + "\n\n--- AMENDMENT ---\n" + text
	}
	// The interpreted summary is regenerated from the amendment aggregate,
	// not stitched onto the old one.
	if summary := interpretedText(agg); summary != "" {
		order.InterpretedText = summary
	}
	if agg.Delivery.Address != nil {
		order.DeliveryAddress = agg.Delivery.Address
	}
	if notes := orderNotes(agg); notes != nil {
		if order.Notes != nil && strings.TrimSpace(*order.Notes) != "" {
			joined := *order.Notes + "\n" + *notes
			order.Notes = &joined
		} else {
			order.Notes = notes
		}
	}
	if err := m.ordersR.Save(ctx, tx, order); err != nil {
		return fmt.Errorf("save amended order: %w", err)
	}

	if agg.Delivery.Address != nil {
		if err := m.customers.UpdateDefaultAddress(ctx, tx, order.CustomerID, *agg.Delivery.Address); err != nil {
			return fmt.Errorf("update default address: %w", err)
		}
	}

	m.log.Info("order amended",
		"order_id", order.ID.String(),
		"customer_id", order.CustomerID.String(),
		"items_added", len(items),
	)
	return nil
}

func buildOrderItems(order *types.Order, src []types.AggregateItem) []*types.OrderItem {
	items := make([]*types.OrderItem, 0, len(src))
	for _, it := range src {
		qty := 1.0
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		items = append(items, &types.OrderItem{
			OrderID:     order.ID,
			ProductName: it.Name,
			Quantity:    qty,
			Unit:        it.Unit,
			Notes:       it.Notes,
		})
	}
	return items
}

func itemLines(items []types.AggregateItem) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		qty := 1.0
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		if it.Unit != nil {
			fmt.Fprintf(&b, "%g %s %s", qty, *it.Unit, it.Name)
		} else {
			fmt.Fprintf(&b, "%g x %s", qty, it.Name)
		}
		if it.Notes != nil {
			fmt.Fprintf(&b, " (%s)", *it.Notes)
		}
	}
	return b.String()
}

// interpretedText is the operator-facing rendering of the aggregate.
func interpretedText(agg types.Aggregate) string {
	var parts []string
	if len(agg.Items) > 0 {
		parts = append(parts, itemLines(agg.Items))
	}
	if agg.Delivery.Address != nil {
		line := "Entrega: " + *agg.Delivery.Address
		if agg.Delivery.Neighborhood != nil {
			line += ", " + *agg.Delivery.Neighborhood
		}
		if agg.Delivery.Reference != nil {
			line += " (" + *agg.Delivery.Reference + ")"
		}
		parts = append(parts, line)
	}
	if agg.PaymentIntent != nil {
		parts = append(parts, "Pagamento: "+*agg.PaymentIntent)
	}
	return strings.Join(parts, "\n")
}

func orderNotes(agg types.Aggregate) *string {
	var lines []string
	lines = append(lines, agg.Observations...)
	for _, a := range agg.Ambiguities {
		lines = append(lines, "Duvida: "+a)
	}
	if len(lines) == 0 {
		return nil
	}
	notes := strings.Join(lines, "\n")
	return &notes
}
