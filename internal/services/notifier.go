package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/realtime"
	"github.com/mercadomm/orders-backend/internal/realtime/bus"
)

// Notifier pushes draft and order lifecycle events to admin frontends.
// Publishing goes through the redis bus when one is configured so every
// replica's SSE clients see the event; otherwise it stays in-process.
type Notifier interface {
	DraftOpened(draft *types.OrderDraft)
	DraftUpdated(draft *types.OrderDraft, selection string)
	DraftReadyForReview(draft *types.OrderDraft)
	DraftCommitted(draft *types.OrderDraft)
	DraftCanceled(draft *types.OrderDraft)

	OrderCreated(order *types.Order)
	OrderAmended(order *types.Order, draftID uuid.UUID)
	OrderStatusChanged(order *types.Order, fromStatus string)
	OrderCanceled(order *types.Order)
}

type notifier struct {
	log *logger.Logger
	hub *realtime.Hub
	bus bus.Bus
}

func NewNotifier(baseLog *logger.Logger, hub *realtime.Hub, b bus.Bus) Notifier {
	return &notifier{
		log: baseLog.With("service", "Notifier"),
		hub: hub,
		bus: b,
	}
}

func (n *notifier) emit(msg realtime.Message) {
	if n == nil {
		return
	}
	if n.bus != nil {
		if err := n.bus.Publish(context.Background(), msg); err != nil {
			n.log.Warn("realtime publish failed; falling back to local hub",
				"channel", msg.Channel, "event", msg.Event, "error", err)
		} else {
			// The bus forwarder feeds the local hub too.
			return
		}
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}

func (n *notifier) DraftOpened(draft *types.OrderDraft) {
	if draft == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelDrafts,
		Event:   realtime.EventDraftOpened,
		Data:    map[string]any{"draft": draft},
	})
}

func (n *notifier) DraftUpdated(draft *types.OrderDraft, selection string) {
	if draft == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelDrafts,
		Event:   realtime.EventDraftUpdated,
		Data:    map[string]any{"draft": draft, "selection": selection},
	})
}

func (n *notifier) DraftReadyForReview(draft *types.OrderDraft) {
	if draft == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelDrafts,
		Event:   realtime.EventDraftReadyForReview,
		Data:    map[string]any{"draft": draft},
	})
}

func (n *notifier) DraftCommitted(draft *types.OrderDraft) {
	if draft == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelDrafts,
		Event:   realtime.EventDraftCommitted,
		Data:    map[string]any{"draft": draft},
	})
}

func (n *notifier) DraftCanceled(draft *types.OrderDraft) {
	if draft == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelDrafts,
		Event:   realtime.EventDraftCanceled,
		Data:    map[string]any{"draft": draft},
	})
}

func (n *notifier) OrderCreated(order *types.Order) {
	if order == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelOrders,
		Event:   realtime.EventOrderCreated,
		Data:    map[string]any{"order": order},
	})
}

func (n *notifier) OrderAmended(order *types.Order, draftID uuid.UUID) {
	if order == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelOrders,
		Event:   realtime.EventOrderAmended,
		Data:    map[string]any{"order": order, "draft_id": draftID},
	})
}

func (n *notifier) OrderStatusChanged(order *types.Order, fromStatus string) {
	if order == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelOrders,
		Event:   realtime.EventOrderStatusChanged,
		Data:    map[string]any{"order": order, "from_status": fromStatus},
	})
}

func (n *notifier) OrderCanceled(order *types.Order) {
	if order == nil {
		return
	}
	n.emit(realtime.Message{
		Channel: realtime.ChannelOrders,
		Event:   realtime.EventOrderCanceled,
		Data:    map[string]any{"order": order},
	})
}
