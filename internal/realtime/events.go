package realtime

// Channels the backend publishes on. Admin frontends subscribe to these
// through the SSE endpoint; other backend replicas through the redis bus.
const (
	ChannelOrders = "realtime:orders"
	ChannelDrafts = "realtime:order-drafts"
)

type Event string

const (
	EventDraftOpened         Event = "order_draft.opened"
	EventDraftUpdated        Event = "order_draft.updated"
	EventDraftReadyForReview Event = "order_draft.ready_for_review"
	EventDraftCommitted      Event = "order_draft.committed"
	EventDraftCanceled       Event = "order_draft.canceled"

	EventOrderCreated       Event = "order.created"
	EventOrderAmended       Event = "order.amended"
	EventOrderStatusChanged Event = "order.status_changed"
	EventOrderCanceled      Event = "order.canceled"
)

type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}
