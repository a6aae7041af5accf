package orders

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderStatusNew            = "NEW_ORDER"
	OrderStatusInPicking      = "IN_PICKING"
	OrderStatusWaitingCourier = "WAITING_COURIER"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusCompleted      = "COMPLETED"
	OrderStatusCanceled       = "CANCELED"
)

const (
	ActorSystemDraft     = "SYSTEM_ORDER_DRAFT"
	ActorAdminCancel     = "ADMIN_MANUAL_CANCEL"
	ActorAdminMoveStatus = "ADMIN_MOVE_STATUS"
)

// StatusTransitions is the forward-only fulfilment graph. COMPLETED accepts
// no further moves; CANCELED is reachable only through the cancel action.
var StatusTransitions = map[string][]string{
	OrderStatusNew:            {OrderStatusInPicking},
	OrderStatusInPicking:      {OrderStatusWaitingCourier},
	OrderStatusWaitingCourier: {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusCompleted},
	OrderStatusCompleted:      {},
}

// CanTransition reports whether from -> to is a legal forward move.
func CanTransition(from, to string) bool {
	for _, allowed := range StatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsAmendable reports whether an order can still absorb draft amendments.
func IsAmendable(status string) bool {
	return status == OrderStatusNew || status == OrderStatusInPicking
}

type Order struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderNumber       int64      `gorm:"column:order_number;autoIncrement;uniqueIndex" json:"order_number"`
	CustomerID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"customer_id"`
	Status            string     `gorm:"column:status;not null;index" json:"status"`
	RawMessage        string     `gorm:"column:raw_message;type:text" json:"raw_message"`
	InterpretedText   string     `gorm:"column:interpreted_text;type:text" json:"interpreted_text"`
	DeliveryAddress   *string    `gorm:"column:delivery_address" json:"delivery_address,omitempty"`
	Notes             *string    `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CancelReason      *string    `gorm:"column:cancel_reason" json:"cancel_reason,omitempty"`
	CanceledAt        *time.Time `gorm:"column:canceled_at" json:"canceled_at,omitempty"`
	PickingStartedAt  *time.Time `gorm:"column:picking_started_at" json:"picking_started_at,omitempty"`
	PickingFinishedAt *time.Time `gorm:"column:picking_finished_at" json:"picking_finished_at,omitempty"`
	OutForDeliveryAt  *time.Time `gorm:"column:out_for_delivery_at" json:"out_for_delivery_at,omitempty"`
	CompletedAt       *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:now()" json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string { return "order" }

type OrderItem struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductName string    `gorm:"column:product_name;not null" json:"product_name"`
	Quantity    float64   `gorm:"column:quantity;not null;default:1" json:"quantity"`
	Unit        *string   `gorm:"column:unit" json:"unit,omitempty"`
	Notes       *string   `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (OrderItem) TableName() string { return "order_item" }

type OrderStatusHistory struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	FromStatus *string   `gorm:"column:from_status" json:"from_status,omitempty"`
	ToStatus   string    `gorm:"column:to_status;not null" json:"to_status"`
	ChangedBy  string    `gorm:"column:changed_by;not null" json:"changed_by"`
	CreatedAt  time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }
