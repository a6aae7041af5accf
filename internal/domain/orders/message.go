package orders

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MessageDirectionIn  = "IN"
	MessageDirectionOut = "OUT"
)

// InboundMessage is the persisted chat message. Its identity is what the
// draft link table de-duplicates on.
type InboundMessage struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CustomerID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"customer_id"`
	ProviderMessageID string         `gorm:"uniqueIndex;not null;column:provider_message_id" json:"provider_message_id"`
	Direction         string         `gorm:"column:direction;not null;default:IN" json:"direction"`
	MessageType       string         `gorm:"column:message_type;not null;default:text" json:"message_type"`
	Text              string         `gorm:"column:text" json:"text"`
	ProviderTimestamp *time.Time     `gorm:"column:provider_timestamp" json:"provider_timestamp,omitempty"`
	ParsedPayload     datatypes.JSON `gorm:"type:jsonb;column:parsed_payload" json:"parsed_payload,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (InboundMessage) TableName() string { return "inbound_message" }

// DraftMessage links one inbound message to exactly one draft. The unique
// index on inbound_message_id is the idempotency guard for ingestion.
type DraftMessage struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderDraftID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"order_draft_id"`
	InboundMessageID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"inbound_message_id"`
	ProviderMessageID  string         `gorm:"column:provider_message_id;index" json:"provider_message_id"`
	Sequence           int            `gorm:"column:sequence;not null;default:0" json:"sequence"`
	MessageText        string         `gorm:"column:message_text" json:"message_text"`
	ParsedIntent       string         `gorm:"column:parsed_intent" json:"parsed_intent"`
	ParsedConfidence   *float64       `gorm:"column:parsed_confidence" json:"parsed_confidence,omitempty"`
	ParsedPayload      datatypes.JSON `gorm:"type:jsonb;column:parsed_payload" json:"parsed_payload,omitempty"`
	HasItems           bool           `gorm:"column:has_items;not null;default:false" json:"has_items"`
	HasDeliveryAddress bool           `gorm:"column:has_delivery_address;not null;default:false" json:"has_delivery_address"`
	HasPaymentIntent   bool           `gorm:"column:has_payment_intent;not null;default:false" json:"has_payment_intent"`
	HasClosingSignal   bool           `gorm:"column:has_closing_signal;not null;default:false" json:"has_closing_signal"`
	CreatedAt          time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (DraftMessage) TableName() string { return "order_draft_message" }
