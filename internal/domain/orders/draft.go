package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DraftStatusOpen           = "OPEN"
	DraftStatusReadyForReview = "READY_FOR_REVIEW"
	DraftStatusCommitted      = "COMMITTED"
	DraftStatusCanceled       = "CANCELED"
	// DraftStatusExpired is reserved; nothing produces it automatically.
	DraftStatusExpired = "EXPIRED"
)

const (
	CloseReasonTimeout     = "TIMEOUT"
	CloseReasonManual      = "MANUAL"
	CloseReasonEarlySignal = "EARLY_SIGNAL"
)

// OrderDraft is one evolving negotiation with a customer. Drafts are never
// deleted, only moved to a terminal status. CommitDeadlineAt is set exactly
// while Status is OPEN.
type OrderDraft struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CustomerID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"customer_id"`
	OrderID          *uuid.UUID     `gorm:"type:uuid;column:order_id;index" json:"order_id,omitempty"`
	Status           string         `gorm:"column:status;not null;index" json:"status"`
	CloseReason      *string        `gorm:"column:close_reason" json:"close_reason,omitempty"`
	ReviewReason     *string        `gorm:"column:review_reason" json:"review_reason,omitempty"`
	AggregatedData   datatypes.JSON `gorm:"type:jsonb;column:aggregated_data" json:"aggregated_data"`
	AggregatedText   string         `gorm:"column:aggregated_text" json:"aggregated_text"`
	OpenedAt         time.Time      `gorm:"column:opened_at;not null" json:"opened_at"`
	LastMessageAt    time.Time      `gorm:"column:last_message_at;not null;index" json:"last_message_at"`
	CommitDeadlineAt *time.Time     `gorm:"column:commit_deadline_at;index" json:"commit_deadline_at,omitempty"`
	CommittedAt      *time.Time     `gorm:"column:committed_at" json:"committed_at,omitempty"`
	ClosedAt         *time.Time     `gorm:"column:closed_at;index" json:"closed_at,omitempty"`
	TimedOutAt       *time.Time     `gorm:"column:timed_out_at" json:"timed_out_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now();index" json:"updated_at"`

	Order *Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
}

func (OrderDraft) TableName() string { return "order_draft" }

// Aggregate decodes the draft's accumulated negotiation state. A draft with
// no stored document decodes to the zero Aggregate.
func (d *OrderDraft) Aggregate() (Aggregate, error) {
	var agg Aggregate
	if len(d.AggregatedData) == 0 || string(d.AggregatedData) == "null" {
		return agg, nil
	}
	if err := json.Unmarshal(d.AggregatedData, &agg); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

func (d *OrderDraft) SetAggregate(agg Aggregate) error {
	raw, err := json.Marshal(agg)
	if err != nil {
		return err
	}
	d.AggregatedData = datatypes.JSON(raw)
	d.AggregatedText = agg.JoinedText()
	return nil
}
