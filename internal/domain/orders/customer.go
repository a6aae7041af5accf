package orders

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID                     uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                   string     `gorm:"column:name" json:"name"`
	Phone                  string     `gorm:"column:phone" json:"phone"`
	PhoneE164              string     `gorm:"uniqueIndex;not null;column:phone_e164" json:"phone_e164"`
	DefaultDeliveryAddress *string    `gorm:"column:default_delivery_address" json:"default_delivery_address,omitempty"`
	TotalOrders            int        `gorm:"column:total_orders;not null;default:0" json:"total_orders"`
	FirstOrderAt           *time.Time `gorm:"column:first_order_at" json:"first_order_at,omitempty"`
	LastOrderAt            *time.Time `gorm:"column:last_order_at" json:"last_order_at,omitempty"`
	CreatedAt              time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Customer) TableName() string { return "customer" }
