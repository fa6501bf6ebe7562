package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DeliveryPartner struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name       string    `gorm:"column:name"`
	Phone      string    `gorm:"column:phone"`
	ProfilePic *string   `gorm:"column:profile_pic"`
	BloodGroup *string   `gorm:"column:blood_group"`
}

func (p *DeliveryPartner) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// DeliveryPartnerEarning is what a partner made on one order.
type DeliveryPartnerEarning struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TrynbuyID         uuid.UUID       `gorm:"column:trynbuy_id;type:uuid;not null"`
	DeliveryPartnerID uuid.UUID       `gorm:"column:delivery_partner_id;type:uuid;not null;index"`
	DeliverFees       decimal.Decimal `gorm:"column:deliver_fees;type:numeric(12,2);not null;default:0"`
	WaitingFees       decimal.Decimal `gorm:"column:waiting_fees;type:numeric(12,2);not null;default:0"`
	Tips              decimal.Decimal `gorm:"column:tips;type:numeric(12,2);not null;default:0"`
	Surge             decimal.Decimal `gorm:"column:surge;type:numeric(12,2);not null;default:0"`
	Distance          float64         `gorm:"column:distance"`
	WaitingTime       int             `gorm:"column:waiting_time"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *DeliveryPartnerEarning) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
