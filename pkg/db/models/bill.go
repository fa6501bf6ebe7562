package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bill is the invoice issued when a settlement keeps at least one item.
type Bill struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID     uuid.UUID           `gorm:"column:company_id;type:uuid;not null"`
	TrynbuyID     uuid.UUID           `gorm:"column:trynbuy_id;type:uuid;not null;uniqueIndex"`
	InvoiceNumber int64               `gorm:"column:invoice_number;not null"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	GrandTotal    decimal.Decimal     `gorm:"column:grand_total;type:numeric(12,2);not null"`
	Discount      decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null"`
	DeliveryFee   decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	WaitingFee    decimal.Decimal     `gorm:"column:waiting_fee;type:numeric(12,2);not null"`
	PaymentMethod string              `gorm:"column:payment_method;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null"`
	TransactionID *string             `gorm:"column:transaction_id"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Entries []BillEntry `gorm:"foreignKey:BillID"`
}

func (b *Bill) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// BillEntry is one kept or returned line on a bill. Returned lines are
// flagged and excluded from revenue.
type BillEntry struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	BillID    uuid.UUID       `gorm:"column:bill_id;type:uuid;not null;index"`
	VariantID uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	ItemID    uuid.UUID       `gorm:"column:item_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(12,2);not null"`
	Discount  decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null"`
	Tax       decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null"`
	Value     decimal.Decimal `gorm:"column:value;type:numeric(12,2);not null"`
	IsReturn  bool            `gorm:"column:is_return;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (e *BillEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
