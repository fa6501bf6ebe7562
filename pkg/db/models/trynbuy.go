package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trynbuy is one company's share of a client checkout.
type Trynbuy struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber       *int64              `gorm:"column:order_number;->"`
	CheckoutMethod    string              `gorm:"column:checkout_method;not null"`
	Subtotal          decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ProductDiscount   decimal.Decimal     `gorm:"column:product_discount;type:numeric(12,2);not null"`
	TotalDiscount     decimal.Decimal     `gorm:"column:total_discount;type:numeric(12,2);not null"`
	Shipping          decimal.Decimal     `gorm:"column:shipping;type:numeric(12,2);not null"`
	DeliveryType      enums.DeliveryType  `gorm:"column:delivery_type;not null"`
	DeliveryTime      *time.Time          `gorm:"column:delivery_time"`
	WaitingTime       int                 `gorm:"column:waiting_time;not null;default:0"`
	WaitingFee        decimal.Decimal     `gorm:"column:waiting_fee;type:numeric(12,2);not null"`
	OrderStatus       enums.TrynbuyStatus `gorm:"column:order_status;not null"`
	PackingStatus     enums.PackingStatus `gorm:"column:packing_status;not null"`
	LocationID        *uuid.UUID          `gorm:"column:location_id;type:uuid"`
	ClientID          uuid.UUID           `gorm:"column:client_id;type:uuid;not null;index"`
	CompanyID         uuid.UUID           `gorm:"column:company_id;type:uuid;not null;index"`
	DeliveryPartnerID *uuid.UUID          `gorm:"column:delivery_partner_id;type:uuid;index"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	CartItems     []TrynbuyCartItem     `gorm:"foreignKey:TrynbuyID"`
	ReturnedItems []TrynbuyReturnedItem `gorm:"foreignKey:TrynbuyID"`
	Company       *Company              `gorm:"foreignKey:CompanyID"`
	Client        *Client               `gorm:"foreignKey:ClientID"`
	Location      *Address              `gorm:"foreignKey:LocationID"`
	Bill          *Bill                 `gorm:"foreignKey:TrynbuyID"`
}

func (t *Trynbuy) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// TrynbuyCartItem is one reserved line of an order.
type TrynbuyCartItem struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TrynbuyID uuid.UUID            `gorm:"column:trynbuy_id;type:uuid;not null;index"`
	VariantID uuid.UUID            `gorm:"column:variant_id;type:uuid;not null"`
	ItemID    uuid.UUID            `gorm:"column:item_id;type:uuid;not null"`
	Quantity  int                  `gorm:"column:quantity;not null"`
	Status    enums.CartItemStatus `gorm:"column:status;not null"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`

	Variant *Variant `gorm:"foreignKey:VariantID"`
	Item    *Item    `gorm:"foreignKey:ItemID"`
}

func (TrynbuyCartItem) TableName() string { return "trynbuy_cart_items" }

func (c *TrynbuyCartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// TrynbuyReturnedItem records a line handed back at settlement.
type TrynbuyReturnedItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TrynbuyID uuid.UUID `gorm:"column:trynbuy_id;type:uuid;not null;index"`
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (TrynbuyReturnedItem) TableName() string { return "trynbuy_returned_items" }

func (r *TrynbuyReturnedItem) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
