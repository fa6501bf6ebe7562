package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID *uuid.UUID `gorm:"column:category_id;type:uuid"`
	Name       string     `gorm:"column:name;not null"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Variant carries pricing. SPrice is the list price, DPrice the selling price,
// Tax a tax-inclusive percentage.
type Variant struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Name      string          `gorm:"column:name"`
	Code      string          `gorm:"column:code"`
	SPrice    decimal.Decimal `gorm:"column:s_price;type:numeric(12,2);not null"`
	DPrice    decimal.Decimal `gorm:"column:d_price;type:numeric(12,2);not null"`
	Discount  decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Tax       decimal.Decimal `gorm:"column:tax;type:numeric(5,2);not null;default:0"`
	Images    []string        `gorm:"column:images;type:jsonb;serializer:json"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
}

func (v *Variant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// Item is a stock item: one size of one variant with an on-hand count.
type Item struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;not null;index"`
	Size      string    `gorm:"column:size;not null"`
	Barcode   *string   `gorm:"column:barcode"`
	Qty       int       `gorm:"column:qty;not null;default:0"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
