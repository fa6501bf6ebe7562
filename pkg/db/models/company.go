package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is a shop. InvoiceCounter is the next invoice number to issue and
// is only changed while the row is locked.
type Company struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	Logo           *string   `gorm:"column:logo"`
	InvoiceCounter int64     `gorm:"column:invoice_counter;not null;default:1"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Company) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CompanyUser links a user account to a company.
type CompanyUser struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"column:company_id;type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Role      string    `gorm:"column:role;not null"`
	Deleted   bool      `gorm:"column:deleted;not null;default:false"`
}

func (CompanyUser) TableName() string { return "company_users" }

func (u *CompanyUser) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// PushToken is a device token registered by a company app user.
type PushToken struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Token     string    `gorm:"column:token;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PushToken) TableName() string { return "cap_push_token" }

func (p *PushToken) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
