package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name  string    `gorm:"column:name"`
	Phone string    `gorm:"column:phone"`
}

func (c *Client) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Address is a client delivery location.
type Address struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ClientID         *uuid.UUID `gorm:"column:client_id;type:uuid"`
	Street           string     `gorm:"column:street"`
	Locality         string     `gorm:"column:locality"`
	Landmark         string     `gorm:"column:landmark"`
	City             string     `gorm:"column:city"`
	State            string     `gorm:"column:state"`
	Pincode          string     `gorm:"column:pincode"`
	HouseDetails     string     `gorm:"column:house_details"`
	FormattedAddress string     `gorm:"column:formatted_address"`
	Lat              float64    `gorm:"column:lat"`
	Lng              float64    `gorm:"column:lng"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
