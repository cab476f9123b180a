package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is an end customer. SellerCode links it to the seller who signed it.
type Client struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name       string    `gorm:"column:name;not null"`
	SellerCode *string   `gorm:"column:code_vendeur;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Client) TableName() string { return "clients" }

func (c *Client) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
