package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// Sale is an immutable record of one product sold by a seller to a client.
type Sale struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SellerID    uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index:idx_sales_seller_sold_at,priority:1"`
	ClientID    *uuid.UUID        `gorm:"column:client_id;type:uuid"`
	ProductType enums.ProductType `gorm:"column:product_type;not null"`
	Amount      decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null;default:0"`
	SoldAt      time.Time         `gorm:"column:sold_at;not null;index:idx_sales_seller_sold_at,priority:2"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (Sale) TableName() string { return "sales" }

func (s *Sale) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
