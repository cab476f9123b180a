package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// CommissionRule is the percentage paid to a distributor at a given tree level
// for a product type.
type CommissionRule struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Level       int               `gorm:"column:niveau;not null;uniqueIndex:idx_commission_rules_level_product,priority:1"`
	ProductType enums.ProductType `gorm:"column:product_type;not null;uniqueIndex:idx_commission_rules_level_product,priority:2"`
	Rate        decimal.Decimal   `gorm:"column:taux;type:numeric(5,2);not null"`
	Active      bool              `gorm:"column:actif;not null;default:true"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (CommissionRule) TableName() string { return "commission_rules" }

func (r *CommissionRule) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
