package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Distributor is a seller enrolled in the MLM program. Level is the depth in
// the referral tree captured when the record was created.
type Distributor struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	ReferralCode   string          `gorm:"column:referral_code;not null;uniqueIndex"`
	ParentID       *uuid.UUID      `gorm:"column:parent_id;type:uuid;index"`
	Level          int             `gorm:"column:niveau;not null;default:1"`
	Active         bool            `gorm:"column:actif;not null;default:true"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Distributor) TableName() string { return "distributors" }

func (d *Distributor) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}
