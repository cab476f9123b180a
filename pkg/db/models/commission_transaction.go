package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// CommissionTransaction is the commission owed to one distributor for one
// client sale at one level of the referral chain.
type CommissionTransaction struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	DistributorID uuid.UUID              `gorm:"column:distributor_id;type:uuid;not null;index:idx_commission_tx_dist_month,priority:1"`
	ClientID      uuid.UUID              `gorm:"column:client_id;type:uuid;not null"`
	ProductType   enums.ProductType      `gorm:"column:product_type;not null"`
	SaleAmount    decimal.Decimal        `gorm:"column:sale_amount;type:numeric(12,2);not null"`
	Amount        decimal.Decimal        `gorm:"column:montant;type:numeric(12,2);not null"`
	Rate          decimal.Decimal        `gorm:"column:taux;type:numeric(5,2);not null"`
	Level         int                    `gorm:"column:niveau;not null"`
	MonthKey      string                 `gorm:"column:mois;not null;index:idx_commission_tx_dist_month,priority:2"`
	Status        enums.CommissionStatus `gorm:"column:statut;not null;default:'calculee'"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (CommissionTransaction) TableName() string { return "commission_transactions" }

func (t *CommissionTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	if t.Status == "" {
		t.Status = enums.CommissionStatusCalculee
	}
	return nil
}
