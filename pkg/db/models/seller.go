package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Seller is a CRM user able to record sales. ReferralCode is what clients
// carry as their code_vendeur.
type Seller struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DisplayName  string    `gorm:"column:display_name;not null"`
	ReferralCode string    `gorm:"column:referral_code;not null;uniqueIndex"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Seller) TableName() string { return "sellers" }

func (s *Seller) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
