package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// DistributorRegisteredEvent is emitted when a user joins the program.
type DistributorRegisteredEvent struct {
	DistributorID uuid.UUID  `json:"distributor_id"`
	UserID        uuid.UUID  `json:"user_id"`
	ReferralCode  string     `json:"referral_code"`
	ParentID      *uuid.UUID `json:"parent_id,omitempty"`
	Level         int        `json:"level"`
}

// DistributorReparentedEvent is emitted when a distributor changes sponsor.
type DistributorReparentedEvent struct {
	DistributorID    uuid.UUID  `json:"distributor_id"`
	PreviousParentID *uuid.UUID `json:"previous_parent_id,omitempty"`
	ParentID         *uuid.UUID `json:"parent_id,omitempty"`
}

// CommissionRecordedEvent carries one commission line created by propagation.
type CommissionRecordedEvent struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	DistributorID uuid.UUID         `json:"distributor_id"`
	ClientID      uuid.UUID         `json:"client_id"`
	ProductType   enums.ProductType `json:"product_type"`
	SaleAmount    decimal.Decimal   `json:"sale_amount"`
	Amount        decimal.Decimal   `json:"amount"`
	Rate          decimal.Decimal   `json:"rate"`
	Level         int               `json:"level"`
	MonthKey      string            `json:"month_key"`
}

// CommissionMonthEvent reports a status transition of a distributor's month.
type CommissionMonthEvent struct {
	DistributorID uuid.UUID              `json:"distributor_id"`
	MonthKey      string                 `json:"month_key"`
	Status        enums.CommissionStatus `json:"status"`
	Updated       int64                  `json:"updated"`
	Total         decimal.Decimal        `json:"total"`
	TransitionAt  time.Time              `json:"transition_at"`
}
