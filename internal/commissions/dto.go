package commissions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

// PropagateInput describes one client sale to spread up the hierarchy.
type PropagateInput struct {
	ClientID    uuid.UUID
	ProductType enums.ProductType
	SaleAmount  decimal.Decimal
}

// TransactionDTO is the API view of a commission transaction.
type TransactionDTO struct {
	ID            uuid.UUID              `json:"id"`
	DistributorID uuid.UUID              `json:"distributor_id"`
	ClientID      uuid.UUID              `json:"client_id"`
	ProductType   enums.ProductType      `json:"product_type"`
	SaleAmount    decimal.Decimal        `json:"sale_amount"`
	Amount        decimal.Decimal        `json:"amount"`
	Rate          decimal.Decimal        `json:"rate"`
	Level         int                    `json:"level"`
	MonthKey      string                 `json:"month"`
	Status        enums.CommissionStatus `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
}

// StatusSummary aggregates one status bucket of a monthly statement.
type StatusSummary struct {
	Status enums.CommissionStatus `json:"status"`
	Count  int                    `json:"count"`
	Amount decimal.Decimal        `json:"amount"`
}

// MonthlyStatement lists a distributor's commissions for a month.
type MonthlyStatement struct {
	DistributorID uuid.UUID        `json:"distributor_id"`
	Month         types.MonthKey   `json:"month"`
	Transactions  []TransactionDTO `json:"transactions"`
	Summary       []StatusSummary  `json:"summary"`
	Total         decimal.Decimal  `json:"total"`
}

// TransitionResult reports how many rows a status change touched.
type TransitionResult struct {
	DistributorID uuid.UUID              `json:"distributor_id"`
	Month         types.MonthKey         `json:"month"`
	Status        enums.CommissionStatus `json:"status"`
	Updated       int64                  `json:"updated"`
}

// FromModel maps the persisted row.
func FromModel(m models.CommissionTransaction) TransactionDTO {
	return TransactionDTO{
		ID:            m.ID,
		DistributorID: m.DistributorID,
		ClientID:      m.ClientID,
		ProductType:   m.ProductType,
		SaleAmount:    m.SaleAmount,
		Amount:        m.Amount,
		Rate:          m.Rate,
		Level:         m.Level,
		MonthKey:      m.MonthKey,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
	}
}

func summarize(rows []models.CommissionTransaction) ([]StatusSummary, decimal.Decimal) {
	buckets := make(map[enums.CommissionStatus]*StatusSummary)
	total := decimal.Zero
	for _, row := range rows {
		bucket, ok := buckets[row.Status]
		if !ok {
			bucket = &StatusSummary{Status: row.Status, Amount: decimal.Zero}
			buckets[row.Status] = bucket
		}
		bucket.Count++
		bucket.Amount = bucket.Amount.Add(row.Amount)
		total = total.Add(row.Amount)
	}
	out := make([]StatusSummary, 0, len(buckets))
	for _, status := range []enums.CommissionStatus{
		enums.CommissionStatusCalculee,
		enums.CommissionStatusValidee,
		enums.CommissionStatusPayee,
	} {
		if bucket, ok := buckets[status]; ok {
			out = append(out, *bucket)
		}
	}
	return out, total
}
