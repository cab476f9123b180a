package distributors

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/pkg/db/models"
)

// RegisterInput enrolls a user in the MLM program.
type RegisterInput struct {
	UserID             uuid.UUID
	ReferralCode       string
	ParentReferralCode *string
}

// ListParams carries cursor pagination inputs.
type ListParams struct {
	Limit  int
	Cursor string
}

// ChildrenPage is one page of direct recruits. Cursor is empty on the last page.
type ChildrenPage struct {
	Items  []DistributorDTO `json:"items"`
	Cursor string           `json:"cursor"`
}

// DistributorDTO is the API view of a distributor. Depth is set on traversal results.
type DistributorDTO struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	ReferralCode   string          `json:"referral_code"`
	ParentID       *uuid.UUID      `json:"parent_id,omitempty"`
	Level          int             `json:"level"`
	Active         bool            `json:"active"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	CreatedAt      time.Time       `json:"created_at"`
	Depth          int             `json:"depth,omitempty"`
}

// FromModel maps the persisted row.
func FromModel(d models.Distributor) DistributorDTO {
	return DistributorDTO{
		ID:             d.ID,
		UserID:         d.UserID,
		ReferralCode:   d.ReferralCode,
		ParentID:       d.ParentID,
		Level:          d.Level,
		Active:         d.Active,
		CommissionRate: d.CommissionRate,
		CreatedAt:      d.CreatedAt,
	}
}

func fromRanked(rows []Ranked) []DistributorDTO {
	out := make([]DistributorDTO, 0, len(rows))
	for _, row := range rows {
		dto := FromModel(row.Distributor)
		dto.Depth = row.Depth
		out = append(out, dto)
	}
	return out
}

func fromModels(rows []models.Distributor) []DistributorDTO {
	out := make([]DistributorDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
