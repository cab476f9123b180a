package qualification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/internal/cvd"
	"github.com/vendeo/vendeo-backend/internal/repo"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// Repository aggregates the sales that feed qualification metrics.
type Repository interface {
	SalesTotals(ctx context.Context, sellerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID]SalesTotals, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to qualification reads.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

type salesAggregate struct {
	SellerID    uuid.UUID
	ProductType enums.ProductType
	Sales       int
	Revenue     decimal.Decimal
}

// SalesTotals sums points and revenue per seller over [from, to).
func (r *repository) SalesTotals(ctx context.Context, sellerIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID]SalesTotals, error) {
	out := make(map[uuid.UUID]SalesTotals, len(sellerIDs))
	if len(sellerIDs) == 0 {
		return out, nil
	}

	var rows []salesAggregate
	if err := r.DB(ctx).
		Model(&models.Sale{}).
		Select("seller_id, product_type, COUNT(*) AS sales, COALESCE(SUM(amount), 0) AS revenue").
		Where("seller_id IN ? AND sold_at >= ? AND sold_at < ?", sellerIDs, from, to).
		Group("seller_id, product_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		totals := out[row.SellerID]
		totals.Points += cvd.PointsFor(row.ProductType) * row.Sales
		totals.Revenue = totals.Revenue.Add(row.Revenue)
		out[row.SellerID] = totals
	}
	return out, nil
}
