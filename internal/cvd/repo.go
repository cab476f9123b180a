package cvd

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/internal/repo"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
)

// Repository reads the sales the CVD calculator consumes.
type Repository interface {
	ListSellerSales(ctx context.Context, sellerID uuid.UUID, from, to time.Time) ([]models.Sale, error)
	SellerExists(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

// ListSellerSales returns the seller's sales in [from, to) in chronological order.
func (r *repository) ListSellerSales(ctx context.Context, sellerID uuid.UUID, from, to time.Time) ([]models.Sale, error) {
	var sales []models.Sale
	if err := r.DB(ctx).
		Where("seller_id = ? AND sold_at >= ? AND sold_at < ?", sellerID, from, to).
		Order("sold_at ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repository) SellerExists(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).
		Model(&models.Seller{}).
		Where("id = ?", sellerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
