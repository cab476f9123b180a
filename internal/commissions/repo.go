package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/internal/repo"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/types"
)

// Repository persists commission rules and transactions and resolves the
// client to distributor link a propagation starts from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindSellerByReferralCode(ctx context.Context, code string) (*models.Seller, error)
	FindDistributorByUserID(ctx context.Context, userID uuid.UUID) (*models.Distributor, error)
	FindDistributorByID(ctx context.Context, id uuid.UUID) (*models.Distributor, error)
	ActiveRules(ctx context.Context, product enums.ProductType) (map[int]models.CommissionRule, error)
	CreateTransactions(ctx context.Context, rows []models.CommissionTransaction) error
	TransitionStatus(ctx context.Context, distributorID uuid.UUID, month types.MonthKey, from, to enums.CommissionStatus) (int64, error)
	ListMonthly(ctx context.Context, distributorID uuid.UUID, month types.MonthKey) ([]models.CommissionTransaction, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type repository struct {
	repo.Base
	now func() time.Time
}

// NewRepository binds a GORM DB to commission operations.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db), now: time.Now}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx), now: r.now}
}

func (r *repository) FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.DB(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repository) FindSellerByReferralCode(ctx context.Context, code string) (*models.Seller, error) {
	var seller models.Seller
	if err := r.DB(ctx).Where("referral_code = ?", code).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *repository) FindDistributorByUserID(ctx context.Context, userID uuid.UUID) (*models.Distributor, error) {
	var d models.Distributor
	if err := r.DB(ctx).Where("user_id = ?", userID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) FindDistributorByID(ctx context.Context, id uuid.UUID) (*models.Distributor, error) {
	var d models.Distributor
	if err := r.DB(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ActiveRules returns the active rules for product keyed by tree level.
func (r *repository) ActiveRules(ctx context.Context, product enums.ProductType) (map[int]models.CommissionRule, error) {
	var rules []models.CommissionRule
	if err := r.DB(ctx).
		Where("product_type = ? AND actif = ?", product, true).
		Find(&rules).Error; err != nil {
		return nil, err
	}
	out := make(map[int]models.CommissionRule, len(rules))
	for _, rule := range rules {
		out[rule.Level] = rule
	}
	return out, nil
}

func (r *repository) CreateTransactions(ctx context.Context, rows []models.CommissionTransaction) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&rows).Error
}

// TransitionStatus moves the (distributor, month) rows currently in from to to.
// Rows in any other state are untouched, so repeated calls affect nothing.
func (r *repository) TransitionStatus(ctx context.Context, distributorID uuid.UUID, month types.MonthKey, from, to enums.CommissionStatus) (int64, error) {
	res := r.DB(ctx).
		Model(&models.CommissionTransaction{}).
		Where("distributor_id = ? AND mois = ? AND statut = ?", distributorID, month.String(), from).
		Updates(map[string]any{
			"statut":     to,
			"updated_at": r.now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListMonthly(ctx context.Context, distributorID uuid.UUID, month types.MonthKey) ([]models.CommissionTransaction, error) {
	var rows []models.CommissionTransaction
	if err := r.DB(ctx).
		Where("distributor_id = ? AND mois = ?", distributorID, month.String()).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteOrphans removes unvalidated transactions whose distributor is gone.
func (r *repository) DeleteOrphans(ctx context.Context) (int64, error) {
	res := r.DB(ctx).
		Where("statut = ?", enums.CommissionStatusCalculee).
		Where("NOT EXISTS (SELECT 1 FROM distributors d WHERE d.id = commission_transactions.distributor_id)").
		Delete(&models.CommissionTransaction{})
	return res.RowsAffected, res.Error
}
