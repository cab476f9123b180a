package distributors

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/internal/repo"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/pagination"
)

// Unique index names, shared with the goose migrations. SQLite reports the
// column instead, so both forms are matched.
const (
	uniqueUserIndex      = "idx_distributors_user_id"
	uniqueUserColumn     = "distributors.user_id"
	uniqueReferralIndex  = "idx_distributors_referral_code"
	uniqueReferralColumn = "distributors.referral_code"
)

// hierarchyLockKey is the transaction-scoped advisory lock taken by every
// re-parenting write.
const hierarchyLockKey int64 = 0x76656e646f01

// Repository persists distributors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Distributor, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Distributor, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Distributor, error)
	Create(ctx context.Context, distributor *models.Distributor) error
	UpdateParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
	LockHierarchy(ctx context.Context) error
	ListChildren(ctx context.Context, parentID uuid.UUID, params listChildrenParams) ([]models.Distributor, *pagination.Cursor, error)
	ListAll(ctx context.Context) ([]models.Distributor, error)
}

type repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to distributor operations.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Distributor, error) {
	var d models.Distributor
	if err := r.DB(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Distributor, error) {
	var d models.Distributor
	if err := r.DB(ctx).Where("user_id = ?", userID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) FindByReferralCode(ctx context.Context, code string) (*models.Distributor, error) {
	var d models.Distributor
	if err := r.DB(ctx).Where("referral_code = ?", code).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) Create(ctx context.Context, distributor *models.Distributor) error {
	return r.DB(ctx).Create(distributor).Error
}

func (r *repository) UpdateParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	res := r.DB(ctx).
		Model(&models.Distributor{}).
		Where("id = ?", id).
		Update("parent_id", parentID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockHierarchy serializes parent changes until the surrounding transaction
// ends. SQLite already serializes writers, so only Postgres takes the lock.
func (r *repository) LockHierarchy(ctx context.Context) error {
	conn := r.DB(ctx)
	if conn.Dialector == nil || conn.Dialector.Name() != "postgres" {
		return nil
	}
	return conn.Exec("SELECT pg_advisory_xact_lock(?)", hierarchyLockKey).Error
}

type listChildrenParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

// ListChildren returns one page of direct recruits ordered by registration,
// plus the cursor of the next page when more rows remain.
func (r *repository) ListChildren(ctx context.Context, parentID uuid.UUID, params listChildrenParams) ([]models.Distributor, *pagination.Cursor, error) {
	query := r.DB(ctx).Where("parent_id = ?", parentID)
	if c := params.Cursor; c != nil {
		query = query.Where("(created_at > ? OR (created_at = ? AND id >= ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var rows []models.Distributor
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Split(rows, params.Limit, func(d models.Distributor) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	return page, next, nil
}

// ListAll loads the whole hierarchy ordered by registration.
func (r *repository) ListAll(ctx context.Context) ([]models.Distributor, error) {
	var rows []models.Distributor
	if err := r.DB(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
