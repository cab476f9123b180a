package cron

import (
	"context"
	"fmt"

	"github.com/vendeo/vendeo-backend/pkg/logger"
)

// CommissionOrphanJobParams wires the orphan commission sweep.
type CommissionOrphanJobParams struct {
	Logger     *logger.Logger
	Repository orphanCommissionRepo
}

type orphanCommissionRepo interface {
	DeleteOrphans(ctx context.Context) (int64, error)
}

// NewCommissionOrphanJob removes calculee commissions whose distributor no
// longer exists. Validated and paid rows are kept for the ledger.
func NewCommissionOrphanJob(params CommissionOrphanJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	return &commissionOrphanJob{
		logg: params.Logger,
		repo: params.Repository,
	}, nil
}

type commissionOrphanJob struct {
	logg *logger.Logger
	repo orphanCommissionRepo
}

func (j *commissionOrphanJob) Name() string { return "commission-orphan-cleanup" }

func (j *commissionOrphanJob) Run(ctx context.Context) error {
	deleted, err := j.repo.DeleteOrphans(ctx)
	if err != nil {
		return fmt.Errorf("commission orphan cleanup: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", deleted)
	if deleted > 0 {
		j.logg.Warn(logCtx, "orphan commission transactions removed")
		return nil
	}
	j.logg.Info(logCtx, "commission orphan cleanup complete")
	return nil
}
