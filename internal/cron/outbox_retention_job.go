package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	outboxMinAttempts   = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OutboxRetentionJobParams wires the outbox cleanup.
type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	// Retention is in days.
	Retention int
	// MinAttempts marks unpublished rows as given up once they reach it. Keep
	// it aligned with the publisher's max attempts.
	MinAttempts int
	// DLQ is optional; when set the parked backlog is reported after cleanup.
	DLQ   dlqBacklog
	Clock func() time.Time
}

type dlqBacklog interface {
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob deletes outbox rows older than the retention window
// that were published or exhausted their attempts. Dead-lettered copies stay
// in outbox_dlq.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		dlq:         params.DLQ,
		retention:   retention,
		minAttempts: minAttempts,
		now:         clock,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRetentionRepo
	dlq         dlqBacklog
	retention   int
	minAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"min_attempts":   j.minAttempts,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	j.reportBacklog(logCtx)
	return nil
}

// reportBacklog never fails the job; the cleanup already committed.
func (j *outboxRetentionJob) reportBacklog(ctx context.Context) {
	if j.dlq == nil {
		return
	}
	counts, err := j.dlq.CountByReason(ctx)
	if err != nil {
		j.logg.Error(ctx, "count dead-lettered outbox events", err)
		return
	}
	var total int64
	fields := map[string]any{}
	for reason, n := range counts {
		fields["dlq_"+string(reason)] = n
		total += n
	}
	if total == 0 {
		return
	}
	fields["dlq_total"] = total
	j.logg.Warn(j.logg.WithFields(ctx, fields), "dead-lettered outbox events awaiting replay")
}
