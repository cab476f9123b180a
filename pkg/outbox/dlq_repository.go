package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository stores events the publisher parked in outbox_dlq.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx parks entry in the same transaction that marks the outbox row terminal.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		clipped := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &clipped
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil when the event was never parked.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountByReason reports the parked backlog per failure reason. Reasons with
// no rows are absent from the map.
func (r *DLQRepository) CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	var rows []struct {
		ErrorReason enums.OutboxDLQErrorReason
		Total       int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("error_reason, COUNT(*) AS total").
		Group("error_reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.OutboxDLQErrorReason]int64, len(rows))
	for _, row := range rows {
		counts[row.ErrorReason] = row.Total
	}
	return counts, nil
}
