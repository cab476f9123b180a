package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

// CurrentVersion is the envelope version written by Emit when none is set.
const CurrentVersion = 1

// DomainEvent is what services hand to Emit.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Emitter queues events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

var errNoTx = errors.New("outbox emit needs the caller's transaction")

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit stores event with tx, so it is published only if tx commits.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTx
	}
	row, eventID, err := event.row()
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("queue %s: %w", event.EventType, err)
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":       eventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
	}), "outbox event queued")
	return nil
}

// row wraps the event data in a fresh envelope.
func (e DomainEvent) row() (models.OutboxEvent, string, error) {
	switch {
	case !e.EventType.IsValid():
		return models.OutboxEvent{}, "", fmt.Errorf("unknown event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return models.OutboxEvent{}, "", fmt.Errorf("unknown aggregate type %q", e.AggregateType)
	}
	envelope, err := NewPayloadEnvelope(e.Version, e.OccurredAt, e.Data)
	if err != nil {
		return models.OutboxEvent{}, "", err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, "", fmt.Errorf("marshal envelope: %w", err)
	}
	return models.OutboxEvent{
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
	}, envelope.EventID, nil
}
