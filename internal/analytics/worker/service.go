package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/vendeo/vendeo-backend/internal/analytics/router"
	"github.com/vendeo/vendeo-backend/internal/analytics/types"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
)

// consumerName scopes idempotency markers; both subscriptions share it
// because an event id is unique across topics.
const consumerName = "analytics"

// Handler turns one decoded envelope into analytics rows.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, envelope)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// verdict is what happens to a message once process returns. Only
// verdictNack asks Pub/Sub for redelivery.
type verdict string

const (
	verdictAck       verdict = "ack"
	verdictNack      verdict = "nack"
	verdictDuplicate verdict = "duplicate"
	verdictDropped   verdict = "dropped"
)

// Service consumes one analytics subscription.
type Service struct {
	name         string
	subscription receiver
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
	metrics      *metrics.EventingMetrics
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics counts every message verdict.
func WithMetrics(m *metrics.EventingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a worker for one subscription. name labels logs and metrics.
func NewService(name string, subscription receiver, handler Handler, manager idempotencyChecker, logg *logger.Logger, opts ...Option) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case manager == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	s := &Service{
		name:         strings.TrimSpace(name),
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run receives until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "subscription", s.name)
	s.logg.Info(ctx, "analytics subscription receiving")
	return s.subscription.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		v := s.process(msgCtx, msg)
		s.metrics.IncConsumed(s.name, string(v))
		if v == verdictNack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process never returns an error: malformed or unsupported events are
// dropped, and only failures a redelivery could fix are nacked.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, eventID, err := decode(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "invalid analytics envelope")
		return verdictDropped
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	seen, err := s.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		s.logg.Error(ctx, "idempotency check failed", err)
		return verdictNack
	}
	if seen {
		s.logg.Info(ctx, "event already processed")
		return verdictDuplicate
	}

	err = s.handler.Handle(ctx, *envelope)
	switch {
	case err == nil:
		s.logg.Info(ctx, "analytics event handled")
		return verdictAck
	case errors.Is(err, router.ErrUnsupportedEventType), errors.Is(err, router.ErrInvalidPayload):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics event dropped")
		return verdictDropped
	}

	s.logg.Error(ctx, "handler error", err)
	if delErr := s.manager.Delete(ctx, consumerName, eventID); delErr != nil {
		s.logg.Error(ctx, "idempotency release failed", delErr)
	}
	return verdictNack
}

func decode(msg *gcppubsub.Message) (*types.Envelope, uuid.UUID, error) {
	envelope, err := buildEnvelope(msg)
	if err != nil {
		return nil, uuid.Nil, err
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("event_id %q: %w", envelope.EventID, err)
	}
	return envelope, eventID, nil
}

// buildEnvelope combines the published body with the routing attributes.
// event_id and created_at attributes back-fill a body that lacks them.
func buildEnvelope(msg *gcppubsub.Message) (*types.Envelope, error) {
	stored, err := outbox.DecodePayloadEnvelope(msg.Data)
	if err != nil {
		return nil, err
	}
	attr := func(key string) string { return strings.TrimSpace(msg.Attributes[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attr("event_id")
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		occurredAt, _ = time.Parse(time.RFC3339Nano, attr("created_at"))
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       stored.Version,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}
