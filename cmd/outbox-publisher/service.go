package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	// publishTimeout bounds the wait for every message of one batch.
	publishTimeout = 15 * time.Second
	maxBackoff     = 10 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type outcome string

const (
	outcomePublished    outcome = "published"
	outcomeRetry        outcome = "retry"
	outcomeDeadLettered outcome = "dead_lettered"
)

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	Metrics          *metrics.EventingMetrics
	PublisherFactory publisherFactory
	Clock            func() time.Time
}

// Service relays committed outbox rows to their Pub/Sub topics. Each batch
// claims rows with SKIP LOCKED, publishes them all, then records every result
// before the claim transaction commits.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     registryResolver
	dlq          dlqRepository
	metrics      *metrics.EventingMetrics
	topics       *topicPublishers
	clock        func() time.Time
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	for _, dep := range []struct {
		missing bool
		name    string
	}{
		{params.Config == nil, "config"},
		{params.Logger == nil, "logger"},
		{params.DB == nil, "database client"},
		{params.PubSub == nil, "pubsub client"},
		{params.Repository == nil, "outbox repository"},
		{params.Registry == nil, "event registry"},
		{params.DLQRepository == nil, "dlq repository"},
	} {
		if dep.missing {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = gcpPublisherFactory(params.PubSub)
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		topics:       newTopicPublishers(factory),
		clock:        clock,
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is canceled. A non-empty batch is followed immediately
// by the next one, an empty batch waits one poll interval and a failing batch
// backs off exponentially.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	defer s.topics.stop()

	wait := time.Duration(0)
	for {
		if err := sleep(ctx, wait); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}
		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = withJitter(nextBackoff(wait, s.pollInterval, maxBackoff))
		case processed == 0:
			wait = withJitter(s.pollInterval)
		default:
			wait = 0
		}
	}
}

// inflight is one claimed row and the state of its publish.
type inflight struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	// err is set instead of result when the row could not be dispatched.
	err error
}

func (s *Service) processBatch(ctx context.Context) (int, error) {
	start := s.clock()
	tally := map[outcome]int{}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		for _, item := range s.dispatch(publishCtx, events) {
			result, err := s.settle(publishCtx, tx, item)
			if err != nil {
				return err
			}
			tally[result]++
			s.metrics.IncSettled(string(result), string(item.event.EventType))
		}
		return nil
	})
	processed := tally[outcomePublished] + tally[outcomeRetry] + tally[outcomeDeadLettered]
	if err == nil && processed > 0 {
		s.metrics.ObserveBatch(s.clock().Sub(start))
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"published":     tally[outcomePublished],
			"retry":         tally[outcomeRetry],
			"dead_lettered": tally[outcomeDeadLettered],
		}), "outbox batch settled")
	}
	return processed, err
}

// dispatch hands every resolvable row to its topic publisher without waiting,
// so the client can batch the sends.
func (s *Service) dispatch(ctx context.Context, events []models.OutboxEvent) []inflight {
	batch := make([]inflight, len(events))
	for i, event := range events {
		batch[i].event = event
		resolved, err := s.registry.Resolve(event)
		if err != nil {
			batch[i].err = err
			continue
		}
		batch[i].resolved = resolved

		topic := resolved.Descriptor.Topic
		pub := s.topics.get(topic)
		if pub == nil {
			batch[i].err = registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
			continue
		}
		if batch[i].result = pub.Publish(ctx, messageFor(event, resolved.Envelope)); batch[i].result == nil {
			batch[i].err = registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
		}
	}
	return batch
}

// settle waits for one publish and records it. A returned error means the
// bookkeeping itself failed and the whole batch rolls back.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, item inflight) (outcome, error) {
	err := item.err
	if err == nil {
		_, err = item.result.Get(ctx)
	}
	fields := eventFields(item.event, item.resolved)

	var terminal registry.NonRetryableError
	switch {
	case err == nil:
		if err := s.repo.MarkPublishedTx(tx, item.event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", item.event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil

	case errors.As(err, &terminal):
		return outcomeDeadLettered, s.deadLetter(ctx, tx, item.event, enums.OutboxDLQReasonNonRetryable, err, fields)

	case item.event.AttemptCount+1 >= s.maxAttempts:
		fields["attempt_count"] = item.event.AttemptCount + 1
		return outcomeDeadLettered, s.deadLetter(ctx, tx, item.event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", err), fields)
	}

	fields["attempt_count"] = item.event.AttemptCount + 1
	fields["error"] = err.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, item.event.ID, err); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", item.event.ID, err)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row to outbox_dlq and retires it from the queue.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event moved to dlq")

	message := cause.Error()
	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.clock().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

// messageFor publishes the stored envelope untouched. Consumers route on the
// attributes and dedupe on event_id.
func messageFor(event models.OutboxEvent, envelope outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	if resolved == nil {
		return fields
	}
	fields["topic"] = resolved.Descriptor.Topic
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	return fields
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current < base {
		current = base
	}
	return min(current*2, limit)
}
