package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/metrics"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/payloads"
	"github.com/vendeo/vendeo-backend/pkg/outbox/registry"
)

const (
	commissionTopic  = "vd-commission-events"
	distributorTopic = "vd-distributor-events"
)

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		recordedEvent(t, 0),
		recordedEvent(t, 0),
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, dlq, config.OutboxConfig{}, func(string) publisher { return pub })

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
	assert.Empty(t, dlq.entries)
}

func TestProcessBatchDeadLettersUnknownEvents(t *testing.T) {
	event := recordedEvent(t, 0)
	event.EventType = enums.OutboxEventType("order_created")
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, dlq, config.OutboxConfig{}, func(string) publisher {
		t.Fatal("unknown events must not be published")
		return nil
	})

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.JSONEq(t, string(event.Payload), string(entry.Payload))
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := recordedEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, dlq, config.OutboxConfig{MaxAttempts: 2}, func(string) publisher { return pub })

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	require.NotNil(t, dlq.entries[0].ErrorMessage)
	assert.Contains(t, *dlq.entries[0].ErrorMessage, "unavailable")
	assert.Empty(t, repo.failed)
}

func TestProcessBatchMissingPublisherIsTerminal(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{recordedEvent(t, 0)}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, dlq, config.OutboxConfig{}, func(string) publisher { return nil })

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestPublishRoutesByEventFamily(t *testing.T) {
	distributorID := uuid.New()
	registered := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventDistributorRegistered,
		AggregateType: enums.AggregateDistributor,
		AggregateID:   distributorID,
		Payload: envelopeFor(t, payloads.DistributorRegisteredEvent{
			DistributorID: distributorID,
			UserID:        uuid.New(),
			ReferralCode:  "ROOT",
			Level:         1,
		}),
		CreatedAt: time.Date(2026, 5, 14, 10, 0, 0, 0, time.UTC),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{registered, recordedEvent(t, 0), recordedEvent(t, 0)}}

	created := map[string]int{}
	pubs := map[string]*fakePublisher{}
	service := newTestService(t, repo, &fakeDLQRepo{}, config.OutboxConfig{}, func(topic string) publisher {
		created[topic]++
		pubs[topic] = &fakePublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{}}}
		return pubs[topic]
	})

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, repo.published, 3)
	assert.Equal(t, map[string]int{distributorTopic: 1, commissionTopic: 1}, created, "publishers are reused per topic")

	require.Len(t, pubs[distributorTopic].sent, 1)
	require.Len(t, pubs[commissionTopic].sent, 2)

	msg := pubs[distributorTopic].sent[0]
	assert.Equal(t, string(enums.EventDistributorRegistered), msg.Attributes["event_type"])
	assert.Equal(t, distributorID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, "2026-05-14T10:00:00Z", msg.Attributes["created_at"])
	assert.NotEmpty(t, msg.Attributes["event_id"])
	assert.JSONEq(t, string(registered.Payload), string(msg.Data))
}

func TestProcessBatchRecordsSettledMetrics(t *testing.T) {
	unknown := recordedEvent(t, 0)
	unknown.EventType = enums.OutboxEventType("order_created")
	repo := &fakeRepo{events: []models.OutboxEvent{recordedEvent(t, 0), unknown}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, &fakeDLQRepo{}, config.OutboxConfig{}, func(string) publisher { return pub })
	reg := prometheus.NewRegistry()
	service.metrics = metrics.NewEventingMetrics(reg)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	settled := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "outbox_events_settled_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" {
					settled[label.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"published": 1, "dead_lettered": 1}, settled)
}

func TestTopicPublishersRetryMisses(t *testing.T) {
	calls := 0
	topics := newTopicPublishers(func(string) publisher {
		calls++
		if calls == 1 {
			return nil
		}
		return &fakePublisher{}
	})
	assert.Nil(t, topics.get(commissionTopic))
	assert.NotNil(t, topics.get(commissionTopic))
	assert.NotNil(t, topics.get(commissionTopic))
	assert.Equal(t, 2, calls)

	topics.stop()
	assert.Empty(t, topics.byTopic)
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)

	service := newTestService(t, &fakeRepo{}, &fakeDLQRepo{}, config.OutboxConfig{}, nil)
	assert.Equal(t, defaultBatchSize, service.batchSize)
	assert.Equal(t, defaultMaxAttempts, service.maxAttempts)
	assert.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, service.pollInterval)
}

func TestNextBackoff(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))
	assert.Equal(t, 4*time.Second, nextBackoff(2*time.Second, base, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakeDLQRepo{}, config.OutboxConfig{PollIntervalMS: 10}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, service.Run(ctx), context.DeadlineExceeded)
}

func newTestService(t *testing.T, repo outboxRepository, dlq dlqRepository, outboxCfg config.OutboxConfig, factory publisherFactory) *Service {
	t.Helper()
	pubsubCfg := config.PubSubConfig{CommissionTopic: commissionTopic, DistributorTopic: distributorTopic}
	eventRegistry, err := registry.NewEventRegistry(pubsubCfg)
	require.NoError(t, err)

	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg, PubSub: pubsubCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         eventRegistry,
		DLQRepository:    dlq,
		PublisherFactory: factory,
	})
	require.NoError(t, err)
	return service
}

func recordedEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	txID := uuid.New()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventCommissionRecorded,
		AggregateType: enums.AggregateCommissionTransaction,
		AggregateID:   txID,
		Payload: envelopeFor(t, payloads.CommissionRecordedEvent{
			TransactionID: txID,
			DistributorID: uuid.New(),
			ClientID:      uuid.New(),
			ProductType:   enums.ProductTypeFreeboxPop,
			Level:         1,
			MonthKey:      "2026-05",
		}),
		AttemptCount: attempts,
		CreatedAt:    time.Now().UTC(),
	}
}

func envelopeFor(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return payload
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
