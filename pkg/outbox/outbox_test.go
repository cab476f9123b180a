package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vendeo/vendeo-backend/pkg/db/dbtest"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

func newTestOutbox(t *testing.T) (*gorm.DB, *Repository, *Service) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	return conn, repo, NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
}

func emit(t *testing.T, conn *gorm.DB, svc *Service, aggregateID uuid.UUID) {
	t.Helper()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventDistributorRegistered,
			AggregateType: enums.AggregateDistributor,
			AggregateID:   aggregateID,
			Data:          map[string]any{"referral_code": "ROOT"},
		})
	})
	require.NoError(t, err)
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn, _, svc := newTestOutbox(t)
	aggregateID := uuid.New()
	emit(t, conn, svc, aggregateID)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, aggregateID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, CurrentVersion, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
	assert.JSONEq(t, `{"referral_code":"ROOT"}`, string(envelope.Data))
}

func TestEmitIsTransactional(t *testing.T) {
	conn, _, svc := newTestOutbox(t)
	boom := errors.New("rollback")
	err := conn.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventCommissionMonthPaid,
			AggregateType: enums.AggregateDistributor,
			AggregateID:   uuid.New(),
			Data:          map[string]any{},
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidation(t *testing.T) {
	conn, _, svc := newTestOutbox(t)
	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventCommissionRecorded}))
	assert.Error(t, svc.Emit(context.Background(), conn, DomainEvent{EventType: "order_created"}))
	assert.Error(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventCommissionRecorded,
		AggregateType: "order",
	}))
}

func TestPublishLifecycle(t *testing.T) {
	conn, repo, svc := newTestOutbox(t)
	for i := 0; i < 3; i++ {
		emit(t, conn, svc, uuid.New())
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New(strings.Repeat("x", 2000))))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 3))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	assert.Len(t, *pending[0].LastError, maxLastErrorLen)

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, time.Now().UTC().Add(time.Hour), 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, rows[1].ID, remaining[0].ID)
}

func TestDLQRepository(t *testing.T) {
	conn, _, _ := newTestOutbox(t)
	dlq := NewDLQRepository(conn)
	eventID := uuid.New()
	msg := strings.Repeat("e", 3000)

	require.Error(t, dlq.InsertTx(nil, models.OutboxDLQ{}))
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventCommissionRecorded,
		AggregateType: enums.AggregateCommissionTransaction,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
		FailedAt:      time.Now().UTC(),
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	counts, err := dlq.CountByReason(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[enums.OutboxDLQErrorReason]int64{enums.OutboxDLQReasonNonRetryable: 1}, counts)
}

func TestPayloadEnvelopeRoundTrip(t *testing.T) {
	occurred := time.Date(2026, 5, 31, 23, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	envelope, err := NewPayloadEnvelope(0, occurred, map[string]any{"month_key": "2026-05"})
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, envelope.Version)
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	decoded, err := DecodePayloadEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, envelope.EventID, decoded.EventID)
	assert.True(t, occurred.Equal(decoded.OccurredAt))
	assert.JSONEq(t, `{"month_key":"2026-05"}`, string(decoded.Data))
}

func TestDecodePayloadEnvelopeRejectsBadBodies(t *testing.T) {
	_, err := DecodePayloadEnvelope([]byte("not json"))
	assert.Error(t, err)
	_, err = DecodePayloadEnvelope([]byte(`{"version":1,"eventId":"x"}`))
	assert.Error(t, err)
}
