package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendeo/vendeo-backend/internal/analytics/types"
	"github.com/vendeo/vendeo-backend/internal/analytics/writer"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/payloads"
	"github.com/vendeo/vendeo-backend/pkg/outbox/registry"
)

var (
	// ErrUnsupportedEventType marks events the router has no row mapping for.
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrInvalidPayload marks payloads that can never be decoded.
	ErrInvalidPayload = errors.New("invalid analytics payload")
)

// Writer delivers BigQuery rows.
type Writer interface {
	InsertCommission(ctx context.Context, row types.CommissionEventRow) error
	InsertDistributor(ctx context.Context, row types.DistributorEventRow) error
}

// Router decodes envelopes by event type and version and writes one row per event.
type Router struct {
	decoders *registry.DecoderRegistry
	writer   Writer
	logg     *logger.Logger
}

// NewRouter registers the decoders for every event the pipeline publishes.
func NewRouter(w Writer, logg *logger.Logger) (*Router, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventDistributorRegistered, outbox.CurrentVersion, registry.JSONDecoder[payloads.DistributorRegisteredEvent]())
	decoders.Register(enums.EventDistributorReparented, outbox.CurrentVersion, registry.JSONDecoder[payloads.DistributorReparentedEvent]())
	decoders.Register(enums.EventCommissionRecorded, outbox.CurrentVersion, registry.JSONDecoder[payloads.CommissionRecordedEvent]())
	decoders.Register(enums.EventCommissionMonthValidated, outbox.CurrentVersion, registry.JSONDecoder[payloads.CommissionMonthEvent]())
	decoders.Register(enums.EventCommissionMonthPaid, outbox.CurrentVersion, registry.JSONDecoder[payloads.CommissionMonthEvent]())

	return &Router{decoders: decoders, writer: w, logg: logg}, nil
}

// Handle maps the envelope to its analytics row. An envelope without a
// version is read as the current one.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	version := envelope.Version
	if version == 0 {
		version = outbox.CurrentVersion
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("%w: empty payload for %s", ErrInvalidPayload, envelope.EventType)
	}

	decoded, err := r.decoders.Decode(envelope.EventType, version, envelope.Payload)
	if err != nil {
		if errors.Is(err, registry.ErrDecoderNotRegistered) {
			return fmt.Errorf("%w: %s@v%d", ErrUnsupportedEventType, envelope.EventType, version)
		}
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidPayload, envelope.EventType, err)
	}

	payload, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if err := r.write(ctx, envelope, decoded, payload); err != nil {
		return err
	}
	r.logg.Debug(r.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": envelope.EventType,
	}), "analytics row written")
	return nil
}

func (r *Router) write(ctx context.Context, envelope types.Envelope, decoded any, payload cbigquery.NullJSON) error {
	switch event := decoded.(type) {
	case *payloads.DistributorRegisteredEvent:
		return r.writer.InsertDistributor(ctx, types.DistributorEventRow{
			EventID:       envelope.EventID,
			EventType:     string(envelope.EventType),
			OccurredAt:    envelope.OccurredAt,
			DistributorID: event.DistributorID.String(),
			UserID:        uuidPtr(&event.UserID),
			ReferralCode:  stringPtr(event.ReferralCode),
			ParentID:      uuidPtr(event.ParentID),
			Level:         int64Ptr(int64(event.Level)),
			Payload:       payload,
		})
	case *payloads.DistributorReparentedEvent:
		return r.writer.InsertDistributor(ctx, types.DistributorEventRow{
			EventID:          envelope.EventID,
			EventType:        string(envelope.EventType),
			OccurredAt:       envelope.OccurredAt,
			DistributorID:    event.DistributorID.String(),
			ParentID:         uuidPtr(event.ParentID),
			PreviousParentID: uuidPtr(event.PreviousParentID),
			Payload:          payload,
		})
	case *payloads.CommissionRecordedEvent:
		return r.writer.InsertCommission(ctx, types.CommissionEventRow{
			EventID:       envelope.EventID,
			EventType:     string(envelope.EventType),
			OccurredAt:    envelope.OccurredAt,
			DistributorID: event.DistributorID.String(),
			MonthKey:      event.MonthKey,
			TransactionID: uuidPtr(&event.TransactionID),
			ClientID:      uuidPtr(&event.ClientID),
			ProductType:   stringPtr(event.ProductType.String()),
			Level:         int64Ptr(int64(event.Level)),
			SaleAmount:    ratPtr(event.SaleAmount),
			Amount:        ratPtr(event.Amount),
			Rate:          ratPtr(event.Rate),
			Payload:       payload,
		})
	case *payloads.CommissionMonthEvent:
		return r.writer.InsertCommission(ctx, types.CommissionEventRow{
			EventID:       envelope.EventID,
			EventType:     string(envelope.EventType),
			OccurredAt:    envelope.OccurredAt,
			DistributorID: event.DistributorID.String(),
			MonthKey:      event.MonthKey,
			Amount:        ratPtr(event.Total),
			Status:        stringPtr(event.Status.String()),
			Updated:       int64Ptr(event.Updated),
			Payload:       payload,
		})
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
}

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func uuidPtr(id *uuid.UUID) *string {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	s := id.String()
	return &s
}

func int64Ptr(value int64) *int64 {
	return &value
}

// ratPtr keeps the exact decimal for NUMERIC columns.
func ratPtr(d decimal.Decimal) *big.Rat {
	return d.Rat()
}
