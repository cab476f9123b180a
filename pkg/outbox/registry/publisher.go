package registry

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/db/models"
	"github.com/vendeo/vendeo-backend/pkg/enums"
	"github.com/vendeo/vendeo-backend/pkg/outbox"
	"github.com/vendeo/vendeo-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type: the aggregate it must carry, the
// topic it is published on and the decoder for its data.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	Decode        DecoderFunc
}

// ResolvedEvent is an outbox row that passed validation.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks rows that would fail identically on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

type route struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	decode    DecoderFunc
}

var (
	distributorRoutes = []route{
		{enums.EventDistributorRegistered, enums.AggregateDistributor, JSONDecoder[payloads.DistributorRegisteredEvent]()},
		{enums.EventDistributorReparented, enums.AggregateDistributor, JSONDecoder[payloads.DistributorReparentedEvent]()},
	}
	commissionRoutes = []route{
		{enums.EventCommissionRecorded, enums.AggregateCommissionTransaction, JSONDecoder[payloads.CommissionRecordedEvent]()},
		{enums.EventCommissionMonthValidated, enums.AggregateDistributor, JSONDecoder[payloads.CommissionMonthEvent]()},
		{enums.EventCommissionMonthPaid, enums.AggregateDistributor, JSONDecoder[payloads.CommissionMonthEvent]()},
	}
)

// EventRegistry is the publisher's routing table.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry binds every event type to its configured topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	commissionTopic := strings.TrimSpace(cfg.CommissionTopic)
	distributorTopic := strings.TrimSpace(cfg.DistributorTopic)
	switch {
	case commissionTopic == "":
		return nil, errors.New("commission topic is required")
	case distributorTopic == "":
		return nil, errors.New("distributor topic is required")
	}

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	reg.bind(distributorTopic, distributorRoutes)
	reg.bind(commissionTopic, commissionRoutes)
	return reg, nil
}

func (r *EventRegistry) bind(topic string, routes []route) {
	for _, rt := range routes {
		r.entries[rt.eventType] = EventDescriptor{
			EventType:     rt.eventType,
			AggregateType: rt.aggregate,
			Topic:         topic,
			Decode:        rt.decode,
		}
	}
}

// Topics lists the distinct topics the registry publishes to, sorted.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, desc := range r.entries {
		if !slices.Contains(topics, desc.Topic) {
			topics = append(topics, desc.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve validates the row and decodes its typed payload. Every failure is
// a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	envelope, err := outbox.DecodePayloadEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if bytes.Equal(bytes.TrimSpace(envelope.Data), []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload, err := desc.Decode(envelope.Data)
	if err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
