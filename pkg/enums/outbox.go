package enums

import "slices"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateDistributor           OutboxAggregateType = "distributor"
	AggregateCommissionTransaction OutboxAggregateType = "commission_transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDistributor,
	AggregateCommissionTransaction,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", validAggregateTypes, value)
}

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventDistributorRegistered    OutboxEventType = "distributor_registered"
	EventDistributorReparented    OutboxEventType = "distributor_reparented"
	EventCommissionRecorded       OutboxEventType = "commission_recorded"
	EventCommissionMonthValidated OutboxEventType = "commission_month_validated"
	EventCommissionMonthPaid      OutboxEventType = "commission_month_paid"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDistributorRegistered,
	EventDistributorReparented,
	EventCommissionRecorded,
	EventCommissionMonthValidated,
	EventCommissionMonthPaid,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", validOutboxEventTypes, value)
}

// OutboxDLQErrorReason records why an event was parked instead of published.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// IsValid reports whether the value is a known DLQ reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
