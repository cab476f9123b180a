package types

import (
	"encoding/json"
	"time"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// Envelope is an outbox event as received from Pub/Sub, with routing
// attributes lifted out of the message.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	Version       int                       `json:"version"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
