package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events and
// published as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NewPayloadEnvelope marshals data under a fresh event id. A zero version
// becomes CurrentVersion and a zero occurredAt becomes now.
func NewPayloadEnvelope(version int, occurredAt time.Time, data any) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal event data: %w", err)
	}
	if version <= 0 {
		version = CurrentVersion
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Data:       raw,
	}, nil
}

// DecodePayloadEnvelope parses a stored or published body. EventID and
// OccurredAt may be empty; consumers fall back to message attributes.
func DecodePayloadEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode payload envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return PayloadEnvelope{}, errors.New("payload envelope has no data")
	}
	return envelope, nil
}
