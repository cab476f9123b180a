package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/vendeo/vendeo-backend/pkg/enums"
)

// ErrDecoderNotRegistered is returned by Decode for unknown type/version pairs.
var ErrDecoderNotRegistered = errors.New("decoder not registered")

// DecoderFunc turns an envelope's data into a typed payload.
type DecoderFunc func(payload json.RawMessage) (any, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry stores versioned payload decoders for consumers.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]DecoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]DecoderFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder DecoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrDecoderNotRegistered, eventType, version)
	}
	return decoder(payload)
}

// JSONDecoder decodes into a new T and returns *T.
func JSONDecoder[T any]() DecoderFunc {
	return func(payload json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(payload, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
}
