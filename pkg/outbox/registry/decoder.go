package registry

import (
	"encoding/json"
	"fmt"

	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/outbox/payloads"
)

// Decoder turns an envelope's data into a typed payload value.
type Decoder func(data json.RawMessage) (any, error)

type schema struct {
	event   enums.OutboxEventType
	version int
}

// DecoderRegistry maps an event type and envelope version to its Decoder.
// Populate it before sharing; lookups are read-only.
type DecoderRegistry struct {
	decoders map[schema]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[schema]Decoder{}}
}

func (r *DecoderRegistry) Register(event enums.OutboxEventType, version int, d Decoder) {
	r.decoders[schema{event, version}] = d
}

func (r *DecoderRegistry) Decode(event enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	d, ok := r.decoders[schema{event, version}]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s v%d", event, version)
	}
	return d(data)
}

// NewTrynbuyDecoders knows v1 of every trynbuy event. Payloads come back as
// values, not pointers.
func NewTrynbuyDecoders() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventTrynbuyCreated, 1, jsonDecoder[payloads.TrynbuyCreatedEvent])
	r.Register(enums.EventTrynbuyUpdated, 1, jsonDecoder[payloads.TrynbuyUpdatedEvent])
	r.Register(enums.EventTrynbuySettled, 1, jsonDecoder[payloads.TrynbuySettledEvent])
	return r
}

func jsonDecoder[T any](data json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
