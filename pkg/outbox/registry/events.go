package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/outbox"
)

// EventDescriptor routes one event type. Fanout topics receive the same
// message after Topic.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	Fanout        []string
}

// Topics lists Topic first, then each distinct non-empty fanout topic.
func (d EventDescriptor) Topics() []string {
	out := []string{d.Topic}
	for _, t := range d.Fanout {
		if t != "" && t != d.Topic {
			out = append(out, t)
		}
	}
	return out
}

// ResolvedEvent is an outbox row that passed validation, with its payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a failure that retrying the same row cannot fix.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// EventRegistry validates outbox rows and decides where they are published.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NewEventRegistry routes every trynbuy event to the orders topic. Settled
// events also fan out to the analytics topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.AnalyticsTopic == "":
		return nil, errors.New("analytics topic is required")
	}

	trynbuy := func(t enums.OutboxEventType, fanout ...string) EventDescriptor {
		return EventDescriptor{EventType: t, AggregateType: enums.AggregateTrynbuy, Topic: cfg.OrdersTopic, Fanout: fanout}
	}
	r := &EventRegistry{routes: map[enums.OutboxEventType]EventDescriptor{}, decoders: NewTrynbuyDecoders()}
	for _, d := range []EventDescriptor{
		trynbuy(enums.EventTrynbuyCreated),
		trynbuy(enums.EventTrynbuyUpdated),
		trynbuy(enums.EventTrynbuySettled, cfg.AnalyticsTopic),
	} {
		r.routes[d.EventType] = d
	}
	return r, nil
}

// Resolve checks the row against its descriptor and decodes the envelope
// payload with the decoder registered for the envelope version. Every
// failure is a NonRetryableError.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case desc.AggregateType != row.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("payload missing for %s", row.EventType)
	}

	version := env.Version
	if version == 0 {
		version = outbox.CurrentVersion
	}
	payload, err := r.decoders.Decode(row.EventType, version, env.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
