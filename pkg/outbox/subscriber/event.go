package subscriber

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/outbox"
)

// Event is an outbox row as delivered to a consumer.
type Event struct {
	ID            uuid.UUID
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Version       int
	OccurredAt    time.Time
	Data          json.RawMessage
}

// Decode reads a message produced by the outbox relay. The envelope body wins
// over attributes; attributes fill in what older envelopes left out.
func Decode(msg *gcppubsub.Message) (Event, error) {
	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	attr := func(k string) string { return strings.TrimSpace(msg.Attributes[k]) }

	rawID := strings.TrimSpace(env.EventID)
	if rawID == "" {
		rawID = attr("event_id")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return Event{}, fmt.Errorf("event id %q: %w", rawID, err)
	}
	eventType := enums.OutboxEventType(attr("event_type"))
	if eventType == "" {
		return Event{}, errors.New("event_type attribute missing")
	}

	version := env.Version
	if version == 0 {
		version, _ = strconv.Atoi(attr("event_version"))
	}
	if version == 0 {
		version = outbox.CurrentVersion
	}
	occurredAt := env.OccurredAt
	if occurredAt.IsZero() {
		occurredAt, _ = time.Parse(time.RFC3339Nano, attr("created_at"))
	}

	return Event{
		ID:            id,
		Type:          eventType,
		AggregateType: enums.OutboxAggregateType(attr("aggregate_type")),
		AggregateID:   attr("aggregate_id"),
		Version:       version,
		OccurredAt:    occurredAt.UTC(),
		Data:          env.Data,
	}, nil
}
