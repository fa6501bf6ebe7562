package relay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/outbox/registry"
)

const sendTimeout = 15 * time.Second

// Sink publishes one message and blocks until the broker acknowledges it.
type Sink interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type publisherSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubSink sends through the shared pubsub client's cached publishers.
type PubSubSink struct {
	source publisherSource
}

func NewPubSubSink(source publisherSource) *PubSubSink {
	return &PubSubSink{source: source}
}

func (s *PubSubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.source.Publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, err := pub.Publish(sendCtx, msg).Get(sendCtx)
	return err
}

// message carries the raw envelope; consumers route on the attributes without
// decoding the body.
func message(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       env.EventID,
			"event_type":     string(row.EventType),
			"event_version":  strconv.Itoa(env.Version),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}
