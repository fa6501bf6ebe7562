package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/outbox/registry"
	"github.com/markit/markit-server/pkg/outbox/subscriber"
)

// ConsumerName scopes the dedupe keys of the notifications subscription.
const ConsumerName = "notifications"

type decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, eventType enums.OutboxEventType, payload any) error
}

// Handler decodes relayed trynbuy events and hands them to the dispatcher.
type Handler struct {
	decoders   decoder
	dispatcher dispatcher
}

func NewHandler(d dispatcher) (*Handler, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	return &Handler{decoders: registry.NewTrynbuyDecoders(), dispatcher: d}, nil
}

func (h *Handler) Handle(ctx context.Context, evt subscriber.Event) error {
	payload, err := h.decoders.Decode(evt.Type, evt.Version, evt.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", subscriber.ErrPoison, err)
	}
	return h.dispatcher.Dispatch(ctx, evt.Type, payload)
}
