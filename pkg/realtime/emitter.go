package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Event names consumed by the socket gateway.
const (
	EventCheckoutSuccess = "checkout:success"
	EventTrynbuySettled  = "trynbuy:settled"
	EventTrynbuyUpdate   = "trynbuyUpdate"
)

// DefaultChannel is the redis channel the socket gateway subscribes to.
const DefaultChannel = "markit:realtime"

type publisher interface {
	Publish(ctx context.Context, channel string, message []byte) (int64, error)
}

// Message is what the gateway relays into a socket room.
type Message struct {
	Room    string `json:"room"`
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Emitter pushes room-scoped events onto the realtime bus.
type Emitter struct {
	pub     publisher
	channel string
}

func NewEmitter(pub publisher, channel string) (*Emitter, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if strings.TrimSpace(channel) == "" {
		channel = DefaultChannel
	}
	return &Emitter{pub: pub, channel: channel}, nil
}

// Emit serializes payload and publishes it to room. Zero receivers is not an error.
func (e *Emitter) Emit(ctx context.Context, room, event string, payload any) error {
	if room == "" || event == "" {
		return errors.New("room and event are required")
	}
	body, err := json.Marshal(Message{Room: room, Event: event, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode realtime message: %w", err)
	}
	if _, err := e.pub.Publish(ctx, e.channel, body); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, room, err)
	}
	return nil
}

func CompanyRoom(id uuid.UUID) string { return "company:" + id.String() }

func ClientRoom(id uuid.UUID) string { return "client:" + id.String() }
