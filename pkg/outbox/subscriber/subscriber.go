// Package subscriber runs outbox consumers on Pub/Sub subscriptions with
// at-most-once handling per consumer.
package subscriber

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/markit/markit-server/pkg/logger"
)

// ErrPoison marks events that can never be handled. Wrapped handler errors
// are acked instead of redelivered.
var ErrPoison = errors.New("poison event")

type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

type HandlerFunc func(ctx context.Context, evt Event) error

func (fn HandlerFunc) Handle(ctx context.Context, evt Event) error { return fn(ctx, evt) }

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type claimer interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type Params struct {
	Name         string
	Subscription receiver
	Dedupe       claimer
	Handler      Handler
	Logger       *logger.Logger
}

type Subscriber struct {
	name    string
	sub     receiver
	dedupe  claimer
	handler Handler
	logg    *logger.Logger
}

func New(p Params) (*Subscriber, error) {
	switch {
	case p.Name == "":
		return nil, errors.New("consumer name is required")
	case p.Subscription == nil:
		return nil, errors.New("subscription is required")
	case p.Dedupe == nil:
		return nil, errors.New("dedupe is required")
	case p.Handler == nil:
		return nil, errors.New("handler is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Subscriber{name: p.Name, sub: p.Subscription, dedupe: p.Dedupe, handler: p.Handler, logg: p.Logger}, nil
}

func (s *Subscriber) Name() string { return s.name }

// Run blocks until ctx is canceled or the subscription fails.
func (s *Subscriber) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether msg should be acked.
func (s *Subscriber) process(ctx context.Context, msg *gcppubsub.Message) bool {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"consumer":   s.name,
		"message_id": msg.ID,
	})

	evt, err := Decode(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping undecodable message")
		return true
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   evt.ID.String(),
		"event_type": evt.Type,
	})

	first, err := s.dedupe.Claim(ctx, s.name, evt.ID)
	if err != nil {
		s.logg.Error(ctx, "idempotency check failed", err)
		return false
	}
	if !first {
		s.logg.Info(ctx, "event already processed")
		return true
	}

	err = s.handler.Handle(ctx, evt)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrPoison):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping poison event")
		return true
	}
	s.logg.Error(ctx, "event handler failed", err)
	if relErr := s.dedupe.Release(context.WithoutCancel(ctx), s.name, evt.ID); relErr != nil {
		s.logg.Error(ctx, "failed to release idempotency claim", relErr)
	}
	return false
}
