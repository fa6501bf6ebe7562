package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/fcm"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/outbox/payloads"
	"github.com/markit/markit-server/pkg/realtime"
)

const (
	newOrderTitle = "New Trynbuy Order"
	orderRoute    = "/order/trynbuy"
	pushFanout    = 8
)

type emitter interface {
	Emit(ctx context.Context, room, event string, payload any) error
}

type tokenLookup interface {
	AdminTokens(ctx context.Context, companyID uuid.UUID) ([]string, error)
}

// Dispatcher turns decoded trynbuy events into realtime emits and pushes.
// Only token lookup failures are returned; everything else is logged.
type Dispatcher struct {
	emitter emitter
	tokens  tokenLookup
	push    fcm.Sender
	logg    *logger.Logger
}

// NewDispatcher wires the fan-out targets. A nil push sender disables push.
func NewDispatcher(em emitter, tokens tokenLookup, push fcm.Sender, logg *logger.Logger) (*Dispatcher, error) {
	if em == nil {
		return nil, fmt.Errorf("realtime emitter required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{emitter: em, tokens: tokens, push: push, logg: logg}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, eventType enums.OutboxEventType, payload any) error {
	switch p := payload.(type) {
	case payloads.TrynbuyCreatedEvent:
		return d.orderCreated(ctx, p)
	case payloads.TrynbuySettledEvent:
		d.orderSettled(ctx, p)
	case payloads.TrynbuyUpdatedEvent:
		d.orderUpdated(ctx, p)
	default:
		d.logg.Warn(d.logg.WithField(ctx, "event_type", eventType), "no notification handler for event")
	}
	return nil
}

func (d *Dispatcher) orderCreated(ctx context.Context, p payloads.TrynbuyCreatedEvent) error {
	ctx = d.logg.WithTrynbuyID(d.logg.WithCompanyID(ctx, p.CompanyID.String()), p.TrynbuyID.String())

	d.emit(ctx, realtime.CompanyRoom(p.CompanyID), realtime.EventCheckoutSuccess, map[string]any{
		"trynbuyId":   p.TrynbuyID,
		"companyId":   p.CompanyID,
		"clientId":    p.ClientID,
		"orderStatus": p.OrderStatus,
	})

	if d.push == nil {
		return nil
	}
	tokens, err := d.tokens.AdminTokens(ctx, p.CompanyID)
	if err != nil {
		return fmt.Errorf("lookup admin tokens: %w", err)
	}
	if len(tokens) == 0 {
		d.logg.Info(ctx, "no admin push tokens for company")
		return nil
	}

	msg := fcm.Message{
		Title: newOrderTitle,
		Body:  fmt.Sprintf("Order No %d", p.OrderNumber),
		Data: map[string]string{
			"route":     orderRoute,
			"trynbuyId": p.TrynbuyID.String(),
		},
	}
	if err := d.sendAll(ctx, tokens, msg); err != nil {
		d.logg.Error(d.logg.WithField(ctx, "token_count", len(tokens)), "push delivery partially failed", err)
		return nil
	}
	d.logg.Info(d.logg.WithField(ctx, "token_count", len(tokens)), "new order push sent")
	return nil
}

// sendAll pushes to every token concurrently and combines per-token failures.
func (d *Dispatcher) sendAll(ctx context.Context, tokens []string, msg fcm.Message) error {
	errs := make([]error, len(tokens))
	var g errgroup.Group
	g.SetLimit(pushFanout)
	for i, token := range tokens {
		g.Go(func() error {
			if err := d.push.Send(ctx, token, msg); err != nil {
				if fcm.IsUnregistered(err) {
					d.logg.Warn(d.logg.WithField(ctx, "token_index", i), "stale push token")
				}
				errs[i] = fmt.Errorf("token %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return multierr.Combine(errs...)
}

func (d *Dispatcher) orderSettled(ctx context.Context, p payloads.TrynbuySettledEvent) {
	ctx = d.logg.WithTrynbuyID(ctx, p.TrynbuyID.String())
	body := map[string]any{
		"trynbuyId":   p.TrynbuyID,
		"orderStatus": p.OrderStatus,
		"billCreated": p.BillCreated,
	}
	if p.BillID != nil {
		body["billId"] = p.BillID
	}
	d.emit(ctx, realtime.CompanyRoom(p.CompanyID), realtime.EventTrynbuySettled, body)
	d.emit(ctx, realtime.ClientRoom(p.ClientID), realtime.EventTrynbuySettled, body)
}

func (d *Dispatcher) orderUpdated(ctx context.Context, p payloads.TrynbuyUpdatedEvent) {
	ctx = d.logg.WithTrynbuyID(ctx, p.TrynbuyID.String())
	d.emit(ctx, realtime.ClientRoom(p.ClientID), realtime.EventTrynbuyUpdate, map[string]any{
		"trynbuyId":     p.TrynbuyID,
		"orderStatus":   p.OrderStatus,
		"packingStatus": p.PackingStatus,
	})
}

func (d *Dispatcher) emit(ctx context.Context, room, event string, payload any) {
	if err := d.emitter.Emit(ctx, room, event, payload); err != nil {
		d.logg.Error(d.logg.WithField(ctx, "room", room), "realtime emit failed", err)
	}
}
