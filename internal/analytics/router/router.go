package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/markit/markit-server/internal/analytics/types"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/outbox/payloads"
	"github.com/markit/markit-server/pkg/outbox/registry"
	"github.com/markit/markit-server/pkg/outbox/subscriber"
)

// Writer delivers BigQuery rows produced by the router.
type Writer interface {
	InsertSale(ctx context.Context, row types.SalesRow) error
}

// Router turns settled trynbuy events that produced a bill into sales rows.
// Every other event is acknowledged without a write.
type Router struct {
	writer   Writer
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Router{writer: writer, decoders: registry.NewTrynbuyDecoders(), logg: logg}, nil
}

// ConsumerName scopes the dedupe keys of the analytics subscription.
const ConsumerName = "analytics"

// Handle writes one sales row per billed settlement. A settled event that
// cannot be decoded is returned as an error so it is redelivered rather than
// lost from the sales table.
func (r *Router) Handle(ctx context.Context, evt subscriber.Event) error {
	if evt.Type != enums.EventTrynbuySettled {
		r.logg.Info(ctx, "analytics event ignored")
		return nil
	}
	if len(evt.Data) == 0 {
		return fmt.Errorf("empty payload for %s", evt.Type)
	}

	decoded, err := r.decoders.Decode(evt.Type, evt.Version, evt.Data)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	settled, ok := decoded.(payloads.TrynbuySettledEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", decoded, evt.Type)
	}
	if !settled.BillCreated || settled.BillID == nil || settled.InvoiceNumber == nil {
		r.logg.Info(ctx, "settlement without bill skipped")
		return nil
	}

	occurredAt := settled.SettledAt
	if occurredAt.IsZero() {
		occurredAt = evt.OccurredAt
	}
	row := types.SalesRow{
		BillID:        settled.BillID.String(),
		CompanyID:     settled.CompanyID.String(),
		TrynbuyID:     settled.TrynbuyID.String(),
		InvoiceNumber: *settled.InvoiceNumber,
		Subtotal:      settled.Subtotal.String(),
		Discount:      settled.Discount.String(),
		GrandTotal:    settled.GrandTotal.String(),
		PaymentMethod: settled.PaymentMethod,
		KeptCount:     settled.KeptCount,
		ReturnedCount: settled.ReturnedCount,
		OccurredAt:    occurredAt.UTC(),
	}
	if err := r.writer.InsertSale(ctx, row); err != nil {
		return fmt.Errorf("insert sales row: %w", err)
	}
	r.logg.Info(r.logg.WithField(ctx, "bill_id", row.BillID), "sales row written")
	return nil
}
