// Package relay drains the transactional outbox into Pub/Sub.
package relay

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/db/models"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/metrics"
	"github.com/markit/markit-server/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type parkingLot interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type Params struct {
	Logger   *logger.Logger
	DB       txRunner
	Store    eventStore
	DLQ      parkingLot
	Resolver resolver
	Sink     Sink
	Metrics  *metrics.RelayMetrics
	Config   config.OutboxConfig
}

// Relay claims pending rows, publishes them and records the outcome in the
// same transaction that holds the row locks.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	store       eventStore
	dlq         parkingLot
	resolver    resolver
	sink        Sink
	metrics     *metrics.RelayMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func New(p Params) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Store == nil:
		return nil, errors.New("outbox repository is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case p.Resolver == nil:
		return nil, errors.New("event registry is required")
	case p.Sink == nil:
		return nil, errors.New("sink is required")
	}
	r := &Relay{
		logg:        p.Logger,
		db:          p.DB,
		store:       p.Store,
		dlq:         p.DLQ,
		resolver:    p.Resolver,
		sink:        p.Sink,
		metrics:     p.Metrics,
		batchSize:   p.Config.BatchSize,
		maxAttempts: p.Config.MaxAttempts,
		poll:        time.Duration(p.Config.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPoll
	}
	return r, nil
}

// Run keeps draining while batches come back full and idles for the poll
// interval otherwise. Batch errors back off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = nextBackoff(wait, r.poll)
		case n > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}
		if err := sleep(ctx, wait+jitter()); err != nil {
			return err
		}
	}
}

// Drain handles one batch and returns how many rows it claimed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var claimed int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := r.handle(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

type outcome string

const (
	outcomePublished outcome = "published"
	outcomeRetry     outcome = "retry"
	outcomeParked    outcome = "parked"
)

// handle only returns errors from bookkeeping writes; publish failures are
// recorded on the row.
func (r *Relay) handle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return r.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}
	ctx = r.logg.WithField(ctx, "event_id", resolved.Envelope.EventID)

	if err := r.publish(ctx, row, resolved); err != nil {
		var nonRetryable registry.NonRetryableError
		switch {
		case errors.As(err, &nonRetryable):
			return r.park(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
		case row.AttemptCount+1 >= r.maxAttempts:
			return r.park(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err))
		}
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox publish failed, will retry")
		if err := r.store.MarkFailedTx(tx, row.ID, err); err != nil {
			return fmt.Errorf("mark failure %s: %w", row.ID, err)
		}
		r.metrics.IncRelayed(string(row.EventType), string(outcomeRetry))
		return nil
	}

	if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", row.ID, err)
	}
	r.metrics.IncRelayed(string(row.EventType), string(outcomePublished))
	r.logg.Info(ctx, "outbox event published")
	return nil
}

// publish sends to the primary topic and then every fan-out topic. A failure
// part way retries the whole row, so consumers dedupe on event_id.
func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	msg := message(row, resolved.Envelope)
	for _, topic := range resolved.Descriptor.Topics() {
		if err := r.sink.Send(ctx, topic, msg); err != nil {
			return fmt.Errorf("topic %s: %w", topic, err)
		}
	}
	return nil
}

func (r *Relay) park(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event parked in dlq")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.store.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncRelayed(string(row.EventType), string(outcomeParked))
	return nil
}

func nextBackoff(current, base time.Duration) time.Duration {
	if current < base {
		current = base
	}
	return min(current*2, maxBackoff)
}

func jitter() time.Duration {
	return time.Duration(rand.Int64N(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
