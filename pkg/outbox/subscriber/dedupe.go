package subscriber

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/markit/markit-server/pkg/redis"
)

// Dedupe remembers which events each consumer already handled. Keys look like
// markit:idempotency:evt:<consumer>:<event_id>.
type Dedupe struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewDedupe(store redis.IdempotencyStore, ttl time.Duration) (*Dedupe, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Dedupe{store: store, ttl: ttl}, nil
}

// Claim reports whether the caller is the first to see eventID.
func (d *Dedupe) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := d.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return d.store.SetNX(ctx, key, "1", d.ttl)
}

// Release forgets a claim so a redelivery is handled again.
func (d *Dedupe) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := d.key(consumer, eventID)
	if err != nil {
		return err
	}
	return d.store.Del(ctx, key)
}

func (d *Dedupe) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return d.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
