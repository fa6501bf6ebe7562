package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/outbox"
)

type memoryStore struct {
	values map[string]string
	err    error
}

func newMemoryStore() *memoryStore { return &memoryStore{values: map[string]string{}} }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) { return m.values[key], nil }

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "markit:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

type recordingHandler struct {
	events []Event
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, evt Event) error {
	h.events = append(h.events, evt)
	return h.err
}

type noopReceiver struct{}

func (noopReceiver) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return nil
}

func newSubscriber(t *testing.T, store *memoryStore, h Handler) *Subscriber {
	t.Helper()
	dedupe, err := NewDedupe(store, time.Hour)
	require.NoError(t, err)
	s, err := New(Params{
		Name:         "notifications",
		Subscription: noopReceiver{},
		Dedupe:       dedupe,
		Handler:      h,
		Logger:       logger.New(logger.Options{ServiceName: "subscriber-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return s
}

func relayed(t *testing.T, eventID string, data string) *gcppubsub.Message {
	t.Helper()
	body, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
		Data:       json.RawMessage(data),
	})
	require.NoError(t, err)
	return &gcppubsub.Message{
		ID:   "msg-1",
		Data: body,
		Attributes: map[string]string{
			"event_type":     string(enums.EventTrynbuyCreated),
			"aggregate_type": string(enums.AggregateTrynbuy),
			"aggregate_id":   "agg-1",
		},
	}
}

func TestDecodeReadsEnvelopeAndAttributes(t *testing.T) {
	id := uuid.New()
	evt, err := Decode(relayed(t, id.String(), `{"itemCount":2}`))
	require.NoError(t, err)
	require.Equal(t, id, evt.ID)
	require.Equal(t, enums.EventTrynbuyCreated, evt.Type)
	require.Equal(t, enums.AggregateTrynbuy, evt.AggregateType)
	require.Equal(t, "agg-1", evt.AggregateID)
	require.Equal(t, 1, evt.Version)
	require.JSONEq(t, `{"itemCount":2}`, string(evt.Data))
}

func TestDecodeFallsBackToAttributes(t *testing.T) {
	id := uuid.New()
	msg := &gcppubsub.Message{
		Data: []byte(`{"data":{}}`),
		Attributes: map[string]string{
			"event_id":   id.String(),
			"event_type": string(enums.EventTrynbuySettled),
			"created_at": "2026-10-14T09:00:00Z",
		},
	}
	evt, err := Decode(msg)
	require.NoError(t, err)
	require.Equal(t, id, evt.ID)
	require.Equal(t, outbox.CurrentVersion, evt.Version)
	require.True(t, evt.OccurredAt.Equal(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)))
}

func TestDecodeRejectsBrokenMessages(t *testing.T) {
	_, err := Decode(&gcppubsub.Message{Data: []byte("not json")})
	require.Error(t, err)

	_, err = Decode(relayed(t, "not-a-uuid", `{}`))
	require.Error(t, err)

	msg := relayed(t, uuid.NewString(), `{}`)
	delete(msg.Attributes, "event_type")
	_, err = Decode(msg)
	require.Error(t, err)
}

func TestProcessHandlesEachEventOnce(t *testing.T) {
	h := &recordingHandler{}
	s := newSubscriber(t, newMemoryStore(), h)
	msg := relayed(t, uuid.NewString(), `{}`)

	require.True(t, s.process(context.Background(), msg))
	require.True(t, s.process(context.Background(), msg), "redelivery should be acked")
	require.Len(t, h.events, 1)
}

func TestProcessNacksAndReleasesOnHandlerFailure(t *testing.T) {
	store := newMemoryStore()
	h := &recordingHandler{err: errors.New("redis publish failed")}
	s := newSubscriber(t, store, h)
	msg := relayed(t, uuid.NewString(), `{}`)

	require.False(t, s.process(context.Background(), msg))
	require.Empty(t, store.values, "claim must be released for redelivery")

	h.err = nil
	require.True(t, s.process(context.Background(), msg))
	require.Len(t, h.events, 2)
}

func TestProcessNacksWhenDedupeUnavailable(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis down")
	h := &recordingHandler{}
	s := newSubscriber(t, store, h)

	require.False(t, s.process(context.Background(), relayed(t, uuid.NewString(), `{}`)))
	require.Empty(t, h.events)
}

func TestProcessAcksPoison(t *testing.T) {
	store := newMemoryStore()
	h := &recordingHandler{err: fmt.Errorf("%w: unknown version", ErrPoison)}
	s := newSubscriber(t, store, h)

	require.True(t, s.process(context.Background(), relayed(t, uuid.NewString(), `{}`)))
	require.True(t, s.process(context.Background(), &gcppubsub.Message{Data: []byte("garbage")}))
	require.Len(t, h.events, 1)
	require.Len(t, store.values, 1, "poison events keep their claim")
}

func TestConstructorsValidate(t *testing.T) {
	_, err := NewDedupe(nil, time.Hour)
	require.Error(t, err)
	_, err = NewDedupe(newMemoryStore(), -time.Second)
	require.Error(t, err)

	d, err := NewDedupe(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	_, err = d.Claim(context.Background(), "", uuid.New())
	require.Error(t, err)
	_, err = d.Claim(context.Background(), "x", uuid.Nil)
	require.Error(t, err)

	_, err = New(Params{Name: "x"})
	require.Error(t, err)
}
