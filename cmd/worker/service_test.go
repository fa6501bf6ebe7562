package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/markit/markit-server/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type blockingConsumer struct {
	name    string
	stopped chan struct{}
}

func newBlocking(name string) *blockingConsumer {
	return &blockingConsumer{name: name, stopped: make(chan struct{})}
}

func (b *blockingConsumer) Name() string { return b.name }

func (b *blockingConsumer) Run(ctx context.Context) error {
	<-ctx.Done()
	close(b.stopped)
	return ctx.Err()
}

type failingConsumer struct{ err error }

func (failingConsumer) Name() string                { return "notifications" }
func (f failingConsumer) Run(context.Context) error { return f.err }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestRunFailsWhenDependencyUnavailable(t *testing.T) {
	c := newBlocking("analytics")
	svc, err := NewService(testLogger(), []dependency{{"redis", stubPinger{}}, {"database", stubPinger{err: errors.New("db down")}}}, c)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	err = svc.Run(context.Background())
	if err == nil || err.Error() != "database ping failed: db down" {
		t.Fatalf("expected readiness failure, got %v", err)
	}
}

func TestConsumerFailureStopsTheOthers(t *testing.T) {
	analytics := newBlocking("analytics")
	svc, err := NewService(testLogger(), nil, failingConsumer{err: errors.New("subscription deleted")}, analytics)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.Run(context.Background())
	if err == nil || err.Error() != "notifications consumer: subscription deleted" {
		t.Fatalf("unexpected error %v", err)
	}
	select {
	case <-analytics.stopped:
	case <-time.After(time.Second):
		t.Fatal("analytics consumer was not canceled")
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, err := NewService(testLogger(), []dependency{{"pubsub", stubPinger{}}}, newBlocking("a"), newBlocking("b"))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestNewServiceValidates(t *testing.T) {
	if _, err := NewService(testLogger(), nil); err == nil {
		t.Fatal("expected missing consumers to fail")
	}
	if _, err := NewService(testLogger(), []dependency{{"bigquery", nil}}, newBlocking("a")); err == nil {
		t.Fatal("expected nil dependency to fail")
	}
}
