package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/markit/markit-server/pkg/config"
)

func TestResourcesSkipsBlankNames(t *testing.T) {
	got := resources(config.PubSubConfig{OrdersTopic: " events ", NotificationSub: "notify"})
	want := []resource{{kindTopic, "events"}, {kindSubscription, "notify"}}
	if len(got) != len(want) {
		t.Fatalf("unexpected resources %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("resource %d: expected %v got %v", i, want[i], got[i])
		}
	}
}

func TestFullName(t *testing.T) {
	c := &Client{project: "markit-prod"}

	cases := []struct {
		kind, name, want string
	}{
		{kindSubscription, "sales", "projects/markit-prod/subscriptions/sales"},
		{kindSubscription, "projects/other/subscriptions/sales", "projects/other/subscriptions/sales"},
		{kindTopic, "events", "projects/markit-prod/topics/events"},
		{kindTopic, "  ", ""},
	}
	for _, tc := range cases {
		if got := c.fullName(tc.kind, tc.name); got != tc.want {
			t.Fatalf("fullName(%s, %q): expected %q got %q", tc.kind, tc.name, tc.want, got)
		}
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if c.Publisher("events") != nil || c.Subscription("sales") != nil {
		t.Fatalf("nil client should hand out no handles")
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close should be a no-op: %v", err)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
}
