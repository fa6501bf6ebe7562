package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markit/markit-server/pkg/config"
	gcpopts "github.com/markit/markit-server/pkg/gcp"
	"github.com/markit/markit-server/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client resolves the trynbuy topics and subscriptions against one project.
type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient creates a Pub/Sub v2 client and checks that every configured
// topic and subscription exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	ps, err := pubsub.NewClient(ctx, project, gcpopts.ClientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{ps: ps, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "gcp_project", project), "pubsub client initialized")
	}
	return c, nil
}

type resource struct {
	kind string
	name string
}

// resources lists the configured names, skipping blanks.
func resources(cfg config.PubSubConfig) []resource {
	var out []resource
	add := func(kind, name string) {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, resource{kind: kind, name: name})
		}
	}
	add(kindTopic, cfg.OrdersTopic)
	add(kindTopic, cfg.AnalyticsTopic)
	add(kindSubscription, cfg.NotificationSub)
	add(kindSubscription, cfg.AnalyticsSubscription)
	return out
}

// Ping looks up each configured topic and subscription.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errNotInitialized
	}
	for _, res := range resources(c.cfg) {
		if err := c.lookup(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) lookup(ctx context.Context, res resource) error {
	full := c.fullName(res.kind, res.name)

	var err error
	if res.kind == kindTopic {
		_, err = c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	} else {
		_, err = c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}

	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(res.kind, "s"), res.name)
	default:
		return fmt.Errorf("checking %s %q: %w", strings.TrimSuffix(res.kind, "s"), res.name, err)
	}
}

// fullName expands a short id into projects/<p>/<kind>/<id>. Names already
// in resource form pass through.
func (c *Client) fullName(kind, name string) string {
	name = strings.TrimSpace(name)
	if c == nil || name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if c.project == "" {
		return ""
	}
	return "projects/" + c.project + "/" + kind + "/" + name
}

// Subscription returns a subscriber handle, or nil for a blank name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	full := c.fullName(kindSubscription, name)
	if full == "" || c.ps == nil {
		return nil
	}
	return c.ps.Subscriber(full)
}

// NotificationSubscription feeds the realtime and push fan-out.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSub)
}

// AnalyticsSubscription feeds the sales table.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher handle, or nil for a blank name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	full := c.fullName(kindTopic, name)
	if full == "" || c.ps == nil {
		return nil
	}
	return c.ps.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}
