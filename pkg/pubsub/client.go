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

	"github.com/vendeo/vendeo-backend/pkg/config"
	"github.com/vendeo/vendeo-backend/pkg/gcp"
	"github.com/vendeo/vendeo-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

// Options lists the resources that must exist before the client is handed
// out. Publishers require topics, consumers require subscriptions.
type Options struct {
	RequiredTopics        []string
	RequiredSubscriptions []string
}

type resource struct {
	kind string
	name string
}

// Client is a project-scoped Pub/Sub v2 client.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []resource
}

// NewClient dials Pub/Sub and verifies every required resource.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, opts Options, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcpCfg.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	inner, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: inner, projectID: projectID, cfg: cfg}
	c.required = append(requiredOf(kindTopic, opts.RequiredTopics), requiredOf(kindSubscription, opts.RequiredSubscriptions)...)
	if err := c.verify(ctx); err != nil {
		_ = inner.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "pubsub_resources", len(c.required)), "pubsub client initialized")
	}
	return c, nil
}

func requiredOf(kind string, names []string) []resource {
	var out []resource
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, resource{kind: kind, name: trimmed})
		}
	}
	return out
}

func (c *Client) verify(ctx context.Context) error {
	for _, r := range c.required {
		fullName := c.resourceName(r.kind, r.name)
		var err error
		switch r.kind {
		case kindTopic:
			_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
		default:
			_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
		}
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(r.kind, "s"), r.name)
		}
		if err != nil {
			return fmt.Errorf("checking %s: %w", fullName, err)
		}
	}
	return nil
}

// Subscription accepts an ID or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(kindSubscription, name)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

func (c *Client) CommissionAnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.CommissionAnalyticsSubscription)
}

func (c *Client) DistributorAnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.DistributorAnalyticsSubscription)
}

// Publisher accepts an ID or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(kindTopic, name)
	if fullName == "" {
		return nil
	}
	return c.client.Publisher(fullName)
}

// Ping re-verifies the required resources.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName returns "" when the name is blank or no project is known.
func (c *Client) resourceName(kind, name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return ""
	case strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/"):
		return n
	case c.projectID == "":
		return ""
	}
	return "projects/" + c.projectID + "/" + kind + "/" + n
}
