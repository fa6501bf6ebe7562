package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/markit/markit-server/pkg/config"
	gcpopts "github.com/markit/markit-server/pkg/gcp"
	"github.com/markit/markit-server/pkg/logger"
	fcmapi "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
)

const (
	androidSound = "alert.wav"
	apnsSound    = "alert.caf"
)

var (
	errProjectIDRequired    = errors.New("fcm project id is required")
	errClientNotInitialized = errors.New("fcm client not initialized")
	errTokenRequired        = errors.New("device token is required")
)

// Message is the provider-neutral push notification.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers one push to one device token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

type messagesAPI interface {
	send(ctx context.Context, parent string, req *fcmapi.SendMessageRequest) error
}

// Client sends HTTP v1 FCM messages for a single Firebase project.
type Client struct {
	api    messagesAPI
	parent string
}

// NewClient builds an FCM client using the GCP credentials of the process.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.FCMConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(gcp.ProjectID)
	}
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	svc, err := fcmapi.NewService(ctx, gcpopts.ClientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating fcm service: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "fcm_project", projectID), "fcm client initialized")
	}
	return &Client{api: &serviceAPI{svc: svc}, parent: "projects/" + projectID}, nil
}

// Send pushes msg to a single device token.
func (c *Client) Send(ctx context.Context, token string, msg Message) error {
	if c == nil || c.api == nil {
		return errClientNotInitialized
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errTokenRequired
	}
	req, err := buildRequest(token, msg)
	if err != nil {
		return err
	}
	if err := c.api.send(ctx, c.parent, req); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func buildRequest(token string, msg Message) (*fcmapi.SendMessageRequest, error) {
	apnsPayload, err := json.Marshal(map[string]any{
		"aps": map[string]any{"sound": apnsSound},
	})
	if err != nil {
		return nil, fmt.Errorf("encode apns payload: %w", err)
	}
	return &fcmapi.SendMessageRequest{
		Message: &fcmapi.Message{
			Token: token,
			Notification: &fcmapi.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
			Android: &fcmapi.AndroidConfig{
				Notification: &fcmapi.AndroidNotification{Sound: androidSound},
			},
			Apns: &fcmapi.ApnsConfig{
				Payload: googleapi.RawMessage(apnsPayload),
			},
		},
	}, nil
}

// IsUnregistered reports whether FCM rejected the token as stale.
func IsUnregistered(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusNotFound {
		return true
	}
	for _, detail := range apiErr.Errors {
		if detail.Reason == "UNREGISTERED" {
			return true
		}
	}
	return strings.Contains(apiErr.Message, "UNREGISTERED")
}

type serviceAPI struct {
	svc *fcmapi.Service
}

func (s *serviceAPI) send(ctx context.Context, parent string, req *fcmapi.SendMessageRequest) error {
	_, err := s.svc.Projects.Messages.Send(parent, req).Context(ctx).Do()
	return err
}
