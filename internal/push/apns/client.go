// Package apns implements the push.Dispatcher contract against Apple's APNS
// HTTP/2 provider API using provider-token (JWT) authentication.
package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chargewatch/chargewatch/internal/provider/resilience"
	"github.com/chargewatch/chargewatch/internal/push"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "apns"

	// ProductionHost is the production APNS gateway.
	ProductionHost = "https://api.push.apple.com"

	// SandboxHost is the development APNS gateway.
	SandboxHost = "https://api.sandbox.push.apple.com"
)

// Environment selects the APNS gateway.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Host returns the gateway base URL for the environment.
func (e Environment) Host() string {
	if e == EnvironmentProduction {
		return ProductionHost
	}
	return SandboxHost
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the APNS client.
type ClientConfig struct {
	// AppID is the bundle identifier of the app owning the live activity.
	AppID string

	// Environment selects sandbox or production delivery (default: sandbox).
	Environment Environment

	// Token signs provider tokens for request authentication (required).
	Token *ProviderToken

	// Host overrides the gateway URL (tests only).
	Host string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an APNS live-activity push client.
type Client struct {
	appID      string
	host       string
	token      *ProviderToken
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new APNS client.
func NewClient(cfg ClientConfig) *Client {
	host := cfg.Host
	if host == "" {
		host = cfg.Environment.Host()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		})
	}

	return &Client{
		appID:      cfg.AppID,
		host:       host,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// aps is the live-activity notification envelope.
type aps struct {
	Timestamp     int64       `json:"timestamp"`
	Event         push.Event  `json:"event"`
	ContentState  interface{} `json:"content-state"`
	DismissalDate int64       `json:"dismissal-date,omitempty"`
}

type notification struct {
	APS aps `json:"aps"`
}

// apnsError is the error body returned by the gateway.
type apnsError struct {
	Reason string `json:"reason"`
}

// SendLiveActivityUpdate implements push.Dispatcher.
func (c *Client) SendLiveActivityUpdate(ctx context.Context, contentState interface{}, event push.Event, deviceToken string, expiration, dismissalDeadline time.Time) error {
	body, err := json.Marshal(notification{
		APS: aps{
			Timestamp:     time.Now().Unix(),
			Event:         event,
			ContentState:  contentState,
			DismissalDate: dismissalDeadline.Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	url := fmt.Sprintf("%s/3/device/%s", c.host, deviceToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	bearer, err := c.token.Bearer()
	if err != nil {
		return err
	}

	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", c.appID+".push-type.liveactivity")
	req.Header.Set("apns-push-type", "liveactivity")
	req.Header.Set("apns-priority", "5")
	req.Header.Set("apns-expiration", apnsExpiration(expiration))
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	var apnsErr apnsError
	_ = json.Unmarshal(respBody, &apnsErr)

	if resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: %s", push.ErrDeviceGone, apnsErr.Reason)
	}
	return fmt.Errorf("apns rejected notification: status %d reason %q", resp.StatusCode, apnsErr.Reason)
}

// apnsExpiration formats the apns-expiration header; a zero time means the
// notification is delivered once and not stored.
func apnsExpiration(expiration time.Time) string {
	if expiration.IsZero() {
		return "0"
	}
	return fmt.Sprintf("%d", expiration.Unix())
}
