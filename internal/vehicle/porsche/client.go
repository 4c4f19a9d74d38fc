package porsche

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chargewatch/chargewatch/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "porsche"

	// DefaultBaseURL is the Porsche connected-vehicle API base URL.
	DefaultBaseURL = "https://api.porsche.com"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Porsche client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Metrics records provider call outcomes (optional).
	Metrics *resilience.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Porsche connected-vehicle API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	metrics    *resilience.ProviderMetrics
	logger     zerolog.Logger
}

// NewClient creates a new Porsche client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      2,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchCapabilities retrieves the capability document for a vehicle.
func (c *Client) FetchCapabilities(ctx context.Context, vin string, auth AuthContext) (*Capabilities, error) {
	url := fmt.Sprintf("%s/service-vehicle/vcs/capabilities/%s", c.baseURL, vin)

	var caps Capabilities
	if err := c.getJSON(ctx, url, "capabilities", auth, &caps); err != nil {
		return nil, err
	}
	return &caps, nil
}

// FetchStatus retrieves the current e-mobility status for a vehicle. The car model
// from the capability document is part of the status route.
func (c *Client) FetchStatus(ctx context.Context, vin string, caps *Capabilities, auth AuthContext) (*Emobility, error) {
	url := fmt.Sprintf("%s/e-mobility/%s/%s/%s/%s",
		c.baseURL, auth.CountryCode, auth.LocaleCode, caps.CarModel, vin)

	var emobility Emobility
	if err := c.getJSON(ctx, url, "status", auth, &emobility); err != nil {
		return nil, err
	}
	return &emobility, nil
}

func (c *Client) getJSON(ctx context.Context, url, operation string, auth AuthContext, out interface{}) error {
	start := time.Now()
	err := c.doGetJSON(ctx, url, auth, out)
	if c.metrics != nil {
		c.metrics.RecordRequest(ProviderName, operation, time.Since(start), err)
	}
	if err != nil && !errors.Is(err, ErrNoData) {
		c.logger.Warn().Err(err).Str("operation", operation).Msg("porsche api call failed")
	}
	return err
}

func (c *Client) doGetJSON(ctx context.Context, url string, auth AuthContext, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	// Auth and locale routing headers, as supplied at registration time.
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	req.Header.Set("x-vrs-url-country", auth.CountryCode)
	req.Header.Set("x-vrs-url-language", auth.LocaleCode)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if len(body) == 0 {
		return ErrNoData
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
