// Package traccar is a read-only client for the two Traccar endpoints the bot
// consumes: the device catalog and latest-position lookups. Every call
// authenticates with the per-user credential bundle supplied by the caller;
// there is no shared or default credential fallback.
package traccar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trakii-bot/internal/domain"
)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("traccar: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client wraps a Traccar server's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the Traccar server at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("traccar: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Devices fetches all devices visible to the authenticated account.
func (c *Client) Devices(ctx context.Context, creds domain.Credentials) ([]domain.Device, error) {
	var devices []domain.Device
	if err := c.getJSON(ctx, creds, c.baseURL+"/api/devices", &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// Positions fetches the position records for the given position id. The
// endpoint returns a sequence; callers use the first element.
func (c *Client) Positions(ctx context.Context, creds domain.Credentials, positionID int64) ([]domain.Position, error) {
	url := c.baseURL + "/api/positions/?id=" + strconv.FormatInt(positionID, 10)
	var positions []domain.Position
	if err := c.getJSON(ctx, creds, url, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (c *Client) getJSON(ctx context.Context, creds domain.Credentials, url string, out any) error {
	if creds.Empty() {
		return errors.New("traccar: credentials must not be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("traccar: create request: %w", err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("traccar: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("traccar: read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("traccar: decode response: %w", err)
	}
	return nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
