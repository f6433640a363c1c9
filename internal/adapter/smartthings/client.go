package smartthings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
)

// DefaultBaseURL is the SmartThings public API endpoint.
const DefaultBaseURL = "https://api.smartthings.com/v1"

const (
	defaultTimeout  = 30 * time.Second
	maxErrorPreview = 200
	pageSize        = 200
	maxPages        = 50
)

// ErrEmptyToken is returned when constructing a client without a token.
var ErrEmptyToken = errors.New("smartthings: API token cannot be empty")

// Client is the subset of the SmartThings REST API the adapter uses.
type Client interface {
	ListDevices(ctx context.Context, deviceIDs []string) ([]Device, error)
	DeviceStatus(ctx context.Context, deviceID string) (Status, error)
	DeviceHealth(ctx context.Context, deviceID string) (Health, error)
	ExecuteCommands(ctx context.Context, deviceID string, cmds []Command) error
	Ping(ctx context.Context) error
	CloseIdleConnections()
}

// APIError represents an error response from the SmartThings API.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("smartthings: API error %d: %s", e.StatusCode, e.Message)
}

// HTTPClient talks to the SmartThings REST API with a personal access token.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *HTTPClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// NewHTTPClient creates a REST client.
func NewHTTPClient(token string, opts ...Option) (*HTTPClient, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	c := &HTTPClient{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListDevices returns all devices, or only the given ids when non-empty.
// Pages are followed until the API stops returning a next link.
func (c *HTTPClient) ListDevices(ctx context.Context, deviceIDs []string) ([]Device, error) {
	var all []Device
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		for _, id := range deviceIDs {
			params.Add("deviceId", id)
		}
		params.Set("max", strconv.Itoa(pageSize))
		if page > 0 {
			params.Set("page", strconv.Itoa(page))
		}

		data, err := c.do(ctx, http.MethodGet, "/devices?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var resp devicePage
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse device list: %w", err)
		}
		all = append(all, resp.Items...)

		if resp.Links.Next == "" || len(resp.Items) == 0 {
			break
		}
	}
	return all, nil
}

// DeviceStatus returns the main component status of a device.
func (c *HTTPClient) DeviceStatus(ctx context.Context, deviceID string) (Status, error) {
	data, err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID)+"/components/main/status", nil)
	if err != nil {
		return nil, err
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse device status: %w", err)
	}
	return status, nil
}

// DeviceHealth returns the connectivity state of a device.
func (c *HTTPClient) DeviceHealth(ctx context.Context, deviceID string) (Health, error) {
	data, err := c.do(ctx, http.MethodGet, "/devices/"+url.PathEscape(deviceID)+"/health", nil)
	if err != nil {
		return Health{}, err
	}

	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return Health{}, fmt.Errorf("failed to parse device health: %w", err)
	}
	return h, nil
}

// ExecuteCommands sends commands to a device. Empty components default to "main".
func (c *HTTPClient) ExecuteCommands(ctx context.Context, deviceID string, cmds []Command) error {
	for i := range cmds {
		if cmds[i].Component == "" {
			cmds[i].Component = "main"
		}
	}
	_, err := c.do(ctx, http.MethodPost, "/devices/"+url.PathEscape(deviceID)+"/commands",
		CommandRequest{Commands: cmds})
	return err
}

// Ping verifies the token by listing locations.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/locations", nil)
	return err
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			RetryAfter: retryAfter(resp.Header),
		}
	}
	return respBody, nil
}

// retryAfter reads Retry-After, falling back to the end of the
// X-RateLimit-Reset window.
func retryAfter(h http.Header) time.Duration {
	if d := adapter.ParseRetryAfter(h.Get("Retry-After")); d > 0 {
		return d
	}
	reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return 0
	}
	if d := time.Until(time.Unix(reset, 0)); d > 0 {
		return d
	}
	return 0
}

// errorMessage extracts the API's error message, falling back to a body preview.
func errorMessage(body []byte) string {
	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	if len(body) > maxErrorPreview {
		return string(body[:maxErrorPreview]) + "..."
	}
	return string(body)
}
