package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
)

// ErrMissingConfig is returned when the URL or token is empty.
var ErrMissingConfig = errors.New("homeassistant: url and token are required")

// Client is the subset of the Home Assistant REST API the adapter uses.
type Client interface {
	Ping(ctx context.Context) error
	States(ctx context.Context) ([]Entity, error)
	State(ctx context.Context, entityID string) (Entity, error)
	CallService(ctx context.Context, domain, service string, data map[string]any) error
	CloseIdleConnections()
}

// APIError represents a non-2xx response from Home Assistant.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("homeassistant: HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPClient talks to the Home Assistant REST API with a long-lived token.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a REST client.
func NewHTTPClient(baseURL, token string) (*HTTPClient, error) {
	if baseURL == "" || token == "" {
		return nil, ErrMissingConfig
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Ping checks that the API is running and the token is accepted.
func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/api/", nil)
	return err
}

// States returns every entity.
func (c *HTTPClient) States(ctx context.Context) ([]Entity, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, err
	}
	var entities []Entity
	if err := json.Unmarshal(resp, &entities); err != nil {
		return nil, fmt.Errorf("parsing states: %w", err)
	}
	return entities, nil
}

// State returns one entity.
func (c *HTTPClient) State(ctx context.Context, entityID string) (Entity, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil)
	if err != nil {
		return Entity{}, err
	}
	var e Entity
	if err := json.Unmarshal(resp, &e); err != nil {
		return Entity{}, fmt.Errorf("parsing state: %w", err)
	}
	return e, nil
}

// CallService invokes domain.service with data.
func (c *HTTPClient) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding service data: %w", err)
	}
	path := fmt.Sprintf("/api/services/%s/%s", url.PathEscape(domain), url.PathEscape(service))
	_, err = c.doRequest(ctx, http.MethodPost, path, body)
	return err
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
			RetryAfter: adapter.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return respBody, nil
}
