package tuya

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
)

// Tuya business error codes returned with HTTP 200 and success=false.
const (
	CodeSignInvalid      = 1004
	CodeTokenInvalid     = 1010
	CodeTokenExpired     = 1011
	CodePermissionDenied = 1106
	CodeDeviceOffline    = 2001
	CodeCommandInvalid   = 2008
	CodeTooFrequent      = 40000309
)

// tokenSkew refreshes the access token this long before it expires.
const tokenSkew = 5 * time.Minute

var (
	// ErrMissingCredentials is returned when client id or secret is empty.
	ErrMissingCredentials = errors.New("tuya: client id and secret are required")
)

// Client is the subset of the Tuya OpenAPI the adapter uses.
type Client interface {
	Authenticate(ctx context.Context) error
	ListDevices(ctx context.Context) ([]Device, error)
	DeviceInfo(ctx context.Context, deviceID string) (Device, error)
	SendCommands(ctx context.Context, deviceID string, cmds []DataPoint) error
	CloseIdleConnections()
}

// APIError is a failed Tuya exchange. Code is the business error code when
// the HTTP exchange itself succeeded.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tuya: API error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("tuya: HTTP %d: %s", e.StatusCode, e.Message)
}

// RegionURL returns the OpenAPI endpoint for a data-centre region.
func RegionURL(region string) string {
	switch strings.ToLower(region) {
	case "eu":
		return "https://openapi.tuyaeu.com"
	case "cn":
		return "https://openapi.tuyacn.com"
	case "in":
		return "https://openapi.tuyain.com"
	default:
		return "https://openapi.tuyaus.com"
	}
}

// HTTPClient is a signed Tuya OpenAPI client with automatic token refresh.
type HTTPClient struct {
	clientID   string
	secret     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu       sync.RWMutex
	token    string
	expireAt time.Time
}

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(clientID, secret, baseURL string) (*HTTPClient, error) {
	if clientID == "" || secret == "" {
		return nil, ErrMissingCredentials
	}
	return &HTTPClient{
		clientID:   clientID,
		secret:     secret,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}, nil
}

// Authenticate obtains an access token, forcing a refresh.
func (c *HTTPClient) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return c.ensureToken(ctx)
}

// ListDevices returns every device associated with the project's users.
func (c *HTTPClient) ListDevices(ctx context.Context) ([]Device, error) {
	var result struct {
		Devices []Device `json:"devices"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1.0/iot-01/associated-users/devices", nil, &result); err != nil {
		return nil, err
	}
	return result.Devices, nil
}

// DeviceInfo returns one device with its current data points.
func (c *HTTPClient) DeviceInfo(ctx context.Context, deviceID string) (Device, error) {
	var d Device
	if err := c.call(ctx, http.MethodGet, "/v1.0/devices/"+url.PathEscape(deviceID), nil, &d); err != nil {
		return Device{}, err
	}
	return d, nil
}

// SendCommands writes data points to a device.
func (c *HTTPClient) SendCommands(ctx context.Context, deviceID string, cmds []DataPoint) error {
	body, err := json.Marshal(map[string]any{"commands": cmds})
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}
	return c.call(ctx, http.MethodPost, "/v1.0/iot-03/devices/"+url.PathEscape(deviceID)+"/commands", body, nil)
}

// CloseIdleConnections releases pooled connections.
func (c *HTTPClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// envelope is the common Tuya response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Result  json.RawMessage `json:"result"`
}

// call signs and sends a request. A rejected token is refreshed and the
// request resent once.
func (c *HTTPClient) call(ctx context.Context, method, path string, body []byte, out any) error {
	var env envelope
	for attempt := 0; attempt < 2; attempt++ {
		if err := c.ensureToken(ctx); err != nil {
			return err
		}

		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()

		var err error
		env, err = c.send(ctx, method, path, token, body)
		if err != nil {
			return err
		}
		if env.Success || (env.Code != CodeTokenInvalid && env.Code != CodeTokenExpired) {
			break
		}
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}

	if !env.Success {
		return &APIError{StatusCode: http.StatusOK, Code: env.Code, Message: env.Msg}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("parsing %s result: %w", path, err)
		}
	}
	return nil
}

func (c *HTTPClient) send(ctx context.Context, method, path, token string, body []byte) (envelope, error) {
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("client_id", c.clientID)
	if token != "" {
		req.Header.Set("access_token", token)
	}
	req.Header.Set("sign", c.calcSign(timestamp, token, method, path, body))
	req.Header.Set("t", timestamp)
	req.Header.Set("sign_method", "HMAC-SHA256")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return envelope{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(raw),
			RetryAfter: adapter.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("parsing response: %w", err)
	}
	return env, nil
}

func (c *HTTPClient) ensureToken(ctx context.Context) error {
	c.mu.RLock()
	if c.token != "" && c.now().Add(tokenSkew).Before(c.expireAt) {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenSkew).Before(c.expireAt) {
		return nil
	}

	env, err := c.send(ctx, http.MethodGet, "/v1.0/token?grant_type=1", "", nil)
	if err != nil {
		return err
	}
	if !env.Success {
		return &APIError{StatusCode: http.StatusOK, Code: env.Code, Message: env.Msg}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpireTime  int64  `json:"expire_time"`
	}
	if err := json.Unmarshal(env.Result, &tok); err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}

	c.token = tok.AccessToken
	c.expireAt = c.now().Add(time.Duration(tok.ExpireTime) * time.Second)
	return nil
}

func (c *HTTPClient) calcSign(timestamp, token, method, path string, body []byte) string {
	str := c.clientID + token + timestamp + stringToSign(method, path, body)
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write([]byte(str))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

func stringToSign(method, path string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	return method + "\n" + hex.EncodeToString(bodyHash[:]) + "\n\n" + path
}
