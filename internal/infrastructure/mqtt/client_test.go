package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-hub-test",
		},
		QoS:         1,
		TopicPrefix: "graylogic",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("home/")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"BackendState", topics.BackendState("tuya", "bf3a0c"), "home/state/tuya/bf3a0c"},
		{"AllBackendStates", topics.AllBackendStates(), "home/state/+/+"},
		{"CoreDeviceState", topics.CoreDeviceState("tuya:bf3a0c"), "home/core/device/tuya:bf3a0c/state"},
		{"CoreCommandResult", topics.CoreCommandResult("tuya:bf3a0c"), "home/core/device/tuya:bf3a0c/result"},
		{"AllCoreDeviceStates", topics.AllCoreDeviceStates(), "home/core/device/+/state"},
		{"SystemStatus", topics.SystemStatus(), "home/system/status"},
		{"AllTopics", topics.AllTopics(), "home/#"},
		{"zero value uses default prefix", Topics{}.SystemStatus(), "graylogic/system/status"},
		{"empty prefix uses default", NewTopics("").AllTopics(), "graylogic/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestParseBackendState(t *testing.T) {
	topics := NewTopics("graylogic")

	tests := []struct {
		topic       string
		wantBackend string
		wantLocal   string
		wantOK      bool
	}{
		{"graylogic/state/smartthings/6f1d2c", "smartthings", "6f1d2c", true},
		{"graylogic/state/homeassistant/light.kitchen", "homeassistant", "light.kitchen", true},
		{"graylogic/state/tuya", "", "", false},
		{"graylogic/state/tuya/", "", "", false},
		{"graylogic/state/tuya/a/b", "", "", false},
		{"other/state/tuya/a", "", "", false},
		{"graylogic/core/device/tuya:a/state", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			backend, local, ok := topics.ParseBackendState(tt.topic)
			if ok != tt.wantOK || backend != tt.wantBackend || local != tt.wantLocal {
				t.Errorf("ParseBackendState() = %q, %q, %v; want %q, %q, %v",
					backend, local, ok, tt.wantBackend, tt.wantLocal, tt.wantOK)
			}
		})
	}
}

func TestParseBackendState_RoundTrip(t *testing.T) {
	topics := NewTopics("site-a")
	backend, local, ok := topics.ParseBackendState(topics.BackendState("tuya", "bf3a0c"))
	if !ok || backend != "tuya" || local != "bf3a0c" {
		t.Errorf("round trip = %q, %q, %v", backend, local, ok)
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "hub", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "graylogic-hub-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "hub" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Errorf("AutoReconnect = %v, CleanSession = %v, want both true", opts.AutoReconnect, opts.CleanSession)
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("home"), "hub-1")

	if !opts.WillEnabled || opts.WillTopic != "home/system/status" {
		t.Errorf("will = %v on %q", opts.WillEnabled, opts.WillTopic)
	}
	if !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will retained = %v qos = %d", opts.WillRetained, opts.WillQos)
	}
	var will statusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("decoding will payload %s: %v", opts.WillPayload, err)
	}
	if will.Status != statusOffline || will.Reason != reasonUnexpected || will.ClientID != "hub-1" {
		t.Errorf("will = %+v", will)
	}
}

func TestStatusPayload(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 15, 500, time.FixedZone("CEST", 2*3600))

	tests := []struct {
		name   string
		status string
		reason string
		want   string
	}{
		{"online", statusOnline, "", `{"status":"online","client_id":"hub-1","timestamp":"2026-10-14T07:30:15Z"}`},
		{"shutdown", statusOffline, reasonShutdown, `{"status":"offline","client_id":"hub-1","reason":"graceful_shutdown","timestamp":"2026-10-14T07:30:15Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(statusPayload("hub-1", tt.status, tt.reason, at)); got != tt.want {
				t.Errorf("statusPayload() = %s, want %s", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

// disconnected returns a client that never connected.
func disconnected() *Client {
	return &Client{cfg: testConfig(), topics: NewTopics("graylogic"), subscriptions: make(map[string]subscription)}
}

func TestPublishValidation(t *testing.T) {
	c := disconnected()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "a/b", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPayloadTooLarge},
		{"not connected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := disconnected()
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("a/b", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("a/b", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("a/b", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if c.hasSubscription("a/b") {
		t.Error("failed subscription was tracked")
	}
	if err := c.SubscribeBackendStates(nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("SubscribeBackendStates(nil) error = %v, want ErrSubscribeFailed", err)
	}
	if c.BackendStatesSubscribed() {
		t.Error("BackendStatesSubscribed() = true on disconnected client")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishDeviceTopics(t *testing.T) {
	c := disconnected()

	tests := []struct {
		name string
		id   string
		want error
	}{
		{"empty id", "", ErrInvalidDeviceID},
		{"separator", "tuya:a/b", ErrInvalidDeviceID},
		{"single-level wildcard", "tuya:+", ErrInvalidDeviceID},
		{"multi-level wildcard", "tuya:#", ErrInvalidDeviceID},
		{"valid id reaches the connection check", "homeassistant:light.kitchen", ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.PublishDeviceState(tt.id, []byte("{}")); !errors.Is(err, tt.want) {
				t.Errorf("PublishDeviceState() error = %v, want %v", err, tt.want)
			}
			if err := c.PublishCommandResult(tt.id, []byte("{}")); !errors.Is(err, tt.want) {
				t.Errorf("PublishCommandResult() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStateHandlerParsesTopic(t *testing.T) {
	c := disconnected()

	var gotBackend, gotLocal string
	h := c.stateHandler(func(backend, localID string, _ []byte) error {
		gotBackend, gotLocal = backend, localID
		return nil
	})

	if err := h("graylogic/state/homeassistant/light.kitchen", []byte("{}")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if gotBackend != "homeassistant" || gotLocal != "light.kitchen" {
		t.Errorf("handler got %q, %q", gotBackend, gotLocal)
	}

	gotBackend = ""
	if err := h("graylogic/state/tuya/a/extra", []byte("{}")); err == nil {
		t.Error("nested local id accepted")
	}
	if gotBackend != "" {
		t.Error("handler called for unparseable topic")
	}
}

func TestDefaultQoS(t *testing.T) {
	for _, tt := range []struct {
		configured int
		want       byte
	}{{0, 0}, {2, 2}, {-1, 1}, {3, 1}} {
		c := disconnected()
		c.cfg.QoS = tt.configured
		if got := c.qos(); got != tt.want {
			t.Errorf("qos() with %d = %d, want %d", tt.configured, got, tt.want)
		}
	}
}

// fakeToken completes immediately, or never when hang is set.
type fakeToken struct {
	err  error
	hang bool
}

func (t fakeToken) Wait() bool                     { return !t.hang }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.hang }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.hang {
		close(ch)
	}
	return ch
}
func (t fakeToken) Error() error { return t.err }

func TestAwait(t *testing.T) {
	if err := await(fakeToken{}, ErrPublishFailed); err != nil {
		t.Errorf("await(ok) error = %v", err)
	}

	brokerErr := errors.New("not authorized")
	err := await(fakeToken{err: brokerErr}, ErrSubscribeFailed)
	if !errors.Is(err, ErrSubscribeFailed) || !errors.Is(err, brokerErr) {
		t.Errorf("await(refused) error = %v, want both operation and broker errors", err)
	}

	err = await(fakeToken{hang: true}, ErrUnsubscribeFailed)
	if !errors.Is(err, ErrUnsubscribeFailed) || !errors.Is(err, ErrAckTimeout) {
		t.Errorf("await(hang) error = %v, want ErrAckTimeout", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := disconnected()

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on never-connected client error = %v", err)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errs = append(l.errs, msg)
	l.mu.Unlock()
}

func TestWrapHandler(t *testing.T) {
	c := disconnected()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var gotTopic string
	var gotPayload []byte
	c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return nil
	})(nil, fakeMessage{topic: "graylogic/state/tuya/a", payload: []byte(`{}`)})

	if gotTopic != "graylogic/state/tuya/a" || string(gotPayload) != "{}" {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}

	c.wrapHandler(func(string, []byte) error { return errors.New("bad payload") })(nil, fakeMessage{topic: "t"})
	c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, fakeMessage{topic: "t"})

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errs) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errs)
	}
}
