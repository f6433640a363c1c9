package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/statecache"
)

// DefaultUpdateBuffer sizes the cache subscription when Options leaves it unset.
const DefaultUpdateBuffer = 256

var (
	// ErrAlreadyStarted is returned by Start on a running bridge.
	ErrAlreadyStarted = errors.New("ingest: bridge already started")

	// ErrNotRunning is reported by HealthCheck before Start or after Stop.
	ErrNotRunning = errors.New("ingest: bridge not running")

	// ErrNotSubscribed is reported by HealthCheck when the backend state
	// subscription is no longer tracked by the client.
	ErrNotSubscribed = errors.New("ingest: backend state subscription missing")
)

// Client is the subset of the MQTT client the bridge uses.
// *mqtt.Client satisfies it.
type Client interface {
	SubscribeBackendStates(handler mqtt.StateHandler) error
	UnsubscribeBackendStates() error
	BackendStatesSubscribed() bool
	PublishDeviceState(deviceID string, payload []byte) error
	PublishCommandResult(deviceID string, payload []byte) error
	HealthCheck(ctx context.Context) error
}

// Hub is the subset of the device core the bridge feeds and observes.
// *hub.Hub satisfies it.
type Hub interface {
	PushRawState(ctx context.Context, id device.UniversalID, raw adapter.RawState) (device.State, error)
	Subscribe(buffer int) (<-chan statecache.Update, func())
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge. Topics and QoS come from the client.
type Options struct {
	// UpdateBuffer sizes the cache subscription feeding the publisher.
	UpdateBuffer int

	// PublishState republishes every cache update as retained unified state.
	PublishState bool
}

// Bridge moves device state between MQTT and the hub.
//
// Inbound, it accepts backend-native state on {prefix}/state/{backend}/{localId}
// and pushes it into the hub. Outbound, it republishes cache updates as
// retained per-device core state and command results on the core result topic.
type Bridge struct {
	client Client
	hub    Hub
	opts   Options
	now    func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	logger Logger
}

// New creates a bridge. Call Start to subscribe.
func New(client Client, h Hub, opts Options) *Bridge {
	if opts.UpdateBuffer <= 0 {
		opts.UpdateBuffer = DefaultUpdateBuffer
	}
	return &Bridge{
		client: client,
		hub:    h,
		opts:   opts,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger. Call before Start.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Start subscribes to backend state and, when enabled, starts publishing
// unified state. The bridge runs until ctx is cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrAlreadyStarted
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	if err := b.client.SubscribeBackendStates(b.handleState); err != nil {
		b.cancel()
		return fmt.Errorf("subscribing to backend state: %w", err)
	}

	b.done = make(chan struct{})
	if b.opts.PublishState {
		updates, unsubscribe := b.hub.Subscribe(b.opts.UpdateBuffer)
		go b.publishUpdates(b.ctx, updates, unsubscribe, b.done)
	} else {
		close(b.done)
	}

	b.running = true
	b.logger.Info("ingest bridge started", "publish_state", b.opts.PublishState)
	return nil
}

// Stop unsubscribes and waits for the publisher to exit.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.cancel()
	done := b.done
	b.mu.Unlock()

	if err := b.client.UnsubscribeBackendStates(); err != nil {
		b.logger.Debug("unsubscribe on stop failed", "error", err)
	}
	<-done
	b.logger.Info("ingest bridge stopped")
}

// Record publishes a finished command result. It satisfies executor.Recorder
// so the bridge can sit next to the journal.
func (b *Bridge) Record(_ context.Context, res device.CommandResult) error {
	payload, err := json.Marshal(NewResultMessage(res))
	if err != nil {
		return fmt.Errorf("marshalling command result: %w", err)
	}
	if err := b.client.PublishCommandResult(string(res.DeviceID), payload); err != nil {
		return fmt.Errorf("publishing command result: %w", err)
	}
	return nil
}

// HealthCheck reports whether the bridge is running, the broker connection
// is up and the backend state subscription is still tracked.
func (b *Bridge) HealthCheck(ctx context.Context) error {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if !running {
		return ErrNotRunning
	}
	if err := b.client.HealthCheck(ctx); err != nil {
		return err
	}
	if !b.client.BackendStatesSubscribed() {
		return ErrNotSubscribed
	}
	return nil
}

// handleState processes one inbound backend state message. Returned errors
// are logged by the MQTT client.
func (b *Bridge) handleState(backend, localID string, payload []byte) error {
	id := device.NewUniversalID(device.Backend(backend), localID)

	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding state for %s: %w", id, err)
	}

	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := b.hub.PushRawState(ctx, id, msg.rawState(b.now()))
	if err != nil {
		return fmt.Errorf("pushing state for %s: %w", id, err)
	}
	b.logger.Debug("state ingested", "device", id, "attributes", len(state.Attributes))
	return nil
}

// publishUpdates republishes cache updates until ctx ends or the cache closes.
func (b *Bridge) publishUpdates(ctx context.Context, updates <-chan statecache.Update, unsubscribe func(), done chan<- struct{}) {
	defer close(done)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.publishUpdate(u)
		}
	}
}

func (b *Bridge) publishUpdate(u statecache.Update) {
	payload, err := json.Marshal(NewCoreStateMessage(u))
	if err != nil {
		b.logger.Error("failed to marshal state", "device", u.DeviceID, "error", err)
		return
	}
	if err := b.client.PublishDeviceState(string(u.DeviceID), payload); err != nil {
		b.logger.Warn("failed to publish state", "device", u.DeviceID, "error", err)
	}
}
