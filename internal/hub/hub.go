package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/directory"
	"github.com/nerrad567/gray-logic-hub/internal/executor"
	"github.com/nerrad567/gray-logic-hub/internal/statecache"
)

// Logger defines the logging interface used by the hub and handed to every
// component it builds.
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

// Config configures the components the hub builds around a directory.
type Config struct {
	Cache    statecache.Options
	Executor executor.Config
}

// DefaultConfig returns a 60s cache TTL and the executor defaults.
func DefaultConfig() Config {
	return Config{
		Cache:    statecache.Options{TTL: statecache.DefaultTTL, FetchTimeout: statecache.DefaultFetchTimeout},
		Executor: executor.DefaultConfig(),
	}
}

// Hub is the consumer-facing surface of the device core.
//
// It owns the Device State Cache and the Command Executor and wires both to
// the directory: the cache fetches through it, the executor routes through
// it, and removing an adapter clears that backend's cached state.
//
// Thread Safety: all methods are safe for concurrent use.
type Hub struct {
	dir    *directory.Directory
	cache  *statecache.Cache
	exec   *executor.Executor
	logger Logger
}

// New builds a Hub over dir. Adapters may be registered on dir before or
// after New, but before Initialize.
func New(dir *directory.Directory, cfg Config) *Hub {
	cache := statecache.New(dir, cfg.Cache)
	h := &Hub{
		dir:    dir,
		cache:  cache,
		exec:   executor.New(dir, cache, cfg.Executor),
		logger: noopLogger{},
	}
	dir.OnDispose(cache.ClearBackend)
	return h
}

// SetLogger sets the logger for the hub and its components.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
	h.dir.SetLogger(logger)
	h.cache.SetLogger(logger)
	h.exec.SetLogger(logger)
}

// SetRecorder sets the command journal. nil disables it.
func (h *Hub) SetRecorder(r executor.Recorder) {
	h.exec.SetRecorder(r)
}

// Directory returns the underlying directory.
func (h *Hub) Directory() *directory.Directory { return h.dir }

// Cache returns the underlying state cache.
func (h *Hub) Cache() *statecache.Cache { return h.cache }

// Backends returns the registered backends in registration order.
func (h *Hub) Backends() []device.Backend { return h.dir.Backends() }

// Initialize initializes every registered adapter. Adapters that fail are
// removed; the hub keeps serving the others. The returned error joins the
// individual failures and is nil only if every adapter came up.
func (h *Hub) Initialize(ctx context.Context) error {
	err := h.dir.Initialize(ctx)
	h.logger.Info("hub initialized", "backends", h.dir.Backends())
	return err
}

// Close disposes every adapter and closes update subscriptions.
func (h *Hub) Close(ctx context.Context) error {
	err := h.dir.Dispose(ctx)
	h.cache.Close()
	return err
}

// Health returns the failing backends. An empty map means healthy.
func (h *Hub) Health(ctx context.Context) map[device.Backend]error {
	return h.dir.HealthCheck(ctx)
}

// GetDevice returns the unified record for id.
func (h *Hub) GetDevice(ctx context.Context, id device.UniversalID) (*device.Device, error) {
	return h.dir.GetDevice(ctx, id)
}

// ListDevices lists devices across backends with partial-result semantics.
func (h *Hub) ListDevices(ctx context.Context, q directory.Query) ([]device.Device, error) {
	return h.dir.ListDevices(ctx, q)
}

// GetDeviceState returns the cached state, fetching it live when the entry
// is missing or older than the TTL.
func (h *Hub) GetDeviceState(ctx context.Context, id device.UniversalID) (device.State, error) {
	return h.cache.Get(ctx, id)
}

// RefreshDeviceState bypasses the cache and returns a state fetched after
// the call began.
func (h *Hub) RefreshDeviceState(ctx context.Context, id device.UniversalID) (device.State, error) {
	h.cache.Invalidate(id)
	return h.cache.Get(ctx, id)
}

// ExecuteCommand runs one command and returns its single result.
func (h *Hub) ExecuteCommand(ctx context.Context, id device.UniversalID, cmd device.Command, opts executor.Options) device.CommandResult {
	return h.exec.Execute(ctx, id, cmd, opts)
}

// ExecuteBatch runs several commands and returns one result per item in
// input order.
func (h *Hub) ExecuteBatch(ctx context.Context, items []executor.BatchItem, opts executor.BatchOptions) []device.CommandResult {
	return h.exec.ExecuteBatch(ctx, items, opts)
}

// Subscribe returns a channel receiving every state stored in the cache.
func (h *Hub) Subscribe(buffer int) (<-chan statecache.Update, func()) {
	return h.cache.Subscribe(buffer)
}

// PushState stores an externally delivered unified state.
//
// Every key must belong to a capability the device declares and carry a value
// of the attribute's type; the whole state is rejected otherwise.
func (h *Hub) PushState(ctx context.Context, state device.State) error {
	dev, err := h.dir.GetDevice(ctx, state.DeviceID)
	if err != nil {
		return err
	}
	var errs []error
	for key, v := range state.Attributes {
		if err := device.ValidateAttribute(dev, key, v); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return device.NewError(device.KindOf(errs[0]), "push state", state.DeviceID, errors.Join(errs...))
	}
	h.cache.Set(state.DeviceID, state.Clone())
	return nil
}

// PushRawState translates backend-native values delivered outside a fetch
// and stores the result. Unmapped and undeclared keys are dropped. A raw
// state reporting the device offline marks it unreachable and invalidates
// its cache entry instead.
//
// Returns the stored state, or a zero State when nothing was stored.
func (h *Hub) PushRawState(ctx context.Context, id device.UniversalID, raw adapter.RawState) (device.State, error) {
	if raw.Online != nil {
		h.dir.SetReachable(id, *raw.Online)
		if !*raw.Online {
			h.cache.Invalidate(id)
			h.logger.Debug("device reported offline", "device", id)
			return device.State{}, nil
		}
	}
	state, err := h.dir.TranslateState(ctx, id, raw.Values, raw.CapturedAt)
	if err != nil {
		return device.State{}, fmt.Errorf("translating pushed state: %w", err)
	}
	if len(state.Attributes) == 0 {
		h.logger.Debug("pushed state had no mapped attributes", "device", id, "values", len(raw.Values))
		return device.State{}, nil
	}
	h.cache.Set(id, state)
	return state.Clone(), nil
}

// Stats returns cache activity counters.
func (h *Hub) Stats() statecache.Stats {
	return h.cache.Stats()
}
