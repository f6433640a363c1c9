package directory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Directory errors.
var (
	ErrAdapterExists = errors.New("directory: adapter already registered")
	ErrNilAdapter    = errors.New("directory: adapter is nil")
)

// Logger defines the logging interface used by the Directory.
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

// Query narrows a listing across backends. Zero fields match everything.
type Query struct {
	Backends   []device.Backend
	IDs        []device.UniversalID
	Capability device.Capability
	Room       string
}

// IsZero reports whether the query matches every device.
func (q Query) IsZero() bool {
	return len(q.Backends) == 0 && len(q.IDs) == 0 && q.Capability == "" && q.Room == ""
}

// filterFor returns the adapter filter for one backend and whether the
// backend can contribute any device at all.
func (q Query) filterFor(backend device.Backend) (adapter.Filter, bool) {
	if len(q.Backends) > 0 && !slices.Contains(q.Backends, backend) {
		return adapter.Filter{}, false
	}
	f := adapter.Filter{Capability: q.Capability, Room: q.Room}
	if len(q.IDs) == 0 {
		return f, true
	}
	for _, id := range q.IDs {
		if id.Backend() == backend {
			f.LocalIDs = append(f.LocalIDs, id.LocalID())
		}
	}
	return f, len(f.LocalIDs) > 0
}

// Directory composes registered adapters behind one lookup surface and
// routes every call by universal device id.
//
// It keeps the latest listing of every backend as a snapshot so command
// validation does not re-list. A full listing replaces a backend's snapshot
// wholesale.
//
// All public methods are thread-safe.
type Directory struct {
	mu        sync.RWMutex
	adapters  map[device.Backend]adapter.Adapter
	order     []device.Backend
	snapshot  map[device.UniversalID]*device.Device
	onDispose []func(device.Backend)

	logger Logger
	now    func() time.Time
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{
		adapters: make(map[device.Backend]adapter.Adapter),
		snapshot: make(map[device.UniversalID]*device.Device),
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the directory.
func (d *Directory) SetLogger(logger Logger) {
	d.logger = logger
}

// Register adds an adapter. Each backend tag may be registered once.
func (d *Directory) Register(a adapter.Adapter) error {
	if a == nil {
		return ErrNilAdapter
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	b := a.Backend()
	if _, ok := d.adapters[b]; ok {
		return fmt.Errorf("%w: %s", ErrAdapterExists, b)
	}
	d.adapters[b] = a
	d.order = append(d.order, b)
	d.logger.Debug("adapter registered", "backend", b)
	return nil
}

// OnDispose registers fn to be called with the backend tag whenever an
// adapter is removed, so dependents can drop data it produced.
func (d *Directory) OnDispose(fn func(device.Backend)) {
	d.mu.Lock()
	d.onDispose = append(d.onDispose, fn)
	d.mu.Unlock()
}

// Backends returns registered backend tags in registration order.
func (d *Directory) Backends() []device.Backend {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.order)
}

// Adapter returns the adapter for a backend, or a DeviceNotFound error.
func (d *Directory) Adapter(backend device.Backend) (adapter.Adapter, error) {
	d.mu.RLock()
	a, ok := d.adapters[backend]
	d.mu.RUnlock()
	if !ok {
		return nil, device.Errorf(device.KindDeviceNotFound, "route", "", "no adapter for backend %q", backend)
	}
	return a, nil
}

// Registry returns the capability table of a registered backend.
func (d *Directory) Registry(backend device.Backend) (*capability.Registry, error) {
	a, err := d.Adapter(backend)
	if err != nil {
		return nil, err
	}
	return a.Registry(), nil
}

// Initialize initializes every adapter. Adapters that fail are disposed and
// removed; the joined failures are returned.
func (d *Directory) Initialize(ctx context.Context) error {
	var errs []error
	for _, b := range d.Backends() {
		a, err := d.Adapter(b)
		if err != nil {
			continue
		}
		if err := a.Initialize(ctx); err != nil {
			d.logger.Error("adapter initialization failed", "backend", b, "error", err)
			errs = append(errs, fmt.Errorf("initializing %s: %w", b, err))
			d.remove(ctx, b)
			continue
		}
		d.logger.Info("adapter initialized", "backend", b)
	}
	return errors.Join(errs...)
}

// Dispose disposes and removes every adapter.
func (d *Directory) Dispose(ctx context.Context) error {
	var errs []error
	for _, b := range d.Backends() {
		if err := d.remove(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("disposing %s: %w", b, err))
		}
	}
	return errors.Join(errs...)
}

// Unregister disposes and removes one adapter.
func (d *Directory) Unregister(ctx context.Context, backend device.Backend) error {
	if _, err := d.Adapter(backend); err != nil {
		return err
	}
	return d.remove(ctx, backend)
}

func (d *Directory) remove(ctx context.Context, b device.Backend) error {
	d.mu.Lock()
	a, ok := d.adapters[b]
	if !ok {
		d.mu.Unlock()
		return nil
	}
	delete(d.adapters, b)
	d.order = slices.DeleteFunc(d.order, func(x device.Backend) bool { return x == b })
	for id := range d.snapshot {
		if id.Backend() == b {
			delete(d.snapshot, id)
		}
	}
	callbacks := slices.Clone(d.onDispose)
	d.mu.Unlock()

	err := a.Dispose(ctx)
	for _, fn := range callbacks {
		fn(b)
	}
	return err
}

// ListDevices fans out to every matching adapter and concatenates results in
// registration order. An adapter that fails is logged and omitted; the
// listing itself only fails when ctx ends.
func (d *Directory) ListDevices(ctx context.Context, q Query) ([]device.Device, error) {
	backends := d.Backends()
	results := make([][]device.Device, len(backends))

	var g errgroup.Group
	for i, b := range backends {
		filter, ok := q.filterFor(b)
		if !ok {
			continue
		}
		a, err := d.Adapter(b)
		if err != nil {
			continue
		}
		g.Go(func() error {
			devices, err := a.ListDevices(ctx, filter)
			if err != nil {
				d.logger.Warn("adapter listing failed, omitting its devices", "backend", b, "error", err)
				return nil
			}
			d.store(b, devices, filter.IsZero())
			results[i] = devices
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, device.NewError(device.KindOf(err), "list devices", "", err)
	}

	var out []device.Device
	for _, devices := range results {
		for i := range devices {
			out = append(out, *devices[i].DeepCopy())
		}
	}
	return out, nil
}

// store records listed devices. A full listing replaces the backend's
// snapshot; a filtered one only upserts.
func (d *Directory) store(b device.Backend, devices []device.Device, full bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.adapters[b]; !ok {
		return
	}
	if full {
		for id := range d.snapshot {
			if id.Backend() == b {
				delete(d.snapshot, id)
			}
		}
	}
	for i := range devices {
		d.snapshot[devices[i].ID] = devices[i].DeepCopy()
	}
}

// GetDevice resolves a universal id. The snapshot is consulted first; a miss
// asks the owning adapter for that one local id.
// The returned device is a deep copy; callers can safely modify it.
func (d *Directory) GetDevice(ctx context.Context, id device.UniversalID) (*device.Device, error) {
	a, local, err := d.route(id)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	cached, ok := d.snapshot[id]
	d.mu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	devices, err := a.ListDevices(ctx, adapter.Filter{LocalIDs: []string{local}})
	if err != nil {
		return nil, device.AsError(err, "get device", id)
	}
	for i := range devices {
		if devices[i].ID == id {
			d.store(a.Backend(), devices[i:i+1], false)
			return devices[i].DeepCopy(), nil
		}
	}
	return nil, device.NewError(device.KindDeviceNotFound, "get device", id, nil)
}

// SendCommand dispatches one translated command through the owning adapter.
func (d *Directory) SendCommand(ctx context.Context, id device.UniversalID, bc capability.BackendCommand) error {
	a, local, err := d.route(id)
	if err != nil {
		return err
	}
	if err := a.SendRawCommand(ctx, local, bc); err != nil {
		return device.AsError(err, "send command", id)
	}
	return nil
}

// FetchState performs one live state read and translates it through the
// adapter's registry. Keys for capabilities the device does not declare are
// dropped. A backend that reports the device offline yields DeviceUnreachable.
func (d *Directory) FetchState(ctx context.Context, id device.UniversalID) (device.State, error) {
	dev, err := d.GetDevice(ctx, id)
	if err != nil {
		return device.State{}, err
	}
	a, local, err := d.route(id)
	if err != nil {
		return device.State{}, err
	}

	raw, err := a.GetRawState(ctx, local)
	if err != nil {
		return device.State{}, device.AsError(err, "fetch state", id)
	}
	if raw.Online != nil {
		d.setReachable(id, *raw.Online)
		if !*raw.Online {
			return device.State{}, device.NewError(device.KindDeviceUnreachable, "fetch state", id, errors.New("backend reports device offline"))
		}
	}
	return d.translate(a, dev, raw.Values, raw.CapturedAt), nil
}

// TranslateState converts pushed backend-native values for id into a unified
// state, dropping unmapped and undeclared keys.
func (d *Directory) TranslateState(ctx context.Context, id device.UniversalID, values []capability.NativeValue, capturedAt time.Time) (device.State, error) {
	dev, err := d.GetDevice(ctx, id)
	if err != nil {
		return device.State{}, err
	}
	a, _, err := d.route(id)
	if err != nil {
		return device.State{}, err
	}
	return d.translate(a, dev, values, capturedAt), nil
}

// SetReachable records connectivity reported outside a fetch.
func (d *Directory) SetReachable(id device.UniversalID, reachable bool) {
	d.setReachable(id, reachable)
}

func (d *Directory) translate(a adapter.Adapter, dev *device.Device, values []capability.NativeValue, capturedAt time.Time) device.State {
	if capturedAt.IsZero() {
		capturedAt = d.now()
	}
	return a.Registry().TranslateState(dev.ID, dev.Capabilities, values, capturedAt)
}

func (d *Directory) setReachable(id device.UniversalID, reachable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev, ok := d.snapshot[id]; ok {
		dev.Reachable = reachable
	}
}

// HealthCheck checks every adapter concurrently and returns the failures by
// backend. An empty map means all backends are healthy.
func (d *Directory) HealthCheck(ctx context.Context) map[device.Backend]error {
	backends := d.Backends()
	errs := make([]error, len(backends))

	var g errgroup.Group
	for i, b := range backends {
		a, err := d.Adapter(b)
		if err != nil {
			continue
		}
		g.Go(func() error {
			errs[i] = a.HealthCheck(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[device.Backend]error)
	for i, err := range errs {
		if err != nil {
			out[backends[i]] = err
		}
	}
	return out
}

func (d *Directory) route(id device.UniversalID) (adapter.Adapter, string, error) {
	backend, local, err := device.ParseUniversalID(string(id))
	if err != nil {
		return nil, "", err
	}
	d.mu.RLock()
	a, ok := d.adapters[backend]
	d.mu.RUnlock()
	if !ok {
		return nil, "", device.Errorf(device.KindDeviceNotFound, "route", id, "no adapter for backend %q", backend)
	}
	return a, local, nil
}
