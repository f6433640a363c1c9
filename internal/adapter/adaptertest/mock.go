// Package adaptertest provides an in-memory adapter.Adapter for tests.
//
// The mock keeps backend-native values per device, applies dispatched
// commands to them (optionally after a delay, to model eventual
// consistency), counts every call, and lets tests inject errors.
package adaptertest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// entries is a small table whose native attribute names are unique.
func entries() []capability.Entry {
	return []capability.Entry{
		{
			Capability: device.CapSwitch,
			Native:     "switch",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "switch"}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdOn, Native: "on"},
				{Command: device.CmdOff, Native: "off"},
				{Command: device.CmdToggle, Native: "toggle"},
			},
		},
		{
			Capability: device.CapDimmer,
			Native:     "switchLevel",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: "level", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdSetLevel, Native: "setLevel", Params: []capability.ParamMapping{{Native: "level", Convert: capability.Numeric()}}},
			},
		},
		{
			Capability: device.CapLock,
			Native:     "lock",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "lock"}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdLock, Native: "lock"},
				{Command: device.CmdUnlock, Native: "unlock"},
			},
		},
		{
			Capability: device.CapTemperatureSensor,
			Native:     "temperatureMeasurement",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrTemperature, Native: "temperature", Convert: capability.Numeric()}},
		},
	}
}

type mockDevice struct {
	dev    device.Device
	values map[string]any
	online bool
}

// Adapter is an in-memory backend. Exported fields may be set before use;
// use the setters once the adapter is shared with other goroutines.
type Adapter struct {
	backend  device.Backend
	registry *capability.Registry

	// ApplyDelay defers the effect of a dispatched command on device state.
	ApplyDelay time.Duration

	mu       sync.Mutex
	devices  map[string]*mockDevice
	order    []string
	initErr  error
	listErr  error
	stateErr []error // consumed one per GetRawState call
	sendErr  []error // consumed one per SendRawCommand call
	sent     []capability.BackendCommand
	disposed bool

	InitCalls  atomic.Int32
	ListCalls  atomic.Int32
	StateCalls atomic.Int32
	SendCalls  atomic.Int32
}

// New creates a mock adapter reporting the given backend tag.
func New(backend device.Backend) *Adapter {
	reg, err := capability.NewRegistry(backend, entries()...)
	if err != nil {
		panic(err) // static table
	}
	return &Adapter{
		backend:  backend,
		registry: reg,
		devices:  make(map[string]*mockDevice),
	}
}

// AddDevice adds an online device with zero-valued attributes.
func (a *Adapter) AddDevice(localID, name string, caps ...device.Capability) device.UniversalID {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := device.NewUniversalID(a.backend, localID)
	md := &mockDevice{
		dev: device.Device{
			ID: id, Backend: a.backend, LocalID: localID, Name: name,
			Capabilities: caps, Reachable: true,
		},
		values: make(map[string]any),
		online: true,
	}
	for _, c := range caps {
		switch c {
		case device.CapSwitch:
			md.values["switch"] = "off"
		case device.CapDimmer:
			md.values["level"] = 0.0
		case device.CapLock:
			md.values["lock"] = "unlocked"
		case device.CapTemperatureSensor:
			md.values["temperature"] = 20.0
		}
	}
	a.devices[localID] = md
	a.order = append(a.order, localID)
	return id
}

// SetNative overwrites one native attribute.
func (a *Adapter) SetNative(localID, attr string, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if md, ok := a.devices[localID]; ok {
		md.values[attr] = v
	}
}

// SetOnline sets whether GetRawState reports the device online.
func (a *Adapter) SetOnline(localID string, online bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if md, ok := a.devices[localID]; ok {
		md.online = online
		md.dev.Reachable = online
	}
}

// FailInitialize makes Initialize return err.
func (a *Adapter) FailInitialize(err error) {
	a.mu.Lock()
	a.initErr = err
	a.mu.Unlock()
}

// FailList makes ListDevices return err; nil restores it.
func (a *Adapter) FailList(err error) {
	a.mu.Lock()
	a.listErr = err
	a.mu.Unlock()
}

// FailState queues errors for the next GetRawState calls.
func (a *Adapter) FailState(errs ...error) {
	a.mu.Lock()
	a.stateErr = append(a.stateErr, errs...)
	a.mu.Unlock()
}

// FailSend queues errors for the next SendRawCommand calls.
func (a *Adapter) FailSend(errs ...error) {
	a.mu.Lock()
	a.sendErr = append(a.sendErr, errs...)
	a.mu.Unlock()
}

// Sent returns every command that reached the backend.
func (a *Adapter) Sent() []capability.BackendCommand {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]capability.BackendCommand, len(a.sent))
	copy(out, a.sent)
	return out
}

// Disposed reports whether Dispose was called.
func (a *Adapter) Disposed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.disposed
}

// Backend implements adapter.Adapter.
func (a *Adapter) Backend() device.Backend { return a.backend }

// Registry implements adapter.Adapter.
func (a *Adapter) Registry() *capability.Registry { return a.registry }

// Initialize implements adapter.Adapter.
func (a *Adapter) Initialize(context.Context) error {
	a.InitCalls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initErr != nil {
		return device.AsError(a.initErr, "initialize", "")
	}
	return nil
}

// Dispose implements adapter.Adapter.
func (a *Adapter) Dispose(context.Context) error {
	a.mu.Lock()
	a.disposed = true
	a.mu.Unlock()
	return nil
}

// HealthCheck implements adapter.Adapter.
func (a *Adapter) HealthCheck(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listErr != nil {
		return device.AsError(a.listErr, "health check", "")
	}
	return nil
}

// ListDevices implements adapter.Adapter.
func (a *Adapter) ListDevices(_ context.Context, filter adapter.Filter) ([]device.Device, error) {
	a.ListCalls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listErr != nil {
		return nil, device.AsError(a.listErr, "list devices", "")
	}
	out := make([]device.Device, 0, len(a.order))
	for _, local := range a.order {
		out = append(out, *a.devices[local].dev.DeepCopy())
	}
	return filter.Apply(out), nil
}

// GetRawState implements adapter.Adapter.
func (a *Adapter) GetRawState(_ context.Context, localID string) (adapter.RawState, error) {
	a.StateCalls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()

	id := device.NewUniversalID(a.backend, localID)
	if len(a.stateErr) > 0 {
		err := a.stateErr[0]
		a.stateErr = a.stateErr[1:]
		if err != nil {
			return adapter.RawState{}, device.AsError(err, "get state", id)
		}
	}
	md, ok := a.devices[localID]
	if !ok {
		return adapter.RawState{}, device.NewError(device.KindDeviceNotFound, "get state", id, nil)
	}

	values := make([]capability.NativeValue, 0, len(md.values))
	for k, v := range md.values {
		values = append(values, capability.NativeValue{Attribute: k, Value: v})
	}
	online := md.online
	return adapter.RawState{Values: values, CapturedAt: time.Now(), Online: &online}, nil
}

// SendRawCommand implements adapter.Adapter. The command's effect is applied
// to the native values after ApplyDelay.
func (a *Adapter) SendRawCommand(_ context.Context, localID string, bc capability.BackendCommand) error {
	a.SendCalls.Add(1)
	a.mu.Lock()
	defer a.mu.Unlock()

	id := device.NewUniversalID(a.backend, localID)
	if len(a.sendErr) > 0 {
		err := a.sendErr[0]
		a.sendErr = a.sendErr[1:]
		if err != nil {
			return device.AsError(err, "send command", id)
		}
	}
	if _, ok := a.devices[localID]; !ok {
		return device.NewError(device.KindDeviceNotFound, "send command", id, nil)
	}
	a.sent = append(a.sent, bc)

	if a.ApplyDelay <= 0 {
		a.applyLocked(localID, bc)
		return nil
	}
	time.AfterFunc(a.ApplyDelay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.applyLocked(localID, bc)
	})
	return nil
}

func (a *Adapter) applyLocked(localID string, bc capability.BackendCommand) {
	md, ok := a.devices[localID]
	if !ok {
		return
	}
	switch bc.Command {
	case "on", "off":
		md.values["switch"] = bc.Command
	case "toggle":
		if md.values["switch"] == "on" {
			md.values["switch"] = "off"
		} else {
			md.values["switch"] = "on"
		}
	case "setLevel":
		if len(bc.Args) > 0 {
			md.values["level"] = bc.Args[0].Value
		}
	case "lock":
		md.values["lock"] = "locked"
	case "unlock":
		md.values["lock"] = "unlocked"
	}
}
