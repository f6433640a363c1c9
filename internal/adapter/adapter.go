// Package adapter defines the contract every smart-home backend implements.
//
// An Adapter owns its wire protocol, credentials and native payload shapes.
// Everything it returns to the core is either already unified (device.Device)
// or carried as NativeValues to be translated by its capability Registry.
package adapter

import (
	"context"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Logger defines the logging interface used by adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Adapter is one backend integration.
//
// Implementations must be safe for concurrent use after Initialize returns.
// Errors should be *device.Error values carrying the appropriate kind;
// authentication failures surface from Initialize.
type Adapter interface {
	// Backend returns the tag used in universal device ids.
	Backend() device.Backend

	// Registry returns the adapter's capability mapping table.
	Registry() *capability.Registry

	// Initialize authenticates and prepares the adapter.
	Initialize(ctx context.Context) error

	// Dispose releases resources. The adapter is unusable afterwards.
	Dispose(ctx context.Context) error

	// HealthCheck reports whether the backend is currently reachable.
	HealthCheck(ctx context.Context) error

	// ListDevices returns the devices matching filter.
	ListDevices(ctx context.Context, filter Filter) ([]device.Device, error)

	// GetRawState fetches the backend-native state of one device.
	GetRawState(ctx context.Context, localID string) (RawState, error)

	// SendRawCommand dispatches one translated command.
	SendRawCommand(ctx context.Context, localID string, cmd capability.BackendCommand) error
}

// Filter narrows a device listing. Zero fields match everything.
type Filter struct {
	LocalIDs   []string
	Capability device.Capability
	Room       string
}

// IsZero reports whether the filter matches every device.
func (f Filter) IsZero() bool {
	return len(f.LocalIDs) == 0 && f.Capability == "" && f.Room == ""
}

// Match reports whether d satisfies the filter.
func (f Filter) Match(d device.Device) bool {
	if len(f.LocalIDs) > 0 && !slices.Contains(f.LocalIDs, d.LocalID) {
		return false
	}
	if f.Capability != "" && !d.HasCapability(f.Capability) {
		return false
	}
	if f.Room != "" && (d.Room == nil || *d.Room != f.Room) {
		return false
	}
	return true
}

// Apply returns the devices in ds that match the filter.
func (f Filter) Apply(ds []device.Device) []device.Device {
	if f.IsZero() {
		return ds
	}
	out := make([]device.Device, 0, len(ds))
	for _, d := range ds {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

// RawState is a backend-native state snapshot.
type RawState struct {
	Values     []capability.NativeValue
	CapturedAt time.Time
	Online     *bool // nil when the backend does not report connectivity
}
