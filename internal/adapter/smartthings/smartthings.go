// Package smartthings adapts the SmartThings cloud API to the unified device model.
package smartthings

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Adapter implements adapter.Adapter for SmartThings.
type Adapter struct {
	client   Client
	registry *capability.Registry
	logger   adapter.Logger
	now      func() time.Time
}

// New creates a SmartThings adapter.
func New(client Client) (*Adapter, error) {
	reg, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return &Adapter{
		client:   client,
		registry: reg,
		logger:   adapter.NopLogger(),
		now:      time.Now,
	}, nil
}

// SetLogger sets the logger for the adapter and its registry.
func (a *Adapter) SetLogger(logger adapter.Logger) {
	a.logger = logger
	a.registry.SetLogger(logger)
}

// Backend returns the SmartThings backend tag.
func (a *Adapter) Backend() device.Backend { return device.BackendSmartThings }

// Registry returns the SmartThings capability table.
func (a *Adapter) Registry() *capability.Registry { return a.registry }

// Initialize verifies the token.
func (a *Adapter) Initialize(ctx context.Context) error {
	if err := a.client.Ping(ctx); err != nil {
		return classify(err, "initialize", "")
	}
	a.logger.Info("smartthings adapter initialized")
	return nil
}

// Dispose releases pooled connections.
func (a *Adapter) Dispose(context.Context) error {
	a.client.CloseIdleConnections()
	return nil
}

// HealthCheck pings the API.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.client.Ping(ctx); err != nil {
		return classify(err, "health check", "")
	}
	return nil
}

// ListDevices lists devices and translates them. LocalIDs are pushed down
// to the API; the remaining filter fields are applied locally.
func (a *Adapter) ListDevices(ctx context.Context, filter adapter.Filter) ([]device.Device, error) {
	raw, err := a.client.ListDevices(ctx, filter.LocalIDs)
	if err != nil {
		return nil, classify(err, "list devices", "")
	}

	out := make([]device.Device, 0, len(raw))
	for _, d := range raw {
		out = append(out, a.toDevice(d))
	}
	return filter.Apply(out), nil
}

// GetRawState reads the main component status and health.
func (a *Adapter) GetRawState(ctx context.Context, localID string) (adapter.RawState, error) {
	id := device.NewUniversalID(device.BackendSmartThings, localID)

	status, err := a.client.DeviceStatus(ctx, localID)
	if err != nil {
		return adapter.RawState{}, classify(err, "get state", id)
	}

	raw := adapter.RawState{CapturedAt: a.now()}
	for capName, attrs := range status {
		for attrName, st := range attrs {
			if st.Value == nil {
				continue
			}
			raw.Values = append(raw.Values, capability.NativeValue{
				Capability: capName,
				Attribute:  attrName,
				Value:      st.Value,
			})
		}
	}

	health, err := a.client.DeviceHealth(ctx, localID)
	if err != nil {
		a.logger.Debug("device health unavailable", "device", id, "error", err)
		return raw, nil
	}
	online := health.Online()
	raw.Online = &online
	return raw, nil
}

// SendRawCommand executes one translated command on the main component.
func (a *Adapter) SendRawCommand(ctx context.Context, localID string, bc capability.BackendCommand) error {
	cmd := Command{Component: "main", Capability: bc.Capability, Command: bc.Command}

	// setColor takes a single colour map rather than positional arguments.
	if bc.Command == "setColor" {
		m := make(map[string]any, len(bc.Args))
		for _, arg := range bc.Args {
			m[arg.Name] = arg.Value
		}
		cmd.Arguments = []any{m}
	} else {
		for _, arg := range bc.Args {
			cmd.Arguments = append(cmd.Arguments, arg.Value)
		}
	}

	if err := a.client.ExecuteCommands(ctx, localID, []Command{cmd}); err != nil {
		return classify(err, "send command", device.NewUniversalID(device.BackendSmartThings, localID))
	}
	return nil
}

func (a *Adapter) toDevice(d Device) device.Device {
	var natives []string
	for _, comp := range d.Components {
		for _, c := range comp.Capabilities {
			natives = append(natives, c.ID)
		}
	}

	name := d.Label
	if name == "" {
		name = d.Name
	}

	out := device.Device{
		ID:           device.NewUniversalID(device.BackendSmartThings, d.DeviceID),
		Backend:      device.BackendSmartThings,
		LocalID:      d.DeviceID,
		Name:         name,
		Capabilities: a.registry.Capabilities(natives),
		Reachable:    true,
		Extra:        map[string]string{},
	}
	if d.ManufacturerName != "" {
		m := d.ManufacturerName
		out.Manufacturer = &m
	}
	if d.DeviceTypeName != "" {
		m := d.DeviceTypeName
		out.Model = &m
	}
	if d.RoomID != "" {
		out.Extra["room_id"] = d.RoomID
	}
	if d.LocationID != "" {
		out.Extra["location_id"] = d.LocationID
	}
	return out
}

// classify converts client errors into structured device errors.
func classify(err error, op string, id device.UniversalID) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return adapter.StatusError(apiErr.StatusCode, apiErr.RetryAfter, op, id, err)
	}
	return adapter.TransportError(err, op, id)
}
