// Package homeassistant adapts the Home Assistant REST API to the unified
// device model. Each entity with at least one recognised feature is exposed
// as one device whose local id is the entity id.
package homeassistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Adapter implements adapter.Adapter for Home Assistant.
type Adapter struct {
	client   Client
	registry *capability.Registry
	logger   adapter.Logger
	now      func() time.Time
}

// New creates a Home Assistant adapter.
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

// Backend returns the Home Assistant backend tag.
func (a *Adapter) Backend() device.Backend { return device.BackendHomeAssistant }

// Registry returns the feature table.
func (a *Adapter) Registry() *capability.Registry { return a.registry }

// Initialize verifies the URL and token.
func (a *Adapter) Initialize(ctx context.Context) error {
	if err := a.client.Ping(ctx); err != nil {
		return classify(err, "initialize", "")
	}
	a.logger.Info("home assistant adapter initialized")
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

// ListDevices lists entities that carry at least one mapped capability.
func (a *Adapter) ListDevices(ctx context.Context, filter adapter.Filter) ([]device.Device, error) {
	if len(filter.LocalIDs) == 1 {
		e, err := a.client.State(ctx, filter.LocalIDs[0])
		if err != nil {
			if device.KindOf(classify(err, "", "")) == device.KindDeviceNotFound {
				return nil, nil
			}
			return nil, classify(err, "list devices", device.NewUniversalID(device.BackendHomeAssistant, filter.LocalIDs[0]))
		}
		d, ok := a.toDevice(e)
		if !ok {
			return nil, nil
		}
		return filter.Apply([]device.Device{d}), nil
	}

	entities, err := a.client.States(ctx)
	if err != nil {
		return nil, classify(err, "list devices", "")
	}
	out := make([]device.Device, 0, len(entities))
	for _, e := range entities {
		if d, ok := a.toDevice(e); ok {
			out = append(out, d)
		}
	}
	return filter.Apply(out), nil
}

// GetRawState reads one entity.
func (a *Adapter) GetRawState(ctx context.Context, localID string) (adapter.RawState, error) {
	e, err := a.client.State(ctx, localID)
	if err != nil {
		return adapter.RawState{}, classify(err, "get state", device.NewUniversalID(device.BackendHomeAssistant, localID))
	}

	captured := e.LastUpdated
	if captured.IsZero() {
		captured = a.now()
	}
	online := e.Available()
	return adapter.RawState{
		Values:     nativeValues(e),
		CapturedAt: captured,
		Online:     &online,
	}, nil
}

// SendRawCommand calls the service named by bc.Command in the entity's domain.
// Hue and saturation arguments are combined into the hs_color pair.
func (a *Adapter) SendRawCommand(ctx context.Context, localID string, bc capability.BackendCommand) error {
	id := device.NewUniversalID(device.BackendHomeAssistant, localID)
	domain, _, ok := strings.Cut(localID, ".")
	if !ok || domain == "" {
		return device.Errorf(device.KindDeviceNotFound, "send command", id, "malformed entity id %q", localID)
	}

	data := map[string]any{"entity_id": localID}
	var hs [2]any
	var hasHS bool
	for _, arg := range bc.Args {
		switch arg.Name {
		case paramHue:
			hs[0], hasHS = arg.Value, true
		case paramSat:
			hs[1], hasHS = arg.Value, true
		default:
			data[arg.Name] = arg.Value
		}
	}
	if hasHS {
		data[featHS] = []any{hs[0], hs[1]}
	}

	if err := a.client.CallService(ctx, domain, bc.Command, data); err != nil {
		return classify(err, "send command", id)
	}
	return nil
}

func (a *Adapter) toDevice(e Entity) (device.Device, bool) {
	caps := a.registry.Capabilities(features(e))
	if len(caps) == 0 {
		return device.Device{}, false
	}
	d := device.Device{
		ID:           device.NewUniversalID(device.BackendHomeAssistant, e.EntityID),
		Backend:      device.BackendHomeAssistant,
		LocalID:      e.EntityID,
		Name:         e.Name(),
		Capabilities: caps,
		Reachable:    e.Available(),
		Extra:        map[string]string{"domain": e.Domain()},
	}
	if dc := e.deviceClass(); dc != "" {
		d.Extra["device_class"] = dc
	}
	return d, true
}

// nativeValues emits the entity state and attributes once per feature.
// Sensor readings are emitted under the feature name; the hs_color pair is
// split into its hue and saturation components.
func nativeValues(e Entity) []capability.NativeValue {
	feats := features(e)
	sensor := isSensor(e.Domain())
	out := make([]capability.NativeValue, 0, len(feats)*(len(e.Attributes)+1))
	for _, f := range feats {
		if sensor {
			out = append(out, capability.NativeValue{Capability: f, Attribute: f, Value: e.State})
		} else {
			out = append(out, capability.NativeValue{Capability: f, Attribute: attrState, Value: e.State})
		}
		for k, v := range e.Attributes {
			if v == nil {
				continue
			}
			if k == featHS {
				if pair, ok := v.([]any); ok && len(pair) == 2 {
					out = append(out,
						capability.NativeValue{Capability: f, Attribute: attrHSHue, Value: pair[0]},
						capability.NativeValue{Capability: f, Attribute: attrHSSat, Value: pair[1]})
				}
				continue
			}
			out = append(out, capability.NativeValue{Capability: f, Attribute: k, Value: v})
		}
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
