// Package tuya adapts the Tuya OpenAPI to the unified device model.
package tuya

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Adapter implements adapter.Adapter for Tuya.
type Adapter struct {
	client   Client
	registry *capability.Registry
	logger   adapter.Logger
	now      func() time.Time
}

// New creates a Tuya adapter.
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

// Backend returns the Tuya backend tag.
func (a *Adapter) Backend() device.Backend { return device.BackendTuya }

// Registry returns the Tuya DP-code table.
func (a *Adapter) Registry() *capability.Registry { return a.registry }

// Initialize obtains an access token.
func (a *Adapter) Initialize(ctx context.Context) error {
	if err := a.client.Authenticate(ctx); err != nil {
		return classify(err, "initialize", "")
	}
	a.logger.Info("tuya adapter initialized")
	return nil
}

// Dispose releases pooled connections.
func (a *Adapter) Dispose(context.Context) error {
	a.client.CloseIdleConnections()
	return nil
}

// HealthCheck lists devices, which exercises the token and signing path.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if _, err := a.client.ListDevices(ctx); err != nil {
		return classify(err, "health check", "")
	}
	return nil
}

// ListDevices lists devices and translates them.
func (a *Adapter) ListDevices(ctx context.Context, filter adapter.Filter) ([]device.Device, error) {
	if len(filter.LocalIDs) == 1 {
		d, err := a.client.DeviceInfo(ctx, filter.LocalIDs[0])
		if err != nil {
			if device.KindOf(classify(err, "", "")) == device.KindDeviceNotFound {
				return nil, nil
			}
			return nil, classify(err, "list devices", device.NewUniversalID(device.BackendTuya, filter.LocalIDs[0]))
		}
		return filter.Apply([]device.Device{a.toDevice(d)}), nil
	}

	raw, err := a.client.ListDevices(ctx)
	if err != nil {
		return nil, classify(err, "list devices", "")
	}
	out := make([]device.Device, 0, len(raw))
	for _, d := range raw {
		out = append(out, a.toDevice(d))
	}
	return filter.Apply(out), nil
}

// GetRawState reads the device's data points.
func (a *Adapter) GetRawState(ctx context.Context, localID string) (adapter.RawState, error) {
	d, err := a.client.DeviceInfo(ctx, localID)
	if err != nil {
		return adapter.RawState{}, classify(err, "get state", device.NewUniversalID(device.BackendTuya, localID))
	}

	online := d.Online
	return adapter.RawState{
		Values:     nativeValues(d.Status),
		CapturedAt: a.now(),
		Online:     &online,
	}, nil
}

// SendRawCommand writes one data point. The colour DP takes an object
// built from all arguments; every other DP takes the single "value" argument.
func (a *Adapter) SendRawCommand(ctx context.Context, localID string, bc capability.BackendCommand) error {
	id := device.NewUniversalID(device.BackendTuya, localID)

	dp := DataPoint{Code: bc.Capability}
	if bc.Capability == codeColour {
		m := make(map[string]any, len(bc.Args))
		for _, arg := range bc.Args {
			m[arg.Name] = arg.Value
		}
		dp.Value = m
	} else {
		if len(bc.Args) == 0 {
			return device.Errorf(device.KindInvalidCommand, "send command", id, "no value for %s", bc.Capability)
		}
		dp.Value = bc.Args[0].Value
	}

	if err := a.client.SendCommands(ctx, localID, []DataPoint{dp}); err != nil {
		return classify(err, "send command", id)
	}
	return nil
}

func (a *Adapter) toDevice(d Device) device.Device {
	out := device.Device{
		ID:           device.NewUniversalID(device.BackendTuya, d.ID),
		Backend:      device.BackendTuya,
		LocalID:      d.ID,
		Name:         d.Name,
		Capabilities: a.registry.Capabilities(detectCodes(d)),
		Reachable:    d.Online,
		Extra:        map[string]string{"category": d.Category},
	}
	if d.ProductName != "" {
		p := d.ProductName
		out.Model = &p
	}
	return out
}

// detectCodes returns the DP codes used for capability detection. The bare
// switch DP means a valve only on valve controllers.
func detectCodes(d Device) []string {
	codes := d.Codes()
	if d.Category == categoryValve {
		return codes
	}
	return slices.DeleteFunc(codes, func(c string) bool { return c == codeSwitch })
}

// nativeValues flattens data points, expanding the colour object.
func nativeValues(status []DataPoint) []capability.NativeValue {
	out := make([]capability.NativeValue, 0, len(status))
	for _, dp := range status {
		if dp.Code != codeColour {
			out = append(out, capability.NativeValue{Attribute: dp.Code, Value: dp.Value})
			continue
		}
		hsv, ok := parseColour(dp.Value)
		if !ok {
			continue
		}
		for _, k := range []string{"h", "s"} {
			if v, ok := hsv[k]; ok {
				out = append(out, capability.NativeValue{Attribute: codeColour + "." + k, Value: v})
			}
		}
	}
	return out
}

// parseColour accepts the colour DP as an object or as a JSON-encoded string.
func parseColour(v any) (map[string]any, bool) {
	switch c := v.(type) {
	case map[string]any:
		return c, true
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(c), &m); err != nil {
			return nil, false
		}
		return m, true
	default:
		return nil, false
	}
}

// classify converts client errors into structured device errors.
func classify(err error, op string, id device.UniversalID) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return adapter.TransportError(err, op, id)
	}
	if apiErr.Code == 0 {
		return adapter.StatusError(apiErr.StatusCode, apiErr.RetryAfter, op, id, err)
	}

	kind := device.KindUnknown
	switch apiErr.Code {
	case CodeSignInvalid, CodeTokenInvalid, CodeTokenExpired, CodePermissionDenied:
		kind = device.KindAuthentication
	case CodeDeviceOffline:
		kind = device.KindDeviceUnreachable
	case CodeCommandInvalid:
		kind = device.KindInvalidCommand
	case CodeTooFrequent:
		kind = device.KindRateLimited
	}
	return device.NewError(kind, op, id, err)
}
