package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/device"
)

const kitchenLight = `{"entity_id":"light.kitchen","state":"on","attributes":{
 "friendly_name":"Kitchen","brightness":191,"hs_color":[30,80],"color_temp_kelvin":null,
 "supported_color_modes":["hs","color_temp"]},"last_updated":"2026-01-02T10:00:00Z"}`

const statesJSON = `[` + kitchenLight + `,
 {"entity_id":"sensor.hall_temperature","state":"21.5","attributes":{"device_class":"temperature","unit_of_measurement":"°C"}},
 {"entity_id":"binary_sensor.front_door","state":"unavailable","attributes":{"device_class":"door"}},
 {"entity_id":"sun.sun","state":"above_horizon","attributes":{}}
]`

type serviceCall struct {
	domain, service string
	data            map[string]any
}

type fakeHA struct {
	mu    sync.Mutex
	calls []serviceCall
}

func (f *fakeHA) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /api/", auth(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"API running."}`))
	}))
	mux.HandleFunc("GET /api/states", auth(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(statesJSON))
	}))
	mux.HandleFunc("GET /api/states/{id}", auth(func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "light.kitchen":
			_, _ = w.Write([]byte(kitchenLight))
		case "binary_sensor.front_door":
			_, _ = w.Write([]byte(`{"entity_id":"binary_sensor.front_door","state":"unavailable","attributes":{"device_class":"door"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Entity not found."}`))
		}
	}))
	mux.HandleFunc("POST /api/services/{domain}/{service}", auth(func(w http.ResponseWriter, r *http.Request) {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			t.Errorf("decode service data: %v", err)
		}
		f.mu.Lock()
		f.calls = append(f.calls, serviceCall{domain: r.PathValue("domain"), service: r.PathValue("service"), data: data})
		f.mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	}))
	return mux
}

func newTestAdapter(t *testing.T, token string) (*Adapter, *fakeHA) {
	t.Helper()
	fake := &fakeHA{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(srv.URL+"/", token)
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}
	a, err := New(client)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a, fake
}

func TestNewHTTPClientRequiresConfig(t *testing.T) {
	if _, err := NewHTTPClient("http://ha.local:8123", ""); err != ErrMissingConfig {
		t.Errorf("NewHTTPClient() error = %v, want ErrMissingConfig", err)
	}
}

func TestInitializeRejectsBadToken(t *testing.T) {
	a, _ := newTestAdapter(t, "wrong")
	err := a.Initialize(context.Background())
	if got := device.KindOf(err); got != device.KindAuthentication {
		t.Errorf("Initialize() kind = %q, want authentication_failure (err=%v)", got, err)
	}
}

func TestListDevicesDerivesFeatures(t *testing.T) {
	a, _ := newTestAdapter(t, "tok")
	devices, err := a.ListDevices(context.Background(), adapter.Filter{})
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("ListDevices() = %d devices, want 3 (sun.sun has no features)", len(devices))
	}

	tests := []struct {
		id        device.UniversalID
		name      string
		caps      []device.Capability
		reachable bool
	}{
		{"homeassistant:light.kitchen", "Kitchen",
			[]device.Capability{device.CapSwitch, device.CapDimmer, device.CapColor, device.CapColorTemperature}, true},
		{"homeassistant:sensor.hall_temperature", "sensor.hall_temperature",
			[]device.Capability{device.CapTemperatureSensor}, true},
		{"homeassistant:binary_sensor.front_door", "binary_sensor.front_door",
			[]device.Capability{device.CapContactSensor}, false},
	}
	for i, tt := range tests {
		d := devices[i]
		if d.ID != tt.id || d.Name != tt.name || d.Reachable != tt.reachable {
			t.Errorf("devices[%d] = %s %q reachable=%v, want %s %q reachable=%v",
				i, d.ID, d.Name, d.Reachable, tt.id, tt.name, tt.reachable)
		}
		if len(d.Capabilities) != len(tt.caps) {
			t.Errorf("%s capabilities = %v, want %v", d.ID, d.Capabilities, tt.caps)
			continue
		}
		for j := range tt.caps {
			if d.Capabilities[j] != tt.caps[j] {
				t.Errorf("%s capabilities[%d] = %s, want %s", d.ID, j, d.Capabilities[j], tt.caps[j])
			}
		}
	}
}

func TestListDevicesSingleIDMissing(t *testing.T) {
	a, _ := newTestAdapter(t, "tok")
	devices, err := a.ListDevices(context.Background(), adapter.Filter{LocalIDs: []string{"light.nowhere"}})
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("ListDevices() = %v, want none", devices)
	}
}

func TestGetRawStateTranslates(t *testing.T) {
	a, _ := newTestAdapter(t, "tok")
	raw, err := a.GetRawState(context.Background(), "light.kitchen")
	if err != nil {
		t.Fatalf("GetRawState() error = %v", err)
	}
	if raw.Online == nil || !*raw.Online {
		t.Errorf("Online = %v, want true", raw.Online)
	}
	if raw.CapturedAt.IsZero() || raw.CapturedAt.Year() != 2026 {
		t.Errorf("CapturedAt = %v, want last_updated", raw.CapturedAt)
	}

	declared := []device.Capability{device.CapSwitch, device.CapDimmer, device.CapColor, device.CapColorTemperature}
	state := a.Registry().TranslateState("homeassistant:light.kitchen", declared, raw.Values, raw.CapturedAt)

	checks := map[string]device.Value{
		"switch.state":     device.String("on"),
		"dimmer.level":     device.Number(75),
		"color.hue":        device.Number(30),
		"color.saturation": device.Number(80),
	}
	for key, want := range checks {
		got, ok := state.Get(key)
		if !ok || !got.Equal(want, 0) {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
	if _, ok := state.Get("color-temperature.kelvin"); ok {
		t.Error("null color_temp_kelvin should be dropped")
	}
}

func TestGetRawStateUnavailable(t *testing.T) {
	a, _ := newTestAdapter(t, "tok")
	raw, err := a.GetRawState(context.Background(), "binary_sensor.front_door")
	if err != nil {
		t.Fatalf("GetRawState() error = %v", err)
	}
	if raw.Online == nil || *raw.Online {
		t.Errorf("Online = %v, want false", raw.Online)
	}
}

func TestGetRawStateNotFound(t *testing.T) {
	a, _ := newTestAdapter(t, "tok")
	_, err := a.GetRawState(context.Background(), "light.nowhere")
	if got := device.KindOf(err); got != device.KindDeviceNotFound {
		t.Errorf("GetRawState() kind = %q, want device_not_found", got)
	}
}

func TestSendRawCommandCallsDomainService(t *testing.T) {
	a, fake := newTestAdapter(t, "tok")
	ctx := context.Background()

	tests := []struct {
		cmd     device.Command
		service string
		data    map[string]any
	}{
		{
			cmd:     device.Command{Capability: device.CapDimmer, Name: device.CmdSetLevel, Args: []device.Value{device.Number(75)}},
			service: "turn_on",
			data:    map[string]any{"entity_id": "light.kitchen", "brightness": 191.0},
		},
		{
			cmd:     device.Command{Capability: device.CapColor, Name: device.CmdSetColor, Args: []device.Value{device.Number(200), device.Number(40)}},
			service: "turn_on",
			data:    map[string]any{"entity_id": "light.kitchen", "hs_color": []any{200.0, 40.0}},
		},
		{
			cmd:     device.Command{Capability: device.CapSwitch, Name: device.CmdOff},
			service: "turn_off",
			data:    map[string]any{"entity_id": "light.kitchen"},
		},
	}

	for _, tt := range tests {
		bc, err := a.Registry().ToBackendCommand(tt.cmd)
		if err != nil {
			t.Fatalf("ToBackendCommand(%s) error = %v", tt.cmd, err)
		}
		if err := a.SendRawCommand(ctx, "light.kitchen", bc); err != nil {
			t.Fatalf("SendRawCommand(%s) error = %v", tt.cmd, err)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.calls) != len(tests) {
		t.Fatalf("service calls = %d, want %d", len(fake.calls), len(tests))
	}
	for i, tt := range tests {
		call := fake.calls[i]
		if call.domain != "light" || call.service != tt.service {
			t.Errorf("call[%d] = %s.%s, want light.%s", i, call.domain, call.service, tt.service)
		}
		got, _ := json.Marshal(call.data)
		want, _ := json.Marshal(tt.data)
		if string(got) != string(want) {
			t.Errorf("call[%d] data = %s, want %s", i, got, want)
		}
	}
}

func TestSensorReadingsUseFeatureName(t *testing.T) {
	e := Entity{
		EntityID:   "sensor.kitchen_energy",
		State:      "12.5",
		Attributes: map[string]any{"device_class": "energy"},
	}
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	state := reg.TranslateState("homeassistant:sensor.kitchen_energy",
		[]device.Capability{device.CapEnergyMeter}, nativeValues(e), e.LastUpdated)

	got, ok := state.Get("energy-meter.energy")
	if !ok || !got.Equal(device.Number(12.5), 0) {
		t.Errorf("energy-meter.energy = %v, want 12.5", got)
	}
	if _, ok := state.Get("energy-meter.power"); ok {
		t.Error("energy entity should not report power")
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	for _, e := range entries() {
		c, ok := reg.MapFromBackend(e.Native)
		if !ok {
			t.Errorf("MapFromBackend(%s) missing", e.Native)
			continue
		}
		if back, _ := reg.MapToBackend(c); back != e.Native {
			t.Errorf("round trip %s -> %s -> %s", e.Native, c, back)
		}
		for _, n := range e.Detect {
			if got, ok := reg.MapFromBackend(n); ok {
				t.Errorf("detection name %s maps to %s", n, got)
			}
			if got := reg.Capabilities([]string{n}); len(got) != 1 || got[0] != e.Capability {
				t.Errorf("Capabilities([%s]) = %v, want [%s]", n, got, e.Capability)
			}
		}
		for _, am := range e.Attributes {
			if am.Source != "" && am.Source != e.Native && !slices.Contains(e.Detect, am.Source) {
				t.Errorf("%s.%s reported under undetected capability %s", e.Capability, am.Attribute, am.Source)
			}
		}
	}
}
