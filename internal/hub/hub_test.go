package hub

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/adapter/adaptertest"
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/directory"
	"github.com/nerrad567/gray-logic-hub/internal/executor"
	"github.com/nerrad567/gray-logic-hub/internal/retry"
	"github.com/nerrad567/gray-logic-hub/internal/statecache"
)

const (
	dimmerID device.UniversalID = "smartthings:d1"
	switchID device.UniversalID = "smartthings:d2"
)

func testConfig() Config {
	fast := retry.Policy{Attempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.Cache.Retry = &fast
	cfg.Executor.Retry = fast
	cfg.Executor.PollInterval = 25 * time.Millisecond
	cfg.Executor.ConfirmTimeout = 2 * time.Second
	return cfg
}

func newTestHub(t *testing.T) (*Hub, *adaptertest.Adapter) {
	t.Helper()
	mock := adaptertest.New(device.BackendSmartThings)
	mock.AddDevice("d1", "Kitchen Dimmer", device.CapSwitch, device.CapDimmer)
	mock.AddDevice("d2", "Hall Switch", device.CapSwitch)

	dir := directory.New()
	if err := dir.Register(mock); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	h := New(dir, testConfig())
	if err := h.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h, mock
}

func setLevel(n float64) device.Command {
	return device.Command{Capability: device.CapDimmer, Name: device.CmdSetLevel, Args: []device.Value{device.Number(n)}}
}

func TestExecuteCommandConfirmsEventuallyConsistentDimmer(t *testing.T) {
	h, mock := newTestHub(t)
	mock.ApplyDelay = 150 * time.Millisecond

	res := h.ExecuteCommand(context.Background(), dimmerID, setLevel(75), executor.Options{})
	if !res.Success {
		t.Fatalf("ExecuteCommand() success = false, err = %v", res.Err)
	}
	if res.NewState == nil {
		t.Fatal("NewState = nil, want confirmed state")
	}
	if v, _ := res.NewState.Get("dimmer.level"); !v.Equal(device.Number(75), 0) {
		t.Errorf("dimmer.level = %v, want 75", v)
	}
	if got := mock.SendCalls.Load(); got != 1 {
		t.Errorf("SendCalls = %d, want 1", got)
	}
}

func TestExecuteCommandUndeclaredCapabilityNeverDispatches(t *testing.T) {
	h, mock := newTestHub(t)

	res := h.ExecuteCommand(context.Background(), switchID, setLevel(50), executor.Options{})
	if res.Success {
		t.Fatal("ExecuteCommand() success = true, want false")
	}
	if res.ErrorKind() != device.KindCapabilityNotSupported {
		t.Errorf("ErrorKind() = %q, want capability_not_supported", res.ErrorKind())
	}
	if got := mock.SendCalls.Load(); got != 0 {
		t.Errorf("SendCalls = %d, want 0", got)
	}
}

func TestGetDeviceStateRetriesFetch(t *testing.T) {
	h, mock := newTestHub(t)
	netErr := device.NewError(device.KindNetwork, "get state", "", errors.New("connection reset"))
	mock.FailState(netErr, netErr)

	state, err := h.GetDeviceState(context.Background(), switchID)
	if err != nil {
		t.Fatalf("GetDeviceState() error = %v", err)
	}
	if v, _ := state.Get("switch.state"); !v.Equal(device.String("off"), 0) {
		t.Errorf("switch.state = %v, want off", v)
	}
	if got := mock.StateCalls.Load(); got != 3 {
		t.Errorf("StateCalls = %d, want 3", got)
	}
}

func TestGetDeviceStateWithinTTL(t *testing.T) {
	h, mock := newTestHub(t)
	ctx := context.Background()

	first, err := h.GetDeviceState(ctx, dimmerID)
	if err != nil {
		t.Fatalf("GetDeviceState() error = %v", err)
	}
	second, err := h.GetDeviceState(ctx, dimmerID)
	if err != nil {
		t.Fatalf("GetDeviceState() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("states differ within TTL:\n%+v\n%+v", first, second)
	}
	if got := mock.StateCalls.Load(); got != 1 {
		t.Errorf("StateCalls = %d, want 1", got)
	}
}

func TestGetDeviceStateSingleFlight(t *testing.T) {
	h, mock := newTestHub(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.GetDeviceState(ctx, dimmerID); err != nil {
				t.Errorf("GetDeviceState() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mock.StateCalls.Load(); got != 1 {
		t.Errorf("StateCalls = %d, want 1", got)
	}
}

func TestRefreshDeviceStateBypassesCache(t *testing.T) {
	h, mock := newTestHub(t)
	ctx := context.Background()

	if _, err := h.GetDeviceState(ctx, dimmerID); err != nil {
		t.Fatalf("GetDeviceState() error = %v", err)
	}
	mock.SetNative("d1", "level", 30.0)

	state, err := h.RefreshDeviceState(ctx, dimmerID)
	if err != nil {
		t.Fatalf("RefreshDeviceState() error = %v", err)
	}
	if v, _ := state.Get("dimmer.level"); !v.Equal(device.Number(30), 0) {
		t.Errorf("dimmer.level = %v, want 30", v)
	}
	if got := mock.StateCalls.Load(); got != 2 {
		t.Errorf("StateCalls = %d, want 2", got)
	}
}

func TestExecuteBatchParallelKeepsOrder(t *testing.T) {
	h, _ := newTestHub(t)
	items := []executor.BatchItem{
		{DeviceID: dimmerID, Command: setLevel(20)},
		{DeviceID: switchID, Command: setLevel(20)}, // not declared
		{DeviceID: switchID, Command: device.Command{Capability: device.CapSwitch, Name: device.CmdOn}},
	}

	results := h.ExecuteBatch(context.Background(), items, executor.BatchOptions{
		Mode:    executor.Parallel,
		Options: executor.Options{Confirm: executor.ConfirmOff},
	})
	if len(results) != len(items) {
		t.Fatalf("results = %d, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.DeviceID != items[i].DeviceID || res.Command.String() != items[i].Command.String() {
			t.Errorf("results[%d] = %s %s, want %s %s", i, res.DeviceID, res.Command, items[i].DeviceID, items[i].Command)
		}
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Errorf("success = %v %v %v, want true false true", results[0].Success, results[1].Success, results[2].Success)
	}
}

func TestPushRawStateTranslatesAndPublishes(t *testing.T) {
	h, mock := newTestHub(t)
	ctx := context.Background()
	updates, cancel := h.Subscribe(4)
	defer cancel()

	state, err := h.PushRawState(ctx, dimmerID, adapter.RawState{
		Values: []capability.NativeValue{
			{Attribute: "level", Value: 40.0},
			{Attribute: "firmwareVersion", Value: "1.2"},
		},
		CapturedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("PushRawState() error = %v", err)
	}
	if len(state.Attributes) != 1 {
		t.Errorf("attributes = %v, want only dimmer.level", state.Attributes)
	}

	select {
	case u := <-updates:
		if u.DeviceID != dimmerID || u.Source != statecache.SourcePush {
			t.Errorf("update = %s from %s", u.DeviceID, u.Source)
		}
	case <-time.After(time.Second):
		t.Fatal("no update published")
	}

	got, err := h.GetDeviceState(ctx, dimmerID)
	if err != nil {
		t.Fatalf("GetDeviceState() error = %v", err)
	}
	if v, _ := got.Get("dimmer.level"); !v.Equal(device.Number(40), 0) {
		t.Errorf("dimmer.level = %v, want 40", v)
	}
	if calls := mock.StateCalls.Load(); calls != 0 {
		t.Errorf("StateCalls = %d, want 0 (served from pushed state)", calls)
	}
}

func TestPushRawStateOffline(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	offline := false

	state, err := h.PushRawState(ctx, dimmerID, adapter.RawState{Online: &offline})
	if err != nil {
		t.Fatalf("PushRawState() error = %v", err)
	}
	if len(state.Attributes) != 0 {
		t.Errorf("stored %v for offline device", state.Attributes)
	}
	dev, err := h.GetDevice(ctx, dimmerID)
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if dev.Reachable {
		t.Error("device still reachable after offline push")
	}
}

func TestPushState(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		attrs map[string]device.Value
		want  device.ErrorKind
	}{
		{"valid", map[string]device.Value{"switch.state": device.String("on")}, ""},
		{"undeclared capability", map[string]device.Value{"lock.state": device.String("locked")}, device.KindCapabilityNotSupported},
		{"wrong type", map[string]device.Value{"switch.state": device.Number(1)}, device.KindInvalidCommand},
		{"unknown attribute", map[string]device.Value{"switch.power": device.Number(1)}, device.KindInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := device.State{DeviceID: switchID, CapturedAt: time.Now(), Attributes: tt.attrs}
			err := h.PushState(ctx, state)
			if got := device.KindOf(err); got != tt.want {
				t.Errorf("PushState() kind = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}

	got, _, ok := h.Cache().Peek(switchID)
	if !ok {
		t.Fatal("valid push not cached")
	}
	if v, _ := got.Get("switch.state"); !v.Equal(device.String("on"), 0) {
		t.Errorf("switch.state = %v, want on", v)
	}
}

func TestUnregisterClearsCachedState(t *testing.T) {
	h, _ := newTestHub(t)
	ctx := context.Background()
	if _, err := h.GetDeviceState(ctx, dimmerID); err != nil {
		t.Fatalf("GetDeviceState() error = %v", err)
	}

	if err := h.Directory().Unregister(ctx, device.BackendSmartThings); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, _, ok := h.Cache().Peek(dimmerID); ok {
		t.Error("cache still holds state for a disposed backend")
	}
	if _, err := h.GetDeviceState(ctx, dimmerID); device.KindOf(err) != device.KindDeviceNotFound {
		t.Errorf("GetDeviceState() kind = %q, want device_not_found", device.KindOf(err))
	}
}

func TestBackendsAndHealth(t *testing.T) {
	h, mock := newTestHub(t)

	if got := h.Backends(); len(got) != 1 || got[0] != device.BackendSmartThings {
		t.Errorf("Backends() = %v, want [smartthings]", got)
	}
	if failing := h.Health(context.Background()); len(failing) != 0 {
		t.Errorf("Health() = %v, want no failures", failing)
	}

	mock.FailList(device.ErrDeviceUnreachable)
	if failing := h.Health(context.Background()); failing[device.BackendSmartThings] == nil {
		t.Error("Health() did not report the failing backend")
	}
}

func TestCloseDisposesAndEndsSubscriptions(t *testing.T) {
	h, mock := newTestHub(t)
	updates, _ := h.Subscribe(1)

	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !mock.Disposed() {
		t.Error("adapter not disposed")
	}
	if _, ok := <-updates; ok {
		t.Error("subscription channel still open")
	}
}
