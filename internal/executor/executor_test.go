package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/retry"
)

const (
	dimmerID device.UniversalID = "smartthings:d1"
	switchID device.UniversalID = "smartthings:d2"
	lockID   device.UniversalID = "smartthings:d3"
)

func testRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	reg, err := capability.NewRegistry(device.BackendSmartThings,
		capability.Entry{
			Capability: device.CapSwitch,
			Native:     "switch",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrState, Native: "switch"}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdOn, Native: "on"},
				{Command: device.CmdOff, Native: "off"},
				{Command: device.CmdToggle, Native: "toggle"},
			},
		},
		capability.Entry{
			Capability: device.CapDimmer,
			Native:     "switchLevel",
			Attributes: []capability.AttributeMapping{{Attribute: device.AttrLevel, Native: "level", Convert: capability.Numeric()}},
			Commands: []capability.CommandMapping{
				{Command: device.CmdSetLevel, Native: "setLevel", Params: []capability.ParamMapping{{Native: "level", Convert: capability.Numeric()}}},
			},
		},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

// mockRouter serves three devices and records dispatches. sendErr, when set,
// returns the error for each attempt; onSend runs after a successful send.
type mockRouter struct {
	reg *capability.Registry

	mu      sync.Mutex
	sends   []capability.BackendCommand
	sendErr func(attempt int, id device.UniversalID) error
	onSend  func(id device.UniversalID, bc capability.BackendCommand)
	delay   map[device.UniversalID]time.Duration
}

func (m *mockRouter) GetDevice(_ context.Context, id device.UniversalID) (*device.Device, error) {
	switch id {
	case dimmerID:
		return &device.Device{ID: id, Backend: device.BackendSmartThings, LocalID: "d1",
			Capabilities: []device.Capability{device.CapSwitch, device.CapDimmer}}, nil
	case switchID:
		return &device.Device{ID: id, Backend: device.BackendSmartThings, LocalID: "d2",
			Capabilities: []device.Capability{device.CapSwitch}}, nil
	case lockID:
		return &device.Device{ID: id, Backend: device.BackendSmartThings, LocalID: "d3",
			Capabilities: []device.Capability{device.CapLock}}, nil
	}
	return nil, device.NewError(device.KindDeviceNotFound, "get device", id, nil)
}

func (m *mockRouter) Registry(device.Backend) (*capability.Registry, error) {
	return m.reg, nil
}

func (m *mockRouter) SendCommand(ctx context.Context, id device.UniversalID, bc capability.BackendCommand) error {
	m.mu.Lock()
	m.sends = append(m.sends, bc)
	attempt := len(m.sends)
	sendErr, onSend, delay := m.sendErr, m.onSend, m.delay[id]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if sendErr != nil {
		if err := sendErr(attempt, id); err != nil {
			return err
		}
	}
	if onSend != nil {
		onSend(id, bc)
	}
	return nil
}

func (m *mockRouter) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

// mockCache serves states built from a mutable attribute map.
type mockCache struct {
	mu          sync.Mutex
	attrs       map[string]device.Value
	gets        atomic.Int32
	invalidates atomic.Int32
}

func newMockCache() *mockCache {
	return &mockCache{attrs: map[string]device.Value{
		"switch.state": device.String("off"),
		"dimmer.level": device.Number(0),
	}}
}

func (c *mockCache) Get(_ context.Context, id device.UniversalID) (device.State, error) {
	c.gets.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	s := device.NewState(id, time.Now())
	for k, v := range c.attrs {
		s.Attributes[k] = v
	}
	return s, nil
}

func (c *mockCache) Invalidate(device.UniversalID) { c.invalidates.Add(1) }

func (c *mockCache) set(key string, v device.Value) {
	c.mu.Lock()
	c.attrs[key] = v
	c.mu.Unlock()
}

type mockRecorder struct {
	mu      sync.Mutex
	results []device.CommandResult
	err     error
}

func (r *mockRecorder) Record(_ context.Context, res device.CommandResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return r.err
}

func testConfig() Config {
	return Config{
		Retry:          retry.Policy{Attempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
		Confirm:        true,
		ConfirmTimeout: time.Second,
		PollInterval:   20 * time.Millisecond,
		Tolerance:      1,
	}
}

func setLevel(n float64) device.Command {
	return device.Command{Capability: device.CapDimmer, Name: device.CmdSetLevel, Args: []device.Value{device.Number(n)}}
}

func TestExecuteConfirmsDimmerLevel(t *testing.T) {
	cache := newMockCache()
	router := &mockRouter{reg: testRegistry(t)}
	router.onSend = func(device.UniversalID, capability.BackendCommand) {
		time.AfterFunc(100*time.Millisecond, func() { cache.set("dimmer.level", device.Number(75)) })
	}
	ex := New(router, cache, testConfig())

	res := ex.Execute(context.Background(), dimmerID, setLevel(75), Options{})

	if !res.Success || !res.Dispatched || res.Err != nil {
		t.Fatalf("Execute() = success %v dispatched %v err %v", res.Success, res.Dispatched, res.Err)
	}
	if res.NewState == nil {
		t.Fatal("NewState is nil")
	}
	if v, _ := res.NewState.Get("dimmer.level"); !v.Equal(device.Number(75), 0) {
		t.Errorf("NewState dimmer.level = %v, want 75", v)
	}
	if res.Attempts != 1 || router.sendCount() != 1 {
		t.Errorf("attempts = %d, sends = %d, want 1", res.Attempts, router.sendCount())
	}
	if res.ID == "" || res.ExecutedAt.IsZero() {
		t.Errorf("result id/timestamp missing: %+v", res)
	}
	if cache.invalidates.Load() < 2 {
		t.Errorf("invalidates = %d, want dispatch plus each poll", cache.invalidates.Load())
	}
}

func TestExecuteRejectsBeforeDispatch(t *testing.T) {
	tests := []struct {
		name string
		id   device.UniversalID
		cmd  device.Command
		want device.ErrorKind
	}{
		{"undeclared capability", switchID, setLevel(50), device.KindCapabilityNotSupported},
		{"unknown device", "smartthings:nope", setLevel(50), device.KindDeviceNotFound},
		{"out of range argument", dimmerID, setLevel(150), device.KindInvalidCommand},
		{"unknown command", dimmerID, device.Command{Capability: device.CapDimmer, Name: "dance"}, device.KindInvalidCommand},
		{"capability missing from backend table", lockID, device.Command{Capability: device.CapLock, Name: device.CmdLock}, device.KindInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := &mockRouter{reg: testRegistry(t)}
			ex := New(router, newMockCache(), testConfig())
			res := ex.Execute(context.Background(), tt.id, tt.cmd, Options{Confirm: ConfirmOff})

			if res.Success || res.Dispatched {
				t.Errorf("Execute() success = %v dispatched = %v, want false", res.Success, res.Dispatched)
			}
			if got := res.ErrorKind(); got != tt.want {
				t.Errorf("Execute() kind = %q, want %q", got, tt.want)
			}
			if n := router.sendCount(); n != 0 {
				t.Errorf("sends = %d, want 0", n)
			}
		})
	}
}

func TestExecuteRetryBound(t *testing.T) {
	var delays []time.Duration
	cfg := testConfig()
	cfg.Retry = retry.Policy{
		Attempts:  3,
		BaseDelay: 30 * time.Millisecond,
		MaxDelay:  time.Second,
		OnRetry:   func(_ int, d time.Duration, _ error) { delays = append(delays, d) },
	}
	router := &mockRouter{reg: testRegistry(t)}
	router.sendErr = func(int, device.UniversalID) error {
		return device.NewError(device.KindNetwork, "send", dimmerID, errors.New("connection refused"))
	}
	ex := New(router, newMockCache(), cfg)

	start := time.Now()
	res := ex.Execute(context.Background(), dimmerID, setLevel(10), Options{})
	elapsed := time.Since(start)

	if res.Success || res.Dispatched {
		t.Errorf("Execute() success = %v dispatched = %v", res.Success, res.Dispatched)
	}
	if res.ErrorKind() != device.KindNetwork {
		t.Errorf("kind = %q, want network_failure", res.ErrorKind())
	}
	if res.Attempts != 3 || router.sendCount() != 3 {
		t.Errorf("attempts = %d, sends = %d, want 3", res.Attempts, router.sendCount())
	}
	want := []time.Duration{30 * time.Millisecond, 60 * time.Millisecond}
	if len(delays) != 2 || delays[0] != want[0] || delays[1] != want[1] {
		t.Errorf("delays = %v, want %v", delays, want)
	}
	if floor := 90 * time.Millisecond * 9 / 10; elapsed < floor {
		t.Errorf("elapsed = %v, want >= %v", elapsed, floor)
	}
}

func TestExecuteDoesNotRetryPermanentDispatchErrors(t *testing.T) {
	router := &mockRouter{reg: testRegistry(t)}
	router.sendErr = func(int, device.UniversalID) error {
		return device.NewError(device.KindAuthentication, "send", dimmerID, nil)
	}
	ex := New(router, newMockCache(), testConfig())

	res := ex.Execute(context.Background(), dimmerID, setLevel(10), Options{})
	if res.ErrorKind() != device.KindAuthentication || router.sendCount() != 1 {
		t.Errorf("kind = %q sends = %d, want authentication_failure after 1 send", res.ErrorKind(), router.sendCount())
	}
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	router := &mockRouter{reg: testRegistry(t)}
	router.sendErr = func(attempt int, _ device.UniversalID) error {
		if attempt == 1 {
			return device.NewError(device.KindRateLimited, "send", dimmerID, nil)
		}
		return nil
	}
	ex := New(router, newMockCache(), testConfig())

	res := ex.Execute(context.Background(), dimmerID, setLevel(10), Options{Confirm: ConfirmOff})
	if !res.Success || res.Attempts != 2 {
		t.Errorf("Execute() success = %v attempts = %d, want true after 2", res.Success, res.Attempts)
	}
}

func TestExecuteConfirmationTimeout(t *testing.T) {
	router := &mockRouter{reg: testRegistry(t)}
	ex := New(router, newMockCache(), testConfig())

	start := time.Now()
	res := ex.Execute(context.Background(), dimmerID, setLevel(80),
		Options{ConfirmTimeout: 100 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	elapsed := time.Since(start)

	if res.Success {
		t.Error("Execute() success = true, want false")
	}
	if !res.Dispatched {
		t.Error("Dispatched = false, want true (command reached the backend)")
	}
	if res.ErrorKind() != device.KindConfirmationTimeout {
		t.Errorf("kind = %q, want confirmation_timeout", res.ErrorKind())
	}
	if n := router.sendCount(); n != 1 {
		t.Errorf("sends = %d, want 1 (no re-dispatch after confirmation timeout)", n)
	}
	if elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Errorf("elapsed = %v, want about the confirmation timeout", elapsed)
	}
}

func TestExecuteConfirmWithinTolerance(t *testing.T) {
	cache := newMockCache()
	cache.set("dimmer.level", device.Number(74))
	ex := New(&mockRouter{reg: testRegistry(t)}, cache, testConfig())

	res := ex.Execute(context.Background(), dimmerID, setLevel(75), Options{})
	if !res.Success {
		t.Errorf("Execute() error = %v, want success within tolerance", res.Err)
	}
}

func TestExecuteWithoutEffectsConfirmsOnFirstRefresh(t *testing.T) {
	cache := newMockCache()
	ex := New(&mockRouter{reg: testRegistry(t)}, cache, testConfig())

	res := ex.Execute(context.Background(), switchID, device.Command{Capability: device.CapSwitch, Name: device.CmdToggle}, Options{})
	if !res.Success || res.NewState == nil {
		t.Fatalf("Execute() success = %v err = %v", res.Success, res.Err)
	}
	if got := cache.gets.Load(); got != 1 {
		t.Errorf("cache reads = %d, want 1", got)
	}
}

func TestExecuteConfirmOff(t *testing.T) {
	cache := newMockCache()
	ex := New(&mockRouter{reg: testRegistry(t)}, cache, testConfig())

	res := ex.Execute(context.Background(), dimmerID, setLevel(30), Options{Confirm: ConfirmOff})
	if !res.Success || res.NewState != nil {
		t.Errorf("Execute() success = %v NewState = %v, want success without state", res.Success, res.NewState)
	}
	if cache.gets.Load() != 0 || cache.invalidates.Load() != 1 {
		t.Errorf("gets = %d invalidates = %d, want 0 and 1", cache.gets.Load(), cache.invalidates.Load())
	}
}

func TestExecuteRecordsResults(t *testing.T) {
	rec := &mockRecorder{err: errors.New("disk full")}
	ex := New(&mockRouter{reg: testRegistry(t)}, newMockCache(), testConfig())
	ex.SetRecorder(rec)

	ok := ex.Execute(context.Background(), dimmerID, setLevel(20), Options{Confirm: ConfirmOff})
	bad := ex.Execute(context.Background(), switchID, setLevel(20), Options{})

	if !ok.Success {
		t.Errorf("journal failure changed outcome: %v", ok.Err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.results) != 2 || rec.results[0].ID != ok.ID || rec.results[1].ID != bad.ID {
		t.Errorf("recorded = %+v", rec.results)
	}
}

func TestRecordersFanOut(t *testing.T) {
	first := &mockRecorder{err: errors.New("disk full")}
	second := &mockRecorder{}
	rs := Recorders{first, nil, second}

	err := rs.Record(context.Background(), device.CommandResult{ID: "r1"})
	if err == nil || err.Error() != "disk full" {
		t.Errorf("Record() error = %v, want disk full", err)
	}
	if len(first.results) != 1 || len(second.results) != 1 {
		t.Errorf("recorded = %d, %d; want 1, 1", len(first.results), len(second.results))
	}
}

func TestExecuteBatchParallelPreservesOrder(t *testing.T) {
	ids := []device.UniversalID{"smartthings:slow", "smartthings:mid", "smartthings:fast"}
	router := &routerWithDevices{mockRouter: mockRouter{reg: testRegistry(t), delay: map[device.UniversalID]time.Duration{
		ids[0]: 150 * time.Millisecond,
		ids[1]: 75 * time.Millisecond,
		ids[2]: 0,
	}}}
	ex := New(router, newMockCache(), testConfig())

	items := make([]BatchItem, len(ids))
	for i, id := range ids {
		items[i] = BatchItem{DeviceID: id, Command: device.Command{Capability: device.CapSwitch, Name: device.CmdOn}}
	}

	start := time.Now()
	results := ex.ExecuteBatch(context.Background(), items, BatchOptions{Mode: Parallel, Options: Options{Confirm: ConfirmOff}})
	elapsed := time.Since(start)

	if len(results) != len(items) {
		t.Fatalf("results = %d, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.DeviceID != ids[i] || !res.Success {
			t.Errorf("results[%d] = %s success=%v, want %s success", i, res.DeviceID, res.Success, ids[i])
		}
	}
	if elapsed >= 225*time.Millisecond {
		t.Errorf("elapsed = %v, want concurrent dispatch", elapsed)
	}
}

func TestExecuteBatchSequentialStopsOnFailure(t *testing.T) {
	router := &mockRouter{reg: testRegistry(t)}
	ex := New(router, newMockCache(), testConfig())
	items := []BatchItem{
		{DeviceID: dimmerID, Command: setLevel(10)},
		{DeviceID: switchID, Command: setLevel(10)},
		{DeviceID: dimmerID, Command: setLevel(20)},
	}
	opts := BatchOptions{Options: Options{Confirm: ConfirmOff}}

	results := ex.ExecuteBatch(context.Background(), items, opts)
	kinds := []device.ErrorKind{"", device.KindCapabilityNotSupported, device.KindSkipped}
	for i, want := range kinds {
		if got := results[i].ErrorKind(); got != want {
			t.Errorf("results[%d] kind = %q, want %q", i, got, want)
		}
		if results[i].Command.String() != items[i].Command.String() {
			t.Errorf("results[%d] command = %s, want %s", i, results[i].Command, items[i].Command)
		}
	}
	if n := router.sendCount(); n != 1 {
		t.Errorf("sends = %d, want 1", n)
	}

	opts.ContinueOnError = true
	results = ex.ExecuteBatch(context.Background(), items, opts)
	if !results[2].Success {
		t.Errorf("ContinueOnError results[2] = %v, want success", results[2].Err)
	}
}

// routerWithDevices treats every id as a switch-only SmartThings device.
type routerWithDevices struct {
	mockRouter
}

func (r *routerWithDevices) GetDevice(_ context.Context, id device.UniversalID) (*device.Device, error) {
	return &device.Device{ID: id, Backend: device.BackendSmartThings, LocalID: id.LocalID(),
		Capabilities: []device.Capability{device.CapSwitch}}, nil
}
