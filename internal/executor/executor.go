package executor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/retry"
)

// Default execution settings.
const (
	DefaultConfirmTimeout = 5 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultTolerance      = 1.0
	DefaultMaxConcurrent  = 10
)

// Logger defines the logging interface used by the Executor.
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

// Router resolves devices and their owning backend.
type Router interface {
	// GetDevice returns the unified device record, or a DeviceNotFound error.
	GetDevice(ctx context.Context, id device.UniversalID) (*device.Device, error)

	// Registry returns the capability table of a registered backend.
	Registry(backend device.Backend) (*capability.Registry, error)

	// SendCommand performs one raw dispatch through the owning adapter.
	SendCommand(ctx context.Context, id device.UniversalID, bc capability.BackendCommand) error
}

// StateCache is the part of the Device State Cache used for confirmation.
type StateCache interface {
	Get(ctx context.Context, id device.UniversalID) (device.State, error)
	Invalidate(id device.UniversalID)
}

// Recorder persists finished command results. A nil Recorder disables the journal.
type Recorder interface {
	Record(ctx context.Context, result device.CommandResult) error
}

// Recorders fans a result out to several recorders. Every recorder is tried;
// the errors are joined.
type Recorders []Recorder

// Record implements Recorder.
func (rs Recorders) Record(ctx context.Context, result device.CommandResult) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config holds executor defaults.
type Config struct {
	Retry          retry.Policy
	Confirm        bool
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Tolerance      float64 // numeric tolerance for quantitative attributes
	MaxConcurrent  int     // parallel batch limit
}

// DefaultConfig returns 3 dispatch attempts and confirmation on.
func DefaultConfig() Config {
	return Config{
		Retry:          retry.DefaultPolicy(),
		Confirm:        true,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
		Tolerance:      DefaultTolerance,
		MaxConcurrent:  DefaultMaxConcurrent,
	}
}

// ConfirmMode selects whether a command waits for the cache to reflect it.
type ConfirmMode int

// Confirm modes.
const (
	ConfirmDefault ConfirmMode = iota // use Config.Confirm
	ConfirmOn
	ConfirmOff
)

// Options override Config for one invocation. Zero values use Config.
type Options struct {
	Confirm        ConfirmMode
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Executor runs the validate, dispatch, confirm protocol.
//
// Thread Safety: Execute and ExecuteBatch are safe for concurrent use.
// Concurrent commands to the same device are not serialised.
type Executor struct {
	router   Router
	cache    StateCache
	recorder Recorder
	cfg      Config
	logger   Logger
	now      func() time.Time
}

// New creates an Executor. Zero Config fields take defaults.
func New(router Router, cache StateCache, cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.Retry.Attempts < 1 {
		cfg.Retry = def.Retry
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Tolerance < 0 {
		cfg.Tolerance = 0
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	return &Executor{
		router: router,
		cache:  cache,
		cfg:    cfg,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// SetRecorder sets the command journal.
func (e *Executor) SetRecorder(r Recorder) {
	e.recorder = r
}

// Execute runs one command and always returns exactly one result.
//
// Validation and mapping failures never reach the network. Dispatch is
// retried for retryable error kinds only. After a successful dispatch and
// when confirmation is enabled, the cache is invalidated and re-read every
// poll interval until the command's expected attribute values appear or the
// confirmation timeout elapses. A confirmation timeout leaves Dispatched
// true and is never followed by a second dispatch.
func (e *Executor) Execute(ctx context.Context, id device.UniversalID, cmd device.Command, opts Options) device.CommandResult {
	res := device.CommandResult{
		ID:         uuid.NewString(),
		DeviceID:   id,
		Command:    cmd,
		ExecutedAt: e.now().UTC(),
	}
	e.run(ctx, &res, opts)
	e.record(ctx, res)
	return res
}

func (e *Executor) run(ctx context.Context, res *device.CommandResult, opts Options) {
	id, cmd := res.DeviceID, res.Command

	dev, err := e.router.GetDevice(ctx, id)
	if err != nil {
		res.Err = device.AsError(err, "execute", id)
		return
	}
	if err := device.ValidateCommand(dev, cmd); err != nil {
		res.Err = device.AsError(err, "validate", id)
		return
	}

	reg, err := e.router.Registry(dev.Backend)
	if err != nil {
		res.Err = device.AsError(err, "map command", id)
		return
	}
	bc, err := reg.ToBackendCommand(cmd)
	if err != nil {
		res.Err = device.AsError(err, "map command", id)
		return
	}
	expected, err := device.ExpectedValues(cmd)
	if err != nil {
		res.Err = device.AsError(err, "map command", id)
		return
	}

	attempts, err := retry.Do(ctx, e.cfg.Retry, device.RetryClassifier, func(ctx context.Context, attempt int) error {
		err := e.router.SendCommand(ctx, id, bc)
		if err != nil {
			e.logger.Debug("command dispatch failed", "device", id, "command", cmd, "attempt", attempt, "error", err)
		}
		return err
	})
	res.Attempts = attempts
	if err != nil {
		res.Err = device.AsError(err, "dispatch", id)
		e.logger.Warn("command dispatch failed", "device", id, "command", cmd, "attempts", attempts, "error", err)
		return
	}
	res.Dispatched = true
	e.cache.Invalidate(id)

	if !e.confirmEnabled(opts) {
		res.Success = true
		return
	}

	state, err := e.confirm(ctx, id, expected, opts)
	if err != nil {
		res.Err = device.AsError(err, "confirm", id)
		e.logger.Warn("command dispatched but not confirmed", "device", id, "command", cmd, "error", err)
		return
	}
	res.Success = true
	res.NewState = &state
}

func (e *Executor) confirmEnabled(opts Options) bool {
	switch opts.Confirm {
	case ConfirmOn:
		return true
	case ConfirmOff:
		return false
	default:
		return e.cfg.Confirm
	}
}

// confirm polls the cache until every expectation holds. Commands with no
// effects confirm on the first successful refresh.
func (e *Executor) confirm(ctx context.Context, id device.UniversalID, expected []device.Expectation, opts Options) (device.State, error) {
	timeout := opts.ConfirmTimeout
	if timeout <= 0 {
		timeout = e.cfg.ConfirmTimeout
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = e.cfg.PollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	polls := 0
	for {
		polls++
		e.cache.Invalidate(id)
		state, err := e.cache.Get(ctx, id)
		switch {
		case err == nil && e.matches(state, expected):
			return state, nil
		case err != nil && ctx.Err() == nil:
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return device.State{}, device.Errorf(device.KindConfirmationTimeout, "confirm", id,
					"expected state not observed after %d polls in %s: %w", polls, timeout, lastErr)
			}
			return device.State{}, device.Errorf(device.KindConfirmationTimeout, "confirm", id,
				"expected state not observed after %d polls in %s", polls, timeout)
		case <-ticker.C:
		}
	}
}

func (e *Executor) matches(state device.State, expected []device.Expectation) bool {
	for _, exp := range expected {
		got, ok := state.Get(exp.Key)
		if !ok || !got.Equal(exp.Value, e.cfg.Tolerance) {
			return false
		}
	}
	return true
}

// record journals the result. Journal failures are logged and never change
// the outcome.
func (e *Executor) record(ctx context.Context, res device.CommandResult) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(context.WithoutCancel(ctx), res); err != nil {
		e.logger.Error("failed to record command result", "result_id", res.ID, "device", res.DeviceID, "error", err)
	}
}
