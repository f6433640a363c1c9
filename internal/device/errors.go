package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure. Kinds, not concrete types, drive the retry
// and propagation policy.
type ErrorKind string

// ErrorKind constants.
const (
	KindAuthentication         ErrorKind = "authentication_failure"
	KindDeviceNotFound         ErrorKind = "device_not_found"
	KindCapabilityNotSupported ErrorKind = "capability_not_supported"
	KindInvalidCommand         ErrorKind = "invalid_command"
	KindDeviceUnreachable      ErrorKind = "device_unreachable"
	KindNetwork                ErrorKind = "network_failure"
	KindTimeout                ErrorKind = "timeout"
	KindRateLimited            ErrorKind = "rate_limited"
	KindConfirmationTimeout    ErrorKind = "confirmation_timeout"
	KindSkipped                ErrorKind = "skipped"
	KindUnknown                ErrorKind = "unknown"
)

// Domain errors for the device package.
//
// Every *Error matches the sentinel of its kind with errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrAuthentication is returned when a backend rejects the configured credentials.
	ErrAuthentication = errors.New("device: authentication failed")

	// ErrDeviceNotFound is returned when a device ID does not resolve.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrCapabilityNotSupported is returned when a command targets an undeclared capability.
	ErrCapabilityNotSupported = errors.New("device: capability not supported")

	// ErrInvalidCommand is returned for unknown commands, bad arguments or unmappable commands.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrDeviceUnreachable is returned when the backend reports the device offline.
	ErrDeviceUnreachable = errors.New("device: unreachable")

	// ErrNetwork is returned for transport-level failures.
	ErrNetwork = errors.New("device: network failure")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("device: timeout")

	// ErrRateLimited is returned when a backend throttles requests.
	ErrRateLimited = errors.New("device: rate limited")

	// ErrConfirmationTimeout is returned when a dispatched command was not
	// observed in device state in time. The command may still have taken effect.
	ErrConfirmationTimeout = errors.New("device: confirmation timeout")

	// ErrSkipped marks a batch item that was never attempted.
	ErrSkipped = errors.New("device: skipped")

	// ErrCapabilityExists is returned when registering a capability twice.
	ErrCapabilityExists = errors.New("device: capability already registered")
)

var kindSentinels = map[ErrorKind]error{
	KindAuthentication:         ErrAuthentication,
	KindDeviceNotFound:         ErrDeviceNotFound,
	KindCapabilityNotSupported: ErrCapabilityNotSupported,
	KindInvalidCommand:         ErrInvalidCommand,
	KindDeviceUnreachable:      ErrDeviceUnreachable,
	KindNetwork:                ErrNetwork,
	KindTimeout:                ErrTimeout,
	KindRateLimited:            ErrRateLimited,
	KindConfirmationTimeout:    ErrConfirmationTimeout,
	KindSkipped:                ErrSkipped,
}

// Error is the structured error carried through the core and into CommandResult.
type Error struct {
	Kind       ErrorKind     `json:"kind"`
	Op         string        `json:"op,omitempty"`
	DeviceID   UniversalID   `json:"device_id,omitempty"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Err        error         `json:"-"`
}

// NewError builds an *Error. A nil cause is allowed.
func NewError(kind ErrorKind, op string, id UniversalID, err error) *Error {
	return &Error{Kind: kind, Op: op, DeviceID: id, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "device: "
	if e.Op != "" {
		msg += e.Op + " "
	}
	if e.DeviceID != "" {
		msg += string(e.DeviceID) + " "
	}
	msg += string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Message returns the cause text, or the kind when there is no cause.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// MarshalJSON adds the cause text as "message".
func (e *Error) MarshalJSON() ([]byte, error) {
	type plain Error
	return json.Marshal(struct {
		*plain
		Message string `json:"message"`
	}{(*plain)(e), e.Message()})
}

// KindOf classifies any error into the taxonomy. Returns "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// AsError converts any error into an *Error, keeping an existing one intact
// and filling in op and id when they are missing.
func AsError(err error, op string, id UniversalID) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		cpy := *de
		if cpy.Op == "" {
			cpy.Op = op
		}
		if cpy.DeviceID == "" {
			cpy.DeviceID = id
		}
		return &cpy
	}
	return NewError(KindOf(err), op, id, err)
}

// Retryable reports whether failures of this kind are retried locally.
func Retryable(kind ErrorKind) bool {
	switch kind {
	case KindDeviceUnreachable, KindNetwork, KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}

// RetryClassifier reports whether err is retryable and any retry-after hint it carries.
// Cancellation of the caller's own context is never retried.
func RetryClassifier(err error) (bool, time.Duration) {
	if errors.Is(err, context.Canceled) {
		return false, 0
	}
	var de *Error
	if errors.As(err, &de) {
		return Retryable(de.Kind), de.RetryAfter
	}
	return Retryable(KindOf(err)), 0
}

// Errorf is a shorthand for NewError with a formatted cause.
func Errorf(kind ErrorKind, op string, id UniversalID, format string, args ...any) *Error {
	return NewError(kind, op, id, fmt.Errorf(format, args...))
}
