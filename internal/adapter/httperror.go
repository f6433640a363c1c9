package adapter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// ClassifyStatus maps an HTTP status code from a backend API to an error kind.
func ClassifyStatus(status int) device.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return device.KindAuthentication
	case status == http.StatusNotFound:
		return device.KindDeviceNotFound
	case status == http.StatusTooManyRequests:
		return device.KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return device.KindTimeout
	case status == http.StatusConflict || status == http.StatusServiceUnavailable:
		return device.KindDeviceUnreachable
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return device.KindInvalidCommand
	case status >= 500:
		return device.KindNetwork
	default:
		return device.KindUnknown
	}
}

// StatusError converts a failed HTTP exchange into a structured error.
func StatusError(status int, retryAfter time.Duration, op string, id device.UniversalID, cause error) *device.Error {
	e := device.NewError(ClassifyStatus(status), op, id, cause)
	if e.Kind == device.KindRateLimited {
		e.RetryAfter = retryAfter
	}
	return e
}

// TransportError classifies an error returned by http.Client.Do or a dialer.
// Context deadline and cancellation map to a timeout, everything else to a
// network failure.
func TransportError(err error, op string, id device.UniversalID) *device.Error {
	var de *device.Error
	if errors.As(err, &de) {
		return device.AsError(err, op, id)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return device.NewError(device.KindTimeout, op, id, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return device.NewError(device.KindTimeout, op, id, err)
	}
	return device.NewError(device.KindNetwork, op, id, err)
}

// ParseRetryAfter parses a Retry-After header value.
// It handles both delta-seconds (e.g., "120") and HTTP-date formats.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if delta := time.Until(t); delta > 0 {
			return delta
		}
	}
	return 0
}
