package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes. Device failures use their error kind as the code.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDeviceError maps a device-core error onto a response.
func writeDeviceError(w http.ResponseWriter, err error) {
	kind := device.KindOf(err)
	var de *device.Error
	if errors.As(err, &de) && de.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(de.RetryAfter.Seconds())))
	}
	writeError(w, statusForKind(kind), string(kind), err.Error())
}

// statusForKind returns the HTTP status reported for an error kind.
func statusForKind(kind device.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case device.KindDeviceNotFound:
		return http.StatusNotFound
	case device.KindCapabilityNotSupported, device.KindInvalidCommand:
		return http.StatusUnprocessableEntity
	case device.KindRateLimited:
		return http.StatusTooManyRequests
	case device.KindTimeout, device.KindConfirmationTimeout:
		return http.StatusGatewayTimeout
	case device.KindAuthentication, device.KindDeviceUnreachable, device.KindNetwork:
		return http.StatusBadGateway
	case device.KindSkipped:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
