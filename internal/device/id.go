package device

import (
	"fmt"
	"strings"
)

// Backend identifies one smart-home platform.
type Backend string

// Backend constants.
const (
	BackendSmartThings   Backend = "smartthings"
	BackendTuya          Backend = "tuya"
	BackendHomeAssistant Backend = "homeassistant"
)

// idSeparator separates the backend tag from the local id.
const idSeparator = ":"

// UniversalID identifies a device across all backends as "{backend}:{localId}".
// The local id may itself contain the separator; only the first one splits.
type UniversalID string

// NewUniversalID composes a UniversalID from its parts.
func NewUniversalID(backend Backend, localID string) UniversalID {
	return UniversalID(string(backend) + idSeparator + localID)
}

// ParseUniversalID splits an id into backend tag and local id.
// Returns ErrDeviceNotFound wrapped in an *Error if either part is empty.
func ParseUniversalID(s string) (Backend, string, error) {
	backend, local, ok := strings.Cut(s, idSeparator)
	if !ok || backend == "" || local == "" {
		return "", "", NewError(KindDeviceNotFound, "parse id", UniversalID(s),
			fmt.Errorf("malformed universal id %q", s))
	}
	return Backend(backend), local, nil
}

// Backend returns the backend tag, or "" if the id is malformed.
func (id UniversalID) Backend() Backend {
	b, _, err := ParseUniversalID(string(id))
	if err != nil {
		return ""
	}
	return b
}

// LocalID returns the backend-local id, or "" if the id is malformed.
func (id UniversalID) LocalID() string {
	_, l, err := ParseUniversalID(string(id))
	if err != nil {
		return ""
	}
	return l
}

// String implements fmt.Stringer.
func (id UniversalID) String() string {
	return string(id)
}
