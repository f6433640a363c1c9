package device

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Device is the backend-neutral description of one physical or virtual device.
// Devices are adapter-owned; the directory hands out deep copies.
type Device struct {
	// Identity
	ID      UniversalID `json:"id"`
	Backend Backend     `json:"backend"`
	LocalID string      `json:"local_id"`
	Name    string      `json:"name"`

	// Metadata
	Manufacturer *string `json:"manufacturer,omitempty"`
	Model        *string `json:"model,omitempty"`
	Room         *string `json:"room,omitempty"`

	// Capabilities is the declared set; commands outside it are rejected.
	Capabilities []Capability `json:"capabilities"`

	// Reachable is the backend's last reported connectivity.
	Reachable bool `json:"reachable"`

	// Extra holds backend-specific display metadata (never used for dispatch).
	Extra map[string]string `json:"extra,omitempty"`
}

// HasCapability checks if the device declares a specific capability.
func (d *Device) HasCapability(c Capability) bool {
	return slices.Contains(d.Capabilities, c)
}

// DeepCopy creates a complete independent copy of the Device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Capabilities = slices.Clone(d.Capabilities)
	cpy.Extra = maps.Clone(d.Extra)
	cpy.Manufacturer = cloneString(d.Manufacturer)
	cpy.Model = cloneString(d.Model)
	cpy.Room = cloneString(d.Room)
	return &cpy
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// State is a point-in-time snapshot of a device's attributes, keyed
// "{capability}.{attribute}".
type State struct {
	DeviceID   UniversalID      `json:"device_id"`
	CapturedAt time.Time        `json:"captured_at"`
	Attributes map[string]Value `json:"attributes"`
}

// NewState creates an empty state for a device.
func NewState(id UniversalID, capturedAt time.Time) State {
	return State{DeviceID: id, CapturedAt: capturedAt, Attributes: make(map[string]Value)}
}

// Get returns the value stored under key.
func (s State) Get(key string) (Value, bool) {
	v, ok := s.Attributes[key]
	return v, ok
}

// Set stores a value under AttributeKey(c, attribute).
func (s State) Set(c Capability, attribute string, v Value) {
	s.Attributes[AttributeKey(c, attribute)] = v
}

// Clone returns a copy with an independent attribute map.
func (s State) Clone() State {
	cpy := s
	cpy.Attributes = maps.Clone(s.Attributes)
	if cpy.Attributes == nil {
		cpy.Attributes = make(map[string]Value)
	}
	return cpy
}

// Capabilities returns the distinct capabilities present in the state keys.
func (s State) Capabilities() []Capability {
	seen := make(map[Capability]bool)
	var out []Capability
	for key := range s.Attributes {
		c, _, ok := strings.Cut(key, ".")
		if !ok || seen[Capability(c)] {
			continue
		}
		seen[Capability(c)] = true
		out = append(out, Capability(c))
	}
	slices.Sort(out)
	return out
}

// Command is a capability-level instruction to a device.
type Command struct {
	Capability Capability `json:"capability"`
	Name       string     `json:"command"`
	Args       []Value    `json:"args,omitempty"`
}

// String renders the command as "capability.name".
func (c Command) String() string {
	return string(c.Capability) + "." + c.Name
}

// CommandResult is the single outcome of one command execution.
//
// Success is true only when dispatch succeeded and confirmation was either
// disabled or matched. Dispatched distinguishes an unconfirmed command from
// one that never reached the backend.
type CommandResult struct {
	ID         string      `json:"id"`
	DeviceID   UniversalID `json:"device_id"`
	Command    Command     `json:"command"`
	Success    bool        `json:"success"`
	Dispatched bool        `json:"dispatched"`
	Attempts   int         `json:"attempts"`
	ExecutedAt time.Time   `json:"executed_at"`
	NewState   *State      `json:"new_state,omitempty"`
	Err        *Error      `json:"error,omitempty"`
}

// ErrorKind returns the kind of the carried error, or "" on success.
func (r CommandResult) ErrorKind() ErrorKind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}
