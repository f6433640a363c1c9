package smartthings

// Device is a SmartThings device as returned by /devices.
type Device struct {
	DeviceID         string      `json:"deviceId"`
	Name             string      `json:"name"`
	Label            string      `json:"label"`
	ManufacturerName string      `json:"manufacturerName,omitempty"`
	DeviceTypeName   string      `json:"deviceTypeName,omitempty"`
	RoomID           string      `json:"roomId,omitempty"`
	LocationID       string      `json:"locationId,omitempty"`
	Components       []Component `json:"components,omitempty"`
}

type devicePage struct {
	Items []Device `json:"items"`
	Links struct {
		Next string `json:"next,omitempty"`
	} `json:"_links"`
}

// Component is one functional part of a device.
type Component struct {
	ID           string          `json:"id"`
	Label        string          `json:"label,omitempty"`
	Capabilities []CapabilityRef `json:"capabilities"`
}

// CapabilityRef references a capability by id and version.
type CapabilityRef struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// Status is capability → attribute → state for one component.
type Status map[string]map[string]AttributeState

// AttributeState is one attribute reading.
type AttributeState struct {
	Value     any    `json:"value"`
	Unit      string `json:"unit,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Health is the connectivity state of a device.
type Health struct {
	DeviceID string `json:"deviceId"`
	State    string `json:"state"` // ONLINE, OFFLINE or UNKNOWN
}

// Online reports whether the device is online.
func (h Health) Online() bool {
	return h.State == "ONLINE"
}

// Command is one device command.
type Command struct {
	Component  string `json:"component,omitempty"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// CommandRequest is the request body for executing commands.
type CommandRequest struct {
	Commands []Command `json:"commands"`
}
