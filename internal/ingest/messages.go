package ingest

import (
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/adapter"
	"github.com/nerrad567/gray-logic-hub/internal/capability"
	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/statecache"
)

// StateMessage is the backend-native state a relay publishes for one device.
// Topic: {prefix}/state/{backend}/{localId}
type StateMessage struct {
	// Values carries native attribute readings. Capability is optional for
	// backends whose attribute names are unique.
	Values []NativeValue `json:"values"`

	// Timestamp is when the relay captured the values. Zero means now.
	Timestamp time.Time `json:"timestamp,omitzero"`

	// Online reports device connectivity when the backend knows it.
	Online *bool `json:"online,omitempty"`
}

// NativeValue is one backend-native reading.
type NativeValue struct {
	Capability string `json:"capability,omitempty"`
	Attribute  string `json:"attribute"`
	Value      any    `json:"value"`
}

// rawState converts the message for the hub. now fills a missing timestamp.
func (m StateMessage) rawState(now time.Time) adapter.RawState {
	raw := adapter.RawState{
		Values:     make([]capability.NativeValue, 0, len(m.Values)),
		CapturedAt: m.Timestamp,
		Online:     m.Online,
	}
	if raw.CapturedAt.IsZero() {
		raw.CapturedAt = now
	}
	for _, v := range m.Values {
		raw.Values = append(raw.Values, capability.NativeValue{
			Capability: v.Capability,
			Attribute:  v.Attribute,
			Value:      v.Value,
		})
	}
	return raw
}

// CoreStateMessage is the unified state published for every cache update.
// Topic: {prefix}/core/device/{id}/state (retained)
type CoreStateMessage struct {
	DeviceID   device.UniversalID      `json:"device_id"`
	CapturedAt time.Time               `json:"captured_at"`
	Source     statecache.Source       `json:"source"`
	Attributes map[string]device.Value `json:"attributes"`
}

// NewCoreStateMessage builds the outbound message for a cache update.
func NewCoreStateMessage(u statecache.Update) CoreStateMessage {
	attrs := u.State.Attributes
	if attrs == nil {
		attrs = map[string]device.Value{}
	}
	return CoreStateMessage{
		DeviceID:   u.DeviceID,
		CapturedAt: u.State.CapturedAt,
		Source:     u.Source,
		Attributes: attrs,
	}
}

// ResultMessage reports a finished command execution.
// Topic: {prefix}/core/device/{id}/result
type ResultMessage struct {
	ID           string             `json:"id"`
	DeviceID     device.UniversalID `json:"device_id"`
	Command      device.Command     `json:"command"`
	Success      bool               `json:"success"`
	Dispatched   bool               `json:"dispatched"`
	Attempts     int                `json:"attempts"`
	ExecutedAt   time.Time          `json:"executed_at"`
	ErrorKind    device.ErrorKind   `json:"error_kind,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// NewResultMessage flattens a command result for the wire.
func NewResultMessage(res device.CommandResult) ResultMessage {
	msg := ResultMessage{
		ID:         res.ID,
		DeviceID:   res.DeviceID,
		Command:    res.Command,
		Success:    res.Success,
		Dispatched: res.Dispatched,
		Attempts:   res.Attempts,
		ExecutedAt: res.ExecutedAt,
	}
	if res.Err != nil {
		msg.ErrorKind = res.Err.Kind
		msg.ErrorMessage = res.Err.Message()
	}
	return msg
}
