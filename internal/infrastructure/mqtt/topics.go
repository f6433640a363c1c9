package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "graylogic"

// Topics provides builders for the hub's MQTT topics under one prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Backend-native state arrives on a flat scheme, one topic per device:
//
//	topics := mqtt.NewTopics("graylogic")
//	topics.BackendState("tuya", "bf3a0c")
//	// Returns: "graylogic/state/tuya/bf3a0c"
//
// Unified state leaves the hub on a per-device core topic:
//
//	topics.CoreDeviceState("tuya:bf3a0c")
//	// Returns: "graylogic/core/device/tuya:bf3a0c/state"
type Topics struct {
	Prefix string
}

// NewTopics returns builders for prefix, or DefaultTopicPrefix when empty.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Backend Topics (inbound)
// =============================================================================

// BackendState returns the topic on which a bridge or webhook relay delivers
// backend-native state for one device.
//
// Example: graylogic/state/smartthings/6f1d2c
func (t Topics) BackendState(backend, localID string) string {
	return fmt.Sprintf("%s/state/%s/%s", t.prefix(), backend, localID)
}

// AllBackendStates returns a wildcard matching every BackendState topic.
//
// Example: graylogic/state/+/+
func (t Topics) AllBackendStates() string {
	return t.prefix() + "/state/+/+"
}

// ParseBackendState extracts backend and local id from a BackendState topic.
func (t Topics) ParseBackendState(topic string) (backend, localID string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/state/")
	if !found {
		return "", "", false
	}
	backend, localID, found = strings.Cut(rest, "/")
	if !found || backend == "" || localID == "" || strings.Contains(localID, "/") {
		return "", "", false
	}
	return backend, localID, true
}

// =============================================================================
// Core Topics (outbound)
// =============================================================================

// CoreDeviceState returns the retained topic carrying a device's unified state.
//
// Example: graylogic/core/device/tuya:bf3a0c/state
func (t Topics) CoreDeviceState(deviceID string) string {
	return fmt.Sprintf("%s/core/device/%s/state", t.prefix(), deviceID)
}

// CoreCommandResult returns the topic carrying finished command results for a device.
//
// Example: graylogic/core/device/tuya:bf3a0c/result
func (t Topics) CoreCommandResult(deviceID string) string {
	return fmt.Sprintf("%s/core/device/%s/result", t.prefix(), deviceID)
}

// AllCoreDeviceStates returns a wildcard matching every CoreDeviceState topic.
//
// Example: graylogic/core/device/+/state
func (t Topics) AllCoreDeviceStates() string {
	return t.prefix() + "/core/device/+/state"
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the retained hub online/offline topic, also used for
// the Last Will.
//
// Example: graylogic/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// AllTopics returns a wildcard matching everything under the prefix.
//
// Example: graylogic/#
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}
