package mqtt

import (
	"fmt"
	"strings"
)

// maxPayloadSize caps outbound payloads (1MB), in line with common broker limits.
const maxPayloadSize = 1 << 20

// Publish sends payload on topic.
//
// QoS 0 is fire and forget, 1 is at least once, 2 is exactly once. Retained
// messages are kept by the broker and replayed to new subscribers, so use
// them for state and never for results or events.
//
// Most hub code should use PublishDeviceState or PublishCommandResult,
// which build the topic and pick QoS and retention.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishDeviceState publishes a device's unified state, retained, on
// {prefix}/core/device/{id}/state at the configured QoS.
func (c *Client) PublishDeviceState(deviceID string, payload []byte) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	return c.Publish(c.topics.CoreDeviceState(deviceID), payload, c.qos(), true)
}

// PublishCommandResult publishes a finished command result on
// {prefix}/core/device/{id}/result. Results are not retained.
func (c *Client) PublishCommandResult(deviceID string, payload []byte) error {
	if err := checkDeviceID(deviceID); err != nil {
		return err
	}
	return c.Publish(c.topics.CoreCommandResult(deviceID), payload, c.qos(), false)
}

// checkDeviceID reports whether id can sit in a single topic level.
func checkDeviceID(id string) error {
	if id == "" || strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}
	return nil
}
