package mqtt

import "errors"

// Broker connection errors.
var (
	ErrNotConnected     = errors.New("mqtt: not connected to broker")
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")
)

// Operation errors. Broker-side failures wrap one of these together with
// the paho error, or with ErrAckTimeout when no acknowledgement arrived.
var (
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")
	ErrAckTimeout        = errors.New("mqtt: broker did not acknowledge in time")
)

// Argument errors are returned before anything is sent to the broker.
var (
	ErrInvalidQoS      = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrInvalidTopic    = errors.New("mqtt: empty topic")
	ErrPayloadTooLarge = errors.New("mqtt: payload exceeds size limit")

	// ErrInvalidDeviceID rejects ids that would change the topic shape:
	// empty, or containing a level separator or wildcard.
	ErrInvalidDeviceID = errors.New("mqtt: device id not usable in a topic")
)
