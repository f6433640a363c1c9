package mqtt

import (
	"fmt"
)

// StateHandler receives one backend-native state message with the backend
// and local device id already taken from the topic.
type StateHandler func(backend, localID string, payload []byte) error

// Subscribe registers handler for topic, which may contain the + and #
// wildcards. Handlers run on paho's goroutines and should return quickly.
//
// The subscription is tracked and restored after every reconnect. A
// subscription the broker refuses is not tracked.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(subscription{topic: topic, qos: qos, handler: handler})
	if err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.untrack(topic)
		return err
	}
	return nil
}

// Unsubscribe drops the subscription for the exact topic pattern given to
// Subscribe. Messages already in flight may still be delivered.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.untrack(topic)
	return await(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// SubscribeBackendStates subscribes handler to every
// {prefix}/state/{backend}/{localId} topic at the configured QoS. Messages
// on topics that do not parse are rejected before reaching handler.
func (c *Client) SubscribeBackendStates(handler StateHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: nil state handler", ErrSubscribeFailed)
	}
	return c.Subscribe(c.topics.AllBackendStates(), c.qos(), c.stateHandler(handler))
}

// UnsubscribeBackendStates reverses SubscribeBackendStates.
func (c *Client) UnsubscribeBackendStates() error {
	return c.Unsubscribe(c.topics.AllBackendStates())
}

// BackendStatesSubscribed reports whether the backend state subscription
// is tracked, that is, active now or due for restore on reconnect.
func (c *Client) BackendStatesSubscribed() bool {
	return c.hasSubscription(c.topics.AllBackendStates())
}

func (c *Client) stateHandler(handler StateHandler) MessageHandler {
	return func(topic string, payload []byte) error {
		backend, localID, ok := c.topics.ParseBackendState(topic)
		if !ok {
			return fmt.Errorf("unexpected state topic %q", topic)
		}
		return handler(backend, localID, payload)
	}
}

func (c *Client) track(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) untrack(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

func (c *Client) hasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}
