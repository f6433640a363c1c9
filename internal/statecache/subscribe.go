package statecache

import (
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// Source says how a state reached the cache.
type Source string

// Update sources.
const (
	SourceFetch Source = "fetch"
	SourcePush  Source = "push"
)

// Update is published for every state stored in the cache.
type Update struct {
	DeviceID device.UniversalID
	State    device.State
	Source   Source
}

// DefaultSubscriberBuffer is used when Subscribe is given a buffer < 1.
const DefaultSubscriberBuffer = 64

type subscriber struct {
	ch chan Update
}

// Subscribe registers a channel that receives every stored state. A full
// channel drops updates rather than block writers; drops are counted in
// Stats. The returned cancel closes the channel and may be called more than
// once.
func (c *Cache) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	sub := &subscriber{ch: make(chan Update, buffer)}

	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	c.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subsMu.Lock()
			defer c.subsMu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// Close closes every subscriber channel.
func (c *Cache) Close() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub.ch)
	}
}

func (c *Cache) publish(u Update) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, sub := range c.subs {
		select {
		case sub.ch <- u:
		default:
			c.dropped.Add(1)
			c.logger.Debug("dropping state update for slow subscriber", "device", u.DeviceID)
		}
	}
}
