// Package events fans node activity, such as mined blocks and dispatched
// connections, out to websocket subscribers.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is how many messages a subscriber can fall behind before
// messages are dropped for it.
const DefaultBuffer = 100

// Events tracks the feed of every subscriber by its trace id.
type Events struct {
	buffer int

	mu          sync.RWMutex
	subscribers map[string]chan string
	closed      bool

	dropped atomic.Uint64
}

// WithBuffer sets how many messages a subscriber can fall behind.
func WithBuffer(n int) func(evt *Events) {
	return func(evt *Events) {
		if n > 0 {
			evt.buffer = n
		}
	}
}

// New constructs an empty set of subscribers.
func New(options ...func(evt *Events)) *Events {
	evt := Events{
		buffer:      DefaultBuffer,
		subscribers: make(map[string]chan string),
	}

	for _, option := range options {
		option(&evt)
	}

	return &evt
}

// Shutdown closes the feed of every subscriber. A later Acquire returns a
// closed feed and Send does nothing.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	evt.closed = true
	for id, ch := range evt.subscribers {
		delete(evt.subscribers, id)
		close(ch)
	}
}

// Acquire returns the feed for the subscriber id, registering the id on
// first use.
func (evt *Events) Acquire(id string) <-chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.subscribers[id]; exists {
		return ch
	}

	ch := make(chan string, evt.buffer)
	if evt.closed {
		close(ch)
		return ch
	}

	evt.subscribers[id] = ch
	return ch
}

// Release closes the feed of the subscriber id and forgets it.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subscribers[id]
	if !exists {
		return fmt.Errorf("subscriber %q does not exist", id)
	}

	delete(evt.subscribers, id)
	close(ch)
	return nil
}

// Send copies the message into the feed of every subscriber. A subscriber
// whose feed is full misses the message, Send never waits on one.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.subscribers {
		select {
		case ch <- s:
		default:
			evt.dropped.Add(1)
		}
	}
}

// Len returns the number of subscribers.
func (evt *Events) Len() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.subscribers)
}

// Dropped returns how many messages were missed by full feeds.
func (evt *Events) Dropped() uint64 {
	return evt.dropped.Load()
}
