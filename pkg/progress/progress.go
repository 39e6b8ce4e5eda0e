// Package progress broadcasts pipeline status events to any number of
// subscribers. Delivery is at-least-once and fire-and-forget: publishing
// never blocks pipeline logic, and a slow subscriber loses events instead
// of applying backpressure.
package progress

import (
	"sync"
	"time"
)

// Status is the fixed vocabulary of pipeline states an event can carry.
type Status string

const (
	StatusReading   Status = "reading"
	StatusWriting   Status = "writing"
	StatusVerifying Status = "verifying"
	StatusFixing    Status = "fixing"
	StatusVerified  Status = "verified"
)

// Event is one progress update for a single artifact. Events for one
// artifact arrive in emission order; ordering across artifacts is
// unspecified.
type Event struct {
	Status    Status    `json:"status"`
	Path      string    `json:"path"`
	Message   string    `json:"message"`
	Snapshot  string    `json:"snapshot,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Subscriber receives events. It runs on its own goroutine; panics are
// contained so a broken subscriber cannot disrupt the bus.
type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe fan-out over buffered channels.
// A nil *Bus is valid and discards everything, so components can hold an
// optional bus without nil checks at every call site.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	closed      bool
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers fn and returns an unsubscribe function.
func (b *Bus) Subscribe(fn Subscriber) func() {
	if b == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	ch := make(chan Event, b.bufferSize)
	b.subscribers = append(b.subscribers, ch)

	go func() {
		for event := range ch {
			func() {
				defer func() {
					_ = recover()
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subscribers {
			if sub == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

// Publish fans an event out to all subscribers. If a subscriber's buffer is
// full the event is dropped for that subscriber.
func (b *Bus) Publish(status Status, path, message, snapshot string) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	event := Event{
		Status:    status,
		Path:      path,
		Message:   message,
		Snapshot:  snapshot,
		Timestamp: time.Now().UTC(),
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes all subscriber channels. Publishing after Close is a no-op.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
