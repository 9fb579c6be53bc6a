package events

import (
	"sync"

	"fieldsync/internal/queue"
)

// Kind tags a sync lifecycle event.
type Kind string

const (
	// KindStarted is emitted when a drain run acquires the sync lock.
	KindStarted Kind = "started"
	// KindItemSynced is emitted after an item is delivered and removed.
	KindItemSynced Kind = "item_synced"
	// KindItemFailed is emitted after an item delivery fails or is abandoned.
	KindItemFailed Kind = "item_failed"
	// KindCompleted is emitted when a run finishes, on every exit path.
	KindCompleted Kind = "completed"
)

// Event is the tagged variant delivered to observers. Item is set for
// item-scoped kinds; the counters and Errors are set for KindCompleted.
type Event struct {
	Kind   Kind
	Item   *queue.Item
	Error  string
	Synced int
	Failed int
	Errors []string
}

// Handler receives events. Handlers run synchronously on the emitting
// goroutine; events for a single run arrive in emission order.
type Handler func(Event)

// Bus broadcasts sync lifecycle events to subscribed handlers. The zero value
// is not usable; construct with NewBus.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers a handler and returns a function that removes it.
// Unsubscribing more than once is harmless.
func (b *Bus) Subscribe(handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers the event to every current subscriber. There is no ordering
// guarantee across distinct observers, only that each observer sees one run's
// events in emission order.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, handler := range b.handlers {
		handlers = append(handlers, handler)
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}
