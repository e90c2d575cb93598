// Package annotations provides a low-overhead event system for observing
// store activity: database lifecycle, layer commits and loads, and head
// transitions. Events are delivered synchronously to a Handler.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Store lifecycle
	StoreOpened = "store/opened"
	StoreClosed = "store/closed"

	// Databases (labels)
	DatabaseCreated = "database/created"
	DatabaseDeleted = "database/deleted"

	// Layers
	LayerCommitted = "layer/committed"
	LayerLoaded    = "layer/loaded"

	// Head transitions
	HeadAdvanced = "head/advanced"
	HeadRejected = "head/rejected"

	// Errors
	ErrorBackend = "error/backend"
)

// Event represents a single annotation event.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// maxRetained bounds how many recent events a Collector keeps
const maxRetained = 1024

// Collector forwards events to a handler and keeps the most recent ones.
// A Collector with a nil handler is disabled and drops everything.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
	mu      sync.Mutex
}

// NewCollector creates a new annotation collector.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 64),
	}
}

// Enabled reports whether events are being recorded
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	if len(c.events) == maxRetained {
		copy(c.events, c.events[1:])
		c.events = c.events[:maxRetained-1]
	}
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	c.handler(event)
}

// AddTiming records an event that started at start and ends now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.Enabled() {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns a copy of the retained events, oldest first.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Reset clears collected events. The handler stays attached.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}
