package events

import "sync"

// EventCollector is embedded in aggregates to collect domain events during
// state transitions. It is safe for concurrent use.
type EventCollector struct {
	mu     sync.Mutex
	events []DomainEvent
}

// Record appends domain events to the collector.
func (c *EventCollector) Record(events ...DomainEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
}

// Pending returns the number of collected events.
func (c *EventCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// ClearEvents returns the collected domain events and clears the internal slice.
func (c *EventCollector) ClearEvents() []DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	collected := c.events
	c.events = nil
	return collected
}
