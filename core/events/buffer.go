package events

import (
	"sync"

	"bazaar/core/types"
)

// Buffer collects events in emission order until the caller decides whether
// the surrounding operation commits.
type Buffer struct {
	mu     sync.Mutex
	events []*types.Event
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit implements Emitter. Events that cannot render an attribute payload are
// recorded with their type only.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	var rendered *types.Event
	if p, ok := evt.(Payload); ok {
		rendered = p.Event()
	}
	if rendered == nil {
		rendered = &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	}
	b.mu.Lock()
	b.events = append(b.events, rendered)
	b.mu.Unlock()
}

// Events returns the buffered events.
func (b *Buffer) Events() []*types.Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Reset drops all buffered events.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Multi fans a single event out to several emitters.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(evt Event) {
	for _, emitter := range m {
		if emitter == nil {
			continue
		}
		emitter.Emit(evt)
	}
}
