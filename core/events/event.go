package events

import "bazaar/core/types"

// Event represents a structured state change emitted by the node.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves into the
// generic attribute form persisted in the event log.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorded wraps an event that has been committed under a log sequence
// number. The node emits these downstream once state is durable.
type Recorded struct {
	Record types.EventRecord
}

// EventType implements Event.
func (r Recorded) EventType() string { return r.Record.Type }

// Event returns the attribute form of the committed event.
func (r Recorded) Event() *types.Event {
	attrs := make(map[string]string, len(r.Record.Attributes))
	for k, v := range r.Record.Attributes {
		attrs[k] = v
	}
	return &types.Event{Type: r.Record.Type, Attributes: attrs}
}
