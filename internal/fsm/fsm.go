// Package fsm implements a small, generic table-driven state machine
// engine: a mapping from (state, event kind) to a transition function.
// Event delivery is serialized — only one handler runs at a time — and
// an unmatched (state, event) pair is routed to an inappropriate-event
// callback instead of panicking.
package fsm

import "sync"

// Kind identifies an event's tag in the transition table. Events form a
// closed sum type; each concrete event type reports its own Kind.
type Kind string

// Event is implemented by every member of the closed event set a
// Machine can receive.
type Event interface {
	Kind() Kind
}

// Handler computes the next state for an event received while the
// machine is in state. Side effects (collaborator calls, queue
// mutation) belong here and must not block: the engine holds its lock
// for the handler's duration.
type Handler[S comparable] func(state S, event Event) S

// InappropriateEventFunc is invoked when no transition is registered
// for a (state, event kind) pair. The state does not change.
type InappropriateEventFunc[S comparable] func(state S, event Event)

// Builder assembles a Machine's transition table one state at a time,
// mirroring a static per-state handler table rather than chained
// runtime registration.
type Builder[S comparable] struct {
	initial       S
	table         map[S]map[Kind]Handler[S]
	inappropriate InappropriateEventFunc[S]
}

// NewBuilder starts building a Machine whose initial state is initial.
func NewBuilder[S comparable](initial S) *Builder[S] {
	return &Builder[S]{
		initial: initial,
		table:   make(map[S]map[Kind]Handler[S]),
	}
}

// Transition registers the handler run when the machine is in state
// and receives an event of the given kind.
func (b *Builder[S]) Transition(state S, kind Kind, h Handler[S]) *Builder[S] {
	row, ok := b.table[state]
	if !ok {
		row = make(map[Kind]Handler[S])
		b.table[state] = row
	}
	row[kind] = h
	return b
}

// OnInappropriateEvent sets the callback for unmatched (state, event)
// pairs. If unset, unmatched events are silently dropped.
func (b *Builder[S]) OnInappropriateEvent(f InappropriateEventFunc[S]) *Builder[S] {
	b.inappropriate = f
	return b
}

// Build finalizes the transition table into a Machine.
func (b *Builder[S]) Build() *Machine[S] {
	return &Machine[S]{
		state:         b.initial,
		table:         b.table,
		inappropriate: b.inappropriate,
	}
}

// Machine is a mutex-serialized state x event -> state engine.
type Machine[S comparable] struct {
	mu            sync.Mutex
	state         S
	table         map[S]map[Kind]Handler[S]
	inappropriate InappropriateEventFunc[S]
}

// Handle runs the transition for event under the machine's lock and
// returns the resulting state. Only one Handle call executes at a time
// regardless of which goroutine calls it, so handlers never observe a
// concurrent transition in flight.
func (m *Machine[S]) Handle(event Event) S {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.state
	row, ok := m.table[cur]
	if !ok {
		if m.inappropriate != nil {
			m.inappropriate(cur, event)
		}
		return cur
	}
	h, ok := row[event.Kind()]
	if !ok {
		if m.inappropriate != nil {
			m.inappropriate(cur, event)
		}
		return cur
	}
	m.state = h(cur, event)
	return m.state
}

// State returns the current state. Safe to call concurrently with
// Handle; the returned value may be stale by the time it is used.
func (m *Machine[S]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
