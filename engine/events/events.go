// Package events delivers kernel events to observers by scope. The bus is
// synchronous: Flush delivers in emission order and returns when every
// handler has run.
package events

import (
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

// Handler receives one delivered event.
type Handler func(types.Event)

// Bus routes events to per-entity observers and omniscient global handlers.
type Bus struct {
	observers map[string][]Handler
	global    []Handler
}

func NewBus() *Bus {
	return &Bus{observers: map[string][]Handler{}}
}

// Subscribe registers a handler on behalf of one entity. The handler sees
// only events whose scope reaches that entity.
func (b *Bus) Subscribe(observer string, fn Handler) {
	b.observers[observer] = append(b.observers[observer], fn)
}

// SubscribeGlobal registers a handler that sees every event regardless of
// scope. Used by logs and debugging views.
func (b *Bus) SubscribeGlobal(fn Handler) {
	b.global = append(b.global, fn)
}

// Flush delivers a batch in emission order. Scope is resolved against the
// world at delivery time, so effects that moved entities earlier in the
// batch change who observes later events.
func (b *Bus) Flush(w *world.World, events []types.Event) {
	for _, evt := range events {
		for _, fn := range b.global {
			fn(evt)
		}
		if len(b.observers) == 0 {
			continue
		}
		audience := b.audience(w, evt)
		for observer, handlers := range b.observers {
			if !audience(observer) {
				continue
			}
			for _, fn := range handlers {
				fn(evt)
			}
		}
	}
}

// audience returns a membership predicate for one event's scope, anchored
// at the event's actor.
func (b *Bus) audience(w *world.World, evt types.Event) func(string) bool {
	switch evt.Scope {
	case types.ScopeSelf:
		return func(id string) bool { return id == evt.Actor }

	case types.ScopeAdjacent:
		origin, ok := w.LocationOf(evt.Actor)
		if !ok {
			return func(id string) bool { return id == evt.Actor }
		}
		return func(id string) bool {
			if id == evt.Actor {
				return true
			}
			loc, ok := w.LocationOf(id)
			if !ok {
				return false
			}
			return loc == origin || w.Adjacent(loc, origin)
		}

	case types.ScopeGlobal:
		return func(string) bool { return true }
	}

	// Container scope is the default for events that omit one.
	origin, ok := w.LocationOf(evt.Actor)
	if !ok {
		return func(id string) bool { return id == evt.Actor }
	}
	return func(id string) bool {
		if id == evt.Actor {
			return true
		}
		loc, ok := w.LocationOf(id)
		return ok && loc == origin
	}
}
