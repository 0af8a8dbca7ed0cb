package world

import (
	"fmt"
	"sort"

	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
)

// Status is one applied property overlay. Overlay values shadow instance
// properties until the status expires: after a number of turn ticks, when an
// until-condition first holds, or never (permanent).
type Status struct {
	Name      string
	Source    string // entity or action that applied it
	Overlay   map[string]any
	TurnsLeft int // -1 when not turn-bounded
	Until     *selector.Condition
	UntilSrc  string
	Permanent bool
}

// Duration describes how long an applied status lasts. Exactly one of
// Turns > 0, Until, or Permanent should be set.
type Duration struct {
	Turns     int
	Until     *selector.Condition
	UntilSrc  string
	Permanent bool
}

// Expired identifies one status removal during a turn tick.
type Expired struct {
	Entity string
	Name   string
}

// ApplyStatus attaches a named status overlay to an entity, honoring the
// status definition's stacking policy.
func (w *World) ApplyStatus(id, name string, d Duration, source string) error {
	if _, ok := w.instances[id]; !ok {
		return entityErr(id)
	}
	def, ok := w.Defs.Statuses[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSuchStatus, name)
	}

	existing := 0
	for _, s := range w.statuses[id] {
		if s.Name == name {
			existing++
		}
	}
	switch def.Stacking {
	case types.StackRefresh:
		if existing > 0 {
			// Reset duration on the live stack instead of adding another.
			for _, s := range w.statuses[id] {
				if s.Name == name {
					w.refreshStatus(id, s, d)
				}
			}
			return nil
		}
	case types.StackLimited:
		if def.MaxStacks > 0 && existing >= def.MaxStacks {
			return nil
		}
	default: // StackNone
		if existing > 0 {
			return nil
		}
	}

	status := &Status{
		Name:      name,
		Source:    source,
		Overlay:   def.Overlay,
		TurnsLeft: -1,
		Until:     d.Until,
		UntilSrc:  d.UntilSrc,
		Permanent: d.Permanent,
	}
	if d.Turns > 0 {
		status.TurnsLeft = d.Turns
	}

	w.record(func() {
		w.statuses[id] = w.statuses[id][:len(w.statuses[id])-1]
		w.bumpOverlay(id, status.Overlay)
	})
	w.statuses[id] = append(w.statuses[id], status)
	w.bumpOverlay(id, status.Overlay)
	return nil
}

func (w *World) refreshStatus(id string, s *Status, d Duration) {
	oldTurns, oldUntil, oldSrc, oldPerm := s.TurnsLeft, s.Until, s.UntilSrc, s.Permanent
	w.record(func() {
		s.TurnsLeft, s.Until, s.UntilSrc, s.Permanent = oldTurns, oldUntil, oldSrc, oldPerm
	})
	s.TurnsLeft = -1
	if d.Turns > 0 {
		s.TurnsLeft = d.Turns
	}
	s.Until, s.UntilSrc, s.Permanent = d.Until, d.UntilSrc, d.Permanent
}

// RemoveStatus removes every stack of a named status. Reports whether any
// stack was present.
func (w *World) RemoveStatus(id, name string) (bool, error) {
	if _, ok := w.instances[id]; !ok {
		return false, entityErr(id)
	}
	return w.dropStatuses(id, func(s *Status) bool { return s.Name == name }), nil
}

func (w *World) dropStatuses(id string, match func(*Status) bool) bool {
	before := w.statuses[id]
	var kept []*Status
	dropped := false
	for _, s := range before {
		if match(s) {
			dropped = true
			w.bumpOverlay(id, s.Overlay)
		} else {
			kept = append(kept, s)
		}
	}
	if !dropped {
		return false
	}
	w.record(func() {
		w.statuses[id] = before
		for _, s := range before {
			if match(s) {
				w.bumpOverlay(id, s.Overlay)
			}
		}
	})
	w.statuses[id] = kept
	return true
}

// Statuses returns a copy of the entity's applied status list, oldest first.
func (w *World) Statuses(id string) []*Status {
	return append([]*Status(nil), w.statuses[id]...)
}

// TickStatuses advances every turn-bounded status by one tick and removes
// the ones that reach zero. Returns the removals, one per expired stack,
// in sorted entity order.
func (w *World) TickStatuses() []Expired {
	var expired []Expired
	for _, id := range w.sortedStatusEntities() {
		for _, s := range w.statuses[id] {
			if s.TurnsLeft > 0 {
				turns := s.TurnsLeft
				status := s
				w.record(func() { status.TurnsLeft = turns })
				s.TurnsLeft--
				if s.TurnsLeft == 0 {
					expired = append(expired, Expired{Entity: id, Name: s.Name})
				}
			}
		}
		for _, e := range expired {
			if e.Entity == id {
				w.dropStatuses(id, func(s *Status) bool { return s.Name == e.Name && s.TurnsLeft == 0 })
			}
		}
	}
	return expired
}

// UntilCandidates returns (entity, status) pairs carrying until-conditions,
// in sorted entity order. The engine evaluates the conditions — the world
// cannot, since until-conditions may read beyond the owning entity.
func (w *World) UntilCandidates() []Expired {
	var out []Expired
	for _, id := range w.sortedStatusEntities() {
		seen := map[string]bool{}
		for _, s := range w.statuses[id] {
			if s.Until != nil && !seen[s.Name] {
				seen[s.Name] = true
				out = append(out, Expired{Entity: id, Name: s.Name})
			}
		}
	}
	return out
}

// StatusUntil returns the until-condition for a named status on an entity.
func (w *World) StatusUntil(id, name string) (*selector.Condition, bool) {
	for _, s := range w.statuses[id] {
		if s.Name == name && s.Until != nil {
			return s.Until, true
		}
	}
	return nil, false
}

func (w *World) sortedStatusEntities() []string {
	var ids []string
	for id, list := range w.statuses {
		if len(list) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// bumpOverlay moves the write stamps of every overlay key so computed
// properties depending on them recompute.
func (w *World) bumpOverlay(id string, overlay map[string]any) {
	for key := range overlay {
		w.bump(id, key)
	}
}
