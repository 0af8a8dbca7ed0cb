package world

import (
	"fmt"
	"sort"
)

// The relation graph holds three edge kinds: located_in (exclusive, at most
// one per entity), contains (its required inverse), and linked_to (typed
// generic adjacency). The located_in/contains invariant is enforced only
// here, inside Move and Destroy — never by callers.

// LocationOf returns the entity's container, if any.
func (w *World) LocationOf(id string) (string, bool) {
	loc, ok := w.locatedIn[id]
	return loc, ok
}

// Contents returns the sorted ids located in a container.
func (w *World) Contents(id string) []string {
	set := w.contains[id]
	ids := make([]string, 0, len(set))
	for member := range set {
		ids = append(ids, member)
	}
	sort.Strings(ids)
	return ids
}

// Linked returns the sorted targets of an entity's outgoing linked_to edges.
// kind "" matches every kind.
func (w *World) Linked(id, kind string) []string {
	var ids []string
	for to, kinds := range w.links[id] {
		if kind == "" || kinds[kind] {
			ids = append(ids, to)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasLink reports whether a linked_to edge exists.
func (w *World) HasLink(a, b, kind string) bool {
	return w.links[a][b][kind]
}

// Adjacent reports whether two entities share a linked_to edge in either
// direction. Event scoping uses this for adjacent-container delivery.
func (w *World) Adjacent(a, b string) bool {
	return len(w.links[a][b]) > 0 || len(w.links[b][a]) > 0
}

// Move atomically reparents an entity: the prior located_in/contains pair
// detaches and the new one attaches, or nothing changes. Fails
// ErrInvalidTarget if the target lacks the container tag or the move would
// create a containment cycle, ErrCapacityExceeded if the target is full.
func (w *World) Move(id, container string) error {
	if _, ok := w.instances[id]; !ok {
		return entityErr(id)
	}
	target, ok := w.instances[container]
	if !ok {
		return entityErr(container)
	}
	if !target.Def.HasType("container") {
		return fmt.Errorf("%w: %q is not a container", ErrInvalidTarget, container)
	}
	if w.locatedIn[id] == container {
		return nil
	}
	// Reject moving an entity into itself or its own contents.
	for anc, ok := container, true; ok; anc, ok = w.locatedIn[anc] {
		if anc == id {
			return fmt.Errorf("%w: moving %q into %q creates a containment cycle", ErrInvalidTarget, id, container)
		}
	}
	if capRaw, ok := w.GetProp(container, "capacity"); ok {
		if capacity, isNum := capRaw.(float64); isNum && float64(len(w.contains[container])) >= capacity {
			return fmt.Errorf("%w: %q holds %d of %d", ErrCapacityExceeded, container, len(w.contains[container]), int(capacity))
		}
	}

	w.detach(id)
	w.attach(id, container)
	return nil
}

// Link adds a typed linked_to edge from a to b.
func (w *World) Link(a, b, kind string) error {
	if _, ok := w.instances[a]; !ok {
		return entityErr(a)
	}
	if _, ok := w.instances[b]; !ok {
		return entityErr(b)
	}
	if kind == "" {
		return fmt.Errorf("%w: link needs a kind", ErrInvalidTarget)
	}
	if w.links[a][b][kind] {
		return nil
	}
	w.record(func() { w.removeLink(a, b, kind) })
	w.addLink(a, b, kind)
	return nil
}

// Unlink removes a typed linked_to edge. Removing an absent edge is a no-op.
func (w *World) Unlink(a, b, kind string) error {
	if _, ok := w.instances[a]; !ok {
		return entityErr(a)
	}
	if !w.links[a][b][kind] {
		return nil
	}
	w.unlink(a, b, kind)
	return nil
}

func (w *World) unlink(a, b, kind string) {
	w.record(func() { w.addLink(a, b, kind) })
	w.removeLink(a, b, kind)
}

func (w *World) addLink(a, b, kind string) {
	targets, ok := w.links[a]
	if !ok {
		targets = map[string]map[string]bool{}
		w.links[a] = targets
	}
	kinds, ok := targets[b]
	if !ok {
		kinds = map[string]bool{}
		targets[b] = kinds
	}
	kinds[kind] = true
}

func (w *World) removeLink(a, b, kind string) {
	kinds := w.links[a][b]
	delete(kinds, kind)
	if len(kinds) == 0 {
		delete(w.links[a], b)
	}
}

func (w *World) attach(id, container string) {
	w.record(func() {
		delete(w.locatedIn, id)
		delete(w.contains[container], id)
	})
	w.locatedIn[id] = container
	set, ok := w.contains[container]
	if !ok {
		set = map[string]bool{}
		w.contains[container] = set
	}
	set[id] = true
}

func (w *World) detach(id string) {
	prior, ok := w.locatedIn[id]
	if !ok {
		return
	}
	w.record(func() {
		w.locatedIn[id] = prior
		set, ok := w.contains[prior]
		if !ok {
			set = map[string]bool{}
			w.contains[prior] = set
		}
		set[id] = true
	})
	delete(w.locatedIn, id)
	delete(w.contains[prior], id)
}
