// Package query resolves selectors and user-typed entity references against
// the live world. Everything here is read-only: resolution always sees the
// current graph and property state, and no result is cached across actions.
package query

import (
	"sort"
	"strings"

	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/world"
)

// Env binds a selector's contextual roots (this, actor, $params) to concrete
// instance ids and implements selector.Env over a world.
type Env struct {
	World    *world.World
	This     string
	Actor    string
	Bindings map[string]string
}

// Prop implements selector.Env.
func (e *Env) Prop(entity, key string) (any, bool) {
	return e.World.GetProp(entity, key)
}

// Resolve implements selector.Env: it returns the sorted, deduplicated set
// of instance ids the selector matches right now.
func (e *Env) Resolve(sel *selector.Selector) ([]string, error) {
	set, err := e.rootSet(sel.Target, sel)
	if err != nil {
		return nil, err
	}

	for _, step := range sel.Steps {
		next := map[string]bool{}
		for id := range set {
			for _, out := range e.stepTargets(id, step.Relation) {
				next[out] = true
			}
		}
		if step.Arg != nil {
			restrict, err := e.Resolve(step.Arg)
			if err != nil {
				return nil, err
			}
			next = intersect(next, restrict)
		}
		if step.Filter != nil {
			if err := e.applyFilter(next, step.Filter); err != nil {
				return nil, err
			}
		}
		set = next
	}

	if sel.Filter != nil {
		if err := e.applyFilter(set, sel.Filter); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (e *Env) rootSet(t *selector.Target, sel *selector.Selector) (map[string]bool, error) {
	set := map[string]bool{}
	switch {
	case t.ID != nil:
		if _, ok := e.World.Get(*t.ID); ok {
			set[*t.ID] = true
		}

	case t.Type != nil:
		for _, id := range e.World.InstanceIDs() {
			if e.World.HasTag(id, *t.Type) {
				set[id] = true
			}
		}

	case t.Name != nil:
		want := strings.ToLower(*t.Name)
		for _, id := range e.World.InstanceIDs() {
			if name, ok := e.World.GetProp(id, "name"); ok {
				if s, ok := name.(string); ok && strings.ToLower(s) == want {
					set[id] = true
				}
			}
		}

	case t.This:
		if e.This == "" {
			return nil, &selector.UnresolvedError{Expr: sel.String(), Reason: "no `this` in scope"}
		}
		set[e.This] = true

	case t.Actor:
		if e.Actor == "" {
			return nil, &selector.UnresolvedError{Expr: sel.String(), Reason: "no `actor` in scope"}
		}
		set[e.Actor] = true

	case t.Param != nil:
		bound, ok := e.Bindings[*t.Param]
		if !ok {
			return nil, &selector.UnresolvedError{Expr: sel.String(), Reason: "unbound parameter $" + *t.Param}
		}
		set[bound] = true
	}
	return set, nil
}

func (e *Env) stepTargets(id, relation string) []string {
	switch relation {
	case "located_in":
		if loc, ok := e.World.LocationOf(id); ok {
			return []string{loc}
		}
		return nil
	case "contains":
		return e.World.Contents(id)
	case "linked_to":
		return e.World.Linked(id, "")
	}
	return nil
}

func (e *Env) applyFilter(set map[string]bool, f *selector.Filter) error {
	for id := range set {
		ok, err := selector.FilterMatch(e, id, f)
		if err != nil {
			return err
		}
		if !ok {
			delete(set, id)
		}
	}
	return nil
}

func intersect(set map[string]bool, keep []string) map[string]bool {
	allowed := map[string]bool{}
	for _, id := range keep {
		allowed[id] = true
	}
	out := map[string]bool{}
	for id := range set {
		if allowed[id] {
			out[id] = true
		}
	}
	return out
}
