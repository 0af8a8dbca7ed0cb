package world

import (
	"fmt"

	"github.com/nathoo/worldcore/selector"
)

// Computed properties are derived values cached per instance. The loader
// restricts formulas to this.prop.* references, so each formula's dependency
// set is static; a cached value stays valid until some dependency's write
// stamp moves. Cycles among computed properties are rejected at load time
// and can never occur here.

type computedEntry struct {
	value any
	deps  map[string]uint64 // dependency stamps at compute time
}

// ResolveComputed returns a computed property's value, recomputing only if a
// tracked dependency changed since the last read.
func (w *World) ResolveComputed(id, key string) (any, error) {
	inst, ok := w.instances[id]
	if !ok {
		return nil, entityErr(id)
	}
	cd, ok := inst.Def.Computed[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not computed on %q", ErrUnknownProperty, key, inst.Def.ID)
	}

	if entry, ok := inst.computed[key]; ok && w.depsFresh(id, entry) {
		return entry.value, nil
	}

	deps := make(map[string]uint64, len(cd.Deps))
	for _, dep := range cd.Deps {
		deps[dep] = w.stamp(id, dep)
	}
	value, err := selector.EvalScalar(cd.Expr, &computeEnv{w: w, id: id})
	if err != nil {
		return nil, fmt.Errorf("computing %q on %q: %w", key, id, err)
	}
	inst.computed[key] = &computedEntry{value: value, deps: deps}
	return value, nil
}

func (w *World) depsFresh(id string, entry *computedEntry) bool {
	for dep, seen := range entry.deps {
		if w.stamp(id, dep) != seen {
			return false
		}
	}
	return true
}

// computeEnv is the minimal evaluation environment a this-only formula
// needs: the owning instance and its effective properties. Nested computed
// reads recurse through GetProp; load-time cycle checking keeps that finite.
type computeEnv struct {
	w  *World
	id string
}

func (e *computeEnv) Resolve(sel *selector.Selector) ([]string, error) {
	if sel.IsThis() {
		return []string{e.id}, nil
	}
	return nil, &selector.UnresolvedError{
		Expr:   sel.String(),
		Reason: "computed formulas may only reference this.prop.*",
	}
}

func (e *computeEnv) Prop(entity, key string) (any, bool) {
	return e.w.GetProp(entity, key)
}
