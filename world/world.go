// Package world holds the simulation state: the immutable Defs loaded from
// config and the mutable World they instantiate. All mutation goes through
// the methods here, which feed the undo journal so effect batches can apply
// atomically. One World value is passed explicitly into every effect,
// condition, and query call — there are no ambient singletons, so multiple
// independent worlds can live in one process.
package world

import (
	"fmt"
	"sort"

	"github.com/nathoo/worldcore/types"
)

// DefaultCascadeLimit bounds trigger firings per mutation step when the
// world config does not set one.
const DefaultCascadeLimit = 8

// Defs holds the immutable definitions compiled from layered config.
// Never mutated after load.
type Defs struct {
	World       types.WorldDef
	Definitions map[string]*types.Definition
	DefOrder    []string // declaration order; drives trigger evaluation order
	Instances   []types.InstanceDef
	Actions     []types.ActionDef // global actions, declaration order
	Statuses    map[string]types.StatusDef
}

// Action finds a global action by verb.
func (d *Defs) Action(verb string) (*types.ActionDef, bool) {
	for i := range d.Actions {
		if d.Actions[i].Name == verb {
			return &d.Actions[i], true
		}
	}
	return nil, false
}

// CascadeLimit returns the configured trigger cascade bound.
func (d *Defs) CascadeLimit() int {
	if d.World.CascadeLimit > 0 {
		return d.World.CascadeLimit
	}
	return DefaultCascadeLimit
}

// Instance is one live entity. Its Definition is shared by reference and
// never written through.
type Instance struct {
	ID  string
	Def *types.Definition

	props    map[string]any // instance overrides and runtime writes
	computed map[string]*computedEntry
}

// World is the complete mutable simulation state.
type World struct {
	Defs *Defs

	instances map[string]*Instance
	locatedIn map[string]string
	contains  map[string]map[string]bool
	links     map[string]map[string]map[string]bool // from → to → kinds

	statuses  map[string][]*Status
	trigState map[string]bool

	stamps   map[string]map[string]uint64 // entity → key → last write stamp
	clock    uint64
	turn     int
	spawnSeq map[string]int

	journal []func()
	inBatch bool
}

// New builds a World from definitions: instantiates the initial population,
// places it, and wires declared links. Placement respects the same container
// and capacity rules as runtime moves.
func New(defs *Defs) (*World, error) {
	w := &World{
		Defs:      defs,
		instances: map[string]*Instance{},
		locatedIn: map[string]string{},
		contains:  map[string]map[string]bool{},
		links:     map[string]map[string]map[string]bool{},
		statuses:  map[string][]*Status{},
		trigState: map[string]bool{},
		stamps:    map[string]map[string]uint64{},
		spawnSeq:  map[string]int{},
	}

	for _, inst := range defs.Instances {
		def, ok := defs.Definitions[inst.Of]
		if !ok {
			return nil, fmt.Errorf("instance %q: unknown definition %q", inst.ID, inst.Of)
		}
		if err := w.addInstance(inst.ID, def, inst.Props); err != nil {
			return nil, fmt.Errorf("instance %q: %w", inst.ID, err)
		}
	}

	// Placement after all instances exist, so containers can be declared in
	// any order.
	for _, inst := range defs.Instances {
		if inst.LocatedIn != "" {
			if err := w.Move(inst.ID, inst.LocatedIn); err != nil {
				return nil, fmt.Errorf("placing %q: %w", inst.ID, err)
			}
		}
		for _, l := range inst.Links {
			if err := w.Link(inst.ID, l.To, l.Kind); err != nil {
				return nil, fmt.Errorf("linking %q: %w", inst.ID, err)
			}
		}
	}

	return w, nil
}

func (w *World) addInstance(id string, def *types.Definition, overrides map[string]any) error {
	if _, exists := w.instances[id]; exists {
		return fmt.Errorf("duplicate instance id %q", id)
	}
	props := map[string]any{}
	for key, raw := range overrides {
		schema, ok := def.Props[key]
		if !ok {
			return fmt.Errorf("%w: %q on definition %q", ErrUnknownProperty, key, def.ID)
		}
		v, err := coerce(schema, raw)
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		props[key] = v
	}
	inst := &Instance{ID: id, Def: def, props: props, computed: map[string]*computedEntry{}}
	w.record(func() { delete(w.instances, id) })
	w.instances[id] = inst
	return nil
}

// Spawn instantiates a definition with overrides, optionally placing it.
// Returns the new id, of the form "<definition>#<n>".
func (w *World) Spawn(defID string, overrides map[string]any, container string) (string, error) {
	def, ok := w.Defs.Definitions[defID]
	if !ok {
		return "", fmt.Errorf("spawn: unknown definition %q", defID)
	}
	var id string
	for {
		w.spawnSeq[defID]++
		id = fmt.Sprintf("%s#%d", defID, w.spawnSeq[defID])
		if _, taken := w.instances[id]; !taken {
			break
		}
	}
	if err := w.addInstance(id, def, overrides); err != nil {
		return "", err
	}
	if container != "" {
		if err := w.Move(id, container); err != nil {
			return "", err
		}
	}
	return id, nil
}

// Destroy removes an instance: detaches every relation it participates in,
// cancels statuses it sourced elsewhere, and drops its trigger states.
// Entities it contained are left without a location.
func (w *World) Destroy(id string) error {
	inst, ok := w.instances[id]
	if !ok {
		return entityErr(id)
	}

	w.detach(id)
	for _, contained := range w.Contents(id) {
		w.detach(contained)
	}

	// Links in both directions.
	for to, kinds := range w.links[id] {
		for kind := range kinds {
			w.unlink(id, to, kind)
		}
	}
	for from, targets := range w.links {
		for kind := range targets[id] {
			w.unlink(from, id, kind)
		}
	}

	// Statuses on the entity, and statuses elsewhere that it sourced.
	w.dropStatuses(id, func(*Status) bool { return true })
	for other := range w.statuses {
		if other != id {
			w.dropStatuses(other, func(s *Status) bool { return s.Source == id })
		}
	}

	// Trigger states for this instance.
	for _, trig := range inst.Def.Triggers {
		w.clearTriggerState(triggerKey(trig.ID, id))
	}

	w.record(func() { w.instances[id] = inst })
	delete(w.instances, id)
	return nil
}

// Get returns a live instance.
func (w *World) Get(id string) (*Instance, bool) {
	inst, ok := w.instances[id]
	return inst, ok
}

// HasTag reports whether an instance's definition carries a type tag.
func (w *World) HasTag(id, tag string) bool {
	inst, ok := w.instances[id]
	return ok && inst.Def.HasType(tag)
}

// InstanceIDs returns all live instance ids, sorted for determinism.
func (w *World) InstanceIDs() []string {
	ids := make([]string, 0, len(w.instances))
	for id := range w.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InstancesOf returns the sorted ids of every live instance of a definition.
func (w *World) InstancesOf(defID string) []string {
	var ids []string
	for id, inst := range w.instances {
		if inst.Def.ID == defID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Turn returns the current turn number.
func (w *World) Turn() int { return w.turn }

// AdvanceTurnCounter increments the turn clock.
func (w *World) AdvanceTurnCounter() { w.turn++ }

// TriggerState returns the last-evaluated boolean for a (trigger, instance)
// pair. Unseen pairs read false.
func (w *World) TriggerState(key string) bool {
	return w.trigState[key]
}

// SetTriggerState records a trigger's last-evaluated boolean.
func (w *World) SetTriggerState(key string, v bool) {
	old, existed := w.trigState[key]
	w.record(func() {
		if existed {
			w.trigState[key] = old
		} else {
			delete(w.trigState, key)
		}
	})
	w.trigState[key] = v
}

func (w *World) clearTriggerState(key string) {
	old, existed := w.trigState[key]
	if !existed {
		return
	}
	w.record(func() { w.trigState[key] = old })
	delete(w.trigState, key)
}

// TriggerKey names a (trigger, instance) state slot.
func TriggerKey(triggerID, instanceID string) string {
	return triggerKey(triggerID, instanceID)
}

func triggerKey(triggerID, instanceID string) string {
	return triggerID + "@" + instanceID
}
