// Package types defines the shared data structures for the worldcore kernel.
// This package contains only type definitions — no logic, no methods beyond
// trivial accessors.
package types

import "github.com/nathoo/worldcore/selector"

// Intent is the parsed representation of one command: a verb and the raw
// parameter tokens. Concrete textual syntax belongs to the presentation
// layer; this shape is the kernel's entire invocation contract.
type Intent struct {
	Verb   string
	Params []string
}

// PropType enumerates the declared property value types.
type PropType string

const (
	PropString  PropType = "string"
	PropNumber  PropType = "number"
	PropBoolean PropType = "boolean"
	PropEnum    PropType = "enum"
)

// PropSchema declares one typed property on a Definition.
type PropSchema struct {
	Type    PropType
	Default any
	Values  []string // enum members, PropEnum only
}

// ComputedDef is a derived, read-only property: a formula compiled once at
// load time plus its statically-derived dependency set. Dependencies are
// property keys on the same entity.
type ComputedDef struct {
	Formula string
	Expr    *selector.Condition
	Deps    []string
}

// Effect is a single primitive state-mutation descriptor. Entity-referencing
// params hold a compiled *selector.Selector; everything else is a literal.
// A []Effect is always applied as one atomic unit.
type Effect struct {
	Type   string
	Params map[string]any
}

// EventScope controls who observes an emitted event.
type EventScope string

const (
	ScopeSelf      EventScope = "self"      // originator only
	ScopeContainer EventScope = "container" // same container as the actor
	ScopeAdjacent  EventScope = "adjacent"  // same or linked container
	ScopeGlobal    EventScope = "global"
)

// Event is emitted after effects apply. It carries enough structure for an
// external renderer to build player-facing text without re-deriving state.
type Event struct {
	Type    string
	Actor   string
	Verb    string
	Targets []string
	Scope   EventScope
	Message string
	Data    map[string]any
}

// ParamSpec declares one action parameter: its binding name and an optional
// required type tag ("" accepts any entity).
type ParamSpec struct {
	Name string
	Type string
}

// ActionDef describes a globally-registered action or an entity-declared
// affordance: a requirement condition gating ordered effects, with a
// declared resource cost and observability scope.
type ActionDef struct {
	Name       string
	Params     []ParamSpec
	Require    *selector.Condition // nil means always allowed
	RequireSrc string              // surface text, for requirement reporting
	Effects    []Effect
	Cost       int
	Scope      EventScope
	Message    string
}

// TriggerDef is a reactive rule attached to a Definition: a condition whose
// false→true edge fires the activate effects and whose true→false edge fires
// the deactivate effects, per instance.
type TriggerDef struct {
	ID           string
	Condition    *selector.Condition
	Source       string
	OnActivate   []Effect
	OnDeactivate []Effect
}

// Definition is an immutable entity template. Shared by reference across
// instances; never mutated after load.
type Definition struct {
	ID          string
	Types       []string // type tags; capabilities dispatch on tag presence
	Props       map[string]PropSchema
	Computed    map[string]*ComputedDef
	Affordances []ActionDef
	Triggers    []TriggerDef
}

// HasType reports whether the definition carries a type tag.
func (d *Definition) HasType(tag string) bool {
	for _, t := range d.Types {
		if t == tag {
			return true
		}
	}
	return false
}

// LinkDef is an initial linked_to edge declared on an instance.
type LinkDef struct {
	To   string
	Kind string
}

// InstanceDef describes one entity of the initial population: a Definition
// reference, initial placement, and property overrides.
type InstanceDef struct {
	ID        string
	Of        string
	LocatedIn string
	Props     map[string]any
	Links     []LinkDef
}

// StackPolicy controls what happens when a status is applied twice.
type StackPolicy string

const (
	StackNone    StackPolicy = "no_stack" // second application is a no-op
	StackRefresh StackPolicy = "refresh"  // second application resets duration
	StackLimited StackPolicy = "stack"    // stacks up to MaxStacks
)

// StatusDef is a named property overlay with a stacking policy. Duration is
// chosen at apply time (turns, until-condition, or permanent).
type StatusDef struct {
	Name      string
	Overlay   map[string]any
	Stacking  StackPolicy
	MaxStacks int
}

// WorldDef holds world-level metadata from config.
type WorldDef struct {
	Title        string
	Description  string
	CascadeLimit int // max trigger firings per mutation step; 0 means default
}

// Result is the report of one performed action or turn advance.
type Result struct {
	Action string
	Cost   int // resource cost actually consumed: 0 on failure
	Events []Event
}
