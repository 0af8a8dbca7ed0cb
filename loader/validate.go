package loader

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

// ValidationError collects all validation errors and warnings. Loading
// fails on any error; warnings are logged and loading proceeds.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

var validPropTypes = map[types.PropType]bool{
	types.PropString:  true,
	types.PropNumber:  true,
	types.PropBoolean: true,
	types.PropEnum:    true,
}

var validScopes = map[types.EventScope]bool{
	types.ScopeSelf:      true,
	types.ScopeContainer: true,
	types.ScopeAdjacent:  true,
	types.ScopeGlobal:    true,
}

var validStackPolicies = map[types.StackPolicy]bool{
	types.StackNone:    true,
	types.StackRefresh: true,
	types.StackLimited: true,
}

// requiredEffectParams maps each effect type to the params it must carry.
var requiredEffectParams = map[string][]string{
	"set_property":       {"entity", "key", "value"},
	"increment_property": {"entity", "key", "amount"},
	"toggle_property":    {"entity", "key"},
	"move_entity":        {"entity", "container"},
	"link":               {"a", "b", "kind"},
	"unlink":             {"a", "b", "kind"},
	"spawn_entity":       {"definition"},
	"destroy_entity":     {"entity"},
	"emit_event":         {"event"},
	"apply_status":       {"entity", "status"},
	"remove_status":      {"entity", "status"},
}

// validate runs the referential and semantic checks on compiled defs. All
// problems are collected before returning, so a broken world reports every
// defect in one load attempt.
func validate(defs *world.Defs) error {
	ve := &ValidationError{}

	if defs.World.Title == "" {
		ve.Errors = append(ve.Errors, "World.title is required")
	}
	if defs.World.CascadeLimit < 0 {
		ve.Errors = append(ve.Errors, "World.cascade_limit must not be negative")
	}

	for _, id := range defs.DefOrder {
		validateDefinition(ve, defs, defs.Definitions[id])
	}
	validateInstances(ve, defs)
	for i := range defs.Actions {
		validateAction(ve, defs, fmt.Sprintf("action %q", defs.Actions[i].Name), &defs.Actions[i])
	}
	for name, st := range defs.Statuses {
		validateStatus(ve, name, st)
	}

	for _, w := range ve.Warnings {
		slog.Warn("world validation", "warning", w)
	}
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDefinition(ve *ValidationError, defs *world.Defs, def *types.Definition) {
	ctx := fmt.Sprintf("definition %q", def.ID)

	propKeys := make([]string, 0, len(def.Props))
	for k := range def.Props {
		propKeys = append(propKeys, k)
	}
	sort.Strings(propKeys)
	for _, key := range propKeys {
		validatePropSchema(ve, fmt.Sprintf("%s: prop %q", ctx, key), def.Props[key])
		if _, clash := def.Computed[key]; clash {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: %q is both a declared and a computed property", ctx, key))
		}
	}
	// Capacity is only consulted when moving into a container, so declaring
	// it elsewhere would be silently inert.
	if _, hasCapacity := def.Props["capacity"]; hasCapacity && !def.HasType("container") {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"%s: capacity declared without the container type", ctx))
	}

	validateComputed(ve, ctx, def)

	seen := map[string]bool{}
	for i := range def.Affordances {
		act := &def.Affordances[i]
		if seen[act.Name] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: duplicate affordance %q", ctx, act.Name))
		}
		seen[act.Name] = true
		validateAction(ve, defs, fmt.Sprintf("%s: affordance %q", ctx, act.Name), act)
	}

	trigSeen := map[string]bool{}
	for i := range def.Triggers {
		trig := &def.Triggers[i]
		tctx := fmt.Sprintf("%s: trigger %q", ctx, trig.ID)
		if trigSeen[trig.ID] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: duplicate trigger %q", ctx, trig.ID))
		}
		trigSeen[trig.ID] = true
		validateEffects(ve, defs, tctx+": on_activate", trig.OnActivate)
		validateEffects(ve, defs, tctx+": on_deactivate", trig.OnDeactivate)
		checkOscillation(ve, tctx, trig)
	}
}

func validatePropSchema(ve *ValidationError, ctx string, schema types.PropSchema) {
	if !validPropTypes[schema.Type] {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown type %q", ctx, schema.Type))
		return
	}
	if schema.Type == types.PropEnum && len(schema.Values) == 0 {
		ve.Errors = append(ve.Errors, ctx+": enum needs a values list")
		return
	}
	if schema.Default == nil {
		ve.Errors = append(ve.Errors, ctx+": default is required")
		return
	}
	switch schema.Type {
	case types.PropString:
		if _, ok := schema.Default.(string); !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: default %v is not a string", ctx, schema.Default))
		}
	case types.PropNumber:
		if _, ok := schema.Default.(float64); !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: default %v is not a number", ctx, schema.Default))
		}
	case types.PropBoolean:
		if _, ok := schema.Default.(bool); !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: default %v is not a boolean", ctx, schema.Default))
		}
	case types.PropEnum:
		s, ok := schema.Default.(string)
		if !ok || !contains(schema.Values, s) {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: default %v is not one of %v", ctx, schema.Default, schema.Values))
		}
	}
}

// validateComputed checks that every computed dependency exists on the same
// definition and that the dependency graph between computed properties is
// acyclic.
func validateComputed(ve *ValidationError, ctx string, def *types.Definition) {
	keys := make([]string, 0, len(def.Computed))
	for k := range def.Computed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		comp := def.Computed[key]
		if comp.Expr == nil {
			continue // parse error already reported
		}
		for _, dep := range comp.Deps {
			_, isProp := def.Props[dep]
			_, isComputed := def.Computed[dep]
			if !isProp && !isComputed {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: computed %q depends on undeclared property %q", ctx, key, dep))
			}
		}
	}

	// DFS over computed→computed edges. 0 unvisited, 1 on stack, 2 done.
	state := map[string]int{}
	var visit func(key string, path []string) bool
	visit = func(key string, path []string) bool {
		switch state[key] {
		case 1:
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: computed dependency cycle: %s", ctx, strings.Join(append(path, key), " -> ")))
			return false
		case 2:
			return true
		}
		state[key] = 1
		if comp := def.Computed[key]; comp != nil && comp.Expr != nil {
			for _, dep := range comp.Deps {
				if _, isComputed := def.Computed[dep]; isComputed {
					if !visit(dep, append(path, key)) {
						break
					}
				}
			}
		}
		state[key] = 2
		return true
	}
	for _, key := range keys {
		visit(key, nil)
	}
}

// checkOscillation inspects a trigger whose effects write a property its own
// condition reads on the same entity. When both edges write such a property
// the trigger is a static flip-flop that can never settle, so it is rejected.
// A single-edge write only converges or burns out at runtime, so it stays a
// warning.
func checkOscillation(ve *ValidationError, ctx string, trig *types.TriggerDef) {
	if trig.Condition == nil {
		return
	}
	read := map[string]bool{}
	for _, k := range selector.PropKeys(trig.Condition) {
		read[k] = true
	}
	onActivate := selfWrites(trig.OnActivate, read)
	onDeactivate := selfWrites(trig.OnDeactivate, read)

	keys := map[string]bool{}
	for k := range onActivate {
		keys[k] = true
	}
	for k := range onDeactivate {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		if onActivate[key] && onDeactivate[key] {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: trigger cycle: both edges write %q, which its own condition reads", ctx, key))
		} else {
			ve.Warnings = append(ve.Warnings, fmt.Sprintf(
				"%s: writes %q which its own condition reads; may oscillate", ctx, key))
		}
	}
}

// selfWrites returns the condition-read properties an effect list writes on
// the trigger's own entity.
func selfWrites(effs []types.Effect, read map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, eff := range effs {
		switch eff.Type {
		case "set_property", "increment_property", "toggle_property":
		default:
			continue
		}
		sel, ok := eff.Params["entity"].(*selector.Selector)
		if !ok || !sel.IsThis() {
			continue
		}
		if key, ok := eff.Params["key"].(string); ok && read[key] {
			out[key] = true
		}
	}
	return out
}

func validateAction(ve *ValidationError, defs *world.Defs, ctx string, act *types.ActionDef) {
	seen := map[string]bool{}
	for _, p := range act.Params {
		if p.Name == "" {
			ve.Errors = append(ve.Errors, ctx+": empty parameter name")
		}
		if seen[p.Name] {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: duplicate parameter %q", ctx, p.Name))
		}
		seen[p.Name] = true
	}
	if act.Scope != "" && !validScopes[act.Scope] {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown scope %q", ctx, act.Scope))
	}
	validateEffects(ve, defs, ctx+": effects", act.Effects)
}

func validateEffects(ve *ValidationError, defs *world.Defs, ctx string, effs []types.Effect) {
	for i, eff := range effs {
		ectx := fmt.Sprintf("%s[%d] (%s)", ctx, i+1, eff.Type)
		required, known := requiredEffectParams[eff.Type]
		if !known {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown effect type %q", ectx, eff.Type))
			continue
		}
		for _, p := range required {
			if _, ok := eff.Params[p]; !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: missing param %q", ectx, p))
			}
		}
		switch eff.Type {
		case "spawn_entity":
			if defID, ok := eff.Params["definition"].(string); ok {
				if _, exists := defs.Definitions[defID]; !exists {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"%s: references undefined definition %q", ectx, defID))
				}
			}
		case "apply_status", "remove_status":
			if name, ok := eff.Params["status"].(string); ok {
				if _, exists := defs.Statuses[name]; !exists {
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"%s: references undefined status %q", ectx, name))
				}
			}
		case "emit_event":
			if s, ok := eff.Params["scope"].(string); ok && !validScopes[types.EventScope(s)] {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown scope %q", ectx, s))
			}
		}
	}
}

func validateInstances(ve *ValidationError, defs *world.Defs) {
	byID := map[string]*types.InstanceDef{}
	for i := range defs.Instances {
		byID[defs.Instances[i].ID] = &defs.Instances[i]
	}

	for i := range defs.Instances {
		inst := &defs.Instances[i]
		ctx := fmt.Sprintf("instance %q", inst.ID)

		def, ok := defs.Definitions[inst.Of]
		if inst.Of == "" {
			ve.Errors = append(ve.Errors, ctx+": missing of")
			continue
		}
		if !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: references undefined definition %q", ctx, inst.Of))
			continue
		}

		propKeys := make([]string, 0, len(inst.Props))
		for k := range inst.Props {
			propKeys = append(propKeys, k)
		}
		sort.Strings(propKeys)
		for _, key := range propKeys {
			if _, computed := def.Computed[key]; computed {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: cannot override computed property %q", ctx, key))
				continue
			}
			schema, declared := def.Props[key]
			if !declared {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: property %q is not declared on %q", ctx, key, inst.Of))
				continue
			}
			if !valueMatches(schema, inst.Props[key]) {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: property %q: %v does not match declared type %s",
					ctx, key, inst.Props[key], schema.Type))
			}
		}

		if inst.LocatedIn != "" {
			target, exists := byID[inst.LocatedIn]
			if !exists {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: located_in references undefined instance %q", ctx, inst.LocatedIn))
			} else if td, ok := defs.Definitions[target.Of]; ok && !td.HasType("container") {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: located_in %q, whose definition %q is not a container",
					ctx, inst.LocatedIn, target.Of))
			}
		}
		for _, link := range inst.Links {
			if _, exists := byID[link.To]; !exists {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: link references undefined instance %q", ctx, link.To))
			}
			if link.Kind == "" {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: link to %q has no kind", ctx, link.To))
			}
		}
	}

	checkContainmentCycles(ve, defs, byID)
}

// checkContainmentCycles rejects initial placements where an entity
// transitively contains itself.
func checkContainmentCycles(ve *ValidationError, defs *world.Defs, byID map[string]*types.InstanceDef) {
	reported := map[string]bool{}
	for i := range defs.Instances {
		start := defs.Instances[i].ID
		seen := map[string]bool{start: true}
		cur := defs.Instances[i].LocatedIn
		for cur != "" {
			if seen[cur] {
				if !reported[cur] {
					reported[cur] = true
					ve.Errors = append(ve.Errors, fmt.Sprintf(
						"containment cycle through instance %q", cur))
				}
				break
			}
			seen[cur] = true
			next, ok := byID[cur]
			if !ok {
				break
			}
			cur = next.LocatedIn
		}
	}
}

func validateStatus(ve *ValidationError, name string, st types.StatusDef) {
	ctx := fmt.Sprintf("status %q", name)
	if st.Stacking != "" && !validStackPolicies[st.Stacking] {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: unknown stacking policy %q", ctx, st.Stacking))
	}
	if st.Stacking == types.StackLimited && st.MaxStacks < 2 {
		ve.Errors = append(ve.Errors, ctx+": stacking needs max_stacks of at least 2")
	}
	if st.Stacking != types.StackLimited && st.MaxStacks != 0 {
		ve.Errors = append(ve.Errors, ctx+": max_stacks only applies to the stack policy")
	}
	if len(st.Overlay) == 0 {
		ve.Warnings = append(ve.Warnings, ctx+": empty overlay has no effect")
	}
}

func valueMatches(schema types.PropSchema, v any) bool {
	switch schema.Type {
	case types.PropString:
		_, ok := v.(string)
		return ok
	case types.PropNumber:
		_, ok := v.(float64)
		return ok
	case types.PropBoolean:
		_, ok := v.(bool)
		return ok
	case types.PropEnum:
		s, ok := v.(string)
		return ok && contains(schema.Values, s)
	}
	return false
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
