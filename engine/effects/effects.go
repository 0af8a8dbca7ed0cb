// Package effects applies ordered Effect batches to the world. One batch is
// one atomic unit: every primitive applies, or the world journal rolls the
// batch back before the first failing primitive's effect becomes observable.
// Primitives are fast and non-blocking — no I/O happens inside a batch.
package effects

import (
	"fmt"

	"github.com/nathoo/worldcore/engine/query"
	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

// Context carries the resolved bindings effects resolve their selector
// params against.
type Context struct {
	Actor    string
	This     string
	Verb     string
	Bindings map[string]string
}

// Apply runs a batch atomically. Emitted events are returned only when the
// whole batch commits; an aborted batch emits nothing.
func Apply(w *world.World, effs []types.Effect, ctx Context) ([]types.Event, error) {
	w.Begin()
	events, err := applyAll(w, effs, ctx)
	if err != nil {
		w.Rollback()
		return nil, err
	}
	w.Commit()
	return events, nil
}

func applyAll(w *world.World, effs []types.Effect, ctx Context) ([]types.Event, error) {
	var events []types.Event
	// Bindings may grow (spawn_entity binds $spawned); keep a local copy.
	bindings := map[string]string{}
	for k, v := range ctx.Bindings {
		bindings[k] = v
	}
	ctx.Bindings = bindings

	for i, eff := range effs {
		evts, err := applyOne(w, eff, ctx)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i+1, eff.Type, err)
		}
		events = append(events, evts...)
	}
	return events, nil
}

func applyOne(w *world.World, eff types.Effect, ctx Context) ([]types.Event, error) {
	switch eff.Type {
	case "set_property":
		entity, err := entityParam(w, ctx, eff, "entity")
		if err != nil {
			return nil, err
		}
		key, err := stringParam(eff, "key")
		if err != nil {
			return nil, err
		}
		return nil, w.SetProp(entity, key, world.Normalize(eff.Params["value"]))

	case "increment_property":
		entity, err := entityParam(w, ctx, eff, "entity")
		if err != nil {
			return nil, err
		}
		key, err := stringParam(eff, "key")
		if err != nil {
			return nil, err
		}
		amount, err := numberParam(eff, "amount")
		if err != nil {
			return nil, err
		}
		current, ok := w.GetProp(entity, key)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %q", world.ErrUnknownProperty, key, entity)
		}
		n, isNum := current.(float64)
		if !isNum {
			return nil, fmt.Errorf("%w: increment_property on non-number %q", world.ErrTypeMismatch, key)
		}
		return nil, w.SetProp(entity, key, n+amount)

	case "toggle_property":
		entity, err := entityParam(w, ctx, eff, "entity")
		if err != nil {
			return nil, err
		}
		key, err := stringParam(eff, "key")
		if err != nil {
			return nil, err
		}
		current, ok := w.GetProp(entity, key)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %q", world.ErrUnknownProperty, key, entity)
		}
		b, isBool := current.(bool)
		if !isBool {
			return nil, fmt.Errorf("%w: toggle_property on non-boolean %q", world.ErrTypeMismatch, key)
		}
		return nil, w.SetProp(entity, key, !b)

	case "move_entity":
		entity, err := entityParam(w, ctx, eff, "entity")
		if err != nil {
			return nil, err
		}
		container, err := entityParam(w, ctx, eff, "container")
		if err != nil {
			return nil, err
		}
		if err := w.Move(entity, container); err != nil {
			return nil, err
		}
		return []types.Event{{
			Type:    "entity_moved",
			Actor:   ctx.Actor,
			Verb:    ctx.Verb,
			Targets: []string{entity, container},
			Scope:   types.ScopeContainer,
			Data:    map[string]any{"entity": entity, "container": container},
		}}, nil

	case "link", "unlink":
		a, err := entityParam(w, ctx, eff, "a")
		if err != nil {
			return nil, err
		}
		b, err := entityParam(w, ctx, eff, "b")
		if err != nil {
			return nil, err
		}
		kind, err := stringParam(eff, "kind")
		if err != nil {
			return nil, err
		}
		if eff.Type == "link" {
			return nil, w.Link(a, b, kind)
		}
		return nil, w.Unlink(a, b, kind)

	case "spawn_entity":
		defID, err := stringParam(eff, "definition")
		if err != nil {
			return nil, err
		}
		container := ""
		if _, ok := eff.Params["container"]; ok {
			container, err = entityParam(w, ctx, eff, "container")
			if err != nil {
				return nil, err
			}
		}
		overrides, _ := eff.Params["properties"].(map[string]any)
		id, err := w.Spawn(defID, overrides, container)
		if err != nil {
			return nil, err
		}
		// Later effects in the same batch can reference $spawned.
		ctx.Bindings["spawned"] = id
		return []types.Event{{
			Type:    "entity_spawned",
			Actor:   ctx.Actor,
			Verb:    ctx.Verb,
			Targets: []string{id},
			Scope:   types.ScopeContainer,
			Data:    map[string]any{"entity": id, "definition": defID},
		}}, nil

	case "destroy_entity":
		entity, err := entityParam(w, ctx, eff, "entity")
		if err != nil {
			return nil, err
		}
		if err := w.Destroy(entity); err != nil {
			return nil, err
		}
		return []types.Event{{
			Type:    "entity_destroyed",
			Actor:   ctx.Actor,
			Verb:    ctx.Verb,
			Targets: []string{entity},
			Scope:   types.ScopeContainer,
			Data:    map[string]any{"entity": entity},
		}}, nil

	case "emit_event":
		name, err := stringParam(eff, "event")
		if err != nil {
			return nil, err
		}
		scope := types.ScopeContainer
		if s, ok := eff.Params["scope"].(string); ok {
			scope = types.EventScope(s)
		}
		message, _ := eff.Params["message"].(string)
		var targets []string
		if _, ok := eff.Params["target"]; ok {
			target, err := entityParam(w, ctx, eff, "target")
			if err != nil {
				return nil, err
			}
			targets = []string{target}
		}
		return []types.Event{{
			Type:    name,
			Actor:   ctx.Actor,
			Verb:    ctx.Verb,
			Targets: targets,
			Scope:   scope,
			Message: message,
			Data:    map[string]any{},
		}}, nil

	case "apply_status":
		entity, err := entityParam(w, ctx, eff, "entity")
		if err != nil {
			return nil, err
		}
		name, err := stringParam(eff, "status")
		if err != nil {
			return nil, err
		}
		d, err := durationParam(eff)
		if err != nil {
			return nil, err
		}
		if err := w.ApplyStatus(entity, name, d, ctx.Actor); err != nil {
			return nil, err
		}
		return []types.Event{{
			Type:    "status_applied",
			Actor:   ctx.Actor,
			Verb:    ctx.Verb,
			Targets: []string{entity},
			Scope:   types.ScopeContainer,
			Data:    map[string]any{"entity": entity, "status": name},
		}}, nil

	case "remove_status":
		entity, err := entityParam(w, ctx, eff, "entity")
		if err != nil {
			return nil, err
		}
		name, err := stringParam(eff, "status")
		if err != nil {
			return nil, err
		}
		removed, err := w.RemoveStatus(entity, name)
		if err != nil {
			return nil, err
		}
		if !removed {
			return nil, nil
		}
		return []types.Event{{
			Type:    "status_removed",
			Actor:   ctx.Actor,
			Verb:    ctx.Verb,
			Targets: []string{entity},
			Scope:   types.ScopeContainer,
			Data:    map[string]any{"entity": entity, "status": name},
		}}, nil
	}

	return nil, fmt.Errorf("unknown effect type %q", eff.Type)
}

// entityParam resolves an entity-referencing param: either a compiled
// selector (from config) or a literal instance id (from code).
func entityParam(w *world.World, ctx Context, eff types.Effect, key string) (string, error) {
	raw, ok := eff.Params[key]
	if !ok {
		return "", fmt.Errorf("missing param %q", key)
	}
	switch v := raw.(type) {
	case *selector.Selector:
		env := &query.Env{World: w, This: ctx.This, Actor: ctx.Actor, Bindings: ctx.Bindings}
		ids, err := env.Resolve(v)
		if err != nil {
			return "", err
		}
		if len(ids) != 1 {
			return "", &selector.UnresolvedError{
				Expr:   v.String(),
				Reason: fmt.Sprintf("effect param %q needs exactly one entity, got %d", key, len(ids)),
			}
		}
		return ids[0], nil
	case string:
		return v, nil
	}
	return "", fmt.Errorf("param %q: want selector or id, got %T", key, raw)
}

func stringParam(eff types.Effect, key string) (string, error) {
	s, ok := eff.Params[key].(string)
	if !ok {
		return "", fmt.Errorf("missing string param %q", key)
	}
	return s, nil
}

func numberParam(eff types.Effect, key string) (float64, error) {
	switch n := eff.Params[key].(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	}
	return 0, fmt.Errorf("missing number param %q", key)
}

func durationParam(eff types.Effect) (world.Duration, error) {
	var d world.Duration
	if n, ok := eff.Params["turns"]; ok {
		turns, err := numberParam(eff, "turns")
		if err != nil || turns < 1 {
			return d, fmt.Errorf("bad turns duration %v", n)
		}
		d.Turns = int(turns)
		return d, nil
	}
	if until, ok := eff.Params["until"].(*selector.Condition); ok {
		d.Until = until
		d.UntilSrc = until.Source
		return d, nil
	}
	d.Permanent = true
	return d, nil
}
