package effects

import (
	"errors"
	"testing"

	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	defs := &world.Defs{
		World: types.WorldDef{Title: "Effects Test"},
		Definitions: map[string]*types.Definition{
			"room": {
				ID:    "room",
				Types: []string{"container"},
				Props: map[string]types.PropSchema{"name": {Type: types.PropString, Default: "a room"}},
			},
			"agent": {
				ID:    "agent",
				Types: []string{"agent"},
				Props: map[string]types.PropSchema{
					"name": {Type: types.PropString, Default: "someone"},
					"ap":   {Type: types.PropNumber, Default: 10.0},
				},
			},
			"torch": {
				ID:    "torch",
				Types: []string{"portable"},
				Props: map[string]types.PropSchema{
					"name": {Type: types.PropString, Default: "torch"},
					"lit":  {Type: types.PropBoolean, Default: false},
					"fuel": {Type: types.PropNumber, Default: 5.0},
				},
			},
		},
		DefOrder: []string{"room", "agent", "torch"},
		Instances: []types.InstanceDef{
			{ID: "cellar", Of: "room"},
			{ID: "attic", Of: "room"},
			{ID: "avery", Of: "agent", LocatedIn: "cellar"},
			{ID: "torch1", Of: "torch", LocatedIn: "cellar"},
		},
		Statuses: map[string]types.StatusDef{
			"soaked": {Name: "soaked", Overlay: map[string]any{"lit": false}, Stacking: types.StackNone},
		},
	}
	w, err := world.New(defs)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func sel(src string) *selector.Selector {
	return selector.MustParseSelector(src)
}

func testCtx() Context {
	return Context{Actor: "avery", This: "torch1", Verb: "test"}
}

func TestApply_PropertyEffects(t *testing.T) {
	w := testWorld(t)

	evts, err := Apply(w, []types.Effect{
		{Type: "set_property", Params: map[string]any{"entity": sel("this"), "key": "lit", "value": true}},
		{Type: "increment_property", Params: map[string]any{"entity": sel("this"), "key": "fuel", "amount": -2}},
		{Type: "toggle_property", Params: map[string]any{"entity": sel("this"), "key": "lit"}},
	}, testCtx())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(evts) != 0 {
		t.Errorf("property effects emitted %v, want none", evts)
	}
	if v, _ := w.GetProp("torch1", "lit"); v != false {
		t.Errorf("lit = %v after set+toggle, want false", v)
	}
	if v, _ := w.GetProp("torch1", "fuel"); v != 3.0 {
		t.Errorf("fuel = %v, want 3", v)
	}
}

func TestApply_Atomicity(t *testing.T) {
	w := testWorld(t)

	// The third effect fails; the first two must leave no trace.
	_, err := Apply(w, []types.Effect{
		{Type: "set_property", Params: map[string]any{"entity": sel("this"), "key": "lit", "value": true}},
		{Type: "move_entity", Params: map[string]any{"entity": sel("this"), "container": "attic"}},
		{Type: "increment_property", Params: map[string]any{"entity": sel("this"), "key": "name", "amount": 1}},
	}, testCtx())
	if err == nil {
		t.Fatal("expected the batch to fail")
	}
	if !errors.Is(err, world.ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
	if v, _ := w.GetProp("torch1", "lit"); v != false {
		t.Errorf("lit = %v after rollback, want false", v)
	}
	if loc, _ := w.LocationOf("torch1"); loc != "cellar" {
		t.Errorf("torch1 located in %q after rollback, want cellar", loc)
	}
}

func TestApply_MoveEmitsEvent(t *testing.T) {
	w := testWorld(t)

	evts, err := Apply(w, []types.Effect{
		{Type: "move_entity", Params: map[string]any{"entity": sel("this"), "container": "attic"}},
	}, testCtx())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(evts) != 1 || evts[0].Type != "entity_moved" {
		t.Fatalf("events = %v, want one entity_moved", evts)
	}
	if evts[0].Data["container"] != "attic" {
		t.Errorf("event container = %v", evts[0].Data["container"])
	}
	if loc, _ := w.LocationOf("torch1"); loc != "attic" {
		t.Errorf("torch1 located in %q, want attic", loc)
	}
}

func TestApply_SpawnBindsSpawned(t *testing.T) {
	w := testWorld(t)

	evts, err := Apply(w, []types.Effect{
		{Type: "spawn_entity", Params: map[string]any{
			"definition": "torch",
			"container":  "attic",
			"properties": map[string]any{"fuel": 1.0},
		}},
		// $spawned refers to the entity created one effect earlier.
		{Type: "set_property", Params: map[string]any{"entity": sel("$spawned"), "key": "lit", "value": true}},
	}, testCtx())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(evts) != 1 || evts[0].Type != "entity_spawned" {
		t.Fatalf("events = %v, want one entity_spawned", evts)
	}
	id := evts[0].Data["entity"].(string)
	if loc, _ := w.LocationOf(id); loc != "attic" {
		t.Errorf("spawned into %q, want attic", loc)
	}
	if v, _ := w.GetProp(id, "lit"); v != true {
		t.Errorf("$spawned write lost: lit = %v", v)
	}
	if v, _ := w.GetProp(id, "fuel"); v != 1.0 {
		t.Errorf("spawn override lost: fuel = %v", v)
	}
}

func TestApply_DestroyAndLinks(t *testing.T) {
	w := testWorld(t)

	evts, err := Apply(w, []types.Effect{
		{Type: "link", Params: map[string]any{"a": "cellar", "b": "attic", "kind": "hatch"}},
		{Type: "destroy_entity", Params: map[string]any{"entity": sel("this")}},
	}, testCtx())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !w.HasLink("cellar", "attic", "hatch") {
		t.Error("link effect did not stick")
	}
	if _, ok := w.Get("torch1"); ok {
		t.Error("torch1 survived destroy_entity")
	}
	if len(evts) != 1 || evts[0].Type != "entity_destroyed" {
		t.Errorf("events = %v, want one entity_destroyed", evts)
	}

	if _, err := Apply(w, []types.Effect{
		{Type: "unlink", Params: map[string]any{"a": "cellar", "b": "attic", "kind": "hatch"}},
	}, testCtx()); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if w.HasLink("cellar", "attic", "hatch") {
		t.Error("unlink effect did not stick")
	}
}

func TestApply_EmitEvent(t *testing.T) {
	w := testWorld(t)

	evts, err := Apply(w, []types.Effect{
		{Type: "emit_event", Params: map[string]any{
			"event":   "alarm_raised",
			"scope":   "global",
			"message": "A bell tolls.",
			"target":  sel("this"),
		}},
	}, testCtx())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(evts) != 1 {
		t.Fatalf("events = %v, want one", evts)
	}
	evt := evts[0]
	if evt.Type != "alarm_raised" || evt.Scope != types.ScopeGlobal || evt.Message != "A bell tolls." {
		t.Errorf("event = %+v", evt)
	}
	if len(evt.Targets) != 1 || evt.Targets[0] != "torch1" {
		t.Errorf("targets = %v, want [torch1]", evt.Targets)
	}
}

func TestApply_StatusDurations(t *testing.T) {
	w := testWorld(t)

	if _, err := Apply(w, []types.Effect{
		{Type: "apply_status", Params: map[string]any{"entity": sel("this"), "status": "soaked", "turns": 3.0}},
	}, testCtx()); err != nil {
		t.Fatalf("turns duration: %v", err)
	}
	if got := w.Statuses("torch1"); len(got) != 1 || got[0].TurnsLeft != 3 {
		t.Fatalf("statuses = %+v, want one with 3 turns", got)
	}
	if _, err := Apply(w, []types.Effect{
		{Type: "remove_status", Params: map[string]any{"entity": sel("this"), "status": "soaked"}},
	}, testCtx()); err != nil {
		t.Fatalf("remove_status: %v", err)
	}

	until := selector.MustParseCondition("this.prop.fuel < 1")
	if _, err := Apply(w, []types.Effect{
		{Type: "apply_status", Params: map[string]any{"entity": sel("this"), "status": "soaked", "until": until}},
	}, testCtx()); err != nil {
		t.Fatalf("until duration: %v", err)
	}
	if got := w.Statuses("torch1"); len(got) != 1 || got[0].Until == nil {
		t.Fatalf("statuses = %+v, want one until-bounded", got)
	}
	w.RemoveStatus("torch1", "soaked")

	evts, err := Apply(w, []types.Effect{
		{Type: "apply_status", Params: map[string]any{"entity": sel("this"), "status": "soaked"}},
	}, testCtx())
	if err != nil {
		t.Fatalf("permanent duration: %v", err)
	}
	if got := w.Statuses("torch1"); len(got) != 1 || !got[0].Permanent {
		t.Fatalf("statuses = %+v, want one permanent", got)
	}
	if len(evts) != 1 || evts[0].Type != "status_applied" {
		t.Errorf("events = %v, want one status_applied", evts)
	}
}

func TestApply_RemoveAbsentStatusEmitsNothing(t *testing.T) {
	w := testWorld(t)

	evts, err := Apply(w, []types.Effect{
		{Type: "remove_status", Params: map[string]any{"entity": sel("this"), "status": "soaked"}},
	}, testCtx())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(evts) != 0 {
		t.Errorf("events = %v, want none for a no-op removal", evts)
	}
}

func TestApply_SelectorResolutionErrors(t *testing.T) {
	w := testWorld(t)

	var unresolved *selector.UnresolvedError
	// No entity matches.
	_, err := Apply(w, []types.Effect{
		{Type: "set_property", Params: map[string]any{"entity": sel("type:ghost"), "key": "lit", "value": true}},
	}, testCtx())
	if !errors.As(err, &unresolved) {
		t.Errorf("empty selector = %v, want UnresolvedError", err)
	}
	// More than one entity matches.
	if _, err := w.Spawn("torch", nil, "cellar"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	_, err = Apply(w, []types.Effect{
		{Type: "set_property", Params: map[string]any{"entity": sel("type:portable"), "key": "lit", "value": true}},
	}, testCtx())
	if !errors.As(err, &unresolved) {
		t.Errorf("plural selector = %v, want UnresolvedError", err)
	}
}

func TestApply_UnknownEffectType(t *testing.T) {
	w := testWorld(t)

	_, err := Apply(w, []types.Effect{{Type: "conjure", Params: map[string]any{}}}, testCtx())
	if err == nil {
		t.Fatal("unknown effect type should fail")
	}
}
