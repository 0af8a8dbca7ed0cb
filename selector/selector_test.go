package selector

import (
	"errors"
	"testing"
)

func TestParseCondition(t *testing.T) {
	valid := []string{
		"this.prop.lit",
		"this.prop.lit == true",
		"not this.prop.lit",
		"this.prop.fuel > 0 and this.prop.lit",
		"this.prop.mood == \"angry\" or this.prop.fuel < 1",
		"count(this.contains) > 2",
		"any(type:torch[prop.lit == true])",
		"all(this.contains[prop.lit == true])",
		"actor.located_in == this.located_in",
		"$door.prop.lock_id == $key.prop.opens",
		"(this.prop.lit or this.prop.fuel > 0) and not this.prop.mood == \"calm\"",
		"this.prop.name contains \"torch\"",
		"#cellar.contains(type:portable)[prop.lit == true] == #cellar.contains",
	}
	for _, src := range valid {
		if _, err := ParseCondition(src); err != nil {
			t.Errorf("ParseCondition(%q) failed: %v", src, err)
		}
	}

	invalid := []string{
		"",
		"this ==",
		"this.prop.",
		"and this.prop.lit",
		"this.prop.lit && true",
		"this.dances",
		"count()",
		"[prop.lit == true]",
	}
	for _, src := range invalid {
		if _, err := ParseCondition(src); err == nil {
			t.Errorf("ParseCondition(%q) should fail", src)
		}
	}
}

func TestParseSelector(t *testing.T) {
	valid := []string{
		"this",
		"actor",
		"#cellar",
		"type:torch",
		"name:\"old chest\"",
		"$target",
		"this.located_in.contains[prop.lit == true]",
		"actor.contains(type:portable)",
		"this.linked_to[prop.open == true]",
	}
	for _, src := range valid {
		sel, err := ParseSelector(src)
		if err != nil {
			t.Errorf("ParseSelector(%q) failed: %v", src, err)
			continue
		}
		// The printed form must survive reparsing.
		if _, err := ParseSelector(sel.String()); err != nil {
			t.Errorf("reparsing String() of %q (%q) failed: %v", src, sel.String(), err)
		}
	}

	invalid := []string{"", "this == actor", "this.prop.lit", "type:", "#"}
	for _, src := range invalid {
		if _, err := ParseSelector(src); err == nil {
			t.Errorf("ParseSelector(%q) should fail", src)
		}
	}
}

func TestSelectorPredicates(t *testing.T) {
	if !MustParseSelector("this").IsThis() {
		t.Error("IsThis(this) = false")
	}
	if MustParseSelector("this.contains").IsThis() {
		t.Error("IsThis(this.contains) = true")
	}
	for _, src := range []string{"this", "actor", "#cellar", "$target"} {
		if !MustParseSelector(src).IsSingleton() {
			t.Errorf("IsSingleton(%q) = false", src)
		}
	}
	for _, src := range []string{"type:torch", "this.contains", "this[prop.lit == true]"} {
		if MustParseSelector(src).IsSingleton() {
			t.Errorf("IsSingleton(%q) = true", src)
		}
	}
}

// fakeEnv resolves a closed fixture: ids are looked up in props, type roots
// in sets, and steps in rels. Enough structure to evaluate every operand.
type fakeEnv struct {
	this  string
	props map[string]map[string]any
	sets  map[string][]string
	rels  map[string][]string // "id relation" -> targets
}

func (e *fakeEnv) Prop(entity, key string) (any, bool) {
	v, ok := e.props[entity][key]
	return v, ok
}

func (e *fakeEnv) Resolve(sel *Selector) ([]string, error) {
	var ids []string
	t := sel.Target
	switch {
	case t.This:
		if e.this == "" {
			return nil, &UnresolvedError{Expr: sel.String(), Reason: "no `this` in scope"}
		}
		ids = []string{e.this}
	case t.ID != nil:
		if _, ok := e.props[*t.ID]; ok {
			ids = []string{*t.ID}
		}
	case t.Type != nil:
		ids = e.sets[*t.Type]
	default:
		return nil, &UnresolvedError{Expr: sel.String(), Reason: "unsupported root in fixture"}
	}

	for _, step := range sel.Steps {
		var next []string
		for _, id := range ids {
			next = append(next, e.rels[id+" "+step.Relation]...)
		}
		ids = next
	}
	if sel.Filter != nil {
		var kept []string
		for _, id := range ids {
			ok, err := FilterMatch(e, id, sel.Filter)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	return ids, nil
}

func evalEnv() *fakeEnv {
	return &fakeEnv{
		this: "torch1",
		props: map[string]map[string]any{
			"torch1": {"lit": true, "fuel": 3.0, "name": "brass torch"},
			"torch2": {"lit": false, "fuel": 0.0, "name": "torch"},
			"room1":  {"name": "Cellar"},
		},
		sets: map[string][]string{"torch": {"torch1", "torch2"}},
		rels: map[string][]string{
			"torch1 located_in": {"room1"},
			"room1 contains":    {"torch1", "torch2"},
		},
	}
}

func TestEval(t *testing.T) {
	env := evalEnv()
	tests := []struct {
		src  string
		want bool
	}{
		{"this.prop.lit", true},
		{"not this.prop.lit", false},
		{"this.prop.fuel > 0", true},
		{"this.prop.fuel < 0", false},
		{"this.prop.fuel == 3", true},
		{"this.prop.fuel != 3", false},
		{"this.prop.name contains \"torch\"", true},
		{"this.prop.name contains \"lantern\"", false},
		{"this.prop.lit and this.prop.fuel > 5", false},
		{"this.prop.lit or this.prop.fuel > 5", true},
		{"not this.prop.lit or this.prop.fuel == 3", true},
		{"not (this.prop.lit and this.prop.fuel > 5)", true},
		{"not not this.prop.lit", true},
		{"count(type:torch) == 2", true},
		{"count(type:torch[prop.lit == true]) == 1", true},
		{"any(type:torch[prop.fuel > 100])", false},
		{"all(type:torch[prop.fuel > 100])", false},
		{"all(type:torch[prop.fuel > 100]) or true", true},
		{"this.located_in == #room1", true},
		{"#torch2.prop.lit == false", true},
		{"this.prop.lit == false", false},
		{"count(type:torch[prop.lit == false]) == 1", true},
		{"false", false},
		{"false or this.prop.lit", true},
	}
	for _, tt := range tests {
		got, err := Eval(MustParseCondition(tt.src), env)
		if err != nil {
			t.Errorf("Eval(%q) failed: %v", tt.src, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestEval_AllVacuouslyTrue(t *testing.T) {
	env := evalEnv()
	// No torch passes, but over the empty set all() holds.
	got, err := Eval(MustParseCondition("all(type:lantern[prop.lit == true])"), env)
	if err != nil || got != true {
		t.Errorf("all over empty set = (%v, %v), want (true, nil)", got, err)
	}
}

func TestEval_Errors(t *testing.T) {
	env := evalEnv()

	var typeErr *TypeError
	if _, err := Eval(MustParseCondition("this.prop.fuel"), env); !errors.As(err, &typeErr) {
		t.Errorf("bare number operand = %v, want TypeError", err)
	}
	if _, err := Eval(MustParseCondition("this.prop.fuel > this.prop.name"), env); !errors.As(err, &typeErr) {
		t.Errorf("number vs string ordering = %v, want TypeError", err)
	}
	if _, err := Eval(MustParseCondition("this.prop.lit == 3"), env); !errors.As(err, &typeErr) {
		t.Errorf("bool vs number equality = %v, want TypeError", err)
	}
	if _, err := Eval(MustParseCondition("all(type:torch)"), env); !errors.As(err, &typeErr) {
		t.Errorf("all without filter = %v, want TypeError", err)
	}

	var unresolved *UnresolvedError
	if _, err := Eval(MustParseCondition("type:torch.prop.lit"), env); !errors.As(err, &unresolved) {
		t.Errorf("property path on a two-entity set = %v, want UnresolvedError", err)
	}
	if _, err := Eval(MustParseCondition("#ghost.prop.lit == true"), env); !errors.As(err, &unresolved) {
		t.Errorf("property path on empty set = %v, want UnresolvedError", err)
	}
	noThis := evalEnv()
	noThis.this = ""
	if _, err := Eval(MustParseCondition("this.prop.lit"), noThis); !errors.As(err, &unresolved) {
		t.Errorf("unbound this = %v, want UnresolvedError", err)
	}
}

func TestEvalScalar(t *testing.T) {
	env := evalEnv()
	tests := []struct {
		src  string
		want any
	}{
		{"this.prop.fuel", 3.0},
		{"this.prop.name", "brass torch"},
		{"this.prop.lit", true},
		{"count(type:torch)", 2.0},
		{"this.prop.fuel > 0", true},
		{"42", 42.0},
	}
	for _, tt := range tests {
		got, err := EvalScalar(MustParseCondition(tt.src), env)
		if err != nil {
			t.Errorf("EvalScalar(%q) failed: %v", tt.src, err)
			continue
		}
		if got != tt.want {
			t.Errorf("EvalScalar(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}

	// Formulas may not produce entity sets.
	if _, err := EvalScalar(MustParseCondition("this.contains"), env); err == nil {
		t.Error("entity-set formula should fail")
	}
}

func TestDeps(t *testing.T) {
	cond := MustParseCondition("this.prop.lit and this.prop.fuel > 0")
	if !ThisPropOnly(cond) {
		t.Error("ThisPropOnly = false for this-only formula")
	}
	keys := ThisPropKeys(cond)
	// Source order, deduplicated.
	if len(keys) != 2 || keys[0] != "lit" || keys[1] != "fuel" {
		t.Errorf("ThisPropKeys = %v, want [lit fuel]", keys)
	}

	if ThisPropOnly(MustParseCondition("actor.prop.ap > 0")) {
		t.Error("ThisPropOnly = true for actor-rooted formula")
	}
	if ThisPropOnly(MustParseCondition("count(this.contains) > 0")) {
		t.Error("ThisPropOnly = true for stepped selector")
	}
}
