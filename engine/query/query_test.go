package query

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	defs := &world.Defs{
		World: types.WorldDef{Title: "Query Test"},
		Definitions: map[string]*types.Definition{
			"room": {
				ID:    "room",
				Types: []string{"container"},
				Props: map[string]types.PropSchema{
					"name": {Type: types.PropString, Default: "a room"},
				},
			},
			"agent": {
				ID:    "agent",
				Types: []string{"agent"},
				Props: map[string]types.PropSchema{
					"name": {Type: types.PropString, Default: "someone"},
				},
			},
			"torch": {
				ID:    "torch",
				Types: []string{"portable"},
				Props: map[string]types.PropSchema{
					"name": {Type: types.PropString, Default: "torch"},
					"lit":  {Type: types.PropBoolean, Default: false},
				},
			},
			"chest": {
				ID:    "chest",
				Types: []string{"container", "portable"},
				Props: map[string]types.PropSchema{
					"name": {Type: types.PropString, Default: "Rusty Chest"},
				},
			},
		},
		DefOrder: []string{"room", "agent", "torch", "chest"},
		Instances: []types.InstanceDef{
			{ID: "cellar", Of: "room", Props: map[string]any{"name": "Cellar"}},
			{ID: "attic", Of: "room", Props: map[string]any{"name": "Attic"},
				Links: []types.LinkDef{{To: "cellar", Kind: "stairs"}}},
			{ID: "avery", Of: "agent", LocatedIn: "cellar", Props: map[string]any{"name": "Avery"}},
			{ID: "torch1", Of: "torch", LocatedIn: "cellar", Props: map[string]any{"lit": true}},
			{ID: "torch2", Of: "torch", LocatedIn: "attic"},
			{ID: "chest1", Of: "chest", LocatedIn: "cellar"},
		},
	}
	w, err := world.New(defs)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func resolve(t *testing.T, env *Env, src string) []string {
	t.Helper()
	ids, err := env.Resolve(selector.MustParseSelector(src))
	if err != nil {
		t.Fatalf("Resolve(%q): %v", src, err)
	}
	return ids
}

func TestResolve(t *testing.T) {
	w := testWorld(t)
	env := &Env{World: w, This: "torch1", Actor: "avery", Bindings: map[string]string{"target": "chest1"}}

	tests := []struct {
		src  string
		want []string
	}{
		{"#cellar", []string{"cellar"}},
		{"#ghost", nil},
		{"this", []string{"torch1"}},
		{"actor", []string{"avery"}},
		{"$target", []string{"chest1"}},
		{"type:portable", []string{"chest1", "torch1", "torch2"}},
		{"name:\"cellar\"", []string{"cellar"}},
		{"this.located_in", []string{"cellar"}},
		{"actor.located_in.contains", []string{"avery", "chest1", "torch1"}},
		{"actor.located_in.contains(type:portable)", []string{"chest1", "torch1"}},
		{"type:portable[prop.lit == true]", []string{"torch1"}},
		{"actor.located_in.contains[prop.lit == false]", nil},
		{"#attic.contains[prop.lit == false]", []string{"torch2"}},
		{"type:portable[prop.lit == false]", []string{"torch2"}},
		{"#attic.linked_to", []string{"cellar"}},
		{"#cellar.linked_to", nil},
	}
	for _, tt := range tests {
		got := resolve(t, env, tt.src)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Resolve(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestResolve_UnboundRoots(t *testing.T) {
	w := testWorld(t)
	env := &Env{World: w}

	var unresolved *selector.UnresolvedError
	for _, src := range []string{"this", "actor", "$target"} {
		_, err := env.Resolve(selector.MustParseSelector(src))
		if !errors.As(err, &unresolved) {
			t.Errorf("Resolve(%q) = %v, want UnresolvedError", src, err)
		}
	}
}

func TestResolveReference(t *testing.T) {
	w := testWorld(t)

	tests := []struct {
		token string
		want  string
	}{
		{"torch1", "torch1"},          // exact id
		{"Avery", "avery"},            // exact name, case-insensitive
		{"chest", "chest1"},           // name word
		{"rusty", "chest1"},           // name word
		{"avry", "avery"},             // typo tolerance
		{"rusty chest", "chest1"},     // exact multi-word name
	}
	for _, tt := range tests {
		got, err := ResolveReference(w, tt.token)
		if err != nil {
			t.Errorf("ResolveReference(%q) failed: %v", tt.token, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveReference(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestResolveReference_Ambiguous(t *testing.T) {
	w := testWorld(t)

	// torch1 and torch2 share the display name "torch".
	var ambiguous *AmbiguityError
	_, err := ResolveReference(w, "torch")
	if !errors.As(err, &ambiguous) {
		t.Fatalf("ResolveReference(torch) = %v, want AmbiguityError", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("candidates = %v, want two torches", ambiguous.Candidates)
	}
}

func TestResolveReference_NotFound(t *testing.T) {
	w := testWorld(t)

	var notFound *NotFoundError
	if _, err := ResolveReference(w, "dragon"); !errors.As(err, &notFound) {
		t.Errorf("ResolveReference(dragon) = %v, want NotFoundError", err)
	}
	// Too far from any name for typo tolerance.
	if _, err := ResolveReference(w, "xqzv"); !errors.As(err, &notFound) {
		t.Errorf("ResolveReference(xqzv) = %v, want NotFoundError", err)
	}
}
