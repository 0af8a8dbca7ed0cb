package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathoo/worldcore/types"
)

func TestLoad_MinimalWorld(t *testing.T) {
	defs, err := Load("testdata/minimal")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if defs.World.Title != "Minimal World" {
		t.Errorf("Title = %q, want %q", defs.World.Title, "Minimal World")
	}
	if _, ok := defs.Definitions["room"]; !ok {
		t.Fatal("definition 'room' not found")
	}
	if len(defs.Instances) != 1 || defs.Instances[0].ID != "cellar" {
		t.Errorf("Instances = %v, want [cellar]", defs.Instances)
	}
	if defs.Instances[0].Props["name"] != "Cellar" {
		t.Errorf("cellar name override = %v", defs.Instances[0].Props["name"])
	}
}

func TestLoad_FullWorld(t *testing.T) {
	defs, err := Load("testdata/full")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if defs.World.CascadeLimit != 4 {
		t.Errorf("CascadeLimit = %d, want 4", defs.World.CascadeLimit)
	}

	torch, ok := defs.Definitions["torch"]
	if !ok {
		t.Fatal("definition 'torch' not found")
	}
	if len(torch.Types) != 1 || torch.Types[0] != "portable" {
		t.Errorf("torch types = %v", torch.Types)
	}
	// Lua numbers arrive as float64.
	if torch.Props["fuel"].Default != 5.0 {
		t.Errorf("fuel default = %v (%T)", torch.Props["fuel"].Default, torch.Props["fuel"].Default)
	}
	mood := torch.Props["mood"]
	if mood.Type != types.PropEnum || len(mood.Values) != 2 {
		t.Errorf("mood schema = %+v", mood)
	}

	glowing, ok := torch.Computed["glowing"]
	if !ok {
		t.Fatal("computed 'glowing' not found")
	}
	if glowing.Expr == nil || len(glowing.Deps) != 2 {
		t.Errorf("glowing = %+v, want compiled expr with two deps", glowing)
	}

	if len(torch.Affordances) != 1 {
		t.Fatalf("affordances = %v", torch.Affordances)
	}
	light := torch.Affordances[0]
	if light.Name != "light" || light.Cost != 2 || light.Require == nil {
		t.Errorf("light = %+v", light)
	}
	if len(light.Params) != 1 || light.Params[0].Name != "target" || light.Params[0].Type != "portable" {
		t.Errorf("light params = %v", light.Params)
	}
	if len(light.Effects) != 1 || light.Effects[0].Type != "set_property" {
		t.Errorf("light effects = %v", light.Effects)
	}

	if len(torch.Triggers) != 1 {
		t.Fatalf("triggers = %v", torch.Triggers)
	}
	flare := torch.Triggers[0]
	if flare.ID != "flare" || flare.Condition == nil || len(flare.OnActivate) != 2 {
		t.Errorf("flare = %+v", flare)
	}
	// ApplyStatus turns become a number param.
	if flare.OnActivate[1].Params["turns"] != 2.0 {
		t.Errorf("turns = %v", flare.OnActivate[1].Params["turns"])
	}

	stash, ok := defs.Action("stash")
	if !ok || stash.Cost != 1 || len(stash.Params) != 2 {
		t.Errorf("stash = %+v", stash)
	}

	soaked, ok := defs.Statuses["soaked"]
	if !ok || soaked.Stacking != types.StackNone || soaked.Overlay["lit"] != false {
		t.Errorf("soaked = %+v", soaked)
	}

	// Declaration order survives for deterministic trigger evaluation.
	want := []string{"room", "agent", "torch"}
	for i, id := range want {
		if defs.DefOrder[i] != id {
			t.Errorf("DefOrder[%d] = %q, want %q", i, defs.DefOrder[i], id)
		}
	}

	var attic *types.InstanceDef
	for i := range defs.Instances {
		if defs.Instances[i].ID == "attic" {
			attic = &defs.Instances[i]
		}
	}
	if attic == nil {
		t.Fatal("instance 'attic' not found")
	}
	if len(attic.Links) != 1 || attic.Links[0].To != "cellar" || attic.Links[0].Kind != "stairs" {
		t.Errorf("attic links = %v", attic.Links)
	}
}

func TestLoad_LayeredWorld(t *testing.T) {
	defs, err := Load("testdata/layered")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Manifest settings win over Lua config.
	if defs.World.CascadeLimit != 5 {
		t.Errorf("CascadeLimit = %d, want 5 from manifest", defs.World.CascadeLimit)
	}

	torch := defs.Definitions["torch"]
	if torch.Props["fuel"].Default != 9.0 {
		t.Errorf("patched fuel default = %v, want 9", torch.Props["fuel"].Default)
	}
	// Keys the patch layer does not name keep the base values.
	if torch.Props["name"].Default != "torch" {
		t.Errorf("name default = %v, want base value", torch.Props["name"].Default)
	}
	if len(torch.Types) != 1 || torch.Types[0] != "portable" {
		t.Errorf("types = %v, want base value", torch.Types)
	}

	stash, _ := defs.Action("stash")
	if stash.Cost != 3 {
		t.Errorf("stash cost = %d, want patched 3", stash.Cost)
	}
	if len(stash.Params) != 2 {
		t.Errorf("stash params = %v, want base params", stash.Params)
	}

	var torch1 *types.InstanceDef
	for i := range defs.Instances {
		if defs.Instances[i].ID == "torch1" {
			torch1 = &defs.Instances[i]
		}
	}
	if torch1 == nil {
		t.Fatal("instance 'torch1' not found")
	}
	if torch1.Props["lit"] != true {
		t.Errorf("patched lit = %v, want true", torch1.Props["lit"])
	}
	if torch1.Of != "torch" || torch1.LocatedIn != "cellar" {
		t.Errorf("instance lost base fields: %+v", torch1)
	}
}

func TestLoad_RejectsFreeFormKeys(t *testing.T) {
	_, err := Load("testdata/badkey")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %T, want *ValidationError", err)
	}
	assertContains(t, ve.Errors, "unknown key \"porps\"")
}

func TestLoad_RejectsComputedCycle(t *testing.T) {
	_, err := Load("testdata/cycle")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	assertContains(t, ve.Errors, "computed dependency cycle")
}

func TestLoad_NoLuaFiles(t *testing.T) {
	if _, err := Load("testdata/empty"); err == nil {
		t.Error("expected error for a directory without .lua files")
	}
	if _, err := Load("testdata/nonexistent"); err == nil {
		t.Error("expected error for a missing directory")
	}
}

func TestLoad_MissingManifestLayer(t *testing.T) {
	dir := t.TempDir()
	manifest := "name: broken\nlayers:\n  - missing.lua\n"
	if err := os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "missing.lua") {
		t.Errorf("Load = %v, want missing layer error", err)
	}
}

func TestLoad_DuplicateInSameLayer(t *testing.T) {
	dir := t.TempDir()
	src := `World { title = "Dup" }
Definition "room" { types = { "container" } }
Definition "room" { types = { "container" } }
`
	if err := os.WriteFile(filepath.Join(dir, "world.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	assertContains(t, ve.Errors, "declared twice in the same layer")
}

func TestLoad_RejectsFlipFlopTrigger(t *testing.T) {
	dir := t.TempDir()
	src := `World { title = "Relay" }
Definition "relay" {
  props = {
    hot = { type = "boolean", default = false },
  },
  triggers = {
    {
      id = "flip",
      condition = "this.prop.hot == true",
      on_activate = { SetProperty("this", "hot", false) },
      on_deactivate = { SetProperty("this", "hot", true) },
    },
  },
}
`
	if err := os.WriteFile(filepath.Join(dir, "world.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	assertContains(t, ve.Errors, "trigger cycle")
}

func TestLoad_SandboxBlocksIO(t *testing.T) {
	dir := t.TempDir()
	src := `World { title = "Sandbox" }
if dofile ~= nil or loadfile ~= nil or os ~= nil or io ~= nil then
  error("sandbox leak")
end
Definition "room" { types = { "container" } }
`
	if err := os.WriteFile(filepath.Join(dir, "world.lua"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Errorf("Load = %v, sandboxed globals should be nil", err)
	}
}

// assertContains fails unless some collected message contains the substring.
func assertContains(t *testing.T, msgs []string, substr string) {
	t.Helper()
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return
		}
	}
	t.Errorf("no message contains %q in %v", substr, msgs)
}
