package loader

import (
	"fmt"
	"path/filepath"

	"github.com/nathoo/worldcore/world"
	lua "github.com/yuin/gopher-lua"
)

// collector accumulates Lua declarations during file execution. Each raw
// record remembers its layer index so compile can merge later layers over
// earlier ones per key.
type collector struct {
	world     *lua.LTable
	defs      []rawDef
	instances []rawInstance
	actions   []rawAction
	statuses  []rawStatus
	layer     int
	order     int
}

func (c *collector) nextSourceOrder() int {
	c.order++
	return c.order
}

// Load reads the world directory: manifest.yaml (optional) plus the .lua
// layer files, in order. Files execute in a sandboxed VM, declarations are
// merged per key across layers, compiled into immutable Defs, and validated.
// The Lua VM is discarded after loading.
func Load(dir string) (*world.Defs, error) {
	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	files, err := layerFiles(dir, manifest)
	if err != nil {
		return nil, err
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for i, f := range files {
		coll.layer = i
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	defs, err := compile(coll, manifest)
	if err != nil {
		return nil, err
	}
	if err := validate(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that could reach the filesystem or break load
// determinism.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("randomseed", lua.LNil)
			tbl.RawSetString("random", lua.LNil)
		}
	}
}
