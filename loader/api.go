package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and effect helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerEffectHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// World { title = "...", ... }
	L.SetGlobal("World", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.world = tbl
		return 0
	}))

	// Definition "id" { ... } — curried: Definition("id") returns a function
	// that takes the body table.
	L.SetGlobal("Definition", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		layer := coll.layer
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.defs = append(coll.defs, rawDef{
				id: id, layer: layer, order: coll.nextSourceOrder(), table: tbl,
			})
			return 0
		}))
		return 1
	}))

	// Instance "id" { of = "...", ... } — curried.
	L.SetGlobal("Instance", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		layer := coll.layer
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.instances = append(coll.instances, rawInstance{
				id: id, layer: layer, order: coll.nextSourceOrder(), table: tbl,
			})
			return 0
		}))
		return 1
	}))

	// Action "verb" { ... } — curried, registers a global action.
	L.SetGlobal("Action", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		layer := coll.layer
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.actions = append(coll.actions, rawAction{
				name: name, layer: layer, order: coll.nextSourceOrder(), table: tbl,
			})
			return 0
		}))
		return 1
	}))

	// Status "name" { overlay = {...}, ... } — curried.
	L.SetGlobal("Status", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		layer := coll.layer
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.statuses = append(coll.statuses, rawStatus{
				name: name, layer: layer, table: tbl,
			})
			return 0
		}))
		return 1
	}))
}

// effectMarker builds the table every effect helper returns: a "type" plus
// the helper's named params. Entity-valued params stay selector source
// strings here; compile turns them into compiled selectors.
func effectMarker(L *lua.LState, effType string, params map[string]lua.LValue) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(effType))
	for k, v := range params {
		tbl.RawSetString(k, v)
	}
	return tbl
}

func registerEffectHelpers(L *lua.LState) {
	// SetProperty("this", "lit", true)
	L.SetGlobal("SetProperty", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "set_property", map[string]lua.LValue{
			"entity": lua.LString(L.CheckString(1)),
			"key":    lua.LString(L.CheckString(2)),
			"value":  L.Get(3),
		}))
		return 1
	}))

	// IncrementProperty("this", "fuel", -1)
	L.SetGlobal("IncrementProperty", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "increment_property", map[string]lua.LValue{
			"entity": lua.LString(L.CheckString(1)),
			"key":    lua.LString(L.CheckString(2)),
			"amount": L.CheckNumber(3),
		}))
		return 1
	}))

	// ToggleProperty("this", "open")
	L.SetGlobal("ToggleProperty", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "toggle_property", map[string]lua.LValue{
			"entity": lua.LString(L.CheckString(1)),
			"key":    lua.LString(L.CheckString(2)),
		}))
		return 1
	}))

	// MoveEntity("$item", "$container")
	L.SetGlobal("MoveEntity", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "move_entity", map[string]lua.LValue{
			"entity":    lua.LString(L.CheckString(1)),
			"container": lua.LString(L.CheckString(2)),
		}))
		return 1
	}))

	// Link("this", "#cellar", "portal")
	L.SetGlobal("Link", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "link", map[string]lua.LValue{
			"a":    lua.LString(L.CheckString(1)),
			"b":    lua.LString(L.CheckString(2)),
			"kind": lua.LString(L.CheckString(3)),
		}))
		return 1
	}))

	// Unlink("this", "#cellar", "portal")
	L.SetGlobal("Unlink", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "unlink", map[string]lua.LValue{
			"a":    lua.LString(L.CheckString(1)),
			"b":    lua.LString(L.CheckString(2)),
			"kind": lua.LString(L.CheckString(3)),
		}))
		return 1
	}))

	// SpawnEntity("ember", { container = "this", properties = { heat = 3 } })
	// The options table is optional. Later effects in the same batch can
	// reference the new entity as $spawned.
	L.SetGlobal("SpawnEntity", L.NewFunction(func(L *lua.LState) int {
		params := map[string]lua.LValue{
			"definition": lua.LString(L.CheckString(1)),
		}
		if opts, ok := L.Get(2).(*lua.LTable); ok {
			if c := opts.RawGetString("container"); c != lua.LNil {
				params["container"] = c
			}
			if p := opts.RawGetString("properties"); p != lua.LNil {
				params["properties"] = p
			}
		}
		L.Push(effectMarker(L, "spawn_entity", params))
		return 1
	}))

	// DestroyEntity("$spawned")
	L.SetGlobal("DestroyEntity", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "destroy_entity", map[string]lua.LValue{
			"entity": lua.LString(L.CheckString(1)),
		}))
		return 1
	}))

	// EmitEvent("alarm_raised", { message = "...", scope = "global", target = "this" })
	L.SetGlobal("EmitEvent", L.NewFunction(func(L *lua.LState) int {
		params := map[string]lua.LValue{
			"event": lua.LString(L.CheckString(1)),
		}
		if opts, ok := L.Get(2).(*lua.LTable); ok {
			for _, k := range []string{"message", "scope", "target"} {
				if v := opts.RawGetString(k); v != lua.LNil {
					params[k] = v
				}
			}
		}
		L.Push(effectMarker(L, "emit_event", params))
		return 1
	}))

	// ApplyStatus("$target", "burning", { turns = 3 })
	// Duration options: turns = n, ["until"] = "<condition>", or permanent = true.
	L.SetGlobal("ApplyStatus", L.NewFunction(func(L *lua.LState) int {
		params := map[string]lua.LValue{
			"entity": lua.LString(L.CheckString(1)),
			"status": lua.LString(L.CheckString(2)),
		}
		if opts, ok := L.Get(3).(*lua.LTable); ok {
			for _, k := range []string{"turns", "until", "permanent"} {
				if v := opts.RawGetString(k); v != lua.LNil {
					params[k] = v
				}
			}
		}
		L.Push(effectMarker(L, "apply_status", params))
		return 1
	}))

	// RemoveStatus("$target", "burning")
	L.SetGlobal("RemoveStatus", L.NewFunction(func(L *lua.LState) int {
		L.Push(effectMarker(L, "remove_status", map[string]lua.LValue{
			"entity": lua.LString(L.CheckString(1)),
			"status": lua.LString(L.CheckString(2)),
		}))
		return 1
	}))
}
