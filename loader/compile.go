// Package loader loads Lua world content into Go structs at load time.
// The Lua VM is discarded after loading — zero Lua at runtime.
package loader

import (
	"fmt"
	"strings"

	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
	lua "github.com/yuin/gopher-lua"
)

// rawDef holds a Definition body before compilation.
type rawDef struct {
	id    string
	layer int
	order int
	table *lua.LTable
}

// rawInstance holds an Instance body before compilation.
type rawInstance struct {
	id    string
	layer int
	order int
	table *lua.LTable
}

// rawAction holds a global Action body before compilation.
type rawAction struct {
	name  string
	layer int
	order int
	table *lua.LTable
}

// rawStatus holds a Status body before compilation.
type rawStatus struct {
	name  string
	layer int
	table *lua.LTable
}

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getInt returns an integer field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return 0
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively. Numbers
// normalize to float64, matching the runtime property representation.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if maxN := val.MaxN(); maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// checkKeys rejects free-form keys: every string key of tbl must be in the
// allowed set. Typos in config die at load, not at runtime.
func checkKeys(ve *ValidationError, ctx string, tbl *lua.LTable, allowed ...string) {
	set := map[string]bool{}
	for _, k := range allowed {
		set[k] = true
	}
	tbl.ForEach(func(k, _ lua.LValue) {
		if ks, ok := k.(lua.LString); ok && !set[string(ks)] {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: unknown key %q (allowed: %s)", ctx, string(ks), strings.Join(allowed, ", ")))
		}
	})
}

// compile converts collected Lua data into Defs, merging layers per key:
// a later layer's declaration of the same id overrides only the keys it
// names. Parse and shape errors collect into a ValidationError alongside
// the referential checks run afterwards.
func compile(coll *collector, m *Manifest) (*world.Defs, error) {
	ve := &ValidationError{}
	defs := &world.Defs{
		Definitions: map[string]*types.Definition{},
		Statuses:    map[string]types.StatusDef{},
	}

	if coll.world == nil {
		ve.Errors = append(ve.Errors, "no World{} declaration found")
	} else {
		defs.World = compileWorld(ve, coll.world)
	}
	if m != nil && m.Settings.CascadeLimit > 0 {
		defs.World.CascadeLimit = m.Settings.CascadeLimit
	}

	compileDefinitions(ve, coll, defs)
	compileInstances(ve, coll, defs)
	compileActions(ve, coll, defs)
	compileStatuses(ve, coll, defs)

	if len(ve.Errors) > 0 {
		return nil, ve
	}
	return defs, nil
}

func compileWorld(ve *ValidationError, tbl *lua.LTable) types.WorldDef {
	checkKeys(ve, "World", tbl, "title", "description", "cascade_limit")
	return types.WorldDef{
		Title:        getString(tbl, "title"),
		Description:  getString(tbl, "description"),
		CascadeLimit: getInt(tbl, "cascade_limit"),
	}
}

func compileDefinitions(ve *ValidationError, coll *collector, defs *world.Defs) {
	lastLayer := map[string]int{}
	for _, raw := range coll.defs {
		ctx := fmt.Sprintf("definition %q", raw.id)
		frag, present := compileDefinition(ve, ctx, raw)

		base, seen := defs.Definitions[raw.id]
		if !seen {
			d := frag
			defs.Definitions[raw.id] = &d
			defs.DefOrder = append(defs.DefOrder, raw.id)
			lastLayer[raw.id] = raw.layer
			continue
		}
		if lastLayer[raw.id] == raw.layer {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s: declared twice in the same layer", ctx))
			continue
		}
		mergeDefinition(base, &frag, present)
		lastLayer[raw.id] = raw.layer
	}
}

func compileDefinition(ve *ValidationError, ctx string, raw rawDef) (types.Definition, map[string]bool) {
	tbl := raw.table
	checkKeys(ve, ctx, tbl, "types", "props", "computed", "affordances", "triggers")

	present := map[string]bool{}
	def := types.Definition{
		ID:       raw.id,
		Props:    map[string]types.PropSchema{},
		Computed: map[string]*types.ComputedDef{},
	}

	if typesTbl := getTable(tbl, "types"); typesTbl != nil {
		present["types"] = true
		for i := 1; i <= typesTbl.MaxN(); i++ {
			if s, ok := typesTbl.RawGetInt(i).(lua.LString); ok {
				def.Types = append(def.Types, string(s))
			}
		}
	}

	if propsTbl := getTable(tbl, "props"); propsTbl != nil {
		present["props"] = true
		propsTbl.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			schemaTbl, ok := v.(*lua.LTable)
			if !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: prop %q: want a schema table", ctx, string(key)))
				return
			}
			def.Props[string(key)] = compilePropSchema(ve, fmt.Sprintf("%s: prop %q", ctx, string(key)), schemaTbl)
		})
	}

	if compTbl := getTable(tbl, "computed"); compTbl != nil {
		present["computed"] = true
		compTbl.ForEach(func(k, v lua.LValue) {
			key, ok := k.(lua.LString)
			if !ok {
				return
			}
			formula, ok := v.(lua.LString)
			if !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf(
					"%s: computed %q: want a formula string", ctx, string(key)))
				return
			}
			def.Computed[string(key)] = compileComputed(ve,
				fmt.Sprintf("%s: computed %q", ctx, string(key)), string(formula))
		})
	}

	if affTbl := getTable(tbl, "affordances"); affTbl != nil {
		present["affordances"] = true
		for i := 1; i <= affTbl.MaxN(); i++ {
			body, ok := affTbl.RawGetInt(i).(*lua.LTable)
			if !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: affordances[%d]: want a table", ctx, i))
				continue
			}
			name := getString(body, "name")
			if name == "" {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: affordances[%d]: missing name", ctx, i))
				continue
			}
			act, _ := compileActionBody(ve, fmt.Sprintf("%s: affordance %q", ctx, name), name, body)
			def.Affordances = append(def.Affordances, act)
		}
	}

	if trigTbl := getTable(tbl, "triggers"); trigTbl != nil {
		present["triggers"] = true
		for i := 1; i <= trigTbl.MaxN(); i++ {
			body, ok := trigTbl.RawGetInt(i).(*lua.LTable)
			if !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: triggers[%d]: want a table", ctx, i))
				continue
			}
			trig := compileTrigger(ve, ctx, i, body)
			def.Triggers = append(def.Triggers, trig)
		}
	}

	return def, present
}

func compilePropSchema(ve *ValidationError, ctx string, tbl *lua.LTable) types.PropSchema {
	checkKeys(ve, ctx, tbl, "type", "default", "values")
	schema := types.PropSchema{
		Type:    types.PropType(getString(tbl, "type")),
		Default: toGoValue(tbl.RawGetString("default")),
	}
	if valsTbl := getTable(tbl, "values"); valsTbl != nil {
		for i := 1; i <= valsTbl.MaxN(); i++ {
			if s, ok := valsTbl.RawGetInt(i).(lua.LString); ok {
				schema.Values = append(schema.Values, string(s))
			}
		}
	}
	return schema
}

func compileComputed(ve *ValidationError, ctx, formula string) *types.ComputedDef {
	expr, err := selector.ParseCondition(formula)
	if err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %v", ctx, err))
		return &types.ComputedDef{Formula: formula}
	}
	if !selector.ThisPropOnly(expr) {
		ve.Errors = append(ve.Errors, fmt.Sprintf(
			"%s: formula may only read this.prop.* values", ctx))
		return &types.ComputedDef{Formula: formula}
	}
	return &types.ComputedDef{
		Formula: formula,
		Expr:    expr,
		Deps:    selector.ThisPropKeys(expr),
	}
}

func compileTrigger(ve *ValidationError, ctx string, i int, tbl *lua.LTable) types.TriggerDef {
	id := getString(tbl, "id")
	tctx := fmt.Sprintf("%s: trigger %q", ctx, id)
	if id == "" {
		tctx = fmt.Sprintf("%s: triggers[%d]", ctx, i)
		ve.Errors = append(ve.Errors, tctx+": missing id")
	}
	checkKeys(ve, tctx, tbl, "id", "condition", "on_activate", "on_deactivate")

	trig := types.TriggerDef{ID: id, Source: getString(tbl, "condition")}
	if trig.Source == "" {
		ve.Errors = append(ve.Errors, tctx+": missing condition")
	} else {
		cond, err := selector.ParseCondition(trig.Source)
		if err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: condition: %v", tctx, err))
		}
		trig.Condition = cond
	}
	if eff := getTable(tbl, "on_activate"); eff != nil {
		trig.OnActivate = compileEffects(ve, tctx+": on_activate", eff)
	}
	if eff := getTable(tbl, "on_deactivate"); eff != nil {
		trig.OnDeactivate = compileEffects(ve, tctx+": on_deactivate", eff)
	}
	if len(trig.OnActivate) == 0 && len(trig.OnDeactivate) == 0 {
		ve.Warnings = append(ve.Warnings, tctx+": no effects on either edge")
	}
	return trig
}

// mergeDefinition overlays a later layer's fragment onto an earlier one:
// list-valued sections replace whole, keyed sections merge per key,
// affordances and triggers replace by name.
func mergeDefinition(dst, src *types.Definition, present map[string]bool) {
	if present["types"] {
		dst.Types = src.Types
	}
	for k, v := range src.Props {
		dst.Props[k] = v
	}
	for k, v := range src.Computed {
		dst.Computed[k] = v
	}
	for i := range src.Affordances {
		replaced := false
		for j := range dst.Affordances {
			if dst.Affordances[j].Name == src.Affordances[i].Name {
				dst.Affordances[j] = src.Affordances[i]
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Affordances = append(dst.Affordances, src.Affordances[i])
		}
	}
	for i := range src.Triggers {
		replaced := false
		for j := range dst.Triggers {
			if dst.Triggers[j].ID == src.Triggers[i].ID {
				dst.Triggers[j] = src.Triggers[i]
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Triggers = append(dst.Triggers, src.Triggers[i])
		}
	}
}

func compileInstances(ve *ValidationError, coll *collector, defs *world.Defs) {
	index := map[string]int{}
	lastLayer := map[string]int{}
	for _, raw := range coll.instances {
		ctx := fmt.Sprintf("instance %q", raw.id)
		checkKeys(ve, ctx, raw.table, "of", "located_in", "props", "links")

		frag := types.InstanceDef{
			ID:        raw.id,
			Of:        getString(raw.table, "of"),
			LocatedIn: getString(raw.table, "located_in"),
		}
		if propsTbl := getTable(raw.table, "props"); propsTbl != nil {
			frag.Props = map[string]any{}
			propsTbl.ForEach(func(k, v lua.LValue) {
				if ks, ok := k.(lua.LString); ok {
					frag.Props[string(ks)] = toGoValue(v)
				}
			})
		}
		linksPresent := false
		if linksTbl := getTable(raw.table, "links"); linksTbl != nil {
			linksPresent = true
			for i := 1; i <= linksTbl.MaxN(); i++ {
				linkTbl, ok := linksTbl.RawGetInt(i).(*lua.LTable)
				if !ok {
					ve.Errors = append(ve.Errors, fmt.Sprintf("%s: links[%d]: want a table", ctx, i))
					continue
				}
				checkKeys(ve, fmt.Sprintf("%s: links[%d]", ctx, i), linkTbl, "to", "kind")
				frag.Links = append(frag.Links, types.LinkDef{
					To:   getString(linkTbl, "to"),
					Kind: getString(linkTbl, "kind"),
				})
			}
		}

		at, seen := index[raw.id]
		if !seen {
			index[raw.id] = len(defs.Instances)
			lastLayer[raw.id] = raw.layer
			defs.Instances = append(defs.Instances, frag)
			continue
		}
		if lastLayer[raw.id] == raw.layer {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: declared twice in the same layer", ctx))
			continue
		}
		lastLayer[raw.id] = raw.layer
		base := &defs.Instances[at]
		if frag.Of != "" {
			base.Of = frag.Of
		}
		if frag.LocatedIn != "" {
			base.LocatedIn = frag.LocatedIn
		}
		if frag.Props != nil {
			if base.Props == nil {
				base.Props = map[string]any{}
			}
			for k, v := range frag.Props {
				base.Props[k] = v
			}
		}
		if linksPresent {
			base.Links = frag.Links
		}
	}
}

func compileActions(ve *ValidationError, coll *collector, defs *world.Defs) {
	index := map[string]int{}
	lastLayer := map[string]int{}
	for _, raw := range coll.actions {
		ctx := fmt.Sprintf("action %q", raw.name)
		act, present := compileActionBody(ve, ctx, raw.name, raw.table)

		at, seen := index[raw.name]
		if !seen {
			index[raw.name] = len(defs.Actions)
			lastLayer[raw.name] = raw.layer
			defs.Actions = append(defs.Actions, act)
			continue
		}
		if lastLayer[raw.name] == raw.layer {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: declared twice in the same layer", ctx))
			continue
		}
		lastLayer[raw.name] = raw.layer
		mergeAction(&defs.Actions[at], &act, present)
	}
}

// compileActionBody compiles a global action or affordance body. The
// returned set records which keys the table actually named, so layer
// merging only overrides those.
func compileActionBody(ve *ValidationError, ctx, name string, tbl *lua.LTable) (types.ActionDef, map[string]bool) {
	checkKeys(ve, ctx, tbl, "name", "params", "require", "effects", "cost", "scope", "message")

	present := map[string]bool{}
	act := types.ActionDef{Name: name}

	if paramsTbl := getTable(tbl, "params"); paramsTbl != nil {
		present["params"] = true
		for i := 1; i <= paramsTbl.MaxN(); i++ {
			s, ok := paramsTbl.RawGetInt(i).(lua.LString)
			if !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: params[%d]: want a string", ctx, i))
				continue
			}
			// "item:portable" declares a binding name and a required type tag.
			pname, tag, _ := strings.Cut(string(s), ":")
			act.Params = append(act.Params, types.ParamSpec{Name: pname, Type: tag})
		}
	}
	if req := getString(tbl, "require"); req != "" {
		present["require"] = true
		act.RequireSrc = req
		cond, err := selector.ParseCondition(req)
		if err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: require: %v", ctx, err))
		}
		act.Require = cond
	}
	if effTbl := getTable(tbl, "effects"); effTbl != nil {
		present["effects"] = true
		act.Effects = compileEffects(ve, ctx+": effects", effTbl)
	}
	if _, ok := tbl.RawGetString("cost").(lua.LNumber); ok {
		present["cost"] = true
		act.Cost = getInt(tbl, "cost")
		if act.Cost < 0 {
			ve.Errors = append(ve.Errors, ctx+": cost must not be negative")
		}
	}
	if scope := getString(tbl, "scope"); scope != "" {
		present["scope"] = true
		act.Scope = types.EventScope(scope)
	}
	if msg := getString(tbl, "message"); msg != "" {
		present["message"] = true
		act.Message = msg
	}
	return act, present
}

func mergeAction(dst, src *types.ActionDef, present map[string]bool) {
	if present["params"] {
		dst.Params = src.Params
	}
	if present["require"] {
		dst.Require = src.Require
		dst.RequireSrc = src.RequireSrc
	}
	if present["effects"] {
		dst.Effects = src.Effects
	}
	if present["cost"] {
		dst.Cost = src.Cost
	}
	if present["scope"] {
		dst.Scope = src.Scope
	}
	if present["message"] {
		dst.Message = src.Message
	}
}

func compileStatuses(ve *ValidationError, coll *collector, defs *world.Defs) {
	lastLayer := map[string]int{}
	for _, raw := range coll.statuses {
		ctx := fmt.Sprintf("status %q", raw.name)
		checkKeys(ve, ctx, raw.table, "overlay", "stacking", "max_stacks")

		base, seen := defs.Statuses[raw.name]
		if seen && lastLayer[raw.name] == raw.layer {
			ve.Errors = append(ve.Errors, fmt.Sprintf("%s: declared twice in the same layer", ctx))
			continue
		}
		if !seen {
			base = types.StatusDef{Name: raw.name}
		}
		lastLayer[raw.name] = raw.layer

		if overlayTbl := getTable(raw.table, "overlay"); overlayTbl != nil {
			overlay := map[string]any{}
			overlayTbl.ForEach(func(k, v lua.LValue) {
				if ks, ok := k.(lua.LString); ok {
					overlay[string(ks)] = toGoValue(v)
				}
			})
			base.Overlay = overlay
		}
		if s := getString(raw.table, "stacking"); s != "" {
			base.Stacking = types.StackPolicy(s)
		}
		if n := getInt(raw.table, "max_stacks"); n != 0 {
			base.MaxStacks = n
		}
		defs.Statuses[raw.name] = base
	}
}

// entitySelectorKeys are the effect params that hold entity references and
// compile from selector source text.
var entitySelectorKeys = map[string]bool{
	"entity": true, "container": true, "a": true, "b": true, "target": true,
}

func compileEffects(ve *ValidationError, ctx string, tbl *lua.LTable) []types.Effect {
	var effs []types.Effect
	for i := 1; i <= tbl.MaxN(); i++ {
		effTbl, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			ve.Errors = append(ve.Errors, fmt.Sprintf(
				"%s[%d]: want an effect (use the effect helpers)", ctx, i))
			continue
		}
		effs = append(effs, compileEffect(ve, fmt.Sprintf("%s[%d]", ctx, i), effTbl))
	}
	return effs
}

func compileEffect(ve *ValidationError, ctx string, tbl *lua.LTable) types.Effect {
	eff := types.Effect{
		Type:   getString(tbl, "type"),
		Params: map[string]any{},
	}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		key := string(ks)
		if key == "type" {
			return
		}
		switch {
		case entitySelectorKeys[key]:
			src, ok := v.(lua.LString)
			if !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: param %q: want a selector string", ctx, key))
				return
			}
			sel, err := selector.ParseSelector(string(src))
			if err != nil {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: param %q: %v", ctx, key, err))
				return
			}
			eff.Params[key] = sel
		case key == "until":
			src, ok := v.(lua.LString)
			if !ok {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: until: want a condition string", ctx))
				return
			}
			cond, err := selector.ParseCondition(string(src))
			if err != nil {
				ve.Errors = append(ve.Errors, fmt.Sprintf("%s: until: %v", ctx, err))
				return
			}
			eff.Params[key] = cond
		default:
			eff.Params[key] = toGoValue(v)
		}
	})
	return eff
}
