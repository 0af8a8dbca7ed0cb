package engine

import (
	"log/slog"

	"github.com/nathoo/worldcore/engine/query"
	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

// Affordance is one action currently available on an entity.
type Affordance struct {
	Verb   string
	Action *types.ActionDef
}

// Available lists the actions an actor could perform on an entity right
// now, in declaration order: global actions whose first parameter the
// entity can fill, then the entity's own declared affordances. Actions
// whose requirement is false are excluded; a requirement that cannot be
// evaluated excludes the action rather than guessing.
func Available(w *world.World, entityID, actor string) []Affordance {
	inst, ok := w.Get(entityID)
	if !ok {
		return nil
	}

	var out []Affordance
	for i := range w.Defs.Actions {
		act := &w.Defs.Actions[i]
		if len(act.Params) == 0 {
			continue
		}
		if t := act.Params[0].Type; t != "" && !w.HasTag(entityID, t) {
			continue
		}
		if requirementHolds(w, act, entityID, actor) {
			out = append(out, Affordance{Verb: act.Name, Action: act})
		}
	}
	for i := range inst.Def.Affordances {
		act := &inst.Def.Affordances[i]
		if requirementHolds(w, act, entityID, actor) {
			out = append(out, Affordance{Verb: act.Name, Action: act})
		}
	}
	return out
}

func requirementHolds(w *world.World, act *types.ActionDef, entityID, actor string) bool {
	if act.Require == nil {
		return true
	}
	env := &query.Env{World: w, This: entityID, Actor: actor, Bindings: bindFirst(act, entityID)}
	ok, err := selector.Eval(act.Require, env)
	if err != nil {
		slog.Debug("affordance requirement unresolvable",
			"verb", act.Name, "entity", entityID, "err", err)
		return false
	}
	return ok
}

// bindFirst pre-binds the action's first parameter to the candidate entity
// so requirements phrased against $param evaluate during listing.
func bindFirst(act *types.ActionDef, entityID string) map[string]string {
	if len(act.Params) == 0 {
		return nil
	}
	return map[string]string{act.Params[0].Name: entityID}
}
