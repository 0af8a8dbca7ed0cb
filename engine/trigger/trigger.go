// Package trigger runs edge-detected reaction passes over the world. A
// trigger fires only on a state transition of its condition, never on a
// level: a condition that stays true across passes fires once.
package trigger

import (
	"fmt"
	"log/slog"

	"github.com/nathoo/worldcore/engine/effects"
	"github.com/nathoo/worldcore/engine/query"
	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

// CascadeLimitError reports a trigger cascade that did not settle within
// the configured firing limit. Effects applied before the limit was hit
// remain committed.
type CascadeLimitError struct {
	Limit int
}

func (e *CascadeLimitError) Error() string {
	return fmt.Sprintf("trigger cascade exceeded limit of %d firings", e.Limit)
}

// Seed records the current condition state of every trigger without firing
// anything. Called once after the world is built, so that conditions already
// true at startup do not produce a spurious rising edge.
func Seed(w *world.World, defs *world.Defs) {
	for _, defID := range defs.DefOrder {
		def := defs.Definitions[defID]
		for i := range def.Triggers {
			trig := &def.Triggers[i]
			for _, inst := range w.InstancesOf(defID) {
				now, err := evalCondition(w, trig, inst)
				if err != nil {
					slog.Warn("trigger condition failed during seed",
						"trigger", trig.ID, "instance", inst, "err", err)
					continue
				}
				if now {
					w.SetTriggerState(world.TriggerKey(trig.ID, inst), true)
				}
			}
		}
	}
}

// Pass runs trigger passes until a full pass produces no firings, or the
// total number of firings reaches the cascade limit. Instances spawned by
// trigger effects start untracked, so a true condition on a fresh spawn is
// a rising edge and fires within the same cascade.
func Pass(w *world.World, defs *world.Defs, actor string) ([]types.Event, error) {
	limit := defs.CascadeLimit()
	var events []types.Event
	fired := 0

	for {
		firedThisPass := 0
		for _, defID := range defs.DefOrder {
			def := defs.Definitions[defID]
			for i := range def.Triggers {
				trig := &def.Triggers[i]
				for _, inst := range w.InstancesOf(defID) {
					transitioned, evts := step(w, trig, inst, actor)
					if !transitioned {
						continue
					}
					events = append(events, evts...)
					fired++
					firedThisPass++
					if fired >= limit {
						err := &CascadeLimitError{Limit: limit}
						slog.Warn("trigger cascade aborted", "limit", limit, "err", err)
						return events, err
					}
				}
			}
		}
		if firedThisPass == 0 {
			return events, nil
		}
	}
}

// step evaluates one trigger on one instance and fires it on a transition.
// The firing's effects run as their own atomic batch; a failed batch rolls
// back but the new condition state is still recorded, so the trigger does
// not re-fire every pass on the same stuck condition.
func step(w *world.World, trig *types.TriggerDef, inst, actor string) (bool, []types.Event) {
	key := world.TriggerKey(trig.ID, inst)
	prev := w.TriggerState(key)

	now, err := evalCondition(w, trig, inst)
	if err != nil {
		slog.Warn("trigger condition failed",
			"trigger", trig.ID, "instance", inst, "condition", trig.Source, "err", err)
		return false, nil
	}
	if now == prev {
		return false, nil
	}
	w.SetTriggerState(key, now)

	var effs []types.Effect
	if now {
		effs = trig.OnActivate
	} else {
		effs = trig.OnDeactivate
	}
	if len(effs) == 0 {
		return true, nil
	}

	evts, err := effects.Apply(w, effs, effects.Context{
		Actor: actor,
		This:  inst,
		Verb:  trig.ID,
	})
	if err != nil {
		slog.Warn("trigger effects rolled back",
			"trigger", trig.ID, "instance", inst, "err", err)
		return true, nil
	}
	return true, evts
}

func evalCondition(w *world.World, trig *types.TriggerDef, inst string) (bool, error) {
	env := &query.Env{World: w, This: inst}
	return selector.Eval(trig.Condition, env)
}
