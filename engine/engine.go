// Package engine runs the action pipeline: parse is upstream, then resolve,
// validate, apply, report. Each stage either passes a richer value forward
// or stops the pipeline with a typed error; once apply starts, the effect
// batch is atomic.
package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/nathoo/worldcore/engine/effects"
	"github.com/nathoo/worldcore/engine/events"
	"github.com/nathoo/worldcore/engine/query"
	"github.com/nathoo/worldcore/engine/trigger"
	"github.com/nathoo/worldcore/selector"
	"github.com/nathoo/worldcore/types"
	"github.com/nathoo/worldcore/world"
)

// Engine owns one world and drives all mutation through a single timeline:
// one action or turn advance at a time, trigger cascades included.
type Engine struct {
	Defs  *world.Defs
	World *world.World
	Bus   *events.Bus
}

// New instantiates the initial population and records the starting state of
// every trigger so conditions already true at startup do not fire.
func New(defs *world.Defs) (*Engine, error) {
	w, err := world.New(defs)
	if err != nil {
		return nil, err
	}
	trigger.Seed(w, defs)
	return &Engine{Defs: defs, World: w, Bus: events.NewBus()}, nil
}

// Perform runs one intent through the pipeline on behalf of actor. On any
// failure before or during apply, the world is unchanged by this action and
// the returned cost is zero. A CascadeLimitError is returned with the
// result: the action itself committed, the cascade was cut short.
func (e *Engine) Perform(actor string, intent types.Intent) (types.Result, error) {
	res := types.Result{Action: intent.Verb}
	w := e.World

	act, this, err := e.lookup(intent)
	if err != nil {
		return res, err
	}

	bindings, targets, err := e.bind(act, intent)
	if err != nil {
		return res, err
	}
	if this == "" {
		if len(targets) > 0 {
			this = targets[0]
		} else {
			this = actor
		}
	}

	// Validate: cost first, then the declared requirement.
	if act.Cost > 0 {
		if ap, ok := numberProp(w, actor, "ap"); ok && ap < float64(act.Cost) {
			return res, &RequirementError{Verb: act.Name, Reason: ReasonInsufficientAP}
		}
	}
	if act.Require != nil {
		env := &query.Env{World: w, This: this, Actor: actor, Bindings: bindings}
		ok, err := selector.Eval(act.Require, env)
		if err != nil {
			return res, fmt.Errorf("%s: requirement: %w", act.Name, err)
		}
		if !ok {
			return res, &RequirementError{Verb: act.Name, Reason: act.RequireSrc}
		}
	}

	// Apply: the action's effects as one atomic batch.
	ctx := effects.Context{Actor: actor, This: this, Verb: act.Name, Bindings: bindings}
	evts, err := effects.Apply(w, act.Effects, ctx)
	if err != nil {
		return res, err
	}
	res.Cost = act.Cost
	if act.Cost > 0 {
		if ap, ok := numberProp(w, actor, "ap"); ok {
			if err := w.SetProp(actor, "ap", ap-float64(act.Cost)); err != nil {
				slog.Warn("ap deduction failed", "actor", actor, "err", err)
			}
		}
	}

	evts = append(evts, e.expireUntil(actor)...)
	trigEvts, trigErr := trigger.Pass(w, e.Defs, actor)
	evts = append(evts, trigEvts...)
	evts = append(evts, e.expireUntil(actor)...)

	// Report.
	evts = append(evts, e.report(act, actor, targets))
	res.Events = evts
	e.Bus.Flush(w, evts)
	return res, trigErr
}

// AdvanceTurn ticks turn-bounded statuses, sweeps until-conditions, runs a
// trigger pass over the results, and increments the turn counter.
func (e *Engine) AdvanceTurn(actor string) (types.Result, error) {
	w := e.World
	res := types.Result{Action: "advance_turn"}

	w.Begin()
	expired := w.TickStatuses()
	w.Commit()

	var evts []types.Event
	for _, x := range expired {
		evts = append(evts, expiryEvent(actor, x))
	}
	evts = append(evts, e.expireUntil(actor)...)

	trigEvts, trigErr := trigger.Pass(w, e.Defs, actor)
	evts = append(evts, trigEvts...)
	evts = append(evts, e.expireUntil(actor)...)

	w.AdvanceTurnCounter()
	res.Events = evts
	e.Bus.Flush(w, evts)
	return res, trigErr
}

// lookup finds the action for a verb: the global registry first, then the
// affordances declared on the first parameter's resolved entity.
func (e *Engine) lookup(intent types.Intent) (*types.ActionDef, string, error) {
	if act, ok := e.Defs.Action(intent.Verb); ok {
		return act, "", nil
	}
	if len(intent.Params) == 0 {
		return nil, "", &UnknownVerbError{Verb: intent.Verb}
	}
	object, err := query.ResolveReference(e.World, intent.Params[0])
	if err != nil {
		return nil, "", err
	}
	inst, _ := e.World.Get(object)
	for i := range inst.Def.Affordances {
		if inst.Def.Affordances[i].Name == intent.Verb {
			return &inst.Def.Affordances[i], object, nil
		}
	}
	return nil, "", &UnknownVerbError{Verb: intent.Verb}
}

// bind resolves intent tokens against the action's declared parameters,
// positionally, and enforces declared type tags.
func (e *Engine) bind(act *types.ActionDef, intent types.Intent) (map[string]string, []string, error) {
	if len(intent.Params) != len(act.Params) {
		return nil, nil, &ArityError{Verb: act.Name, Want: len(act.Params), Got: len(intent.Params)}
	}
	bindings := map[string]string{}
	targets := make([]string, 0, len(act.Params))
	for i, spec := range act.Params {
		id, err := query.ResolveReference(e.World, intent.Params[i])
		if err != nil {
			return nil, nil, err
		}
		if spec.Type != "" && !e.World.HasTag(id, spec.Type) {
			return nil, nil, fmt.Errorf("%w: %q is not a %s", world.ErrInvalidTarget, id, spec.Type)
		}
		bindings[spec.Name] = id
		targets = append(targets, id)
	}
	return bindings, targets, nil
}

// expireUntil removes every status whose until-condition now holds.
func (e *Engine) expireUntil(actor string) []types.Event {
	w := e.World
	var evts []types.Event
	for _, c := range w.UntilCandidates() {
		cond, ok := w.StatusUntil(c.Entity, c.Name)
		if !ok {
			continue
		}
		env := &query.Env{World: w, This: c.Entity, Actor: actor}
		hit, err := selector.Eval(cond, env)
		if err != nil {
			slog.Warn("status until-condition failed",
				"entity", c.Entity, "status", c.Name, "err", err)
			continue
		}
		if !hit {
			continue
		}
		if removed, err := w.RemoveStatus(c.Entity, c.Name); err == nil && removed {
			evts = append(evts, expiryEvent(actor, c))
		}
	}
	return evts
}

func (e *Engine) report(act *types.ActionDef, actor string, targets []string) types.Event {
	scope := act.Scope
	if scope == "" {
		scope = types.ScopeContainer
	}
	target := ""
	if len(targets) > 0 {
		target = targets[0]
	}
	return types.Event{
		Type:    "action",
		Actor:   actor,
		Verb:    act.Name,
		Targets: targets,
		Scope:   scope,
		Message: Render(act.Message, e.World, actor, target, act.Name),
		Data:    map[string]any{"cost": act.Cost},
	}
}

func expiryEvent(actor string, x world.Expired) types.Event {
	return types.Event{
		Type:    "status_expired",
		Actor:   actor,
		Targets: []string{x.Entity},
		Scope:   types.ScopeContainer,
		Data:    map[string]any{"entity": x.Entity, "status": x.Name},
	}
}

// Render fills {actor}, {target}, and {verb} placeholders in an action
// message with display names.
func Render(msg string, w *world.World, actor, target, verb string) string {
	if msg == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{actor}", DisplayName(w, actor),
		"{target}", DisplayName(w, target),
		"{verb}", verb,
	)
	return r.Replace(msg)
}

// DisplayName prefers an entity's "name" property over its id.
func DisplayName(w *world.World, id string) string {
	if id == "" {
		return ""
	}
	if v, ok := w.GetProp(id, "name"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return id
}

func numberProp(w *world.World, id, key string) (float64, bool) {
	if v, ok := w.GetProp(id, key); ok {
		if n, isNum := v.(float64); isNum {
			return n, true
		}
	}
	return 0, false
}
