// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for a loaded world.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/nathoo/worldcore/engine"
	"github.com/nathoo/worldcore/engine/parser"
	"github.com/nathoo/worldcore/engine/query"
	"github.com/nathoo/worldcore/engine/trigger"
	"github.com/nathoo/worldcore/types"
)

// CLI handles terminal interaction with one actor in the world.
type CLI struct {
	Engine    *engine.Engine
	Actor     string
	In        io.Reader
	Out       io.Writer
	Trace     bool
	EchoInput bool // echo each input line after the prompt (for script playback)
}

// New creates a CLI wired to the given engine on behalf of an actor. The
// actor's bus subscription prints every message that reaches it.
func New(eng *engine.Engine, actor string) *CLI {
	c := &CLI{
		Engine: eng,
		Actor:  actor,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
	eng.Bus.Subscribe(actor, func(evt types.Event) {
		if evt.Message != "" {
			c.printLine(evt.Message)
		}
	})
	eng.Bus.SubscribeGlobal(func(evt types.Event) {
		if c.Trace {
			c.printSystem(fmt.Sprintf("[event] %s actor=%s targets=%v scope=%s",
				evt.Type, evt.Actor, evt.Targets, evt.Scope))
		}
	})
	return c
}

// Run starts the loop: prompt, input, dispatch, output. Returns when input
// is exhausted or on /quit.
func (c *CLI) Run() {
	if c.Engine.Defs.World.Title != "" {
		c.printLine(c.Engine.Defs.World.Title)
	}
	if c.Engine.Defs.World.Description != "" {
		c.printLine(c.Engine.Defs.World.Description)
	}
	c.printLine("")
	c.cmdLook()

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return // /quit
			}
			continue
		}

		c.perform(input)
	}
}

func (c *CLI) perform(input string) {
	intent := parser.Parse(input)
	res, err := c.Engine.Perform(c.Actor, intent)
	if err != nil {
		c.printFailure(err)
	}
	if c.Trace {
		c.printSystem(fmt.Sprintf("[trace] action=%s cost=%d events=%d",
			res.Action, res.Cost, len(res.Events)))
	}
}

// printFailure renders pipeline errors in player terms.
func (c *CLI) printFailure(err error) {
	var (
		unknown   *engine.UnknownVerbError
		arity     *engine.ArityError
		require   *engine.RequirementError
		notFound  *query.NotFoundError
		ambiguous *query.AmbiguityError
		cascade   *trigger.CascadeLimitError
	)
	switch {
	case errors.As(err, &unknown):
		c.printLine(fmt.Sprintf("You don't know how to %q.", unknown.Verb))
	case errors.As(err, &arity):
		c.printLine(fmt.Sprintf("%s needs %d thing(s), you named %d.", arity.Verb, arity.Want, arity.Got))
	case errors.As(err, &require):
		c.printLine(fmt.Sprintf("You can't do that: %s.", require.Reason))
	case errors.As(err, &notFound):
		c.printLine(fmt.Sprintf("There's no %q here.", notFound.Ref))
	case errors.As(err, &ambiguous):
		c.printLine(fmt.Sprintf("Which %q do you mean? (%s)",
			ambiguous.Ref, strings.Join(ambiguous.Candidates, ", ")))
	case errors.As(err, &cascade):
		c.printSystem(err.Error())
	default:
		c.printLine(fmt.Sprintf("Nothing happens. (%v)", err))
	}
}

// handleMeta dispatches meta-commands. Returns true if the session should end.
func (c *CLI) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.Join(parts[1:], " ")
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/help":
		c.cmdHelp()

	case "/look":
		c.cmdLook()

	case "/affordances":
		c.cmdAffordances(arg)

	case "/advance":
		if _, err := c.Engine.AdvanceTurn(c.Actor); err != nil {
			c.printFailure(err)
		}
		c.printSystem(fmt.Sprintf("Turn %d.", c.Engine.World.Turn()))

	case "/events":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Event trace enabled.")
		} else {
			c.printSystem("Event trace disabled.")
		}

	case "/state":
		c.cmdState(arg)

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /look                — Describe your surroundings",
		"  /affordances <thing> — List what you could do with something",
		"  /advance             — Let a turn pass",
		"  /events              — Toggle event trace output",
		"  /state [thing]       — Debug: dump entity state",
		"  /quit                — Exit",
		"  /help                — Show this help",
		"",
		"Everything else is '<verb> <thing> [<thing>...]', with verbs",
		"defined by the loaded world.",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdLook() {
	w := c.Engine.World
	loc, ok := w.LocationOf(c.Actor)
	if !ok {
		c.printLine("You are nowhere.")
		return
	}
	c.printLine(fmt.Sprintf("You are in %s.", engine.DisplayName(w, loc)))
	var names []string
	for _, id := range w.Contents(loc) {
		if id != c.Actor {
			names = append(names, engine.DisplayName(w, id))
		}
	}
	if len(names) > 0 {
		c.printLine("Here: " + strings.Join(names, ", ") + ".")
	}
	if linked := w.Linked(loc, ""); len(linked) > 0 {
		var ways []string
		for _, id := range linked {
			ways = append(ways, engine.DisplayName(w, id))
		}
		c.printLine("Ways out: " + strings.Join(ways, ", ") + ".")
	}
}

func (c *CLI) cmdAffordances(ref string) {
	if ref == "" {
		c.printSystem("Usage: /affordances <thing>")
		return
	}
	id, err := query.ResolveReference(c.Engine.World, ref)
	if err != nil {
		c.printFailure(err)
		return
	}
	affs := engine.Available(c.Engine.World, id, c.Actor)
	if len(affs) == 0 {
		c.printLine(fmt.Sprintf("Nothing to do with %s right now.", engine.DisplayName(c.Engine.World, id)))
		return
	}
	var verbs []string
	for _, a := range affs {
		verbs = append(verbs, a.Verb)
	}
	c.printLine(fmt.Sprintf("%s: %s", engine.DisplayName(c.Engine.World, id), strings.Join(verbs, ", ")))
}

func (c *CLI) cmdState(ref string) {
	w := c.Engine.World
	id := c.Actor
	if ref != "" {
		resolved, err := query.ResolveReference(w, ref)
		if err != nil {
			c.printFailure(err)
			return
		}
		id = resolved
	}
	inst, ok := w.Get(id)
	if !ok {
		c.printSystem(fmt.Sprintf("No entity %q.", id))
		return
	}
	c.printSystem(fmt.Sprintf("%s (of %s)", id, inst.Def.ID))
	if loc, ok := w.LocationOf(id); ok {
		c.printSystem("located_in: " + loc)
	}
	keys := make([]string, 0, len(inst.Def.Props)+len(inst.Def.Computed))
	for k := range inst.Def.Props {
		keys = append(keys, k)
	}
	for k := range inst.Def.Computed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := w.GetProp(id, k); ok {
			c.printSystem(fmt.Sprintf("%s = %v", k, v))
		}
	}
	for _, st := range w.Statuses(id) {
		c.printSystem(fmt.Sprintf("status %s (turns_left=%d)", st.Name, st.TurnsLeft))
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
