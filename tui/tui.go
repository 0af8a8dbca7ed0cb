package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/worldcore/engine"
	"github.com/nathoo/worldcore/engine/parser"
	"github.com/nathoo/worldcore/engine/query"
	"github.com/nathoo/worldcore/engine/trigger"
	"github.com/nathoo/worldcore/types"
)

// capture collects the messages delivered to the actor during one Perform
// call. Flush is synchronous, so take() right after Perform sees everything.
type capture struct {
	lines []string
}

func (c *capture) take() []string {
	out := c.lines
	c.lines = nil
	return out
}

// rawLine stores an unstyled output line with its classification, so we can
// re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
}

// Model is the Bubble Tea model for the world TUI.
type Model struct {
	eng   *engine.Engine
	actor string
	buf   *capture

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated narrative lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
}

// outputMsg carries output lines into the Update loop.
type outputMsg struct {
	input    string   // echoed player input (empty for the opening text)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// New creates a TUI model wired to the given engine on behalf of an actor.
func New(eng *engine.Engine, actor string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	buf := &capture{}
	eng.Bus.Subscribe(actor, func(evt types.Event) {
		if evt.Message != "" {
			buf.lines = append(buf.lines, evt.Message)
		}
	})

	return Model{
		eng:     eng,
		actor:   actor,
		buf:     buf,
		input:   ti,
		history: NewHistory(100),
	}
}

// Run starts the Bubble Tea program.
func Run(eng *engine.Engine, actor string) error {
	m := New(eng, actor)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init returns the initial command that produces the title and first look.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		var lines []string
		if title := m.eng.Defs.World.Title; title != "" {
			lines = append(lines, title)
		}
		if desc := m.eng.Defs.World.Description; desc != "" {
			lines = append(lines, desc)
		}
		lines = append(lines, "")
		lines = append(lines, m.lookLines()...)
		return outputMsg{lines: lines}
	}
}

// Update handles messages (key presses, window resize, output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case outputMsg:
		m = m.appendOutput(msg)
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(outputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	intent := parser.Parse(input)
	res, err := m.eng.Perform(m.actor, intent)
	output := m.buf.take()
	if err != nil {
		output = append(output, formatFailure(err))
	}
	if m.trace {
		output = append(output, fmt.Sprintf("[event] action=%s cost=%d events=%d",
			res.Action, res.Cost, len(res.Events)))
		for _, evt := range res.Events {
			output = append(output, fmt.Sprintf("[event]   %s scope=%s", evt.Type, evt.Scope))
		}
	}
	m = m.appendOutput(outputMsg{input: input, lines: output})
	return m, nil
}

// formatFailure renders pipeline errors in player terms.
func formatFailure(err error) string {
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
		return fmt.Sprintf("You don't know how to %q.", unknown.Verb)
	case errors.As(err, &arity):
		return fmt.Sprintf("%s needs %d thing(s), you named %d.", arity.Verb, arity.Want, arity.Got)
	case errors.As(err, &require):
		return fmt.Sprintf("You can't do that: %s.", require.Reason)
	case errors.As(err, &notFound):
		return fmt.Sprintf("There's no %q here.", notFound.Ref)
	case errors.As(err, &ambiguous):
		return fmt.Sprintf("Which %q do you mean? (%s)",
			ambiguous.Ref, strings.Join(ambiguous.Candidates, ", "))
	case errors.As(err, &cascade):
		return "[" + err.Error() + "]"
	default:
		return fmt.Sprintf("Nothing happens. (%v)", err)
	}
}

// appendOutput adds lines to the narrative and refreshes the viewport.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = strings.Join(parts[1:], " ")
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/help":
		return m.cmdHelp(), false

	case "/look":
		return m.lookLines(), false

	case "/affordances":
		return m.cmdAffordances(arg), false

	case "/advance":
		if _, err := m.eng.AdvanceTurn(m.actor); err != nil {
			return []string{formatFailure(err)}, false
		}
		lines := m.buf.take()
		return append(lines, fmt.Sprintf("Turn %d.", m.eng.World.Turn())), false

	case "/events":
		m.trace = !m.trace
		if m.trace {
			return []string{"Event trace enabled."}, false
		}
		return []string{"Event trace disabled."}, false

	case "/state":
		return m.cmdState(arg), false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdHelp() []string {
	return []string{
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
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

func (m Model) lookLines() []string {
	w := m.eng.World
	loc, ok := w.LocationOf(m.actor)
	if !ok {
		return []string{"You are nowhere."}
	}
	lines := []string{fmt.Sprintf("You are in %s.", engine.DisplayName(w, loc))}
	var names []string
	for _, id := range w.Contents(loc) {
		if id != m.actor {
			names = append(names, engine.DisplayName(w, id))
		}
	}
	if len(names) > 0 {
		lines = append(lines, "Here: "+strings.Join(names, ", ")+".")
	}
	if linked := w.Linked(loc, ""); len(linked) > 0 {
		var ways []string
		for _, id := range linked {
			ways = append(ways, engine.DisplayName(w, id))
		}
		lines = append(lines, "Ways out: "+strings.Join(ways, ", ")+".")
	}
	return lines
}

func (m *Model) cmdAffordances(ref string) []string {
	if ref == "" {
		return []string{"Usage: /affordances <thing>"}
	}
	id, err := query.ResolveReference(m.eng.World, ref)
	if err != nil {
		return []string{formatFailure(err)}
	}
	affs := engine.Available(m.eng.World, id, m.actor)
	name := engine.DisplayName(m.eng.World, id)
	if len(affs) == 0 {
		return []string{fmt.Sprintf("Nothing to do with %s right now.", name)}
	}
	var verbs []string
	for _, a := range affs {
		verbs = append(verbs, a.Verb)
	}
	return []string{fmt.Sprintf("%s: %s", name, strings.Join(verbs, ", "))}
}

func (m *Model) cmdState(ref string) []string {
	w := m.eng.World
	id := m.actor
	if ref != "" {
		resolved, err := query.ResolveReference(w, ref)
		if err != nil {
			return []string{formatFailure(err)}
		}
		id = resolved
	}
	inst, ok := w.Get(id)
	if !ok {
		return []string{fmt.Sprintf("No entity %q.", id)}
	}
	lines := []string{fmt.Sprintf("%s (of %s)", id, inst.Def.ID)}
	if loc, ok := w.LocationOf(id); ok {
		lines = append(lines, "located_in: "+loc)
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
			lines = append(lines, fmt.Sprintf("%s = %v", k, v))
		}
	}
	for _, st := range w.Statuses(id) {
		lines = append(lines, fmt.Sprintf("status %s (turns_left=%d)", st.Name, st.TurnsLeft))
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
