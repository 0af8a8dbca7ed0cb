package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/worldcore/engine"
)

// renderStatusBar produces a full-width inverted status line showing the
// actor's location, action points, carried entities, and turn count.
func (m Model) renderStatusBar() string {
	w := m.eng.World

	locName := "nowhere"
	if loc, ok := w.LocationOf(m.actor); ok {
		locName = engine.DisplayName(w, loc)
	}

	left := " " + locName
	right := fmt.Sprintf("T:%d ", w.Turn())

	if ap, ok := w.GetProp(m.actor, "ap"); ok {
		if n, isNum := ap.(float64); isNum {
			left = fmt.Sprintf(" %s | AP: %g", locName, n)
		}
	}

	carried := w.Contents(m.actor)
	if len(carried) > 0 {
		var names []string
		for _, id := range carried {
			names = append(names, engine.DisplayName(w, id))
		}
		candidate := fmt.Sprintf("Carrying: %s | T:%d ", strings.Join(names, ", "), w.Turn())
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		} else {
			right = fmt.Sprintf("Carrying: %d | T:%d ", len(carried), w.Turn())
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
