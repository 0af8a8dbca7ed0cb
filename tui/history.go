// Package tui provides a Bubble Tea terminal UI for a loaded world.
package tui

// History keeps recent command lines for up/down recall. A cursor of -1
// means the user is typing fresh input rather than browsing.
type History struct {
	lines  []string
	max    int
	cursor int
}

// NewHistory returns a history that retains at most max lines.
func NewHistory(max int) *History {
	return &History{max: max, cursor: -1}
}

// Push records a submitted line. Repeating the last line adds nothing, and
// the oldest line falls off once the buffer is full.
func (h *History) Push(line string) {
	if n := len(h.lines); n > 0 && h.lines[n-1] == line {
		return
	}
	h.lines = append(h.lines, line)
	if len(h.lines) > h.max {
		h.lines = h.lines[1:]
	}
}

// Prev steps the cursor toward older lines and returns the line there. It
// reports false only when nothing has been recorded; at the oldest line it
// keeps returning that line.
func (h *History) Prev() (string, bool) {
	if len(h.lines) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.lines) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.lines[h.cursor], true
}

// Next steps the cursor toward newer lines. Stepping past the newest line
// resets the cursor and reports false, handing the prompt back to fresh
// input.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	if h.cursor++; h.cursor >= len(h.lines) {
		h.cursor = -1
		return "", false
	}
	return h.lines[h.cursor], true
}

// ResetCursor abandons browsing and returns to fresh input.
func (h *History) ResetCursor() {
	h.cursor = -1
}
