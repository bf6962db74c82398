// Package footer renders key hints and request status below the input.
package footer

import (
	"strings"
	"time"

	"github.com/germanamz/chatbox/pkg/chatbox/internal/format"
	"github.com/germanamz/chatbox/pkg/chatbox/internal/styles"
	"github.com/germanamz/chatbox/pkg/conversation"
)

const (
	idleHints    = "enter send · alt+enter newline"
	loadingHints = "esc stop"
)

// Model shows key hints, the last round-trip time, the last error and an
// optional host-provided text.
type Model struct {
	conv     conversation.Handle
	text     string
	duration time.Duration
	err      string
	width    int
}

// New creates a footer bound to conv. text is appended to the hints.
func New(conv conversation.Handle, text string) Model {
	return Model{conv: conv, text: text}
}

// SetWidth sets the maximum rendered width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetDuration records the last request's round-trip time and clears the
// error.
func (m *Model) SetDuration(d time.Duration) {
	m.duration = d
	m.err = ""
}

// SetError shows err until the next SetDuration or ClearError. A nil err
// clears it.
func (m *Model) SetError(err error) {
	if err == nil {
		m.err = ""
		return
	}
	m.err = err.Error()
}

// ClearError drops the error line.
func (m *Model) ClearError() {
	m.err = ""
}

// View renders one line.
func (m Model) View() string {
	hints := idleHints
	if m.conv.IsLoading() {
		hints = loadingHints
	}

	parts := []string{hints}
	if m.duration > 0 && !m.conv.IsLoading() {
		parts = append(parts, "["+format.FmtDuration(m.duration)+"]")
	}
	if m.text != "" {
		parts = append(parts, m.text)
	}

	line := " " + strings.Join(parts, " · ")
	if m.width > 0 {
		line = format.Truncate(line, m.width)
	}
	out := styles.StatusStyle.Render(line)

	if m.err != "" {
		errLine := " error: " + m.err
		if m.width > 0 {
			errLine = format.Truncate(errLine, m.width)
		}
		out = styles.ErrorStyle.Render(errLine) + "\n" + out
	}
	return out
}
