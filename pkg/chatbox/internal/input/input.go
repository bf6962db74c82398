// Package input provides the message composer.
package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/germanamz/chatbox/pkg/chatbox/internal/styles"
	"github.com/germanamz/chatbox/pkg/conversation"
)

const (
	minHeight = 1
	maxHeight = 5
)

// DefaultPlaceholder is used when the host sets none.
const DefaultPlaceholder = "Type a message... (alt+enter for newline)"

// SendRejectedMsg is emitted when the conversation refuses a send, e.g.
// because a request is already outstanding. The typed text is kept.
type SendRejectedMsg struct {
	Err error
}

// Model wraps a textarea in a rounded border box and submits its text to
// the conversation on enter.
type Model struct {
	conv     conversation.Handle
	textarea textarea.Model
	width    int
}

// New creates an input bound to conv.
func New(conv conversation.Handle, placeholder string) Model {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.SetHeight(minHeight)
	ta.CharLimit = 0
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = lipgloss.NewStyle()
	ta.BlurredStyle.Prompt = lipgloss.NewStyle()
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	return Model{conv: conv, textarea: ta}
}

// Focus gives the textarea keyboard focus.
func (m *Model) Focus() tea.Cmd {
	return m.textarea.Focus()
}

// Focused reports whether the textarea has focus.
func (m Model) Focused() bool {
	return m.textarea.Focused()
}

// Value returns the current draft.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetValue replaces the draft.
func (m *Model) SetValue(s string) {
	m.textarea.SetValue(s)
	m.resize()
}

// SetWidth sets the outer width, border included.
func (m *Model) SetWidth(w int) {
	m.width = w
	m.textarea.SetWidth(innerWidth(w))
	m.resize()
}

// Height returns the number of lines View occupies.
func (m Model) Height() int {
	return lipgloss.Height(m.View())
}

// Update submits on enter and forwards everything else to the textarea.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEnter && !k.Alt {
		text := strings.TrimSpace(m.textarea.Value())
		if text == "" {
			return m, nil
		}
		if _, err := m.conv.SendMessage(text); err != nil {
			return m, func() tea.Msg { return SendRejectedMsg{Err: err} }
		}
		m.textarea.Reset()
		m.textarea.SetHeight(minHeight)
		return m, nil
	}

	if !m.textarea.Focused() {
		return m, nil
	}

	// Give the textarea room so it does not scroll while updating, then
	// shrink to the content.
	m.textarea.SetHeight(maxHeight)

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.resize()

	return m, cmd
}

// View renders the box. The border is dimmed while a reply is pending.
func (m Model) View() string {
	border := styles.FocusedBorder
	if m.conv.IsLoading() || !m.textarea.Focused() {
		border = styles.DisabledBorder
	}

	w := innerWidth(m.width)
	m.textarea.SetWidth(w)

	return border.Width(w).Render(m.textarea.View())
}

func (m *Model) resize() {
	m.textarea.SetHeight(min(max(m.visualLineCount(), minHeight), maxHeight))
}

// visualLineCount counts hard newlines plus soft wraps at the textarea width.
func (m Model) visualLineCount() int {
	text := m.textarea.Value()
	if text == "" {
		return 1
	}

	wrapWidth := max(m.textarea.Width(), 1)

	total := 0
	for line := range strings.SplitSeq(text, "\n") {
		w := runewidth.StringWidth(line)
		if w == 0 {
			total++
			continue
		}
		total += (w-1)/wrapWidth + 1
	}

	return total
}

func innerWidth(w int) int {
	return max(w-4, 10)
}
