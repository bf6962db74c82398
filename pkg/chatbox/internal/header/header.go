// Package header renders the widget's title bar.
package header

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/germanamz/chatbox/pkg/chatbox/internal/styles"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// Model shows the title and the conversation status.
type Model struct {
	conv  conversation.Handle
	title string
	width int
}

// New creates a header bound to conv.
func New(conv conversation.Handle, title string) Model {
	return Model{conv: conv, title: title}
}

// SetWidth sets the rendered width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// Height returns the number of lines View occupies.
func (m Model) Height() int {
	return lipgloss.Height(m.View())
}

// View renders the title on the left and the status on the right.
func (m Model) View() string {
	title := styles.TitleStyle.Render(m.title)

	var status string
	if m.conv.IsLoading() {
		status = styles.SpinnerStyle.Render("● typing…")
	} else {
		n := len(m.conv.Messages())
		noun := "messages"
		if n == 1 {
			noun = "message"
		}
		status = styles.StatusStyle.Render(fmt.Sprintf("%d %s", n, noun))
	}

	inner := max(m.width, lipgloss.Width(title)+lipgloss.Width(status)+1)
	gap := inner - lipgloss.Width(title) - lipgloss.Width(status)
	line := title + lipgloss.NewStyle().Width(gap).Render("") + status

	return styles.HeaderStyle.Width(inner).Render(line)
}
