// Package messages renders the scrollable message list.
package messages

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/chatbox/pkg/chatbox/internal/format"
	"github.com/germanamz/chatbox/pkg/chatbox/internal/styles"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// EmptyText is shown before the first message.
const EmptyText = "No messages yet. Say hello!"

// Model displays every message of the conversation in a viewport.
// Content is rebuilt from the conversation on every View, so it never shows
// a stale list; rendered messages are cached by ID to avoid re-running the
// markdown renderer.
type Model struct {
	conv     conversation.Handle
	viewport viewport.Model
	spinner  spinner.Model
	thinking string
	cache    map[string]string
	follow   bool

	width, height int
}

// New creates a message list bound to conv.
func New(conv conversation.Handle) Model {
	return Model{
		conv:     conv,
		viewport: viewport.New(80, 10),
		spinner:  spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.SpinnerStyle)),
		thinking: format.ThinkingMessages[0],
		cache:    make(map[string]string),
		follow:   true,
	}
}

// SetSize sets the viewport dimensions. Cached renders are dropped because
// markdown wraps to the width.
func (m *Model) SetSize(w, h int) {
	if w != m.width {
		m.cache = make(map[string]string)
	}
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
}

// StartLoading picks a new thinking message and starts the spinner.
func (m *Model) StartLoading() tea.Cmd {
	m.thinking = format.RandomThinkingMessage()
	m.follow = true
	return m.spinner.Tick
}

// Update handles spinner ticks and scrolling.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.conv.IsLoading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg, tea.MouseMsg:
		m.viewport.SetContent(m.content())
		if m.follow {
			m.viewport.GotoBottom()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd
	}
	return m, nil
}

// View renders the visible part of the list.
func (m Model) View() string {
	m.viewport.SetContent(m.content())
	if m.follow {
		m.viewport.GotoBottom()
	}
	return m.viewport.View()
}

func (m Model) content() string {
	msgs := m.conv.Messages()
	loading := m.conv.IsLoading()

	if len(msgs) == 0 && !loading {
		return styles.DimStyle.Render(EmptyText)
	}

	blocks := make([]string, 0, len(msgs)+1)
	for _, msg := range msgs {
		if msg.ID == "" {
			blocks = append(blocks, format.RenderMessage(msg))
			continue
		}
		r, ok := m.cache[msg.ID]
		if !ok {
			r = format.RenderMessage(msg)
			m.cache[msg.ID] = r
		}
		blocks = append(blocks, r)
	}

	if loading {
		blocks = append(blocks, m.spinner.View()+" "+styles.SpinnerStyle.Render(m.thinking))
	}

	return strings.Join(blocks, "\n\n")
}
