// Package chatbox is the chat widget: a bubbletea model composing a header,
// a scrollable message list, an input box and a footer around one
// conversation.
//
// A host embeds the widget by forwarding messages to Update and rendering
// View. Replies come back either from the Options.Handler or from the host
// calling ReceiveMessage or Resolve, from any goroutine.
package chatbox

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/germanamz/chatbox/pkg/chatbox/internal/footer"
	"github.com/germanamz/chatbox/pkg/chatbox/internal/format"
	"github.com/germanamz/chatbox/pkg/chatbox/internal/header"
	"github.com/germanamz/chatbox/pkg/chatbox/internal/input"
	"github.com/germanamz/chatbox/pkg/chatbox/internal/messages"
	"github.com/germanamz/chatbox/pkg/chatbox/internal/styles"
	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// TagName is the name the widget is registered under.
const TagName = "AIChatbox"

// DefaultTitle is used when Options.Title is empty.
const DefaultTitle = "AI Chat"

// Theme overrides the widget colours.
type Theme = styles.Theme

// Options configures a widget instance.
type Options struct {
	Title       string
	Placeholder string
	FooterText  string
	Initial     []message.Message
	Handler     conversation.Handler
	Logger      zerolog.Logger
	// Theme is applied process-wide when non-zero.
	Theme Theme
}

// Model is the root container. It owns exactly one conversation.
type Model struct {
	conv *conversation.Conversation
	sub  *conversation.Subscription
	log  zerolog.Logger

	header   header.Model
	messages messages.Model
	input    input.Model
	footer   footer.Model

	sentAt        time.Time
	width, height int
}

// New creates a widget with its own conversation seeded from opts.Initial.
func New(opts Options) (*Model, error) {
	if opts.Theme != (Theme{}) {
		styles.Apply(opts.Theme)
	}
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	conv, err := conversation.New(opts.Handler,
		conversation.WithInitialMessages(opts.Initial...),
		conversation.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("chatbox: %w", err)
	}

	m := &Model{
		conv:     conv,
		sub:      conv.Events().Subscribe(eventBuffer),
		log:      opts.Logger,
		header:   header.New(conv, title),
		messages: messages.New(conv),
		input:    input.New(conv, opts.Placeholder),
		footer:   footer.New(conv, opts.FooterText),
		width:    80,
		height:   24,
	}
	m.layout()

	return m, nil
}

// SetDarkBackground selects the markdown palette. Hosts usually pass
// lipgloss.HasDarkBackground() before starting the program.
func SetDarkBackground(dark bool) {
	format.SetDarkBG(dark)
}

// Conversation returns the widget's conversation.
func (m *Model) Conversation() *conversation.Conversation {
	return m.conv
}

// ReceiveMessage appends a message pushed by the host. See
// conversation.Conversation.ReceiveMessage.
func (m *Model) ReceiveMessage(content string, r ...role.Role) (message.Message, error) {
	return m.conv.ReceiveMessage(content, r...)
}

// Resolve delivers a deferred reply for requestID.
func (m *Model) Resolve(requestID string, r conversation.Reply) (bool, error) {
	return m.conv.Resolve(requestID, r)
}

// Fail ends the request for requestID as failed without appending a message.
func (m *Model) Fail(requestID string, err error) bool {
	return m.conv.Fail(requestID, err)
}

// Stop cancels the outstanding request, if any.
func (m *Model) Stop() {
	m.conv.Stop()
}

// Close detaches the widget from its conversation and closes it.
func (m *Model) Close() error {
	m.conv.Events().Unsubscribe(m.sub)
	return m.conv.Close()
}

// Init starts the event bridge and focuses the input.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.conv, m.sub), m.input.Focus())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		format.InitMarkdownRenderer(max(msg.Width-4, 20))

	case eventMsg:
		if msg.conv != m.conv {
			return m, nil
		}
		cmds = append(cmds, m.handleEvent(msg.event), waitForEvent(m.conv, m.sub))

	case input.SendRejectedMsg:
		m.footer.SetError(msg.Err)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.messages, cmd = m.messages.Update(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.messages, cmd = m.messages.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc:
			m.conv.Stop()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.messages, cmd = m.messages.Update(msg)
			cmds = append(cmds, cmd)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.layout()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(ev conversation.Event) tea.Cmd {
	switch ev.Kind {
	case conversation.EventMessageSent:
		m.sentAt = ev.Timestamp
		m.footer.ClearError()
		m.log.Debug().Str("request_id", ev.RequestID).Msg("message sent")
		sent := MessageSentMsg{RequestID: ev.RequestID, Message: ev.Message}
		return tea.Batch(m.messages.StartLoading(), emit(sent))

	case conversation.EventMessageReceived:
		received := MessageReceivedMsg{RequestID: ev.RequestID, Message: ev.Message}
		if ev.RequestID != "" && !ev.Loading && !m.sentAt.IsZero() {
			received.Elapsed = ev.Timestamp.Sub(m.sentAt)
			m.footer.SetDuration(received.Elapsed)
			m.sentAt = time.Time{}
		}
		return emit(received)

	case conversation.EventSendFailed:
		m.sentAt = time.Time{}
		m.footer.SetError(ev.Err)
		m.log.Warn().Err(ev.Err).Str("request_id", ev.RequestID).Msg("send failed")
		return emit(SendFailedMsg{RequestID: ev.RequestID, Err: ev.Err})

	case conversation.EventStopped:
		m.sentAt = time.Time{}
		return emit(StoppedMsg{RequestID: ev.RequestID})
	}
	return nil
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// layout distributes the height: the list takes whatever the header, input
// and footer leave.
func (m *Model) layout() {
	m.header.SetWidth(m.width)
	m.input.SetWidth(m.width)
	m.footer.SetWidth(m.width)

	rest := m.header.Height() + m.input.Height() + lipgloss.Height(m.footer.View())
	m.messages.SetSize(m.width, max(m.height-rest, 1))
}

// View implements tea.Model.
func (m *Model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		m.messages.View(),
		m.input.View(),
		m.footer.View(),
	)
}

var _ conversation.Resolver = (*Model)(nil)
