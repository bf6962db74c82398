package chatbox

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/germanamz/chatbox/pkg/conversation"
)

const eventBuffer = 64

// waitForEvent blocks on the subscription and delivers the next event as a
// message. Update re-arms it after every event; it returns nil once the
// subscription is closed.
func waitForEvent(conv *conversation.Conversation, sub *conversation.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.C
		if !ok {
			return nil
		}
		return eventMsg{conv: conv, event: ev}
	}
}
