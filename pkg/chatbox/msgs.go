package chatbox

import (
	"time"

	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// MessageSentMsg is emitted after the user sends a message. RequestID is the
// token a deferred reply must be resolved with.
type MessageSentMsg struct {
	RequestID string
	Message   message.Message
}

// MessageReceivedMsg is emitted after a reply or pushed message is appended.
// Elapsed is the round-trip time when the message ended a request.
type MessageReceivedMsg struct {
	RequestID string
	Message   message.Message
	Elapsed   time.Duration
}

// SendFailedMsg is emitted when the handler fails a request.
type SendFailedMsg struct {
	RequestID string
	Err       error
}

// StoppedMsg is emitted when an outstanding request is stopped.
type StoppedMsg struct {
	RequestID string
}

// eventMsg carries a conversation event onto the bubbletea loop. conv lets
// several widgets share one program without picking up each other's events.
type eventMsg struct {
	conv  *conversation.Conversation
	event conversation.Event
}
