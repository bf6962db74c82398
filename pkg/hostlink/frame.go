package hostlink

import (
	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"
	"github.com/germanamz/chatbox/pkg/conversation"
)

// FrameType identifies a frame on the link.
type FrameType string

// Frames sent to the host.
const (
	FrameMessageSent     FrameType = "message_sent"
	FrameMessageReceived FrameType = "message_received"
	FrameStopped         FrameType = "stopped"
	FrameError           FrameType = "error"
)

// Frames accepted from the host.
const (
	FrameReply   FrameType = "reply"
	FrameReceive FrameType = "receive"
	FrameStop    FrameType = "stop"
	FrameFail    FrameType = "fail"
)

// HostError is a failure reported by the host in a fail frame.
type HostError struct {
	Message string
}

func (e *HostError) Error() string {
	return "hostlink: host: " + e.Message
}

// Frame is one JSON message on the link. Which fields are set depends on
// Type.
type Frame struct {
	Type      FrameType        `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Message   *message.Message `json:"message,omitempty"`
	Content   string           `json:"content,omitempty"`
	Role      role.Role        `json:"role,omitempty"`
	Details   any              `json:"details,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (f Frame) reply() conversation.Reply {
	return conversation.Reply{Content: f.Content, Role: f.Role, Details: f.Details}
}
