// Package message defines the Message type shown in the chat widget.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/germanamz/chatbox/pkg/chats/role"
)

// ErrInvalidRole is returned when a message carries a role outside the
// closed enumeration in package role.
var ErrInvalidRole = errors.New("message: invalid role")

// Message represents a single chat entry.
// It is a value type that copies cheaply; Details is shared, not cloned.
type Message struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Role      role.Role `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Details   any       `json:"details,omitempty" yaml:"details,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero" yaml:"timestamp,omitempty"`
}

// New creates a message with the given role and text content.
func New(r role.Role, content string) Message {
	return Message{Role: r, Content: content}
}

// NewToolCall creates a tool_call message carrying structured details.
func NewToolCall(content string, details any) Message {
	return Message{Role: role.ToolCall, Content: content, Details: details}
}

// Validate reports whether the message may be appended to a conversation.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidRole, m.Role)
	}
	return nil
}

// HasDetails reports whether the message carries a structured payload.
func (m Message) HasDetails() bool {
	return m.Details != nil
}

// Stamp fills in ID and Timestamp if they are empty and returns the result.
func (m Message) Stamp(id string, now time.Time) Message {
	if m.ID == "" {
		m.ID = id
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	return m
}
