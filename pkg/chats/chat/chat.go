// Package chat provides the append-only message container behind a
// conversation.
package chat

import (
	"sync"

	"github.com/germanamz/chatbox/pkg/chats/message"
)

// Chat is an append-only conversation container. The zero value is ready to
// use. Chat is safe for concurrent use.
type Chat struct {
	mu       sync.RWMutex
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages. It returns an
// error if any of them fails validation.
func New(msgs ...message.Message) (*Chat, error) {
	c := &Chat{}
	if err := c.Append(msgs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Append validates and adds one or more messages to the conversation.
// Either all messages are appended or, if one is invalid, none are.
func (c *Chat) Append(msgs ...message.Message) error {
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msgs...)
	return nil
}

// Len returns the number of messages in the conversation.
func (c *Chat) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.messages)
}

// Messages returns a copy of all messages in the conversation.
func (c *Chat) Messages() []message.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp := make([]message.Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}
