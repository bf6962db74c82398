package conversation

import (
	"context"
	"errors"

	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"
)

// ErrReplyDeferred is returned by a Handler that has accepted the request but
// will deliver the reply later through Conversation.Resolve or
// Conversation.ReceiveMessage. The conversation stays loading until then.
var ErrReplyDeferred = errors.New("conversation: reply deferred")

// Request is one outstanding send. ID is the token that ties a late reply to
// the request it answers.
type Request struct {
	ID      string
	Message message.Message
}

// Reply is what a host hands back for a Request. A zero Role means
// role.Assistant.
type Reply struct {
	Content string
	Role    role.Role
	Details any
}

// message converts the reply into a chat message.
func (r Reply) message() message.Message {
	rl := r.Role
	switch rl {
	case "":
		rl = role.Assistant
	case role.ToolCall:
		return message.NewToolCall(r.Content, r.Details)
	}
	m := message.New(rl, r.Content)
	m.Details = r.Details
	return m
}

// Handler is the host-provided backend of SendMessage. Send runs on its own
// goroutine; ctx is cancelled when the request is stopped or the
// conversation is closed.
type Handler interface {
	Send(ctx context.Context, req Request) (Reply, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (Reply, error)

// Send calls f(ctx, req).
func (f HandlerFunc) Send(ctx context.Context, req Request) (Reply, error) {
	return f(ctx, req)
}

// Resolver is the subset of Conversation a host needs to deliver replies
// from outside the widget tree.
type Resolver interface {
	Resolve(requestID string, r Reply) (bool, error)
	Fail(requestID string, err error) bool
	ReceiveMessage(content string, r ...role.Role) (message.Message, error)
	Stop()
}

// Handle is the read/invoke capability handed to the widget's descendant
// elements. It deliberately has no way to append arbitrary messages.
type Handle interface {
	Messages() []message.Message
	IsLoading() bool
	SendMessage(content string) (message.Message, error)
	Stop()
}
