// Package chats provides the data model behind the chat widget.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/chatbox/pkg/chats/role]: message roles (user, assistant, tool_call)
//   - [github.com/germanamz/chatbox/pkg/chats/message]: a single chat entry with content and optional details
//   - [github.com/germanamz/chatbox/pkg/chats/chat]: append-only, watchable message container
//
// No UI or host code is included; chats is a foundation layer that the
// conversation state and the widget build on.
package chats
