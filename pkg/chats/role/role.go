// Package role defines the sender roles a chat message may carry.
package role

import "fmt"

// Role represents the sender of a message in a conversation.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	ToolCall  Role = "tool_call"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case User, Assistant, ToolCall:
		return true
	}
	return false
}

// String returns the underlying string value of the role.
func (r Role) String() string {
	return string(r)
}

// Parse converts s into a Role, rejecting anything outside the enumeration.
func Parse(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("role: unknown role %q", s)
	}
	return r, nil
}
