// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Role identifies who authored a turn. It is a closed set: every turn
// belongs to either the student or the tutor.
type Role int

const (
	// RoleUser is a turn typed by the student.
	RoleUser Role = iota
	// RoleTutor is a turn produced by the tutor model.
	RoleTutor
)

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleTutor:
		return "tutor"
	default:
		return "unknown"
	}
}

// MessageRole returns the role name used on the wire by chat APIs and
// in durable storage ("user" or "assistant").
func (r Role) MessageRole() string {
	if r == RoleTutor {
		return "assistant"
	}
	return "user"
}

// RoleFromMessage parses a wire-format role name back into a Role.
func RoleFromMessage(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleTutor, nil
	default:
		return 0, fmt.Errorf("unknown message role: %q", s)
	}
}

// Turn is a single entry in a tutoring dialogue.
type Turn struct {
	Role      Role
	Content   string
	Tokens    int
	Timestamp time.Time
}

// Conversation is the durable record of a tutoring dialogue.
// Mirrors one row of the chat_conversations table.
type Conversation struct {
	ID           string
	StudentID    string
	Subject      string
	Grade        int
	Title        string
	MessageCount int
	TokenCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EstimateTokens returns a rough token count for text, at ~4 characters
// per token, rounded up. Characters, not bytes, so multi-byte content is
// not overcounted.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
