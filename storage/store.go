// Package storage provides SQLite transcript storage.
package storage

import (
	"context"

	"github.com/studybuddy/tutorengine/model"
)

// TranscriptStore persists tutoring conversations and their turns.
// The session layer treats every call as best-effort: failures are logged
// and the live dialogue continues unpersisted.
type TranscriptStore interface {
	// CreateConversation inserts a new conversation row and returns its id.
	CreateConversation(ctx context.Context, studentID, subject string, grade int) (string, error)

	// AppendTurn appends one turn to a conversation and updates the
	// conversation's message and token counters in the same transaction.
	AppendTurn(ctx context.Context, conversationID string, role model.Role, content string) error

	// SetTitle sets the conversation title.
	SetTitle(ctx context.Context, conversationID, title string) error

	// GetConversation returns a single conversation record.
	GetConversation(ctx context.Context, conversationID string) (model.Conversation, error)

	// ListConversations returns a student's conversations, most recent first.
	ListConversations(ctx context.Context, studentID string) ([]model.Conversation, error)

	// ListTurns returns a conversation's turns in insertion order.
	ListTurns(ctx context.Context, conversationID string) ([]model.Turn, error)
}
