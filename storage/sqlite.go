// SQLite-backed transcript storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/studybuddy/tutorengine/model"
)

// SqliteStore implements TranscriptStore using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS chat_conversations (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			user_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			grade INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			message_count INTEGER NOT NULL DEFAULT 0,
			token_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_user
		ON chat_conversations(user_id, updated_at DESC);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			tokens INTEGER NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES chat_conversations(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON chat_messages(conversation_id, id);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateConversation inserts a new conversation row and returns its id.
func (s *SqliteStore) CreateConversation(ctx context.Context, studentID, subject string, grade int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_conversations (id, user_id, subject, grade) VALUES (?, ?, ?, ?)",
		id, studentID, subject, grade)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// AppendTurn appends one turn and bumps the conversation counters.
func (s *SqliteStore) AppendTurn(ctx context.Context, conversationID string, role model.Role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tokens := model.EstimateTokens(content)

	_, err = tx.ExecContext(ctx,
		"INSERT INTO chat_messages (conversation_id, role, content, tokens) VALUES (?, ?, ?, ?)",
		conversationID, role.MessageRole(), content, tokens)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE chat_conversations
		 SET message_count = message_count + 1,
		     token_count = token_count + ?,
		     updated_at = datetime('now')
		 WHERE id = ?`,
		tokens, conversationID)
	if err != nil {
		return fmt.Errorf("failed to update conversation counters: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check conversation update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetTitle sets the conversation title.
func (s *SqliteStore) SetTitle(ctx context.Context, conversationID, title string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE chat_conversations SET title = ?, updated_at = datetime('now') WHERE id = ?",
		title, conversationID)
	if err != nil {
		return fmt.Errorf("failed to set title: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check title update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("conversation not found: %s", conversationID)
	}
	return nil
}

// GetConversation returns a single conversation record.
func (s *SqliteStore) GetConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, subject, grade, title, message_count, token_count, created_at, updated_at
		 FROM chat_conversations WHERE id = ?`,
		conversationID)

	conv, err := scanConversation(row)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns a student's conversations, most recent first.
func (s *SqliteStore) ListConversations(ctx context.Context, studentID string) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, subject, grade, title, message_count, token_count, created_at, updated_at
		 FROM chat_conversations WHERE user_id = ? ORDER BY updated_at DESC, id`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	conversations := []model.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return conversations, nil
}

// ListTurns returns a conversation's turns in insertion order.
func (s *SqliteStore) ListTurns(ctx context.Context, conversationID string) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, tokens, created_at FROM chat_messages WHERE conversation_id = ? ORDER BY id ASC",
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	turns := []model.Turn{}
	for rows.Next() {
		var roleName, createdAt string
		var turn model.Turn
		if err := rows.Scan(&roleName, &turn.Content, &turn.Tokens, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		role, err := model.RoleFromMessage(roleName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		turn.Role = role
		turn.Timestamp = parseSqliteTime(createdAt)
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return turns, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (model.Conversation, error) {
	var conv model.Conversation
	var createdAt, updatedAt string
	err := row.Scan(&conv.ID, &conv.StudentID, &conv.Subject, &conv.Grade, &conv.Title,
		&conv.MessageCount, &conv.TokenCount, &createdAt, &updatedAt)
	if err != nil {
		return model.Conversation{}, err
	}
	conv.CreatedAt = parseSqliteTime(createdAt)
	conv.UpdatedAt = parseSqliteTime(updatedAt)
	return conv, nil
}

// parseSqliteTime parses datetime('now') values. A zero time is returned for
// anything unparseable rather than failing a read.
func parseSqliteTime(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Verify SqliteStore implements TranscriptStore
var _ TranscriptStore = (*SqliteStore)(nil)
