// Conversation session state machine.
//
// A Session is owned by a single goroutine, typically a UI event loop. It
// drives one dialogue: validate the student's message, persist it, pull the
// tutor's reply delta by delta, and fire a change callback after every
// visible mutation so the owner can re-render.
//
// Persistence is best-effort throughout. Store failures are logged and the
// live dialogue continues unpersisted; no storage error ever reaches the
// student.

package tutor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/studybuddy/tutorengine/llm"
	"github.com/studybuddy/tutorengine/model"
	"github.com/studybuddy/tutorengine/storage"
)

// State is the session's position in its lifecycle.
type State int

const (
	// StateIdle: no submission in flight, ready for input.
	StateIdle State = iota
	// StateAwaitingConversation: first submission accepted, durable
	// conversation being created.
	StateAwaitingConversation
	// StateStreaming: tutor reply being pulled delta by delta.
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConversation:
		return "awaiting_conversation"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Config collects Session dependencies.
type Config struct {
	Provider  llm.Provider
	Store     storage.TranscriptStore // nil disables persistence
	Titler    *Titler                 // nil disables title generation
	Logger    *slog.Logger
	Subject   string
	Grade     int
	StudentID string

	// OnChange is invoked after every visible transcript or state change,
	// including once per streamed delta. It may call Reset; the in-flight
	// stream is then abandoned cleanly.
	OnChange func()
}

// Session drives one tutoring dialogue. Not safe for concurrent use.
type Session struct {
	provider  llm.Provider
	store     storage.TranscriptStore
	titler    *Titler
	logger    *slog.Logger
	subject   string
	grade     int
	studentID string
	onChange  func()

	state          State
	turns          []model.Turn
	conversationID string
	titled         bool

	// generation increments on every Reset. A submission captures the value
	// on entry and abandons its stream once they diverge.
	generation uint64
}

// NewSession creates a session opening with the subject greeting.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		provider:  cfg.Provider,
		store:     cfg.Store,
		titler:    cfg.Titler,
		logger:    logger,
		subject:   cfg.Subject,
		grade:     cfg.Grade,
		studentID: cfg.StudentID,
		onChange:  cfg.OnChange,
	}
	s.seed()
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// ConversationID returns the durable conversation id, or "" while the
// dialogue is unpersisted.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// Transcript returns a copy of the visible dialogue, greeting first.
func (s *Session) Transcript() []model.Turn {
	out := make([]model.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Reset abandons any in-flight stream and returns the session to a fresh
// greeting-only dialogue. The previous conversation's durable id is dropped;
// its persisted rows remain. Legal from any state, including from within
// the OnChange callback.
func (s *Session) Reset() {
	s.generation++
	s.state = StateIdle
	s.conversationID = ""
	s.titled = false
	s.seed()
	s.notify()
}

func (s *Session) seed() {
	greeting := Greeting(s.subject)
	s.turns = []model.Turn{{
		Role:      model.RoleTutor,
		Content:   greeting,
		Tokens:    model.EstimateTokens(greeting),
		Timestamp: time.Now(),
	}}
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Submit runs one full exchange: validate, persist the student turn, stream
// the tutor reply, persist it, and title the conversation after the first
// completed exchange. It blocks until the exchange settles.
//
// A Submit while another is in flight is a no-op. Validation failures are
// returned as *ValidationError with the transcript untouched. Provider and
// stream failures do not return an error; they surface in the transcript as
// an apology turn.
func (s *Session) Submit(ctx context.Context, text string) error {
	if s.state != StateIdle {
		return nil
	}

	if err := ValidateMessage(text); err != nil {
		return err
	}
	content := strings.TrimSpace(text)

	gen := s.generation

	// History for the prompt: everything after the greeting, before this turn.
	history := make([]model.Turn, len(s.turns)-1)
	copy(history, s.turns[1:])

	// A durable conversation is created lazily: on the first submit, or again
	// on a later one if an earlier create failed and the store has recovered.
	needsConversation := s.store != nil && s.conversationID == ""
	if needsConversation {
		s.state = StateAwaitingConversation
	} else {
		s.state = StateStreaming
	}

	s.turns = append(s.turns, model.Turn{
		Role:      model.RoleUser,
		Content:   content,
		Tokens:    model.EstimateTokens(content),
		Timestamp: time.Now(),
	})
	s.notify()
	if s.generation != gen {
		return nil
	}

	if needsConversation {
		id, err := s.store.CreateConversation(ctx, s.studentID, s.subject, s.grade)
		if err != nil {
			s.logger.Error("failed to create conversation",
				"student_id", s.studentID, "subject", s.subject, "error", err)
		} else {
			s.conversationID = id
		}
	}

	s.persistTurn(ctx, model.RoleUser, content)

	s.state = StateStreaming
	// Placeholder tutor turn, filled in as deltas arrive.
	s.turns = append(s.turns, model.Turn{
		Role:      model.RoleTutor,
		Timestamp: time.Now(),
	})
	s.notify()
	if s.generation != gen {
		return nil
	}

	stream, err := s.provider.StreamChat(ctx, BuildMessages(s.subject, s.grade, history, content))
	if err != nil {
		s.failStream(gen, err)
		return nil
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		delta, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.failStream(gen, err)
			return nil
		}
		if s.generation != gen {
			return nil
		}

		reply.WriteString(delta)
		last := len(s.turns) - 1
		s.turns[last].Content = reply.String()
		s.turns[last].Tokens = model.EstimateTokens(reply.String())
		s.notify()
		if s.generation != gen {
			return nil
		}
	}

	s.state = StateIdle
	s.persistTurn(ctx, model.RoleTutor, reply.String())
	s.maybeTitle(ctx)
	s.notify()
	return nil
}

// failStream replaces the in-progress tutor turn with the apology message.
// The student's turn stays; it was accepted and, when possible, persisted.
func (s *Session) failStream(gen uint64, err error) {
	if s.generation != gen {
		return
	}
	s.logger.Error("tutor stream failed", "conversation_id", s.conversationID, "error", err)
	last := len(s.turns) - 1
	s.turns[last] = model.Turn{
		Role:      model.RoleTutor,
		Content:   apologyMessage,
		Tokens:    model.EstimateTokens(apologyMessage),
		Timestamp: time.Now(),
	}
	s.state = StateIdle
	s.notify()
}

func (s *Session) persistTurn(ctx context.Context, role model.Role, content string) {
	if s.store == nil || s.conversationID == "" {
		return
	}
	if err := s.store.AppendTurn(ctx, s.conversationID, role, content); err != nil {
		s.logger.Warn("failed to persist turn",
			"conversation_id", s.conversationID, "role", role.String(), "error", err)
	}
}

// maybeTitle titles the conversation once, after its first completed
// exchange, from the student's opening message. Best-effort like all
// persistence.
func (s *Session) maybeTitle(ctx context.Context) {
	if s.titled || s.conversationID == "" || s.titler == nil || s.store == nil {
		return
	}
	s.titled = true

	var opening string
	for _, turn := range s.turns {
		if turn.Role == model.RoleUser {
			opening = turn.Content
			break
		}
	}

	title := s.titler.Title(ctx, s.subject, opening)
	if err := s.store.SetTitle(ctx, s.conversationID, title); err != nil {
		s.logger.Warn("failed to store title",
			"conversation_id", s.conversationID, "error", err)
	}
}
