package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/studybuddy/tutorengine/llm"
	"github.com/studybuddy/tutorengine/model"
)

// fakeProvider scripts streamed deltas and non-streaming replies.
type fakeProvider struct {
	deltas    []string // yielded one by one, then io.EOF or midErr
	midErr    error    // terminal stream error after the scripted deltas
	streamErr error    // error from StreamChat itself

	chatReply string
	chatErr   error

	streamCalls    int
	chatMessages   []llm.ChatMessage
	streamMessages []llm.ChatMessage
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

func (p *fakeProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	p.chatMessages = messages
	return p.chatReply, p.chatErr
}

func (p *fakeProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage) (*llm.Stream, error) {
	p.streamCalls++
	p.streamMessages = messages
	if p.streamErr != nil {
		return nil, p.streamErr
	}

	i := 0
	pull := func() (string, error) {
		if i < len(p.deltas) {
			delta := p.deltas[i]
			i++
			return delta, nil
		}
		if p.midErr != nil {
			return "", p.midErr
		}
		return "", io.EOF
	}
	return llm.NewStream(pull, nil), nil
}

type appendedTurn struct {
	conversationID string
	role           model.Role
	content        string
}

// fakeStore records calls; with failAll set every call errors, and
// failCreates fails that many CreateConversation calls before recovering.
type fakeStore struct {
	failAll     bool
	failCreates int

	created int
	turns   []appendedTurn
	titles  map[string]string
}

func (s *fakeStore) CreateConversation(ctx context.Context, studentID, subject string, grade int) (string, error) {
	if s.failAll {
		return "", errors.New("store down")
	}
	if s.failCreates > 0 {
		s.failCreates--
		return "", errors.New("store down")
	}
	s.created++
	return fmt.Sprintf("conv-%d", s.created), nil
}

func (s *fakeStore) AppendTurn(ctx context.Context, conversationID string, role model.Role, content string) error {
	if s.failAll {
		return errors.New("store down")
	}
	s.turns = append(s.turns, appendedTurn{conversationID, role, content})
	return nil
}

func (s *fakeStore) SetTitle(ctx context.Context, conversationID, title string) error {
	if s.failAll {
		return errors.New("store down")
	}
	if s.titles == nil {
		s.titles = map[string]string{}
	}
	s.titles[conversationID] = title
	return nil
}

func (s *fakeStore) GetConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	return model.Conversation{}, errors.New("not implemented")
}

func (s *fakeStore) ListConversations(ctx context.Context, studentID string) ([]model.Conversation, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) ListTurns(ctx context.Context, conversationID string) ([]model.Turn, error) {
	return nil, errors.New("not implemented")
}

func newTestSession(provider *fakeProvider, store *fakeStore, onChange func()) *Session {
	cfg := Config{
		Provider:  provider,
		Logger:    discardLogger(),
		Subject:   "Mathematics",
		Grade:     10,
		StudentID: "student-1",
		OnChange:  onChange,
	}
	if store != nil {
		cfg.Store = store
	}
	return NewSession(cfg)
}

func TestSessionOpensWithGreeting(t *testing.T) {
	session := newTestSession(&fakeProvider{}, &fakeStore{}, nil)

	turns := session.Transcript()
	if len(turns) != 1 {
		t.Fatalf("expected greeting-only transcript, got %d turns", len(turns))
	}
	if turns[0].Role != model.RoleTutor {
		t.Errorf("greeting should be a tutor turn, got %s", turns[0].Role)
	}
	if !strings.Contains(turns[0].Content, "Mathematics") {
		t.Errorf("greeting should name the subject: %q", turns[0].Content)
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state, got %s", session.State())
	}
	if session.ConversationID() != "" {
		t.Errorf("fresh session should have no conversation id, got %q", session.ConversationID())
	}
}

func TestSessionExchangeOrdering(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"What do ", "you notice?"}}
	store := &fakeStore{}
	session := newTestSession(provider, store, nil)
	ctx := context.Background()

	if err := session.Submit(ctx, "Help with algebra"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	provider.deltas = []string{"Good. ", "Keep going."}
	if err := session.Submit(ctx, "The powers of x?"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	turns := session.Transcript()
	if len(turns) != 5 {
		t.Fatalf("expected greeting + 2 exchanges = 5 turns, got %d", len(turns))
	}

	wantRoles := []model.Role{model.RoleTutor, model.RoleUser, model.RoleTutor, model.RoleUser, model.RoleTutor}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Errorf("turn %d: expected %s, got %s", i, want, turns[i].Role)
		}
	}
	if turns[2].Content != "What do you notice?" {
		t.Errorf("expected assembled reply, got %q", turns[2].Content)
	}
	if turns[4].Content != "Good. Keep going." {
		t.Errorf("expected assembled reply, got %q", turns[4].Content)
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state, got %s", session.State())
	}
}

func TestSessionPromptExcludesGreeting(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"ok"}}
	session := newTestSession(provider, &fakeStore{}, nil)

	if err := session.Submit(context.Background(), "Help"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for _, msg := range provider.streamMessages {
		if strings.Contains(msg.Content, "What would you like to learn about today?") {
			t.Errorf("greeting leaked into prompt: %q", msg.Content)
		}
	}
	if provider.streamMessages[0].Role != "system" {
		t.Errorf("expected system message first, got %q", provider.streamMessages[0].Role)
	}
}

func TestSessionStreamsIncrementally(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"One", " two", " three"}}
	var snapshots []string
	var session *Session
	session = newTestSession(provider, &fakeStore{}, func() {
		turns := session.Transcript()
		last := turns[len(turns)-1]
		if last.Role == model.RoleTutor && session.State() == StateStreaming {
			snapshots = append(snapshots, last.Content)
		}
	})

	if err := session.Submit(context.Background(), "Count for me"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	want := []string{"", "One", "One two", "One two three"}
	if len(snapshots) != len(want) {
		t.Fatalf("expected %d streaming snapshots, got %d: %q", len(want), len(snapshots), snapshots)
	}
	for i := range want {
		if snapshots[i] != want[i] {
			t.Errorf("snapshot %d: expected %q, got %q", i, want[i], snapshots[i])
		}
	}
}

func TestSessionValidationLeavesTranscriptUntouched(t *testing.T) {
	provider := &fakeProvider{}
	session := newTestSession(provider, &fakeStore{}, nil)

	err := session.Submit(context.Background(), "   ")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}

	if len(session.Transcript()) != 1 {
		t.Errorf("rejected input should not change the transcript")
	}
	if provider.streamCalls != 0 {
		t.Errorf("rejected input should not reach the provider")
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state, got %s", session.State())
	}
}

func TestSessionProviderFailureBecomesApology(t *testing.T) {
	provider := &fakeProvider{streamErr: &llm.ProviderError{Provider: "openrouter", StatusCode: 500, Body: "boom"}}
	store := &fakeStore{}
	session := newTestSession(provider, store, nil)

	if err := session.Submit(context.Background(), "Help with algebra"); err != nil {
		t.Fatalf("provider failure should not surface as an error, got %v", err)
	}

	turns := session.Transcript()
	if len(turns) != 3 {
		t.Fatalf("expected greeting + user + apology, got %d turns", len(turns))
	}
	if turns[1].Role != model.RoleUser || turns[1].Content != "Help with algebra" {
		t.Errorf("user turn should be kept: %+v", turns[1])
	}
	if turns[2].Content != "Sorry, I encountered an error. Please try again." {
		t.Errorf("expected apology turn, got %q", turns[2].Content)
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state after failure, got %s", session.State())
	}

	// The user turn was accepted before the failure, so it persists.
	if len(store.turns) != 1 || store.turns[0].role != model.RoleUser {
		t.Errorf("expected only the user turn persisted, got %+v", store.turns)
	}
}

func TestSessionMidStreamFailureBecomesApology(t *testing.T) {
	provider := &fakeProvider{
		deltas: []string{"Let's start"},
		midErr: errors.New("connection reset"),
	}
	session := newTestSession(provider, &fakeStore{}, nil)

	if err := session.Submit(context.Background(), "Help"); err != nil {
		t.Fatalf("mid-stream failure should not surface as an error, got %v", err)
	}

	turns := session.Transcript()
	last := turns[len(turns)-1]
	if last.Content != "Sorry, I encountered an error. Please try again." {
		t.Errorf("partial reply should be replaced by the apology, got %q", last.Content)
	}
}

func TestSessionConfigurationFailureBecomesApology(t *testing.T) {
	provider := &fakeProvider{streamErr: &llm.ConfigurationError{Provider: "openrouter", EnvVar: "OPENROUTER_API_KEY"}}
	session := newTestSession(provider, &fakeStore{}, nil)

	if err := session.Submit(context.Background(), "Help"); err != nil {
		t.Fatalf("configuration failure should not surface as an error, got %v", err)
	}
	turns := session.Transcript()
	if turns[len(turns)-1].Content != "Sorry, I encountered an error. Please try again." {
		t.Errorf("expected apology turn, got %q", turns[len(turns)-1].Content)
	}
}

func TestSessionStoreFailuresAreInvisible(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"All ", "good."}}
	session := newTestSession(provider, &fakeStore{failAll: true}, nil)

	if err := session.Submit(context.Background(), "Help with algebra"); err != nil {
		t.Fatalf("store failure should never surface, got %v", err)
	}

	turns := session.Transcript()
	if turns[len(turns)-1].Content != "All good." {
		t.Errorf("stream should be unaffected by store failures, got %q", turns[len(turns)-1].Content)
	}
	if session.ConversationID() != "" {
		t.Errorf("failed creation should leave the dialogue unpersisted, got id %q", session.ConversationID())
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state, got %s", session.State())
	}
}

func TestSessionRetriesConversationCreation(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"first reply"}}
	store := &fakeStore{failCreates: 1}
	session := newTestSession(provider, store, nil)
	ctx := context.Background()

	if err := session.Submit(ctx, "first message"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if session.ConversationID() != "" {
		t.Fatalf("failed creation should leave no conversation id, got %q", session.ConversationID())
	}

	// The store has recovered; the next submit creates the conversation.
	provider.deltas = []string{"second reply"}
	if err := session.Submit(ctx, "second message"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if store.created != 1 {
		t.Fatalf("expected one conversation after recovery, got %d", store.created)
	}
	if session.ConversationID() != "conv-1" {
		t.Errorf("expected conv-1 after recovery, got %q", session.ConversationID())
	}

	// Only the exchange after recovery is persisted; the first stays ephemeral.
	if len(store.turns) != 2 {
		t.Fatalf("expected the recovered exchange persisted, got %+v", store.turns)
	}
	if store.turns[0].role != model.RoleUser || store.turns[0].content != "second message" {
		t.Errorf("unexpected persisted user turn: %+v", store.turns[0])
	}
	if store.turns[1].role != model.RoleTutor || store.turns[1].content != "second reply" {
		t.Errorf("unexpected persisted tutor turn: %+v", store.turns[1])
	}
}

func TestSessionPersistsExchange(t *testing.T) {
	provider := &fakeProvider{
		deltas:    []string{"What do you know already?"},
		chatReply: "Algebra Basics",
	}
	store := &fakeStore{}
	session := NewSession(Config{
		Provider:  provider,
		Store:     store,
		Titler:    NewTitler(provider, discardLogger()),
		Logger:    discardLogger(),
		Subject:   "Mathematics",
		Grade:     10,
		StudentID: "student-1",
	})

	if err := session.Submit(context.Background(), "Help with algebra"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if store.created != 1 {
		t.Fatalf("expected one conversation created, got %d", store.created)
	}
	if session.ConversationID() != "conv-1" {
		t.Errorf("expected conv-1, got %q", session.ConversationID())
	}

	if len(store.turns) != 2 {
		t.Fatalf("expected user and tutor turns persisted, got %d", len(store.turns))
	}
	if store.turns[0].role != model.RoleUser || store.turns[0].content != "Help with algebra" {
		t.Errorf("unexpected persisted user turn: %+v", store.turns[0])
	}
	if store.turns[1].role != model.RoleTutor || store.turns[1].content != "What do you know already?" {
		t.Errorf("unexpected persisted tutor turn: %+v", store.turns[1])
	}

	if store.titles["conv-1"] != "Algebra Basics" {
		t.Errorf("expected title stored after first exchange, got %q", store.titles["conv-1"])
	}
}

func TestSessionTitlesOnlyOnce(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"reply"}, chatReply: "First Title"}
	store := &fakeStore{}
	session := NewSession(Config{
		Provider: provider,
		Store:    store,
		Titler:   NewTitler(provider, discardLogger()),
		Logger:   discardLogger(),
		Subject:  "Mathematics",
		Grade:    10,
	})
	ctx := context.Background()

	if err := session.Submit(ctx, "first message"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	provider.chatReply = "Second Title"
	if err := session.Submit(ctx, "second message"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if store.titles["conv-1"] != "First Title" {
		t.Errorf("title should be set once, from the first exchange, got %q", store.titles["conv-1"])
	}
}

func TestSessionResetReturnsToGreeting(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"reply"}}
	store := &fakeStore{}
	session := newTestSession(provider, store, nil)
	ctx := context.Background()

	if err := session.Submit(ctx, "Help"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	session.Reset()

	turns := session.Transcript()
	if len(turns) != 1 {
		t.Fatalf("expected greeting-only transcript after reset, got %d turns", len(turns))
	}
	if session.ConversationID() != "" {
		t.Errorf("reset should drop the conversation id, got %q", session.ConversationID())
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state, got %s", session.State())
	}

	// A new submission opens a new durable conversation.
	provider.deltas = []string{"fresh"}
	if err := session.Submit(ctx, "Again"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if store.created != 2 {
		t.Errorf("expected a second conversation, got %d created", store.created)
	}
	if session.ConversationID() != "conv-2" {
		t.Errorf("expected conv-2, got %q", session.ConversationID())
	}
}

func TestSessionResetIsIdempotent(t *testing.T) {
	session := newTestSession(&fakeProvider{}, &fakeStore{}, nil)

	session.Reset()
	session.Reset()

	if len(session.Transcript()) != 1 {
		t.Errorf("repeated resets should keep a single greeting turn")
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state, got %s", session.State())
	}
}

func TestSessionResetMidStreamDiscardsDeltas(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"one", "two", "three"}}
	var session *Session
	resetDone := false
	session = newTestSession(provider, &fakeStore{}, func() {
		// Abandon the stream from inside the render callback after the
		// first delta arrives.
		turns := session.Transcript()
		last := turns[len(turns)-1]
		if !resetDone && last.Role == model.RoleTutor && last.Content == "one" {
			resetDone = true
			session.Reset()
		}
	})

	if err := session.Submit(context.Background(), "Help"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	turns := session.Transcript()
	if len(turns) != 1 {
		t.Fatalf("expected greeting-only transcript after mid-stream reset, got %d turns", len(turns))
	}
	if strings.Contains(turns[0].Content, "two") {
		t.Errorf("stale deltas must be discarded, got %q", turns[0].Content)
	}
	if session.State() != StateIdle {
		t.Errorf("expected idle state, got %s", session.State())
	}
}

func TestSessionSubmitWhileStreamingIsNoOp(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"reply"}}
	var session *Session
	reentered := false
	session = newTestSession(provider, &fakeStore{}, func() {
		if !reentered && session.State() == StateStreaming {
			reentered = true
			if err := session.Submit(context.Background(), "sneaky second message"); err != nil {
				t.Errorf("re-entrant Submit should be a no-op, got %v", err)
			}
		}
	})

	if err := session.Submit(context.Background(), "first message"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if provider.streamCalls != 1 {
		t.Errorf("expected a single stream, got %d", provider.streamCalls)
	}
	turns := session.Transcript()
	if len(turns) != 3 {
		t.Errorf("expected greeting + one exchange, got %d turns", len(turns))
	}
}

func TestSessionWithoutStoreStaysEphemeral(t *testing.T) {
	provider := &fakeProvider{deltas: []string{"reply"}}
	session := newTestSession(provider, nil, nil)

	if err := session.Submit(context.Background(), "Help"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if session.ConversationID() != "" {
		t.Errorf("storeless session should stay ephemeral, got id %q", session.ConversationID())
	}
}
