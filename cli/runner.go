// Command execution for CLI commands.
//
// Information Hiding:
// - Provider and store setup hidden
// - Incremental rendering of streamed replies hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/studybuddy/tutorengine/config"
	"github.com/studybuddy/tutorengine/llm"
	"github.com/studybuddy/tutorengine/model"
	"github.com/studybuddy/tutorengine/storage"
	"github.com/studybuddy/tutorengine/tutor"
)

// Options holds CLI execution options.
type Options struct {
	Provider  string
	Subject   string
	Grade     int
	StudentID string
	DBPath    string
}

// chatRenderer turns session change notifications into terminal output.
// It tracks what has already been printed of the newest tutor turn so each
// notification only emits the fresh suffix.
type chatRenderer struct {
	session   *tutor.Session
	turnCount int
	lastSeen  string
}

func (r *chatRenderer) onChange() {
	turns := r.session.Transcript()
	if len(turns) == 0 {
		return
	}
	if len(turns) != r.turnCount {
		r.turnCount = len(turns)
		r.lastSeen = ""
	}

	last := turns[len(turns)-1]
	if last.Role != model.RoleTutor {
		return
	}

	if strings.HasPrefix(last.Content, r.lastSeen) {
		fmt.Print(last.Content[len(r.lastSeen):])
	} else {
		// Replacement rather than growth (apology turn): reprint in full.
		fmt.Printf("\n%s", last.Content)
	}
	r.lastSeen = last.Content
}

func buildProviders(settings config.Settings) (llm.Provider, llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, nil, err
	}

	chat := llm.NewProviderBuilder(providerType).
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(settings.LLM.Temperature).
		TopP(settings.LLM.TopP).
		FromEnv()

	// Titles are a few words; give the title path a tight budget.
	title := llm.NewProviderBuilder(providerType).
		Model(settings.LLM.Model).
		MaxTokens(tutor.TitleTokenBudget).
		Temperature(settings.LLM.Temperature).
		FromEnv()

	return chat, title, nil
}

// Chat starts an interactive tutoring session.
func Chat(ctx context.Context, opts Options) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}

	provider, titleProvider, err := buildProviders(settings)
	if err != nil {
		return err
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = settings.Store.Path
	}
	store, err := storage.OpenSqlite(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	renderer := &chatRenderer{}
	session := tutor.NewSession(tutor.Config{
		Provider:  provider,
		Store:     store,
		Titler:    tutor.NewTitler(titleProvider, logger),
		Logger:    logger,
		Subject:   opts.Subject,
		Grade:     opts.Grade,
		StudentID: opts.StudentID,
		OnChange:  renderer.onChange,
	})
	renderer.session = session
	renderer.turnCount = 1

	fmt.Printf("%s\n\n", session.Transcript()[0].Content)
	fmt.Printf("Type 'new' for a fresh conversation, 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if input == "new" {
			session.Reset()
			fmt.Printf("\n\n")
			continue
		}

		if err := session.Submit(ctx, input); err != nil {
			var validationErr *tutor.ValidationError
			if errors.As(err, &validationErr) {
				fmt.Fprintf(os.Stderr, "%s\n", validationErr)
				continue
			}
			return err
		}
		fmt.Printf("\n\n")
	}
	return scanner.Err()
}

// Conversations lists a student's stored conversations, most recent first.
func Conversations(ctx context.Context, opts Options) error {
	store, err := storage.OpenSqlite(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	conversations, err := store.ListConversations(ctx, opts.StudentID)
	if err != nil {
		return err
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	for _, conv := range conversations {
		title := conv.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s (grade %d)  %s  %d messages, %d tokens\n",
			conv.ID, conv.Subject, conv.Grade, title, conv.MessageCount, conv.TokenCount)
	}
	return nil
}

// History prints the stored turns of one conversation.
func History(ctx context.Context, opts Options, conversationID string) error {
	store, err := storage.OpenSqlite(opts.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	conv, err := store.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	title := conv.Title
	if title == "" {
		title = "(untitled)"
	}
	fmt.Printf("%s - %s (grade %d)\n\n", title, conv.Subject, conv.Grade)

	turns, err := store.ListTurns(ctx, conversationID)
	if err != nil {
		return err
	}
	for _, turn := range turns {
		fmt.Printf("[%s] %s\n\n", turn.Role, turn.Content)
	}
	return nil
}
