// Conversation title generation.
//
// Titles are decorative: a failed model call degrades to a deterministic
// label derived from the subject and first message, never to an error.

package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studybuddy/tutorengine/llm"
)

// titleMaxLen caps stored titles in characters.
const titleMaxLen = 60

// TitleTokenBudget is the completion budget for title calls. Titles are at
// most five words; anything longer is truncated anyway.
const TitleTokenBudget uint32 = 20

// fallbackHeadLen is how much of the first message the fallback label keeps.
const fallbackHeadLen = 30

// Titler derives short conversation titles from the first student message.
type Titler struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewTitler creates a Titler. The provider should be configured with a small
// completion budget; titles are a few words.
func NewTitler(provider llm.Provider, logger *slog.Logger) *Titler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Titler{provider: provider, logger: logger}
}

// Title returns a title for a conversation opening with firstUserMessage.
// On any model failure it logs and returns the fallback label.
func (t *Titler) Title(ctx context.Context, subject, firstUserMessage string) string {
	raw, err := t.provider.Chat(ctx, []llm.ChatMessage{
		llm.UserMessage(titlePrompt(subject, firstUserMessage)),
	})
	if err != nil {
		t.logger.Warn("title generation failed", "subject", subject, "error", err)
		return FallbackTitle(subject, firstUserMessage)
	}

	title := cleanTitle(raw)
	if title == "" {
		return FallbackTitle(subject, firstUserMessage)
	}
	return title
}

func titlePrompt(subject, firstUserMessage string) string {
	return fmt.Sprintf(`Generate a brief, descriptive title (max 5 words) for a %s tutoring conversation that starts with: "%s". Only return the title, nothing else.`,
		subject, firstUserMessage)
}

// FallbackTitle builds the deterministic label used when title generation
// is unavailable or fails. Like model-derived titles it is capped at
// titleMaxLen characters, so a long subject shortens the message head.
func FallbackTitle(subject, firstUserMessage string) string {
	head := []rune(firstUserMessage)
	if len(head) > fallbackHeadLen {
		head = head[:fallbackHeadLen]
	}
	return capRunes(fmt.Sprintf("%s - %s...", subject, string(head)), titleMaxLen)
}

// cleanTitle normalizes model output: quotes stripped, whitespace trimmed,
// capped at titleMaxLen characters.
func cleanTitle(raw string) string {
	title := strings.NewReplacer(`'`, "", `"`, "").Replace(strings.TrimSpace(raw))
	return capRunes(title, titleMaxLen)
}

func capRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
