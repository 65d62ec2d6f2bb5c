package tutor

import (
	"strings"
	"testing"

	"github.com/studybuddy/tutorengine/model"
)

func TestBuildMessagesShape(t *testing.T) {
	history := []model.Turn{
		{Role: model.RoleUser, Content: "What is a fraction?"},
		{Role: model.RoleTutor, Content: "If you cut a loaf of bread into 4 equal parts, what is one part?"},
	}

	messages := BuildMessages("Mathematics", 8, history, "A quarter?")

	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}

	if messages[0].Role != "system" {
		t.Errorf("expected system message first, got role %q", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "Socratic questioning") {
		t.Error("system message should carry the tutoring contract")
	}

	if messages[1].Role != "user" || messages[1].Content != "What is a fraction?" {
		t.Errorf("unexpected first history message: %+v", messages[1])
	}
	if messages[2].Role != "assistant" {
		t.Errorf("tutor history turns should map to assistant, got %q", messages[2].Role)
	}

	last := messages[len(messages)-1]
	if last.Role != "user" {
		t.Errorf("expected final user message, got role %q", last.Role)
	}
	want := "[Subject: Mathematics, Grade: 8]\n\nA quarter?"
	if last.Content != want {
		t.Errorf("expected %q, got %q", want, last.Content)
	}
}

func TestBuildMessagesEmptyHistory(t *testing.T) {
	messages := BuildMessages("Life Sciences", 12, nil, "Explain osmosis")

	if len(messages) != 2 {
		t.Fatalf("expected system + user, got %d messages", len(messages))
	}
	if messages[1].Content != "[Subject: Life Sciences, Grade: 12]\n\nExplain osmosis" {
		t.Errorf("unexpected user message: %q", messages[1].Content)
	}
}

func TestGreetingNamesSubject(t *testing.T) {
	greeting := Greeting("Accounting")
	if !strings.Contains(greeting, "Accounting") {
		t.Errorf("greeting should name the subject: %q", greeting)
	}
	if !strings.HasPrefix(greeting, "Hi! I'm your StudyBuddy tutor") {
		t.Errorf("unexpected greeting: %q", greeting)
	}
}
