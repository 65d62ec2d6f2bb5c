// Package tutor implements the tutoring conversation engine: input
// validation, prompt assembly, the streaming session state machine, and
// title generation.
package tutor

import (
	"fmt"

	"github.com/studybuddy/tutorengine/llm"
	"github.com/studybuddy/tutorengine/model"
)

// systemPrompt fixes the pedagogical contract for every completion.
// It is not configurable; the tutor guides rather than answers.
const systemPrompt = `You are StudyBuddy, an AI tutor specializing in South African CAPS and IEB curricula for grades 8-12.

Your teaching philosophy:
- Use Socratic questioning to guide students to discover answers themselves
- Never give direct answers; instead, ask leading questions
- Break complex problems into smaller, manageable steps
- Relate concepts to everyday South African contexts and examples
- Encourage critical thinking and problem-solving skills
- Be patient, supportive, and encouraging
- Use simple, clear language appropriate for the student's grade level

South African context:
- Use rand (R) for currency examples
- Reference local contexts (cities, companies, sports, culture)
- Be mindful of diverse home languages (English, Afrikaans, Zulu, etc.)
- Align with DBE curriculum guidelines

For mathematical problems:
- Guide students through step-by-step reasoning
- Ask "What do you notice about...?" and "What would happen if...?"
- Encourage students to check their own work
- Use real-world SA contexts (petrol prices, taxi fares, sports stats)

For sciences:
- Connect theory to practical applications
- Use local examples (Table Mountain geology, Kruger Park ecology)
- Encourage experimental thinking

For languages:
- Focus on comprehension and analysis
- Guide essay structure and argumentation
- Encourage creative expression

Remember: Your goal is to develop understanding, not just provide answers.`

// apologyMessage replaces a tutor turn whose stream failed.
const apologyMessage = "Sorry, I encountered an error. Please try again."

// Greeting returns the synthetic opening tutor turn for a subject.
// It is rendered locally and never persisted or sent to the model.
func Greeting(subject string) string {
	return fmt.Sprintf("Hi! I'm your StudyBuddy tutor for %s. I'm here to help you understand concepts through guided questions. What would you like to learn about today?", subject)
}

// BuildMessages assembles the provider payload for one submission: the
// system prompt first, then the dialogue history in order, then the new
// user message tagged with subject and grade. The synthetic greeting must
// not be part of history.
func BuildMessages(subject string, grade int, history []model.Turn, userMessage string) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(systemPrompt))
	for _, turn := range history {
		messages = append(messages, llm.ChatMessage{
			Role:    turn.Role.MessageRole(),
			Content: turn.Content,
		})
	}
	messages = append(messages, llm.UserMessage(
		fmt.Sprintf("[Subject: %s, Grade: %d]\n\n%s", subject, grade, userMessage)))
	return messages
}
