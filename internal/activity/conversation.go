package activity

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/manas/internal/domain"
)

var conversationScript = []stepTemplate{
	{Title: "Opening", Instruction: "Welcome. Share whatever is on your mind today. Start wherever feels easiest.", Kind: KindQuestion},
	{Title: "Exploring", Instruction: "Tell me a little more about that. What feelings come up when you think about it?", Kind: KindQuestion},
	{Title: "Understanding", Instruction: "Let's notice what matters most to you here. What would feel like a small step forward?", Kind: KindQuestion},
	{Title: "Connecting", Instruction: "Think about your loved ones or someone you trust. How might they support you with this?", Kind: KindQuestion},
	{Title: "Closing", Instruction: "Thank you for sharing so openly. Name one thing you will carry with you from this conversation.", Kind: KindMessage},
}

var familyDialogueScript = []stepTemplate{
	{Title: "Setting the scene", Instruction: "Welcome. Think of a recent conversation with your loved ones that felt difficult.", Kind: KindQuestion},
	{Title: "Your side", Instruction: "Describe what you wanted to say. What did you need from them in that moment?", Kind: KindQuestion},
	{Title: "Their side", Instruction: "Now imagine their view. What might they have been feeling or worried about?", Kind: KindQuestion},
	{Title: "Finding words", Instruction: "Try phrasing your need as an 'I feel... when... because...' sentence.", Kind: KindExercise},
	{Title: "Next conversation", Instruction: "Choose a calm moment to share this with someone you trust. When might that be?", Kind: KindQuestion},
}

// Conversation guides open-ended supportive dialogue.
type Conversation struct {
	base
	themes []string
}

// NewConversation builds the conversation variant.
func NewConversation(deps Deps) Service {
	script := conversationScript
	if deps.Metadata.Type == domain.ActivityFamilyDialogue {
		script = familyDialogueScript
	}
	return &Conversation{
		base: newBase(deps, domain.CategoryConversation, script,
			"I'm here with you. Take your time, and share whatever feels right.",
			"empathetic, reflective, non-judgmental"),
	}
}

// conversationThemes maps keywords to themes the user raised.
var conversationThemes = map[string][]string{
	"family":       {"family", "parents", "mother", "father", "ghar", "maa", "papa"},
	"work":         {"work", "job", "boss", "office", "naukri"},
	"studies":      {"exam", "study", "college", "marks", "padhai"},
	"relationship": {"friend", "partner", "relationship", "shaadi", "marriage"},
	"health":       {"sleep", "tired", "health", "body"},
}

// ProcessUserInput records conversation themes before narrating.
func (c *Conversation) ProcessUserInput(ctx context.Context, session *domain.ActivitySession, input string) (Response, error) {
	lower := strings.ToLower(input)
	for _, theme := range sortedKeys(conversationThemes) {
		for _, kw := range conversationThemes[theme] {
			if containsWord(lower, kw) && !slices.Contains(c.themes, theme) {
				c.themes = append(c.themes, theme)
				break
			}
		}
	}
	return c.base.ProcessUserInput(ctx, session, input)
}

// Complete summarizes the conversation.
func (c *Conversation) Complete(_ context.Context, session *domain.ActivitySession) (Completion, error) {
	if session == nil {
		return Completion{}, fmt.Errorf("complete %s: nil session", c.meta.Type)
	}
	insights := make([]string, 0, 4)
	if n := len(session.Interactions); n > 0 {
		insights = append(insights, fmt.Sprintf("You shared %d reflection(s) during this conversation.", n))
	}
	if len(c.themes) > 0 {
		insights = append(insights, "Themes you raised: "+strings.Join(c.themes, ", ")+".")
	}
	return c.completion(session, insights), nil
}
