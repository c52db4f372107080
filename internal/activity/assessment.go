package activity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hylla/manas/internal/domain"
)

var moodAssessmentScript = []stepTemplate{
	{Title: "Overall mood", Instruction: "On a scale of 1 to 10, how would you rate your mood today?", Kind: KindAssessment},
	{Title: "Energy", Instruction: "From 1 to 10, how much energy have you had over the last few days?", Kind: KindAssessment},
	{Title: "Sleep", Instruction: "From 1 to 10, how restful has your sleep been?", Kind: KindAssessment},
	{Title: "Connection", Instruction: "From 1 to 10, how connected have you felt to people close to you?", Kind: KindAssessment},
	{Title: "Reflection", Instruction: "Looking at your answers, what stands out to you?", Kind: KindQuestion},
}

var stressAssessmentScript = []stepTemplate{
	{Title: "Current stress", Instruction: "On a scale of 1 to 10, how stressed do you feel right now?", Kind: KindAssessment},
	{Title: "Body signals", Instruction: "From 1 to 10, how much tension do you notice in your body?", Kind: KindAssessment},
	{Title: "Control", Instruction: "From 1 to 10, how much control do you feel over what is stressing you?", Kind: KindAssessment},
	{Title: "Support", Instruction: "From 1 to 10, how supported do you feel by your loved ones?", Kind: KindAssessment},
	{Title: "Reflection", Instruction: "What is one source of stress you could make a little smaller this week?", Kind: KindQuestion},
}

// Assessment collects 1-10 self ratings across a short questionnaire.
type Assessment struct {
	base
	ratings []int
}

// NewAssessment builds the assessment variant.
func NewAssessment(deps Deps) Service {
	script := moodAssessmentScript
	if deps.Metadata.Type == domain.ActivityStressAssessment {
		script = stressAssessmentScript
	}
	return &Assessment{
		base: newBase(deps, domain.CategoryAssessment, script,
			"Thank you. There are no right or wrong answers here; just share what feels true.",
			"neutral, warm, clear"),
	}
}

// ProcessUserInput records the first 1-10 rating found in the input before narrating.
func (a *Assessment) ProcessUserInput(ctx context.Context, session *domain.ActivitySession, input string) (Response, error) {
	if rating, ok := parseRating(input); ok {
		a.ratings = append(a.ratings, rating)
	}
	return a.base.ProcessUserInput(ctx, session, input)
}

// Ratings returns the ratings collected so far.
func (a *Assessment) Ratings() []int {
	return append([]int(nil), a.ratings...)
}

// Complete reports the average rating.
func (a *Assessment) Complete(_ context.Context, session *domain.ActivitySession) (Completion, error) {
	if session == nil {
		return Completion{}, fmt.Errorf("complete %s: nil session", a.meta.Type)
	}
	insights := make([]string, 0, 3)
	if len(a.ratings) == 0 {
		insights = append(insights, "No ratings were recorded this time.")
		return a.completion(session, insights), nil
	}
	sum := 0
	for _, r := range a.ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(a.ratings))
	insights = append(insights, fmt.Sprintf("Your average rating across %d question(s) was %.1f/10.", len(a.ratings), avg))
	stress := a.meta.Type == domain.ActivityStressAssessment
	switch {
	case stress && avg >= 7:
		insights = append(insights, "Your stress looks high right now. A short breathing practice may help.")
	case !stress && avg <= 4:
		insights = append(insights, "Your mood seems low lately. Talking to someone you trust could help.")
	}
	return a.completion(session, insights), nil
}

// parseRating extracts the first integer in [1,10] from free text.
func parseRating(input string) (int, bool) {
	for _, tok := range words(input) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if n >= 1 && n <= 10 {
			return n, true
		}
	}
	return 0, false
}
