package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/manas/internal/domain"
)

var breathingScript = []stepTemplate{
	{Title: "Settle in", Instruction: "Welcome. Sit comfortably and let your shoulders drop. Notice your breath as it is.", Kind: KindExercise},
	{Title: "Slow breath", Instruction: "Breathe in through your nose for four counts. Hold gently for four.", Kind: KindExercise},
	{Title: "Long exhale", Instruction: "Breathe out slowly for six counts. Let the exhale be longer than the inhale.", Kind: KindExercise},
	{Title: "Rhythm", Instruction: "Continue this breathing exercise for a few rounds. Let each exhale relax your body a little more.", Kind: KindExercise},
	{Title: "Return", Instruction: "Let your breath return to normal. Notice how your body feels now.", Kind: KindQuestion},
}

var mindfulnessScript = []stepTemplate{
	{Title: "Arrive", Instruction: "Welcome. Close your eyes or soften your gaze. Stay present with this moment.", Kind: KindExercise},
	{Title: "Sounds", Instruction: "Notice the sounds around you without naming them good or bad.", Kind: KindExercise},
	{Title: "Thoughts", Instruction: "Watch your thoughts pass like clouds. You do not need to follow them.", Kind: KindExercise},
	{Title: "Breath anchor", Instruction: "Whenever your mind wanders, gently breathe and come back.", Kind: KindExercise},
	{Title: "Closing", Instruction: "Slowly open your eyes. What did you notice during this practice?", Kind: KindQuestion},
}

var bodyScanScript = []stepTemplate{
	{Title: "Ground", Instruction: "Welcome. Lie down or sit back and feel the weight of your body supported.", Kind: KindExercise},
	{Title: "Feet and legs", Instruction: "Bring attention to your feet, then your legs. Notice any tension and let it soften.", Kind: KindExercise},
	{Title: "Torso", Instruction: "Move to your belly, chest and back. Breathe into any tight spots.", Kind: KindExercise},
	{Title: "Shoulders and face", Instruction: "Relax your shoulders, jaw and forehead.", Kind: KindExercise},
	{Title: "Whole body", Instruction: "Feel your whole body at once, calm and at peace. How does it feel now?", Kind: KindQuestion},
}

var gratitudeScript = []stepTemplate{
	{Title: "Pause", Instruction: "Welcome. Take one slow breath and bring to mind today so far.", Kind: KindExercise},
	{Title: "Three things", Instruction: "Write three small things you feel gratitude for today.", Kind: KindQuestion},
	{Title: "People", Instruction: "Think of your loved ones. Who made your day a little easier?", Kind: KindQuestion},
	{Title: "Savor", Instruction: "Pick one of these and stay with the feeling for a few breaths.", Kind: KindExercise},
}

// calmMarkers signal that the practice is landing.
var calmMarkers = []string{"calm", "relaxed", "better", "lighter", "peaceful", "sukoon", "shaant", "okay"}

// tensionMarkers signal that the practice is not landing.
var tensionMarkers = []string{"tense", "tight", "restless", "can't focus", "cannot focus", "distracted", "worse", "pain"}

// Mindfulness guides breathing, awareness and body-based practices.
type Mindfulness struct {
	base
	calm    int
	tension int
}

// NewMindfulness builds the mindfulness variant.
func NewMindfulness(deps Deps) Service {
	script := mindfulnessScript
	switch deps.Metadata.Type {
	case domain.ActivityBreathingExercise:
		script = breathingScript
	case domain.ActivityBodyScan:
		script = bodyScanScript
	case domain.ActivityGratitudeJournal:
		script = gratitudeScript
	}
	return &Mindfulness{
		base: newBase(deps, domain.CategoryMindfulness, script,
			"Let's pause together. Take a slow breath in, and an even slower breath out.",
			"calm, unhurried, grounding"),
	}
}

// ProcessUserInput tracks calm and tension reports before narrating.
func (m *Mindfulness) ProcessUserInput(ctx context.Context, session *domain.ActivitySession, input string) (Response, error) {
	lower := strings.ToLower(input)
	for _, marker := range calmMarkers {
		if containsWord(lower, marker) {
			m.calm++
			break
		}
	}
	for _, marker := range tensionMarkers {
		if containsWord(lower, marker) {
			m.tension++
			break
		}
	}
	if m.tension >= 2 && !m.gentle {
		m.gentle = true
		m.debug("softening mindfulness pacing", "session_id", m.sessionID)
	}
	return m.base.ProcessUserInput(ctx, session, input)
}

// Complete reports how the practice landed.
func (m *Mindfulness) Complete(_ context.Context, session *domain.ActivitySession) (Completion, error) {
	if session == nil {
		return Completion{}, fmt.Errorf("complete %s: nil session", m.meta.Type)
	}
	insights := make([]string, 0, 4)
	switch {
	case m.calm > m.tension:
		insights = append(insights, "You noticed your body and mind settling as the practice went on.")
	case m.tension > 0:
		insights = append(insights, "Some tension stayed with you. That is normal; short daily practice helps it ease.")
	default:
		insights = append(insights, "You gave yourself a few quiet minutes of attention.")
	}
	if session.Configuration.DurationMinutes > 0 {
		insights = append(insights, fmt.Sprintf("Try repeating this %d-minute practice at the same time each day.", session.Configuration.DurationMinutes))
	}
	return m.completion(session, insights), nil
}
