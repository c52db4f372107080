package activity

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hylla/manas/internal/domain"
)

var cbtScript = []stepTemplate{
	{Title: "Name the situation", Instruction: "Describe one recent situation that upset you. Keep it to the facts: where, when, who.", Kind: KindQuestion},
	{Title: "Catch the thought", Instruction: "What went through your mind in that moment? Write the thought exactly as it sounded.", Kind: KindQuestion},
	{Title: "Notice the feeling", Instruction: "Which emotions came with that thought? Rate how strong each one was from 1 to 10.", Kind: KindExercise},
	{Title: "Weigh the evidence", Instruction: "List what supports the thought and what does not. Be as fair as a good friend would be.", Kind: KindExercise},
	{Title: "Balanced thought", Instruction: "Write a more balanced version of the thought that fits all the evidence.", Kind: KindExercise},
	{Title: "Re-rate", Instruction: "Read the balanced thought slowly. How strong do the emotions feel now?", Kind: KindQuestion},
}

var thoughtChallengeScript = []stepTemplate{
	{Title: "The thought", Instruction: "Pick one thought that keeps returning. Write it down in a single sentence.", Kind: KindQuestion},
	{Title: "Spot the pattern", Instruction: "Does it use words like always, never, or should? Those often signal a thinking trap.", Kind: KindExercise},
	{Title: "Challenge", Instruction: "Ask yourself: what would I tell a close friend who had this thought?", Kind: KindQuestion},
	{Title: "Replace", Instruction: "Write a kinder, more accurate alternative and say it to yourself twice.", Kind: KindExercise},
}

var reframingScript = []stepTemplate{
	{Title: "The frame", Instruction: "Describe a situation you keep seeing in only one way.", Kind: KindQuestion},
	{Title: "Other angles", Instruction: "Imagine how an elder, a friend, and your future self would each describe it.", Kind: KindExercise},
	{Title: "What you can learn", Instruction: "Is there anything this situation could teach you or help you grow in?", Kind: KindQuestion},
	{Title: "New frame", Instruction: "Put the new perspective into one sentence you can return to.", Kind: KindExercise},
}

// cognitiveDistortions maps thinking-trap labels to trigger phrases.
var cognitiveDistortions = map[string][]string{
	"all_or_nothing":     {"always", "never", "completely", "totally", "hamesha", "kabhi nahi"},
	"overgeneralization": {"everyone", "nobody", "everything", "nothing", "sab log"},
	"should_statements":  {"should", "must", "have to", "ought to", "chahiye"},
	"catastrophizing":    {"disaster", "ruined", "worst", "terrible", "end of the world"},
	"labeling":           {"i'm useless", "i am useless", "i'm a failure", "i am a failure", "i'm stupid", "i am stupid"},
	"mind_reading":       {"they think", "he thinks", "she thinks", "everyone thinks", "log kya kahenge"},
}

// Cognitive runs structured thought-work exercises.
type Cognitive struct {
	base
	distortions []string
	reframes    int
}

// NewCognitive builds the cognitive variant.
func NewCognitive(deps Deps) Service {
	script := cbtScript
	switch deps.Metadata.Type {
	case domain.ActivityThoughtChallenge:
		script = thoughtChallengeScript
	case domain.ActivityCognitiveReframing:
		script = reframingScript
	}
	return &Cognitive{
		base: newBase(deps, domain.CategoryCognitive, script,
			"Let's slow down and look at this thought together, one piece at a time.",
			"curious, structured, encouraging"),
	}
}

// ProcessUserInput tracks thinking traps and balanced reframes before narrating.
func (c *Cognitive) ProcessUserInput(ctx context.Context, session *domain.ActivitySession, input string) (Response, error) {
	lower := strings.ToLower(input)
	for _, label := range sortedKeys(cognitiveDistortions) {
		if slices.Contains(c.distortions, label) {
			continue
		}
		for _, phrase := range cognitiveDistortions[label] {
			if containsWord(lower, phrase) {
				c.distortions = append(c.distortions, label)
				c.debug("thinking trap noticed", "session_id", c.sessionID, "pattern", label)
				break
			}
		}
	}
	for _, marker := range []string{"but", "maybe", "on the other hand", "could also", "even though", "lekin"} {
		if containsWord(lower, marker) {
			c.reframes++
			break
		}
	}
	return c.base.ProcessUserInput(ctx, session, input)
}

// Complete reports the thinking patterns worked on.
func (c *Cognitive) Complete(_ context.Context, session *domain.ActivitySession) (Completion, error) {
	if session == nil {
		return Completion{}, fmt.Errorf("complete %s: nil session", c.meta.Type)
	}
	insights := make([]string, 0, 4)
	if len(c.distortions) > 0 {
		labels := make([]string, 0, len(c.distortions))
		for _, d := range c.distortions {
			labels = append(labels, strings.ReplaceAll(d, "_", " "))
		}
		insights = append(insights, "Thinking patterns you spotted: "+strings.Join(labels, ", ")+".")
	}
	if c.reframes > 0 {
		insights = append(insights, fmt.Sprintf("You offered %d balanced alternative(s) to a difficult thought.", c.reframes))
	}
	if len(insights) == 0 {
		insights = append(insights, "You practiced stepping back from a thought and examining it.")
	}
	return c.completion(session, insights), nil
}
