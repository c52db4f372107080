package activity

import (
	"context"
	"fmt"

	"github.com/hylla/manas/internal/domain"
)

// Helpline numbers surfaced in crisis support.
const (
	HelplineTeleMANAS = "14416"
	HelplineKIRAN     = "1800-599-0019"
)

var crisisScript = []stepTemplate{
	{Title: "You are not alone", Instruction: "I'm really glad you reached out. You are not alone in this, and what you feel matters.", Kind: KindCrisisSupport},
	{Title: "Safety first", Instruction: "Are you safe right now? If you are in danger, please call emergency services at 112.", Kind: KindCrisisSupport},
	{Title: "Slow down", Instruction: "Let's breathe together: in for four, out for six. Stay with me for a few breaths.", Kind: KindCrisisSupport},
	{Title: "Reach out", Instruction: "Think of someone you trust who you could call or message right now.", Kind: KindCrisisSupport},
	{Title: "Next hour", Instruction: "What is one small thing that could help you get through the next hour?", Kind: KindCrisisSupport},
}

var groundingScript = []stepTemplate{
	{Title: "Five things", Instruction: "Look around and name five things you can see.", Kind: KindExercise},
	{Title: "Four things", Instruction: "Notice four things you can feel, like your feet on the floor.", Kind: KindExercise},
	{Title: "Three things", Instruction: "Listen for three things you can hear.", Kind: KindExercise},
	{Title: "Two and one", Instruction: "Name two things you can smell and one thing you can taste. Then breathe slowly.", Kind: KindExercise},
}

// SupportMessage renders helpline details, adapted to the configuration.
func SupportMessage(cfg domain.ActivityConfiguration) string {
	msg := fmt.Sprintf("If you are thinking about harming yourself, please reach out now: Tele-MANAS %s (24x7, free) or KIRAN %s. In an emergency call 112.", HelplineTeleMANAS, HelplineKIRAN)
	if cfg.HasCulturalTag(domain.TagHindi) || cfg.HasCulturalTag(domain.TagBilingual) {
		msg += " Aap akele nahi hain; madad sirf ek call door hai."
	}
	return msg
}

// Crisis provides stabilization and helpline routing.
type Crisis struct {
	base
	safetyChecks int
}

// NewCrisis builds the crisis variant; crisis narration always carries helplines.
func NewCrisis(deps Deps) Service {
	script := crisisScript
	if deps.Metadata.Type == domain.ActivityGroundingTechnique {
		script = groundingScript
	}
	c := &Crisis{
		base: newBase(deps, domain.CategoryCrisis, script,
			"I'm here with you right now. Let's take this one breath at a time.",
			"steady, warm, direct, safety-focused"),
	}
	c.crisis = deps.Metadata.Type == domain.ActivityCrisisIntervention
	c.gentle = true
	return c
}

// ProcessUserInput counts answered safety checks before narrating.
func (c *Crisis) ProcessUserInput(ctx context.Context, session *domain.ActivitySession, input string) (Response, error) {
	if input != "" {
		c.safetyChecks++
	}
	return c.base.ProcessUserInput(ctx, session, input)
}

// HandleAdaptation keeps crisis mode on regardless of trigger.
func (c *Crisis) HandleAdaptation(ctx context.Context, session *domain.ActivitySession, trigger domain.AdaptationTrigger, details string) (domain.ActivityAdaptation, error) {
	adaptation, err := c.base.HandleAdaptation(ctx, session, trigger, details)
	if err != nil {
		return domain.ActivityAdaptation{}, err
	}
	c.gentle = true
	adaptation.After = c.modeDescription()
	return adaptation, nil
}

// Complete reports stabilization progress and always repeats the helplines.
func (c *Crisis) Complete(_ context.Context, session *domain.ActivitySession) (Completion, error) {
	if session == nil {
		return Completion{}, fmt.Errorf("complete %s: nil session", c.meta.Type)
	}
	insights := make([]string, 0, 3)
	if c.safetyChecks > 0 {
		insights = append(insights, fmt.Sprintf("You stayed with %d grounding step(s). That takes real strength.", c.safetyChecks))
	}
	insights = append(insights, SupportMessage(session.Configuration))
	return c.completion(session, insights), nil
}
