package activity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/manas/internal/domain"
)

var errEmptyNarration = errors.New("narrator returned empty content")

// stepTemplate is one scripted step.
type stepTemplate struct {
	Title       string
	Instruction string
	Kind        ContentKind
}

// base carries the behavior shared by every category variant.
type base struct {
	meta      domain.ActivityMetadata
	sessionID string
	userID    string
	user      domain.UserContext
	narrator  Narrator
	timeout   time.Duration
	logger    Logger
	cultural  *CulturalAdapter
	clock     func() time.Time

	category domain.ActivityCategory
	script   []stepTemplate
	fallback string
	register string

	gentle     bool
	brief      bool
	simplified bool
	crisis     bool
}

// newBase applies defaults to deps and binds a script.
func newBase(deps Deps, category domain.ActivityCategory, script []stepTemplate, fallback, register string) base {
	if deps.NarrationTimeout <= 0 {
		deps.NarrationTimeout = DefaultNarrationTimeout
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Cultural == nil {
		deps.Cultural = NewCulturalAdapter()
	}
	return base{
		meta:      deps.Metadata,
		sessionID: deps.SessionID,
		userID:    deps.UserID,
		user:      deps.User,
		narrator:  deps.Narrator,
		timeout:   deps.NarrationTimeout,
		logger:    deps.Logger,
		cultural:  deps.Cultural,
		clock:     deps.Clock,
		category:  category,
		script:    script,
		fallback:  fallback,
		register:  register,
	}
}

// Category reports the variant's category.
func (b *base) Category() domain.ActivityCategory {
	return b.category
}

// Initialize narrates the opening step.
func (b *base) Initialize(ctx context.Context, cfg domain.ActivityConfiguration, session *domain.ActivitySession) (Response, error) {
	if session == nil {
		return Response{}, fmt.Errorf("initialize %s: nil session", b.meta.Type)
	}
	if cfg.Type != b.meta.Type {
		return Response{}, fmt.Errorf("initialize %s: configuration is for %q", b.meta.Type, cfg.Type)
	}
	return b.narrate(ctx, session, ""), nil
}

// ProcessUserInput narrates the session's current step in reply to input.
func (b *base) ProcessUserInput(ctx context.Context, session *domain.ActivitySession, input string) (Response, error) {
	if session == nil {
		return Response{}, fmt.Errorf("process input for %s: nil session", b.meta.Type)
	}
	return b.narrate(ctx, session, input), nil
}

// GenerateNextStep narrates the session's current step without new input.
func (b *base) GenerateNextStep(ctx context.Context, session *domain.ActivitySession) (Response, error) {
	if session == nil {
		return Response{}, fmt.Errorf("generate step for %s: nil session", b.meta.Type)
	}
	return b.narrate(ctx, session, ""), nil
}

// HandleAdaptation switches narration modes for one trigger and returns the audit record.
func (b *base) HandleAdaptation(_ context.Context, session *domain.ActivitySession, trigger domain.AdaptationTrigger, details string) (domain.ActivityAdaptation, error) {
	trigger = domain.NormalizeAdaptationTrigger(trigger)
	if !domain.IsValidAdaptationTrigger(trigger) {
		return domain.ActivityAdaptation{}, fmt.Errorf("adapt %s: unknown trigger %q", b.meta.Type, trigger)
	}
	if session != nil && session.Category != "" && session.Category != b.category {
		return domain.ActivityAdaptation{}, fmt.Errorf("adapt %s: session category %q", b.meta.Type, session.Category)
	}
	before := b.modeDescription()
	kind := domain.AdaptationContent
	rationale := ""
	switch trigger {
	case domain.TriggerLowEngagement:
		b.brief = true
		rationale = "Engagement dropped, so prompts are shorter and more inviting."
	case domain.TriggerEmotionalDistress:
		b.gentle = true
		kind = domain.AdaptationPacing
		rationale = "Signs of distress, so pacing slows and intensity softens."
	case domain.TriggerComprehensionIssue:
		b.simplified = true
		rationale = "Responses suggest the steps were unclear, so language is simplified."
	case domain.TriggerCulturalMismatch:
		kind = domain.AdaptationCultural
		rationale = "Content framing adjusted to the user's cultural context."
	case domain.TriggerCrisisDetected:
		b.crisis = true
		b.gentle = true
		kind = domain.AdaptationCrisisSupport
		rationale = "Crisis language detected, so helpline information is surfaced with every step."
	case domain.TriggerTimeConstraint:
		b.brief = true
		kind = domain.AdaptationDuration
		rationale = "Time is short, so remaining steps are condensed."
	case domain.TriggerUserRequest:
		b.gentle = true
		rationale = "Adjusted at the user's request."
	case domain.TriggerHighPerformance:
		b.simplified = false
		b.brief = false
		rationale = "Strong engagement, so prompts invite deeper reflection."
	}
	if details = strings.TrimSpace(details); details != "" {
		rationale += " " + details
	}
	return domain.ActivityAdaptation{
		At:        b.clock().UTC(),
		Trigger:   trigger,
		Kind:      kind,
		Before:    before,
		After:     b.modeDescription(),
		Rationale: rationale,
	}, nil
}

// completion builds the shared part of a completion report.
func (b *base) completion(session *domain.ActivitySession, insights []string) Completion {
	skills := b.demonstratedSkills(session)
	name := b.meta.DisplayName
	summary := fmt.Sprintf("You completed %d of %d steps of %s.", session.CurrentStep, session.TotalSteps, name)
	if session.IsFinalStep() {
		summary = fmt.Sprintf("You completed every step of %s.", name)
	}
	if len(session.Adaptations) > 0 {
		insights = append(insights, fmt.Sprintf("The session adapted %d time(s) to how you were doing.", len(session.Adaptations)))
	}
	if session.EngagementScore >= 7 {
		insights = append(insights, "You stayed closely engaged throughout.")
	}
	return Completion{
		Summary:            b.cultural.Adapt(summary, session.Configuration),
		Insights:           insights,
		SkillsDemonstrated: skills,
	}
}

// demonstratedSkills returns targeted skills in proportion to completed steps.
func (b *base) demonstratedSkills(session *domain.ActivitySession) []string {
	skills := b.meta.TargetedSkills
	if len(skills) == 0 || session.TotalSteps == 0 || len(session.Interactions) == 0 {
		return []string{}
	}
	n := len(skills) * session.CurrentStep / session.TotalSteps
	n = max(1, min(n, len(skills)))
	return slices.Clone(skills[:n])
}

// stepFor maps the session's step onto the script.
func (b *base) stepFor(step, total int) stepTemplate {
	if len(b.script) == 0 {
		return stepTemplate{Title: b.meta.DisplayName, Instruction: b.fallback, Kind: KindMessage}
	}
	if total < 1 {
		total = 1
	}
	step = max(1, min(step, total))
	idx := (step - 1) * len(b.script) / total
	if step == total {
		idx = len(b.script) - 1
	}
	return b.script[idx]
}

// preview describes the step after the current one.
func (b *base) preview(session *domain.ActivitySession) string {
	if session.IsFinalStep() {
		return ""
	}
	next := b.stepFor(session.CurrentStep+1, session.TotalSteps)
	return b.cultural.Adapt(next.Title, session.Configuration)
}

// narrate produces content for the current step, substituting the fallback on narrator failure.
func (b *base) narrate(ctx context.Context, session *domain.ActivitySession, input string) Response {
	tmpl := b.stepFor(session.CurrentStep, session.TotalSteps)
	kind := tmpl.Kind
	if b.crisis {
		kind = KindCrisisSupport
	}
	resp := Response{Kind: kind, NextStepPreview: b.preview(session)}

	scripted := b.scriptedText(tmpl)
	if b.narrator == nil {
		resp.Content = b.withCrisisSupport(b.cultural.Adapt(scripted, session.Configuration), session.Configuration)
		return resp
	}

	text, err := b.generate(ctx, b.prompt(session, tmpl, input))
	if err != nil {
		b.warn("narration failed, using fallback", "session_id", b.sessionID, "activity", b.meta.Type, "err", err)
		resp.Fallback = true
		resp.Content = b.withCrisisSupport(b.cultural.Adapt(b.fallback+"\n\n"+scripted, session.Configuration), session.Configuration)
		return resp
	}
	resp.Content = b.withCrisisSupport(text, session.Configuration)
	return resp
}

// generate calls the narrator under the configured timeout.
func (b *base) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		text      string
		err       error
		recovered any
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{recovered: r}
			}
		}()
		text, err := b.narrator.Generate(ctx, prompt)
		done <- result{text: text, err: err}
	}()

	var text string
	select {
	case r := <-done:
		if r.recovered != nil {
			// Surface narrator panics on the caller's goroutine.
			panic(r.recovered)
		}
		if r.err != nil {
			return "", r.err
		}
		text = r.text
	case <-ctx.Done():
		// A narrator that ignores ctx is left to finish on its own.
		return "", ctx.Err()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyNarration
	}
	return text, nil
}

// scriptedText renders one template under the current narration modes.
func (b *base) scriptedText(tmpl stepTemplate) string {
	text := tmpl.Instruction
	if b.brief {
		if i := strings.Index(text, ". "); i > 0 {
			text = text[:i+1]
		}
	}
	if b.gentle {
		text += " Go at whatever pace feels right; there is no hurry."
	}
	return fmt.Sprintf("**%s**\n\n%s", tmpl.Title, text)
}

// prompt builds the narrator prompt for one step.
func (b *base) prompt(session *domain.ActivitySession, tmpl stepTemplate, input string) string {
	params := session.EffectiveParameters()
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are a warm, culturally aware wellness guide leading a %s %s activity (%s).\n", session.Configuration.Difficulty, b.category, b.meta.DisplayName)
	fmt.Fprintf(&sb, "Tone: %s.\n", b.register)
	fmt.Fprintf(&sb, "Step %d of %d: %s. %s\n", session.CurrentStep, session.TotalSteps, tmpl.Title, tmpl.Instruction)
	fmt.Fprintf(&sb, "Emotional intensity: %s. Language: %s. Interaction depth: %s.\n", params.EmotionalIntensity, params.LanguageComplexity, params.InteractionDepth)
	fmt.Fprintf(&sb, "Complexity: %d/10. Cultural sensitivity: %d/10.\n", params.Complexity, params.CulturalSensitivity)
	if state := session.Metrics.EmotionalState; state != "" {
		fmt.Fprintf(&sb, "The user currently feels %s (stress %d/10).\n", state, session.Metrics.StressLevel)
	}
	if tags := session.Configuration.CulturalAdaptations; len(tags) > 0 {
		fmt.Fprintf(&sb, "Cultural adaptations: %s.\n", strings.Join(tags, ", "))
	}
	if tags := session.Configuration.Personalizations; len(tags) > 0 {
		fmt.Fprintf(&sb, "Personalize for: %s.\n", strings.Join(tags, ", "))
	}
	if b.gentle {
		sb.WriteString("Keep the pace slow and the language gentle.\n")
	}
	if b.brief {
		sb.WriteString("Keep the reply under three sentences.\n")
	}
	if b.simplified {
		sb.WriteString("Use very simple words and one instruction at a time.\n")
	}
	if input = strings.TrimSpace(input); input != "" {
		fmt.Fprintf(&sb, "The user just said: %q\n", input)
	}
	sb.WriteString("Reply with the guidance for this step only.")
	return sb.String()
}

// withCrisisSupport appends helpline details when crisis mode is on.
func (b *base) withCrisisSupport(text string, cfg domain.ActivityConfiguration) string {
	if !b.crisis {
		return text
	}
	return text + "\n\n" + SupportMessage(cfg)
}

// modeDescription renders the current narration modes for audit records.
func (b *base) modeDescription() string {
	modes := make([]string, 0, 4)
	if b.gentle {
		modes = append(modes, "gentle")
	}
	if b.brief {
		modes = append(modes, "brief")
	}
	if b.simplified {
		modes = append(modes, "simplified")
	}
	if b.crisis {
		modes = append(modes, "crisis")
	}
	if len(modes) == 0 {
		return "standard"
	}
	return strings.Join(modes, ",")
}

func (b *base) warn(msg string, keyvals ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, keyvals...)
	}
}

func (b *base) debug(msg string, keyvals ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, keyvals...)
	}
}
