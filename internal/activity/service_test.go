package activity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hylla/manas/internal/domain"
)

// fakeNarrator returns canned text or an error and records prompts.
type fakeNarrator struct {
	text    string
	err     error
	block   bool
	prompts []string
}

// Generate implements Narrator.
func (f *fakeNarrator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

// captureLogger records warnings.
type captureLogger struct {
	warnings []string
}

func (l *captureLogger) Debug(string, ...any) {}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.warnings = append(l.warnings, msg)
}

func testMetadata(t *testing.T, typ domain.ActivityType, category domain.ActivityCategory) domain.ActivityMetadata {
	t.Helper()
	m, err := domain.NewActivityMetadata(domain.ActivityMetadataInput{
		Type:              typ,
		DisplayName:       "Test " + string(typ),
		Category:          category,
		CulturalRelevance: 8,
		DifficultyLevels:  []domain.DifficultyLevel{domain.DifficultyBeginner, domain.DifficultyIntermediate},
		DurationOptions:   []int{5, 10},
		TargetedSkills:    []string{"skill_a", "skill_b"},
	})
	if err != nil {
		t.Fatalf("NewActivityMetadata() error = %v", err)
	}
	return m
}

func testSession(t *testing.T, meta domain.ActivityMetadata, tags ...string) *domain.ActivitySession {
	t.Helper()
	s, err := domain.NewActivitySession(domain.SessionInput{
		ID:       "s1",
		UserID:   "u1",
		Category: meta.Category,
		Configuration: domain.ActivityConfiguration{
			Type:                meta.Type,
			Difficulty:          domain.DifficultyBeginner,
			DurationMinutes:     5,
			CulturalAdaptations: tags,
		},
		TotalSteps: 4,
	}, time.Now())
	if err != nil {
		t.Fatalf("NewActivitySession() error = %v", err)
	}
	if err := s.Start(time.Now()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return &s
}

func TestNewSelectsVariantByCategory(t *testing.T) {
	for _, category := range domain.Categories() {
		svc, err := New(Deps{Metadata: testMetadata(t, "custom_type", category)})
		if err != nil {
			t.Fatalf("New(%s) error = %v", category, err)
		}
		if svc.Category() != category {
			t.Fatalf("expected category %q, got %q", category, svc.Category())
		}
	}
	if _, err := New(Deps{Metadata: domain.ActivityMetadata{Category: "yoga"}}); !errors.Is(err, domain.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestNarrationUsesNarratorText(t *testing.T) {
	meta := testMetadata(t, domain.ActivityBreathingExercise, domain.CategoryMindfulness)
	narrator := &fakeNarrator{text: "  Breathe with me.  "}
	svc := NewMindfulness(Deps{Metadata: meta, Narrator: narrator})
	session := testSession(t, meta)
	resp, err := svc.Initialize(context.Background(), session.Configuration, session)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if resp.Content != "Breathe with me." || resp.Fallback {
		t.Fatalf("unexpected response %#v", resp)
	}
	if resp.NextStepPreview == "" {
		t.Fatal("expected next-step preview")
	}
	if len(narrator.prompts) != 1 || !strings.Contains(narrator.prompts[0], "Step 1 of 4") {
		t.Fatalf("unexpected prompts %#v", narrator.prompts)
	}
}

func TestNarrationFallsBackOnError(t *testing.T) {
	meta := testMetadata(t, domain.ActivityCBTExercise, domain.CategoryCognitive)
	logger := &captureLogger{}
	svc := NewCognitive(Deps{Metadata: meta, Narrator: &fakeNarrator{err: errors.New("boom")}, Logger: logger})
	session := testSession(t, meta)
	resp, err := svc.ProcessUserInput(context.Background(), session, "hello")
	if err != nil {
		t.Fatalf("ProcessUserInput() error = %v", err)
	}
	if !resp.Fallback || !strings.Contains(resp.Content, "look at this thought together") {
		t.Fatalf("expected cognitive fallback, got %#v", resp)
	}
	if len(logger.warnings) != 1 {
		t.Fatalf("expected one warning, got %#v", logger.warnings)
	}
}

func TestNarrationTimeoutFallsBack(t *testing.T) {
	meta := testMetadata(t, domain.ActivityGuidedConversation, domain.CategoryConversation)
	svc := NewConversation(Deps{Metadata: meta, Narrator: &fakeNarrator{block: true}, NarrationTimeout: 10 * time.Millisecond})
	session := testSession(t, meta)
	start := time.Now()
	resp, err := svc.GenerateNextStep(context.Background(), session)
	if err != nil {
		t.Fatalf("GenerateNextStep() error = %v", err)
	}
	if !resp.Fallback {
		t.Fatalf("expected fallback, got %#v", resp)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("expected narration to be bounded by the timeout")
	}
}

// stubbornNarrator blocks until released and never looks at ctx.
type stubbornNarrator struct {
	release chan struct{}
}

// Generate implements Narrator.
func (n stubbornNarrator) Generate(context.Context, string) (string, error) {
	<-n.release
	return "too late", nil
}

// TestNarrationTimeoutBoundsNarratorIgnoringContext verifies a narrator that ignores cancellation cannot stall a step.
func TestNarrationTimeoutBoundsNarratorIgnoringContext(t *testing.T) {
	meta := testMetadata(t, domain.ActivityGuidedConversation, domain.CategoryConversation)
	narrator := stubbornNarrator{release: make(chan struct{})}
	t.Cleanup(func() { close(narrator.release) })
	svc := NewConversation(Deps{Metadata: meta, Narrator: narrator, NarrationTimeout: 20 * time.Millisecond})
	session := testSession(t, meta)

	type outcome struct {
		resp Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := svc.GenerateNextStep(context.Background(), session)
		done <- outcome{resp: resp, err: err}
	}()
	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("GenerateNextStep() error = %v", got.err)
		}
		if !got.resp.Fallback || strings.Contains(got.resp.Content, "too late") {
			t.Fatalf("expected fallback content, got %#v", got.resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected narration to return once the timeout elapsed")
	}
}

// TestPromptCarriesSessionParameters verifies the narrator prompt reflects tuned parameters over the level's base set.
func TestPromptCarriesSessionParameters(t *testing.T) {
	meta := testMetadata(t, domain.ActivityMindfulnessSession, domain.CategoryMindfulness)
	narrator := &fakeNarrator{text: "Settle in."}
	svc := NewMindfulness(Deps{Metadata: meta, Narrator: narrator})
	session := testSession(t, meta)
	session.Configuration.Difficulty = domain.DifficultyAdvanced
	session.Parameters = domain.BaseParameters(domain.DifficultyAdvanced)
	session.Parameters.EmotionalIntensity = domain.IntensityGentle
	session.Parameters.LanguageComplexity = domain.LanguageSimple
	session.Parameters.Complexity = 8
	session.Parameters.CulturalSensitivity = 8

	if _, err := svc.GenerateNextStep(context.Background(), session); err != nil {
		t.Fatalf("GenerateNextStep() error = %v", err)
	}
	if len(narrator.prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(narrator.prompts))
	}
	prompt := narrator.prompts[0]
	for _, want := range []string{
		"Emotional intensity: gentle. Language: simple. Interaction depth: deep.",
		"Complexity: 8/10. Cultural sensitivity: 8/10.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got %q", want, prompt)
		}
	}

	session.Parameters = domain.DifficultyParameters{}
	if _, err := svc.GenerateNextStep(context.Background(), session); err != nil {
		t.Fatalf("GenerateNextStep() error = %v", err)
	}
	if !strings.Contains(narrator.prompts[1], "Emotional intensity: intense. Language: advanced.") {
		t.Fatalf("expected base advanced parameters without tuning, got %q", narrator.prompts[1])
	}
}

func TestNarrationWithoutNarratorUsesScript(t *testing.T) {
	meta := testMetadata(t, domain.ActivityBreathingExercise, domain.CategoryMindfulness)
	svc := NewMindfulness(Deps{Metadata: meta})
	session := testSession(t, meta, domain.TagIndianContext, domain.TagBilingual, domain.TagTraditionalPractices)
	resp, err := svc.GenerateNextStep(context.Background(), session)
	if err != nil {
		t.Fatalf("GenerateNextStep() error = %v", err)
	}
	if !strings.Contains(resp.Content, "Swagat hai") {
		t.Fatalf("expected greeting substitution, got %q", resp.Content)
	}
	if resp.Kind != KindExercise {
		t.Fatalf("expected exercise kind, got %q", resp.Kind)
	}
}

func TestCulturalAdapter(t *testing.T) {
	adapter := NewCulturalAdapter()
	cfg := domain.ActivityConfiguration{CulturalAdaptations: []string{domain.TagIndianContext, domain.TagFamilyOriented, domain.TagBilingual}}
	got := adapter.Adapt("Hello. Breathe slowly and think of your loved ones. Breathe again.", cfg)
	want := "Namaste. Breathe (saans lijiye) slowly and think of your family and loved ones. Breathe again."
	if got != want {
		t.Fatalf("Adapt() = %q, want %q", got, want)
	}
	plain := adapter.Adapt("Hello there.", domain.ActivityConfiguration{})
	if plain != "Hello there." {
		t.Fatalf("expected untouched text, got %q", plain)
	}
}

func TestCrisisAdaptationSurfacesHelplines(t *testing.T) {
	meta := testMetadata(t, domain.ActivityBodyScan, domain.CategoryMindfulness)
	svc := NewMindfulness(Deps{Metadata: meta})
	session := testSession(t, meta)
	adaptation, err := svc.HandleAdaptation(context.Background(), session, domain.TriggerCrisisDetected, "")
	if err != nil {
		t.Fatalf("HandleAdaptation() error = %v", err)
	}
	if adaptation.Kind != domain.AdaptationCrisisSupport || adaptation.Before != "standard" {
		t.Fatalf("unexpected adaptation %#v", adaptation)
	}
	resp, err := svc.GenerateNextStep(context.Background(), session)
	if err != nil {
		t.Fatalf("GenerateNextStep() error = %v", err)
	}
	if resp.Kind != KindCrisisSupport || !strings.Contains(resp.Content, HelplineTeleMANAS) {
		t.Fatalf("expected crisis support content, got %#v", resp)
	}
	if _, err := svc.HandleAdaptation(context.Background(), session, "bogus", ""); err == nil {
		t.Fatal("expected unknown trigger error")
	}
}

func TestAssessmentAveragesRatings(t *testing.T) {
	meta := testMetadata(t, domain.ActivityStressAssessment, domain.CategoryAssessment)
	svc := NewAssessment(Deps{Metadata: meta})
	session := testSession(t, meta)
	for _, input := range []string{"about 8", "maybe 9 today", "no idea", "7"} {
		session.AppendInteraction(input, time.Now())
		if _, err := svc.ProcessUserInput(context.Background(), session, input); err != nil {
			t.Fatalf("ProcessUserInput() error = %v", err)
		}
		session.Advance(time.Now())
	}
	done, err := svc.Complete(context.Background(), session)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(done.Insights[0], "8.0/10") {
		t.Fatalf("unexpected insights %#v", done.Insights)
	}
	if !strings.Contains(done.Insights[1], "stress looks high") {
		t.Fatalf("expected high-stress insight, got %#v", done.Insights)
	}
	if len(done.SkillsDemonstrated) != 2 {
		t.Fatalf("expected every skill demonstrated, got %#v", done.SkillsDemonstrated)
	}
}

func TestCognitiveSpotsThinkingTraps(t *testing.T) {
	meta := testMetadata(t, domain.ActivityThoughtChallenge, domain.CategoryCognitive)
	svc := NewCognitive(Deps{Metadata: meta})
	session := testSession(t, meta)
	inputs := []string{"I always mess things up and I should be better", "but maybe it was one bad day"}
	for _, input := range inputs {
		if _, err := svc.ProcessUserInput(context.Background(), session, input); err != nil {
			t.Fatalf("ProcessUserInput() error = %v", err)
		}
	}
	done, err := svc.Complete(context.Background(), session)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(done.Insights[0], "all or nothing") || !strings.Contains(done.Insights[0], "should statements") {
		t.Fatalf("unexpected insights %#v", done.Insights)
	}
	if !strings.Contains(done.Insights[1], "1 balanced") {
		t.Fatalf("expected reframe insight, got %#v", done.Insights)
	}
}

func TestCrisisVariantAlwaysCarriesHelplines(t *testing.T) {
	meta := testMetadata(t, domain.ActivityCrisisIntervention, domain.CategoryCrisis)
	svc := NewCrisis(Deps{Metadata: meta})
	session := testSession(t, meta, domain.TagHindi)
	resp, err := svc.Initialize(context.Background(), session.Configuration, session)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !strings.Contains(resp.Content, HelplineKIRAN) || !strings.Contains(resp.Content, "Aap akele nahi hain") {
		t.Fatalf("expected helplines in crisis content, got %q", resp.Content)
	}
	wrong := session.Configuration
	wrong.Type = domain.ActivityBodyScan
	if _, err := svc.Initialize(context.Background(), wrong, session); err == nil {
		t.Fatal("expected configuration type mismatch error")
	}
}
