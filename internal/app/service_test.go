package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hylla/manas/internal/activity"
	"github.com/hylla/manas/internal/domain"
)

type fakeProfiles struct {
	mu      sync.Mutex
	users   map[string]domain.UserContext
	records []CompletionRecord
	err     error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{users: map[string]domain.UserContext{}}
}

func (f *fakeProfiles) GetUserContext(_ context.Context, id string) (domain.UserContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.UserContext{}, ErrNotFound
	}
	return u.Clone(), nil
}

func (f *fakeProfiles) SaveUserContext(_ context.Context, u domain.UserContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.UserID] = u.Clone()
	return nil
}

func (f *fakeProfiles) RecordCompletion(_ context.Context, r CompletionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions []domain.ActivitySession
}

func (f *fakeRecorder) SaveSession(_ context.Context, s domain.ActivitySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, s.Clone())
	return nil
}

func (f *fakeRecorder) ListSessions(_ context.Context, userID string, limit int) ([]domain.ActivitySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.ActivitySession{}
	for i := len(f.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		if f.sessions[i].UserID == userID {
			out = append(out, f.sessions[i].Clone())
		}
	}
	return out, nil
}

type panicNarrator struct{}

func (panicNarrator) Generate(context.Context, string) (string, error) {
	panic("narrator exploded")
}

// promptRecorder answers every prompt and keeps a copy.
type promptRecorder struct {
	mu      sync.Mutex
	prompts []string
}

func (n *promptRecorder) Generate(_ context.Context, prompt string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prompts = append(n.prompts, prompt)
	return "Let us begin.", nil
}

func (n *promptRecorder) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.prompts) == 0 {
		return ""
	}
	return n.prompts[len(n.prompts)-1]
}

// hangingNarrator never returns until released, whatever ctx says.
type hangingNarrator struct {
	release chan struct{}
}

func (n hangingNarrator) Generate(context.Context, string) (string, error) {
	<-n.release
	return "", nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return "s" + string(rune('0'+n))
	}
}

func newTestService(t *testing.T, cfg ServiceConfig) (*Service, *fakeProfiles, *fakeRecorder, *manualClock) {
	t.Helper()
	profiles := newFakeProfiles()
	recorder := &fakeRecorder{}
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	if cfg.Sessions.AssessEveryTurns == 0 {
		cfg.Sessions.AssessEveryTurns = 100
	}
	return NewService(profiles, recorder, sequentialIDs(), clock.Now, cfg), profiles, recorder, clock
}

func TestStartSessionUsesDifficultyStepCount(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	user := domain.UserContext{UserID: "u1", Preferences: domain.ActivityPreferences{Difficulty: domain.DifficultyIntermediate}}

	resp, err := svc.StartSession(context.Background(), StartSessionInput{Type: domain.ActivityMindfulnessSession, User: &user})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if resp.SessionID != "s1" || resp.Step != 1 || resp.TotalSteps != domain.StepCountFor(domain.DifficultyIntermediate) {
		t.Fatalf("unexpected start response %#v", resp)
	}
	if resp.Status != domain.SessionActive || strings.TrimSpace(resp.Content) == "" {
		t.Fatalf("expected active session with content, got %#v", resp)
	}
	session, err := svc.GetSession(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if len(session.Responses) != 1 || session.Configuration.Difficulty != domain.DifficultyIntermediate {
		t.Fatalf("unexpected session state %#v", session)
	}
}

// TestStartSessionNarratesWithContextualParameters verifies stress, background, and language overrides reach the narrator.
func TestStartSessionNarratesWithContextualParameters(t *testing.T) {
	narrator := &promptRecorder{}
	svc, _, _, _ := newTestService(t, ServiceConfig{Narrator: narrator})
	user := domain.UserContext{
		UserID: "u1",
		Demographics: domain.Demographics{
			CulturalBackground: domain.CulturalBackgroundIndian,
			LanguagePreference: domain.LanguageHindi,
		},
		CurrentState: domain.CurrentState{StressLevel: 9},
		Preferences:  domain.ActivityPreferences{Difficulty: domain.DifficultyAdvanced},
	}
	resp, err := svc.StartSession(context.Background(), StartSessionInput{Type: domain.ActivityMindfulnessSession, User: &user})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	session, err := svc.GetSession(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.Configuration.Difficulty != domain.DifficultyAdvanced {
		t.Fatalf("expected advanced configuration, got %q", session.Configuration.Difficulty)
	}
	want := domain.DifficultyParameters{
		Complexity: 8, StepCount: 8, InteractionDepth: domain.DepthDeep, ConceptualDemand: domain.DemandHigh,
		EmotionalIntensity: domain.IntensityGentle, CulturalSensitivity: 8, LanguageComplexity: domain.LanguageSimple,
	}
	if session.Parameters != want {
		t.Fatalf("expected session parameters %#v, got %#v", want, session.Parameters)
	}
	prompt := narrator.last()
	for _, part := range []string{
		"Emotional intensity: gentle. Language: simple. Interaction depth: deep.",
		"Complexity: 8/10. Cultural sensitivity: 8/10.",
	} {
		if !strings.Contains(prompt, part) {
			t.Fatalf("expected prompt to contain %q, got %q", part, prompt)
		}
	}
}

// TestStartSessionNotBlockedByNarratorIgnoringContext verifies a stuck narrator cannot hold a session busy.
func TestStartSessionNotBlockedByNarratorIgnoringContext(t *testing.T) {
	narrator := hangingNarrator{release: make(chan struct{})}
	t.Cleanup(func() { close(narrator.release) })
	svc, _, _, _ := newTestService(t, ServiceConfig{
		Narrator: narrator,
		Sessions: SessionTuning{NarrationTimeout: 20 * time.Millisecond},
	})
	ctx := context.Background()

	type outcome struct {
		resp ActivityResponse
		err  error
	}
	started := make(chan outcome, 1)
	go func() {
		resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityGuidedConversation, UserID: "u1"})
		started <- outcome{resp: resp, err: err}
	}()
	var resp ActivityResponse
	select {
	case got := <-started:
		if got.err != nil {
			t.Fatalf("StartSession() error = %v", got.err)
		}
		resp = got.resp
	case <-time.After(2 * time.Second):
		t.Fatal("expected StartSession to return once the narration timeout elapsed")
	}
	if !resp.Fallback {
		t.Fatalf("expected fallback opening, got %#v", resp)
	}
	next, err := svc.ProcessInput(ctx, resp.SessionID, "hello")
	if err != nil {
		t.Fatalf("expected session to be released, got %v", err)
	}
	if !next.Fallback || next.Step != 2 {
		t.Fatalf("expected fallback second step, got %#v", next)
	}
}

// TestStartSessionRejectsDuplicateID verifies an id collision never replaces a live session.
func TestStartSessionRejectsDuplicateID(t *testing.T) {
	clock := &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(newFakeProfiles(), &fakeRecorder{}, func() string { return "dup" }, clock.Now, ServiceConfig{})
	ctx := context.Background()
	if _, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u1"}); err != nil {
		t.Fatalf("first StartSession() error = %v", err)
	}
	_, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u2"})
	if !errors.Is(err, ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
	session, err := svc.GetSession(ctx, "dup")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.UserID != "u1" {
		t.Fatalf("expected original owner u1, got %q", session.UserID)
	}
	if n := len(svc.ListActiveSessions(ctx, "")); n != 1 {
		t.Fatalf("expected one live session, got %d", n)
	}
}

func TestStartSessionWithMissingProfileUsesEmptyContext(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	resp, err := svc.StartSession(context.Background(), StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "ghost"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if resp.TotalSteps != domain.StepCountFor(domain.DifficultyBeginner) {
		t.Fatalf("expected beginner step count for empty context, got %d", resp.TotalSteps)
	}
}

func TestStartSessionLoadsStoredProfile(t *testing.T) {
	svc, profiles, _, _ := newTestService(t, ServiceConfig{})
	profiles.users["u1"] = domain.UserContext{
		UserID:   "u1",
		Progress: domain.TherapeuticProgress{CompletedTypes: []domain.ActivityType{domain.ActivityCBTExercise}},
	}
	if _, err := svc.StartSession(context.Background(), StartSessionInput{Type: domain.ActivityThoughtChallenge, UserID: "u1"}); err != nil {
		t.Fatalf("expected stored progress to satisfy prerequisite, got %v", err)
	}
}

func TestStartSessionPrerequisiteUnmet(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	user := domain.UserContext{UserID: "u1", CurrentState: domain.CurrentState{StressLevel: 5}}
	_, err := svc.StartSession(context.Background(), StartSessionInput{Type: domain.ActivityThoughtChallenge, User: &user})
	if !errors.Is(err, ErrPrerequisiteUnmet) {
		t.Fatalf("expected ErrPrerequisiteUnmet, got %v", err)
	}
	if n := len(svc.ListActiveSessions(context.Background(), "")); n != 0 {
		t.Fatalf("expected no session created, got %d", n)
	}
}

func TestStartSessionContraindicated(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	user := domain.UserContext{UserID: "u1", History: domain.MentalHealthHistory{RiskFactors: []string{"severe_psychosis"}}}
	_, err := svc.StartSession(context.Background(), StartSessionInput{Type: domain.ActivityCrisisIntervention, User: &user})
	if !errors.Is(err, ErrContraindicated) {
		t.Fatalf("expected ErrContraindicated, got %v", err)
	}
}

func TestStartSessionCapacity(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{Sessions: SessionTuning{MaxActive: 1}})
	ctx := context.Background()
	if _, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u1"}); err != nil {
		t.Fatalf("first StartSession() error = %v", err)
	}
	_, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u2"})
	if !errors.Is(err, ErrCapacityReached) {
		t.Fatalf("expected ErrCapacityReached, got %v", err)
	}
}

func TestProcessInputAdvancesStepAndCompletion(t *testing.T) {
	svc, _, _, clock := newTestService(t, ServiceConfig{})
	cfg, err := svc.factory.CreateDefaultConfiguration(domain.ActivityMindfulnessSession, domain.UserContext{UserID: "u1"}, ConfigurationOverrides{})
	if err != nil {
		t.Fatalf("CreateDefaultConfiguration() error = %v", err)
	}
	session, err := domain.NewActivitySession(domain.SessionInput{
		ID: "fixed", UserID: "u1", Category: domain.CategoryMindfulness, Configuration: cfg, TotalSteps: 5,
	}, clock.Now())
	if err != nil {
		t.Fatalf("NewActivitySession() error = %v", err)
	}
	if err := session.Start(clock.Now()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	session.Advance(clock.Now())
	session.Advance(clock.Now())
	act, err := svc.factory.CreateActivity(domain.ActivityMindfulnessSession, "fixed", "u1", domain.UserContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}
	if err := svc.arena.insert(&liveSession{session: session, service: act, user: domain.UserContext{UserID: "u1"}}); err != nil {
		t.Fatalf("insert() error = %v", err)
	}

	clock.Advance(5 * time.Second)
	resp, err := svc.ProcessInput(context.Background(), "fixed", "I noticed my shoulders relaxing a little.")
	if err != nil {
		t.Fatalf("ProcessInput() error = %v", err)
	}
	if resp.Step != 4 || resp.TotalSteps != 5 || resp.CompletionPercentage != 80 {
		t.Fatalf("expected step 4/5 at 80%%, got %#v", resp)
	}
	got, _ := svc.GetSession(context.Background(), "fixed")
	if len(got.Interactions) != 1 || got.Interactions[0].Content != "I noticed my shoulders relaxing a little." {
		t.Fatalf("unexpected interactions %#v", got.Interactions)
	}
	recent, _ := svc.telemetry.RecentEngagement(context.Background(), "fixed", 5)
	if len(recent) != 1 || recent[0].ResponseTimeSeconds != 5 {
		t.Fatalf("expected one pushed engagement sample, got %#v", recent)
	}
}

func TestProcessInputCapsAtFinalStep(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityGroundingTechnique, UserID: "u1"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	for range resp.TotalSteps + 3 {
		if resp, err = svc.ProcessInput(ctx, resp.SessionID, "I can see the window"); err != nil {
			t.Fatalf("ProcessInput() error = %v", err)
		}
	}
	if resp.Step != resp.TotalSteps || resp.CompletionPercentage != 100 {
		t.Fatalf("expected capped final step, got %#v", resp)
	}
}

func TestProcessInputErrors(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	if _, err := svc.ProcessInput(ctx, "missing", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u1"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	live, err := svc.arena.acquire(resp.SessionID)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	if _, err := svc.ProcessInput(ctx, resp.SessionID, "hi"); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	svc.arena.release(live)

	if _, err := svc.PauseSession(ctx, resp.SessionID); err != nil {
		t.Fatalf("PauseSession() error = %v", err)
	}
	if _, err := svc.ProcessInput(ctx, resp.SessionID, "hi"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition while paused, got %v", err)
	}
	if _, err := svc.ResumeSession(ctx, resp.SessionID); err != nil {
		t.Fatalf("ResumeSession() error = %v", err)
	}
	if _, err := svc.ResumeSession(ctx, resp.SessionID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition resuming active session, got %v", err)
	}
	if _, err := svc.ProcessInput(ctx, resp.SessionID, "hi"); err != nil {
		t.Fatalf("ProcessInput() after resume error = %v", err)
	}
}

func TestProcessInputCrisisLanguageSwitchesToSupport(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityMindfulnessSession, UserID: "u1"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	resp, err = svc.ProcessInput(ctx, resp.SessionID, "Honestly I just want to die")
	if err != nil {
		t.Fatalf("ProcessInput() error = %v", err)
	}
	if !resp.AdaptationTriggered || resp.Kind != activity.KindCrisisSupport {
		t.Fatalf("expected crisis adaptation, got %#v", resp)
	}
	if !strings.Contains(resp.Content, activity.HelplineTeleMANAS) {
		t.Fatalf("expected helpline in content, got %q", resp.Content)
	}
	session, _ := svc.GetSession(ctx, resp.SessionID)
	if len(session.Adaptations) != 1 || session.Adaptations[0].Kind != domain.AdaptationCrisisSupport {
		t.Fatalf("unexpected adaptations %#v", session.Adaptations)
	}

	if _, err := svc.ProcessInput(ctx, resp.SessionID, "I still want to die"); err != nil {
		t.Fatalf("ProcessInput() error = %v", err)
	}
	session, _ = svc.GetSession(ctx, resp.SessionID)
	if len(session.Adaptations) != 1 {
		t.Fatalf("expected crisis mode to be recorded once, got %d", len(session.Adaptations))
	}
}

func TestProcessInputAppliesDifficultyDecrease(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{Sessions: SessionTuning{AssessEveryTurns: 1}})
	ctx := context.Background()
	user := domain.UserContext{
		UserID:       "u1",
		CurrentState: domain.CurrentState{StressLevel: 9, EmotionalState: "overwhelmed"},
		Preferences:  domain.ActivityPreferences{Difficulty: domain.DifficultyIntermediate},
	}
	resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityMindfulnessSession, User: &user})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	resp, err = svc.ProcessInput(ctx, resp.SessionID, "ok")
	if err != nil {
		t.Fatalf("ProcessInput() error = %v", err)
	}
	if !resp.AdaptationTriggered {
		t.Fatalf("expected adaptation flag, got %#v", resp)
	}
	session, _ := svc.GetSession(ctx, resp.SessionID)
	if session.Configuration.Difficulty != domain.DifficultyBeginner {
		t.Fatalf("expected beginner after decrease, got %q", session.Configuration.Difficulty)
	}
	if session.TotalSteps != 4 || session.CurrentStep > session.TotalSteps {
		t.Fatalf("expected rescaled step count 4, got %d/%d", session.CurrentStep, session.TotalSteps)
	}
	last := session.Adaptations[len(session.Adaptations)-1]
	if last.Kind != domain.AdaptationDifficultyDecrease || last.Adjustment == nil || last.Adjustment.To != domain.DifficultyBeginner {
		t.Fatalf("unexpected adaptation record %#v", last)
	}
	if !strings.Contains(last.Before, "narration standard") ||
		!strings.Contains(last.After, "narration ") || strings.Contains(last.After, "narration standard") {
		t.Fatalf("expected narration mode change in audit record, got before %q after %q", last.Before, last.After)
	}
	if session.Parameters != last.Adjustment.Parameters {
		t.Fatalf("expected session parameters to follow the adjustment, got %#v", session.Parameters)
	}
	if session.Parameters.EmotionalIntensity != domain.IntensityGentle {
		t.Fatalf("expected gentle intensity under stress 9, got %q", session.Parameters.EmotionalIntensity)
	}
	if got := svc.DifficultyHistory(resp.SessionID); len(got) != 1 {
		t.Fatalf("expected one recorded decision, got %d", len(got))
	}
}

func TestProcessInputRecoversFromPanickingNarrator(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{Narrator: panicNarrator{}})
	ctx := context.Background()
	resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityGuidedConversation, UserID: "u1"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if !resp.Fallback {
		t.Fatalf("expected fallback opening, got %#v", resp)
	}
	resp, err = svc.ProcessInput(ctx, resp.SessionID, "hello")
	if err != nil {
		t.Fatalf("ProcessInput() error = %v", err)
	}
	if !resp.Fallback || resp.Content != supportiveFallback().Content {
		t.Fatalf("expected supportive fallback, got %#v", resp)
	}
	if resp.Step != 2 {
		t.Fatalf("expected step to advance despite fallback, got %d", resp.Step)
	}
}

func TestCompleteSessionPersistsAndSuggestsFollowUps(t *testing.T) {
	svc, profiles, recorder, clock := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityGroundingTechnique, UserID: "u1"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	for range resp.TotalSteps - 1 {
		clock.Advance(time.Minute)
		if _, err := svc.ProcessInput(ctx, resp.SessionID, "I can hear birds outside"); err != nil {
			t.Fatalf("ProcessInput() error = %v", err)
		}
	}
	result, err := svc.CompleteSession(ctx, resp.SessionID)
	if err != nil {
		t.Fatalf("CompleteSession() error = %v", err)
	}
	if result.Session.Status != domain.SessionCompleted || result.Completion != 100 {
		t.Fatalf("expected completed session, got %#v", result.Session)
	}
	if result.Duration != time.Duration(resp.TotalSteps-1)*time.Minute {
		t.Fatalf("unexpected duration %v", result.Duration)
	}
	for _, rec := range result.FollowUps {
		if rec.Type == domain.ActivityGroundingTechnique {
			t.Fatalf("follow-ups must exclude the finished activity: %#v", result.FollowUps)
		}
	}
	if len(recorder.sessions) != 1 || len(profiles.records) != 1 || !profiles.records[0].FullyCompleted() {
		t.Fatalf("expected session and progress persisted, got %d sessions %#v", len(recorder.sessions), profiles.records)
	}
	if _, err := svc.GetSession(ctx, resp.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session removed from arena, got %v", err)
	}
	if _, err := svc.CompleteSession(ctx, resp.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second completion, got %v", err)
	}
}

func TestCompleteSessionPartialAndPersistFailure(t *testing.T) {
	svc, profiles, _, _ := newTestService(t, ServiceConfig{})
	profiles.err = errors.New("disk full")
	ctx := context.Background()
	resp, err := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u1"})
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	result, err := svc.CompleteSession(ctx, resp.SessionID)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if result.Session.Status != domain.SessionPartiallyCompleted {
		t.Fatalf("expected partially completed, got %q", result.Session.Status)
	}
}

func TestAbandonAndSweepIdleSessions(t *testing.T) {
	svc, _, recorder, clock := newTestService(t, ServiceConfig{Sessions: SessionTuning{IdleTimeout: 10 * time.Minute}})
	ctx := context.Background()
	first, _ := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u1"})
	clock.Advance(8 * time.Minute)
	second, _ := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u2"})
	clock.Advance(5 * time.Minute)

	swept, err := svc.SweepIdleSessions(ctx)
	if err != nil {
		t.Fatalf("SweepIdleSessions() error = %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected one idle session swept, got %d", swept)
	}
	if _, err := svc.GetSession(ctx, first.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle session removed, got %v", err)
	}
	if _, err := svc.GetSession(ctx, second.SessionID); err != nil {
		t.Fatalf("expected recent session kept, got %v", err)
	}
	if len(recorder.sessions) != 1 || recorder.sessions[0].Status != domain.SessionAbandoned {
		t.Fatalf("expected abandoned session persisted, got %#v", recorder.sessions)
	}

	abandoned, err := svc.AbandonSession(ctx, second.SessionID)
	if err != nil || abandoned.Status != domain.SessionAbandoned || abandoned.EndedAt == nil {
		t.Fatalf("AbandonSession() = %#v, %v", abandoned, err)
	}
}

func TestRequestAdaptation(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	resp, _ := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityCBTExercise, UserID: "u1"})
	if _, err := svc.RequestAdaptation(ctx, resp.SessionID, "bogus", ""); err == nil {
		t.Fatal("expected unknown trigger error")
	}
	adaptation, err := svc.RequestAdaptation(ctx, resp.SessionID, domain.TriggerTimeConstraint, "Only five minutes left.")
	if err != nil {
		t.Fatalf("RequestAdaptation() error = %v", err)
	}
	if adaptation.Kind != domain.AdaptationDuration || !strings.Contains(adaptation.Rationale, "five minutes") {
		t.Fatalf("unexpected adaptation %#v", adaptation)
	}
}

func TestRecordEngagementAndListActive(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	a, _ := svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u1"})
	_, _ = svc.StartSession(ctx, StartSessionInput{Type: domain.ActivityBreathingExercise, UserID: "u2"})

	if err := svc.RecordEngagement(ctx, a.SessionID, domain.EngagementMetrics{FollowThrough: 2}); err != nil {
		t.Fatalf("RecordEngagement() error = %v", err)
	}
	recent, _ := svc.telemetry.RecentEngagement(ctx, a.SessionID, 5)
	if len(recent) != 1 || recent[0].FollowThrough != 1 {
		t.Fatalf("expected clamped sample, got %#v", recent)
	}
	if err := svc.RecordEngagement(ctx, "missing", domain.EngagementMetrics{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if got := svc.ListActiveSessions(ctx, "u1"); len(got) != 1 || got[0].UserID != "u1" {
		t.Fatalf("unexpected active sessions %#v", got)
	}
	if got := svc.ListActiveSessions(ctx, ""); len(got) != 2 {
		t.Fatalf("expected two active sessions, got %d", len(got))
	}
}

func TestSaveUserContextAndHistory(t *testing.T) {
	svc, profiles, _, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	saved, err := svc.SaveUserContext(ctx, domain.UserContext{UserID: " u1 ", History: domain.MentalHealthHistory{PrimaryConcerns: []string{"Work Stress"}}})
	if err != nil {
		t.Fatalf("SaveUserContext() error = %v", err)
	}
	if saved.UserID != "u1" || profiles.users["u1"].History.PrimaryConcerns[0] != "work_stress" {
		t.Fatalf("expected normalized profile, got %#v", profiles.users["u1"])
	}
	if _, err := svc.SaveUserContext(ctx, domain.UserContext{}); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.ListSessionHistory(ctx, "", 5); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	noStore := NewService(nil, nil, nil, nil, ServiceConfig{})
	if _, err := noStore.ListSessionHistory(ctx, "u1", 5); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestCrisisSupportPassthrough(t *testing.T) {
	svc, _, _, _ := newTestService(t, ServiceConfig{})
	recs, err := svc.Recommend(context.Background(), domain.RecommendationCriteria{
		User:    domain.UserContext{UserID: "u1"},
		Urgency: domain.UrgencyImmediate,
	})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected crisis recommendations")
	}
	for _, rec := range recs {
		if rec.Category != domain.CategoryCrisis || rec.Priority != 10 || rec.Urgency != domain.UrgencyImmediate {
			t.Fatalf("unexpected crisis recommendation %#v", rec)
		}
	}
}

func TestDetectCrisis(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"I want to die", true},
		{"thinking about SELF-HARM again", true},
		{"mujhe ab jeena nahi hai", true},
		{"I can't go on like this", true},
		{"I died laughing at that movie", false},
		{"this exercise is killing my knees", false},
		{"", false},
	}
	for _, tc := range cases {
		if _, got := detectCrisis(tc.input); got != tc.want {
			t.Fatalf("detectCrisis(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
