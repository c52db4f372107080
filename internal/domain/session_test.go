package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestSession(t *testing.T, total int) ActivitySession {
	t.Helper()
	s, err := NewActivitySession(SessionInput{
		ID:       "s1",
		UserID:   "u1",
		Category: CategoryMindfulness,
		Configuration: ActivityConfiguration{
			Type:       ActivityBreathingExercise,
			Difficulty: DifficultyBeginner,
		},
		TotalSteps: total,
	}, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewActivitySession() error = %v", err)
	}
	return s
}

func TestNewActivitySessionValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewActivitySession(SessionInput{UserID: "u"}, now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	_, err := NewActivitySession(SessionInput{ID: "s", UserID: "u", Category: CategoryCrisis, TotalSteps: 0}, now)
	if err != ErrInvalidStepCount {
		t.Fatalf("expected ErrInvalidStepCount, got %v", err)
	}
}

func TestSessionTransitions(t *testing.T) {
	cases := []struct {
		from SessionStatus
		to   SessionStatus
		ok   bool
	}{
		{SessionNotStarted, SessionActive, true},
		{SessionNotStarted, SessionPaused, false},
		{SessionActive, SessionPaused, true},
		{SessionPaused, SessionActive, true},
		{SessionPaused, SessionAbandoned, true},
		{SessionActive, SessionCompleted, true},
		{SessionActive, SessionPartiallyCompleted, true},
		{SessionCompleted, SessionActive, false},
		{SessionAbandoned, SessionActive, false},
		{SessionPartiallyCompleted, SessionPaused, false},
	}
	for _, tc := range cases {
		s := ActivitySession{Status: tc.from}
		err := s.Transition(tc.to, time.Now())
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		if tc.ok && tc.to.IsTerminal() && s.EndedAt == nil {
			t.Fatalf("%s -> %s: expected ended_at", tc.from, tc.to)
		}
	}
}

func TestAdvanceCapsAndCompletionMonotonic(t *testing.T) {
	s := newTestSession(t, 4)
	now := time.Now()
	if err := s.Start(now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.CurrentStep != 1 || s.CompletionPercentage != 25 {
		t.Fatalf("unexpected start state step=%d pct=%v", s.CurrentStep, s.CompletionPercentage)
	}
	prev := s.CompletionPercentage
	for range 10 {
		s.Advance(now)
		if s.CompletionPercentage < prev {
			t.Fatalf("completion decreased %v -> %v", prev, s.CompletionPercentage)
		}
		if s.CurrentStep > s.TotalSteps {
			t.Fatalf("step %d exceeds total %d", s.CurrentStep, s.TotalSteps)
		}
		prev = s.CompletionPercentage
	}
	if s.CompletionPercentage != 100 {
		t.Fatalf("expected 100, got %v", s.CompletionPercentage)
	}
}

func TestRescaleStepsKeepsCompletionHighWater(t *testing.T) {
	s := newTestSession(t, 4)
	now := time.Now()
	_ = s.Start(now)
	s.Advance(now)
	if s.CompletionPercentage != 50 {
		t.Fatalf("expected 50, got %v", s.CompletionPercentage)
	}
	s.RescaleSteps(5)
	if s.CompletionPercentage != 50 {
		t.Fatalf("expected completion to hold at 50, got %v", s.CompletionPercentage)
	}
	s.RescaleSteps(1)
	if s.CurrentStep != 1 || s.CompletionPercentage != 100 {
		t.Fatalf("expected clamp to step 1 at 100%%, got step=%d pct=%v", s.CurrentStep, s.CompletionPercentage)
	}
}

func TestLogsStayTimestampOrdered(t *testing.T) {
	s := newTestSession(t, 4)
	later := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.AppendInteraction("first", later)
	s.AppendInteraction("second", later.Add(-time.Minute))
	if s.Interactions[1].At.Before(s.Interactions[0].At) {
		t.Fatal("expected interaction log to stay ordered")
	}
	s.AppendAdaptation(ActivityAdaptation{At: later, Trigger: TriggerUserRequest})
	s.AppendAdaptation(ActivityAdaptation{At: later.Add(-time.Hour), Trigger: TriggerUserRequest})
	if s.Adaptations[1].At.Before(s.Adaptations[0].At) {
		t.Fatal("expected adaptation log to stay ordered")
	}
}

func TestConfigurationWithDifficultyDoesNotAlias(t *testing.T) {
	cfg := ActivityConfiguration{
		Type:                ActivityBodyScan,
		Difficulty:          DifficultyIntermediate,
		CulturalAdaptations: []string{TagHindi},
	}
	next := cfg.WithDifficulty(DifficultyBeginner, time.Now())
	next.CulturalAdaptations[0] = TagBilingual
	if cfg.Difficulty != DifficultyIntermediate || cfg.CulturalAdaptations[0] != TagHindi {
		t.Fatalf("expected original configuration untouched, got %#v", cfg)
	}
}

func TestUserContextNormalize(t *testing.T) {
	u := UserContext{
		UserID:       " u1 ",
		Demographics: Demographics{CulturalBackground: "Indian", LanguagePreference: "Hinglish"},
		History:      MentalHealthHistory{RiskFactors: []string{"Severe Psychosis"}},
		CurrentState: CurrentState{StressLevel: 9, EmotionalState: "Anxious"},
		Progress:     TherapeuticProgress{CompletedTypes: []ActivityType{"a", "b", "c", "d"}},
	}
	if err := u.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !u.IsIndianContext() || !u.IsBilingual() {
		t.Fatalf("unexpected demographics %#v", u.Demographics)
	}
	if !u.HasRiskFactor("severe_psychosis") {
		t.Fatalf("expected risk factor, got %#v", u.History.RiskFactors)
	}
	if got := u.RecentlyCompleted(3); len(got) != 3 || got[0] != "b" {
		t.Fatalf("unexpected recent completions %#v", got)
	}
	bad := UserContext{CurrentState: CurrentState{StressLevel: 11}}
	if err := bad.Normalize(); err != ErrInvalidStressLevel {
		t.Fatalf("expected ErrInvalidStressLevel, got %v", err)
	}
}

func TestEngagementMetricsDerivesOverall(t *testing.T) {
	m := NewEngagementMetrics(EngagementMetrics{FollowThrough: 1, EmotionalExpression: 1, QuestionAsking: 1, MessageLength: 400}, time.Now())
	if math.Abs(m.Overall-1) > 1e-9 {
		t.Fatalf("expected overall 1, got %v", m.Overall)
	}
	explicit := NewEngagementMetrics(EngagementMetrics{Overall: 0.2}, time.Now())
	if explicit.Overall != 0.2 {
		t.Fatalf("expected explicit overall kept, got %v", explicit.Overall)
	}
	if OverallStdDev([]EngagementMetrics{{Overall: 0.2}, {Overall: 0.2}}) != 0 {
		t.Fatal("expected zero spread for identical samples")
	}
}
