package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of one activity session.
type SessionStatus string

// SessionStatus values.
const (
	SessionNotStarted         SessionStatus = "not_started"
	SessionActive             SessionStatus = "active"
	SessionPaused             SessionStatus = "paused"
	SessionCompleted          SessionStatus = "completed"
	SessionPartiallyCompleted SessionStatus = "partially_completed"
	SessionAbandoned          SessionStatus = "abandoned"
)

// sessionTransitions lists the allowed next states per state.
var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionNotStarted: {SessionActive, SessionAbandoned},
	SessionActive:     {SessionPaused, SessionCompleted, SessionPartiallyCompleted, SessionAbandoned},
	SessionPaused:     {SessionActive, SessionCompleted, SessionPartiallyCompleted, SessionAbandoned},
}

// IsTerminal reports whether no further transitions are allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionPartiallyCompleted || s == SessionAbandoned
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to SessionStatus) bool {
	return slices.Contains(sessionTransitions[from], to)
}

// AdaptationTrigger names the signal that caused an adaptation.
type AdaptationTrigger string

// AdaptationTrigger values.
const (
	TriggerLowEngagement      AdaptationTrigger = "low_engagement"
	TriggerHighPerformance    AdaptationTrigger = "high_performance"
	TriggerEmotionalDistress  AdaptationTrigger = "emotional_distress"
	TriggerComprehensionIssue AdaptationTrigger = "comprehension_issue"
	TriggerCulturalMismatch   AdaptationTrigger = "cultural_mismatch"
	TriggerCrisisDetected     AdaptationTrigger = "crisis_detected"
	TriggerTimeConstraint     AdaptationTrigger = "time_constraint"
	TriggerUserRequest        AdaptationTrigger = "user_request"
)

// validAdaptationTriggers stores supported trigger values.
var validAdaptationTriggers = []AdaptationTrigger{
	TriggerLowEngagement,
	TriggerHighPerformance,
	TriggerEmotionalDistress,
	TriggerComprehensionIssue,
	TriggerCulturalMismatch,
	TriggerCrisisDetected,
	TriggerTimeConstraint,
	TriggerUserRequest,
}

// NormalizeAdaptationTrigger canonicalizes a trigger value.
func NormalizeAdaptationTrigger(t AdaptationTrigger) AdaptationTrigger {
	return AdaptationTrigger(strings.TrimSpace(strings.ToLower(string(t))))
}

// IsValidAdaptationTrigger reports whether a trigger is supported.
func IsValidAdaptationTrigger(t AdaptationTrigger) bool {
	return slices.Contains(validAdaptationTriggers, NormalizeAdaptationTrigger(t))
}

// AdaptationTriggers returns the supported triggers in declaration order.
func AdaptationTriggers() []AdaptationTrigger {
	return slices.Clone(validAdaptationTriggers)
}

// AdaptationKind names what an adaptation changed.
type AdaptationKind string

// AdaptationKind values.
const (
	AdaptationDifficultyDecrease AdaptationKind = "difficulty_decrease"
	AdaptationDifficultyIncrease AdaptationKind = "difficulty_increase"
	AdaptationPacing             AdaptationKind = "pacing_adjustment"
	AdaptationContent            AdaptationKind = "content_modification"
	AdaptationCultural           AdaptationKind = "cultural_adjustment"
	AdaptationCrisisSupport      AdaptationKind = "crisis_support"
	AdaptationDuration           AdaptationKind = "duration_change"
)

// ActivityAdaptation is one append-only audit record on a session.
type ActivityAdaptation struct {
	At            time.Time             `json:"at"`
	Trigger       AdaptationTrigger     `json:"trigger"`
	Kind          AdaptationKind        `json:"kind"`
	Before        string                `json:"before"`
	After         string                `json:"after"`
	Rationale     string                `json:"rationale"`
	Effectiveness *float64              `json:"effectiveness,omitempty"`
	Adjustment    *DifficultyAdjustment `json:"adjustment,omitempty"`
}

// RealtimeMetrics is the running in-session snapshot.
type RealtimeMetrics struct {
	EmotionalState      string  `json:"emotional_state,omitempty"`
	StressLevel         int     `json:"stress_level,omitempty"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
	Comprehension       float64 `json:"comprehension"`
	Participation       float64 `json:"participation"`
}

// Interaction is one timestamped log entry.
type Interaction struct {
	At      time.Time `json:"at"`
	Step    int       `json:"step"`
	Content string    `json:"content"`
}

// ActivitySession is the in-progress state of one activity.
type ActivitySession struct {
	ID                   string                `json:"id"`
	UserID               string                `json:"user_id"`
	Type                 ActivityType          `json:"type"`
	Category             ActivityCategory      `json:"category"`
	Configuration        ActivityConfiguration `json:"configuration"`
	Parameters           DifficultyParameters  `json:"parameters"`
	Status               SessionStatus         `json:"status"`
	StartedAt            time.Time             `json:"started_at"`
	EndedAt              *time.Time            `json:"ended_at,omitempty"`
	LastActivityAt       time.Time             `json:"last_activity_at"`
	CurrentStep          int                   `json:"current_step"`
	TotalSteps           int                   `json:"total_steps"`
	EngagementScore      float64               `json:"engagement_score"`
	CompletionPercentage float64               `json:"completion_percentage"`
	Adaptations          []ActivityAdaptation  `json:"adaptations,omitempty"`
	Metrics              RealtimeMetrics       `json:"metrics"`
	Interactions         []Interaction         `json:"interactions,omitempty"`
	Responses            []Interaction         `json:"responses,omitempty"`
	TurnsSinceAssessment int                   `json:"turns_since_assessment"`
}

// SessionInput holds values for creating a session.
type SessionInput struct {
	ID            string
	UserID        string
	Category      ActivityCategory
	Configuration ActivityConfiguration
	Parameters    DifficultyParameters
	TotalSteps    int
	StressLevel   int
	Emotional     string
}

// DefaultEngagementScore is the neutral starting engagement on the 1-10 scale.
const DefaultEngagementScore = 5

// NewActivitySession constructs a not-yet-started session.
func NewActivitySession(in SessionInput, now time.Time) (ActivitySession, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.ID == "" || in.UserID == "" {
		return ActivitySession{}, ErrInvalidID
	}
	if in.TotalSteps < 1 {
		return ActivitySession{}, ErrInvalidStepCount
	}
	in.Category = NormalizeCategory(in.Category)
	if !IsValidCategory(in.Category) {
		return ActivitySession{}, ErrInvalidCategory
	}
	if NormalizeActivityType(in.Configuration.Type) == "" {
		return ActivitySession{}, ErrInvalidActivityType
	}
	ts := now.UTC()
	return ActivitySession{
		ID:              in.ID,
		UserID:          in.UserID,
		Type:            NormalizeActivityType(in.Configuration.Type),
		Category:        in.Category,
		Configuration:   in.Configuration.Clone(),
		Parameters:      in.Parameters,
		Status:          SessionNotStarted,
		StartedAt:       ts,
		LastActivityAt:  ts,
		CurrentStep:     0,
		TotalSteps:      in.TotalSteps,
		EngagementScore: DefaultEngagementScore,
		Metrics: RealtimeMetrics{
			EmotionalState: normalizeTag(in.Emotional),
			StressLevel:    in.StressLevel,
		},
	}, nil
}

// Transition moves the session to another status.
func (s *ActivitySession) Transition(to SessionStatus, now time.Time) error {
	if !CanTransition(s.Status, to) {
		return ErrInvalidTransition
	}
	ts := now.UTC()
	s.Status = to
	s.LastActivityAt = ts
	if to.IsTerminal() {
		s.EndedAt = &ts
	}
	return nil
}

// Start activates a fresh session at step one.
func (s *ActivitySession) Start(now time.Time) error {
	if err := s.Transition(SessionActive, now); err != nil {
		return err
	}
	s.CurrentStep = 1
	s.refreshCompletion()
	return nil
}

// Advance moves one step forward, capped at TotalSteps.
func (s *ActivitySession) Advance(now time.Time) {
	if s.CurrentStep < s.TotalSteps {
		s.CurrentStep++
	}
	s.LastActivityAt = now.UTC()
	s.refreshCompletion()
}

// RescaleSteps replaces the total step count and clamps the current step.
func (s *ActivitySession) RescaleSteps(total int) {
	if total < 1 {
		total = 1
	}
	s.TotalSteps = total
	if s.CurrentStep > s.TotalSteps {
		s.CurrentStep = s.TotalSteps
	}
	s.refreshCompletion()
}

// IsFinalStep reports whether the session sits on its last step.
func (s ActivitySession) IsFinalStep() bool {
	return s.CurrentStep >= s.TotalSteps
}

// StepsRemaining reports how many steps are left.
func (s ActivitySession) StepsRemaining() int {
	return max(0, s.TotalSteps-s.CurrentStep)
}

// refreshCompletion keeps CompletionPercentage as a high-water mark in [0,100].
func (s *ActivitySession) refreshCompletion() {
	derived := 0.0
	if s.TotalSteps > 0 {
		derived = float64(s.CurrentStep) / float64(s.TotalSteps) * 100
	}
	derived = math.Round(derived*100) / 100
	s.CompletionPercentage = clampFloat(max(s.CompletionPercentage, derived), 0, 100)
}

// AppendInteraction logs one user input.
func (s *ActivitySession) AppendInteraction(content string, now time.Time) {
	s.Interactions = append(s.Interactions, Interaction{At: monotonicAfter(s.Interactions, now), Step: s.CurrentStep, Content: content})
	s.LastActivityAt = now.UTC()
}

// AppendResponse logs one engine output.
func (s *ActivitySession) AppendResponse(content string, now time.Time) {
	s.Responses = append(s.Responses, Interaction{At: monotonicAfter(s.Responses, now), Step: s.CurrentStep, Content: content})
}

// AppendAdaptation records one adaptation, keeping timestamps ordered.
func (s *ActivitySession) AppendAdaptation(a ActivityAdaptation) {
	a.At = a.At.UTC()
	if n := len(s.Adaptations); n > 0 && a.At.Before(s.Adaptations[n-1].At) {
		a.At = s.Adaptations[n-1].At
	}
	s.Adaptations = append(s.Adaptations, a)
}

// ApplyConfiguration swaps in a new configuration value.
func (s *ActivitySession) ApplyConfiguration(cfg ActivityConfiguration) {
	s.Configuration = cfg.Clone()
}

// EffectiveParameters returns the session's tuned parameters, or the level's base set when none were tuned.
func (s ActivitySession) EffectiveParameters() DifficultyParameters {
	if s.Parameters == (DifficultyParameters{}) {
		return BaseParameters(s.Configuration.Difficulty)
	}
	return s.Parameters
}

// SetEngagement stores a 1-10 engagement score.
func (s *ActivitySession) SetEngagement(score float64) {
	s.EngagementScore = clampFloat(score, 1, 10)
}

// EngagementFraction returns the running engagement normalized to [0,1].
func (s ActivitySession) EngagementFraction() float64 {
	return clampFloat(s.EngagementScore/10, 0, 1)
}

// Clone returns a deep copy of the session.
func (s ActivitySession) Clone() ActivitySession {
	s.Configuration = s.Configuration.Clone()
	if s.EndedAt != nil {
		ended := *s.EndedAt
		s.EndedAt = &ended
	}
	s.Adaptations = slices.Clone(s.Adaptations)
	s.Interactions = slices.Clone(s.Interactions)
	s.Responses = slices.Clone(s.Responses)
	return s
}

// monotonicAfter returns now in UTC, never earlier than the last log entry.
func monotonicAfter(log []Interaction, now time.Time) time.Time {
	ts := now.UTC()
	if n := len(log); n > 0 && ts.Before(log[n-1].At) {
		return log[n-1].At
	}
	return ts
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
