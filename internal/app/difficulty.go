package app

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hylla/manas/internal/domain"
)

// DifficultyEngine decides whether a session should get easier or harder.
type DifficultyEngine struct {
	catalog *Catalog
	tuning  DifficultyTuning
	clock   Clock

	mu      sync.Mutex
	history map[string][]domain.DifficultyAdjustment
}

// NewDifficultyEngine constructs an engine over one catalog.
func NewDifficultyEngine(catalog *Catalog, tuning DifficultyTuning, clock Clock) *DifficultyEngine {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if clock == nil {
		clock = time.Now
	}
	return &DifficultyEngine{
		catalog: catalog,
		tuning:  tuning.withDefaults(),
		clock:   clock,
		history: map[string][]domain.DifficultyAdjustment{},
	}
}

// Assess returns a one-step adjustment, or nil to maintain the current level.
func (e *DifficultyEngine) Assess(session domain.ActivitySession, user domain.UserContext, recent []domain.EngagementMetrics) *domain.DifficultyAdjustment {
	meta, err := e.catalog.Get(session.Type)
	if err != nil || session.TotalSteps < 1 {
		return nil
	}
	if len(recent) == 0 && len(session.Interactions) == 0 {
		return nil
	}

	metrics := e.Metrics(session, user, recent)
	dir, trigger, reasons := e.decide(metrics, meta, session.Configuration.Difficulty)
	if dir == domain.AdjustMaintain {
		return nil
	}
	from := meta.NearestDifficulty(session.Configuration.Difficulty)
	to := meta.StepWithin(from, dir)
	if to == from {
		return nil
	}

	adj := domain.DifficultyAdjustment{
		SessionID:     session.ID,
		Direction:     dir,
		From:          from,
		To:            to,
		Trigger:       trigger,
		Metrics:       metrics,
		Parameters:    e.Parameters(to, metrics.StressLevel, user),
		NewTotalSteps: e.rescaleStepCount(session.TotalSteps, dir),
		Confidence:    e.confidence(dir, metrics),
		Rationale:     fmt.Sprintf("Moving from %s to %s: %s.", from, to, strings.Join(reasons, "; ")),
		DecidedAt:     e.clock().UTC(),
	}
	e.remember(adj)
	return &adj
}

// Metrics computes the decision inputs for one session.
func (e *DifficultyEngine) Metrics(session domain.ActivitySession, user domain.UserContext, recent []domain.EngagementMetrics) domain.DifficultyMetrics {
	t := e.tuning
	sessionEngagement := session.EngagementFraction()
	engagement, ok := domain.AverageOverall(recent)
	if !ok {
		engagement = sessionEngagement
	}
	spread := clamp01(domain.OverallStdDev(recent))
	completion := clamp01(session.CompletionPercentage / 100)
	adaptationPenalty := math.Min(0.2, float64(len(session.Adaptations))*0.05)
	performance := 0.4*completion + 0.3*sessionEngagement + (0.2 - adaptationPenalty) + 0.1*(1-spread)

	responseTime, ok := domain.AverageResponseTime(recent)
	if !ok {
		responseTime = session.Metrics.ResponseTimeSeconds
	}
	rtFactor := 1.0
	switch {
	case responseTime <= 0:
	case responseTime < t.FastResponseSeconds:
		rtFactor = t.FastResponseFactor
	case responseTime > t.SlowResponseSeconds:
		rtFactor = math.Max(t.MinResponseFactor, 1-(responseTime-t.SlowResponseSeconds)*t.SlowDecayPerSecond)
	}
	comprehension := t.ResponseWeight*rtFactor + t.EngagementBlendWeight*engagement

	stress := session.Metrics.StressLevel
	if stress <= 0 {
		stress = user.CurrentState.StressLevel
	}
	return domain.DifficultyMetrics{
		Performance:      round2(clamp01(performance)),
		Engagement:       round2(clamp01(engagement)),
		Comprehension:    round2(clamp01(comprehension)),
		StressLevel:      stress,
		CompletionRate:   round2(completion),
		AdaptationCount:  len(session.Adaptations),
		SampleCount:      len(recent),
		EngagementSpread: round2(spread),
	}
}

// decide applies the decrease rules in priority order, then the increase rule.
func (e *DifficultyEngine) decide(m domain.DifficultyMetrics, meta domain.ActivityMetadata, current domain.DifficultyLevel) (domain.AdjustmentDirection, domain.AdaptationTrigger, []string) {
	t := e.tuning
	var reasons []string
	var trigger domain.AdaptationTrigger
	fire := func(cond bool, tr domain.AdaptationTrigger, reason string) {
		if !cond {
			return
		}
		if trigger == "" {
			trigger = tr
		}
		reasons = append(reasons, reason)
	}
	fire(m.Performance < t.DecreasePerformanceBelow, domain.TriggerLowEngagement,
		fmt.Sprintf("performance %.2f is below %.2f", m.Performance, t.DecreasePerformanceBelow))
	fire(m.Engagement < t.DecreaseEngagementBelow, domain.TriggerLowEngagement,
		fmt.Sprintf("engagement %.2f is below %.2f", m.Engagement, t.DecreaseEngagementBelow))
	fire(m.Comprehension < t.DecreaseComprehensionBelow, domain.TriggerComprehensionIssue,
		fmt.Sprintf("comprehension %.2f is below %.2f", m.Comprehension, t.DecreaseComprehensionBelow))
	fire(m.StressLevel > t.DecreaseStressAbove, domain.TriggerEmotionalDistress,
		fmt.Sprintf("stress %d is above %d", m.StressLevel, t.DecreaseStressAbove))
	if trigger != "" {
		return domain.AdjustDecrease, trigger, reasons
	}

	atCeiling := meta.NearestDifficulty(current) == meta.MaxDifficulty()
	if m.Performance > t.IncreasePerformanceAbove &&
		m.Engagement > t.IncreaseEngagementAbove &&
		m.Comprehension > t.IncreaseComprehensionAbove &&
		m.StressLevel <= t.IncreaseStressAtMost &&
		!atCeiling {
		return domain.AdjustIncrease, domain.TriggerHighPerformance, []string{
			fmt.Sprintf("performance %.2f, engagement %.2f and comprehension %.2f are all strong with stress at %d",
				m.Performance, m.Engagement, m.Comprehension, m.StressLevel),
		}
	}
	return domain.AdjustMaintain, "", nil
}

// Parameters builds the parameter set for a level with contextual overrides.
func (e *DifficultyEngine) Parameters(level domain.DifficultyLevel, stress int, user domain.UserContext) domain.DifficultyParameters {
	p := domain.BaseParameters(level)
	if stress > e.tuning.ParameterStressAbove {
		p.EmotionalIntensity = domain.IntensityGentle
		p.Complexity = max(1, p.Complexity-1)
	}
	if user.IsIndianContext() {
		p.CulturalSensitivity = max(p.CulturalSensitivity, 8)
	}
	switch {
	case user.Demographics.LanguagePreference == domain.LanguageHindi:
		p.LanguageComplexity = domain.LanguageSimple
	case user.IsBilingual() && p.LanguageComplexity == domain.LanguageAdvanced:
		p.LanguageComplexity = domain.LanguageStandard
	}
	return p
}

// rescaleStepCount scales a step total: floor for decrease (min 1), ceil for increase.
func (e *DifficultyEngine) rescaleStepCount(total int, dir domain.AdjustmentDirection) int {
	const eps = 1e-9
	switch dir {
	case domain.AdjustDecrease:
		return max(1, int(math.Floor(float64(total)*e.tuning.DecreaseScale+eps)))
	case domain.AdjustIncrease:
		return int(math.Ceil(float64(total)*e.tuning.IncreaseScale - eps))
	default:
		return total
	}
}

// confidence scores how sure the engine is of one decision.
func (e *DifficultyEngine) confidence(dir domain.AdjustmentDirection, m domain.DifficultyMetrics) float64 {
	t := e.tuning
	c := t.BaseConfidence
	switch dir {
	case domain.AdjustDecrease:
		if m.StressLevel > t.DecreaseStressAbove {
			c += 0.3
		}
		if m.Engagement < 0.3 {
			c += 0.2
		}
		if m.Comprehension < 0.4 {
			c += 0.2
		}
	case domain.AdjustIncrease:
		if m.Performance > t.IncreasePerformanceAbove {
			c += 0.2
		}
		if m.Engagement > 0.8 {
			c += 0.2
		}
		if m.AdaptationCount == 0 {
			c += 0.1
		}
	}
	if math.Abs(m.Performance-m.Engagement) > t.DisagreementSpread {
		c -= t.DisagreementPenalty
	}
	return round2(math.Max(t.MinConfidence, math.Min(t.MaxConfidence, c)))
}

// remember appends to the session's history, evicting the oldest past the limit.
func (e *DifficultyEngine) remember(adj domain.DifficultyAdjustment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := append(e.history[adj.SessionID], adj)
	if over := len(h) - e.tuning.HistoryLimit; over > 0 {
		h = append([]domain.DifficultyAdjustment(nil), h[over:]...)
	}
	e.history[adj.SessionID] = h
}

// History returns the recorded adjustments of one session, oldest first.
func (e *DifficultyEngine) History(sessionID string) []domain.DifficultyAdjustment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.DifficultyAdjustment(nil), e.history[sessionID]...)
}

// Forget drops the history of one session.
func (e *DifficultyEngine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.history, sessionID)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
