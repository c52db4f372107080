package app

import "time"

// DifficultyTuning holds every threshold the difficulty engine reads.
type DifficultyTuning struct {
	DecreasePerformanceBelow   float64
	DecreaseEngagementBelow    float64
	DecreaseComprehensionBelow float64
	DecreaseStressAbove        int

	IncreasePerformanceAbove   float64
	IncreaseEngagementAbove    float64
	IncreaseComprehensionAbove float64
	IncreaseStressAtMost       int

	ParameterStressAbove int

	FastResponseSeconds   float64
	SlowResponseSeconds   float64
	FastResponseFactor    float64
	SlowDecayPerSecond    float64
	MinResponseFactor     float64
	ResponseWeight        float64
	EngagementBlendWeight float64

	DecreaseScale float64
	IncreaseScale float64

	BaseConfidence      float64
	MinConfidence       float64
	MaxConfidence       float64
	DisagreementSpread  float64
	DisagreementPenalty float64

	HistoryLimit int
}

// DefaultDifficultyTuning returns the stock thresholds.
func DefaultDifficultyTuning() DifficultyTuning {
	return DifficultyTuning{
		DecreasePerformanceBelow:   0.4,
		DecreaseEngagementBelow:    0.4,
		DecreaseComprehensionBelow: 0.5,
		DecreaseStressAbove:        8,

		IncreasePerformanceAbove:   0.8,
		IncreaseEngagementAbove:    0.7,
		IncreaseComprehensionAbove: 0.8,
		IncreaseStressAtMost:       6,

		ParameterStressAbove: 7,

		FastResponseSeconds:   2,
		SlowResponseSeconds:   15,
		FastResponseFactor:    0.6,
		SlowDecayPerSecond:    0.05,
		MinResponseFactor:     0.2,
		ResponseWeight:        0.6,
		EngagementBlendWeight: 0.4,

		DecreaseScale: 0.8,
		IncreaseScale: 1.2,

		BaseConfidence:      0.5,
		MinConfidence:       0.3,
		MaxConfidence:       1,
		DisagreementSpread:  0.3,
		DisagreementPenalty: 0.1,

		HistoryLimit: 10,
	}
}

// withDefaults fills zero fields from the stock tuning.
func (t DifficultyTuning) withDefaults() DifficultyTuning {
	d := DefaultDifficultyTuning()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fillInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&t.DecreasePerformanceBelow, d.DecreasePerformanceBelow)
	fill(&t.DecreaseEngagementBelow, d.DecreaseEngagementBelow)
	fill(&t.DecreaseComprehensionBelow, d.DecreaseComprehensionBelow)
	fillInt(&t.DecreaseStressAbove, d.DecreaseStressAbove)
	fill(&t.IncreasePerformanceAbove, d.IncreasePerformanceAbove)
	fill(&t.IncreaseEngagementAbove, d.IncreaseEngagementAbove)
	fill(&t.IncreaseComprehensionAbove, d.IncreaseComprehensionAbove)
	fillInt(&t.IncreaseStressAtMost, d.IncreaseStressAtMost)
	fillInt(&t.ParameterStressAbove, d.ParameterStressAbove)
	fill(&t.FastResponseSeconds, d.FastResponseSeconds)
	fill(&t.SlowResponseSeconds, d.SlowResponseSeconds)
	fill(&t.FastResponseFactor, d.FastResponseFactor)
	fill(&t.SlowDecayPerSecond, d.SlowDecayPerSecond)
	fill(&t.MinResponseFactor, d.MinResponseFactor)
	fill(&t.ResponseWeight, d.ResponseWeight)
	fill(&t.EngagementBlendWeight, d.EngagementBlendWeight)
	fill(&t.DecreaseScale, d.DecreaseScale)
	fill(&t.IncreaseScale, d.IncreaseScale)
	fill(&t.BaseConfidence, d.BaseConfidence)
	fill(&t.MinConfidence, d.MinConfidence)
	fill(&t.MaxConfidence, d.MaxConfidence)
	fill(&t.DisagreementSpread, d.DisagreementSpread)
	fill(&t.DisagreementPenalty, d.DisagreementPenalty)
	fillInt(&t.HistoryLimit, d.HistoryLimit)
	return t
}

// RecommendationWeights holds the scoring weights of the recommender.
type RecommendationWeights struct {
	CulturalRelevance float64
	PreferredType     float64
	GoalMatch         float64
	ConcernMatch      float64
	UrgencyCrisis     float64
	UrgencyQuick      float64
	DurationMatch     float64
	DurationWindow    int
	QuickDuration     int
	NeedMatch         float64
	PhaseMatch        float64
	RecencyPenalty    float64
	RecencyWindow     int
	MaxScore          float64
	Limit             int
	QuickRelevance    int
	QuickPriority     float64
	CrisisPriority    float64
}

// DefaultRecommendationWeights returns the stock weights.
func DefaultRecommendationWeights() RecommendationWeights {
	return RecommendationWeights{
		CulturalRelevance: 0.2,
		PreferredType:     3,
		GoalMatch:         1.5,
		ConcernMatch:      2,
		UrgencyCrisis:     5,
		UrgencyQuick:      3,
		DurationMatch:     2,
		DurationWindow:    5,
		QuickDuration:     10,
		NeedMatch:         1.5,
		PhaseMatch:        2,
		RecencyPenalty:    1,
		RecencyWindow:     3,
		MaxScore:          10,
		Limit:             5,
		QuickRelevance:    7,
		QuickPriority:     8,
		CrisisPriority:    10,
	}
}

// withDefaults fills zero fields from the stock weights.
func (w RecommendationWeights) withDefaults() RecommendationWeights {
	d := DefaultRecommendationWeights()
	if w == (RecommendationWeights{}) {
		return d
	}
	if w.MaxScore <= 0 {
		w.MaxScore = d.MaxScore
	}
	if w.Limit <= 0 {
		w.Limit = d.Limit
	}
	if w.DurationWindow <= 0 {
		w.DurationWindow = d.DurationWindow
	}
	if w.QuickDuration <= 0 {
		w.QuickDuration = d.QuickDuration
	}
	if w.RecencyWindow <= 0 {
		w.RecencyWindow = d.RecencyWindow
	}
	if w.QuickRelevance <= 0 {
		w.QuickRelevance = d.QuickRelevance
	}
	if w.QuickPriority <= 0 {
		w.QuickPriority = d.QuickPriority
	}
	if w.CrisisPriority <= 0 {
		w.CrisisPriority = d.CrisisPriority
	}
	return w
}

// SessionTuning holds session-controller limits.
type SessionTuning struct {
	MaxActive        int
	IdleTimeout      time.Duration
	AssessEveryTurns int
	NarrationTimeout time.Duration
	TelemetryWindow  int
}

// DefaultSessionTuning returns the stock session limits.
func DefaultSessionTuning() SessionTuning {
	return SessionTuning{
		MaxActive:        256,
		IdleTimeout:      30 * time.Minute,
		AssessEveryTurns: 2,
		NarrationTimeout: 20 * time.Second,
		TelemetryWindow:  5,
	}
}

// withDefaults fills zero fields from the stock limits.
func (t SessionTuning) withDefaults() SessionTuning {
	d := DefaultSessionTuning()
	if t.MaxActive <= 0 {
		t.MaxActive = d.MaxActive
	}
	if t.IdleTimeout <= 0 {
		t.IdleTimeout = d.IdleTimeout
	}
	if t.AssessEveryTurns <= 0 {
		t.AssessEveryTurns = d.AssessEveryTurns
	}
	if t.NarrationTimeout <= 0 {
		t.NarrationTimeout = d.NarrationTimeout
	}
	if t.TelemetryWindow <= 0 {
		t.TelemetryWindow = d.TelemetryWindow
	}
	return t
}
