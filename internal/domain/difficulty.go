package domain

import "time"

// AdjustmentDirection is the outcome of one difficulty decision.
type AdjustmentDirection string

// AdjustmentDirection values.
const (
	AdjustIncrease AdjustmentDirection = "increase"
	AdjustDecrease AdjustmentDirection = "decrease"
	AdjustMaintain AdjustmentDirection = "maintain"
)

// Step moves one ordinal level in dir, clamped to the full scale.
func (d DifficultyLevel) Step(dir AdjustmentDirection) DifficultyLevel {
	ord := d.Ordinal()
	if ord < 0 {
		return d
	}
	switch dir {
	case AdjustIncrease:
		ord++
	case AdjustDecrease:
		ord--
	}
	if next, ok := DifficultyAt(ord); ok {
		return next
	}
	return d
}

// StepWithin moves one level in dir and clamps to the supported levels of one entry.
func (m ActivityMetadata) StepWithin(current DifficultyLevel, dir AdjustmentDirection) DifficultyLevel {
	current = m.NearestDifficulty(current)
	idx := -1
	for i, level := range m.DifficultyLevels {
		if level == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return current
	}
	switch dir {
	case AdjustIncrease:
		idx = min(idx+1, len(m.DifficultyLevels)-1)
	case AdjustDecrease:
		idx = max(idx-1, 0)
	}
	return m.DifficultyLevels[idx]
}

// DifficultyMetrics is the transient signal set one decision is based on.
type DifficultyMetrics struct {
	Performance      float64 `json:"performance"`
	Engagement       float64 `json:"engagement"`
	Comprehension    float64 `json:"comprehension"`
	StressLevel      int     `json:"stress_level"`
	CompletionRate   float64 `json:"completion_rate"`
	AdaptationCount  int     `json:"adaptation_count"`
	SampleCount      int     `json:"sample_count"`
	EngagementSpread float64 `json:"engagement_spread"`
}

// DifficultyParameters is the content shape for one level.
type DifficultyParameters struct {
	Complexity          int    `json:"complexity"`
	StepCount           int    `json:"step_count"`
	InteractionDepth    string `json:"interaction_depth"`
	ConceptualDemand    string `json:"conceptual_demand"`
	EmotionalIntensity  string `json:"emotional_intensity"`
	CulturalSensitivity int    `json:"cultural_sensitivity"`
	LanguageComplexity  string `json:"language_complexity"`
}

// Parameter labels.
const (
	DepthShallow  = "shallow"
	DepthModerate = "moderate"
	DepthDeep     = "deep"

	DemandLow    = "low"
	DemandMedium = "medium"
	DemandHigh   = "high"

	IntensityGentle   = "gentle"
	IntensityModerate = "moderate"
	IntensityIntense  = "intense"

	LanguageSimple   = "simple"
	LanguageStandard = "standard"
	LanguageAdvanced = "advanced"
)

// baseParameters is the fixed parameter table per level.
var baseParameters = map[DifficultyLevel]DifficultyParameters{
	DifficultyBeginner: {
		Complexity: 3, StepCount: 4, InteractionDepth: DepthShallow, ConceptualDemand: DemandLow,
		EmotionalIntensity: IntensityGentle, CulturalSensitivity: 8, LanguageComplexity: LanguageSimple,
	},
	DifficultyIntermediate: {
		Complexity: 6, StepCount: 6, InteractionDepth: DepthModerate, ConceptualDemand: DemandMedium,
		EmotionalIntensity: IntensityModerate, CulturalSensitivity: 7, LanguageComplexity: LanguageStandard,
	},
	DifficultyAdvanced: {
		Complexity: 9, StepCount: 8, InteractionDepth: DepthDeep, ConceptualDemand: DemandHigh,
		EmotionalIntensity: IntensityIntense, CulturalSensitivity: 6, LanguageComplexity: LanguageAdvanced,
	},
}

// BaseParameters returns the unmodified parameter set for a level.
func BaseParameters(level DifficultyLevel) DifficultyParameters {
	if p, ok := baseParameters[NormalizeDifficulty(level)]; ok {
		return p
	}
	return baseParameters[DifficultyBeginner]
}

// StepCountFor returns the base step count for a level.
func StepCountFor(level DifficultyLevel) int {
	return BaseParameters(level).StepCount
}

// DifficultyAdjustment is one proposed level change.
type DifficultyAdjustment struct {
	SessionID     string               `json:"session_id"`
	Direction     AdjustmentDirection  `json:"direction"`
	From          DifficultyLevel      `json:"from"`
	To            DifficultyLevel      `json:"to"`
	Trigger       AdaptationTrigger    `json:"trigger"`
	Metrics       DifficultyMetrics    `json:"metrics"`
	Parameters    DifficultyParameters `json:"parameters"`
	NewTotalSteps int                  `json:"new_total_steps"`
	Confidence    float64              `json:"confidence"`
	Rationale     string               `json:"rationale"`
	DecidedAt     time.Time            `json:"decided_at"`
}
