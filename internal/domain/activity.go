package domain

import (
	"fmt"
	"slices"
	"strings"
)

// ActivityType identifies one catalog entry.
type ActivityType string

// Built-in activity types.
const (
	ActivityBreathingExercise  ActivityType = "breathing_exercise"
	ActivityMindfulnessSession ActivityType = "mindfulness_session"
	ActivityBodyScan           ActivityType = "body_scan"
	ActivityGratitudeJournal   ActivityType = "gratitude_journal"
	ActivityCBTExercise        ActivityType = "cbt_exercise"
	ActivityThoughtChallenge   ActivityType = "thought_challenge"
	ActivityCognitiveReframing ActivityType = "cognitive_reframing"
	ActivityGuidedConversation ActivityType = "guided_conversation"
	ActivityFamilyDialogue     ActivityType = "family_dialogue"
	ActivityMoodAssessment     ActivityType = "mood_assessment"
	ActivityStressAssessment   ActivityType = "stress_assessment"
	ActivityCrisisIntervention ActivityType = "crisis_intervention"
	ActivityGroundingTechnique ActivityType = "grounding_technique"
)

// ActivityCategory groups activity types that share one service variant.
type ActivityCategory string

// ActivityCategory values.
const (
	CategoryConversation ActivityCategory = "conversation"
	CategoryCognitive    ActivityCategory = "cognitive"
	CategoryMindfulness  ActivityCategory = "mindfulness"
	CategoryAssessment   ActivityCategory = "assessment"
	CategoryCrisis       ActivityCategory = "crisis"
)

// validCategories stores all supported category values.
var validCategories = []ActivityCategory{
	CategoryConversation,
	CategoryCognitive,
	CategoryMindfulness,
	CategoryAssessment,
	CategoryCrisis,
}

// DifficultyLevel is the ordinal difficulty scale.
type DifficultyLevel string

// DifficultyLevel values in ascending order.
const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// orderedDifficulties stores difficulty levels from easiest to hardest.
var orderedDifficulties = []DifficultyLevel{
	DifficultyBeginner,
	DifficultyIntermediate,
	DifficultyAdvanced,
}

// Ordinal returns the zero-based rank of the level, or -1 when unknown.
func (d DifficultyLevel) Ordinal() int {
	return slices.Index(orderedDifficulties, NormalizeDifficulty(d))
}

// IsValid reports whether the level is one of the known values.
func (d DifficultyLevel) IsValid() bool {
	return d.Ordinal() >= 0
}

// DifficultyAt returns the level at one ordinal rank.
func DifficultyAt(ordinal int) (DifficultyLevel, bool) {
	if ordinal < 0 || ordinal >= len(orderedDifficulties) {
		return "", false
	}
	return orderedDifficulties[ordinal], true
}

// NormalizeDifficulty canonicalizes one difficulty value.
func NormalizeDifficulty(d DifficultyLevel) DifficultyLevel {
	return DifficultyLevel(strings.TrimSpace(strings.ToLower(string(d))))
}

// NormalizeActivityType canonicalizes activity type identifiers for lookup.
func NormalizeActivityType(t ActivityType) ActivityType {
	return ActivityType(strings.TrimSpace(strings.ToLower(string(t))))
}

// NormalizeCategory canonicalizes one category value.
func NormalizeCategory(c ActivityCategory) ActivityCategory {
	return ActivityCategory(strings.TrimSpace(strings.ToLower(string(c))))
}

// IsValidCategory reports whether a category is supported.
func IsValidCategory(c ActivityCategory) bool {
	return slices.Contains(validCategories, NormalizeCategory(c))
}

// Categories returns the supported categories in declaration order.
func Categories() []ActivityCategory {
	return slices.Clone(validCategories)
}

// ActivityMetadata stores one immutable catalog entry.
type ActivityMetadata struct {
	Type              ActivityType      `json:"type"`
	DisplayName       string            `json:"display_name"`
	Description       string            `json:"description,omitempty"`
	Category          ActivityCategory  `json:"category"`
	CulturalRelevance int               `json:"cultural_relevance"`
	DifficultyLevels  []DifficultyLevel `json:"difficulty_levels"`
	DurationOptions   []int             `json:"duration_options"`
	Prerequisites     []ActivityType    `json:"prerequisites,omitempty"`
	Contraindications []string          `json:"contraindications,omitempty"`
	TherapeuticGoals  []string          `json:"therapeutic_goals"`
	TargetedSkills    []string          `json:"targeted_skills"`
}

// ActivityMetadataInput holds write-time values for catalog registration.
type ActivityMetadataInput struct {
	Type              ActivityType
	DisplayName       string
	Description       string
	Category          ActivityCategory
	CulturalRelevance int
	DifficultyLevels  []DifficultyLevel
	DurationOptions   []int
	Prerequisites     []ActivityType
	Contraindications []string
	TherapeuticGoals  []string
	TargetedSkills    []string
}

// NewActivityMetadata validates and normalizes one catalog entry.
func NewActivityMetadata(in ActivityMetadataInput) (ActivityMetadata, error) {
	in.Type = NormalizeActivityType(in.Type)
	if in.Type == "" {
		return ActivityMetadata{}, ErrInvalidActivityType
	}
	in.Category = NormalizeCategory(in.Category)
	if !IsValidCategory(in.Category) {
		return ActivityMetadata{}, fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	if in.CulturalRelevance < 1 || in.CulturalRelevance > 10 {
		return ActivityMetadata{}, fmt.Errorf("%w: %d", ErrInvalidCulturalRelevance, in.CulturalRelevance)
	}

	levels, err := normalizeDifficultyLevels(in.DifficultyLevels)
	if err != nil {
		return ActivityMetadata{}, err
	}
	if len(levels) == 0 {
		return ActivityMetadata{}, fmt.Errorf("%w: at least one level is required", ErrInvalidDifficulty)
	}

	durations, err := normalizeDurations(in.DurationOptions)
	if err != nil {
		return ActivityMetadata{}, err
	}

	prereqs := make([]ActivityType, 0, len(in.Prerequisites))
	for _, raw := range in.Prerequisites {
		p := NormalizeActivityType(raw)
		if p == "" || p == in.Type || slices.Contains(prereqs, p) {
			continue
		}
		prereqs = append(prereqs, p)
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = string(in.Type)
	}

	return ActivityMetadata{
		Type:              in.Type,
		DisplayName:       displayName,
		Description:       strings.TrimSpace(in.Description),
		Category:          in.Category,
		CulturalRelevance: in.CulturalRelevance,
		DifficultyLevels:  levels,
		DurationOptions:   durations,
		Prerequisites:     prereqs,
		Contraindications: NormalizeTags(in.Contraindications),
		TherapeuticGoals:  NormalizeTags(in.TherapeuticGoals),
		TargetedSkills:    NormalizeTags(in.TargetedSkills),
	}, nil
}

// Clone returns a deep copy so callers cannot mutate catalog state.
func (m ActivityMetadata) Clone() ActivityMetadata {
	m.DifficultyLevels = slices.Clone(m.DifficultyLevels)
	m.DurationOptions = slices.Clone(m.DurationOptions)
	m.Prerequisites = slices.Clone(m.Prerequisites)
	m.Contraindications = slices.Clone(m.Contraindications)
	m.TherapeuticGoals = slices.Clone(m.TherapeuticGoals)
	m.TargetedSkills = slices.Clone(m.TargetedSkills)
	return m
}

// Equal reports whether two entries carry the same definition.
func (m ActivityMetadata) Equal(other ActivityMetadata) bool {
	return m.Type == other.Type &&
		m.DisplayName == other.DisplayName &&
		m.Description == other.Description &&
		m.Category == other.Category &&
		m.CulturalRelevance == other.CulturalRelevance &&
		slices.Equal(m.DifficultyLevels, other.DifficultyLevels) &&
		slices.Equal(m.DurationOptions, other.DurationOptions) &&
		slices.Equal(m.Prerequisites, other.Prerequisites) &&
		slices.Equal(m.Contraindications, other.Contraindications) &&
		slices.Equal(m.TherapeuticGoals, other.TherapeuticGoals) &&
		slices.Equal(m.TargetedSkills, other.TargetedSkills)
}

// SupportsDifficulty reports whether the entry offers one difficulty level.
func (m ActivityMetadata) SupportsDifficulty(level DifficultyLevel) bool {
	return slices.Contains(m.DifficultyLevels, NormalizeDifficulty(level))
}

// MinDifficulty returns the floor of the supported levels.
func (m ActivityMetadata) MinDifficulty() DifficultyLevel {
	if len(m.DifficultyLevels) == 0 {
		return DifficultyBeginner
	}
	return m.DifficultyLevels[0]
}

// MaxDifficulty returns the ceiling of the supported levels.
func (m ActivityMetadata) MaxDifficulty() DifficultyLevel {
	if len(m.DifficultyLevels) == 0 {
		return DifficultyBeginner
	}
	return m.DifficultyLevels[len(m.DifficultyLevels)-1]
}

// NearestDifficulty picks the supported level closest to the wanted one; ties resolve downward.
func (m ActivityMetadata) NearestDifficulty(want DifficultyLevel) DifficultyLevel {
	want = NormalizeDifficulty(want)
	if m.SupportsDifficulty(want) {
		return want
	}
	target := want.Ordinal()
	if target < 0 {
		return m.MinDifficulty()
	}
	best := m.MinDifficulty()
	bestDist := len(orderedDifficulties) + 1
	for _, level := range m.DifficultyLevels {
		dist := absInt(level.Ordinal() - target)
		if dist < bestDist {
			best = level
			bestDist = dist
		}
	}
	return best
}

// MinDuration returns the shortest duration option in minutes.
func (m ActivityMetadata) MinDuration() int {
	if len(m.DurationOptions) == 0 {
		return 0
	}
	return m.DurationOptions[0]
}

// MaxDuration returns the longest duration option in minutes.
func (m ActivityMetadata) MaxDuration() int {
	if len(m.DurationOptions) == 0 {
		return 0
	}
	return m.DurationOptions[len(m.DurationOptions)-1]
}

// ClosestDuration picks the option nearest to the wanted minutes; ties resolve to the shorter one.
func (m ActivityMetadata) ClosestDuration(minutes int) int {
	if len(m.DurationOptions) == 0 {
		return 0
	}
	if minutes <= 0 {
		return m.DurationOptions[0]
	}
	best := m.DurationOptions[0]
	for _, option := range m.DurationOptions[1:] {
		if absInt(option-minutes) < absInt(best-minutes) {
			best = option
		}
	}
	return best
}

// HasDurationWithin reports whether some option is at most the given minutes.
func (m ActivityMetadata) HasDurationWithin(minutes int) bool {
	return len(m.DurationOptions) > 0 && m.DurationOptions[0] <= minutes
}

// normalizeDifficultyLevels validates, de-duplicates, and orders difficulty levels.
func normalizeDifficultyLevels(in []DifficultyLevel) ([]DifficultyLevel, error) {
	seen := map[DifficultyLevel]struct{}{}
	for _, raw := range in {
		level := NormalizeDifficulty(raw)
		if level == "" {
			continue
		}
		if !level.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, level)
		}
		seen[level] = struct{}{}
	}
	out := make([]DifficultyLevel, 0, len(seen))
	for _, level := range orderedDifficulties {
		if _, ok := seen[level]; ok {
			out = append(out, level)
		}
	}
	return out, nil
}

// normalizeDurations validates, de-duplicates, and sorts duration options.
func normalizeDurations(in []int) ([]int, error) {
	out := make([]int, 0, len(in))
	for _, minutes := range in {
		if minutes <= 0 {
			return nil, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
		}
		if !slices.Contains(out, minutes) {
			out = append(out, minutes)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one option is required", ErrInvalidDuration)
	}
	slices.Sort(out)
	return out, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
