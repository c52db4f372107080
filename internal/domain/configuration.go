package domain

import (
	"slices"
	"time"
)

// Cultural adaptation tags attached to configurations.
const (
	TagIndianContext        = "indian_context"
	TagFamilyOriented       = "family_oriented"
	TagHindi                = "hindi"
	TagBilingual            = "bilingual"
	TagTraditionalPractices = "traditional_practices"
)

// ActivityConfiguration is the immutable per-session setup of one activity.
type ActivityConfiguration struct {
	Type                ActivityType    `json:"type"`
	Difficulty          DifficultyLevel `json:"difficulty"`
	DurationMinutes     int             `json:"duration_minutes"`
	CulturalAdaptations []string        `json:"cultural_adaptations,omitempty"`
	Personalizations    []string        `json:"personalizations,omitempty"`
	Prerequisites       []ActivityType  `json:"prerequisites,omitempty"`
	LearningObjectives  []string        `json:"learning_objectives,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// HasCulturalTag reports whether one cultural adaptation tag is present.
func (c ActivityConfiguration) HasCulturalTag(tag string) bool {
	return slices.Contains(c.CulturalAdaptations, tag)
}

// Clone returns a copy that shares no slices with the receiver.
func (c ActivityConfiguration) Clone() ActivityConfiguration {
	c.CulturalAdaptations = slices.Clone(c.CulturalAdaptations)
	c.Personalizations = slices.Clone(c.Personalizations)
	c.Prerequisites = slices.Clone(c.Prerequisites)
	c.LearningObjectives = slices.Clone(c.LearningObjectives)
	return c
}

// WithDifficulty returns a new configuration at another difficulty level.
func (c ActivityConfiguration) WithDifficulty(level DifficultyLevel, now time.Time) ActivityConfiguration {
	out := c.Clone()
	out.Difficulty = NormalizeDifficulty(level)
	out.CreatedAt = now.UTC()
	return out
}
