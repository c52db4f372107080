package domain

import (
	"slices"
	"strings"
)

// Urgency tags how soon a recommendation should be acted on.
type Urgency string

// Urgency values in ascending order.
const (
	UrgencyLow       Urgency = "low"
	UrgencyMedium    Urgency = "medium"
	UrgencyHigh      Urgency = "high"
	UrgencyImmediate Urgency = "immediate"
)

// validUrgencies stores supported urgency values.
var validUrgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyImmediate}

// NormalizeUrgency canonicalizes an urgency value; empty stays empty.
func NormalizeUrgency(u Urgency) Urgency {
	return Urgency(strings.TrimSpace(strings.ToLower(string(u))))
}

// IsValidUrgency reports whether an urgency value is supported.
func IsValidUrgency(u Urgency) bool {
	return slices.Contains(validUrgencies, NormalizeUrgency(u))
}

// ActivityRecommendation is one ranked suggestion.
type ActivityRecommendation struct {
	Type              ActivityType     `json:"type"`
	DisplayName       string           `json:"display_name"`
	Category          ActivityCategory `json:"category"`
	Priority          float64          `json:"priority"`
	CulturalRelevance int              `json:"cultural_relevance"`
	DurationMinutes   int              `json:"duration_minutes"`
	Difficulty        DifficultyLevel  `json:"difficulty"`
	Rationale         string           `json:"rationale"`
	ExpectedOutcomes  []string         `json:"expected_outcomes,omitempty"`
	Urgency           Urgency          `json:"urgency"`
}

// RecommendationCriteria bundles the user and situational inputs.
type RecommendationCriteria struct {
	User             UserContext `json:"user"`
	EmotionalState   string      `json:"emotional_state,omitempty"`
	Urgency          Urgency     `json:"urgency,omitempty"`
	AvailableMinutes int         `json:"available_minutes,omitempty"`
	SpecificNeeds    []string    `json:"specific_needs,omitempty"`
	Limit            int         `json:"limit,omitempty"`
}

// Normalize canonicalizes criteria values in place.
func (c *RecommendationCriteria) Normalize() error {
	if err := c.User.Normalize(); err != nil {
		return err
	}
	c.EmotionalState = normalizeTag(c.EmotionalState)
	if c.EmotionalState == "" {
		c.EmotionalState = c.User.CurrentState.EmotionalState
	}
	c.Urgency = NormalizeUrgency(c.Urgency)
	if c.Urgency != "" && !IsValidUrgency(c.Urgency) {
		return ErrInvalidUrgency
	}
	if c.AvailableMinutes < 0 {
		return ErrInvalidDuration
	}
	c.SpecificNeeds = NormalizeTags(c.SpecificNeeds)
	return nil
}
