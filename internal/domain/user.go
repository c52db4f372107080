package domain

import (
	"slices"
	"strings"
)

// CulturalAdaptationLevel controls how strongly content leans on cultural framing.
type CulturalAdaptationLevel string

// CulturalAdaptationLevel values.
const (
	CulturalAdaptationLow    CulturalAdaptationLevel = "low"
	CulturalAdaptationMedium CulturalAdaptationLevel = "medium"
	CulturalAdaptationHigh   CulturalAdaptationLevel = "high"
)

// Language preference values recognized by adaptation logic.
const (
	LanguageEnglish  = "english"
	LanguageHindi    = "hindi"
	LanguageMixed    = "mixed"
	LanguageHinglish = "hinglish"
)

// CulturalBackgroundIndian is the background that enables Indian-context adaptations.
const CulturalBackgroundIndian = "indian"

// Demographics stores the slice of user demographics the engine reads.
type Demographics struct {
	AgeGroup           string `json:"age_group,omitempty"`
	CulturalBackground string `json:"cultural_background,omitempty"`
	LanguagePreference string `json:"language_preference,omitempty"`
	Region             string `json:"region,omitempty"`
}

// MentalHealthHistory stores history fields used for eligibility and scoring.
type MentalHealthHistory struct {
	PriorSessionCount int      `json:"prior_session_count"`
	PrimaryConcerns   []string `json:"primary_concerns,omitempty"`
	Goals             []string `json:"goals,omitempty"`
	RiskFactors       []string `json:"risk_factors,omitempty"`
	ProtectiveFactors []string `json:"protective_factors,omitempty"`
}

// CurrentState stores the user's self-reported present state.
type CurrentState struct {
	EmotionalState string   `json:"emotional_state,omitempty"`
	StressLevel    int      `json:"stress_level,omitempty"`
	RecentTriggers []string `json:"recent_triggers,omitempty"`
}

// ActivityPreferences stores declared activity preferences.
type ActivityPreferences struct {
	PreferredTypes     []ActivityType          `json:"preferred_types,omitempty"`
	SessionMinutes     int                     `json:"session_minutes,omitempty"`
	Difficulty         DifficultyLevel         `json:"difficulty,omitempty"`
	InteractionStyle   string                  `json:"interaction_style,omitempty"`
	CulturalAdaptation CulturalAdaptationLevel `json:"cultural_adaptation,omitempty"`
}

// TherapeuticProgress stores what the user has completed so far.
type TherapeuticProgress struct {
	// CompletedTypes is ordered oldest to newest.
	CompletedTypes    []ActivityType `json:"completed_types,omitempty"`
	SkillsLearned     []string       `json:"skills_learned,omitempty"`
	CurrentPhase      string         `json:"current_phase,omitempty"`
	EngagementHistory []float64      `json:"engagement_history,omitempty"`
}

// UserContext is the externally owned profile the engine consumes.
type UserContext struct {
	UserID       string              `json:"user_id"`
	Demographics Demographics        `json:"demographics"`
	History      MentalHealthHistory `json:"history"`
	CurrentState CurrentState        `json:"current_state"`
	Preferences  ActivityPreferences `json:"preferences"`
	Progress     TherapeuticProgress `json:"progress"`
}

// Normalize canonicalizes free-form tags and enum-like fields in place.
func (u *UserContext) Normalize() error {
	u.UserID = strings.TrimSpace(u.UserID)
	u.Demographics.CulturalBackground = normalizeTag(u.Demographics.CulturalBackground)
	u.Demographics.LanguagePreference = normalizeTag(u.Demographics.LanguagePreference)
	u.Demographics.AgeGroup = strings.TrimSpace(u.Demographics.AgeGroup)
	u.Demographics.Region = strings.TrimSpace(u.Demographics.Region)

	u.History.PrimaryConcerns = NormalizeTags(u.History.PrimaryConcerns)
	u.History.Goals = NormalizeTags(u.History.Goals)
	u.History.RiskFactors = NormalizeTags(u.History.RiskFactors)
	u.History.ProtectiveFactors = NormalizeTags(u.History.ProtectiveFactors)
	if u.History.PriorSessionCount < 0 {
		u.History.PriorSessionCount = 0
	}

	u.CurrentState.EmotionalState = normalizeTag(u.CurrentState.EmotionalState)
	u.CurrentState.RecentTriggers = NormalizeTags(u.CurrentState.RecentTriggers)
	if u.CurrentState.StressLevel != 0 && (u.CurrentState.StressLevel < 1 || u.CurrentState.StressLevel > 10) {
		return ErrInvalidStressLevel
	}

	preferred := make([]ActivityType, 0, len(u.Preferences.PreferredTypes))
	for _, raw := range u.Preferences.PreferredTypes {
		t := NormalizeActivityType(raw)
		if t != "" && !slices.Contains(preferred, t) {
			preferred = append(preferred, t)
		}
	}
	u.Preferences.PreferredTypes = preferred
	u.Preferences.Difficulty = NormalizeDifficulty(u.Preferences.Difficulty)
	if u.Preferences.Difficulty != "" && !u.Preferences.Difficulty.IsValid() {
		return ErrInvalidDifficulty
	}
	if u.Preferences.SessionMinutes < 0 {
		return ErrInvalidDuration
	}
	u.Preferences.InteractionStyle = normalizeTag(u.Preferences.InteractionStyle)
	u.Preferences.CulturalAdaptation = CulturalAdaptationLevel(normalizeTag(string(u.Preferences.CulturalAdaptation)))

	completed := make([]ActivityType, 0, len(u.Progress.CompletedTypes))
	for _, raw := range u.Progress.CompletedTypes {
		if t := NormalizeActivityType(raw); t != "" {
			completed = append(completed, t)
		}
	}
	u.Progress.CompletedTypes = completed
	u.Progress.SkillsLearned = NormalizeTags(u.Progress.SkillsLearned)
	u.Progress.CurrentPhase = normalizeTag(u.Progress.CurrentPhase)
	return nil
}

// HasCompleted reports whether the user has completed one activity type.
func (u UserContext) HasCompleted(t ActivityType) bool {
	return slices.Contains(u.Progress.CompletedTypes, NormalizeActivityType(t))
}

// RecentlyCompleted returns up to n of the newest completed types.
func (u UserContext) RecentlyCompleted(n int) []ActivityType {
	completed := u.Progress.CompletedTypes
	if n <= 0 || len(completed) == 0 {
		return nil
	}
	if len(completed) > n {
		completed = completed[len(completed)-n:]
	}
	return slices.Clone(completed)
}

// HasRiskFactor reports whether one risk-factor tag is present.
func (u UserContext) HasRiskFactor(tag string) bool {
	return slices.Contains(u.History.RiskFactors, normalizeTag(tag))
}

// IsIndianContext reports whether Indian-context adaptations apply.
func (u UserContext) IsIndianContext() bool {
	return u.Demographics.CulturalBackground == CulturalBackgroundIndian
}

// IsBilingual reports whether the language preference mixes Hindi and English.
func (u UserContext) IsBilingual() bool {
	lang := u.Demographics.LanguagePreference
	return lang == LanguageMixed || lang == LanguageHinglish
}

// Clone returns a deep copy of the user context.
func (u UserContext) Clone() UserContext {
	u.History.PrimaryConcerns = slices.Clone(u.History.PrimaryConcerns)
	u.History.Goals = slices.Clone(u.History.Goals)
	u.History.RiskFactors = slices.Clone(u.History.RiskFactors)
	u.History.ProtectiveFactors = slices.Clone(u.History.ProtectiveFactors)
	u.CurrentState.RecentTriggers = slices.Clone(u.CurrentState.RecentTriggers)
	u.Preferences.PreferredTypes = slices.Clone(u.Preferences.PreferredTypes)
	u.Progress.CompletedTypes = slices.Clone(u.Progress.CompletedTypes)
	u.Progress.SkillsLearned = slices.Clone(u.Progress.SkillsLearned)
	u.Progress.EngagementHistory = slices.Clone(u.Progress.EngagementHistory)
	return u
}

// NormalizeTags trims, lowercases, snake-cases, and de-duplicates tags.
func NormalizeTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		tag := normalizeTag(raw)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// normalizeTag canonicalizes one free-form tag value.
func normalizeTag(raw string) string {
	tag := strings.TrimSpace(strings.ToLower(raw))
	if tag == "" {
		return ""
	}
	return strings.Join(strings.FieldsFunc(tag, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t'
	}), "_")
}
