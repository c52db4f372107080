package app

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/manas/internal/activity"
	"github.com/hylla/manas/internal/domain"
)

// FactoryConfig holds optional collaborators for activity construction.
type FactoryConfig struct {
	Narrator         activity.Narrator
	NarrationTimeout time.Duration
	Logger           Logger
	Clock            Clock
	Constructors     map[domain.ActivityCategory]activity.Constructor
}

// Factory checks eligibility, builds configurations and instantiates activity services.
type Factory struct {
	catalog          *Catalog
	constructors     map[domain.ActivityCategory]activity.Constructor
	narrator         activity.Narrator
	narrationTimeout time.Duration
	cultural         *activity.CulturalAdapter
	logger           Logger
	clock            Clock
}

// NewFactory constructs a factory bound to one catalog.
func NewFactory(catalog *Catalog, cfg FactoryConfig) *Factory {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NarrationTimeout <= 0 {
		cfg.NarrationTimeout = activity.DefaultNarrationTimeout
	}
	constructors := activity.Constructors()
	for category, ctor := range cfg.Constructors {
		constructors[domain.NormalizeCategory(category)] = ctor
	}
	return &Factory{
		catalog:          catalog,
		constructors:     constructors,
		narrator:         cfg.Narrator,
		narrationTimeout: cfg.NarrationTimeout,
		cultural:         activity.NewCulturalAdapter(),
		logger:           cfg.Logger,
		clock:            cfg.Clock,
	}
}

// Catalog returns the catalog the factory reads.
func (f *Factory) Catalog() *Catalog {
	return f.catalog
}

// CheckEligibility returns the entry when the user may start it.
func (f *Factory) CheckEligibility(t domain.ActivityType, user domain.UserContext) (domain.ActivityMetadata, error) {
	meta, err := f.catalog.Get(t)
	if err != nil {
		return domain.ActivityMetadata{}, err
	}
	if err := checkEligibility(meta, user); err != nil {
		return domain.ActivityMetadata{}, err
	}
	return meta, nil
}

// checkEligibility enforces prerequisites, then contraindications.
func checkEligibility(meta domain.ActivityMetadata, user domain.UserContext) error {
	for _, prereq := range meta.Prerequisites {
		if !user.HasCompleted(prereq) {
			return fmt.Errorf("%w: %s requires %s", ErrPrerequisiteUnmet, meta.Type, prereq)
		}
	}
	for _, tag := range meta.Contraindications {
		if user.HasRiskFactor(tag) {
			return fmt.Errorf("%w: %s with risk factor %s", ErrContraindicated, meta.Type, tag)
		}
	}
	return nil
}

// CreateActivity checks eligibility and instantiates the category's service.
func (f *Factory) CreateActivity(t domain.ActivityType, sessionID, userID string, user domain.UserContext) (activity.Service, error) {
	meta, err := f.CheckEligibility(t, user)
	if err != nil {
		return nil, err
	}
	ctor, ok := f.constructors[meta.Category]
	if !ok {
		return nil, fmt.Errorf("%w: no service for category %q", ErrNotRegistered, meta.Category)
	}
	return ctor(activity.Deps{
		Metadata:         meta,
		SessionID:        sessionID,
		UserID:           userID,
		User:             user.Clone(),
		Narrator:         f.narrator,
		NarrationTimeout: f.narrationTimeout,
		Logger:           f.logger,
		Cultural:         f.cultural,
		Clock:            f.clock,
	}), nil
}

// ConfigurationOverrides lets callers pin parts of a configuration.
type ConfigurationOverrides struct {
	Difficulty          domain.DifficultyLevel `json:"difficulty,omitempty"`
	DurationMinutes     int                    `json:"duration_minutes,omitempty"`
	CulturalAdaptations []string               `json:"cultural_adaptations,omitempty"`
	Personalizations    []string               `json:"personalizations,omitempty"`
}

// emotionalGoals maps emotional states to the goal that addresses them.
var emotionalGoals = map[string]string{
	"anxious":     "anxiety_reduction",
	"stressed":    "stress_relief",
	"overwhelmed": "stress_relief",
	"sad":         "mood_improvement",
	"depressed":   "depression_support",
	"angry":       "emotional_regulation",
	"lonely":      "connection",
	"panicked":    "panic_management",
}

// CreateDefaultConfiguration derives a validated configuration for one user.
func (f *Factory) CreateDefaultConfiguration(t domain.ActivityType, user domain.UserContext, overrides ConfigurationOverrides) (domain.ActivityConfiguration, error) {
	meta, err := f.catalog.Get(t)
	if err != nil {
		return domain.ActivityConfiguration{}, err
	}
	cfg := domain.ActivityConfiguration{
		Type:                meta.Type,
		Difficulty:          meta.NearestDifficulty(user.Preferences.Difficulty),
		DurationMinutes:     meta.ClosestDuration(user.Preferences.SessionMinutes),
		CulturalAdaptations: culturalTags(user),
		Personalizations:    personalizationTags(meta, user),
		Prerequisites:       slices.Clone(meta.Prerequisites),
		LearningObjectives:  slices.Clone(meta.TargetedSkills),
		CreatedAt:           f.clock().UTC(),
	}
	if overrides.Difficulty != "" {
		cfg.Difficulty = domain.NormalizeDifficulty(overrides.Difficulty)
	}
	if overrides.DurationMinutes != 0 {
		cfg.DurationMinutes = overrides.DurationMinutes
	}
	cfg.CulturalAdaptations = appendUnique(cfg.CulturalAdaptations, domain.NormalizeTags(overrides.CulturalAdaptations)...)
	cfg.Personalizations = appendUnique(cfg.Personalizations, domain.NormalizeTags(overrides.Personalizations)...)
	if err := validateConfiguration(meta, cfg).Err(); err != nil {
		return domain.ActivityConfiguration{}, err
	}
	return cfg, nil
}

// culturalTags derives cultural adaptation tags from demographics and preferences.
func culturalTags(user domain.UserContext) []string {
	tags := make([]string, 0, 4)
	if user.IsIndianContext() {
		tags = append(tags, domain.TagIndianContext, domain.TagFamilyOriented)
	}
	switch {
	case user.Demographics.LanguagePreference == domain.LanguageHindi:
		tags = append(tags, domain.TagHindi)
	case user.IsBilingual():
		tags = append(tags, domain.TagBilingual)
	}
	if user.Preferences.CulturalAdaptation == domain.CulturalAdaptationHigh {
		tags = append(tags, domain.TagTraditionalPractices)
	}
	return tags
}

// personalizationTags intersects concerns and emotional state with the entry's goals.
func personalizationTags(meta domain.ActivityMetadata, user domain.UserContext) []string {
	tags := make([]string, 0, 4)
	for _, concern := range user.History.PrimaryConcerns {
		if anyGoalMatches(meta.TherapeuticGoals, concern) {
			tags = append(tags, "concern:"+concern)
		}
	}
	if state := user.CurrentState.EmotionalState; state != "" {
		if goal, ok := emotionalGoals[state]; ok && slices.Contains(meta.TherapeuticGoals, goal) {
			tags = append(tags, "state:"+state)
		}
	}
	if style := user.Preferences.InteractionStyle; style != "" {
		tags = append(tags, "style:"+style)
	}
	return tags
}

// ValidationResult is a structured pass/fail with one message per violation.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Err returns nil when valid, else an ErrInvalidConfiguration wrap.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(r.Errors, "; "))
}

// ValidateConfiguration checks a configuration against its catalog entry.
func (f *Factory) ValidateConfiguration(t domain.ActivityType, cfg domain.ActivityConfiguration) (ValidationResult, error) {
	meta, err := f.catalog.Get(t)
	if err != nil {
		return ValidationResult{}, err
	}
	return validateConfiguration(meta, cfg), nil
}

// validateConfiguration reports every violated catalog constraint.
func validateConfiguration(meta domain.ActivityMetadata, cfg domain.ActivityConfiguration) ValidationResult {
	var errs []string
	if domain.NormalizeActivityType(cfg.Type) != meta.Type {
		errs = append(errs, fmt.Sprintf("configuration type %q does not match activity %q", cfg.Type, meta.Type))
	}
	if !meta.SupportsDifficulty(cfg.Difficulty) {
		errs = append(errs, fmt.Sprintf("difficulty %q is not supported by %s (supported: %s)", cfg.Difficulty, meta.Type, joinLevels(meta.DifficultyLevels)))
	}
	if cfg.DurationMinutes < meta.MinDuration() || cfg.DurationMinutes > meta.MaxDuration() {
		errs = append(errs, fmt.Sprintf("duration %d minutes is outside %d-%d for %s", cfg.DurationMinutes, meta.MinDuration(), meta.MaxDuration(), meta.Type))
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func joinLevels(levels []domain.DifficultyLevel) string {
	parts := make([]string, 0, len(levels))
	for _, level := range levels {
		parts = append(parts, string(level))
	}
	return strings.Join(parts, ", ")
}

// appendUnique appends values not already present.
func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

// goalMatches reports whether a goal addresses a term: equal, "term_" prefix or "_term" suffix.
func goalMatches(goal, term string) bool {
	if goal == "" || term == "" {
		return false
	}
	return goal == term || strings.HasPrefix(goal, term+"_") || strings.HasSuffix(goal, "_"+term)
}

// anyGoalMatches reports whether some goal addresses the term.
func anyGoalMatches(goals []string, term string) bool {
	for _, goal := range goals {
		if goalMatches(goal, term) {
			return true
		}
	}
	return false
}

// countGoalMatches counts terms addressed by at least one goal.
func countGoalMatches(goals, terms []string) int {
	n := 0
	for _, term := range terms {
		if anyGoalMatches(goals, term) {
			n++
		}
	}
	return n
}
