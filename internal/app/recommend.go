package app

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hylla/manas/internal/domain"
)

// emotionalAlignment scores how well each category suits an emotional state (0-3).
var emotionalAlignment = map[string]map[domain.ActivityCategory]float64{
	"anxious": {
		domain.CategoryMindfulness: 3, domain.CategoryCognitive: 3,
		domain.CategoryConversation: 1, domain.CategoryAssessment: 1,
	},
	"sad": {
		domain.CategoryConversation: 3, domain.CategoryCognitive: 2,
		domain.CategoryMindfulness: 1, domain.CategoryAssessment: 1,
	},
	"angry": {
		domain.CategoryMindfulness: 3, domain.CategoryConversation: 2, domain.CategoryCognitive: 2,
	},
	"overwhelmed": {
		domain.CategoryMindfulness: 3, domain.CategoryCrisis: 1,
		domain.CategoryConversation: 1, domain.CategoryCognitive: 1,
	},
	"panicked": {
		domain.CategoryCrisis: 3, domain.CategoryMindfulness: 2,
	},
	"calm": {
		domain.CategoryAssessment: 2, domain.CategoryCognitive: 2,
		domain.CategoryConversation: 1, domain.CategoryMindfulness: 1,
	},
	"lonely": {
		domain.CategoryConversation: 3, domain.CategoryMindfulness: 1,
	},
}

// emotionalAliases folds synonymous states onto one alignment row.
var emotionalAliases = map[string]string{
	"depressed":  "sad",
	"low":        "sad",
	"stressed":   "overwhelmed",
	"crisis":     "panicked",
	"neutral":    "calm",
	"happy":      "calm",
	"worried":    "anxious",
	"nervous":    "anxious",
	"frustrated": "angry",
}

// alignmentFor returns the emotional alignment of a category for a state.
func alignmentFor(state string, category domain.ActivityCategory) float64 {
	if alias, ok := emotionalAliases[state]; ok {
		state = alias
	}
	return emotionalAlignment[state][category]
}

// expectedOutcomes maps goals to user-facing outcomes.
var expectedOutcomes = map[string]string{
	"anxiety_reduction":        "Lower anxiety",
	"stress_relief":            "Reduced stress",
	"emotional_regulation":     "Steadier emotions",
	"panic_management":         "Calmer response to panic",
	"mood_improvement":         "Improved mood",
	"depression_support":       "Gentle lift in low mood",
	"focus_improvement":        "Sharper focus",
	"sleep_improvement":        "Better rest",
	"tension_release":          "Less physical tension",
	"connection":               "Stronger sense of connection",
	"cognitive_restructuring":  "More balanced thinking",
	"self_esteem":              "Kinder self-talk",
	"emotional_expression":     "Feelings put into words",
	"loneliness_support":       "Feeling less alone",
	"family_conflict":          "Clearer family communication",
	"relationship_improvement": "Healthier relationships",
	"communication":            "More confident communication",
	"self_awareness":           "Better self-awareness",
	"progress_tracking":        "A snapshot of your progress",
	"crisis_stabilization":     "Immediate stabilization",
	"safety_planning":          "A clear safety plan",
}

// Recommender ranks catalog entries for a user and situation.
type Recommender struct {
	catalog *Catalog
	weights RecommendationWeights
}

// NewRecommender constructs a recommender over one catalog.
func NewRecommender(catalog *Catalog, weights RecommendationWeights) *Recommender {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Recommender{catalog: catalog, weights: weights.withDefaults()}
}

// scored is one candidate with its score and fired rules.
type scored struct {
	meta    domain.ActivityMetadata
	score   float64
	reasons []string
}

// Recommend returns eligible entries ranked by score; immediate urgency routes to crisis support first.
func (r *Recommender) Recommend(criteria domain.RecommendationCriteria) ([]domain.ActivityRecommendation, error) {
	if err := criteria.Normalize(); err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	limit := criteria.Limit
	if limit <= 0 {
		limit = r.weights.Limit
	}
	if criteria.Urgency == domain.UrgencyImmediate {
		if crisis := r.crisisRecommendations(criteria.User); len(crisis) > 0 {
			return crisis[:min(limit, len(crisis))], nil
		}
	}

	candidates := make([]scored, 0, r.catalog.Len())
	for _, meta := range r.eligible(criteria.User) {
		candidates = append(candidates, r.score(meta, criteria))
	}
	slices.SortStableFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return strings.Compare(string(a.meta.Type), string(b.meta.Type))
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	urgency := criteria.Urgency
	if urgency == "" {
		urgency = domain.UrgencyMedium
	}
	out := make([]domain.ActivityRecommendation, 0, len(candidates))
	for _, c := range candidates {
		minutes := criteria.AvailableMinutes
		if minutes <= 0 {
			minutes = criteria.User.Preferences.SessionMinutes
		}
		out = append(out, r.toRecommendation(c.meta, criteria.User, c.score, minutes, rationale(c.reasons), urgency))
	}
	return out, nil
}

// CrisisRecommendations returns eligible crisis entries at fixed top priority.
func (r *Recommender) CrisisRecommendations(user domain.UserContext) ([]domain.ActivityRecommendation, error) {
	if err := user.Normalize(); err != nil {
		return nil, fmt.Errorf("crisis recommendations: %w", err)
	}
	return r.crisisRecommendations(user), nil
}

func (r *Recommender) crisisRecommendations(user domain.UserContext) []domain.ActivityRecommendation {
	entries := make([]domain.ActivityMetadata, 0, 2)
	for _, meta := range r.catalog.ListByCategory(domain.CategoryCrisis) {
		if checkEligibility(meta, user) == nil {
			entries = append(entries, meta)
		}
	}
	sortByRelevance(entries)
	out := make([]domain.ActivityRecommendation, 0, len(entries))
	for _, meta := range entries {
		out = append(out, r.toRecommendation(meta, user, r.weights.CrisisPriority, meta.MinDuration(),
			"Immediate support to help you feel safe and steady right now, with helplines if you need them.",
			domain.UrgencyImmediate))
	}
	return out
}

// QuickRelief returns short, culturally resonant entries for fast relief.
func (r *Recommender) QuickRelief(user domain.UserContext) ([]domain.ActivityRecommendation, error) {
	if err := user.Normalize(); err != nil {
		return nil, fmt.Errorf("quick relief: %w", err)
	}
	entries := make([]domain.ActivityMetadata, 0, 4)
	for _, meta := range r.eligible(user) {
		if meta.HasDurationWithin(r.weights.QuickDuration) && meta.CulturalRelevance >= r.weights.QuickRelevance {
			entries = append(entries, meta)
		}
	}
	sortByRelevance(entries)
	if len(entries) > r.weights.Limit {
		entries = entries[:r.weights.Limit]
	}
	out := make([]domain.ActivityRecommendation, 0, len(entries))
	for _, meta := range entries {
		minutes := r.quickMinutes(meta, user.Preferences.SessionMinutes)
		out = append(out, r.toRecommendation(meta, user, r.weights.QuickPriority, minutes,
			fmt.Sprintf("A quick %d-minute practice for relief when time is short.", minutes),
			domain.UrgencyHigh))
	}
	return out, nil
}

// quickMinutes picks the option within the quick-relief cap closest to want; ties go shorter.
func (r *Recommender) quickMinutes(meta domain.ActivityMetadata, want int) int {
	best := meta.MinDuration()
	if want <= 0 {
		return best
	}
	for _, option := range meta.DurationOptions {
		if option > r.weights.QuickDuration {
			break
		}
		if absDiff(option, want) < absDiff(best, want) {
			best = option
		}
	}
	return best
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// eligible filters the catalog to entries the user may start.
func (r *Recommender) eligible(user domain.UserContext) []domain.ActivityMetadata {
	all := r.catalog.List()
	out := all[:0]
	for _, meta := range all {
		if checkEligibility(meta, user) == nil {
			out = append(out, meta)
		}
	}
	return out
}

// score computes the weighted score of one entry, clamped to [0, MaxScore].
func (r *Recommender) score(meta domain.ActivityMetadata, c domain.RecommendationCriteria) scored {
	w := r.weights
	user := c.User
	s := scored{meta: meta}
	total := w.CulturalRelevance * float64(meta.CulturalRelevance)

	if slices.Contains(user.Preferences.PreferredTypes, meta.Type) {
		total += w.PreferredType
		s.reasons = append(s.reasons, "It is one of your preferred activities.")
	}
	if n := countGoalMatches(meta.TherapeuticGoals, user.History.Goals); n > 0 {
		total += w.GoalMatch * float64(n)
		s.reasons = append(s.reasons, "It supports the goals you have set.")
	}
	concerns := make([]string, 0, len(user.History.PrimaryConcerns))
	for _, concern := range user.History.PrimaryConcerns {
		if anyGoalMatches(meta.TherapeuticGoals, concern) {
			concerns = append(concerns, strings.ReplaceAll(concern, "_", " "))
		}
	}
	if len(concerns) > 0 {
		total += w.ConcernMatch * float64(len(concerns))
		s.reasons = append(s.reasons, "It addresses your concern about "+strings.Join(concerns, " and ")+".")
	}
	if state := c.EmotionalState; state != "" {
		if a := alignmentFor(state, meta.Category); a > 0 {
			total += a
			s.reasons = append(s.reasons, fmt.Sprintf("It suits feeling %s right now.", state))
		}
	}
	switch {
	case c.Urgency == domain.UrgencyImmediate && meta.Category == domain.CategoryCrisis:
		total += w.UrgencyCrisis
		s.reasons = append(s.reasons, "It offers immediate support.")
	case c.Urgency == domain.UrgencyHigh && meta.HasDurationWithin(w.QuickDuration):
		total += w.UrgencyQuick
		s.reasons = append(s.reasons, "It can bring relief within a few minutes.")
	}
	if c.AvailableMinutes > 0 && hasDurationNear(meta, c.AvailableMinutes, w.DurationWindow) {
		total += w.DurationMatch
	}
	if n := countGoalMatches(meta.TargetedSkills, c.SpecificNeeds); n > 0 {
		total += w.NeedMatch * float64(n)
	}
	if phase := user.Progress.CurrentPhase; phase != "" && phase == string(meta.Category) {
		total += w.PhaseMatch
	}
	if slices.Contains(user.RecentlyCompleted(w.RecencyWindow), meta.Type) {
		total -= w.RecencyPenalty
	}
	s.score = math.Round(math.Max(0, math.Min(w.MaxScore, total))*100) / 100
	return s
}

// hasDurationNear reports whether some option lies within window minutes of want.
func hasDurationNear(meta domain.ActivityMetadata, want, window int) bool {
	for _, option := range meta.DurationOptions {
		if option >= want-window && option <= want+window {
			return true
		}
	}
	return false
}

// toRecommendation converts one entry into a recommendation.
func (r *Recommender) toRecommendation(meta domain.ActivityMetadata, user domain.UserContext, priority float64, minutes int, why string, urgency domain.Urgency) domain.ActivityRecommendation {
	outcomes := make([]string, 0, len(meta.TherapeuticGoals))
	for _, goal := range meta.TherapeuticGoals {
		if outcome, ok := expectedOutcomes[goal]; ok {
			outcomes = append(outcomes, outcome)
		}
	}
	return domain.ActivityRecommendation{
		Type:              meta.Type,
		DisplayName:       meta.DisplayName,
		Category:          meta.Category,
		Priority:          priority,
		CulturalRelevance: meta.CulturalRelevance,
		DurationMinutes:   meta.ClosestDuration(minutes),
		Difficulty:        meta.NearestDifficulty(user.Preferences.Difficulty),
		Rationale:         why,
		ExpectedOutcomes:  outcomes,
		Urgency:           urgency,
	}
}

// rationale joins fired rules or falls back to a generic line.
func rationale(reasons []string) string {
	if len(reasons) == 0 {
		return "A well-rounded practice that fits where you are today."
	}
	return strings.Join(reasons, " ")
}

// sortByRelevance orders entries by cultural relevance desc, then type.
func sortByRelevance(entries []domain.ActivityMetadata) {
	slices.SortStableFunc(entries, func(a, b domain.ActivityMetadata) int {
		if c := cmp.Compare(b.CulturalRelevance, a.CulturalRelevance); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
}
