package app

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/hylla/manas/internal/domain"
)

// Catalog is the registry of activity metadata keyed by type.
type Catalog struct {
	mu      sync.RWMutex
	entries map[domain.ActivityType]domain.ActivityMetadata
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: map[domain.ActivityType]domain.ActivityMetadata{}}
}

// Register adds or replaces one entry keyed by its type.
func (c *Catalog) Register(meta domain.ActivityMetadata) error {
	meta, err := domain.NewActivityMetadata(domain.ActivityMetadataInput{
		Type:              meta.Type,
		DisplayName:       meta.DisplayName,
		Description:       meta.Description,
		Category:          meta.Category,
		CulturalRelevance: meta.CulturalRelevance,
		DifficultyLevels:  meta.DifficultyLevels,
		DurationOptions:   meta.DurationOptions,
		Prerequisites:     meta.Prerequisites,
		Contraindications: meta.Contraindications,
		TherapeuticGoals:  meta.TherapeuticGoals,
		TargetedSkills:    meta.TargetedSkills,
	})
	if err != nil {
		return fmt.Errorf("register activity: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[meta.Type] = meta.Clone()
	return nil
}

// Get returns a copy of one entry.
func (c *Catalog) Get(t domain.ActivityType) (domain.ActivityMetadata, error) {
	t = domain.NormalizeActivityType(t)
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.entries[t]
	if !ok {
		return domain.ActivityMetadata{}, fmt.Errorf("%w: %q", ErrNotRegistered, t)
	}
	return meta.Clone(), nil
}

// List returns copies of every entry sorted by type.
func (c *Catalog) List() []domain.ActivityMetadata {
	c.mu.RLock()
	out := make([]domain.ActivityMetadata, 0, len(c.entries))
	for _, meta := range c.entries {
		out = append(out, meta.Clone())
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.ActivityMetadata) int {
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return out
}

// ListByCategory returns entries of one category sorted by type.
func (c *Catalog) ListByCategory(category domain.ActivityCategory) []domain.ActivityMetadata {
	category = domain.NormalizeCategory(category)
	all := c.List()
	out := all[:0]
	for _, meta := range all {
		if meta.Category == category {
			out = append(out, meta)
		}
	}
	return out
}

// Len reports the number of registered entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DefaultCatalog returns a catalog holding the built-in activities.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, meta := range builtinActivities() {
		if err := c.Register(meta); err != nil {
			panic(fmt.Sprintf("builtin activity %q: %v", meta.Type, err))
		}
	}
	return c
}

// builtinActivities lists the stock catalog.
func builtinActivities() []domain.ActivityMetadata {
	all := []domain.DifficultyLevel{domain.DifficultyBeginner, domain.DifficultyIntermediate, domain.DifficultyAdvanced}
	return []domain.ActivityMetadata{
		{
			Type: domain.ActivityBreathingExercise, DisplayName: "Breathing Exercise", Category: domain.CategoryMindfulness,
			Description:       "Paced breathing to calm the body, in the spirit of pranayama.",
			CulturalRelevance: 9, DifficultyLevels: all, DurationOptions: []int{3, 5, 10},
			TherapeuticGoals: []string{"anxiety_reduction", "stress_relief", "emotional_regulation", "panic_management"},
			TargetedSkills:   []string{"breath_control", "self_soothing", "body_awareness"},
		},
		{
			Type: domain.ActivityMindfulnessSession, DisplayName: "Mindfulness Session", Category: domain.CategoryMindfulness,
			Description:       "Guided present-moment awareness practice.",
			CulturalRelevance: 8, DifficultyLevels: all, DurationOptions: []int{5, 10, 15, 20},
			TherapeuticGoals: []string{"stress_relief", "anxiety_reduction", "focus_improvement", "emotional_regulation"},
			TargetedSkills:   []string{"present_moment_awareness", "attention_control", "non_judgment"},
		},
		{
			Type: domain.ActivityBodyScan, DisplayName: "Body Scan", Category: domain.CategoryMindfulness,
			Description:       "Progressive attention through the body to release tension.",
			CulturalRelevance: 7, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyBeginner, domain.DifficultyIntermediate},
			DurationOptions:  []int{10, 15, 20},
			TherapeuticGoals: []string{"stress_relief", "sleep_improvement", "tension_release"},
			TargetedSkills:   []string{"body_awareness", "relaxation"},
		},
		{
			Type: domain.ActivityGratitudeJournal, DisplayName: "Gratitude Journal", Category: domain.CategoryMindfulness,
			Description:       "Short written reflection on what went well.",
			CulturalRelevance: 8, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyBeginner, domain.DifficultyIntermediate},
			DurationOptions:  []int{5, 10},
			TherapeuticGoals: []string{"mood_improvement", "depression_support", "connection"},
			TargetedSkills:   []string{"positive_reflection", "journaling"},
		},
		{
			Type: domain.ActivityCBTExercise, DisplayName: "CBT Thought Record", Category: domain.CategoryCognitive,
			Description:       "Structured thought record linking situations, thoughts and feelings.",
			CulturalRelevance: 6, DifficultyLevels: all, DurationOptions: []int{10, 15, 20},
			TherapeuticGoals: []string{"anxiety_reduction", "depression_support", "mood_improvement", "cognitive_restructuring"},
			TargetedSkills:   []string{"thought_identification", "emotion_labeling", "evidence_weighing"},
		},
		{
			Type: domain.ActivityThoughtChallenge, DisplayName: "Thought Challenge", Category: domain.CategoryCognitive,
			Description:       "Spot and challenge one recurring thinking trap.",
			CulturalRelevance: 6, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyIntermediate, domain.DifficultyAdvanced},
			DurationOptions:  []int{10, 15},
			Prerequisites:    []domain.ActivityType{domain.ActivityCBTExercise},
			TherapeuticGoals: []string{"anxiety_reduction", "cognitive_restructuring", "self_esteem"},
			TargetedSkills:   []string{"cognitive_restructuring", "balanced_thinking"},
		},
		{
			Type: domain.ActivityCognitiveReframing, DisplayName: "Cognitive Reframing", Category: domain.CategoryCognitive,
			Description:       "See a stuck situation from several perspectives.",
			CulturalRelevance: 7, DifficultyLevels: all, DurationOptions: []int{10, 15},
			TherapeuticGoals: []string{"mood_improvement", "stress_relief", "cognitive_restructuring"},
			TargetedSkills:   []string{"perspective_taking", "balanced_thinking"},
		},
		{
			Type: domain.ActivityGuidedConversation, DisplayName: "Guided Conversation", Category: domain.CategoryConversation,
			Description:       "Supportive open conversation about what is on your mind.",
			CulturalRelevance: 8, DifficultyLevels: all, DurationOptions: []int{10, 15, 20, 30},
			TherapeuticGoals: []string{"emotional_expression", "connection", "mood_improvement", "loneliness_support"},
			TargetedSkills:   []string{"emotional_expression", "self_reflection"},
		},
		{
			Type: domain.ActivityFamilyDialogue, DisplayName: "Family Dialogue Practice", Category: domain.CategoryConversation,
			Description:       "Rehearse a difficult conversation with family.",
			CulturalRelevance: 10, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyIntermediate, domain.DifficultyAdvanced},
			DurationOptions:  []int{15, 20},
			TherapeuticGoals: []string{"family_conflict", "relationship_improvement", "connection", "communication"},
			TargetedSkills:   []string{"assertive_communication", "perspective_taking"},
		},
		{
			Type: domain.ActivityMoodAssessment, DisplayName: "Mood Check-in", Category: domain.CategoryAssessment,
			Description:       "Quick 1-10 ratings of mood, energy, sleep and connection.",
			CulturalRelevance: 7, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyBeginner},
			DurationOptions:  []int{3, 5},
			TherapeuticGoals: []string{"self_awareness", "progress_tracking", "mood_improvement"},
			TargetedSkills:   []string{"self_monitoring", "emotion_labeling"},
		},
		{
			Type: domain.ActivityStressAssessment, DisplayName: "Stress Check-in", Category: domain.CategoryAssessment,
			Description:       "Quick 1-10 ratings of stress, tension, control and support.",
			CulturalRelevance: 7, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyBeginner},
			DurationOptions:  []int{3, 5},
			TherapeuticGoals: []string{"self_awareness", "stress_relief", "progress_tracking"},
			TargetedSkills:   []string{"self_monitoring", "stress_recognition"},
		},
		{
			Type: domain.ActivityCrisisIntervention, DisplayName: "Crisis Support", Category: domain.CategoryCrisis,
			Description:       "Stabilization with helpline routing (Tele-MANAS, KIRAN).",
			CulturalRelevance: 9, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyBeginner},
			DurationOptions:   []int{5, 10, 15},
			Contraindications: []string{"severe_psychosis"},
			TherapeuticGoals:  []string{"crisis_stabilization", "safety_planning", "panic_management"},
			TargetedSkills:    []string{"help_seeking", "safety_planning"},
		},
		{
			Type: domain.ActivityGroundingTechnique, DisplayName: "5-4-3-2-1 Grounding", Category: domain.CategoryCrisis,
			Description:       "Sensory grounding to come back to the present during panic.",
			CulturalRelevance: 8, DifficultyLevels: []domain.DifficultyLevel{domain.DifficultyBeginner},
			DurationOptions:  []int{3, 5},
			TherapeuticGoals: []string{"panic_management", "anxiety_reduction", "crisis_stabilization"},
			TargetedSkills:   []string{"grounding", "present_moment_awareness"},
		},
	}
}
