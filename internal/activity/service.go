// Package activity implements the per-category activity services that narrate session steps.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/hylla/manas/internal/domain"
)

// ContentKind describes the shape of one response.
type ContentKind string

// ContentKind values.
const (
	KindMessage       ContentKind = "message"
	KindQuestion      ContentKind = "question"
	KindExercise      ContentKind = "exercise"
	KindAssessment    ContentKind = "assessment"
	KindCrisisSupport ContentKind = "crisis_support"
	KindSummary       ContentKind = "summary"
)

// Response is the content produced for one step.
type Response struct {
	Content             string      `json:"content"`
	Kind                ContentKind `json:"kind"`
	NextStepPreview     string      `json:"next_step_preview,omitempty"`
	AdaptationTriggered bool        `json:"adaptation_triggered"`
	Fallback            bool        `json:"fallback,omitempty"`
}

// Completion is what a service reports when a session ends.
type Completion struct {
	Summary            string   `json:"summary"`
	Insights           []string `json:"insights"`
	SkillsDemonstrated []string `json:"skills_demonstrated"`
}

// Service is the contract every category variant implements.
type Service interface {
	Category() domain.ActivityCategory
	Initialize(ctx context.Context, cfg domain.ActivityConfiguration, session *domain.ActivitySession) (Response, error)
	ProcessUserInput(ctx context.Context, session *domain.ActivitySession, input string) (Response, error)
	GenerateNextStep(ctx context.Context, session *domain.ActivitySession) (Response, error)
	Complete(ctx context.Context, session *domain.ActivitySession) (Completion, error)
	HandleAdaptation(ctx context.Context, session *domain.ActivitySession, trigger domain.AdaptationTrigger, details string) (domain.ActivityAdaptation, error)
}

// Narrator turns a step prompt into narrative text.
type Narrator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Logger is the logging surface services write to.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

// DefaultNarrationTimeout bounds one narrator call.
const DefaultNarrationTimeout = 20 * time.Second

// Deps holds everything one service instance needs.
type Deps struct {
	Metadata         domain.ActivityMetadata
	SessionID        string
	UserID           string
	User             domain.UserContext
	Narrator         Narrator
	NarrationTimeout time.Duration
	Logger           Logger
	Cultural         *CulturalAdapter
	Clock            func() time.Time
}

// Constructor builds one service variant.
type Constructor func(Deps) Service

// Constructors returns the built-in variant per category.
func Constructors() map[domain.ActivityCategory]Constructor {
	return map[domain.ActivityCategory]Constructor{
		domain.CategoryConversation: NewConversation,
		domain.CategoryCognitive:    NewCognitive,
		domain.CategoryMindfulness:  NewMindfulness,
		domain.CategoryAssessment:   NewAssessment,
		domain.CategoryCrisis:       NewCrisis,
	}
}

// New builds the built-in variant for the metadata's category.
func New(deps Deps) (Service, error) {
	ctor, ok := Constructors()[deps.Metadata.Category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, deps.Metadata.Category)
	}
	return ctor(deps), nil
}
