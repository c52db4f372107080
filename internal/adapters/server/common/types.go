// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/domain"
)

// RecommendModeStandard ranks the full catalog.
const RecommendModeStandard = "standard"

// RecommendModeCrisis returns the immediate crisis-support list.
const RecommendModeCrisis = "crisis"

// RecommendModeQuickRelief returns short, high-relevance activities.
const RecommendModeQuickRelief = "quick_relief"

// supportedRecommendModes stores transport-accepted recommend modes in canonical order.
var supportedRecommendModes = []string{
	RecommendModeStandard,
	RecommendModeCrisis,
	RecommendModeQuickRelief,
}

// SupportedRecommendModes returns all mode values accepted by recommend requests.
func SupportedRecommendModes() []string {
	return append([]string(nil), supportedRecommendModes...)
}

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrIneligible reports a user who may not start the requested activity.
var ErrIneligible = errors.New("ineligible")

// ErrConflict reports a request that collides with current session state.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a surface whose backing store is not configured.
var ErrUnavailable = errors.New("unavailable")

// StartSessionRequest starts one activity session.
type StartSessionRequest struct {
	Type                string              `json:"type" validate:"required,max=64"`
	UserID              string              `json:"user_id" validate:"required_without=User,max=128"`
	User                *domain.UserContext `json:"user,omitempty"`
	Difficulty          string              `json:"difficulty,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
	DurationMinutes     int                 `json:"duration_minutes,omitempty" validate:"gte=0,lte=120"`
	CulturalAdaptations []string            `json:"cultural_adaptations,omitempty" validate:"max=16,dive,max=64"`
}

// SessionRequest addresses one live session.
type SessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

// ProcessInputRequest submits one user turn.
type ProcessInputRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Input     string `json:"input" validate:"required,max=4000"`
}

// AdaptationRequest asks a live session to adapt.
type AdaptationRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Trigger   string `json:"trigger" validate:"required"`
	Details   string `json:"details,omitempty" validate:"max=1000"`
}

// EngagementRequest records one externally measured engagement sample.
type EngagementRequest struct {
	SessionID           string  `json:"session_id" validate:"required,max=128"`
	ResponseTimeSeconds float64 `json:"response_time_seconds" validate:"gte=0"`
	MessageLength       int     `json:"message_length" validate:"gte=0"`
	EmotionalExpression float64 `json:"emotional_expression" validate:"gte=0,lte=1"`
	QuestionAsking      float64 `json:"question_asking" validate:"gte=0,lte=1"`
	FollowThrough       float64 `json:"follow_through" validate:"gte=0,lte=1"`
	Overall             float64 `json:"overall" validate:"gte=0,lte=1"`
}

// RecommendRequest asks for ranked activities.
type RecommendRequest struct {
	UserID           string              `json:"user_id" validate:"required_without=User,max=128"`
	User             *domain.UserContext `json:"user,omitempty"`
	Mode             string              `json:"mode,omitempty" validate:"omitempty,oneof=standard crisis quick_relief"`
	EmotionalState   string              `json:"emotional_state,omitempty" validate:"max=64"`
	Urgency          string              `json:"urgency,omitempty" validate:"omitempty,oneof=low medium high immediate"`
	AvailableMinutes int                 `json:"available_minutes,omitempty" validate:"gte=0,lte=240"`
	SpecificNeeds    []string            `json:"specific_needs,omitempty" validate:"max=16,dive,max=64"`
	Limit            int                 `json:"limit,omitempty" validate:"gte=0,lte=50"`
}

// ListActivitiesRequest filters catalog listings.
type ListActivitiesRequest struct {
	Category string `json:"category,omitempty" validate:"omitempty,max=64"`
}

// ProfileRequest addresses one stored user profile.
type ProfileRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// HistoryRequest lists persisted sessions for one user.
type HistoryRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Limit  int    `json:"limit,omitempty" validate:"gte=0,lte=200"`
}

// SessionService captures session lifecycle operations exposed to transports.
type SessionService interface {
	StartSession(context.Context, StartSessionRequest) (app.ActivityResponse, error)
	ProcessInput(context.Context, ProcessInputRequest) (app.ActivityResponse, error)
	GetSession(context.Context, SessionRequest) (domain.ActivitySession, error)
	PauseSession(context.Context, SessionRequest) (domain.ActivitySession, error)
	ResumeSession(context.Context, SessionRequest) (domain.ActivitySession, error)
	AbandonSession(context.Context, SessionRequest) (domain.ActivitySession, error)
	CompleteSession(context.Context, SessionRequest) (app.SessionResult, error)
	RequestAdaptation(context.Context, AdaptationRequest) (domain.ActivityAdaptation, error)
	RecordEngagement(context.Context, EngagementRequest) error
	ListActiveSessions(context.Context, ProfileRequest) ([]domain.ActivitySession, error)
}

// RecommendationService captures catalog and recommendation reads.
type RecommendationService interface {
	Recommend(context.Context, RecommendRequest) ([]domain.ActivityRecommendation, error)
	ListActivities(context.Context, ListActivitiesRequest) ([]domain.ActivityMetadata, error)
}

// ProfileService captures optional profile and history operations.
type ProfileService interface {
	GetProfile(context.Context, ProfileRequest) (domain.UserContext, error)
	SaveProfile(context.Context, domain.UserContext) (domain.UserContext, error)
	ListHistory(context.Context, HistoryRequest) ([]domain.ActivitySession, error)
}
