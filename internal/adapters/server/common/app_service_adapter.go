package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service engine APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// configured reports an error when the adapter has no backing service.
func (a *AppServiceAdapter) configured() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// StartSession validates and starts one activity session.
func (a *AppServiceAdapter) StartSession(ctx context.Context, in StartSessionRequest) (app.ActivityResponse, error) {
	if err := a.configured(); err != nil {
		return app.ActivityResponse{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return app.ActivityResponse{}, err
	}
	resp, err := a.service.StartSession(ctx, app.StartSessionInput{
		Type:   domain.ActivityType(in.Type),
		UserID: strings.TrimSpace(in.UserID),
		User:   in.User,
		Overrides: app.ConfigurationOverrides{
			Difficulty:          domain.DifficultyLevel(in.Difficulty),
			DurationMinutes:     in.DurationMinutes,
			CulturalAdaptations: in.CulturalAdaptations,
		},
	})
	if err != nil {
		return app.ActivityResponse{}, mapAppError("start session", err)
	}
	return resp, nil
}

// ProcessInput submits one user turn.
func (a *AppServiceAdapter) ProcessInput(ctx context.Context, in ProcessInputRequest) (app.ActivityResponse, error) {
	if err := a.configured(); err != nil {
		return app.ActivityResponse{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return app.ActivityResponse{}, err
	}
	resp, err := a.service.ProcessInput(ctx, in.SessionID, in.Input)
	if err != nil {
		return app.ActivityResponse{}, mapAppError("process input", err)
	}
	return resp, nil
}

// GetSession returns one live session snapshot.
func (a *AppServiceAdapter) GetSession(ctx context.Context, in SessionRequest) (domain.ActivitySession, error) {
	return a.sessionOp(ctx, "get session", in, (*app.Service).GetSession)
}

// PauseSession pauses one live session.
func (a *AppServiceAdapter) PauseSession(ctx context.Context, in SessionRequest) (domain.ActivitySession, error) {
	return a.sessionOp(ctx, "pause session", in, (*app.Service).PauseSession)
}

// ResumeSession resumes one paused session.
func (a *AppServiceAdapter) ResumeSession(ctx context.Context, in SessionRequest) (domain.ActivitySession, error) {
	return a.sessionOp(ctx, "resume session", in, (*app.Service).ResumeSession)
}

// AbandonSession abandons one live session.
func (a *AppServiceAdapter) AbandonSession(ctx context.Context, in SessionRequest) (domain.ActivitySession, error) {
	return a.sessionOp(ctx, "abandon session", in, (*app.Service).AbandonSession)
}

// sessionOp runs one id-addressed session operation with shared validation and error mapping.
func (a *AppServiceAdapter) sessionOp(
	ctx context.Context,
	operation string,
	in SessionRequest,
	fn func(*app.Service, context.Context, string) (domain.ActivitySession, error),
) (domain.ActivitySession, error) {
	if err := a.configured(); err != nil {
		return domain.ActivitySession{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.ActivitySession{}, err
	}
	session, err := fn(a.service, ctx, in.SessionID)
	if err != nil {
		return domain.ActivitySession{}, mapAppError(operation, err)
	}
	return session, nil
}

// CompleteSession completes one live session and returns its result.
func (a *AppServiceAdapter) CompleteSession(ctx context.Context, in SessionRequest) (app.SessionResult, error) {
	if err := a.configured(); err != nil {
		return app.SessionResult{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return app.SessionResult{}, err
	}
	result, err := a.service.CompleteSession(ctx, in.SessionID)
	if err != nil && result.Session.ID == "" {
		return app.SessionResult{}, mapAppError("complete session", err)
	}
	// A persistence failure still yields a usable result; the engine has logged it.
	return result, nil
}

// RequestAdaptation records one caller-requested adaptation.
func (a *AppServiceAdapter) RequestAdaptation(ctx context.Context, in AdaptationRequest) (domain.ActivityAdaptation, error) {
	if err := a.configured(); err != nil {
		return domain.ActivityAdaptation{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.ActivityAdaptation{}, err
	}
	adaptation, err := a.service.RequestAdaptation(ctx, in.SessionID, domain.AdaptationTrigger(in.Trigger), in.Details)
	if err != nil {
		return domain.ActivityAdaptation{}, mapAppError("request adaptation", err)
	}
	return adaptation, nil
}

// RecordEngagement pushes one engagement sample for a live session.
func (a *AppServiceAdapter) RecordEngagement(ctx context.Context, in EngagementRequest) error {
	if err := a.configured(); err != nil {
		return err
	}
	if err := ValidateRequest(in); err != nil {
		return err
	}
	err := a.service.RecordEngagement(ctx, in.SessionID, domain.EngagementMetrics{
		ResponseTimeSeconds: in.ResponseTimeSeconds,
		MessageLength:       in.MessageLength,
		EmotionalExpression: in.EmotionalExpression,
		QuestionAsking:      in.QuestionAsking,
		FollowThrough:       in.FollowThrough,
		Overall:             in.Overall,
	})
	return mapAppError("record engagement", err)
}

// ListActiveSessions lists live sessions for one user.
func (a *AppServiceAdapter) ListActiveSessions(ctx context.Context, in ProfileRequest) ([]domain.ActivitySession, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	return a.service.ListActiveSessions(ctx, in.UserID), nil
}

// Recommend ranks activities according to the requested mode.
func (a *AppServiceAdapter) Recommend(ctx context.Context, in RecommendRequest) ([]domain.ActivityRecommendation, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	user := domain.UserContext{}
	if in.User != nil {
		user = in.User.Clone()
	}
	if id := strings.TrimSpace(in.UserID); id != "" {
		user.UserID = id
	}

	var (
		recs []domain.ActivityRecommendation
		err  error
	)
	switch in.Mode {
	case RecommendModeCrisis:
		recs, err = a.service.CrisisSupport(ctx, user)
	case RecommendModeQuickRelief:
		recs, err = a.service.QuickRelief(ctx, user)
	default:
		recs, err = a.service.Recommend(ctx, domain.RecommendationCriteria{
			User:             user,
			EmotionalState:   in.EmotionalState,
			Urgency:          domain.Urgency(in.Urgency),
			AvailableMinutes: in.AvailableMinutes,
			SpecificNeeds:    in.SpecificNeeds,
			Limit:            in.Limit,
		})
	}
	if err != nil {
		return nil, mapAppError("recommend", err)
	}
	if in.Limit > 0 && len(recs) > in.Limit {
		recs = recs[:in.Limit]
	}
	return recs, nil
}

// ListActivities lists catalog entries, optionally filtered by category.
func (a *AppServiceAdapter) ListActivities(_ context.Context, in ListActivitiesRequest) ([]domain.ActivityMetadata, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	category := domain.NormalizeCategory(domain.ActivityCategory(in.Category))
	if category != "" && !domain.IsValidCategory(category) {
		return nil, fmt.Errorf("list activities: %w", errors.Join(ErrInvalidRequest, domain.ErrInvalidCategory))
	}
	return a.service.ListActivities(category), nil
}

// GetProfile loads one user profile.
func (a *AppServiceAdapter) GetProfile(ctx context.Context, in ProfileRequest) (domain.UserContext, error) {
	if err := a.configured(); err != nil {
		return domain.UserContext{}, err
	}
	if err := ValidateRequest(in); err != nil {
		return domain.UserContext{}, err
	}
	user, err := a.service.GetUserContext(ctx, in.UserID)
	if err != nil {
		return domain.UserContext{}, mapAppError("get profile", err)
	}
	return user, nil
}

// SaveProfile stores one user profile.
func (a *AppServiceAdapter) SaveProfile(ctx context.Context, user domain.UserContext) (domain.UserContext, error) {
	if err := a.configured(); err != nil {
		return domain.UserContext{}, err
	}
	saved, err := a.service.SaveUserContext(ctx, user)
	if err != nil {
		return domain.UserContext{}, mapAppError("save profile", err)
	}
	return saved, nil
}

// ListHistory lists persisted sessions for one user.
func (a *AppServiceAdapter) ListHistory(ctx context.Context, in HistoryRequest) ([]domain.ActivitySession, error) {
	if err := a.configured(); err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	sessions, err := a.service.ListSessionHistory(ctx, in.UserID, in.Limit)
	if err != nil {
		return nil, mapAppError("list history", err)
	}
	return sessions, nil
}

// mapAppError joins engine errors with the transport-level class they belong to.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrNotFound),
		errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrNotRegistered):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrPrerequisiteUnmet),
		errors.Is(err, app.ErrContraindicated):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrIneligible, err))
	case errors.Is(err, app.ErrSessionBusy),
		errors.Is(err, app.ErrSessionExists),
		errors.Is(err, app.ErrCapacityReached),
		errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrNoStore):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	case errors.Is(err, app.ErrInvalidConfiguration),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidActivityType),
		errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidDifficulty),
		errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidStressLevel),
		errors.Is(err, domain.ErrInvalidUrgency),
		errors.Is(err, domain.ErrInvalidTrigger),
		errors.Is(err, domain.ErrInvalidCulturalRelevance),
		errors.Is(err, domain.ErrInvalidStepCount):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
