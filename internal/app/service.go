package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hylla/manas/internal/activity"
	"github.com/hylla/manas/internal/domain"
)

// IDGenerator returns unique identifiers for new sessions.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// EngagementSink accepts pushed engagement samples.
type EngagementSink interface {
	Push(sessionID string, sample domain.EngagementMetrics)
}

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	Catalog        *Catalog
	Narrator       activity.Narrator
	Telemetry      TelemetrySource
	Logger         Logger
	Sessions       SessionTuning
	Difficulty     DifficultyTuning
	Recommendation RecommendationWeights
}

// Service drives activity sessions from start to completion.
type Service struct {
	profiles    ProfileStore
	recorder    SessionRecorder
	idGen       IDGenerator
	clock       Clock
	logger      Logger
	tuning      SessionTuning
	catalog     *Catalog
	factory     *Factory
	recommender *Recommender
	difficulty  *DifficultyEngine
	telemetry   TelemetrySource
	arena       *sessionStore
}

// NewService constructs a new value for this package.
func NewService(profiles ProfileStore, recorder SessionRecorder, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = uuid.NewString
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	tuning := cfg.Sessions.withDefaults()
	if cfg.Telemetry == nil {
		cfg.Telemetry = NewEngagementBuffer(0)
	}
	return &Service{
		profiles: profiles,
		recorder: recorder,
		idGen:    idGen,
		clock:    clock,
		logger:   cfg.Logger,
		tuning:   tuning,
		catalog:  cfg.Catalog,
		factory: NewFactory(cfg.Catalog, FactoryConfig{
			Narrator:         cfg.Narrator,
			NarrationTimeout: tuning.NarrationTimeout,
			Logger:           cfg.Logger,
			Clock:            clock,
		}),
		recommender: NewRecommender(cfg.Catalog, cfg.Recommendation),
		difficulty:  NewDifficultyEngine(cfg.Catalog, cfg.Difficulty, clock),
		telemetry:   cfg.Telemetry,
		arena:       newSessionStore(tuning.MaxActive),
	}
}

// Catalog returns the catalog the service reads.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// ActivityResponse is the caller-facing result of one session turn.
type ActivityResponse struct {
	SessionID            string               `json:"session_id"`
	Status               domain.SessionStatus `json:"status"`
	Content              string               `json:"content"`
	Kind                 activity.ContentKind `json:"kind"`
	NextStepPreview      string               `json:"next_step_preview,omitempty"`
	AdaptationTriggered  bool                 `json:"adaptation_triggered"`
	Fallback             bool                 `json:"fallback,omitempty"`
	Step                 int                  `json:"step"`
	TotalSteps           int                  `json:"total_steps"`
	CompletionPercentage float64              `json:"completion_percentage"`
}

// StartSessionInput holds input values for start session operations.
type StartSessionInput struct {
	Type      domain.ActivityType
	UserID    string
	User      *domain.UserContext
	Overrides ConfigurationOverrides
}

// StartSession checks eligibility, configures the activity and narrates its opening step.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (ActivityResponse, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" && in.User != nil {
		userID = strings.TrimSpace(in.User.UserID)
	}
	if userID == "" {
		return ActivityResponse{}, domain.ErrInvalidID
	}
	user, err := s.resolveUser(ctx, userID, in.User)
	if err != nil {
		return ActivityResponse{}, err
	}
	t := domain.NormalizeActivityType(in.Type)
	meta, err := s.factory.CheckEligibility(t, user)
	if err != nil {
		return ActivityResponse{}, err
	}
	cfg, err := s.factory.CreateDefaultConfiguration(t, user, in.Overrides)
	if err != nil {
		return ActivityResponse{}, err
	}

	id := strings.TrimSpace(s.idGen())
	svc, err := s.factory.CreateActivity(t, id, userID, user)
	if err != nil {
		return ActivityResponse{}, err
	}
	now := s.clock()
	session, err := domain.NewActivitySession(domain.SessionInput{
		ID:            id,
		UserID:        userID,
		Category:      meta.Category,
		Configuration: cfg,
		Parameters:    s.difficulty.Parameters(cfg.Difficulty, user.CurrentState.StressLevel, user),
		TotalSteps:    domain.StepCountFor(cfg.Difficulty),
		StressLevel:   user.CurrentState.StressLevel,
		Emotional:     user.CurrentState.EmotionalState,
	}, now)
	if err != nil {
		return ActivityResponse{}, err
	}
	if err := session.Start(now); err != nil {
		return ActivityResponse{}, err
	}

	live := &liveSession{session: session, service: svc, user: user, busy: true}
	if err := s.arena.insert(live); err != nil {
		return ActivityResponse{}, err
	}
	defer s.arena.release(live)

	resp := s.produce(id, func() (activity.Response, error) {
		return svc.Initialize(ctx, cfg, &session)
	})
	session.AppendResponse(resp.Content, s.clock())
	s.arena.commit(live, session)
	s.logger.Info("session started", "session_id", id, "user_id", userID, "type", t, "difficulty", cfg.Difficulty, "steps", session.TotalSteps)
	return toActivityResponse(session, resp), nil
}

// ProcessInput advances an active session by one user turn.
func (s *Service) ProcessInput(ctx context.Context, sessionID, input string) (ActivityResponse, error) {
	live, err := s.arena.acquire(sessionID)
	if err != nil {
		return ActivityResponse{}, err
	}
	defer s.arena.release(live)

	session := live.session.Clone()
	if session.Status != domain.SessionActive {
		return ActivityResponse{}, fmt.Errorf("process input in %s session %q: %w", session.Status, session.ID, domain.ErrInvalidTransition)
	}
	now := s.clock()
	elapsed := now.Sub(session.LastActivityAt)
	session.AppendInteraction(input, now)

	sample := deriveEngagement(input, elapsed, now)
	s.push(session.ID, sample)
	session.Metrics.ResponseTimeSeconds = sample.ResponseTimeSeconds
	session.Metrics.Participation = sample.Overall
	session.SetEngagement(0.6*session.EngagementScore + 0.4*(1+9*sample.Overall))

	adapted := false
	if phrase, ok := detectCrisis(input); ok && !inCrisisMode(session) {
		s.logger.Warn("crisis language detected", "session_id", session.ID, "user_id", session.UserID, "phrase", phrase)
		adapted = s.adapt(ctx, live, &session, domain.TriggerCrisisDetected, "Detected in a user message.")
	}

	session.Advance(now)
	resp := s.produce(session.ID, func() (activity.Response, error) {
		return live.service.ProcessUserInput(ctx, &session, input)
	})

	session.TurnsSinceAssessment++
	if session.TurnsSinceAssessment >= s.tuning.AssessEveryTurns {
		session.TurnsSinceAssessment = 0
		adapted = s.assess(ctx, live, &session) || adapted
	}
	resp.AdaptationTriggered = resp.AdaptationTriggered || adapted
	session.AppendResponse(resp.Content, s.clock())
	s.arena.commit(live, session)
	return toActivityResponse(session, resp), nil
}

// assess asks the difficulty engine for a decision and applies it.
func (s *Service) assess(ctx context.Context, live *liveSession, session *domain.ActivitySession) bool {
	recent, err := s.telemetry.RecentEngagement(ctx, session.ID, s.tuning.TelemetryWindow)
	if err != nil {
		s.logger.Warn("engagement telemetry unavailable", "session_id", session.ID, "err", err)
		recent = nil
	}
	adj := s.difficulty.Assess(*session, live.user, recent)
	if adj == nil {
		return false
	}
	now := s.clock()
	before := fmt.Sprintf("%s with %d steps", session.Configuration.Difficulty, session.TotalSteps)
	session.ApplyConfiguration(session.Configuration.WithDifficulty(adj.To, now))
	session.Parameters = adj.Parameters
	session.RescaleSteps(adj.NewTotalSteps)
	after := fmt.Sprintf("%s with %d steps", adj.To, session.TotalSteps)
	rationale := adj.Rationale
	narration, err := live.service.HandleAdaptation(ctx, session, adj.Trigger, "")
	if err != nil {
		s.logger.Warn("activity rejected difficulty adaptation", "session_id", session.ID, "err", err)
	} else {
		before += ", narration " + narration.Before
		after += ", narration " + narration.After
		rationale = strings.TrimSpace(rationale + " " + narration.Rationale)
	}
	kind := domain.AdaptationDifficultyDecrease
	if adj.Direction == domain.AdjustIncrease {
		kind = domain.AdaptationDifficultyIncrease
	}
	session.AppendAdaptation(domain.ActivityAdaptation{
		At:         now,
		Trigger:    adj.Trigger,
		Kind:       kind,
		Before:     before,
		After:      after,
		Rationale:  rationale,
		Adjustment: adj,
	})
	s.logger.Info("difficulty adjusted", "session_id", session.ID, "from", adj.From, "to", adj.To, "confidence", adj.Confidence)
	return true
}

// adapt routes one trigger through the activity service and records the result.
func (s *Service) adapt(ctx context.Context, live *liveSession, session *domain.ActivitySession, trigger domain.AdaptationTrigger, details string) bool {
	adaptation, err := live.service.HandleAdaptation(ctx, session, trigger, details)
	if err != nil {
		s.logger.Warn("adaptation failed", "session_id", session.ID, "trigger", trigger, "err", err)
		return false
	}
	session.AppendAdaptation(adaptation)
	return true
}

// inCrisisMode reports whether crisis support was already switched on.
func inCrisisMode(session domain.ActivitySession) bool {
	return slices.ContainsFunc(session.Adaptations, func(a domain.ActivityAdaptation) bool {
		return a.Kind == domain.AdaptationCrisisSupport
	})
}

// RequestAdaptation applies an explicit trigger to an active or paused session.
func (s *Service) RequestAdaptation(ctx context.Context, sessionID string, trigger domain.AdaptationTrigger, details string) (domain.ActivityAdaptation, error) {
	trigger = domain.NormalizeAdaptationTrigger(trigger)
	if !domain.IsValidAdaptationTrigger(trigger) {
		return domain.ActivityAdaptation{}, fmt.Errorf("request adaptation %q: %w", trigger, domain.ErrInvalidTrigger)
	}
	live, err := s.arena.acquire(sessionID)
	if err != nil {
		return domain.ActivityAdaptation{}, err
	}
	defer s.arena.release(live)

	session := live.session.Clone()
	if session.Status.IsTerminal() || session.Status == domain.SessionNotStarted {
		return domain.ActivityAdaptation{}, fmt.Errorf("adapt %s session %q: %w", session.Status, session.ID, domain.ErrInvalidTransition)
	}
	adaptation, err := live.service.HandleAdaptation(ctx, &session, trigger, details)
	if err != nil {
		return domain.ActivityAdaptation{}, err
	}
	session.AppendAdaptation(adaptation)
	session.LastActivityAt = s.clock().UTC()
	s.arena.commit(live, session)
	s.logger.Info("adaptation requested", "session_id", session.ID, "trigger", trigger, "kind", adaptation.Kind)
	return session.Adaptations[len(session.Adaptations)-1], nil
}

// PauseSession pauses an active session.
func (s *Service) PauseSession(_ context.Context, sessionID string) (domain.ActivitySession, error) {
	return s.transition(sessionID, domain.SessionPaused)
}

// ResumeSession reactivates a paused session.
func (s *Service) ResumeSession(_ context.Context, sessionID string) (domain.ActivitySession, error) {
	live, err := s.arena.acquire(sessionID)
	if err != nil {
		return domain.ActivitySession{}, err
	}
	defer s.arena.release(live)
	if live.session.Status != domain.SessionPaused {
		return domain.ActivitySession{}, fmt.Errorf("resume %s session %q: %w", live.session.Status, live.session.ID, domain.ErrInvalidTransition)
	}
	session := live.session.Clone()
	if err := session.Transition(domain.SessionActive, s.clock()); err != nil {
		return domain.ActivitySession{}, err
	}
	s.arena.commit(live, session)
	return session.Clone(), nil
}

func (s *Service) transition(sessionID string, to domain.SessionStatus) (domain.ActivitySession, error) {
	live, err := s.arena.acquire(sessionID)
	if err != nil {
		return domain.ActivitySession{}, err
	}
	defer s.arena.release(live)
	session := live.session.Clone()
	if err := session.Transition(to, s.clock()); err != nil {
		return domain.ActivitySession{}, fmt.Errorf("move session %q from %s to %s: %w", session.ID, session.Status, to, err)
	}
	s.arena.commit(live, session)
	return session.Clone(), nil
}

// AbandonSession ends a session without completion and removes it from the arena.
func (s *Service) AbandonSession(ctx context.Context, sessionID string) (domain.ActivitySession, error) {
	live, err := s.arena.acquire(sessionID)
	if err != nil {
		return domain.ActivitySession{}, err
	}
	defer s.arena.release(live)
	session := live.session.Clone()
	if err := session.Transition(domain.SessionAbandoned, s.clock()); err != nil {
		return domain.ActivitySession{}, fmt.Errorf("abandon %s session %q: %w", session.Status, session.ID, err)
	}
	s.arena.commit(live, session)
	s.forget(session.ID)
	s.logger.Info("session abandoned", "session_id", session.ID, "step", session.CurrentStep, "total_steps", session.TotalSteps)
	if s.recorder != nil {
		if err := s.recorder.SaveSession(ctx, session); err != nil {
			return session, fmt.Errorf("persist abandoned session %q: %w", session.ID, err)
		}
	}
	return session, nil
}

// SessionResult summarizes one finished session.
type SessionResult struct {
	Session            domain.ActivitySession          `json:"session"`
	Summary            string                          `json:"summary"`
	Insights           []string                        `json:"insights"`
	SkillsDemonstrated []string                        `json:"skills_demonstrated"`
	EngagementScore    float64                         `json:"engagement_score"`
	Completion         float64                         `json:"completion_percentage"`
	Duration           time.Duration                   `json:"duration"`
	FollowUps          []domain.ActivityRecommendation `json:"follow_ups,omitempty"`
}

// CompleteSession closes a session, persists it with the progress record and suggests follow-ups.
func (s *Service) CompleteSession(ctx context.Context, sessionID string) (SessionResult, error) {
	live, err := s.arena.acquire(sessionID)
	if err != nil {
		return SessionResult{}, err
	}
	defer s.arena.release(live)

	session := live.session.Clone()
	if session.Status != domain.SessionActive && session.Status != domain.SessionPaused {
		return SessionResult{}, fmt.Errorf("complete %s session %q: %w", session.Status, session.ID, domain.ErrInvalidTransition)
	}
	completion := s.complete(ctx, live, &session)
	status := domain.SessionPartiallyCompleted
	if session.IsFinalStep() {
		status = domain.SessionCompleted
	}
	now := s.clock()
	if err := session.Transition(status, now); err != nil {
		return SessionResult{}, err
	}
	s.arena.commit(live, session)
	s.forget(session.ID)

	result := SessionResult{
		Session:            session.Clone(),
		Summary:            completion.Summary,
		Insights:           completion.Insights,
		SkillsDemonstrated: completion.SkillsDemonstrated,
		EngagementScore:    session.EngagementScore,
		Completion:         session.CompletionPercentage,
		Duration:           now.Sub(session.StartedAt),
	}
	record := CompletionRecord{
		UserID:          session.UserID,
		SessionID:       session.ID,
		Type:            session.Type,
		Status:          status,
		SkillsLearned:   slices.Clone(completion.SkillsDemonstrated),
		EngagementScore: session.EngagementScore,
		Completion:      session.CompletionPercentage,
		Difficulty:      session.Configuration.Difficulty,
		CompletedAt:     now.UTC(),
	}
	result.FollowUps = s.followUps(live.user, record)
	s.logger.Info("session finished", "session_id", session.ID, "status", status, "completion", session.CompletionPercentage)

	if err := s.persist(ctx, session, record); err != nil {
		s.logger.Error("persist finished session", "session_id", session.ID, "err", err)
		return result, err
	}
	return result, nil
}

// complete asks the activity for its report, degrading to a generic summary.
func (s *Service) complete(ctx context.Context, live *liveSession, session *domain.ActivitySession) (out activity.Completion) {
	fallback := activity.Completion{
		Summary:            fmt.Sprintf("You spent time on %d of %d steps. Thank you for taking this time for yourself.", session.CurrentStep, session.TotalSteps),
		Insights:           []string{},
		SkillsDemonstrated: []string{},
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("activity completion panicked", "session_id", session.ID, "panic", r)
			out = fallback
		}
	}()
	completion, err := live.service.Complete(ctx, session)
	if err != nil {
		s.logger.Warn("activity completion failed", "session_id", session.ID, "err", err)
		return fallback
	}
	return completion
}

// persist writes the session record and the progress record concurrently.
func (s *Service) persist(ctx context.Context, session domain.ActivitySession, record CompletionRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.recorder != nil {
		g.Go(func() error {
			if err := s.recorder.SaveSession(gctx, session); err != nil {
				return fmt.Errorf("save session %q: %w", session.ID, err)
			}
			return nil
		})
	}
	if s.profiles != nil {
		g.Go(func() error {
			if err := s.profiles.RecordCompletion(gctx, record); err != nil {
				return fmt.Errorf("record completion for %q: %w", record.UserID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// followUps recommends what to try next, excluding the finished activity.
func (s *Service) followUps(user domain.UserContext, record CompletionRecord) []domain.ActivityRecommendation {
	next := user.Clone()
	if record.FullyCompleted() {
		next.Progress.CompletedTypes = append(next.Progress.CompletedTypes, record.Type)
	}
	next.Progress.SkillsLearned = appendUnique(next.Progress.SkillsLearned, record.SkillsLearned...)
	recs, err := s.recommender.Recommend(domain.RecommendationCriteria{User: next, Limit: 4})
	if err != nil {
		s.logger.Warn("follow-up recommendations failed", "user_id", user.UserID, "err", err)
		return nil
	}
	recs = slices.DeleteFunc(recs, func(r domain.ActivityRecommendation) bool { return r.Type == record.Type })
	return recs[:min(3, len(recs))]
}

// GetSession returns a copy of one in-progress session.
func (s *Service) GetSession(_ context.Context, sessionID string) (domain.ActivitySession, error) {
	return s.arena.snapshot(sessionID)
}

// ListActiveSessions returns in-progress sessions, optionally for one user.
func (s *Service) ListActiveSessions(_ context.Context, userID string) []domain.ActivitySession {
	return s.arena.list(userID)
}

// RecordEngagement pushes an externally measured engagement sample.
func (s *Service) RecordEngagement(_ context.Context, sessionID string, sample domain.EngagementMetrics) error {
	session, err := s.arena.snapshot(sessionID)
	if err != nil {
		return err
	}
	s.push(session.ID, domain.NewEngagementMetrics(sample, s.clock()))
	return nil
}

// DifficultyHistory returns the difficulty decisions recorded for one session.
func (s *Service) DifficultyHistory(sessionID string) []domain.DifficultyAdjustment {
	return s.difficulty.History(strings.TrimSpace(sessionID))
}

// SweepIdleSessions abandons sessions idle past the configured timeout.
func (s *Service) SweepIdleSessions(ctx context.Context) (int, error) {
	cutoff := s.clock().Add(-s.tuning.IdleTimeout)
	var errs []error
	swept := 0
	for _, id := range s.arena.idle(cutoff) {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		_, err := s.AbandonSession(ctx, id)
		switch {
		case err == nil:
			swept++
		case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrSessionNotFound):
		default:
			errs = append(errs, err)
		}
	}
	if swept > 0 {
		s.logger.Info("idle sessions swept", "count", swept, "remaining", s.arena.len())
	}
	return swept, errors.Join(errs...)
}

// Recommend ranks activities for the criteria's user.
func (s *Service) Recommend(ctx context.Context, criteria domain.RecommendationCriteria) ([]domain.ActivityRecommendation, error) {
	user, err := s.resolveUser(ctx, criteria.User.UserID, &criteria.User)
	if err != nil {
		return nil, err
	}
	criteria.User = user
	return s.recommender.Recommend(criteria)
}

// CrisisSupport returns the immediate crisis recommendations for a user.
func (s *Service) CrisisSupport(ctx context.Context, user domain.UserContext) ([]domain.ActivityRecommendation, error) {
	resolved, err := s.resolveUser(ctx, user.UserID, &user)
	if err != nil {
		return nil, err
	}
	return s.recommender.CrisisRecommendations(resolved)
}

// QuickRelief returns short, high-relevance activities for a user.
func (s *Service) QuickRelief(ctx context.Context, user domain.UserContext) ([]domain.ActivityRecommendation, error) {
	resolved, err := s.resolveUser(ctx, user.UserID, &user)
	if err != nil {
		return nil, err
	}
	return s.recommender.QuickRelief(resolved)
}

// ListActivities lists catalog entries, optionally for one category.
func (s *Service) ListActivities(category domain.ActivityCategory) []domain.ActivityMetadata {
	if category = domain.NormalizeCategory(category); category != "" {
		return s.catalog.ListByCategory(category)
	}
	return s.catalog.List()
}

// GetUserContext loads one user's profile, returning an empty one when unknown.
func (s *Service) GetUserContext(ctx context.Context, userID string) (domain.UserContext, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.UserContext{}, domain.ErrInvalidID
	}
	return s.resolveUser(ctx, userID, nil)
}

// SaveUserContext normalizes and stores one user's profile.
func (s *Service) SaveUserContext(ctx context.Context, user domain.UserContext) (domain.UserContext, error) {
	if err := user.Normalize(); err != nil {
		return domain.UserContext{}, err
	}
	if user.UserID == "" {
		return domain.UserContext{}, domain.ErrInvalidID
	}
	if s.profiles == nil {
		return domain.UserContext{}, ErrNoStore
	}
	if err := s.profiles.SaveUserContext(ctx, user); err != nil {
		return domain.UserContext{}, err
	}
	return user, nil
}

// ListSessionHistory returns persisted sessions for one user, newest first.
func (s *Service) ListSessionHistory(ctx context.Context, userID string, limit int) ([]domain.ActivitySession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	if s.recorder == nil {
		return nil, ErrNoStore
	}
	if limit <= 0 {
		limit = 20
	}
	return s.recorder.ListSessions(ctx, userID, limit)
}

// resolveUser prefers a supplied profile, else the stored one, else an empty context.
func (s *Service) resolveUser(ctx context.Context, userID string, supplied *domain.UserContext) (domain.UserContext, error) {
	userID = strings.TrimSpace(userID)
	var user domain.UserContext
	switch {
	case supplied != nil && !isBareUser(*supplied):
		user = supplied.Clone()
	case s.profiles != nil && userID != "":
		stored, err := s.profiles.GetUserContext(ctx, userID)
		switch {
		case err == nil:
			user = stored
		case errors.Is(err, ErrNotFound):
			s.logger.Debug("no stored profile; using empty context", "user_id", userID)
		default:
			return domain.UserContext{}, fmt.Errorf("load profile %q: %w", userID, err)
		}
	}
	if user.UserID == "" {
		user.UserID = userID
	}
	if err := user.Normalize(); err != nil {
		return domain.UserContext{}, err
	}
	return user, nil
}

// isBareUser reports whether a context carries nothing but an id.
func isBareUser(u domain.UserContext) bool {
	return u.Demographics == (domain.Demographics{}) &&
		len(u.History.PrimaryConcerns) == 0 && len(u.History.Goals) == 0 && len(u.History.RiskFactors) == 0 &&
		u.History.PriorSessionCount == 0 &&
		u.CurrentState.EmotionalState == "" && u.CurrentState.StressLevel == 0 &&
		len(u.Preferences.PreferredTypes) == 0 && u.Preferences.SessionMinutes == 0 && u.Preferences.Difficulty == "" &&
		len(u.Progress.CompletedTypes) == 0 && u.Progress.CurrentPhase == ""
}

// produce runs one content call, degrading failures and panics to a supportive fallback.
func (s *Service) produce(sessionID string, fn func() (activity.Response, error)) (resp activity.Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("activity content panicked", "session_id", sessionID, "panic", r)
			resp = supportiveFallback()
		}
	}()
	var err error
	resp, err = fn()
	if err != nil {
		s.logger.Warn("activity content failed", "session_id", sessionID, "err", err)
		return supportiveFallback()
	}
	if strings.TrimSpace(resp.Content) == "" {
		return supportiveFallback()
	}
	return resp
}

// supportiveFallback is the generic response used when an activity cannot answer.
func supportiveFallback() activity.Response {
	return activity.Response{
		Content:  "Thank you for sharing that. Let's take a slow breath together and continue when you're ready.",
		Kind:     activity.KindMessage,
		Fallback: true,
	}
}

func (s *Service) push(sessionID string, sample domain.EngagementMetrics) {
	if sink, ok := s.telemetry.(EngagementSink); ok {
		sink.Push(sessionID, sample)
	}
}

// forget drops an ended session from the arena and its transient state.
func (s *Service) forget(sessionID string) {
	s.arena.remove(sessionID)
	s.difficulty.Forget(sessionID)
	if buf, ok := s.telemetry.(*EngagementBuffer); ok {
		buf.Drop(sessionID)
	}
}

func toActivityResponse(session domain.ActivitySession, resp activity.Response) ActivityResponse {
	return ActivityResponse{
		SessionID:            session.ID,
		Status:               session.Status,
		Content:              resp.Content,
		Kind:                 resp.Kind,
		NextStepPreview:      resp.NextStepPreview,
		AdaptationTriggered:  resp.AdaptationTriggered,
		Fallback:             resp.Fallback,
		Step:                 session.CurrentStep,
		TotalSteps:           session.TotalSteps,
		CompletionPercentage: session.CompletionPercentage,
	}
}
