package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/domain"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// Table names used by the store.
const (
	TableUserContexts = "user_contexts"
	TableSessions     = "activity_sessions"
	TableCompletions  = "completions"
)

// Store persists profiles, sessions, and completions in Supabase tables.
type Store struct {
	client *supa.Client
	now    func() time.Time
}

// Open creates a client for one Supabase project.
func Open(url, key string) (*Store, error) {
	url = strings.TrimSpace(url)
	key = strings.TrimSpace(key)
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supa.NewClient(url, key, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return NewStore(client), nil
}

// NewStore wraps an existing client.
func NewStore(client *supa.Client) *Store {
	return &Store{client: client, now: time.Now}
}

type userRow struct {
	UserID    string          `json:"user_id"`
	Context   json.RawMessage `json:"context"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type sessionRow struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	ActivityType string          `json:"activity_type"`
	Status       string          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at"`
	Session      json.RawMessage `json:"session"`
}

type completionRow struct {
	UserID          string    `json:"user_id"`
	SessionID       string    `json:"session_id"`
	ActivityType    string    `json:"activity_type"`
	Status          string    `json:"status"`
	Difficulty      string    `json:"difficulty"`
	EngagementScore float64   `json:"engagement_score"`
	Completion      float64   `json:"completion_percentage"`
	SkillsLearned   []string  `json:"skills_learned"`
	CompletedAt     time.Time `json:"completed_at"`
}

// GetUserContext loads one stored profile.
func (s *Store) GetUserContext(_ context.Context, userID string) (domain.UserContext, error) {
	userID = strings.TrimSpace(userID)
	resp, _, err := s.client.From(TableUserContexts).
		Select("user_id, context", "", false).
		Eq("user_id", userID).
		Limit(1, "").
		Execute()
	if err != nil {
		return domain.UserContext{}, fmt.Errorf("fetch user context: %w", err)
	}
	var rows []userRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return domain.UserContext{}, fmt.Errorf("decode user context rows: %w", err)
	}
	if len(rows) == 0 {
		return domain.UserContext{}, app.ErrNotFound
	}
	var user domain.UserContext
	if err := json.Unmarshal(rows[0].Context, &user); err != nil {
		return domain.UserContext{}, fmt.Errorf("decode user context: %w", err)
	}
	user.UserID = userID
	return user, nil
}

// SaveUserContext upserts one profile.
func (s *Store) SaveUserContext(ctx context.Context, user domain.UserContext) error {
	if err := user.Normalize(); err != nil {
		return err
	}
	if user.UserID == "" {
		return domain.ErrInvalidID
	}
	return s.upsertUser(ctx, user)
}

func (s *Store) upsertUser(_ context.Context, user domain.UserContext) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user context: %w", err)
	}
	row := userRow{UserID: user.UserID, Context: raw, UpdatedAt: s.now().UTC()}
	if _, _, err := s.client.From(TableUserContexts).
		Upsert(row, "user_id", "", "").
		Execute(); err != nil {
		return fmt.Errorf("upsert user context: %w", err)
	}
	return nil
}

// RecordCompletion appends a completion row and folds it into the user's progress.
// The profile update is a read-modify-write and is not atomic with the insert.
func (s *Store) RecordCompletion(ctx context.Context, rec app.CompletionRecord) error {
	rec.UserID = strings.TrimSpace(rec.UserID)
	if rec.UserID == "" {
		return domain.ErrInvalidID
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = s.now()
	}
	user, err := s.GetUserContext(ctx, rec.UserID)
	switch {
	case errors.Is(err, app.ErrNotFound):
		user = domain.UserContext{UserID: rec.UserID}
	case err != nil:
		return err
	}
	rec.ApplyTo(&user)
	if err := s.upsertUser(ctx, user); err != nil {
		return err
	}
	row := completionRow{
		UserID:          rec.UserID,
		SessionID:       rec.SessionID,
		ActivityType:    string(rec.Type),
		Status:          string(rec.Status),
		Difficulty:      string(rec.Difficulty),
		EngagementScore: rec.EngagementScore,
		Completion:      rec.Completion,
		SkillsLearned:   domain.NormalizeTags(rec.SkillsLearned),
		CompletedAt:     rec.CompletedAt.UTC(),
	}
	if _, _, err := s.client.From(TableCompletions).
		Insert(row, false, "", "", "").
		Execute(); err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// SaveSession upserts one finished session.
func (s *Store) SaveSession(_ context.Context, session domain.ActivitySession) error {
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.UserID) == "" {
		return domain.ErrInvalidID
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	row := sessionRow{
		ID:           session.ID,
		UserID:       session.UserID,
		ActivityType: string(session.Type),
		Status:       string(session.Status),
		StartedAt:    session.StartedAt.UTC(),
		EndedAt:      session.EndedAt,
		Session:      raw,
	}
	if _, _, err := s.client.From(TableSessions).
		Upsert(row, "id", "", "").
		Execute(); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// ListSessions returns a user's stored sessions, newest first.
func (s *Store) ListSessions(_ context.Context, userID string, limit int) ([]domain.ActivitySession, error) {
	if limit <= 0 {
		limit = 20
	}
	resp, _, err := s.client.From(TableSessions).
		Select("id, session", "", false).
		Eq("user_id", strings.TrimSpace(userID)).
		Order("started_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	var rows []sessionRow
	if err := json.Unmarshal(resp, &rows); err != nil {
		return nil, fmt.Errorf("decode session rows: %w", err)
	}
	out := make([]domain.ActivitySession, 0, len(rows))
	for _, row := range rows {
		var session domain.ActivitySession
		if err := json.Unmarshal(row.Session, &session); err != nil {
			return nil, fmt.Errorf("decode session %q: %w", row.ID, err)
		}
		out = append(out, session)
	}
	return out, nil
}
