package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/manas/internal/app"
	"github.com/hylla/manas/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores user profiles, finished sessions, and completion records.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	// One connection serializes writers and keeps a :memory: database shared.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_contexts (
			user_id TEXT PRIMARY KEY,
			context_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS activity_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL,
			engagement_score REAL NOT NULL DEFAULT 0,
			completion_percentage REAL NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			session_json TEXT NOT NULL DEFAULT '{}',
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS completions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			status TEXT NOT NULL,
			difficulty TEXT NOT NULL DEFAULT '',
			engagement_score REAL NOT NULL DEFAULT 0,
			completion_percentage REAL NOT NULL DEFAULT 0,
			skills_json TEXT NOT NULL DEFAULT '[]',
			completed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activity_sessions_user_started ON activity_sessions(user_id, started_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_completions_user_completed ON completions(user_id, completed_at DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `ALTER TABLE activity_sessions ADD COLUMN adaptation_count INTEGER NOT NULL DEFAULT 0`); err != nil && !isDuplicateColumnErr(err) {
		return fmt.Errorf("migrate sqlite add activity_sessions.adaptation_count: %w", err)
	}
	return nil
}

// GetUserContext loads one stored profile.
func (r *Repository) GetUserContext(ctx context.Context, userID string) (domain.UserContext, error) {
	return getUserContext(ctx, r.db, strings.TrimSpace(userID))
}

// SaveUserContext inserts or replaces one profile.
func (r *Repository) SaveUserContext(ctx context.Context, user domain.UserContext) error {
	if err := user.Normalize(); err != nil {
		return err
	}
	if user.UserID == "" {
		return domain.ErrInvalidID
	}
	return upsertUserContext(ctx, r.db, user, time.Now())
}

// RecordCompletion appends a completion row and folds it into the user's progress.
func (r *Repository) RecordCompletion(ctx context.Context, rec app.CompletionRecord) error {
	rec.UserID = strings.TrimSpace(rec.UserID)
	if rec.UserID == "" {
		return domain.ErrInvalidID
	}
	skillsJSON, err := json.Marshal(domain.NormalizeTags(rec.SkillsLearned))
	if err != nil {
		return fmt.Errorf("encode completion skills: %w", err)
	}
	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	user, err := getUserContext(ctx, tx, rec.UserID)
	switch {
	case errors.Is(err, app.ErrNotFound):
		user = domain.UserContext{UserID: rec.UserID}
	case err != nil:
		return err
	}
	rec.ApplyTo(&user)
	if err := upsertUserContext(ctx, tx, user, completedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO completions(user_id, session_id, activity_type, status, difficulty, engagement_score, completion_percentage, skills_json, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.UserID, rec.SessionID, string(rec.Type), string(rec.Status), string(rec.Difficulty), rec.EngagementScore, rec.Completion, string(skillsJSON), ts(completedAt)); err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return tx.Commit()
}

// ListCompletions returns the newest completion records for one user.
func (r *Repository) ListCompletions(ctx context.Context, userID string, limit int) ([]app.CompletionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, session_id, activity_type, status, difficulty, engagement_score, completion_percentage, skills_json, completed_at
		FROM completions
		WHERE user_id = ?
		ORDER BY completed_at DESC, id DESC
		LIMIT ?
	`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.CompletionRecord, 0)
	for rows.Next() {
		var (
			rec                               app.CompletionRecord
			typeRaw, statusRaw, difficultyRaw string
			skillsRaw, completedRaw           string
		)
		if err := rows.Scan(&rec.UserID, &rec.SessionID, &typeRaw, &statusRaw, &difficultyRaw, &rec.EngagementScore, &rec.Completion, &skillsRaw, &completedRaw); err != nil {
			return nil, err
		}
		rec.Type = domain.ActivityType(typeRaw)
		rec.Status = domain.SessionStatus(statusRaw)
		rec.Difficulty = domain.DifficultyLevel(difficultyRaw)
		if err := json.Unmarshal([]byte(skillsRaw), &rec.SkillsLearned); err != nil {
			return nil, fmt.Errorf("decode completion skills: %w", err)
		}
		rec.CompletedAt = parseTS(completedRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveSession inserts or replaces one finished session.
func (r *Repository) SaveSession(ctx context.Context, s domain.ActivitySession) error {
	if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.UserID) == "" {
		return domain.ErrInvalidID
	}
	sessionJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO activity_sessions(id, user_id, activity_type, category, status, engagement_score, completion_percentage, started_at, ended_at, session_json, updated_at, adaptation_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			engagement_score = excluded.engagement_score,
			completion_percentage = excluded.completion_percentage,
			ended_at = excluded.ended_at,
			session_json = excluded.session_json,
			updated_at = excluded.updated_at,
			adaptation_count = excluded.adaptation_count
	`, s.ID, s.UserID, string(s.Type), string(s.Category), string(s.Status), s.EngagementScore, s.CompletionPercentage,
		ts(s.StartedAt), nullableTS(s.EndedAt), string(sessionJSON), ts(s.LastActivityAt), len(s.Adaptations))
	return err
}

// GetSession loads one stored session.
func (r *Repository) GetSession(ctx context.Context, id string) (domain.ActivitySession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT session_json FROM activity_sessions WHERE id = ?`, strings.TrimSpace(id))
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ActivitySession{}, app.ErrNotFound
	}
	return s, err
}

// ListSessions returns a user's stored sessions, newest first.
func (r *Repository) ListSessions(ctx context.Context, userID string, limit int) ([]domain.ActivitySession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_json
		FROM activity_sessions
		WHERE user_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ActivitySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryRower is the read surface shared by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// execerContext is the write surface shared by *sql.DB and *sql.Tx.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func getUserContext(ctx context.Context, q queryRower, userID string) (domain.UserContext, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT context_json FROM user_contexts WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserContext{}, app.ErrNotFound
	}
	if err != nil {
		return domain.UserContext{}, err
	}
	var user domain.UserContext
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return domain.UserContext{}, fmt.Errorf("decode user context: %w", err)
	}
	user.UserID = userID
	return user, nil
}

func upsertUserContext(ctx context.Context, execer execerContext, user domain.UserContext, now time.Time) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user context: %w", err)
	}
	_, err = execer.ExecContext(ctx, `
		INSERT INTO user_contexts(user_id, context_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			context_json = excluded.context_json,
			updated_at = excluded.updated_at
	`, user.UserID, string(raw), ts(now), ts(now))
	return err
}

func scanSession(s scanner) (domain.ActivitySession, error) {
	var raw string
	if err := s.Scan(&raw); err != nil {
		return domain.ActivitySession{}, err
	}
	var session domain.ActivitySession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.ActivitySession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// isDuplicateColumnErr reports whether the expected condition is satisfied.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column name")
}
