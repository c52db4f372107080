package app

import (
	"context"
	"time"

	"github.com/hylla/manas/internal/domain"
)

// ProfileStore reads user context and records progress.
type ProfileStore interface {
	GetUserContext(context.Context, string) (domain.UserContext, error)
	SaveUserContext(context.Context, domain.UserContext) error
	RecordCompletion(context.Context, CompletionRecord) error
}

// SessionRecorder persists finished sessions.
type SessionRecorder interface {
	SaveSession(context.Context, domain.ActivitySession) error
	ListSessions(context.Context, string, int) ([]domain.ActivitySession, error)
}

// TelemetrySource supplies recent engagement samples for a session.
type TelemetrySource interface {
	RecentEngagement(context.Context, string, int) ([]domain.EngagementMetrics, error)
}

// CompletionRecord is the progress update written when a session ends.
type CompletionRecord struct {
	UserID          string                 `json:"user_id"`
	SessionID       string                 `json:"session_id"`
	Type            domain.ActivityType    `json:"type"`
	Status          domain.SessionStatus   `json:"status"`
	SkillsLearned   []string               `json:"skills_learned,omitempty"`
	EngagementScore float64                `json:"engagement_score"`
	Completion      float64                `json:"completion_percentage"`
	Difficulty      domain.DifficultyLevel `json:"difficulty"`
	CompletedAt     time.Time              `json:"completed_at"`
}

// FullyCompleted reports whether the record should count toward prerequisites.
func (r CompletionRecord) FullyCompleted() bool {
	return r.Status == domain.SessionCompleted
}

// EngagementHistoryLimit caps the per-user engagement history kept by stores.
const EngagementHistoryLimit = 50

// ApplyTo folds the record into the user's therapeutic progress.
func (r CompletionRecord) ApplyTo(user *domain.UserContext) {
	if user.UserID == "" {
		user.UserID = r.UserID
	}
	if r.FullyCompleted() {
		if t := domain.NormalizeActivityType(r.Type); t != "" {
			user.Progress.CompletedTypes = append(user.Progress.CompletedTypes, t)
		}
	}
	user.Progress.SkillsLearned = domain.NormalizeTags(append(user.Progress.SkillsLearned, r.SkillsLearned...))
	user.Progress.EngagementHistory = append(user.Progress.EngagementHistory, r.EngagementScore)
	if over := len(user.Progress.EngagementHistory) - EngagementHistoryLimit; over > 0 {
		user.Progress.EngagementHistory = append([]float64(nil), user.Progress.EngagementHistory[over:]...)
	}
	user.History.PriorSessionCount++
}
