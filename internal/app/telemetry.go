package app

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hylla/manas/internal/domain"
)

// EngagementBuffer is an in-process TelemetrySource holding a ring of samples per session.
type EngagementBuffer struct {
	mu       sync.Mutex
	capacity int
	samples  map[string][]domain.EngagementMetrics
}

// NewEngagementBuffer constructs a buffer keeping the newest capacity samples per session.
func NewEngagementBuffer(capacity int) *EngagementBuffer {
	if capacity <= 0 {
		capacity = 20
	}
	return &EngagementBuffer{capacity: capacity, samples: map[string][]domain.EngagementMetrics{}}
}

// Push appends one sample, evicting the oldest past capacity.
func (b *EngagementBuffer) Push(sessionID string, sample domain.EngagementMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ring := append(b.samples[sessionID], sample)
	if over := len(ring) - b.capacity; over > 0 {
		ring = append([]domain.EngagementMetrics(nil), ring[over:]...)
	}
	b.samples[sessionID] = ring
}

// RecentEngagement returns up to limit of the newest samples, oldest first.
func (b *EngagementBuffer) RecentEngagement(_ context.Context, sessionID string, limit int) ([]domain.EngagementMetrics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ring := b.samples[sessionID]
	if limit > 0 && len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	return append([]domain.EngagementMetrics(nil), ring...), nil
}

// Drop forgets one session's samples.
func (b *EngagementBuffer) Drop(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.samples, sessionID)
}

// emotionWords signal emotional expression in a user turn.
var emotionWords = []string{
	"feel", "feeling", "felt", "sad", "happy", "angry", "anxious", "scared", "worried", "hurt",
	"lonely", "calm", "grateful", "stressed", "tired", "upset", "dukh", "khush", "pareshan", "dar",
}

// deriveEngagement estimates one engagement sample from a raw user turn.
func deriveEngagement(input string, responseTime time.Duration, now time.Time) domain.EngagementMetrics {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	length := utf8.RuneCountInString(trimmed)

	hits := 0
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool { return !(r >= 'a' && r <= 'z') && r != '\'' }) {
		for _, w := range emotionWords {
			if tok == w {
				hits++
				break
			}
		}
	}
	expression := min(1, float64(hits)/2)

	question := 0.0
	if strings.Contains(trimmed, "?") {
		question = 1
	}

	follow := 0.0
	switch {
	case length >= 40:
		follow = 1
	case length >= 10:
		follow = 0.6
	case length > 0:
		follow = 0.3
	}

	return domain.NewEngagementMetrics(domain.EngagementMetrics{
		ResponseTimeSeconds: responseTime.Seconds(),
		MessageLength:       length,
		EmotionalExpression: expression,
		QuestionAsking:      question,
		FollowThrough:       follow,
	}, now)
}
