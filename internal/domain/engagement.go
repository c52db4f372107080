package domain

import (
	"math"
	"time"
)

// EngagementMetrics is one engagement sample; component scores are in [0,1].
type EngagementMetrics struct {
	ResponseTimeSeconds float64   `json:"response_time_seconds"`
	MessageLength       int       `json:"message_length"`
	EmotionalExpression float64   `json:"emotional_expression"`
	QuestionAsking      float64   `json:"question_asking"`
	FollowThrough       float64   `json:"follow_through"`
	Overall             float64   `json:"overall"`
	RecordedAt          time.Time `json:"recorded_at"`
}

// NewEngagementMetrics clamps component scores and derives Overall when it is unset.
func NewEngagementMetrics(in EngagementMetrics, now time.Time) EngagementMetrics {
	in.EmotionalExpression = clampFloat(in.EmotionalExpression, 0, 1)
	in.QuestionAsking = clampFloat(in.QuestionAsking, 0, 1)
	in.FollowThrough = clampFloat(in.FollowThrough, 0, 1)
	if in.ResponseTimeSeconds < 0 {
		in.ResponseTimeSeconds = 0
	}
	if in.MessageLength < 0 {
		in.MessageLength = 0
	}
	if in.Overall <= 0 {
		in.Overall = in.derivedOverall()
	}
	in.Overall = clampFloat(in.Overall, 0, 1)
	if in.RecordedAt.IsZero() {
		in.RecordedAt = now
	}
	in.RecordedAt = in.RecordedAt.UTC()
	return in
}

// derivedOverall blends the component scores into one engagement value.
func (m EngagementMetrics) derivedOverall() float64 {
	length := math.Min(float64(m.MessageLength)/200, 1)
	return 0.3*m.FollowThrough + 0.25*m.EmotionalExpression + 0.2*m.QuestionAsking + 0.25*length
}

// AverageOverall returns the mean Overall score of a sample set.
func AverageOverall(samples []EngagementMetrics) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Overall
	}
	return sum / float64(len(samples)), true
}

// AverageResponseTime returns the mean response time of a sample set.
func AverageResponseTime(samples []EngagementMetrics) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.ResponseTimeSeconds
	}
	return sum / float64(len(samples)), true
}

// OverallStdDev returns the population standard deviation of Overall scores.
func OverallStdDev(samples []EngagementMetrics) float64 {
	mean, ok := AverageOverall(samples)
	if !ok || len(samples) < 2 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		d := s.Overall - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(samples)))
}
