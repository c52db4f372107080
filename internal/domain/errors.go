package domain

import "errors"

var (
	ErrInvalidID                = errors.New("invalid id")
	ErrInvalidActivityType      = errors.New("invalid activity type")
	ErrInvalidCategory          = errors.New("invalid activity category")
	ErrInvalidDifficulty        = errors.New("invalid difficulty level")
	ErrInvalidDuration          = errors.New("invalid duration")
	ErrInvalidCulturalRelevance = errors.New("invalid cultural relevance")
	ErrInvalidStressLevel       = errors.New("invalid stress level")
	ErrInvalidTransition        = errors.New("invalid session status transition")
	ErrInvalidStepCount         = errors.New("invalid step count")
	ErrInvalidUrgency           = errors.New("invalid urgency")
	ErrInvalidTrigger           = errors.New("invalid adaptation trigger")
)
