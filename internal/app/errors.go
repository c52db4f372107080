package app

import "errors"

// ErrNotRegistered and related errors describe caller-facing engine failures.
var (
	ErrNotFound             = errors.New("not found")
	ErrNotRegistered        = errors.New("activity type not registered")
	ErrPrerequisiteUnmet    = errors.New("activity prerequisite unmet")
	ErrContraindicated      = errors.New("activity contraindicated")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidConfiguration = errors.New("invalid activity configuration")
	ErrSessionBusy          = errors.New("session busy")
	ErrSessionExists        = errors.New("session already exists")
	ErrCapacityReached      = errors.New("active session capacity reached")
	ErrNoStore              = errors.New("no store configured")
)
