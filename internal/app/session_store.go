package app

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/manas/internal/activity"
	"github.com/hylla/manas/internal/domain"
)

// liveSession pairs session state with its activity service and owner context.
type liveSession struct {
	session domain.ActivitySession
	service activity.Service
	user    domain.UserContext
	busy    bool
}

// sessionStore is the bounded arena of in-progress sessions.
type sessionStore struct {
	mu        sync.Mutex
	maxActive int
	sessions  map[string]*liveSession
}

// newSessionStore constructs an arena holding at most maxActive sessions.
func newSessionStore(maxActive int) *sessionStore {
	return &sessionStore{maxActive: maxActive, sessions: map[string]*liveSession{}}
}

// insert adds one session, enforcing capacity and unique ids.
func (s *sessionStore) insert(live *liveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.maxActive {
		return fmt.Errorf("%w: %d active", ErrCapacityReached, len(s.sessions))
	}
	if _, ok := s.sessions[live.session.ID]; ok {
		return fmt.Errorf("%w: %q", ErrSessionExists, live.session.ID)
	}
	s.sessions[live.session.ID] = live
	return nil
}

// acquire marks one session busy and returns it; release must follow.
func (s *sessionStore) acquire(id string) (*liveSession, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if live.busy {
		return nil, fmt.Errorf("%w: %q", ErrSessionBusy, id)
	}
	live.busy = true
	return live, nil
}

// commit stores the working copy of an acquired session.
func (s *sessionStore) commit(live *liveSession, session domain.ActivitySession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live.session = session
}

// release clears the busy flag.
func (s *sessionStore) release(live *liveSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live.busy = false
}

// remove drops one session from the arena.
func (s *sessionStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// snapshot returns a copy of one session's state.
func (s *sessionStore) snapshot(id string) (domain.ActivitySession, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	if !ok {
		return domain.ActivitySession{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return live.session.Clone(), nil
}

// list returns copies of every session, optionally filtered by user, newest first.
func (s *sessionStore) list(userID string) []domain.ActivitySession {
	userID = strings.TrimSpace(userID)
	s.mu.Lock()
	out := make([]domain.ActivitySession, 0, len(s.sessions))
	for _, live := range s.sessions {
		if userID != "" && live.session.UserID != userID {
			continue
		}
		out = append(out, live.session.Clone())
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b domain.ActivitySession) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// idle returns ids of non-busy sessions with no activity since cutoff.
func (s *sessionStore) idle(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, live := range s.sessions {
		if !live.busy && live.session.LastActivityAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// len reports the number of sessions in the arena.
func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
