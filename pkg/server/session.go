package server

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/mustangchat/pkg/model"
)

// SessionRegistry maps client endpoints to their sessions. It never creates
// an entry except through Register.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[model.Endpoint]*model.Session
	order    []model.Endpoint // registration order, for deterministic snapshots
	now      func() time.Time
}

// NewSessionRegistry creates an empty registry. A nil clock means time.Now.
func NewSessionRegistry(clock func() time.Time) *SessionRegistry {
	if clock == nil {
		clock = time.Now
	}
	return &SessionRegistry{
		sessions: make(map[model.Endpoint]*model.Session),
		now:      clock,
	}
}

// Register creates the session for ep, replacing any existing one. The new
// session's channel set is reset to the default channel only; the caller is
// responsible for the matching directory membership.
func (sr *SessionRegistry) Register(ep model.Endpoint, username string) model.Session {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := sr.now()
	sess := &model.Session{
		ID:           uuid.NewString(),
		Endpoint:     ep,
		Username:     username,
		Channels:     []string{model.DefaultChannel},
		LastActivity: now,
		CreatedAt:    now,
	}
	if _, exists := sr.sessions[ep]; !exists {
		sr.order = append(sr.order, ep)
	}
	sr.sessions[ep] = sess
	return sess.Clone()
}

// Touch refreshes the last-activity time of ep's session. It reports whether
// a session exists.
func (sr *SessionRegistry) Touch(ep model.Endpoint) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	s, ok := sr.sessions[ep]
	if ok {
		s.LastActivity = sr.now()
	}
	return ok
}

// Get returns a snapshot of ep's session.
func (sr *SessionRegistry) Get(ep model.Endpoint) (model.Session, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	s, ok := sr.sessions[ep]
	if !ok {
		return model.Session{}, false
	}
	return s.Clone(), true
}

// Username returns the username registered for ep.
func (sr *SessionRegistry) Username(ep model.Endpoint) (string, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	s, ok := sr.sessions[ep]
	if !ok {
		return "", false
	}
	return s.Username, true
}

// Remove deletes ep's session and returns its final snapshot.
func (sr *SessionRegistry) Remove(ep model.Endpoint) (model.Session, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	s, ok := sr.sessions[ep]
	if !ok {
		return model.Session{}, false
	}
	sr.removeLocked(ep)
	return s.Clone(), true
}

// RemoveIfIdle deletes ep's session only if it has been silent since before
// cutoff.
func (sr *SessionRegistry) RemoveIfIdle(ep model.Endpoint, cutoff time.Time) (model.Session, bool) {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	s, ok := sr.sessions[ep]
	if !ok || !s.LastActivity.Before(cutoff) {
		return model.Session{}, false
	}
	sr.removeLocked(ep)
	return s.Clone(), true
}

func (sr *SessionRegistry) removeLocked(ep model.Endpoint) {
	delete(sr.sessions, ep)
	if i := slices.Index(sr.order, ep); i >= 0 {
		sr.order = slices.Delete(sr.order, i, i+1)
	}
}

// AddChannel records that ep's session joined name. It returns false when
// there is no session or it is already a member.
func (sr *SessionRegistry) AddChannel(ep model.Endpoint, name string) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	s, ok := sr.sessions[ep]
	if !ok || slices.Contains(s.Channels, name) {
		return false
	}
	s.Channels = append(s.Channels, name)
	return true
}

// RemoveChannel records that ep's session left name. It returns false when
// the session was not a member.
func (sr *SessionRegistry) RemoveChannel(ep model.Endpoint, name string) bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	s, ok := sr.sessions[ep]
	if !ok {
		return false
	}
	i := slices.Index(s.Channels, name)
	if i < 0 {
		return false
	}
	s.Channels = slices.Delete(s.Channels, i, i+1)
	return true
}

// Expired returns the endpoints whose sessions have been silent since before
// cutoff, in registration order.
func (sr *SessionRegistry) Expired(cutoff time.Time) []model.Endpoint {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	var result []model.Endpoint
	for _, ep := range sr.order {
		if sr.sessions[ep].LastActivity.Before(cutoff) {
			result = append(result, ep)
		}
	}
	return result
}

// Count returns the number of active sessions.
func (sr *SessionRegistry) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.sessions)
}

// All returns snapshots of all active sessions in registration order.
func (sr *SessionRegistry) All() []model.Session {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	result := make([]model.Session, 0, len(sr.sessions))
	for _, ep := range sr.order {
		result = append(result, sr.sessions[ep].Clone())
	}
	return result
}
