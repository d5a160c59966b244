package model

import (
	"slices"
	"time"
)

// Session represents one registered client (in-memory only).
//
// Values handed out by the session registry are snapshots: mutating a
// returned Session never changes server state.
type Session struct {
	ID           string
	Endpoint     Endpoint
	Username     string
	Channels     []string // join order; starts as [DefaultChannel]
	LastActivity time.Time
	CreatedAt    time.Time
}

// InChannel reports whether the session has joined the named channel.
func (s Session) InChannel(name string) bool {
	return slices.Contains(s.Channels, name)
}

// Idle returns how long the session has been silent at now.
func (s Session) Idle(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	s.Channels = slices.Clone(s.Channels)
	return s
}
