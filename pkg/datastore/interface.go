package datastore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventKind names a session lifecycle transition.
type EventKind string

const (
	EventRegister   EventKind = "register"   // session created
	EventReplace    EventKind = "replace"    // session overwritten by a new Register from the same endpoint
	EventDeregister EventKind = "deregister" // client logged out
	EventEvict      EventKind = "evict"      // removed by the liveness sweeper
)

// Valid reports whether k is a known kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventRegister, EventReplace, EventDeregister, EventEvict:
		return true
	default:
		return false
	}
}

// maxUsernameBytes matches the CHECK constraint on session_events.username.
const maxUsernameBytes = 32

var (
	ErrInvalidEventKind = errors.New("datastore: invalid event kind")
	ErrMissingSessionID = errors.New("datastore: event session id must not be empty")
	ErrUsernameTooLong  = errors.New("datastore: username too long")
)

// validateEvents checks a batch before anything is stored.
func validateEvents(events []Event) error {
	for _, ev := range events {
		if !ev.Kind.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidEventKind, ev.Kind)
		}
		if ev.SessionID == "" {
			return ErrMissingSessionID
		}
		if len(ev.Username) > maxUsernameBytes {
			return fmt.Errorf("%w: %d bytes (max %d)", ErrUsernameTooLong, len(ev.Username), maxUsernameBytes)
		}
	}
	return nil
}

// Event is one journal row. Message text is never journaled.
type Event struct {
	ID        int64     `yaml:"id"`
	SessionID string    `yaml:"session_id"`
	Endpoint  string    `yaml:"endpoint"`
	Username  string    `yaml:"username"`
	Kind      EventKind `yaml:"kind"`
	At        time.Time `yaml:"at"`
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	SessionID string
	Kind      EventKind
	Limit     int
}

// Recorder appends session events.
type Recorder interface {
	Record(ctx context.Context, events ...Event) error
}

// Reader queries recorded events.
type Reader interface {
	List(ctx context.Context, f Filter) ([]Event, error)
}

// Store is the full journal surface used by the server and the export CLI.
type Store interface {
	Recorder
	Reader
	Close() error
}

// Compile-time checks.
var (
	_ Store = (*Journal)(nil)
	_ Store = (*Memory)(nil)
)
