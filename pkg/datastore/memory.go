package datastore

import (
	"context"
	"sync"
	"time"
)

// Memory provides an in-memory Store implementation for tests.
// It mirrors the SQLite journal for validation, ID assignment and time
// precision.
type Memory struct {
	mu     sync.RWMutex
	now    func() time.Time
	nextID int64
	events []Event
}

// NewMemory creates a Memory journal using time.Now().UTC().
func NewMemory() *Memory {
	return NewMemoryWithClock(nil)
}

// NewMemoryWithClock creates a Memory journal with a custom clock for
// events recorded without a timestamp.
func NewMemoryWithClock(now func() time.Time) *Memory {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Memory{now: now, nextID: 1}
}

// Record appends events. A batch that fails validation stores nothing.
func (m *Memory) Record(ctx context.Context, events ...Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateEvents(events); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if ev.At.IsZero() {
			ev.At = m.now()
		}
		// Same precision as the database column.
		ev.At = ev.At.UTC().Truncate(time.Microsecond)
		ev.ID = m.nextID
		m.nextID++
		m.events = append(m.events, ev)
	}
	return nil
}

// List returns matching events oldest first.
func (m *Memory) List(ctx context.Context, f Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Event
	for _, ev := range m.events {
		if f.SessionID != "" && ev.SessionID != f.SessionID {
			continue
		}
		if f.Kind != "" && ev.Kind != f.Kind {
			continue
		}
		result = append(result, ev)
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

// Close is a no-op for Memory.
func (m *Memory) Close() error {
	return nil
}
