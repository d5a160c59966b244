package datastore_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/NicolasHaas/mustangchat/pkg/datastore"
)

// forEachStore runs fn against a fresh SQLite journal and a fresh Memory
// journal, which must behave the same.
func forEachStore(t *testing.T, fn func(t *testing.T, s datastore.Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, NewTestJournal(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, datastore.NewMemory()) })
}

func TestStoresAgree(t *testing.T) {
	forEachStore(t, func(t *testing.T, s datastore.Store) {
		ctx := context.Background()
		base := time.Date(2026, 5, 6, 7, 8, 9, 987654321, time.UTC)

		if err := s.Record(ctx,
			datastore.Event{SessionID: "a", Username: "alice", Kind: datastore.EventRegister, At: base},
			datastore.Event{SessionID: "a", Username: "alice", Kind: datastore.EventReplace, At: base},
			datastore.Event{SessionID: "b", Username: "alicia", Kind: datastore.EventRegister, At: base},
		); err != nil {
			t.Fatalf("Record: %v", err)
		}

		got, err := s.List(ctx, datastore.Filter{Kind: datastore.EventRegister})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		at := base.Truncate(time.Microsecond)
		want := []datastore.Event{
			{ID: 1, SessionID: "a", Username: "alice", Kind: datastore.EventRegister, At: at},
			{ID: 3, SessionID: "b", Username: "alicia", Kind: datastore.EventRegister, At: at},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("List mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestStoresRejectAlike(t *testing.T) {
	tests := []struct {
		name  string
		event datastore.Event
		want  error
	}{
		{"kind", datastore.Event{SessionID: "s", Kind: "shout"}, datastore.ErrInvalidEventKind},
		{"session", datastore.Event{Kind: datastore.EventEvict}, datastore.ErrMissingSessionID},
		{"username", datastore.Event{SessionID: "s", Username: strings.Repeat("é", 17), Kind: datastore.EventRegister}, datastore.ErrUsernameTooLong},
	}
	forEachStore(t, func(t *testing.T, s datastore.Store) {
		ctx := context.Background()
		for _, tt := range tests {
			err := s.Record(ctx, datastore.Event{SessionID: "ok", Kind: datastore.EventRegister}, tt.event)
			if !errors.Is(err, tt.want) {
				t.Errorf("%s: Record error = %v, want %v", tt.name, err, tt.want)
			}
		}
		got, err := s.List(ctx, datastore.Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if diff := cmp.Diff([]datastore.Event(nil), got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("rejected batches left events behind:\n%s", diff)
		}
	})
}

func TestMemoryDefaultsTime(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	m := datastore.NewMemoryWithClock(func() time.Time { return at })
	ctx := context.Background()

	if err := m.Record(ctx, datastore.Event{SessionID: "s", Kind: datastore.EventDeregister}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, _ := m.List(ctx, datastore.Filter{})
	if len(got) != 1 || !got[0].At.Equal(at) {
		t.Fatalf("List = %+v, want one event at %v", got, at)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.Record(cancelled, datastore.Event{SessionID: "s", Kind: datastore.EventEvict}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Record(cancelled) = %v, want context.Canceled", err)
	}
}
