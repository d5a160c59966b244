// Package datastore provides the SQLite-backed session journal.
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

const dbTimeLayout = "2006-01-02 15:04:05.000000"

// Journal records session lifecycle events in SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite journal and runs migrations.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS session_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT    NOT NULL,
		endpoint   TEXT    NOT NULL DEFAULT '',
		username   TEXT    NOT NULL DEFAULT '' CHECK(length(CAST(username AS BLOB)) <= 32),
		kind       TEXT    NOT NULL CHECK(kind IN ('register', 'replace', 'deregister', 'evict')),
		at         TEXT    NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
	`

	if err := j.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := j.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("datastore: begin migration %d: %w", m.version, err)
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("datastore: migration %d: %w", m.version, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("datastore: update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("datastore: commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (j *Journal) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := j.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (j *Journal) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := j.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

// SchemaVersion returns the applied migration version.
func (j *Journal) SchemaVersion(ctx context.Context) (int, error) {
	return j.getSchemaVersion(ctx)
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

// Record appends events in a single transaction. Either all are stored or
// none are.
func (j *Journal) Record(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := validateEvents(events); err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("datastore: record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO session_events (session_id, endpoint, username, kind, at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("datastore: record: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		at := ev.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, ev.SessionID, ev.Endpoint, ev.Username, string(ev.Kind), formatDBTime(at)); err != nil {
			return fmt.Errorf("datastore: record %s: %w", ev.Kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datastore: record commit: %w", err)
	}
	return nil
}

// List returns matching events oldest first.
func (j *Journal) List(ctx context.Context, f Filter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}

	query := "SELECT id, session_id, endpoint, username, kind, at FROM session_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("datastore: list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			ev   Event
			kind string
			at   string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Endpoint, &ev.Username, &kind, &at); err != nil {
			return nil, fmt.Errorf("datastore: scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		if ev.At, err = parseDBTime(at); err != nil {
			return nil, fmt.Errorf("datastore: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("datastore: list events: %w", err)
	}
	return events, nil
}

// JournalExport is the top-level YAML document produced by ExportYAML.
type JournalExport struct {
	Events []Event `yaml:"events"`
}

// ExportYAML exports every recorded event as YAML.
func ExportYAML(ctx context.Context, r Reader) ([]byte, error) {
	events, err := r.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(&JournalExport{Events: events})
}
