package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrValidation   = errors.New("entity validation failed")
	ErrDatabaseInit = errors.New("database initialization failed")
)

// Store wraps the database connection and owns the schema.
type Store struct {
	conn *sql.DB
}

// New opens the database at path, applies pragmas and creates the schema.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: failed to create directory: %w", ErrDatabaseInit, err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrDatabaseInit, err)
	}

	// Scheduler jobs and the notification listener share this pool;
	// keep it bounded so a burst of notifications cannot exhaust FDs.
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%w: failed to set pragma: %w", ErrDatabaseInit, err)
		}
	}

	s := &Store{conn: conn}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping() error {
	return s.conn.Ping()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			external_user_id TEXT NOT NULL,
			external_email TEXT UNIQUE NOT NULL,
			expired_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS resource_calendars (
			id TEXT PRIMARY KEY,
			credential_id TEXT NOT NULL,
			resource_id TEXT UNIQUE NOT NULL,
			resource_name TEXT NOT NULL,
			generated_resource_name TEXT,
			resource_email TEXT NOT NULL,
			resource_type TEXT,
			resource_category TEXT,
			capacity INTEGER NOT NULL DEFAULT 0,
			building_id TEXT,
			floor_name TEXT,
			etag TEXT,
			next_sync_token TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (credential_id) REFERENCES credentials(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_resource_calendars_credential_id ON resource_calendars(credential_id)`,

		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			external_id TEXT NOT NULL,
			summary TEXT,
			description TEXT,
			status TEXT NOT NULL,
			etag TEXT,
			ical_uid TEXT,
			location TEXT,
			organizer TEXT,
			creator TEXT,
			sequence INTEGER,
			start_at DATETIME,
			end_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(calendar_id, external_id),
			FOREIGN KEY (calendar_id) REFERENCES resource_calendars(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_calendar_id ON events(calendar_id)`,

		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS attendees (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			response_status TEXT NOT NULL,
			is_resource INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE,
			FOREIGN KEY (participant_id) REFERENCES participants(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_attendees_event_id ON attendees(event_id)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			id TEXT PRIMARY KEY,
			calendar_id TEXT UNIQUE NOT NULL,
			channel_uuid TEXT UNIQUE NOT NULL,
			external_id TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			kind TEXT,
			expiration DATETIME,
			is_up_to_date INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (calendar_id) REFERENCES resource_calendars(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_subscriptions_resource_id ON subscriptions(resource_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.conn.Exec(migration); err != nil {
			return fmt.Errorf("%w: migration failed: %w", ErrDatabaseInit, err)
		}
	}

	return nil
}
