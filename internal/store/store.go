// Package store keeps the attempt log of every session: triggers,
// verifications, estimates and fits. The database lives in memory only and
// disappears with the process; rows of a session are purged when the
// session ends.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/soundlab/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Action names recorded in the log.
const (
	ActionTrigger        = "trigger"
	ActionVerifyDelay    = "verify_delay"
	ActionVerifyVelocity = "verify_velocity"
	ActionEstimate       = "estimate"
	ActionFit            = "fit"
)

// Attempt is one logged user action.
type Attempt struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	TrialID   string    `json:"trial_id,omitempty"`
	Procedure string    `json:"procedure"`
	Action    string    `json:"action"`
	Input     string    `json:"input,omitempty"`
	Pass      *bool     `json:"pass,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an in-memory SQLite attempt log.
type Store struct {
	db *sql.DB
}

// Open creates a fresh in-memory database and applies the embedded
// migrations.
func Open() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// m is not closed: closing it would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Close releases the database; its contents are lost.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a to the log and returns its id. A zero CreatedAt is
// stamped with the current time.
func (s *Store) Record(ctx context.Context, a Attempt) (int64, error) {
	if a.SessionID == "" {
		return 0, errors.New("attempt needs a session id")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	var pass sql.NullBool
	if a.Pass != nil {
		pass = sql.NullBool{Bool: *a.Pass, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (
			session_id, trial_id, procedure, action_name, input, pass, kind, message, created_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, a.TrialID, a.Procedure, a.Action, a.Input, pass, a.Kind, a.Message, a.CreatedAt.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record attempt: %w", err)
	}
	return res.LastInsertId()
}

// Attempts lists a session's attempts oldest first.
func (s *Store) Attempts(ctx context.Context, sessionID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, session_id, trial_id, procedure, action_name, input, pass, kind, message, created_unix_nanos
		FROM attempts WHERE session_id = ? ORDER BY attempt_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var (
			a                             Attempt
			trialID, input, kind, message sql.NullString
			pass                          sql.NullBool
			createdUnixNanos              int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &trialID, &a.Procedure, &a.Action, &input, &pass, &kind, &message, &createdUnixNanos); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.TrialID = trialID.String
		a.Input = input.String
		a.Kind = kind.String
		a.Message = message.String
		if pass.Valid {
			p := pass.Bool
			a.Pass = &p
		}
		a.CreatedAt = time.Unix(0, createdUnixNanos).UTC()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Purge deletes a session's attempts and reports how many were removed.
func (s *Store) Purge(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge attempts: %w", err)
	}
	return res.RowsAffected()
}
