// Package stores persists the provisioning journal: one row per run and one
// row per dispatched command with its observed outcome.
package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	dbsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the SQLite-backed journal.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a journal store at path (":memory:" for tests).
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// Init opens the database and applies connection-level settings.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	if s.path == ":memory:" {
		// An in-memory database exists per connection; the pool must not
		// open a second one.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping journal: %w", err)
	}
	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("journal not initialized")
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := dbsqlite.WithInstance(s.db, &dbsqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CreateRun records a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, space, mode, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Space, run.Mode, run.Status, run.Error, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun marks a run completed, failed, or aborted.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, status RunStatus, runErr error) error {
	var errText *string
	if runErr != nil {
		t := runErr.Error()
		errText = &t
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, errText, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, space, mode, status, error, started_at, completed_at
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Space, &run.Mode, &run.Status, &run.Error, &run.StartedAt, &run.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs for a space, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, space string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, space, mode, status, error, started_at, completed_at
		FROM runs WHERE space = ? ORDER BY started_at DESC LIMIT ?`, space, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.Space, &run.Mode, &run.Status,
			&run.Error, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordCommand records a dispatched command before its outcome is known.
func (s *SQLiteStore) RecordCommand(ctx context.Context, cmd *Command) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (run_id, seq, section, command, issued_at)
		VALUES (?, ?, ?, ?, ?)`,
		cmd.RunID, cmd.Seq, cmd.Section, cmd.Command, cmd.IssuedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record command: %w", err)
	}
	return res.LastInsertId()
}

// FinishCommand attaches the observed outcome to a recorded command.
func (s *SQLiteStore) FinishCommand(ctx context.Context, id int64, exitStatus int, stdout, stderr string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE commands SET exit_status = ?, stdout = ?, stderr = ?, finished_at = ? WHERE id = ?`,
		exitStatus, stdout, stderr, now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish command: %w", err)
	}
	return nil
}

// ListCommands returns a run's commands in dispatch order.
func (s *SQLiteStore) ListCommands(ctx context.Context, runID string) ([]*Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, section, command, exit_status, stdout, stderr, issued_at, finished_at
		FROM commands WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	var cmds []*Command
	for rows.Next() {
		cmd := &Command{}
		if err := rows.Scan(&cmd.ID, &cmd.RunID, &cmd.Seq, &cmd.Section, &cmd.Command,
			&cmd.ExitStatus, &cmd.Stdout, &cmd.Stderr, &cmd.IssuedAt, &cmd.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

// HealthCheck verifies the journal is reachable.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("journal not initialized")
	}
	return s.db.PingContext(ctx)
}
