package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// HistoryStore records prepare runs and their per-requirement
// outcomes in SQLite.
type HistoryStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration. Zero pool fields take the
// defaults.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewHistoryStore creates a new history store instance.
func NewHistoryStore(cfg Config) (*HistoryStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	return &HistoryStore{
		cfg: cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *HistoryStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *HistoryStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// Migrate runs database migrations.
func (s *HistoryStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RecordRun stores a prepare run and its requirement results in one
// transaction.
func (s *HistoryStore) RecordRun(ctx context.Context, run *PrepareRun, results []RequirementResult) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const runQuery = `
		INSERT INTO prepare_runs (id, directory, environment_name, success, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, runQuery,
		run.ID,
		run.Directory,
		run.EnvironmentName,
		run.Success,
		run.StartedAt,
		run.CompletedAt,
	); err != nil {
		return fmt.Errorf("failed to record prepare run: %w", err)
	}

	const resultQuery = `
		INSERT INTO requirement_results (run_id, env_var, kind, success, already_existed, description, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, result := range results {
		if _, err := tx.ExecContext(ctx, resultQuery,
			run.ID,
			result.EnvVar,
			result.Kind,
			result.Success,
			result.AlreadyExisted,
			result.Description,
			result.Errors,
		); err != nil {
			return fmt.Errorf("failed to record requirement result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prepare run: %w", err)
	}
	return nil
}

// GetRun retrieves a prepare run by ID.
func (s *HistoryStore) GetRun(ctx context.Context, id string) (*PrepareRun, error) {
	const query = `
		SELECT id, directory, environment_name, success, started_at, completed_at
		FROM prepare_runs
		WHERE id = ?
	`
	run := &PrepareRun{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Directory,
		&run.EnvironmentName,
		&run.Success,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prepare run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prepare run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent prepare runs for a project
// directory, newest first.
func (s *HistoryStore) ListRuns(ctx context.Context, directory string, limit int) ([]PrepareRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, directory, environment_name, success, started_at, completed_at
		FROM prepare_runs
		WHERE directory = ?
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, directory, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prepare runs: %w", err)
	}
	defer rows.Close()

	var runs []PrepareRun
	for rows.Next() {
		var run PrepareRun
		if err := rows.Scan(
			&run.ID,
			&run.Directory,
			&run.EnvironmentName,
			&run.Success,
			&run.StartedAt,
			&run.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prepare run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ResultsForRun retrieves the requirement results recorded for a run.
func (s *HistoryStore) ResultsForRun(ctx context.Context, runID string) ([]RequirementResult, error) {
	const query = `
		SELECT run_id, env_var, kind, success, already_existed, description, errors
		FROM requirement_results
		WHERE run_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list requirement results: %w", err)
	}
	defer rows.Close()

	var results []RequirementResult
	for rows.Next() {
		var result RequirementResult
		if err := rows.Scan(
			&result.RunID,
			&result.EnvVar,
			&result.Kind,
			&result.Success,
			&result.AlreadyExisted,
			&result.Description,
			&result.Errors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan requirement result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// JoinErrors flattens a status error list for storage.
func JoinErrors(errs []string) string {
	return strings.Join(errs, "\n")
}
