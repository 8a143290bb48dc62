// Package checkpoint persists migration progress in SQLite so an
// interrupted run can resume without re-pushing finished entities.
package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	mig "github.com/flowport/flowport/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Store implements migrate.StateStore on SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Config holds store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New creates a store instance. Call Init before use.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &Store{path: cfg.Path}, nil
}

// Open creates, initializes, and migrates a store in one step.
func Open(ctx context.Context, path string) (*Store, error) {
	s, err := New(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection and enables WAL mode.
func (s *Store) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

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
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *Store) Migrate(_ context.Context) error {
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

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(ctx context.Context, run *mig.Run) error {
	query := `
		INSERT INTO runs (id, vendor, status, dry_run, started_at, completed_at,
			total, succeeded, failed, skipped, denied, pending, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			total = excluded.total,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			skipped = excluded.skipped,
			denied = excluded.denied,
			pending = excluded.pending,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Vendor,
		run.Status,
		run.DryRun,
		run.StartedAt,
		run.CompletedAt,
		run.Summary.Total,
		run.Summary.Succeeded,
		run.Summary.Failed,
		run.Summary.Skipped,
		run.Summary.Denied,
		run.Summary.Pending,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*mig.Run, error) {
	query := `
		SELECT id, vendor, status, dry_run, started_at, completed_at,
			total, succeeded, failed, skipped, denied, pending
		FROM runs
		WHERE id = ?
	`
	run := &mig.Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Vendor,
		&run.Status,
		&run.DryRun,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Summary.Total,
		&run.Summary.Succeeded,
		&run.Summary.Failed,
		&run.Summary.Skipped,
		&run.Summary.Denied,
		&run.Summary.Pending,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns lists runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]*mig.Run, error) {
	query := `
		SELECT id, vendor, status, dry_run, started_at, completed_at,
			total, succeeded, failed, skipped, denied, pending
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*mig.Run{}
	for rows.Next() {
		run := &mig.Run{}
		err := rows.Scan(
			&run.ID,
			&run.Vendor,
			&run.Status,
			&run.DryRun,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Summary.Total,
			&run.Summary.Succeeded,
			&run.Summary.Failed,
			&run.Summary.Skipped,
			&run.Summary.Denied,
			&run.Summary.Pending,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// SaveUnit inserts or updates a work unit record.
func (s *Store) SaveUnit(ctx context.Context, unit *mig.WorkUnit) error {
	labels, err := json.Marshal(unit.Stub.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}
	var unitErr []byte
	if unit.Error != nil {
		unitErr, err = json.Marshal(unit.Error)
		if err != nil {
			return fmt.Errorf("failed to encode unit error: %w", err)
		}
	}

	query := `
		INSERT INTO work_units (id, run_id, ref, kind, name, labels, status,
			attempts, target_id, confidence, error, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			target_id = excluded.target_id,
			confidence = excluded.confidence,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		unit.ID,
		unit.RunID,
		unit.Stub.Ref,
		unit.Stub.Kind,
		unit.Stub.Name,
		string(labels),
		unit.Status,
		unit.Attempts,
		unit.TargetID,
		unit.Confidence,
		nullableString(unitErr),
		unit.StartedAt,
		unit.CompletedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save unit: %w", err)
	}
	return nil
}

// ListUnits returns the units of a run in insertion order.
func (s *Store) ListUnits(ctx context.Context, runID string) ([]*mig.WorkUnit, error) {
	query := `
		SELECT id, run_id, ref, kind, name, labels, status,
			attempts, target_id, confidence, error, started_at, completed_at
		FROM work_units
		WHERE run_id = ?
		ORDER BY rowid
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	units := []*mig.WorkUnit{}
	for rows.Next() {
		unit := &mig.WorkUnit{}
		var labels string
		var unitErr sql.NullString
		err := rows.Scan(
			&unit.ID,
			&unit.RunID,
			&unit.Stub.Ref,
			&unit.Stub.Kind,
			&unit.Stub.Name,
			&labels,
			&unit.Status,
			&unit.Attempts,
			&unit.TargetID,
			&unit.Confidence,
			&unitErr,
			&unit.StartedAt,
			&unit.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		if labels != "" && labels != "null" {
			if err := json.Unmarshal([]byte(labels), &unit.Stub.Labels); err != nil {
				return nil, fmt.Errorf("failed to decode labels: %w", err)
			}
		}
		if unitErr.Valid && unitErr.String != "" {
			unit.Error = &mig.Error{}
			if err := json.Unmarshal([]byte(unitErr.String), unit.Error); err != nil {
				return nil, fmt.Errorf("failed to decode unit error: %w", err)
			}
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating units: %w", err)
	}
	return units, nil
}

// SaveCursor stores a pagination cursor for a vendor listing.
func (s *Store) SaveCursor(ctx context.Context, vendor, kind, cursor string) error {
	query := `
		INSERT INTO cursors (vendor, kind, cursor, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(vendor, kind) DO UPDATE SET
			cursor = excluded.cursor,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, vendor, kind, cursor, time.Now()); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// GetCursor returns the saved cursor, or empty when none exists.
func (s *Store) GetCursor(ctx context.Context, vendor, kind string) (string, error) {
	var cursor string
	err := s.db.QueryRowContext(ctx,
		`SELECT cursor FROM cursors WHERE vendor = ? AND kind = ?`,
		vendor, kind).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cursor: %w", err)
	}
	return cursor, nil
}

// RecordMapping records that a source entity now exists on the target.
func (s *Store) RecordMapping(ctx context.Context, vendor, ref, targetID string) error {
	query := `
		INSERT INTO entity_map (vendor, ref, target_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(vendor, ref) DO UPDATE SET
			target_id = excluded.target_id
	`
	if _, err := s.db.ExecContext(ctx, query, vendor, ref, targetID, time.Now()); err != nil {
		return fmt.Errorf("failed to record mapping: %w", err)
	}
	return nil
}

// LookupMapping returns the target ID for a source entity, or empty
// when the entity has not been migrated.
func (s *Store) LookupMapping(ctx context.Context, vendor, ref string) (string, error) {
	var targetID string
	err := s.db.QueryRowContext(ctx,
		`SELECT target_id FROM entity_map WHERE vendor = ? AND ref = ?`,
		vendor, ref).Scan(&targetID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up mapping: %w", err)
	}
	return targetID, nil
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
