package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/validation"

	// sqlite driver for the state database.
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotOpened is returned by every operation of a store that has no database.
var ErrNotOpened = errors.New("database not opened")

// timeLayout is fixed-width so that stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, logging is discarded.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewSQLiteStoreWithDB wraps an existing database connection.
func NewSQLiteStoreWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens a connection to the SQLite database and runs pending migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state database", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// SaveBuild records a validation result as a new build.
func (s *SQLiteStore) SaveBuild(ctx context.Context, root string, startedAt time.Time, elapsed time.Duration, res *validation.Result) (*Build, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	errCount, warnCount := res.Count()
	b := &Build{
		ID:               generateID(),
		Root:             root,
		StartedAt:        startedAt.UTC(),
		Elapsed:          elapsed,
		Collections:      len(res.BuiltCollections),
		Materializations: len(res.BuiltMaterializations),
		Errors:           errCount,
		Warnings:         warnCount,
	}
	s.logger.Debug("saving build", slog.String("id", b.ID), slog.String("root", root))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO builds (id, root, started_at, elapsed_ms, collections, materializations, errors, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Root, b.StartedAt.Format(timeLayout), b.Elapsed.Milliseconds(),
		b.Collections, b.Materializations, b.Errors, b.Warnings,
	); err != nil {
		return nil, fmt.Errorf("failed to insert build: %w", err)
	}

	for i, e := range res.Errors {
		msg := e.Message
		if e.Cause != nil {
			msg += ": " + e.Cause.Error()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO build_errors (build_id, seq, scope, kind, severity, message) VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, i, string(e.Scope), string(e.Kind), string(e.Severity), msg,
		); err != nil {
			return nil, fmt.Errorf("failed to insert build error: %w", err)
		}
	}

	for _, bc := range res.BuiltCollections {
		spec, err := json.Marshal(bc.Spec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode collection %q: %w", bc.Spec.Name, err)
		}
		// Names may collide in an invalid catalog; the first one built wins.
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO built_collections (build_id, name, scope, spec) VALUES (?, ?, ?, ?)`,
			b.ID, bc.Spec.Name, string(bc.Scope), string(spec),
		); err != nil {
			return nil, fmt.Errorf("failed to insert collection %q: %w", bc.Spec.Name, err)
		}
	}

	for _, bm := range res.BuiltMaterializations {
		spec, err := json.Marshal(bm)
		if err != nil {
			return nil, fmt.Errorf("failed to encode materialization %q: %w", bm.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO built_materializations (build_id, name, scope, spec) VALUES (?, ?, ?, ?)`,
			b.ID, bm.Name, string(bm.Scope), string(spec),
		); err != nil {
			return nil, fmt.Errorf("failed to insert materialization %q: %w", bm.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit build: %w", err)
	}
	return b, nil
}

const selectBuild = `SELECT id, root, started_at, elapsed_ms, collections, materializations, errors, warnings FROM builds`

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*Build, error) {
	var (
		b         Build
		startedAt string
		elapsedMS int64
	)
	if err := row.Scan(&b.ID, &b.Root, &startedAt, &elapsedMS,
		&b.Collections, &b.Materializations, &b.Errors, &b.Warnings); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid build start time %q: %w", startedAt, err)
	}
	b.StartedAt = t
	b.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return &b, nil
}

// LatestBuild returns the most recent build, or nil if there are none.
func (s *SQLiteStore) LatestBuild(ctx context.Context) (*Build, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	b, err := scanBuild(s.db.QueryRowContext(ctx, selectBuild+` ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}
	return b, nil
}

// GetBuild returns the build with id.
func (s *SQLiteStore) GetBuild(ctx context.Context, id string) (*Build, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	b, err := scanBuild(s.db.QueryRowContext(ctx, selectBuild+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("build %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return b, nil
}

// ListBuilds returns the most recent builds, newest first, up to limit.
func (s *SQLiteStore) ListBuilds(ctx context.Context, limit int) ([]*Build, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	rows, err := s.db.QueryContext(ctx, selectBuild+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	var builds []*Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// ListErrors returns the diagnostics of a build in the order they were found.
func (s *SQLiteStore) ListErrors(ctx context.Context, buildID string) ([]*BuildError, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, scope, kind, severity, message FROM build_errors WHERE build_id = ? ORDER BY seq`,
		buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list build errors: %w", err)
	}
	defer rows.Close()

	var out []*BuildError
	for rows.Next() {
		var e BuildError
		if err := rows.Scan(&e.Seq, &e.Scope, &e.Kind, &e.Severity, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan build error: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// GetBuiltCollection returns a collection built by a build.
func (s *SQLiteStore) GetBuiltCollection(ctx context.Context, buildID, name string) (*catalog.BuiltCollection, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	var scope, spec string
	err := s.db.QueryRowContext(ctx,
		`SELECT scope, spec FROM built_collections WHERE build_id = ? AND name = ?`,
		buildID, name,
	).Scan(&scope, &spec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q of build %s: %w", name, buildID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	bc := &catalog.BuiltCollection{Scope: catalog.Scope(scope)}
	if err := json.Unmarshal([]byte(spec), &bc.Spec); err != nil {
		return nil, fmt.Errorf("failed to decode collection %q: %w", name, err)
	}
	return bc, nil
}

// ListBuiltMaterializations returns the materializations built by a build, ordered by name.
func (s *SQLiteStore) ListBuiltMaterializations(ctx context.Context, buildID string) ([]catalog.BuiltMaterialization, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT spec FROM built_materializations WHERE build_id = ? ORDER BY name`, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list materializations: %w", err)
	}
	defer rows.Close()

	var out []catalog.BuiltMaterialization
	for rows.Next() {
		var spec string
		if err := rows.Scan(&spec); err != nil {
			return nil, fmt.Errorf("failed to scan materialization: %w", err)
		}
		var bm catalog.BuiltMaterialization
		if err := json.Unmarshal([]byte(spec), &bm); err != nil {
			return nil, fmt.Errorf("failed to decode materialization: %w", err)
		}
		out = append(out, bm)
	}
	return out, rows.Err()
}
