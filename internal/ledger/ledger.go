// Package ledger is a local SQLite journal of case files whose creation
// stopped after the Drive folder was made: the folder (and possibly some
// files) exist but the index has no row for them. Entries are resolved once
// the folder has been cleaned up or the row written by hand.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/tonimelisma/expedientes-go/internal/expediente"
)

// ErrNotFound is returned when no unresolved entry exists for a case file.
var ErrNotFound = errors.New("ledger: no unresolved entry")

// dirPerms is used when creating the database directory.
const dirPerms = 0o700

// SQL statements for ledger operations.
const (
	sqlInsert = `INSERT INTO orphans
		(id, exp_id, codigo, folder_id, stage, uploaded, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqlSelectColumns = `SELECT id, exp_id, codigo, folder_id, stage, uploaded, error,
		created_at, resolved_at FROM orphans`

	sqlListUnresolved = sqlSelectColumns + ` WHERE resolved_at IS NULL ORDER BY created_at, rowid`

	sqlListAll = sqlSelectColumns + ` ORDER BY created_at, rowid`

	sqlGetUnresolved = sqlSelectColumns +
		` WHERE exp_id = ? AND resolved_at IS NULL ORDER BY created_at DESC LIMIT 1`

	sqlResolve = `UPDATE orphans SET resolved_at = ? WHERE exp_id = ? AND resolved_at IS NULL`
)

// Entry is one journaled partial case file.
type Entry struct {
	ID         string           `json:"id"`
	ExpID      string           `json:"expId"`
	Codigo     string           `json:"codigo"`
	FolderID   string           `json:"folderId"`
	Stage      expediente.Stage `json:"stage"`
	Uploaded   int              `json:"uploaded"`
	Error      string           `json:"error"`
	CreatedAt  time.Time        `json:"createdAt"`
	ResolvedAt time.Time        `json:"resolvedAt,omitzero"`
}

// Resolved reports whether the entry has been resolved.
func (e *Entry) Resolved() bool {
	return !e.ResolvedAt.IsZero()
}

// Ledger is the orphan journal. It implements expediente.OrphanRecorder.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the ledger database at path and applies
// pending migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return nil, fmt.Errorf("ledger: creating directory for %s: %w", path, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("orphan ledger opened", slog.String("db_path", path))

	return &Ledger{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("ledger: closing database: %w", err)
	}

	return nil
}

// RecordOrphan journals a partial case file.
func (l *Ledger) RecordOrphan(ctx context.Context, o expediente.Orphan) error {
	id := uuid.NewString()

	_, err := l.db.ExecContext(ctx, sqlInsert,
		id, o.ExpID, o.Codigo, o.FolderID, string(o.Stage), o.Uploaded, o.Err,
		l.nowFunc().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ledger: recording %s: %w", o.ExpID, err)
	}

	l.logger.Info("orphan recorded",
		slog.String("id", id),
		slog.String("exp_id", o.ExpID),
		slog.String("folder_id", o.FolderID),
		slog.String("stage", string(o.Stage)),
	)

	return nil
}

// List returns the entries oldest first, in insertion order on equal
// timestamps. Resolved entries are included only
// when includeResolved is set.
func (l *Ledger) List(ctx context.Context, includeResolved bool) ([]Entry, error) {
	query := sqlListUnresolved
	if includeResolved {
		query = sqlListAll
	}

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ledger: listing: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating rows: %w", err)
	}

	return entries, nil
}

// Get returns the newest unresolved entry for expID, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, expID string) (*Entry, error) {
	e, err := scanEntry(l.db.QueryRowContext(ctx, sqlGetUnresolved, expID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, expID)
	}

	if err != nil {
		return nil, err
	}

	return e, nil
}

// Resolve marks every unresolved entry for expID as resolved.
func (l *Ledger) Resolve(ctx context.Context, expID string) error {
	res, err := l.db.ExecContext(ctx, sqlResolve, l.nowFunc().UnixNano(), expID)
	if err != nil {
		return fmt.Errorf("ledger: resolving %s: %w", expID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: resolving %s: %w", expID, err)
	}

	if n == 0 {
		return fmt.Errorf("%w for %s", ErrNotFound, expID)
	}

	l.logger.Info("orphan resolved", slog.String("exp_id", expID), slog.Int64("entries", n))

	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		e          Entry
		stage      string
		createdAt  int64
		resolvedAt sql.NullInt64
	)

	err := s.Scan(&e.ID, &e.ExpID, &e.Codigo, &e.FolderID, &stage, &e.Uploaded, &e.Error,
		&createdAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("ledger: scanning row: %w", err)
	}

	e.Stage = expediente.Stage(stage)
	e.CreatedAt = time.Unix(0, createdAt)

	if resolvedAt.Valid {
		e.ResolvedAt = time.Unix(0, resolvedAt.Int64)
	}

	return &e, nil
}
