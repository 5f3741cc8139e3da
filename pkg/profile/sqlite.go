package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS profiles (
	id          TEXT PRIMARY KEY,
	url         TEXT NOT NULL DEFAULT '',
	placement   TEXT NOT NULL,
	zoom_level  REAL NOT NULL DEFAULT 100,
	fingerprint TEXT,
	created_at  INTEGER NOT NULL,
	last_used   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS profiles_last_used ON profiles (last_used);`

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens the database at path and creates the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const selectColumns = `SELECT id, url, placement, zoom_level, fingerprint, created_at, last_used FROM profiles`

// Get returns the record of id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.sqlDB.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get profile %s: %w", id, err)
	}
	return r, nil
}

// Put inserts or replaces a record, keeping the stored creation time.
func (s *SQLiteStore) Put(ctx context.Context, r Record) error {
	if err := validate(r); err != nil {
		return err
	}
	r = stamp(r, nil, time.Now())

	placement, err := json.Marshal(r.Placement)
	if err != nil {
		return fmt.Errorf("encode placement: %w", err)
	}
	var fingerprint sql.NullString
	if r.Fingerprint != nil {
		data, err := json.Marshal(r.Fingerprint)
		if err != nil {
			return fmt.Errorf("encode fingerprint: %w", err)
		}
		fingerprint = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO profiles (id, url, placement, zoom_level, fingerprint, created_at, last_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   url = excluded.url,
		   placement = excluded.placement,
		   zoom_level = excluded.zoom_level,
		   fingerprint = excluded.fingerprint,
		   last_used = excluded.last_used`,
		r.ID,
		r.URL,
		string(placement),
		r.ZoomLevel,
		fingerprint,
		toMillis(r.CreatedAt),
		toMillis(r.LastUsed),
	)
	if err != nil {
		return fmt.Errorf("put profile %s: %w", r.ID, err)
	}
	return nil
}

// Delete removes the record of id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	return nil
}

// List returns every record ordered by id.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

// Prune deletes records last used before cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM profiles WHERE last_used < ? ORDER BY id`, toMillis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("select stale profiles: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stale profile: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale profiles: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE last_used < ?`, toMillis(cutoff)); err != nil {
		return nil, fmt.Errorf("delete stale profiles: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit prune: %w", err)
	}
	return ids, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r           Record
		placement   string
		fingerprint sql.NullString
		createdAt   int64
		lastUsed    int64
	)
	if err := row.Scan(&r.ID, &r.URL, &placement, &r.ZoomLevel, &fingerprint, &createdAt, &lastUsed); err != nil {
		return Record{}, err
	}
	var rect layout.Rect
	if err := json.Unmarshal([]byte(placement), &rect); err != nil {
		return Record{}, fmt.Errorf("decode placement: %w", err)
	}
	r.Placement = rect
	if fingerprint.Valid && fingerprint.String != "" {
		var id identity.Identity
		if err := json.Unmarshal([]byte(fingerprint.String), &id); err != nil {
			return Record{}, fmt.Errorf("decode fingerprint: %w", err)
		}
		r.Fingerprint = &id
	}
	r.CreatedAt = fromMillis(createdAt)
	r.LastUsed = fromMillis(lastUsed)
	return r, nil
}
