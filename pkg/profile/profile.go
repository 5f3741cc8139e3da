// Package profile persists per-instance layout state so that a restarted
// instance resumes its last URL, placement and zoom.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("profile record not found")

// Record is the persisted state of one instance.
type Record struct {
	ID          string             `json:"id"`
	URL         string             `json:"url,omitempty"`
	Placement   layout.Rect        `json:"placement"`
	ZoomLevel   float64            `json:"zoom_level"`
	Fingerprint *identity.Identity `json:"fingerprint,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	LastUsed    time.Time          `json:"last_used"`
}

// Store persists records keyed by instance id.
type Store interface {
	// Get returns the record of id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Put inserts or replaces a record. The creation time of an existing
	// record is kept; a zero LastUsed is set to now.
	Put(ctx context.Context, r Record) error

	// Delete removes the record of id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every record ordered by id.
	List(ctx context.Context) ([]Record, error)

	// Prune deletes records last used before cutoff and returns their ids.
	Prune(ctx context.Context, cutoff time.Time) ([]string, error)

	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Path is the directory of the file backend or the database file of the
	// sqlite backend.
	Path string

	// RedisURL is a redis:// URL for the redis backend.
	RedisURL  string
	KeyPrefix string
}

// Open opens the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		return NewFileStore(cfg.Path)
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisURL, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown profile backend %q", cfg.Backend)
	}
}

// stamp fills the timestamps of r before it is written over existing.
func stamp(r Record, existing *Record, now time.Time) Record {
	switch {
	case existing != nil && !existing.CreatedAt.IsZero():
		r.CreatedAt = existing.CreatedAt
	case r.CreatedAt.IsZero():
		r.CreatedAt = now
	}
	if r.LastUsed.IsZero() {
		r.LastUsed = now
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.LastUsed = r.LastUsed.UTC()
	return r
}

func validate(r Record) error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("profile id is required")
	}
	return nil
}
