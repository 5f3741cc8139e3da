package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// StateFileName is the document the file backend keeps in its directory.
const StateFileName = "profile_states.json"

// FileStore keeps all records in one JSON document, rewritten atomically
// on every change.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	records map[string]Record
	version string
}

type fileDocument struct {
	Version  string            `json:"version"`
	Profiles map[string]Record `json:"profiles"`
}

// NewFileStore opens the store in dir. If dir is empty, defaults to
// ~/.liebexplorer/profiles.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".liebexplorer", "profiles")
	}

	s := &FileStore{
		path:    filepath.Join(dir, StateFileName),
		records: make(map[string]Record),
		version: "1.0",
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load profiles from %s: %w", s.path, err)
	}
	return s, nil
}

// Path returns the location of the state document.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode state file: %w", err)
	}
	if doc.Version != "" {
		s.version = doc.Version
	}
	for id, r := range doc.Profiles {
		r.ID = id
		s.records[id] = r
	}
	return nil
}

// saveLocked writes the document through a temp file and rename.
func (s *FileStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data, err := json.MarshalIndent(fileDocument{Version: s.version, Profiles: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profiles: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp state file: %w", err)
	}
	return nil
}

// Get returns the record of id.
func (s *FileStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// Put inserts or replaces a record.
func (s *FileStore) Put(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(r); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.records[r.ID]
	var existing *Record
	if had {
		existing = &prev
	}
	s.records[r.ID] = stamp(r, existing, time.Now())
	if err := s.saveLocked(); err != nil {
		if had {
			s.records[r.ID] = prev
		} else {
			delete(s.records, r.ID)
		}
		return err
	}
	return nil
}

// Delete removes the record of id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[id]
	if !ok {
		return nil
	}
	delete(s.records, id)
	if err := s.saveLocked(); err != nil {
		s.records[id] = prev
		return err
	}
	return nil
}

// List returns every record ordered by id.
func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

// Prune deletes records last used before cutoff.
func (s *FileStore) Prune(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[string]Record)
	for id, r := range s.records {
		if r.LastUsed.Before(cutoff) {
			removed[id] = r
			delete(s.records, id)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err := s.saveLocked(); err != nil {
		for id, r := range removed {
			s.records[id] = r
		}
		return nil, err
	}

	ids := make([]string, 0, len(removed))
	for id := range removed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op; every change is already on disk.
func (s *FileStore) Close() error {
	return nil
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
}
