package config

import (
	"fmt"
	"strings"
	"sync"
)

// SectionIDStorage is the identifier of the storage section.
const SectionIDStorage = "storage"

// StorageSettings selects the persisted layout backend.
type StorageSettings struct {
	// Backend is file, sqlite or redis.
	Backend   string
	Path      string
	RedisURL  string
	KeyPrefix string
}

// DefaultStorageSettings uses the JSON file backend in its default location.
func DefaultStorageSettings() StorageSettings {
	return StorageSettings{Backend: "file", KeyPrefix: "profile"}
}

// StorageSection manages StorageSettings.
type StorageSection struct {
	mu       sync.RWMutex
	settings StorageSettings
}

// NewStorageSection creates the section with defaults.
func NewStorageSection() *StorageSection {
	return &StorageSection{settings: DefaultStorageSettings()}
}

func (s *StorageSection) ID() string          { return SectionIDStorage }
func (s *StorageSection) Title() string       { return "Storage" }
func (s *StorageSection) Description() string { return "Where instance profiles are persisted." }

// Settings returns a copy of the current settings.
func (s *StorageSection) Settings() StorageSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Data returns the current configuration data.
func (s *StorageSection) Data() map[string]interface{} {
	st := s.Settings()
	return map[string]interface{}{
		"backend":    st.Backend,
		"path":       st.Path,
		"redis_url":  st.RedisURL,
		"key_prefix": st.KeyPrefix,
	}
}

// SetData applies the keys present in data. On error nothing changes.
func (s *StorageSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	var err error
	for key, value := range data {
		switch key {
		case "backend":
			next.Backend, err = asString(key, value)
			next.Backend = strings.ToLower(next.Backend)
		case "path":
			next.Path, err = asString(key, value)
		case "redis_url", "redis_addr":
			next.RedisURL, err = asString(key, value)
		case "key_prefix":
			next.KeyPrefix, err = asString(key, value)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	s.settings = next
	return nil
}

// Validate validates the current configuration.
func (s *StorageSection) Validate() error {
	st := s.Settings()
	switch st.Backend {
	case "file":
	case "sqlite":
		if st.Path == "" {
			return fmt.Errorf("sqlite backend requires a path")
		}
	case "redis":
		if st.RedisURL == "" {
			return fmt.Errorf("redis backend requires redis_url")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", st.Backend)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *StorageSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultStorageSettings()
}
