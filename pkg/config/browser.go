package config

import (
	"fmt"
	"sync"
	"time"
)

// SectionIDBrowser is the identifier of the browser section.
const SectionIDBrowser = "browser"

// BrowserSettings configures the session engine and instance limits.
type BrowserSettings struct {
	Headless       bool
	ExecutablePath string
	ProfilesDir    string
	ProxyServers   []string
	MaxInstances   int
	DefaultZoom    float64
	LaunchTimeout  time.Duration
	MaxMemoryMB    int
}

// DefaultBrowserSettings returns the built-in browser defaults.
func DefaultBrowserSettings() BrowserSettings {
	return BrowserSettings{
		Headless:      false,
		ProfilesDir:   "browser_profiles",
		MaxInstances:  10,
		DefaultZoom:   100,
		LaunchTimeout: 30 * time.Second,
		MaxMemoryMB:   512,
	}
}

// BrowserSection manages BrowserSettings.
type BrowserSection struct {
	mu       sync.RWMutex
	settings BrowserSettings
}

// NewBrowserSection creates the section with defaults.
func NewBrowserSection() *BrowserSection {
	return &BrowserSection{settings: DefaultBrowserSettings()}
}

func (s *BrowserSection) ID() string    { return SectionIDBrowser }
func (s *BrowserSection) Title() string { return "Browser" }
func (s *BrowserSection) Description() string {
	return "Browser launch options, profile location, proxies and instance limits."
}

// Settings returns a copy of the current settings.
func (s *BrowserSection) Settings() BrowserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.ProxyServers = append([]string(nil), s.settings.ProxyServers...)
	return out
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	st := s.Settings()
	return map[string]interface{}{
		"headless":        st.Headless,
		"executable_path": st.ExecutablePath,
		"profiles_dir":    st.ProfilesDir,
		"proxy_servers":   toInterfaces(st.ProxyServers),
		"max_instances":   st.MaxInstances,
		"default_zoom":    st.DefaultZoom,
		"launch_timeout":  st.LaunchTimeout.String(),
		"max_memory_mb":   st.MaxMemoryMB,
	}
}

// SetData applies the keys present in data. On error nothing changes.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	var err error
	for key, value := range data {
		switch key {
		case "headless":
			next.Headless, err = asBool(key, value)
		case "executable_path":
			next.ExecutablePath, err = asString(key, value)
		case "profiles_dir":
			next.ProfilesDir, err = asString(key, value)
		case "proxy_servers":
			next.ProxyServers, err = asStringSlice(key, value)
		case "max_instances":
			next.MaxInstances, err = asInt(key, value)
		case "default_zoom":
			next.DefaultZoom, err = asFloat(key, value)
		case "launch_timeout":
			next.LaunchTimeout, err = asDuration(key, value)
		case "max_memory_mb":
			next.MaxMemoryMB, err = asInt(key, value)
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
func (s *BrowserSection) Validate() error {
	st := s.Settings()
	if st.MaxInstances < 0 {
		return fmt.Errorf("max_instances must not be negative, got %d", st.MaxInstances)
	}
	if st.DefaultZoom < 25 || st.DefaultZoom > 200 {
		return fmt.Errorf("default_zoom must be between 25 and 200, got %v", st.DefaultZoom)
	}
	if st.LaunchTimeout < time.Second {
		return fmt.Errorf("launch_timeout must be at least 1s, got %v", st.LaunchTimeout)
	}
	if st.MaxMemoryMB < 0 {
		return fmt.Errorf("max_memory_mb must not be negative, got %d", st.MaxMemoryMB)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultBrowserSettings()
}
