package config

import (
	"fmt"
	"sync"
	"time"
)

// SectionIDOrchestrator is the identifier of the orchestrator section.
const SectionIDOrchestrator = "orchestrator"

// OrchestratorSettings holds the creation retry policy, batch sizing and
// navigation host rules.
type OrchestratorSettings struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	Multiplier       float64
	MaxDelay         time.Duration
	BatchConcurrency int
	AllowedHosts     []string
	DeniedHosts      []string
}

// DefaultOrchestratorSettings returns three attempts backing off from 1s.
func DefaultOrchestratorSettings() OrchestratorSettings {
	return OrchestratorSettings{
		MaxAttempts:      3,
		BaseDelay:        time.Second,
		Multiplier:       2,
		MaxDelay:         30 * time.Second,
		BatchConcurrency: 4,
	}
}

// OrchestratorSection manages OrchestratorSettings.
type OrchestratorSection struct {
	mu       sync.RWMutex
	settings OrchestratorSettings
}

// NewOrchestratorSection creates the section with defaults.
func NewOrchestratorSection() *OrchestratorSection {
	return &OrchestratorSection{settings: DefaultOrchestratorSettings()}
}

func (s *OrchestratorSection) ID() string    { return SectionIDOrchestrator }
func (s *OrchestratorSection) Title() string { return "Orchestrator" }
func (s *OrchestratorSection) Description() string {
	return "Instance creation retries, batch concurrency and navigation host rules."
}

// Settings returns a copy of the current settings.
func (s *OrchestratorSection) Settings() OrchestratorSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.AllowedHosts = append([]string(nil), s.settings.AllowedHosts...)
	out.DeniedHosts = append([]string(nil), s.settings.DeniedHosts...)
	return out
}

// Data returns the current configuration data.
func (s *OrchestratorSection) Data() map[string]interface{} {
	st := s.Settings()
	return map[string]interface{}{
		"max_attempts":      st.MaxAttempts,
		"base_delay":        st.BaseDelay.String(),
		"multiplier":        st.Multiplier,
		"max_delay":         st.MaxDelay.String(),
		"batch_concurrency": st.BatchConcurrency,
		"allowed_hosts":     toInterfaces(st.AllowedHosts),
		"denied_hosts":      toInterfaces(st.DeniedHosts),
	}
}

// SetData applies the keys present in data. On error nothing changes.
func (s *OrchestratorSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	var err error
	for key, value := range data {
		switch key {
		case "max_attempts":
			next.MaxAttempts, err = asInt(key, value)
		case "base_delay":
			next.BaseDelay, err = asDuration(key, value)
		case "multiplier":
			next.Multiplier, err = asFloat(key, value)
		case "max_delay":
			next.MaxDelay, err = asDuration(key, value)
		case "batch_concurrency":
			next.BatchConcurrency, err = asInt(key, value)
		case "allowed_hosts":
			next.AllowedHosts, err = asStringSlice(key, value)
		case "denied_hosts":
			next.DeniedHosts, err = asStringSlice(key, value)
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
func (s *OrchestratorSection) Validate() error {
	st := s.Settings()
	if st.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", st.MaxAttempts)
	}
	if st.BaseDelay < 0 || st.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if st.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %v", st.Multiplier)
	}
	if st.BatchConcurrency < 1 {
		return fmt.Errorf("batch_concurrency must be at least 1, got %d", st.BatchConcurrency)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *OrchestratorSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultOrchestratorSettings()
}
