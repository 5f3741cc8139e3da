package config

import (
	"fmt"
	"sync"
)

// SectionIDLayout is the identifier of the layout section.
const SectionIDLayout = "layout"

// LayoutSettings describes the screen windows are tiled on.
type LayoutSettings struct {
	ScreenWidth  int
	ScreenHeight int
	TopMargin    int
	CellMargin   int
	Jitter       bool
	JitterOffset int
	JitterResize int
}

// DefaultLayoutSettings returns a 1080p screen with light jitter.
func DefaultLayoutSettings() LayoutSettings {
	return LayoutSettings{
		ScreenWidth:  1920,
		ScreenHeight: 1080,
		TopMargin:    100,
		CellMargin:   2,
		Jitter:       true,
		JitterOffset: 5,
		JitterResize: 10,
	}
}

// LayoutSection manages LayoutSettings.
type LayoutSection struct {
	mu       sync.RWMutex
	settings LayoutSettings
}

// NewLayoutSection creates the section with defaults.
func NewLayoutSection() *LayoutSection {
	return &LayoutSection{settings: DefaultLayoutSettings()}
}

func (s *LayoutSection) ID() string          { return SectionIDLayout }
func (s *LayoutSection) Title() string       { return "Layout" }
func (s *LayoutSection) Description() string { return "Screen geometry and window tiling." }

// Settings returns a copy of the current settings.
func (s *LayoutSection) Settings() LayoutSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Data returns the current configuration data.
func (s *LayoutSection) Data() map[string]interface{} {
	st := s.Settings()
	return map[string]interface{}{
		"screen_width":  st.ScreenWidth,
		"screen_height": st.ScreenHeight,
		"top_margin":    st.TopMargin,
		"cell_margin":   st.CellMargin,
		"jitter":        st.Jitter,
		"jitter_offset": st.JitterOffset,
		"jitter_resize": st.JitterResize,
	}
}

// SetData applies the keys present in data. On error nothing changes.
func (s *LayoutSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	var err error
	for key, value := range data {
		switch key {
		case "screen_width":
			next.ScreenWidth, err = asInt(key, value)
		case "screen_height":
			next.ScreenHeight, err = asInt(key, value)
		case "top_margin":
			next.TopMargin, err = asInt(key, value)
		case "cell_margin":
			next.CellMargin, err = asInt(key, value)
		case "jitter":
			next.Jitter, err = asBool(key, value)
		case "jitter_offset":
			next.JitterOffset, err = asInt(key, value)
		case "jitter_resize":
			next.JitterResize, err = asInt(key, value)
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
func (s *LayoutSection) Validate() error {
	st := s.Settings()
	if st.ScreenWidth <= 0 || st.ScreenHeight <= 0 {
		return fmt.Errorf("screen size must be positive, got %dx%d", st.ScreenWidth, st.ScreenHeight)
	}
	if st.TopMargin < 0 || st.TopMargin >= st.ScreenHeight {
		return fmt.Errorf("top_margin must be in [0, %d), got %d", st.ScreenHeight, st.TopMargin)
	}
	if st.CellMargin < 0 {
		return fmt.Errorf("cell_margin must not be negative, got %d", st.CellMargin)
	}
	if st.JitterOffset < 0 || st.JitterResize < 0 {
		return fmt.Errorf("jitter bounds must not be negative")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *LayoutSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultLayoutSettings()
}
