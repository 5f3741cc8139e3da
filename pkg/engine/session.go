package engine

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// session is the Playwright-backed Handle.
type session struct {
	instanceID string
	profileDir string
	headless   bool

	// viewport is the fallback size for pointer trajectories when the page
	// reports none (headed windows run without a fixed viewport).
	viewport playwright.Size

	context   playwright.BrowserContext
	page      playwright.Page
	createdAt time.Time

	closeOnce sync.Once
	closeErr  error
}

// InstanceID returns the id the session was materialized for.
func (s *session) InstanceID() string {
	if s == nil {
		return ""
	}
	return s.instanceID
}

// close releases the browser context exactly once.
func (s *session) close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.context.Close()
	})
	return s.closeErr
}

// viewportSize returns the current page size.
func (s *session) viewportSize() (int, int) {
	if vs := s.page.ViewportSize(); vs != nil && vs.Width > 0 && vs.Height > 0 {
		return vs.Width, vs.Height
	}
	return s.viewport.Width, s.viewport.Height
}
