package engine

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/layout"
	"github.com/LagoAI/LiebExplorer/pkg/logging"
	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultLaunchTimeout bounds browser startup.
	DefaultLaunchTimeout = 30 * time.Second

	// DefaultMaxMemoryMB caps the V8 heap of each session.
	DefaultMaxMemoryMB = 512

	defaultProfilesDir = "browser_profiles"
	verifyTimeoutMs    = 10000
)

// Options configures a PlaywrightEngine.
type Options struct {
	Headless       bool
	ExecutablePath string

	// ProfilesDir holds one user data directory per instance.
	ProfilesDir string

	// Proxies are assigned to new sessions round-robin.
	Proxies []string

	LaunchTimeout time.Duration
	MaxMemoryMB   int
	ExtraArgs     []string

	// Behavior paces Navigate. The zero value means DefaultBehavior.
	Behavior Behavior

	// Source drives the navigation randomness; nil seeds from the clock.
	Source rand.Source

	Logger logging.Interface
}

var _ Engine = (*PlaywrightEngine)(nil)

// PlaywrightEngine runs sessions as persistent Chromium contexts.
type PlaywrightEngine struct {
	mu          sync.RWMutex
	playwright  *playwright.Playwright
	sessions    map[*session]struct{}
	initialized bool
	nextProxy   int

	opts   Options
	pacer  *pacer
	logger logging.Interface
}

// NewPlaywrightEngine creates an engine. Initialize must be called before
// materializing sessions.
func NewPlaywrightEngine(opts Options) *PlaywrightEngine {
	if opts.ProfilesDir == "" {
		opts.ProfilesDir = defaultProfilesDir
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = DefaultLaunchTimeout
	}
	if opts.MaxMemoryMB <= 0 {
		opts.MaxMemoryMB = DefaultMaxMemoryMB
	}
	if opts.Behavior.NavTimeoutMax == 0 {
		opts.Behavior = DefaultBehavior()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &PlaywrightEngine{
		sessions: make(map[*session]struct{}),
		opts:     opts,
		pacer:    newPacer(opts.Behavior, opts.Source),
		logger:   logger,
	}
}

// Initialize installs the Chromium driver if needed and starts Playwright.
func (e *PlaywrightEngine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	// Driver output would interleave with our own logs.
	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	if err := os.MkdirAll(e.opts.ProfilesDir, 0o755); err != nil {
		_ = pw.Stop()
		return fmt.Errorf("failed to create profiles directory: %w", err)
	}

	e.playwright = pw
	e.initialized = true
	e.logger.Infof("Playwright started (headless=%v, profiles=%s)", e.opts.Headless, e.opts.ProfilesDir)
	return nil
}

// Shutdown closes every live session and stops Playwright.
func (e *PlaywrightEngine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for s := range e.sessions {
		if err := s.close(); err != nil {
			e.logger.Warnf("Failed to close session %s: %v", s.instanceID, err)
		}
		delete(e.sessions, s)
	}

	if e.initialized && e.playwright != nil {
		if err := e.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		e.initialized = false
	}
	return nil
}

// LiveSessions returns the number of sessions not yet torn down.
func (e *PlaywrightEngine) LiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Materialize launches a persistent context for spec.
func (e *PlaywrightEngine) Materialize(ctx context.Context, spec Spec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("materialize", spec.InstanceID, err)
	}

	e.mu.Lock()
	if !e.initialized {
		e.mu.Unlock()
		return nil, wrap("materialize", spec.InstanceID, fmt.Errorf("engine not initialized"))
	}
	pw := e.playwright
	proxy := e.pickProxyLocked()
	e.mu.Unlock()

	dir := spec.ProfileDir
	if dir == "" {
		dir = filepath.Join(e.opts.ProfilesDir, "profile_"+spec.InstanceID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrap("materialize", spec.InstanceID, fmt.Errorf("failed to create profile directory: %w", err))
	}

	launchOpts := e.launchOptions(spec, proxy)
	bctx, err := pw.Chromium.LaunchPersistentContext(dir, launchOpts)
	if err != nil {
		return nil, wrap("materialize", spec.InstanceID, fmt.Errorf("failed to launch browser: %w", err))
	}

	s, err := e.prepare(bctx, spec, dir)
	if err != nil {
		_ = bctx.Close()
		return nil, wrap("materialize", spec.InstanceID, err)
	}

	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()

	e.logger.Debugf("Materialized session %s in %s", spec.InstanceID, dir)
	return s, nil
}

func (e *PlaywrightEngine) pickProxyLocked() string {
	if len(e.opts.Proxies) == 0 {
		return ""
	}
	p := e.opts.Proxies[e.nextProxy%len(e.opts.Proxies)]
	e.nextProxy++
	return p
}

func (e *PlaywrightEngine) launchOptions(spec Spec, proxy string) playwright.BrowserTypeLaunchPersistentContextOptions {
	id := spec.Identity
	opts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Args:              e.launchArgs(spec),
		IgnoreDefaultArgs: []string{"--enable-automation"},
		Headless:          playwright.Bool(e.opts.Headless),
		UserAgent:         playwright.String(id.UserAgent),
		Locale:            playwright.String(id.Locale),
		TimezoneId:        playwright.String(id.Timezone),
		HasTouch:          playwright.Bool(id.TouchPoints > 0),
		Screen:            &playwright.Size{Width: id.ScreenWidth, Height: id.ScreenHeight},
		Timeout:           playwright.Float(float64(e.opts.LaunchTimeout.Milliseconds())),
	}

	if e.opts.Headless {
		opts.Viewport = &playwright.Size{Width: id.ViewportWidth, Height: id.ViewportHeight}
		opts.DeviceScaleFactor = playwright.Float(id.PixelRatio)
	} else {
		// Headed windows follow their OS window size.
		opts.NoViewport = playwright.Bool(true)
	}

	if e.opts.ExecutablePath != "" {
		opts.ExecutablePath = playwright.String(e.opts.ExecutablePath)
	}
	if proxy != "" {
		opts.Proxy = &playwright.Proxy{Server: proxy}
	}
	return opts
}

func (e *PlaywrightEngine) launchArgs(spec Spec) []string {
	r := spec.Placement
	args := []string{
		"--disable-blink-features=AutomationControlled",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--password-store=basic",
		"--no-first-run",
		"--no-default-browser-check",
		fmt.Sprintf("--js-flags=--max-old-space-size=%d", e.opts.MaxMemoryMB),
		fmt.Sprintf("--lang=%s", spec.Identity.Locale),
	}
	if !e.opts.Headless {
		args = append(args,
			fmt.Sprintf("--force-device-scale-factor=%g", spec.Identity.PixelRatio),
		)
		if r.Width > 0 && r.Height > 0 {
			args = append(args,
				fmt.Sprintf("--window-position=%d,%d", r.X, r.Y),
				fmt.Sprintf("--window-size=%d,%d", r.Width, r.Height),
			)
		}
	}
	return append(args, e.opts.ExtraArgs...)
}

// prepare installs the init scripts and picks the working page.
func (e *PlaywrightEngine) prepare(bctx playwright.BrowserContext, spec Spec, dir string) (*session, error) {
	fp, err := renderFingerprintScript(spec.Identity)
	if err != nil {
		return nil, err
	}
	if err := bctx.AddInitScript(playwright.Script{Content: &fp}); err != nil {
		return nil, fmt.Errorf("failed to install fingerprint script: %w", err)
	}
	stealth := stealthScript
	if err := bctx.AddInitScript(playwright.Script{Content: &stealth}); err != nil {
		return nil, fmt.Errorf("failed to install stealth script: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = bctx.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
	}
	page.SetDefaultNavigationTimeout(float64(e.opts.Behavior.NavTimeoutMax.Milliseconds()))

	return &session{
		instanceID: spec.InstanceID,
		profileDir: dir,
		headless:   e.opts.Headless,
		viewport: playwright.Size{
			Width:  spec.Identity.ViewportWidth,
			Height: spec.Identity.ViewportHeight,
		},
		context:   bctx,
		page:      page,
		createdAt: time.Now(),
	}, nil
}

// session resolves a handle produced by this engine.
func (e *PlaywrightEngine) session(h Handle) (*session, error) {
	s, ok := h.(*session)
	if !ok || s == nil {
		return nil, ErrUnknownHandle
	}
	e.mu.RLock()
	_, live := e.sessions[s]
	e.mu.RUnlock()
	if !live {
		return nil, ErrUnknownHandle
	}
	return s, nil
}

// Verify loads about:blank and checks that scripts run and the location
// is readable.
func (e *PlaywrightEngine) Verify(ctx context.Context, h Handle) error {
	s, err := e.session(h)
	if err != nil {
		return wrap("verify", handleID(h), err)
	}
	if err := ctx.Err(); err != nil {
		return wrap("verify", s.instanceID, err)
	}

	w := playwright.WaitUntilState("load")
	if _, err := s.page.Goto("about:blank", playwright.PageGotoOptions{
		Timeout:   playwright.Float(verifyTimeoutMs),
		WaitUntil: &w,
	}); err != nil {
		return wrap("verify", s.instanceID, fmt.Errorf("%w: blank page: %v", ErrVerificationFailed, err))
	}

	ua, err := s.page.Evaluate(userAgentProbe)
	if err != nil {
		return wrap("verify", s.instanceID, fmt.Errorf("%w: script probe: %v", ErrVerificationFailed, err))
	}
	if str, _ := ua.(string); str == "" {
		return wrap("verify", s.instanceID, fmt.Errorf("%w: empty user agent", ErrVerificationFailed))
	}

	if s.page.URL() == "" {
		return wrap("verify", s.instanceID, fmt.Errorf("%w: empty location", ErrVerificationFailed))
	}
	return nil
}

// Navigate loads url with human-like pacing: optional referrer, randomized
// timeout, pointer trajectory and pause, load, pause, scroll.
func (e *PlaywrightEngine) Navigate(ctx context.Context, h Handle, url string) error {
	s, err := e.session(h)
	if err != nil {
		return wrap("navigate", handleID(h), err)
	}

	b := e.opts.Behavior
	referrer := e.pacer.referrer()
	timeout := e.pacer.navTimeout()

	e.movePointer(s)
	if err := sleep(ctx, e.pacer.between(b.PreNavPauseMin, b.PreNavPauseMax)); err != nil {
		return wrap("navigate", s.instanceID, err)
	}

	w := playwright.WaitUntilState("load")
	gotoOpts := playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: &w,
	}
	if referrer != "" {
		gotoOpts.Referer = playwright.String(referrer)
	}
	if _, err := s.page.Goto(url, gotoOpts); err != nil {
		return wrap("navigate", s.instanceID, fmt.Errorf("navigation failed: %w", err))
	}

	if err := sleep(ctx, e.pacer.between(b.PostLoadPauseMin, b.PostLoadPauseMax)); err != nil {
		return wrap("navigate", s.instanceID, err)
	}
	e.scroll(ctx, s)

	e.logger.Debugf("Session %s navigated to %s (referrer=%q)", s.instanceID, s.page.URL(), referrer)
	return nil
}

// movePointer sweeps the pointer along a curve. Failures are cosmetic.
func (e *PlaywrightEngine) movePointer(s *session) {
	w, h := s.viewportSize()
	if w <= 0 || h <= 0 {
		return
	}
	mouse := s.page.Mouse()
	for _, p := range e.pacer.trajectory(w, h, 20) {
		if err := mouse.Move(p[0], p[1], playwright.MouseMoveOptions{Steps: playwright.Int(2)}); err != nil {
			e.logger.Debugf("Pointer simulation stopped for %s: %v", s.instanceID, err)
			return
		}
	}
}

// scroll issues wheel events with variable delta and pauses.
func (e *PlaywrightEngine) scroll(ctx context.Context, s *session) {
	b := e.opts.Behavior
	mouse := s.page.Mouse()
	for i := 0; i < b.ScrollSteps; i++ {
		delta := e.pacer.betweenFloat(b.ScrollDeltaMin, b.ScrollDeltaMax)
		if err := mouse.Wheel(0, delta); err != nil {
			e.logger.Debugf("Scroll simulation stopped for %s: %v", s.instanceID, err)
			return
		}
		if err := sleep(ctx, b.ScrollPause); err != nil {
			return
		}
	}
}

// Query reads the live location and title.
func (e *PlaywrightEngine) Query(ctx context.Context, h Handle) (PageState, error) {
	s, err := e.session(h)
	if err != nil {
		return PageState{}, wrap("query", handleID(h), err)
	}
	if err := ctx.Err(); err != nil {
		return PageState{}, wrap("query", s.instanceID, err)
	}

	title, err := s.page.Title()
	if err != nil {
		return PageState{}, wrap("query", s.instanceID, fmt.Errorf("failed to read title: %w", err))
	}
	return PageState{URL: s.page.URL(), Title: title}, nil
}

// Reposition moves the OS window through CDP, or resizes the viewport when
// running headless.
func (e *PlaywrightEngine) Reposition(ctx context.Context, h Handle, r layout.Rect) error {
	s, err := e.session(h)
	if err != nil {
		return wrap("reposition", handleID(h), err)
	}
	if err := ctx.Err(); err != nil {
		return wrap("reposition", s.instanceID, err)
	}

	if s.headless {
		if err := s.page.SetViewportSize(r.Width, r.Height); err != nil {
			return wrap("reposition", s.instanceID, fmt.Errorf("failed to resize viewport: %w", err))
		}
		return nil
	}

	cdp, err := s.context.NewCDPSession(s.page)
	if err != nil {
		return wrap("reposition", s.instanceID, fmt.Errorf("failed to open CDP session: %w", err))
	}
	defer func() { _ = cdp.Detach() }()

	res, err := cdp.Send("Browser.getWindowForTarget", map[string]interface{}{})
	if err != nil {
		return wrap("reposition", s.instanceID, fmt.Errorf("failed to resolve window: %w", err))
	}
	m, ok := res.(map[string]interface{})
	if !ok || m["windowId"] == nil {
		return wrap("reposition", s.instanceID, fmt.Errorf("unexpected window lookup result %v", res))
	}

	_, err = cdp.Send("Browser.setWindowBounds", map[string]interface{}{
		"windowId": m["windowId"],
		"bounds": map[string]interface{}{
			"left":   r.X,
			"top":    r.Y,
			"width":  r.Width,
			"height": r.Height,
		},
	})
	if err != nil {
		return wrap("reposition", s.instanceID, fmt.Errorf("failed to set window bounds: %w", err))
	}
	return nil
}

// SetZoom applies a clamped zoom percentage to the current document.
func (e *PlaywrightEngine) SetZoom(ctx context.Context, h Handle, level float64) error {
	s, err := e.session(h)
	if err != nil {
		return wrap("zoom", handleID(h), err)
	}
	if err := ctx.Err(); err != nil {
		return wrap("zoom", s.instanceID, err)
	}
	if _, err := s.page.Evaluate(zoomScript, ClampZoom(level)); err != nil {
		return wrap("zoom", s.instanceID, fmt.Errorf("failed to apply zoom: %w", err))
	}
	return nil
}

// Teardown closes the session's context. Unknown or already closed handles
// are ignored.
func (e *PlaywrightEngine) Teardown(_ context.Context, h Handle) error {
	s, ok := h.(*session)
	if !ok || s == nil {
		return nil
	}

	e.mu.Lock()
	_, live := e.sessions[s]
	delete(e.sessions, s)
	e.mu.Unlock()
	if !live {
		return nil
	}

	if err := s.close(); err != nil {
		return wrap("teardown", s.instanceID, err)
	}
	e.logger.Debugf("Closed session %s", s.instanceID)
	return nil
}

func handleID(h Handle) string {
	if h == nil {
		return ""
	}
	return h.InstanceID()
}
