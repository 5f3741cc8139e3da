package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampZoom(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 10, want: MinZoom},
		{in: 25, want: 25},
		{in: 100, want: 100},
		{in: 200, want: 200},
		{in: 350, want: MaxZoom},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampZoom(tt.in))
	}
}

func TestEngineError(t *testing.T) {
	err := wrap("verify", "3", ErrVerificationFailed)

	var ee *EngineError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "verify", ee.Op)
	assert.Equal(t, "3", ee.InstanceID)
	assert.True(t, errors.Is(err, ErrVerificationFailed))
	assert.Contains(t, err.Error(), "engine verify [3]")

	assert.Nil(t, wrap("verify", "3", nil))
	assert.Equal(t, "engine query: boom", wrap("query", "", errors.New("boom")).Error())
}

func TestRenderFingerprintScript(t *testing.T) {
	id := identity.NewSeededSynthesizer(21).Generate()

	script, err := renderFingerprintScript(id)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "(() => {"))
	assert.True(t, strings.HasSuffix(script, "})();"))
	assert.Contains(t, script, "const fp = ")

	// The embedded payload must be valid JSON carrying derived fields.
	start := strings.Index(script, "const fp = ") + len("const fp = ")
	end := strings.Index(script[start:], ";\n")
	require.Greater(t, end, 0)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(script[start:start+end]), &payload))
	assert.Equal(t, id.UserAgent, payload["user_agent"])
	assert.Equal(t, id.NavigatorPlatform(), payload["navigator_platform"])
	assert.EqualValues(t, id.DeviceMemoryGB(), payload["device_memory"])
}

func TestBezier_Endpoints(t *testing.T) {
	ctrl := [][2]float64{{0, 0}, {50, 100}, {100, 0}}
	pts := bezier(ctrl, 10)

	require.Len(t, pts, 11)
	assert.InDelta(t, 0, pts[0][0], 1e-9)
	assert.InDelta(t, 100, pts[10][0], 1e-9)
	assert.InDelta(t, 50, pts[5][0], 1e-9)
	assert.InDelta(t, 50, pts[5][1], 1e-9)
}

func TestPacer_TrajectoryStaysInViewport(t *testing.T) {
	p := newPacer(DefaultBehavior(), rand.NewSource(4))

	for i := 0; i < 20; i++ {
		for _, pt := range p.trajectory(800, 600, 20) {
			assert.GreaterOrEqual(t, pt[0], 0.0)
			assert.LessOrEqual(t, pt[0], 800.0)
			assert.GreaterOrEqual(t, pt[1], 0.0)
			assert.LessOrEqual(t, pt[1], 600.0)
		}
	}
}

func TestPacer_NavTimeoutWithinBounds(t *testing.T) {
	p := newPacer(DefaultBehavior(), rand.NewSource(8))

	for i := 0; i < 100; i++ {
		d := p.navTimeout()
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.LessOrEqual(t, d, 20*time.Second)
	}
}

func TestPacer_Referrer(t *testing.T) {
	b := DefaultBehavior()
	p := newPacer(b, rand.NewSource(12))

	sent, empty := 0, 0
	for i := 0; i < 400; i++ {
		ref := p.referrer()
		if ref == "" {
			empty++
			continue
		}
		sent++
		assert.Contains(t, b.Referrers, ref)
	}
	assert.Greater(t, sent, 100)
	assert.Greater(t, empty, 100)

	b.ReferrerChance = 0
	never := newPacer(b, rand.NewSource(12))
	for i := 0; i < 50; i++ {
		assert.Empty(t, never.referrer())
	}
}

func TestInstantBehavior_HasNoPauses(t *testing.T) {
	b := InstantBehavior()
	assert.Zero(t, b.PreNavPauseMax)
	assert.Zero(t, b.PostLoadPauseMax)
	assert.Zero(t, b.ScrollPause)
	assert.NotZero(t, b.NavTimeoutMax)
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, sleep(context.Background(), 0))
}

func TestLaunchArgs(t *testing.T) {
	id := identity.NewSeededSynthesizer(2).Generate()
	spec := Spec{InstanceID: "1", Identity: id, Placement: layout.Rect{X: 10, Y: 120, Width: 600, Height: 400}}

	headed := NewPlaywrightEngine(Options{ExtraArgs: []string{"--mute-audio"}})
	args := headed.launchArgs(spec)
	assert.Contains(t, args, "--disable-blink-features=AutomationControlled")
	assert.Contains(t, args, "--window-position=10,120")
	assert.Contains(t, args, "--window-size=600,400")
	assert.Contains(t, args, "--js-flags=--max-old-space-size=512")
	assert.Equal(t, "--mute-audio", args[len(args)-1])

	headless := NewPlaywrightEngine(Options{Headless: true})
	for _, a := range headless.launchArgs(spec) {
		assert.False(t, strings.HasPrefix(a, "--window-"), "headless sessions have no window args: %s", a)
	}
}

func TestLaunchOptions(t *testing.T) {
	id := identity.NewSeededSynthesizer(9).Generate()
	spec := Spec{InstanceID: "2", Identity: id}

	headless := NewPlaywrightEngine(Options{Headless: true, ExecutablePath: "/opt/chrome"})
	opts := headless.launchOptions(spec, "http://proxy:3128")
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, id.ViewportWidth, opts.Viewport.Width)
	assert.Equal(t, id.UserAgent, *opts.UserAgent)
	assert.Equal(t, id.Timezone, *opts.TimezoneId)
	assert.Equal(t, "/opt/chrome", *opts.ExecutablePath)
	require.NotNil(t, opts.Proxy)
	assert.Equal(t, "http://proxy:3128", opts.Proxy.Server)

	headed := NewPlaywrightEngine(Options{})
	opts = headed.launchOptions(spec, "")
	assert.Nil(t, opts.Viewport)
	assert.Nil(t, opts.DeviceScaleFactor)
	require.NotNil(t, opts.NoViewport)
	assert.True(t, *opts.NoViewport)
	assert.Nil(t, opts.Proxy)
}

func TestPickProxy_RoundRobin(t *testing.T) {
	e := NewPlaywrightEngine(Options{Proxies: []string{"a", "b", "c"}})

	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, e.pickProxyLocked())
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b"}, got)

	assert.Empty(t, NewPlaywrightEngine(Options{}).pickProxyLocked())
}

func TestPlaywrightEngine_RejectsUnknownHandles(t *testing.T) {
	e := NewPlaywrightEngine(Options{})
	ctx := context.Background()

	err := e.Verify(ctx, foreignHandle("x"))
	assert.ErrorIs(t, err, ErrUnknownHandle)

	_, err = e.Query(ctx, foreignHandle("x"))
	assert.ErrorIs(t, err, ErrUnknownHandle)

	assert.NoError(t, e.Teardown(ctx, foreignHandle("x")))
	assert.NoError(t, e.Teardown(ctx, (*session)(nil)))
}

func TestPlaywrightEngine_MaterializeRequiresInitialize(t *testing.T) {
	e := NewPlaywrightEngine(Options{ProfilesDir: t.TempDir()})

	_, err := e.Materialize(context.Background(), Spec{InstanceID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

// TestPlaywrightEngine_Lifecycle drives a real Chromium. It downloads the
// browser on first run, so it only runs when LIEB_PLAYWRIGHT_TEST is set.
func TestPlaywrightEngine_Lifecycle(t *testing.T) {
	if testing.Short() || os.Getenv("LIEB_PLAYWRIGHT_TEST") == "" {
		t.Skip("set LIEB_PLAYWRIGHT_TEST=1 to run browser integration tests")
	}

	e := NewPlaywrightEngine(Options{
		Headless:    true,
		ProfilesDir: t.TempDir(),
		Behavior:    InstantBehavior(),
	})
	require.NoError(t, e.Initialize())
	defer e.Shutdown()

	ctx := context.Background()
	id := identity.NewSeededSynthesizer(1).Generate()
	h, err := e.Materialize(ctx, Spec{InstanceID: "1", Identity: id})
	require.NoError(t, err)
	require.NoError(t, e.Verify(ctx, h))

	state, err := e.Query(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "about:blank", state.URL)

	require.NoError(t, e.SetZoom(ctx, h, 150))
	require.NoError(t, e.Reposition(ctx, h, layout.Rect{Width: 800, Height: 600}))

	require.NoError(t, e.Teardown(ctx, h))
	require.NoError(t, e.Teardown(ctx, h))
	assert.Equal(t, 0, e.LiveSessions())
}

type foreignHandle string

func (f foreignHandle) InstanceID() string { return string(f) }
