package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultReferrers are the traffic sources a navigation may claim.
var DefaultReferrers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://www.reddit.com/",
	"https://www.facebook.com/",
}

// Behavior holds the timing of human-like navigation.
type Behavior struct {
	// ReferrerChance is the probability of sending a referrer.
	ReferrerChance float64
	Referrers      []string

	NavTimeoutMin time.Duration
	NavTimeoutMax time.Duration

	PreNavPauseMin time.Duration
	PreNavPauseMax time.Duration

	PostLoadPauseMin time.Duration
	PostLoadPauseMax time.Duration

	// MousePoints is the number of control points of the pointer trajectory.
	MousePoints int

	// ScrollSteps is the number of wheel events after load.
	ScrollSteps    int
	ScrollDeltaMin float64
	ScrollDeltaMax float64
	ScrollPause    time.Duration
}

// DefaultBehavior returns the standard navigation pacing.
func DefaultBehavior() Behavior {
	return Behavior{
		ReferrerChance:   0.5,
		Referrers:        DefaultReferrers,
		NavTimeoutMin:    10 * time.Second,
		NavTimeoutMax:    20 * time.Second,
		PreNavPauseMin:   500 * time.Millisecond,
		PreNavPauseMax:   1500 * time.Millisecond,
		PostLoadPauseMin: time.Second,
		PostLoadPauseMax: 2 * time.Second,
		MousePoints:      4,
		ScrollSteps:      5,
		ScrollDeltaMin:   100,
		ScrollDeltaMax:   300,
		ScrollPause:      150 * time.Millisecond,
	}
}

// InstantBehavior keeps the navigation sequence but removes every pause.
func InstantBehavior() Behavior {
	b := DefaultBehavior()
	b.PreNavPauseMin, b.PreNavPauseMax = 0, 0
	b.PostLoadPauseMin, b.PostLoadPauseMax = 0, 0
	b.ScrollPause = 0
	return b
}

// pacer draws the random parts of a Behavior.
type pacer struct {
	b   Behavior
	mu  sync.Mutex
	rng *rand.Rand
}

func newPacer(b Behavior, src rand.Source) *pacer {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &pacer{b: b, rng: rand.New(src)}
}

func (p *pacer) float() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

func (p *pacer) intn(n int) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}

func (p *pacer) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(p.float()*float64(hi-lo))
}

func (p *pacer) betweenFloat(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + p.float()*(hi-lo)
}

// referrer returns a referrer to send, or "" for none.
func (p *pacer) referrer() string {
	if len(p.b.Referrers) == 0 || p.float() >= p.b.ReferrerChance {
		return ""
	}
	return p.b.Referrers[p.intn(len(p.b.Referrers))]
}

func (p *pacer) navTimeout() time.Duration {
	return p.between(p.b.NavTimeoutMin, p.b.NavTimeoutMax)
}

// trajectory returns pointer positions along a Bezier curve through random
// control points inside a w x h viewport.
func (p *pacer) trajectory(w, h int, steps int) [][2]float64 {
	n := p.b.MousePoints
	if n < 2 {
		n = 2
	}
	ctrl := make([][2]float64, n)
	for i := range ctrl {
		ctrl[i] = [2]float64{p.float() * float64(w), p.float() * float64(h)}
	}
	return bezier(ctrl, steps)
}

func bezier(ctrl [][2]float64, steps int) [][2]float64 {
	if steps < 1 {
		steps = 1
	}
	n := len(ctrl) - 1
	binom := make([]float64, n+1)
	binom[0] = 1
	for k := 0; k < n; k++ {
		binom[k+1] = binom[k] * float64(n-k) / float64(k+1)
	}

	out := make([][2]float64, 0, steps+1)
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		var x, y float64
		for i, c := range ctrl {
			coef := binom[i] * pow(t, i) * pow(1-t, n-i)
			x += c[0] * coef
			y += c[1] * coef
		}
		out = append(out, [2]float64{x, y})
	}
	return out
}

func pow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
