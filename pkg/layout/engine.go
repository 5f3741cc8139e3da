package layout

import (
	"math/rand"
	"sync"
)

// Engine combines a screen with jitter settings and hands out placements.
// It is safe for concurrent use.
type Engine struct {
	screen    Screen
	jitter    bool
	maxOffset int
	maxResize int

	mu  sync.Mutex
	rng *rand.Rand
}

// Options configures an Engine.
type Options struct {
	Screen Screen

	// Jitter enables random offsets for a less regular arrangement.
	Jitter    bool
	MaxOffset int
	MaxResize int

	// Source feeds the jitter; nil means a time-independent fixed seed.
	Source rand.Source
}

// NewEngine creates a layout engine.
func NewEngine(opts Options) *Engine {
	if opts.Screen.Width <= 0 || opts.Screen.Height <= 0 {
		opts.Screen = DefaultScreen
	}
	if opts.Source == nil {
		opts.Source = rand.NewSource(1)
	}
	return &Engine{
		screen:    opts.Screen,
		jitter:    opts.Jitter,
		maxOffset: opts.MaxOffset,
		maxResize: opts.MaxResize,
		rng:       rand.New(opts.Source),
	}
}

// Screen returns the configured screen.
func (e *Engine) Screen() Screen {
	return e.screen
}

// Grid returns the grid shape for count windows on this screen.
func (e *Engine) Grid(count int) (rows, cols int) {
	return GridDimensions(count, e.screen.AspectRatio())
}

// Assign returns the placement of ordinal among count visible windows.
func (e *Engine) Assign(ordinal, count int) Rect {
	if count < ordinal {
		count = ordinal
	}
	rows, cols := e.Grid(count)
	r := Placement(ordinal, rows, cols, e.screen)
	if !e.jitter {
		return r
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Jitter(r, e.screen, e.rng, e.maxOffset, e.maxResize)
}
