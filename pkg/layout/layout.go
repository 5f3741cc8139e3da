// Package layout assigns screen rectangles to concurrently visible browser
// windows. Windows are packed in a grid whose shape follows the screen aspect
// ratio; every function here is pure apart from the optional jitter, which
// draws from a caller-supplied random source.
package layout

import (
	"math"
	"math/rand"
)

// Rect is a window rectangle in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Overlaps reports whether two rectangles share any area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Screen describes the area windows are laid out on.
type Screen struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// TopMargin is reserved at the top of the screen (menu bars, docks).
	TopMargin int `json:"top_margin"`

	// CellMargin shrinks each cell on every side to avoid edge clipping.
	CellMargin int `json:"cell_margin"`
}

// DefaultScreen matches a 1080p display with a 100px reserved strip.
var DefaultScreen = Screen{Width: 1920, Height: 1080, TopMargin: 100, CellMargin: 2}

// AspectRatio returns width/height of the usable area.
func (s Screen) AspectRatio() float64 {
	h := s.Height - s.TopMargin
	if h <= 0 || s.Width <= 0 {
		return 1
	}
	return float64(s.Width) / float64(h)
}

// Contains reports whether r lies within the usable area.
func (s Screen) Contains(r Rect) bool {
	return r.X >= 0 && r.Y >= s.TopMargin && r.Right() <= s.Width && r.Bottom() <= s.Height
}

// GridDimensions returns the grid shape for count windows. Columns follow
// round(sqrt(count*aspectRatio)), floored at 1; rows are the fewest that fit
// count. A non-positive count yields (1, 1).
func GridDimensions(count int, aspectRatio float64) (rows, cols int) {
	if count <= 0 {
		return 1, 1
	}
	if aspectRatio <= 0 {
		aspectRatio = 1
	}
	cols = int(math.Round(math.Sqrt(float64(count) * aspectRatio)))
	if cols < 1 {
		cols = 1
	}
	if cols > count {
		cols = count
	}
	rows = (count + cols - 1) / cols
	return rows, cols
}

// Placement returns the base-grid rectangle for a 1-based ordinal. Ordinals
// past rows*cols wrap around the grid.
func Placement(ordinal, rows, cols int, screen Screen) Rect {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	if ordinal < 1 {
		ordinal = 1
	}
	idx := (ordinal - 1) % (rows * cols)
	row, col := idx/cols, idx%cols

	usableHeight := screen.Height - screen.TopMargin
	x0 := col * screen.Width / cols
	x1 := (col + 1) * screen.Width / cols
	y0 := screen.TopMargin + row*usableHeight/rows
	y1 := screen.TopMargin + (row+1)*usableHeight/rows

	m := screen.CellMargin
	// keep at least one pixel per side when the cell is tiny
	if 2*m >= x1-x0 || 2*m >= y1-y0 {
		m = 0
	}

	return Rect{
		X:      x0 + m,
		Y:      y0 + m,
		Width:  x1 - x0 - 2*m,
		Height: y1 - y0 - 2*m,
	}
}

// Jitter moves r by up to maxOffset pixels and resizes it by up to maxResize
// pixels on each axis, then clamps the result to the usable area.
func Jitter(r Rect, screen Screen, rng *rand.Rand, maxOffset, maxResize int) Rect {
	if rng == nil {
		return r
	}
	out := r
	out.X += symmetric(rng, maxOffset)
	out.Y += symmetric(rng, maxOffset)
	out.Width += symmetric(rng, maxResize)
	out.Height += symmetric(rng, maxResize)
	return Clamp(out, screen)
}

// Clamp fits r inside the usable area of screen, keeping width and height
// at least one pixel.
func Clamp(r Rect, screen Screen) Rect {
	maxW := screen.Width
	maxH := screen.Height - screen.TopMargin
	if maxW < 1 {
		maxW = 1
	}
	if maxH < 1 {
		maxH = 1
	}
	r.Width = clampInt(r.Width, 1, maxW)
	r.Height = clampInt(r.Height, 1, maxH)
	r.X = clampInt(r.X, 0, screen.Width-r.Width)
	r.Y = clampInt(r.Y, screen.TopMargin, screen.Height-r.Height)
	return r
}

func symmetric(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.Intn(2*n+1) - n
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
