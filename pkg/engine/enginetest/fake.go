// Package enginetest provides an in-memory engine.Engine with fault
// injection for tests.
package enginetest

import (
	"context"
	"errors"
	"sync"

	"github.com/LagoAI/LiebExplorer/pkg/engine"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

var _ engine.Engine = (*Fake)(nil)

// Handle is the fake session handle.
type Handle struct {
	id  string
	seq int
}

// InstanceID returns the instance id of the handle.
func (h *Handle) InstanceID() string { return h.id }

// Session is the observable state of a fake session.
type Session struct {
	Spec      engine.Spec
	State     engine.PageState
	Placement layout.Rect
	Zoom      float64
	Visits    []string
	Live      bool
}

// Fake is an engine.Engine that keeps sessions in memory. Hooks return the
// error an operation should fail with; attempt counts start at 1 per
// instance id.
type Fake struct {
	// MaterializeErr fails the attempt-th materialization of id.
	MaterializeErr func(id string, attempt int) error

	// VerifyErr fails the attempt-th verification of id.
	VerifyErr func(id string, attempt int) error

	NavigateErr   func(id, url string) error
	QueryErr      func(id string) error
	RepositionErr func(id string) error
	TeardownErr   func(id string) error

	// BeforeMaterialize runs before each materialization, outside the lock.
	BeforeMaterialize func(spec engine.Spec)

	mu          sync.Mutex
	seq         int
	sessions    map[*Handle]*Session
	materialize map[string]int
	verify      map[string]int
	teardowns   map[string]int
}

// NewFake creates an empty fake engine.
func NewFake() *Fake {
	return &Fake{
		sessions:    make(map[*Handle]*Session),
		materialize: make(map[string]int),
		verify:      make(map[string]int),
		teardowns:   make(map[string]int),
	}
}

// FailFirst returns a hook failing the first n attempts of every id.
func FailFirst(n int) func(string, int) error {
	return func(_ string, attempt int) error {
		if attempt <= n {
			return ErrInjected
		}
		return nil
	}
}

// FailAlways returns a hook failing every attempt.
func FailAlways() func(string, int) error {
	return func(string, int) error { return ErrInjected }
}

// Materialize creates a fake session.
func (f *Fake) Materialize(ctx context.Context, spec engine.Spec) (engine.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.BeforeMaterialize != nil {
		f.BeforeMaterialize(spec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.materialize[spec.InstanceID]++
	if f.MaterializeErr != nil {
		if err := f.MaterializeErr(spec.InstanceID, f.materialize[spec.InstanceID]); err != nil {
			return nil, &engine.EngineError{Op: "materialize", InstanceID: spec.InstanceID, Err: err}
		}
	}

	f.seq++
	h := &Handle{id: spec.InstanceID, seq: f.seq}
	f.sessions[h] = &Session{
		Spec:      spec,
		State:     engine.PageState{URL: "about:blank"},
		Placement: spec.Placement,
		Zoom:      engine.DefaultZoom,
		Live:      true,
	}
	return h, nil
}

// Verify checks the handle is live and consults VerifyErr.
func (f *Fake) Verify(_ context.Context, h engine.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.liveLocked(h); err != nil {
		return err
	}
	id := h.InstanceID()
	f.verify[id]++
	if f.VerifyErr != nil {
		if err := f.VerifyErr(id, f.verify[id]); err != nil {
			return &engine.EngineError{Op: "verify", InstanceID: id, Err: errors.Join(engine.ErrVerificationFailed, err)}
		}
	}
	return nil
}

// Navigate records the visit.
func (f *Fake) Navigate(ctx context.Context, h engine.Handle, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.liveLocked(h)
	if err != nil {
		return err
	}
	if f.NavigateErr != nil {
		if err := f.NavigateErr(h.InstanceID(), url); err != nil {
			return &engine.EngineError{Op: "navigate", InstanceID: h.InstanceID(), Err: err}
		}
	}
	s.Visits = append(s.Visits, url)
	s.State = engine.PageState{URL: url, Title: "Title of " + url}
	return nil
}

// Query returns the recorded page state.
func (f *Fake) Query(_ context.Context, h engine.Handle) (engine.PageState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.liveLocked(h)
	if err != nil {
		return engine.PageState{}, err
	}
	if f.QueryErr != nil {
		if err := f.QueryErr(h.InstanceID()); err != nil {
			return engine.PageState{}, &engine.EngineError{Op: "query", InstanceID: h.InstanceID(), Err: err}
		}
	}
	return s.State, nil
}

// Reposition records the new placement.
func (f *Fake) Reposition(_ context.Context, h engine.Handle, r layout.Rect) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.liveLocked(h)
	if err != nil {
		return err
	}
	if f.RepositionErr != nil {
		if err := f.RepositionErr(h.InstanceID()); err != nil {
			return &engine.EngineError{Op: "reposition", InstanceID: h.InstanceID(), Err: err}
		}
	}
	s.Placement = r
	return nil
}

// SetZoom records the clamped zoom level.
func (f *Fake) SetZoom(_ context.Context, h engine.Handle, level float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := f.liveLocked(h)
	if err != nil {
		return err
	}
	s.Zoom = engine.ClampZoom(level)
	return nil
}

// Teardown releases the session. The session is released even when
// TeardownErr reports a failure.
func (f *Fake) Teardown(_ context.Context, h engine.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, ok := h.(*Handle)
	if !ok {
		return nil
	}
	s, ok := f.sessions[fh]
	if !ok || !s.Live {
		return nil
	}
	s.Live = false
	f.teardowns[fh.id]++
	if f.TeardownErr != nil {
		if err := f.TeardownErr(fh.id); err != nil {
			return &engine.EngineError{Op: "teardown", InstanceID: fh.id, Err: err}
		}
	}
	return nil
}

func (f *Fake) liveLocked(h engine.Handle) (*Session, error) {
	fh, ok := h.(*Handle)
	if !ok {
		return nil, engine.ErrUnknownHandle
	}
	s, ok := f.sessions[fh]
	if !ok || !s.Live {
		return nil, engine.ErrUnknownHandle
	}
	return s, nil
}

// Live returns the number of sessions not yet torn down.
func (f *Fake) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, s := range f.sessions {
		if s.Live {
			n++
		}
	}
	return n
}

// LiveFor returns the number of live sessions of id.
func (f *Fake) LiveFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for h, s := range f.sessions {
		if h.id == id && s.Live {
			n++
		}
	}
	return n
}

// Attempts returns how many times id was materialized.
func (f *Fake) Attempts(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.materialize[id]
}

// Teardowns returns how many sessions of id were torn down.
func (f *Fake) Teardowns(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teardowns[id]
}

// SessionFor returns a copy of the live session of id.
func (f *Fake) SessionFor(id string) (Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for h, s := range f.sessions {
		if h.id == id && s.Live {
			out := *s
			out.Visits = append([]string(nil), s.Visits...)
			return out, true
		}
	}
	return Session{}, false
}
