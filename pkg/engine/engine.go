package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
)

// ErrVerificationFailed is returned by Verify when a freshly materialized
// session does not respond to probes.
var ErrVerificationFailed = errors.New("session verification failed")

// ErrUnknownHandle is returned when a handle was not produced by the engine
// it is passed to, or has already been torn down.
var ErrUnknownHandle = errors.New("unknown session handle")

// Engine materializes and drives browser sessions. Implementations must be
// safe for concurrent use across distinct handles.
type Engine interface {
	// Materialize launches a session presenting spec.Identity at spec.Placement.
	Materialize(ctx context.Context, spec Spec) (Handle, error)

	// Verify probes a session with a script evaluation and a location read.
	Verify(ctx context.Context, h Handle) error

	// Navigate loads url with human-like pacing.
	Navigate(ctx context.Context, h Handle, url string) error

	// Query reads the live location and title.
	Query(ctx context.Context, h Handle) (PageState, error)

	// Reposition moves and resizes the session window.
	Reposition(ctx context.Context, h Handle, r layout.Rect) error

	// SetZoom applies a page zoom percentage.
	SetZoom(ctx context.Context, h Handle, level float64) error

	// Teardown releases the session. Calling it twice is a no-op.
	Teardown(ctx context.Context, h Handle) error
}

// Spec describes the session to materialize.
type Spec struct {
	InstanceID string
	Identity   identity.Identity
	Placement  layout.Rect

	// ProfileDir is the persistent user data directory. Empty means the
	// engine derives one from InstanceID.
	ProfileDir string
}

// Handle is an opaque reference to a live session.
type Handle interface {
	InstanceID() string
}

// PageState is the live state of a session's page.
type PageState struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// EngineError wraps a failure of an engine operation.
type EngineError struct {
	Op         string
	InstanceID string
	Err        error
}

func (e *EngineError) Error() string {
	if e.InstanceID == "" {
		return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("engine %s [%s]: %v", e.Op, e.InstanceID, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, InstanceID: id, Err: err}
}

// ClampZoom bounds a zoom percentage to [MinZoom, MaxZoom].
func ClampZoom(level float64) float64 {
	if level < MinZoom {
		return MinZoom
	}
	if level > MaxZoom {
		return MaxZoom
	}
	return level
}

const (
	// MinZoom is the smallest accepted zoom percentage.
	MinZoom = 25.0

	// MaxZoom is the largest accepted zoom percentage.
	MaxZoom = 200.0

	// DefaultZoom is the zoom applied to new sessions.
	DefaultZoom = 100.0
)
