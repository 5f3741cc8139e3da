package orchestrator

import (
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/engine"
	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
)

// Status is the lifecycle state of an instance.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusError      Status = "error"
	StatusTerminated Status = "terminated"
)

// Instance is a registry record. The handle is owned by the orchestrator
// and released exactly once.
type Instance struct {
	ID          string
	Status      Status
	Fingerprint identity.Identity
	Placement   layout.Rect
	LaunchTime  time.Time
	ZoomLevel   float64
	URL         string

	handle engine.Handle
}

func (i Instance) info() Info {
	return Info{
		ID:          i.ID,
		Status:      i.Status,
		URL:         i.URL,
		Fingerprint: i.Fingerprint.Clone(),
		Placement:   i.Placement,
		ZoomLevel:   i.ZoomLevel,
		LaunchTime:  i.LaunchTime,
	}
}

// Info is a point-in-time snapshot of an instance.
type Info struct {
	ID          string            `json:"id"`
	Status      Status            `json:"status"`
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Fingerprint identity.Identity `json:"fingerprint"`
	Placement   layout.Rect       `json:"placement"`
	ZoomLevel   float64           `json:"zoom_level"`
	LaunchTime  time.Time         `json:"launch_time"`
	Error       string            `json:"error,omitempty"`
}

// Result is the per-id outcome of a bulk operation.
type Result struct {
	ID      string
	Success bool
	Err     error
}

// Stats counts registry entries by status.
type Stats struct {
	Total      int `json:"total"`
	Running    int `json:"running"`
	Pending    int `json:"pending"`
	Error      int `json:"error"`
	Terminated int `json:"terminated"`
	Creating   int `json:"creating"`
	Limit      int `json:"limit"`
}
