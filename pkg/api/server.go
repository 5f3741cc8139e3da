// Package api serves the management HTTP API.
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/LagoAI/LiebExplorer/pkg/events"
	"github.com/LagoAI/LiebExplorer/pkg/logging"
	"github.com/LagoAI/LiebExplorer/pkg/orchestrator"
	"github.com/LagoAI/LiebExplorer/pkg/stats"
)

// BasePath prefixes every instance, layout and system route.
const BasePath = "/api/v1"

const defaultMaxBatchCreate = 50

// StatsSource samples host resource usage.
type StatsSource interface {
	Sample(ctx context.Context, detailed bool) (stats.Snapshot, error)
}

// Options configures a Server. Orchestrator is required.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Stats        StatsSource
	Events       *events.Bus[events.InstanceEvent]

	// AllowedOrigins restricts websocket origins; empty allows same-host.
	AllowedOrigins []string

	// MaxBatchCreate caps POST /instances counts.
	MaxBatchCreate int

	Version string
	Logger  logging.Interface
}

// Server holds the handlers of the management API.
type Server struct {
	orch           *orchestrator.Orchestrator
	stats          StatsSource
	events         *events.Bus[events.InstanceEvent]
	allowedOrigins []string
	maxCreate      int
	version        string
	started        time.Time
	logger         logging.Interface
}

// NewServer creates a Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewSampler()
	}
	if opts.MaxBatchCreate <= 0 {
		opts.MaxBatchCreate = defaultMaxBatchCreate
	}
	return &Server{
		orch:           opts.Orchestrator,
		stats:          opts.Stats,
		events:         opts.Events,
		allowedOrigins: opts.AllowedOrigins,
		maxCreate:      opts.MaxBatchCreate,
		version:        opts.Version,
		started:        time.Now(),
		logger:         logger,
	}
}

// NewEcho returns an echo instance with the error handler, recovery and
// every route registered.
func NewEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	RegisterErrorHandler(e, s.logger)
	e.Use(middleware.Recover())
	RegisterHandlers(e, s)
	return e
}

// RegisterHandlers mounts the routes of s on e.
func RegisterHandlers(e *echo.Echo, s *Server) {
	e.GET("/health", s.Health)

	v1 := e.Group(BasePath)
	v1.GET("/health", s.Health)

	v1.POST("/instances", s.CreateInstances)
	v1.GET("/instances", s.ListInstances)
	v1.POST("/instances/batch/visit", s.BatchVisit)
	v1.POST("/instances/batch/delete", s.BatchDelete)
	v1.DELETE("/instances/batch", s.BatchDelete)
	v1.GET("/instances/:id", s.GetInstance)
	v1.DELETE("/instances/:id", s.DeleteInstance)
	v1.POST("/instances/:id/start", s.StartInstance)
	v1.POST("/instances/:id/stop", s.DeleteInstance)
	v1.POST("/instances/:id/visit", s.VisitURL)
	v1.POST("/instances/:id/zoom", s.SetZoom)

	v1.POST("/layout/arrange", s.ArrangeLayout)
	v1.POST("/layout/save", s.SaveLayout)

	v1.GET("/system/stats", s.SystemStats)
	v1.GET("/system/performance", s.SystemPerformance)

	v1.GET("/events", s.Events)
}
