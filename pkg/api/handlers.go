package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/LagoAI/LiebExplorer/pkg/orchestrator"
	"github.com/LagoAI/LiebExplorer/pkg/stats"
)

// CreateRequest is the body of POST /instances.
type CreateRequest struct {
	Count int `json:"count"`
}

// VisitRequest is the body of POST /instances/:id/visit.
type VisitRequest struct {
	URL string `json:"url"`
}

// ZoomRequest is the body of POST /instances/:id/zoom.
type ZoomRequest struct {
	Level float64 `json:"level"`
}

// BatchRequest is the body of the batch routes. URL is used by batch visit.
type BatchRequest struct {
	InstanceIDs []string `json:"instance_ids"`
	URL         string   `json:"url,omitempty"`
}

// ResultResponse is the per-id outcome of a bulk request.
type ResultResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ResultsResponse wraps the outcomes of a bulk request.
type ResultsResponse struct {
	Results   []ResultResponse `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// InstancesResponse lists instances in id order.
type InstancesResponse struct {
	Instances []orchestrator.Info `json:"instances"`
	Total     int                 `json:"total"`
}

// ActionResponse acknowledges a single-instance action.
type ActionResponse struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStatsResponse combines registry counts with host usage.
type SystemStatsResponse struct {
	Instances orchestrator.Stats `json:"instances"`
	System    stats.Snapshot     `json:"system"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime"`
	Instances int       `json:"instances"`
	Timestamp time.Time `json:"timestamp"`
}

func toResults(results []orchestrator.Result) ResultsResponse {
	resp := ResultsResponse{Results: make([]ResultResponse, 0, len(results))}
	for _, r := range results {
		item := ResultResponse{ID: r.ID, Success: r.Success}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

// instanceError maps orchestrator failures to API errors.
func instanceError(id string, err error) error {
	switch {
	case errors.Is(err, orchestrator.ErrInstanceNotFound):
		return NewEntityNotFoundError(fmt.Sprintf("instance %s not found", id), err)
	case errors.Is(err, orchestrator.ErrDuplicateInstance),
		errors.Is(err, orchestrator.ErrNavigationRejected),
		errors.Is(err, orchestrator.ErrInvalidID),
		errors.Is(err, orchestrator.ErrCapacityReached):
		return NewBadParameterError(err.Error(), err)
	default:
		return NewInternalServerError(fmt.Sprintf("instance %s: operation failed", id), err)
	}
}

// CreateInstances (POST /instances) creates count new instances. Any failed
// creation makes the response a 500.
func (s *Server) CreateInstances(ectx echo.Context) error {
	var req CreateRequest
	if err := ectx.Bind(&req); err != nil {
		return NewBadParameterError("invalid request body", err)
	}
	if req.Count < 1 || req.Count > s.maxCreate {
		return NewBadParameterError(fmt.Sprintf("count must be between 1 and %d", s.maxCreate), nil)
	}

	resp := toResults(s.orch.CreateInstances(ectx.Request().Context(), req.Count))
	if resp.Failed > 0 {
		var failed []string
		for _, r := range resp.Results {
			if !r.Success {
				failed = append(failed, fmt.Sprintf("%s (%s)", r.ID, r.Error))
			}
		}
		return NewInternalServerError(
			fmt.Sprintf("created %d of %d instances; failed: %s", resp.Succeeded, req.Count, strings.Join(failed, ", ")), nil)
	}
	return ectx.JSON(http.StatusCreated, resp)
}

// ListInstances (GET /instances) returns every live instance.
func (s *Server) ListInstances(ectx echo.Context) error {
	ctx := ectx.Request().Context()
	all := s.orch.AllInstances(ctx)

	resp := InstancesResponse{Instances: make([]orchestrator.Info, 0, len(all))}
	for _, id := range s.orch.IDs() {
		if info, ok := all[id]; ok {
			resp.Instances = append(resp.Instances, info)
		}
	}
	resp.Total = len(resp.Instances)
	return ectx.JSON(http.StatusOK, resp)
}

// GetInstance (GET /instances/:id) returns one instance.
func (s *Server) GetInstance(ectx echo.Context) error {
	id := ectx.Param("id")
	info, ok := s.orch.InstanceInfo(ectx.Request().Context(), id)
	if !ok {
		return NewEntityNotFoundError(fmt.Sprintf("instance %s not found", id), nil)
	}
	return ectx.JSON(http.StatusOK, info)
}

// DeleteInstance (DELETE /instances/:id, POST /instances/:id/stop) tears an
// instance down.
func (s *Server) DeleteInstance(ectx echo.Context) error {
	id := ectx.Param("id")
	if _, err := s.orch.DeleteInstance(ectx.Request().Context(), id); err != nil {
		return instanceError(id, err)
	}
	return ectx.JSON(http.StatusOK, ActionResponse{ID: id, Status: "deleted"})
}

// StartInstance (POST /instances/:id/start) creates the instance with the
// given id.
func (s *Server) StartInstance(ectx echo.Context) error {
	id := ectx.Param("id")
	if _, err := s.orch.CreateInstance(ectx.Request().Context(), id); err != nil {
		return instanceError(id, err)
	}
	return ectx.JSON(http.StatusCreated, ActionResponse{ID: id, Status: string(orchestrator.StatusRunning)})
}

// VisitURL (POST /instances/:id/visit) navigates an instance.
func (s *Server) VisitURL(ectx echo.Context) error {
	id := ectx.Param("id")
	var req VisitRequest
	if err := ectx.Bind(&req); err != nil {
		return NewBadParameterError("invalid request body", err)
	}
	if strings.TrimSpace(req.URL) == "" {
		return NewBadParameterError("url is required", nil)
	}

	if _, err := s.orch.VisitURL(ectx.Request().Context(), id, req.URL); err != nil {
		return instanceError(id, err)
	}
	return ectx.JSON(http.StatusOK, ActionResponse{ID: id, Status: "visited", Message: req.URL})
}

// SetZoom (POST /instances/:id/zoom) applies a zoom level, clamped to
// [25, 200].
func (s *Server) SetZoom(ectx echo.Context) error {
	id := ectx.Param("id")
	var req ZoomRequest
	if err := ectx.Bind(&req); err != nil {
		return NewBadParameterError("invalid request body", err)
	}
	if req.Level <= 0 {
		return NewBadParameterError("level must be positive", nil)
	}

	if _, err := s.orch.SetZoom(ectx.Request().Context(), id, req.Level); err != nil {
		return instanceError(id, err)
	}
	info, _ := s.orch.InstanceInfo(ectx.Request().Context(), id)
	return ectx.JSON(http.StatusOK, ActionResponse{ID: id, Status: "zoomed", Message: fmt.Sprintf("%g", info.ZoomLevel)})
}

// BatchVisit (POST /instances/batch/visit) visits one URL on many instances.
func (s *Server) BatchVisit(ectx echo.Context) error {
	var req BatchRequest
	if err := ectx.Bind(&req); err != nil {
		return NewBadParameterError("invalid request body", err)
	}
	if len(req.InstanceIDs) == 0 {
		return NewBadParameterError("instance_ids must not be empty", nil)
	}
	if strings.TrimSpace(req.URL) == "" {
		return NewBadParameterError("url is required", nil)
	}

	results := s.orch.BatchVisit(ectx.Request().Context(), req.InstanceIDs, req.URL)
	return ectx.JSON(http.StatusOK, toResults(results))
}

// BatchDelete (POST /instances/batch/delete) deletes many instances.
func (s *Server) BatchDelete(ectx echo.Context) error {
	var req BatchRequest
	if err := ectx.Bind(&req); err != nil {
		return NewBadParameterError("invalid request body", err)
	}
	if len(req.InstanceIDs) == 0 {
		return NewBadParameterError("instance_ids must not be empty", nil)
	}

	results := s.orch.BatchDelete(ectx.Request().Context(), req.InstanceIDs)
	return ectx.JSON(http.StatusOK, toResults(results))
}

// ArrangeLayout (POST /layout/arrange) re-tiles the running instances.
func (s *Server) ArrangeLayout(ectx echo.Context) error {
	if err := s.orch.Arrange(ectx.Request().Context()); err != nil {
		return NewInternalServerError("failed to arrange instances", err)
	}
	return ectx.JSON(http.StatusOK, ActionResponse{Status: "arranged"})
}

// SaveLayout (POST /layout/save) persists every running instance.
func (s *Server) SaveLayout(ectx echo.Context) error {
	if err := s.orch.SaveLayout(ectx.Request().Context()); err != nil {
		return NewInternalServerError("failed to save layout", err)
	}
	return ectx.JSON(http.StatusOK, ActionResponse{Status: "saved"})
}

// SystemStats (GET /system/stats) returns instance counts and host usage.
func (s *Server) SystemStats(ectx echo.Context) error {
	snap, err := s.stats.Sample(ectx.Request().Context(), false)
	if err != nil {
		return NewInternalServerError("failed to sample system stats", err)
	}
	return ectx.JSON(http.StatusOK, SystemStatsResponse{Instances: s.orch.Stats(), System: snap})
}

// SystemPerformance (GET /system/performance) returns detailed host usage.
func (s *Server) SystemPerformance(ectx echo.Context) error {
	snap, err := s.stats.Sample(ectx.Request().Context(), true)
	if err != nil {
		return NewInternalServerError("failed to sample system performance", err)
	}
	return ectx.JSON(http.StatusOK, snap)
}

// Health (GET /health) reports liveness.
func (s *Server) Health(ectx echo.Context) error {
	return ectx.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Instances: s.orch.Stats().Total,
		Timestamp: time.Now().UTC(),
	})
}
