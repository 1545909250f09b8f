package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/crm/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// JobRunner triggers a scheduled job outside its normal schedule
type JobRunner interface {
	RunNow(ctx context.Context, name string, asOf time.Time) error
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	jobs      JobRunner
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(jobs JobRunner) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		jobs:      jobs,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns basic system information including version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "Invoicing Backend API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping checks that the API is responsive
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// TriggerJobRequest selects a scheduled job to run immediately
type TriggerJobRequest struct {
	Job  string     `json:"job" binding:"required,oneof=overdue-sweep dunning-run"`
	AsOf *time.Time `json:"as_of"`
}

// TriggerJobResponse confirms a manual job trigger
type TriggerJobResponse struct {
	Job         string `json:"job"`
	TriggeredAt string `json:"triggered_at"`
}

// TriggerJob runs a scheduled job on demand. The distributed job lock still
// applies, so a concurrently running instance makes this a no-op.
func (h *SystemHandler) TriggerJob(c *gin.Context) {
	var req TriggerJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	if err := h.jobs.RunNow(c.Request.Context(), req.Job, asOf); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	h.Success(c, TriggerJobResponse{
		Job:         req.Job,
		TriggeredAt: asOf.Format(time.RFC3339),
	})
}

// RegisterRoutes registers system routes
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	{
		system.GET("/info", h.GetSystemInfo)
		system.GET("/ping", h.Ping)
		system.POST("/jobs/trigger", h.TriggerJob)
	}
}
