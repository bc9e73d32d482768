package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"calendar-sync-go/internal/syncer"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db           *gorm.DB
	orchestrator *syncer.Orchestrator
	jobs         *syncer.JobProcessor
	syncToken    string
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, orchestrator *syncer.Orchestrator, jobs *syncer.JobProcessor, syncToken string) *Handlers {
	return &Handlers{
		db:           db,
		orchestrator: orchestrator,
		jobs:         jobs,
		syncToken:    syncToken,
	}
}

// SyncRequest is the body accepted by the full batch entry point.
type SyncRequest struct {
	Mode            string `json:"mode"`
	LookbackDays    int    `json:"lookbackDays"`
	LookforwardDays int    `json:"lookforwardDays"`
	UserID          string `json:"user_id"`
}

// SyncResponse wraps a run result for the caller.
type SyncResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Summary   syncer.Summary      `json:"summary"`
	Details   []syncer.UserDetail `json:"details"`
	Errors    []string            `json:"errors"`
	Timestamp time.Time           `json:"timestamp"`
	Config    syncer.WindowConfig `json:"config"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Sync entry points are POST only; the scheduled ones require the
	// shared sync token.
	api := router.Group("/api/v1")
	{
		api.POST("/sync/calendar", h.RunCalendarSync)
		api.POST("/sync/nightly", h.requireSyncToken, h.RunNightlySync)
		api.POST("/sync/contact-jobs", h.requireSyncToken, h.DrainContactJobs)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := "ok"
	database := "ok"
	if err := h.db.Raw("SELECT 1").Error; err != nil {
		status = "error"
		database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	statusCode := http.StatusOK
	if status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"database":  database,
		"timestamp": time.Now(),
	})
}

// requireSyncToken authenticates the scheduled endpoints against the
// configured shared secret. A bare presence check would let anyone trigger
// provider calls on every tenant.
func (h *Handlers) requireSyncToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == "" || token == header ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.syncToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Missing or invalid sync token",
			Code:    http.StatusUnauthorized,
		})
		return
	}
	c.Next()
}

// RunCalendarSync runs a full batch sync with the requested window.
func (h *Handlers) RunCalendarSync(c *gin.Context) {
	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "validation_error",
				Message: "Invalid request body",
				Code:    http.StatusBadRequest,
			})
			return
		}
	}

	if _, err := syncer.ResolveWindow(req.Mode, 0, 0); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_mode",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	h.runSync(c, syncer.Options{
		Mode:            req.Mode,
		LookbackDays:    req.LookbackDays,
		LookforwardDays: req.LookforwardDays,
		UserID:          req.UserID,
	})
}

// RunNightlySync runs the nightly preset across all users.
func (h *Handlers) RunNightlySync(c *gin.Context) {
	h.runSync(c, syncer.Options{Mode: syncer.ModeNightly})
}

// runSync executes a run and renders it. Per-user failures still come back
// as 200 with counts; only a setup failure is an HTTP error.
func (h *Handlers) runSync(c *gin.Context, opts syncer.Options) {
	result, err := h.orchestrator.Run(c.Request.Context(), opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "sync_failed",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, SyncResponse{
		Success:   true,
		Message:   "Calendar sync completed",
		Summary:   result.Summary,
		Details:   result.Details,
		Errors:    result.Errors,
		Timestamp: result.Timestamp,
		Config:    result.Config,
	})
}

// DrainContactJobs processes one page of pending contact sync jobs.
func (h *Handlers) DrainContactJobs(c *gin.Context) {
	result, err := h.jobs.ProcessPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "job_drain_failed",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Contact sync jobs processed",
		"processed": result.Processed,
		"completed": result.Completed,
		"failed":    result.Failed,
		"details":   result.Details,
		"timestamp": result.Timestamp,
	})
}
