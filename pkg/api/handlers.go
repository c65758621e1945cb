package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"trial-sponsor-tracker/pkg/database"
	"trial-sponsor-tracker/pkg/health"
	"trial-sponsor-tracker/pkg/logging"
	"trial-sponsor-tracker/pkg/monitoring"
	"trial-sponsor-tracker/pkg/pipeline"
	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Runner executes runs and single sponsor checks
type Runner interface {
	Run(ctx context.Context, filters map[string]string, pageCap int) (*types.RunReport, error)
	CheckSponsor(ctx context.Context, companyName string) types.SponsorResolution
	LastRun() (*types.RunReport, []types.Row)
	Running() bool
}

// RunStore reads persisted run history
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]types.RunReport, error)
	GetRun(ctx context.Context, id string) (*types.RunReport, error)
	GetRows(ctx context.Context, runID string, limit, offset int) ([]types.Row, error)
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	runner           Runner
	store            RunStore
	healthChecker    *health.HealthChecker
	metricsCollector *monitoring.MetricsCollector
	logger           *zap.Logger
}

// NewHandlers creates the API handlers. store may be nil, in which case only
// the latest in-memory run is served.
func NewHandlers(
	runner Runner,
	store RunStore,
	healthChecker *health.HealthChecker,
	metricsCollector *monitoring.MetricsCollector,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		runner:           runner,
		store:            store,
		healthChecker:    healthChecker,
		metricsCollector: metricsCollector,
		logger:           logging.OrNop(logger),
	}
}

// RunRequest is the body of POST /api/v1/runs. Filters override the
// configured ones; a nil PageCap keeps the configured cap.
type RunRequest struct {
	Filters map[string]string `json:"filters"`
	PageCap *int              `json:"page_cap"`
}

// SponsorCheckResponse reports a single company lookup
type SponsorCheckResponse struct {
	Company        string                `json:"company"`
	PubliclyTraded bool                  `json:"publicly_traded"`
	Status         types.PublicStatus    `json:"status"`
	State          types.ResolutionState `json:"state"`
	Ticker         *string               `json:"ticker"`
	Diagnostic     *string               `json:"diagnostic"`
	Quote          *types.Quote          `json:"quote,omitempty"`
}

// RowsResponse is a page of rows of one run
type RowsResponse struct {
	RunID  string      `json:"run_id"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Rows   []types.Row `json:"rows"`
}

// Health returns the health of all components
func (h *Handlers) Health(c *gin.Context) {
	healthStatus := h.healthChecker.CheckHealth(c.Request.Context())

	status := http.StatusOK
	if healthStatus.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, healthStatus)
}

// Liveness reports that the process is up
func (h *Handlers) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, h.healthChecker.GetLivenessStatus(c.Request.Context()))
}

// Readiness checks the critical components
func (h *Handlers) Readiness(c *gin.Context) {
	readiness := h.healthChecker.GetReadinessStatus(c.Request.Context())

	status := http.StatusOK
	if readiness.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, readiness)
}

// ListRuns returns recent runs, newest first
func (h *Handlers) ListRuns(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultListLimit, 1, maxListLimit)
	if !ok {
		return
	}

	if h.store == nil {
		runs := make([]types.RunReport, 0, 1)
		if last, _ := h.runner.LastRun(); last != nil {
			runs = append(runs, *last)
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
		return
	}

	runs, err := h.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.internalError(c, "Failed to list runs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetLatestRun returns the most recent run of this process
func (h *Handlers) GetLatestRun(c *gin.Context) {
	last, _ := h.runner.LastRun()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run has completed yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

// GetRun returns one run summary
func (h *Handlers) GetRun(c *gin.Context) {
	id := c.Param("id")

	if h.store == nil {
		last, _ := h.runner.LastRun()
		if last == nil || last.ID != id {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "run_id": id})
			return
		}
		c.JSON(http.StatusOK, last)
		return
	}

	run, err := h.store.GetRun(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "run_id": id})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to get run", err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetRunRows returns a page of enriched rows of one run
func (h *Handlers) GetRunRows(c *gin.Context) {
	id := c.Param("id")
	limit, ok := queryInt(c, "limit", 100, 1, maxListLimit)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0, 0, int(^uint(0)>>1))
	if !ok {
		return
	}

	if h.store == nil {
		last, rows := h.runner.LastRun()
		if last == nil || last.ID != id {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "run_id": id})
			return
		}
		c.JSON(http.StatusOK, RowsResponse{RunID: id, Limit: limit, Offset: offset, Rows: pageOf(rows, limit, offset)})
		return
	}

	rows, err := h.store.GetRows(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.internalError(c, "Failed to get rows", err)
		return
	}
	c.JSON(http.StatusOK, RowsResponse{RunID: id, Limit: limit, Offset: offset, Rows: rows})
}

// TriggerRun executes a run and returns its report once it has finished
func (h *Handlers) TriggerRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}
	if _, err := pipeline.QueryParams(req.Filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pageCap := -1
	if req.PageCap != nil {
		if *req.PageCap < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_cap must not be negative"})
			return
		}
		pageCap = *req.PageCap
	}

	report, err := h.runner.Run(c.Request.Context(), req.Filters, pageCap)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Run failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Run failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, report)
}

// CheckSponsor looks up whether a single company is publicly traded
func (h *Handlers) CheckSponsor(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	res := h.runner.CheckSponsor(c.Request.Context(), name)
	c.JSON(http.StatusOK, SponsorCheckResponse{
		Company:        name,
		PubliclyTraded: res.IsPublic(),
		Status:         res.Status,
		State:          res.State,
		Ticker:         res.Ticker,
		Diagnostic:     res.Diagnostic,
		Quote:          res.Quote,
	})
}

// GetMetrics returns API and pipeline metrics
func (h *Handlers) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metricsCollector.GetMetrics(c.Request.Context()))
}

// GetSystemStatus returns overall system status
func (h *Handlers) GetSystemStatus(c *gin.Context) {
	ctx := c.Request.Context()

	healthStatus := h.healthChecker.CheckHealth(ctx)
	systemStatus := gin.H{
		"timestamp":    time.Now(),
		"health":       healthStatus,
		"pipeline":     h.metricsCollector.GetPipelineMetrics(ctx),
		"metrics":      h.metricsCollector.GetSystemMetrics(ctx),
		"health_score": h.metricsCollector.HealthScore(),
		"running":      h.runner.Running(),
	}

	status := http.StatusOK
	if healthStatus.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, systemStatus)
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// queryInt parses an optional integer query parameter within [lo, hi]. It
// writes a 400 response and returns false on bad input.
func queryInt(c *gin.Context, key string, def, lo, hi int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key, "value": raw})
		return 0, false
	}
	return v, true
}

func pageOf(rows []types.Row, limit, offset int) []types.Row {
	if offset >= len(rows) {
		return []types.Row{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
