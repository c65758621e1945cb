package monitoring

import (
	"context"
	"sync"
	"time"

	"trial-sponsor-tracker/pkg/pipeline/types"
)

const maxLatencySamples = 1000

// MetricsCollector handles collecting and storing pipeline and API metrics
type MetricsCollector struct {
	mutex         sync.RWMutex
	responseTime  map[string][]time.Duration
	errorCount    map[string]int64
	systemMetrics SystemMetrics
	pipeline      PipelineMetrics
	startTime     time.Time
}

// SystemMetrics represents API request metrics
type SystemMetrics struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	AverageLatency     time.Duration `json:"average_latency"`
	ErrorRate          float64       `json:"error_rate"`
	ThroughputRPS      float64       `json:"throughput_rps"`
	Uptime             time.Duration `json:"uptime"`
}

// PipelineMetrics tracks registry pages, sponsor resolutions and runs
type PipelineMetrics struct {
	PagesFetched       int64                           `json:"pages_fetched"`
	PageErrors         int64                           `json:"page_errors"`
	StudiesExtracted   int64                           `json:"studies_extracted"`
	AveragePageLatency time.Duration                   `json:"average_page_latency"`
	Resolutions        map[types.ResolutionState]int64 `json:"resolutions"`
	CachedResolutions  int64                           `json:"cached_resolutions"`
	AverageResolution  time.Duration                   `json:"average_resolution"`
	Runs               int64                           `json:"runs"`
	PartialRuns        int64                           `json:"partial_runs"`
	LastRunID          string                          `json:"last_run_id,omitempty"`
	LastRunAt          time.Time                       `json:"last_run_at,omitempty"`
	LastRunDuration    time.Duration                   `json:"last_run_duration"`

	pageTime       time.Duration
	resolutionTime time.Duration
	resolvedCount  int64
}

// NewMetricsCollector creates a new metrics collector instance
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{}
	mc.reset()
	return mc
}

// RecordAPIRequest records metrics for general API requests
func (mc *MetricsCollector) RecordAPIRequest(ctx context.Context, endpoint, method string, duration time.Duration, statusCode int) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	key := method + "_" + endpoint

	mc.systemMetrics.TotalRequests++

	mc.responseTime[key] = append(mc.responseTime[key], duration)
	if len(mc.responseTime[key]) > maxLatencySamples {
		mc.responseTime[key] = mc.responseTime[key][1:]
	}

	if statusCode < 400 {
		mc.systemMetrics.SuccessfulRequests++
	} else {
		mc.systemMetrics.FailedRequests++
		mc.errorCount[key]++
	}

	mc.updateDerivedMetrics()
}

// RecordPage records one registry page fetch
func (mc *MetricsCollector) RecordPage(studies int, duration time.Duration, err error) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if err != nil {
		mc.pipeline.PageErrors++
		return
	}
	mc.pipeline.PagesFetched++
	mc.pipeline.StudiesExtracted += int64(studies)
	mc.pipeline.pageTime += duration
	mc.pipeline.AveragePageLatency = mc.pipeline.pageTime / time.Duration(mc.pipeline.PagesFetched)
}

// RecordResolution records one sponsor resolution
func (mc *MetricsCollector) RecordResolution(state types.ResolutionState, duration time.Duration, cached bool) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.pipeline.Resolutions[state]++
	if cached {
		mc.pipeline.CachedResolutions++
		return
	}
	mc.pipeline.resolvedCount++
	mc.pipeline.resolutionTime += duration
	mc.pipeline.AverageResolution = mc.pipeline.resolutionTime / time.Duration(mc.pipeline.resolvedCount)
}

// RecordRun records a finished run
func (mc *MetricsCollector) RecordRun(run *types.RunReport) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.pipeline.Runs++
	if run.Partial() {
		mc.pipeline.PartialRuns++
	}
	mc.pipeline.LastRunID = run.ID
	mc.pipeline.LastRunAt = run.StartedAt
	mc.pipeline.LastRunDuration = run.Duration()
}

// GetMetrics returns current metrics
func (mc *MetricsCollector) GetMetrics(ctx context.Context) map[string]interface{} {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	system := mc.systemMetrics
	system.Uptime = time.Since(mc.startTime)

	return map[string]interface{}{
		"system_metrics":   system,
		"pipeline_metrics": mc.pipelineSnapshot(),
		"endpoint_metrics": mc.getEndpointMetrics(),
		"timestamp":        time.Now(),
	}
}

// GetSystemMetrics returns API-level metrics
func (mc *MetricsCollector) GetSystemMetrics(ctx context.Context) SystemMetrics {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	metrics := mc.systemMetrics
	metrics.Uptime = time.Since(mc.startTime)

	return metrics
}

// GetPipelineMetrics returns pipeline metrics
func (mc *MetricsCollector) GetPipelineMetrics(ctx context.Context) PipelineMetrics {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	return mc.pipelineSnapshot()
}

// pipelineSnapshot copies pipeline metrics (called with lock held)
func (mc *MetricsCollector) pipelineSnapshot() PipelineMetrics {
	snapshot := mc.pipeline
	snapshot.Resolutions = make(map[types.ResolutionState]int64, len(mc.pipeline.Resolutions))
	for state, count := range mc.pipeline.Resolutions {
		snapshot.Resolutions[state] = count
	}
	return snapshot
}

// updateDerivedMetrics calculates derived metrics (called with lock held)
func (mc *MetricsCollector) updateDerivedMetrics() {
	if mc.systemMetrics.TotalRequests > 0 {
		mc.systemMetrics.ErrorRate = float64(mc.systemMetrics.FailedRequests) / float64(mc.systemMetrics.TotalRequests)
	}

	var totalDuration time.Duration
	var totalCount int64
	for _, durations := range mc.responseTime {
		for _, duration := range durations {
			totalDuration += duration
			totalCount++
		}
	}
	if totalCount > 0 {
		mc.systemMetrics.AverageLatency = totalDuration / time.Duration(totalCount)
	}

	uptime := time.Since(mc.startTime)
	if uptime.Seconds() > 0 {
		mc.systemMetrics.ThroughputRPS = float64(mc.systemMetrics.TotalRequests) / uptime.Seconds()
	}
}

// getEndpointMetrics returns metrics for API endpoints
func (mc *MetricsCollector) getEndpointMetrics() map[string]interface{} {
	endpointMetrics := make(map[string]interface{})

	for endpoint, durations := range mc.responseTime {
		if len(durations) == 0 {
			continue
		}
		var total time.Duration
		for _, d := range durations {
			total += d
		}

		requestCount := int64(len(durations))
		errorCount := mc.errorCount[endpoint]

		endpointMetrics[endpoint] = map[string]interface{}{
			"request_count":   requestCount,
			"average_latency": total / time.Duration(requestCount),
			"error_count":     errorCount,
			"error_rate":      float64(errorCount) / float64(requestCount),
		}
	}

	return endpointMetrics
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()
	mc.reset()
}

func (mc *MetricsCollector) reset() {
	mc.responseTime = make(map[string][]time.Duration)
	mc.errorCount = make(map[string]int64)
	mc.systemMetrics = SystemMetrics{}
	mc.pipeline = PipelineMetrics{Resolutions: make(map[types.ResolutionState]int64)}
	mc.startTime = time.Now()
}

// HealthScore returns a health score between 0 and 1 from the API error rate,
// API latency and the share of partial runs
func (mc *MetricsCollector) HealthScore() float64 {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()

	baseScore := 1.0

	if mc.systemMetrics.ErrorRate > 0.05 {
		baseScore -= mc.systemMetrics.ErrorRate
	}

	if mc.systemMetrics.AverageLatency > 1*time.Second {
		baseScore -= float64(mc.systemMetrics.AverageLatency.Milliseconds()) / 5000.0
	}

	if mc.pipeline.Runs > 0 {
		baseScore -= 0.5 * float64(mc.pipeline.PartialRuns) / float64(mc.pipeline.Runs)
	}

	if baseScore < 0 {
		baseScore = 0
	}
	if baseScore > 1 {
		baseScore = 1
	}

	return baseScore
}
