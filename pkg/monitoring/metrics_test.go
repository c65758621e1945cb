package monitoring

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/stretchr/testify/assert"
)

func TestRecordAPIRequest(t *testing.T) {
	mc := NewMetricsCollector()
	ctx := context.Background()

	mc.RecordAPIRequest(ctx, "/api/v1/runs", http.MethodGet, 10*time.Millisecond, http.StatusOK)
	mc.RecordAPIRequest(ctx, "/api/v1/runs", http.MethodGet, 30*time.Millisecond, http.StatusInternalServerError)

	m := mc.GetSystemMetrics(ctx)
	assert.Equal(t, int64(2), m.TotalRequests)
	assert.Equal(t, int64(1), m.FailedRequests)
	assert.InDelta(t, 0.5, m.ErrorRate, 1e-9)
	assert.Equal(t, 20*time.Millisecond, m.AverageLatency)

	endpoints := mc.GetMetrics(ctx)["endpoint_metrics"].(map[string]interface{})
	assert.Contains(t, endpoints, "GET_/api/v1/runs")
}

func TestPipelineMetrics(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordPage(10, 200*time.Millisecond, nil)
	mc.RecordPage(4, 100*time.Millisecond, nil)
	mc.RecordPage(0, 0, errors.New("status 503"))
	mc.RecordResolution(types.StateResolvedPublic, 40*time.Millisecond, false)
	mc.RecordResolution(types.StateResolvedPublic, 0, true)
	mc.RecordResolution(types.StateUnresolved, 20*time.Millisecond, false)

	started := time.Now().Add(-time.Minute)
	mc.RecordRun(&types.RunReport{ID: "run-1", StartedAt: started, FinishedAt: started.Add(time.Minute), StopReason: types.StopHTTPStatus})

	p := mc.GetPipelineMetrics(context.Background())
	assert.Equal(t, int64(2), p.PagesFetched)
	assert.Equal(t, int64(1), p.PageErrors)
	assert.Equal(t, int64(14), p.StudiesExtracted)
	assert.Equal(t, 150*time.Millisecond, p.AveragePageLatency)
	assert.Equal(t, int64(2), p.Resolutions[types.StateResolvedPublic])
	assert.Equal(t, int64(1), p.CachedResolutions)
	assert.Equal(t, 30*time.Millisecond, p.AverageResolution)
	assert.Equal(t, int64(1), p.PartialRuns)
	assert.Equal(t, "run-1", p.LastRunID)
	assert.Equal(t, time.Minute, p.LastRunDuration)

	assert.InDelta(t, 0.5, mc.HealthScore(), 1e-9)

	mc.Reset()
	assert.Equal(t, int64(0), mc.GetPipelineMetrics(context.Background()).PagesFetched)
	assert.Equal(t, 1.0, mc.HealthScore())
}
