package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/monitoring"
	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeYahoo knows a single listed company, Acme Pharma (ACM)
func newFakeYahoo(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		quotes := []map[string]string{}
		if r.URL.Query().Get("q") == "Acme Pharma" {
			quotes = append(quotes, map[string]string{"symbol": "ACM", "shortname": "Acme Pharma"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"quotes": quotes})
	})
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		result := []map[string]interface{}{}
		if r.URL.Query().Get("symbols") == "ACM" {
			result = append(result, map[string]interface{}{
				"symbol": "ACM", "shortName": "Acme Pharma", "fullExchangeName": "NasdaqGS", "marketCap": 2.5e9,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"quoteResponse": map[string]interface{}{"result": result}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestOrchestrator(t *testing.T, registry *fakeRegistry, workers int) (*Orchestrator, *config.Config, *monitoring.MetricsCollector) {
	t.Helper()
	yahoo := newFakeYahoo(t)

	cfg := config.Default()
	cfg.Trials.BaseURL = registry.URL()
	cfg.Trials.Filters = map[string]string{"titles": "COVID", "lead": "0", "pageSize": "1"}
	cfg.MarketData.Yahoo.SearchURL = yahoo.URL + "/search"
	cfg.MarketData.Yahoo.QuoteURL = yahoo.URL + "/quote"
	cfg.MarketData.RequestsPerSecond = 0
	cfg.Enrichment.Workers = workers
	cfg.Export.CSVPath = filepath.Join(t.TempDir(), "trials.csv")

	metrics := monitoring.NewMetricsCollector()
	o, err := NewOrchestrator(nil, nil, nil, metrics, cfg, nil)
	require.NoError(t, err)
	return o, cfg, metrics
}

func TestOrchestratorEndToEnd(t *testing.T) {
	for _, workers := range []int{1, 4} {
		registry := newFakeRegistry(t,
			registryPage{studies: []string{study("NCT00000001", "Acme Pharma")}, next: "tok-1"},
			registryPage{studies: []string{study("NCT00000002", "Unknown Startup LLC")}},
		)
		o, cfg, metrics := newTestOrchestrator(t, registry, workers)

		report, err := o.Run(context.Background(), nil, -1)
		require.NoError(t, err)

		assert.NotEmpty(t, report.ID)
		assert.Equal(t, 2, report.Pages)
		assert.Equal(t, 2, report.Rows)
		assert.Equal(t, 1, report.PublicRows)
		assert.Equal(t, 2, report.Sponsors)
		assert.Equal(t, types.StopExhausted, report.StopReason)
		assert.Empty(t, report.SinkErrors)
		assert.Equal(t, "COVID", report.Filters["titles"])

		requests := registry.Requests()
		require.Len(t, requests, 2)
		assert.Equal(t, "COVID", requests[0].Get("query.titles"))
		assert.NotContains(t, requests[0], "query.lead")

		last, rows := o.LastRun()
		assert.Equal(t, report, last)
		require.Len(t, rows, 2)
		assert.True(t, rows[0].PubliclyTraded())
		assert.Equal(t, "ACM", rows[0].Resolution.TickerOrEmpty())
		require.NotNil(t, rows[0].Resolution.Quote)
		assert.Equal(t, "NasdaqGS", rows[0].Resolution.Quote.Exchange)
		assert.False(t, rows[1].PubliclyTraded())
		assert.Nil(t, rows[1].Resolution.Ticker)

		f, err := os.Open(cfg.Export.CSVPath)
		require.NoError(t, err)
		records, err := csv.NewReader(f).ReadAll()
		f.Close()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"0", "NCT00000001", "True", "ACM"},
			[]string{records[1][0], records[1][1], records[1][14], records[1][15]})
		assert.Equal(t, []string{"1", "NCT00000002", "False", ""},
			[]string{records[2][0], records[2][1], records[2][14], records[2][15]})

		p := metrics.GetPipelineMetrics(context.Background())
		assert.Equal(t, int64(2), p.PagesFetched)
		assert.Equal(t, int64(1), p.Runs)
	}
}

func TestOrchestratorOverridesAndCap(t *testing.T) {
	registry := newFakeRegistry(t, threePages()...)
	o, _, _ := newTestOrchestrator(t, registry, 1)

	report, err := o.Run(context.Background(), map[string]string{"titles": "asthma"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, types.StopPageCap, report.StopReason)
	assert.Equal(t, "asthma", registry.Requests()[0].Get("query.titles"))
}

func TestOrchestratorRejectsUnknownFilter(t *testing.T) {
	registry := newFakeRegistry(t, threePages()...)
	o, _, _ := newTestOrchestrator(t, registry, 1)

	_, err := o.Run(context.Background(), map[string]string{"country": "NO"}, 0)
	assert.Error(t, err)
	assert.Empty(t, registry.Requests())
	assert.False(t, o.Running())
}

func TestOrchestratorSingleRunAtATime(t *testing.T) {
	registry := newFakeRegistry(t, threePages()...)
	o, _, _ := newTestOrchestrator(t, registry, 1)

	require.True(t, o.tryStart())
	_, err := o.Run(context.Background(), nil, 0)
	assert.ErrorIs(t, err, ErrRunInProgress)
	o.finish()

	_, err = o.Run(context.Background(), nil, 0)
	assert.NoError(t, err)
}

func TestOrchestratorRecordsSinkErrors(t *testing.T) {
	registry := newFakeRegistry(t, threePages()...)
	_, cfg, _ := newTestOrchestrator(t, registry, 1)
	cfg.Export.CSVPath = filepath.Join(t.TempDir(), "missing", "trials.csv")
	o, err := NewOrchestrator(nil, nil, nil, nil, cfg, nil)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, report.SinkErrors, 1)
	assert.Contains(t, report.SinkErrors[0], "csv:")
	assert.Equal(t, []string{"csv"}, o.Sinks())
}

func TestOrchestratorCheckSponsor(t *testing.T) {
	registry := newFakeRegistry(t, threePages()...)
	o, _, _ := newTestOrchestrator(t, registry, 1)

	res := o.CheckSponsor(context.Background(), "Acme Pharma")
	assert.True(t, res.IsPublic())
	assert.Equal(t, "ACM", res.TickerOrEmpty())

	res = o.CheckSponsor(context.Background(), "Unknown Startup LLC")
	assert.Equal(t, types.StateUnresolved, res.State)
}
