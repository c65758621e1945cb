package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/database"
	"trial-sponsor-tracker/pkg/external"
	"trial-sponsor-tracker/pkg/logging"
	"trial-sponsor-tracker/pkg/monitoring"
	"trial-sponsor-tracker/pkg/pipeline/processors"
	"trial-sponsor-tracker/pkg/pipeline/types"
	"trial-sponsor-tracker/pkg/sink"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a run is requested while another is
// still going
var ErrRunInProgress = errors.New("a run is already in progress")

// Orchestrator wires the registry client, the enrichment chain and the sinks
// into runs
type Orchestrator struct {
	config    *config.Config
	trials    *external.ClinicalTrialsClient
	checker   *processors.PublicStatusChecker
	paginator *Paginator
	sinks     []sink.Sink
	metrics   *monitoring.MetricsCollector
	logger    *zap.Logger

	mu       sync.Mutex
	running  bool
	lastRun  *types.RunReport
	lastRows []types.Row
}

// NewOrchestrator creates a pipeline orchestrator. Any of the storage
// connections may be nil, which leaves the matching sink out.
func NewOrchestrator(
	postgres *sql.DB,
	redisClient *redis.Client,
	neo4jDriver neo4j.DriverWithContext,
	metrics *monitoring.MetricsCollector,
	cfg *config.Config,
	logger *zap.Logger,
) (*Orchestrator, error) {
	logger = logging.OrNop(logger)
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector()
	}

	market, err := external.NewMarketData(cfg.MarketData)
	if err != nil {
		return nil, err
	}
	market = external.NewRateLimitedMarketData(market, cfg.MarketData.RequestsPerSecond)

	selector, err := processors.NewSelector(cfg.MarketData.Match)
	if err != nil {
		return nil, err
	}

	trials := external.NewClinicalTrialsClient(cfg.Trials.BaseURL, cfg.Trials.Timeout)
	resolver := processors.NewTickerResolver(market, selector, logger)
	checker := processors.NewPublicStatusChecker(resolver, market, logger)
	enricher := processors.NewEnricher(checker, cfg.Enrichment.Workers, metrics, logger)

	var sinks []sink.Sink
	if cfg.Export.CSVPath != "" {
		sinks = append(sinks, sink.NewCSVSink(cfg.Export.CSVPath))
	}
	if postgres != nil {
		sinks = append(sinks, sink.NewPostgresSink(database.NewStore(postgres)))
	}
	if redisClient != nil {
		sinks = append(sinks, sink.NewRedisStreamSink(redisClient, cfg.Database.Redis.Stream, cfg.Database.Redis.StreamMaxLen))
	}
	if neo4jDriver != nil {
		sinks = append(sinks, sink.NewGraphSink(neo4jDriver))
	}

	return &Orchestrator{
		config:    cfg,
		trials:    trials,
		checker:   checker,
		paginator: NewPaginator(trials, enricher, cfg.Enrichment.Memoize(), metrics, logger),
		sinks:     sinks,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Run executes one aggregation run. filters are laid over the configured
// filters; pageCap < 0 uses the configured cap and 0 means unbounded.
func (o *Orchestrator) Run(ctx context.Context, filters map[string]string, pageCap int) (*types.RunReport, error) {
	if !o.tryStart() {
		return nil, ErrRunInProgress
	}
	defer o.finish()

	merged := MergeFilters(o.config.Trials.Filters, filters)
	if pageCap < 0 {
		pageCap = o.config.Trials.PageCap
	}

	params, err := QueryParams(merged)
	if err != nil {
		return nil, err
	}

	report := &types.RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Filters:   merged,
		PageCap:   pageCap,
	}
	logger := o.logger.With(zap.String("run_id", report.ID))
	logger.Info("Starting run", zap.Int("page_cap", pageCap), zap.Any("filters", merged))

	result, err := o.paginator.Run(ctx, params, pageCap)
	if err != nil {
		logger.Error("Run failed", zap.Error(err))
		return nil, fmt.Errorf("run %s: %w", report.ID, err)
	}

	summarize(report, result)

	// rows already fetched are written even if the caller has gone away
	sinkCtx := context.WithoutCancel(ctx)
	for _, s := range o.sinks {
		if err := s.Write(sinkCtx, report, result.Rows); err != nil {
			logger.Error("Sink write failed", zap.String("sink", s.Name()), zap.Error(err))
			report.SinkErrors = append(report.SinkErrors, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	o.metrics.RecordRun(report)
	o.remember(report, result.Rows)

	logger.Info("Run finished",
		zap.Int("pages", report.Pages),
		zap.Int("rows", report.Rows),
		zap.Int("public_rows", report.PublicRows),
		zap.String("stop_reason", string(report.StopReason)),
		zap.Duration("duration", report.Duration()))

	return report, nil
}

func summarize(report *types.RunReport, result *types.AggregateResult) {
	sponsors := make(map[string]struct{})
	for _, row := range result.Rows {
		if row.PubliclyTraded() {
			report.PublicRows++
		}
		if row.Record.SponsorListed {
			sponsors[row.Record.Sponsor] = struct{}{}
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.Pages = result.Pages
	report.Rows = len(result.Rows)
	report.Sponsors = len(sponsors)
	report.StopReason = result.StopReason
	report.LastError = result.LastError
}

// CheckSponsor runs the public-status check for a single company
func (o *Orchestrator) CheckSponsor(ctx context.Context, companyName string) types.SponsorResolution {
	return o.checker.Check(ctx, companyName)
}

// Trials returns the registry client, for health checks
func (o *Orchestrator) Trials() *external.ClinicalTrialsClient {
	return o.trials
}

// Sinks returns the names of the configured sinks
func (o *Orchestrator) Sinks() []string {
	names := make([]string, len(o.sinks))
	for i, s := range o.sinks {
		names[i] = s.Name()
	}
	return names
}

// Running reports whether a run is in progress
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// LastRun returns the most recent completed run and its rows, or nil
func (o *Orchestrator) LastRun() (*types.RunReport, []types.Row) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRun, o.lastRows
}

func (o *Orchestrator) tryStart() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
}

func (o *Orchestrator) remember(report *types.RunReport, rows []types.Row) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastRun = report
	o.lastRows = rows
}
