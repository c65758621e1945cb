package processors

import (
	"context"
	"sync"
	"time"

	"trial-sponsor-tracker/pkg/logging"
	"trial-sponsor-tracker/pkg/pipeline/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Checker resolves a sponsor name to its public status
type Checker interface {
	Check(ctx context.Context, companyName string) types.SponsorResolution
}

// Recorder receives one event per sponsor resolution
type Recorder interface {
	RecordResolution(state types.ResolutionState, duration time.Duration, cached bool)
}

// SponsorMemo reuses resolutions for repeated sponsors within one run.
// Concurrent lookups of the same sponsor share a single upstream call.
type SponsorMemo struct {
	mu      sync.Mutex
	entries map[string]types.SponsorResolution
	group   singleflight.Group
}

// NewSponsorMemo creates an empty, run-scoped memo
func NewSponsorMemo() *SponsorMemo {
	return &SponsorMemo{entries: make(map[string]types.SponsorResolution)}
}

func (m *SponsorMemo) get(name string) (types.SponsorResolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.entries[name]
	return res, ok
}

func (m *SponsorMemo) put(name string, res types.SponsorResolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = res
}

// Len returns the number of distinct sponsors resolved
func (m *SponsorMemo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Enricher attaches a SponsorResolution to every record of a page
type Enricher struct {
	checker  Checker
	workers  int
	recorder Recorder
	logger   *zap.Logger
}

// NewEnricher creates an enricher running up to workers checks at once
func NewEnricher(checker Checker, workers int, recorder Recorder, logger *zap.Logger) *Enricher {
	if workers < 1 {
		workers = 1
	}
	return &Enricher{
		checker:  checker,
		workers:  workers,
		recorder: recorder,
		logger:   logging.OrNop(logger),
	}
}

// Enrich returns one resolution per record, index aligned. memo may be nil.
// Failures are folded into the resolutions; Enrich itself cannot fail.
func (e *Enricher) Enrich(ctx context.Context, records []types.TrialRecord, memo *SponsorMemo) []types.SponsorResolution {
	out := make([]types.SponsorResolution, len(records))

	if e.workers == 1 {
		for i, rec := range records {
			out[i] = e.enrichOne(ctx, rec, memo)
		}
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, rec := range records {
		g.Go(func() error {
			out[i] = e.enrichOne(gctx, rec, memo)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (e *Enricher) enrichOne(ctx context.Context, rec types.TrialRecord, memo *SponsorMemo) types.SponsorResolution {
	if !rec.SponsorListed {
		return types.SponsorResolution{
			Sponsor:    rec.Sponsor,
			Status:     types.PublicNo,
			State:      types.StateUnresolved,
			Diagnostic: types.StringPtr("no sponsor listed"),
		}
	}

	if memo == nil {
		return e.check(ctx, rec.Sponsor)
	}

	if res, ok := memo.get(rec.Sponsor); ok {
		e.record(res.State, 0, true)
		return res
	}

	v, _, _ := memo.group.Do(rec.Sponsor, func() (interface{}, error) {
		if res, ok := memo.get(rec.Sponsor); ok {
			return res, nil
		}
		res := e.check(ctx, rec.Sponsor)
		// errors may be transient, so only settled answers are reused
		if res.State != types.StateError {
			memo.put(rec.Sponsor, res)
		}
		return res, nil
	})
	return v.(types.SponsorResolution)
}

func (e *Enricher) check(ctx context.Context, sponsor string) types.SponsorResolution {
	start := time.Now()
	res := e.checker.Check(ctx, sponsor)
	e.record(res.State, time.Since(start), false)

	e.logger.Debug("Sponsor resolved",
		zap.String("sponsor", sponsor),
		zap.String("state", string(res.State)),
		zap.String("ticker", res.TickerOrEmpty()))
	return res
}

func (e *Enricher) record(state types.ResolutionState, d time.Duration, cached bool) {
	if e.recorder != nil {
		e.recorder.RecordResolution(state, d, cached)
	}
}
