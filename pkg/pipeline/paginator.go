package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"trial-sponsor-tracker/pkg/external"
	"trial-sponsor-tracker/pkg/logging"
	"trial-sponsor-tracker/pkg/pipeline/processors"
	"trial-sponsor-tracker/pkg/pipeline/types"

	"go.uber.org/zap"
)

// StudySource serves pages of registry search results
type StudySource interface {
	SearchStudies(ctx context.Context, params url.Values) (*external.StudiesPage, error)
	URL(params url.Values) string
}

// RecordEnricher attaches sponsor resolutions to a page of records
type RecordEnricher interface {
	Enrich(ctx context.Context, records []types.TrialRecord, memo *processors.SponsorMemo) []types.SponsorResolution
}

// PageRecorder receives one event per fetched page
type PageRecorder interface {
	RecordPage(studies int, duration time.Duration, err error)
}

// Paginator walks the registry search until the continuation token runs out
// or the page cap is reached
type Paginator struct {
	source   StudySource
	enricher RecordEnricher
	memoize  bool
	recorder PageRecorder
	logger   *zap.Logger
}

// NewPaginator creates a pagination driver. recorder may be nil.
func NewPaginator(source StudySource, enricher RecordEnricher, memoize bool, recorder PageRecorder, logger *zap.Logger) *Paginator {
	return &Paginator{
		source:   source,
		enricher: enricher,
		memoize:  memoize,
		recorder: recorder,
		logger:   logging.OrNop(logger),
	}
}

// Run fetches pages starting from params. pageCap <= 0 means unbounded.
//
// A failure to fetch the first page is returned as an error. Once at least one
// page has been consumed, a fetch failure ends the loop and the rows collected
// so far are returned with the matching stop reason. A non-success HTTP status
// is always a partial result, even on the first page.
func (p *Paginator) Run(ctx context.Context, params url.Values, pageCap int) (*types.AggregateResult, error) {
	state := types.NewPageState(params, pageCap)
	builder := NewAggregateBuilder()

	var memo *processors.SponsorMemo
	if p.memoize {
		memo = processors.NewSponsorMemo()
	}

	for {
		if err := ctx.Err(); err != nil {
			return builder.Build(state.Pages, types.StopCancelled, err), nil
		}

		query := state.Params()
		p.logger.Info("Fetching data from",
			zap.String("url", p.source.URL(query)),
			zap.Int("page", state.Pages+1))

		start := time.Now()
		page, err := p.source.SearchStudies(ctx, query)
		p.record(page, time.Since(start), err)
		if err != nil {
			if ctx.Err() != nil {
				return builder.Build(state.Pages, types.StopCancelled, ctx.Err()), nil
			}

			reason := stopReason(err)
			if state.Pages == 0 && reason != types.StopHTTPStatus {
				return nil, fmt.Errorf("fetching first page: %w", err)
			}

			p.logger.Warn("Stopping pagination early",
				zap.Int("pages", state.Pages),
				zap.Int("rows", builder.Len()),
				zap.String("reason", string(reason)),
				zap.Error(err))
			return builder.Build(state.Pages, reason, err), nil
		}

		records := make([]types.TrialRecord, len(page.Studies))
		for i, study := range page.Studies {
			records[i] = processors.ExtractRecord(study)
		}
		builder.AddPage(records, p.enricher.Enrich(ctx, records, memo))

		state = state.Advance(page.NextPageToken)
		if !state.HasNext() {
			reason := types.StopExhausted
			if state.Token != "" {
				reason = types.StopPageCap
			}
			p.logger.Info("Pagination finished",
				zap.Int("pages", state.Pages),
				zap.Int("rows", builder.Len()),
				zap.String("reason", string(reason)))
			return builder.Build(state.Pages, reason, nil), nil
		}
	}
}

func (p *Paginator) record(page *external.StudiesPage, d time.Duration, err error) {
	if p.recorder == nil {
		return
	}
	studies := 0
	if page != nil {
		studies = len(page.Studies)
	}
	p.recorder.RecordPage(studies, d, err)
}

func stopReason(err error) types.StopReason {
	var statusErr *external.HTTPStatusError
	var parseErr *external.ParseError
	switch {
	case errors.As(err, &statusErr):
		return types.StopHTTPStatus
	case errors.As(err, &parseErr):
		return types.StopParseError
	default:
		return types.StopNetworkError
	}
}
