package pipeline

import (
	"trial-sponsor-tracker/pkg/pipeline/types"
)

// AggregateBuilder accumulates merged rows in page order
type AggregateBuilder struct {
	rows []types.Row
}

// NewAggregateBuilder creates an empty builder
func NewAggregateBuilder() *AggregateBuilder {
	return &AggregateBuilder{rows: make([]types.Row, 0)}
}

// AddPage appends one page. records and resolutions are index aligned.
func (b *AggregateBuilder) AddPage(records []types.TrialRecord, resolutions []types.SponsorResolution) {
	for i, rec := range records {
		var res types.SponsorResolution
		if i < len(resolutions) {
			res = resolutions[i]
		}
		b.rows = append(b.rows, types.Row{
			Index:      len(b.rows),
			Record:     rec,
			Resolution: res,
		})
	}
}

// Len returns the number of rows added so far
func (b *AggregateBuilder) Len() int {
	return len(b.rows)
}

// Build returns the result; err is the error that ended pagination, if any
func (b *AggregateBuilder) Build(pages int, reason types.StopReason, err error) *types.AggregateResult {
	result := &types.AggregateResult{
		Rows:       b.rows,
		Pages:      pages,
		StopReason: reason,
	}
	if err != nil {
		result.LastError = err.Error()
	}
	return result
}
