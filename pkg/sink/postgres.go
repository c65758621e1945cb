package sink

import (
	"context"

	"trial-sponsor-tracker/pkg/pipeline/types"
)

// RunStore persists run summaries and rows
type RunStore interface {
	SaveRun(ctx context.Context, run *types.RunReport) error
	SaveRows(ctx context.Context, runID string, rows []types.Row) error
}

// PostgresSink records the run history
type PostgresSink struct {
	store RunStore
}

// NewPostgresSink creates a sink over a run store
func NewPostgresSink(store RunStore) *PostgresSink {
	return &PostgresSink{store: store}
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write stores the run before its rows so that rows can reference it
func (s *PostgresSink) Write(ctx context.Context, run *types.RunReport, rows []types.Row) error {
	if err := s.store.SaveRun(ctx, run); err != nil {
		return err
	}
	return s.store.SaveRows(ctx, run.ID, rows)
}
