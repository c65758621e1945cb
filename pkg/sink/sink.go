// Package sink writes the rows of a finished run to their destinations.
package sink

import (
	"context"

	"trial-sponsor-tracker/pkg/pipeline/types"
)

// Sink receives the ordered rows of one run
type Sink interface {
	Name() string
	Write(ctx context.Context, run *types.RunReport, rows []types.Row) error
}
