package sink

import (
	"context"
	"fmt"

	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const mergeTrialsCypher = `
UNWIND $rows AS row
MERGE (s:Sponsor {name: row.sponsor})
  SET s.publicly_traded = row.publicly_traded,
      s.state = row.state
MERGE (t:Trial {nct_id: row.nct_id})
  SET t.acronym = row.acronym,
      t.overall_status = row.overall_status,
      t.study_type = row.study_type,
      t.phases = row.phases,
      t.last_run = $run_id
MERGE (s)-[:SPONSORS]->(t)
FOREACH (ticker IN CASE WHEN row.ticker IS NULL THEN [] ELSE [row.ticker] END |
  MERGE (k:Ticker {symbol: ticker})
  MERGE (s)-[:LISTED_AS]->(k)
)
`

// GraphSink maintains a sponsor -> trial -> ticker graph
type GraphSink struct {
	driver    neo4j.DriverWithContext
	batchSize int
}

// NewGraphSink creates a sink writing through driver
func NewGraphSink(driver neo4j.DriverWithContext) *GraphSink {
	return &GraphSink{driver: driver, batchSize: 500}
}

func (s *GraphSink) Name() string { return "neo4j" }

func (s *GraphSink) Write(ctx context.Context, run *types.RunReport, rows []types.Row) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	for _, batch := range graphBatches(rows, s.batchSize) {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, mergeTrialsCypher, map[string]any{
				"run_id": run.ID,
				"rows":   batch,
			})
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("failed to write sponsor graph for run %s: %w", run.ID, err)
		}
	}
	return nil
}

// graphBatches converts rows to Cypher parameters, skipping rows without a
// listed sponsor
func graphBatches(rows []types.Row, size int) [][]map[string]any {
	var (
		batches [][]map[string]any
		current []map[string]any
	)
	for _, row := range rows {
		if !row.Record.SponsorListed {
			continue
		}
		var ticker any
		if row.Resolution.Ticker != nil {
			ticker = *row.Resolution.Ticker
		}
		current = append(current, map[string]any{
			"sponsor":         row.Record.Sponsor,
			"publicly_traded": row.PubliclyTraded(),
			"state":           string(row.Resolution.State),
			"nct_id":          row.Record.NCTID,
			"acronym":         row.Record.Acronym,
			"overall_status":  row.Record.OverallStatus,
			"study_type":      row.Record.StudyType,
			"phases":          row.Record.Phases.Values,
			"ticker":          ticker,
		})
		if len(current) == size {
			batches = append(batches, current)
			current = nil
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
