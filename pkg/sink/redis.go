package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/redis/go-redis/v9"
)

// RunKey is the hash holding the latest summary of a run
func RunKey(runID string) string {
	return "trials:run:" + runID
}

// LatestRunKey holds the id of the most recent run
const LatestRunKey = "trials:run:latest"

// RedisStreamSink publishes every row to a capped Redis stream and keeps a
// summary hash per run
type RedisStreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
	ttl    time.Duration
}

// NewRedisStreamSink creates a sink. maxLen <= 0 leaves the stream uncapped.
func NewRedisStreamSink(client *redis.Client, stream string, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		ttl:    7 * 24 * time.Hour,
	}
}

func (s *RedisStreamSink) Name() string { return "redis" }

func (s *RedisStreamSink) Write(ctx context.Context, run *types.RunReport, rows []types.Row) error {
	pipe := s.client.Pipeline()

	for _, row := range rows {
		resolution, err := json.Marshal(row.Resolution)
		if err != nil {
			return fmt.Errorf("failed to encode resolution %d: %w", row.Index, err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: s.maxLen > 0,
			Values: map[string]interface{}{
				"run_id":          run.ID,
				"index":           row.Index,
				"nct_id":          row.Record.NCTID,
				"sponsor":         row.Record.Sponsor,
				"ticker":          row.Resolution.TickerOrEmpty(),
				"publicly_traded": strconv.FormatBool(row.PubliclyTraded()),
				"resolution":      string(resolution),
			},
		})
	}

	key := RunKey(run.ID)
	pipe.HSet(ctx, key, map[string]interface{}{
		"started_at":  run.StartedAt.Format(time.RFC3339),
		"finished_at": run.FinishedAt.Format(time.RFC3339),
		"pages":       run.Pages,
		"rows":        run.Rows,
		"public_rows": run.PublicRows,
		"stop_reason": string(run.StopReason),
	})
	pipe.Expire(ctx, key, s.ttl)
	pipe.Set(ctx, LatestRunKey, run.ID, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish run %s: %w", run.ID, err)
	}
	return nil
}
