package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/donation-relay/app/ingest"
	"github.com/lysyi3m/donation-relay/app/metrics"
	"github.com/lysyi3m/donation-relay/app/source"
)

type IngestTask struct {
	Task
	Result   ingest.Result
	fetcher  Fetcher
	pipeline *ingest.Pipeline
	metrics  *metrics.Metrics
}

func NewIngestTask(target string, fetcher Fetcher, pipeline *ingest.Pipeline, m *metrics.Metrics) *IngestTask {
	return &IngestTask{
		Task:     NewTask(TaskTypeIngest, target),
		fetcher:  fetcher,
		pipeline: pipeline,
		metrics:  m,
	}
}

func (t *IngestTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rows, err := t.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch donations: %w", err)
	}

	// Zero rows counts as a failed fetch
	if len(rows) == 0 {
		return fmt.Errorf("failed to fetch donations: %w: no rows after the donation header", source.ErrFetch)
	}

	result, err := t.pipeline.Run(ctx, rows)
	t.Result = result
	if t.metrics != nil {
		t.metrics.RecordIngest(result.Created, result.Existing, result.Malformed)
	}
	if err != nil {
		return fmt.Errorf("failed to ingest donations: %w", err)
	}

	slog.Info("Task completed",
		"type", "Ingest",
		"duration", t.GetDuration(),
		"total", result.Total,
		"existing", result.Existing,
		"malformed", result.Malformed,
		"new", result.Created)

	return nil
}
