package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/donation-relay/app/channel"
	"github.com/lysyi3m/donation-relay/app/database"
	"github.com/lysyi3m/donation-relay/app/donation"
	"github.com/lysyi3m/donation-relay/app/metrics"
	"github.com/lysyi3m/donation-relay/app/publish"
)

type PublishTask struct {
	Task
	ChannelConfig *channel.Config
	Options       publish.Options
	Result        publish.Result
	poster        publish.Poster
	tracker       *publish.Tracker
	formatter     *donation.Formatter
	counts        database.StatsRepository
	metrics       *metrics.Metrics
}

func NewPublishTask(channelConfig *channel.Config, opts publish.Options, poster publish.Poster, tracker *publish.Tracker,
	formatter *donation.Formatter, counts database.StatsRepository, m *metrics.Metrics) *PublishTask {
	return &PublishTask{
		Task:          NewTask(TaskTypePublish, channelConfig.Name),
		ChannelConfig: channelConfig,
		Options:       opts,
		poster:        poster,
		tracker:       tracker,
		formatter:     formatter,
		counts:        counts,
		metrics:       m,
	}
}

func (t *PublishTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ch := t.ChannelConfig.Channel()

	result, err := t.tracker.Publish(ctx, ch, t.poster, t.formatter, t.Options)
	t.Result = result
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", ch, err)
	}

	pending, err := t.counts.CountUndelivered(ctx, ch)
	if err != nil {
		return fmt.Errorf("failed to count pending donations: %w", err)
	}

	if t.metrics != nil && !t.Options.DryRun {
		t.metrics.RecordPublish(string(ch), result.Posted, result.Failed(), pending)
	}

	slog.Info("Task completed",
		"type", "Publish",
		"channel", ch,
		"duration", t.GetDuration(),
		"dry_run", t.Options.DryRun,
		"attempted", result.Attempted,
		"posted", result.Posted,
		"failed", result.Failed(),
		"pending", pending)

	return nil
}
