package tasks

import (
	"fmt"

	"github.com/lysyi3m/donation-relay/app/channel"
	"github.com/lysyi3m/donation-relay/app/database"
	"github.com/lysyi3m/donation-relay/app/donation"
	"github.com/lysyi3m/donation-relay/app/ingest"
	"github.com/lysyi3m/donation-relay/app/metrics"
	"github.com/lysyi3m/donation-relay/app/publish"
)

// Factory builds tasks around the shared store and collaborators.
type Factory struct {
	sourceURL string
	fetcher   Fetcher
	pipeline  *ingest.Pipeline
	tracker   *publish.Tracker
	formatter *donation.Formatter
	posters   PosterFactory
	counts    database.StatsRepository
	metrics   *metrics.Metrics
}

func NewFactory(sourceURL string, fetcher Fetcher, pipeline *ingest.Pipeline, tracker *publish.Tracker,
	formatter *donation.Formatter, posters PosterFactory, counts database.StatsRepository, m *metrics.Metrics) *Factory {
	return &Factory{
		sourceURL: sourceURL,
		fetcher:   fetcher,
		pipeline:  pipeline,
		tracker:   tracker,
		formatter: formatter,
		posters:   posters,
		counts:    counts,
		metrics:   m,
	}
}

func (f *Factory) NewIngestTask() *IngestTask {
	return NewIngestTask(f.sourceURL, f.fetcher, f.pipeline, f.metrics)
}

// NewPublishTask fills unset options from the channel configuration. Dry runs
// never contact the channel, so they need no credentials.
func (f *Factory) NewPublishTask(channelConfig *channel.Config, opts publish.Options) (*PublishTask, error) {
	if opts.MaxLength <= 0 {
		opts.MaxLength = channelConfig.Settings.MaxLength
	}
	if opts.RateLimitDelay < 0 {
		opts.RateLimitDelay = channelConfig.RateLimitDelay()
	}

	var poster publish.Poster
	if !opts.DryRun {
		p, err := f.posters.NewPoster(channelConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create poster for %s: %w", channelConfig.Name, err)
		}
		poster = p
	}

	return NewPublishTask(channelConfig, opts, poster, f.tracker, f.formatter, f.counts, f.metrics), nil
}

// ScheduledOptions are the options for a scheduled run: everything from the channel configuration.
func ScheduledOptions() publish.Options {
	return publish.Options{RateLimitDelay: -1}
}
