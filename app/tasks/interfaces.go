package tasks

import (
	"context"

	"github.com/lysyi3m/donation-relay/app/channel"
	"github.com/lysyi3m/donation-relay/app/source"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the serve command and the API to queue background work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type Fetcher interface {
	Fetch(ctx context.Context) ([][]string, error)
}

type PosterFactory interface {
	NewPoster(config *channel.Config) (channel.Poster, error)
}

var (
	_ TaskSchedulerInterface = (*Scheduler)(nil)
	_ Fetcher                = (*source.Fetcher)(nil)
	_ PosterFactory          = (*channel.Factory)(nil)
)
