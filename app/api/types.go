package api

import (
	"github.com/lysyi3m/donation-relay/app/channel"
	"github.com/lysyi3m/donation-relay/app/database"
	"github.com/lysyi3m/donation-relay/app/donation"
	"github.com/lysyi3m/donation-relay/app/feed"
	"github.com/lysyi3m/donation-relay/app/metrics"
	"github.com/lysyi3m/donation-relay/app/publish"
	"github.com/lysyi3m/donation-relay/app/tasks"
)

type GeneratorInterface interface {
	Run(records []donation.Record) (string, error)
}

// TaskFactory builds the tasks the API can enqueue.
type TaskFactory interface {
	NewIngestTask() *tasks.IngestTask
	NewPublishTask(channelConfig *channel.Config, opts publish.Options) (*tasks.PublishTask, error)
}

type Store interface {
	database.DonationRepository
	database.StatsRepository
}

var (
	_ GeneratorInterface = (*feed.Generator)(nil)
	_ TaskFactory        = (*tasks.Factory)(nil)
	_ Store              = (*database.DonationStore)(nil)
)

type Handler struct {
	store       Store
	generator   GeneratorInterface
	configCache *channel.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
	taskFactory TaskFactory
	metrics     *metrics.Metrics
	version     string
}

type donationResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Date        string          `json:"date"`
	Amount      string          `json:"amount"`
	Category    string          `json:"category"`
	Grantee     string          `json:"grantee"`
	Link        string          `json:"link"`
	Why         string          `json:"why"`
	DateSeen    string          `json:"date_seen"`
	Delivered   map[string]bool `json:"delivered"`
}

func newDonationResponse(record donation.Record) donationResponse {
	delivered := make(map[string]bool, len(record.Delivered))
	for _, ch := range record.Delivered.Channels() {
		delivered[string(ch)] = record.Delivered[ch]
	}

	return donationResponse{
		Fingerprint: record.Fingerprint,
		Date:        record.Date,
		Amount:      record.Amount,
		Category:    record.Category,
		Grantee:     record.Grantee,
		Link:        record.Link,
		Why:         record.Why,
		DateSeen:    record.DateSeen,
		Delivered:   delivered,
	}
}
