package database

import (
	"context"

	"github.com/lysyi3m/donation-relay/app/donation"
)

// DonationRepository is the durable collection of donations keyed by fingerprint.
// Every mutating call is committed before it returns.
type DonationRepository interface {
	Get(ctx context.Context, fingerprint string) (*donation.Record, error)
	List(ctx context.Context) ([]donation.Record, error)
	FindUndelivered(ctx context.Context, channel donation.Channel) ([]donation.Record, error)

	Upsert(ctx context.Context, record *donation.Record) error
	MarkDelivered(ctx context.Context, fingerprint string, channel donation.Channel) (bool, error)
	Delete(ctx context.Context, fingerprint string) (bool, error)
}

type StatsRepository interface {
	Count(ctx context.Context) (int, error)
	CountUndelivered(ctx context.Context, channel donation.Channel) (int, error)
}

var (
	_ DonationRepository = (*DonationStore)(nil)
	_ StatsRepository    = (*DonationStore)(nil)
)
