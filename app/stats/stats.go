package stats

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lysyi3m/donation-relay/app/database"
	"github.com/lysyi3m/donation-relay/app/donation"
)

type ChannelStats struct {
	Channel   donation.Channel `json:"channel"`
	Delivered int              `json:"delivered"`
	Pending   int              `json:"pending"`
}

type Summary struct {
	Donations      int             `json:"donations"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	UnparsedAmount int             `json:"unparsed_amounts"`
	Channels       []ChannelStats  `json:"channels"`
}

// Collect summarizes the store for the given channels, in the order given.
func Collect(ctx context.Context, repo database.DonationRepository, counts database.StatsRepository, channels []donation.Channel) (*Summary, error) {
	records, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}

	total, unparsed := donation.TotalAmount(records)
	summary := &Summary{
		Donations:      len(records),
		TotalAmount:    total,
		UnparsedAmount: unparsed,
		Channels:       make([]ChannelStats, 0, len(channels)),
	}

	for _, channel := range channels {
		pending, err := counts.CountUndelivered(ctx, channel)
		if err != nil {
			return nil, fmt.Errorf("failed to count undelivered donations for %s: %w", channel, err)
		}
		summary.Channels = append(summary.Channels, ChannelStats{
			Channel:   channel,
			Delivered: len(records) - pending,
			Pending:   pending,
		})
	}

	return summary, nil
}

// Channels returns the configured channel names, or the built-in channels when none are configured.
func Channels(names []string) []donation.Channel {
	if len(names) == 0 {
		return []donation.Channel{donation.ChannelMastodon, donation.ChannelTelegram, donation.ChannelTwitter}
	}

	channels := make([]donation.Channel, 0, len(names))
	for _, name := range names {
		channels = append(channels, donation.Channel(name))
	}
	return channels
}
