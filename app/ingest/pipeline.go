package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/donation-relay/app/database"
	"github.com/lysyi3m/donation-relay/app/donation"
)

type Result struct {
	Total     int
	Created   int
	Existing  int
	Malformed int
}

// Pipeline records each distinct donation from a batch of raw rows exactly once.
type Pipeline struct {
	repo database.DonationRepository
	now  func() time.Time
}

func NewPipeline(repo database.DonationRepository) *Pipeline {
	return &Pipeline{repo: repo, now: time.Now}
}

// SetLocation records first-seen dates in loc instead of the local timezone.
func (p *Pipeline) SetLocation(loc *time.Location) {
	p.now = func() time.Time { return time.Now().In(loc) }
}

// Run ingests rows in order and reports how many new donations were created.
// Malformed rows are skipped; a store failure aborts the batch.
func (p *Pipeline) Run(ctx context.Context, rows [][]string) (Result, error) {
	result := Result{Total: len(rows)}

	for i, row := range rows {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		record, err := donation.Normalize(row)
		if errors.Is(err, donation.ErrMalformedRow) {
			slog.Warn("Skipping malformed row", "row", i+1, "fields", len(row), "error", err)
			result.Malformed++
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to normalize row %d: %w", i+1, err)
		}

		existing, err := p.repo.Get(ctx, record.Fingerprint)
		if err != nil {
			return result, fmt.Errorf("failed to check existing donation: %w", err)
		}
		if existing != nil {
			result.Existing++
			continue
		}

		record.DateSeen = p.now().Format("2006-01-02")
		record.Delivered = donation.DeliveryState{}

		if err := p.repo.Upsert(ctx, &record); err != nil {
			return result, fmt.Errorf("failed to store donation: %w", err)
		}

		slog.Debug("Donation recorded", "fingerprint", record.Fingerprint, "date", record.Date, "amount", record.Amount, "grantee", record.Grantee)
		result.Created++
	}

	return result, nil
}
