package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lysyi3m/donation-relay/app/database"
	"github.com/lysyi3m/donation-relay/app/donation"
)

// Poster delivers one rendered message to a channel.
type Poster interface {
	Post(ctx context.Context, text string) error
}

type Renderer interface {
	Render(record donation.Record, maxLength int) string
}

type Options struct {
	MaxLength      int
	RateLimitDelay time.Duration
	DryRun         bool
}

type PostFailure struct {
	Channel     donation.Channel
	Fingerprint string
	Err         error
}

func (f PostFailure) Error() string {
	return fmt.Sprintf("failed to post %s to %s: %v", f.Fingerprint, f.Channel, f.Err)
}

func (f PostFailure) Unwrap() error {
	return f.Err
}

type Result struct {
	Attempted int
	Posted    int
	Failures  []PostFailure
}

func (r Result) Failed() int {
	return len(r.Failures)
}

// Tracker posts undelivered donations to a channel and records each delivery
// as soon as the channel accepts it.
type Tracker struct {
	repo  database.DonationRepository
	out   io.Writer
	sleep func(ctx context.Context, d time.Duration) error
}

func NewTracker(repo database.DonationRepository) *Tracker {
	return &Tracker{
		repo:  repo,
		out:   os.Stdout,
		sleep: sleepContext,
	}
}

// SetOutput sets where dry-run renderings are written.
func (t *Tracker) SetOutput(w io.Writer) {
	t.out = w
}

func (t *Tracker) Publish(ctx context.Context, channel donation.Channel, poster Poster, renderer Renderer, opts Options) (Result, error) {
	var result Result

	if opts.MaxLength <= 0 {
		opts.MaxLength = donation.DefaultMaxLength
	}

	pending, err := t.repo.FindUndelivered(ctx, channel)
	if err != nil {
		return result, fmt.Errorf("failed to find undelivered donations: %w", err)
	}

	slog.Debug("Publishing donations", "channel", channel, "pending", len(pending), "dry_run", opts.DryRun)

	for i := range pending {
		record := pending[i]
		text := renderer.Render(record, opts.MaxLength)

		if opts.DryRun {
			if _, err := fmt.Fprintf(t.out, "%s\n\n", text); err != nil {
				return result, fmt.Errorf("failed to write dry run output: %w", err)
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Attempted++
		if err := poster.Post(ctx, text); err != nil {
			failure := PostFailure{Channel: channel, Fingerprint: record.Fingerprint, Err: err}
			result.Failures = append(result.Failures, failure)
			slog.Warn("Failed to post donation", "channel", channel, "fingerprint", record.Fingerprint, "error", err)
			continue
		}

		exists, err := t.repo.MarkDelivered(ctx, record.Fingerprint, channel)
		if err != nil {
			return result, fmt.Errorf("failed to record delivery of %s: %w", record.Fingerprint, err)
		}
		result.Posted++

		if !exists {
			slog.Warn("Donation deleted while posting", "channel", channel, "fingerprint", record.Fingerprint)
		}

		slog.Info("Donation posted", "channel", channel, "fingerprint", record.Fingerprint, "grantee", record.Grantee)

		if i < len(pending)-1 && opts.RateLimitDelay > 0 {
			if err := t.sleep(ctx, opts.RateLimitDelay); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
