package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lysyi3m/donation-relay/app/donation"
)

// DonationStore handles database operations for donations and their deliveries
type DonationStore struct {
	db  *DB
	now func() time.Time
}

// NewDonationStore creates a new donation store
func NewDonationStore(db *DB) *DonationStore {
	return &DonationStore{db: db, now: time.Now}
}

// Upsert inserts a donation or merges it into the stored one. The stored date_seen
// is never overwritten and delivery flags are only ever added.
func (s *DonationStore) Upsert(ctx context.Context, record *donation.Record) (retErr error) {
	if record == nil {
		return errors.New("record is nil")
	}
	if record.Fingerprint == "" {
		return errors.New("record fingerprint is required")
	}

	now := s.now()
	if record.DateSeen == "" {
		record.DateSeen = now.Format(dateSeenLayout)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin upsert", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO donations (fingerprint, date, amount, category, grantee, link, why, date_seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			date = excluded.date,
			amount = excluded.amount,
			category = excluded.category,
			grantee = excluded.grantee,
			link = excluded.link,
			why = excluded.why
	`, record.Fingerprint, record.Date, record.Amount, record.Category, record.Grantee,
		record.Link, record.Why, record.DateSeen, now.UTC().Format(timestampLayout))
	if err != nil {
		return storeError("upsert donation", err)
	}

	for _, channel := range record.Delivered.Channels() {
		if !record.Delivered[channel] {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO deliveries (fingerprint, channel, delivered_at)
			VALUES (?, ?, ?)
			ON CONFLICT (fingerprint, channel) DO NOTHING
		`, record.Fingerprint, string(channel), now.UTC().Format(timestampLayout))
		if err != nil {
			return storeError("record delivery", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeError("commit upsert", err)
	}

	return nil
}

// Get returns the donation with the given fingerprint, or nil when absent
func (s *DonationStore) Get(ctx context.Context, fingerprint string) (*donation.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donationColumns+` FROM donations WHERE fingerprint = ?`, fingerprint)

	record, err := scanDonation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get donation", err)
	}

	records := []donation.Record{record}
	if err := s.attachDeliveries(ctx, records, `WHERE fingerprint = ?`, fingerprint); err != nil {
		return nil, err
	}

	return &records[0], nil
}

// List returns every donation ordered by first sighting
func (s *DonationStore) List(ctx context.Context) ([]donation.Record, error) {
	records, err := s.queryDonations(ctx, `
		SELECT `+donationColumns+` FROM donations
		ORDER BY date_seen, rowid
	`)
	if err != nil {
		return nil, err
	}

	if err := s.attachDeliveries(ctx, records, ""); err != nil {
		return nil, err
	}

	return records, nil
}

// FindUndelivered returns donations not yet delivered on channel, in List order
func (s *DonationStore) FindUndelivered(ctx context.Context, channel donation.Channel) ([]donation.Record, error) {
	records, err := s.queryDonations(ctx, `
		SELECT `+donationColumns+` FROM donations d
		WHERE NOT EXISTS (
			SELECT 1 FROM deliveries v
			WHERE v.fingerprint = d.fingerprint AND v.channel = ?
		)
		ORDER BY d.date_seen, d.rowid
	`, string(channel))
	if err != nil {
		return nil, err
	}

	if err := s.attachDeliveries(ctx, records, ""); err != nil {
		return nil, err
	}

	return records, nil
}

// MarkDelivered records delivery of an existing donation to channel. It never
// creates the donation row and reports whether the donation still exists.
func (s *DonationStore) MarkDelivered(ctx context.Context, fingerprint string, channel donation.Channel) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (fingerprint, channel, delivered_at)
		SELECT fingerprint, ?, ? FROM donations WHERE fingerprint = ?
		ON CONFLICT (fingerprint, channel) DO NOTHING
	`, string(channel), s.now().UTC().Format(timestampLayout), fingerprint)
	if err != nil {
		return false, storeError("mark delivered", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeError("mark delivered", err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM donations WHERE fingerprint = ?)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, storeError("mark delivered", err)
	}
	return exists, nil
}

// Delete removes a donation and its delivery state. It reports whether a donation existed.
func (s *DonationStore) Delete(ctx context.Context, fingerprint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM donations WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return false, storeError("delete donation", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeError("delete donation", err)
	}

	return affected > 0, nil
}

// Count returns the total number of donations
func (s *DonationStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM donations`).Scan(&count)
	if err != nil {
		return 0, storeError("count donations", err)
	}
	return count, nil
}

// CountUndelivered returns the number of donations not yet delivered on channel
func (s *DonationStore) CountUndelivered(ctx context.Context, channel donation.Channel) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM donations d
		WHERE NOT EXISTS (
			SELECT 1 FROM deliveries v
			WHERE v.fingerprint = d.fingerprint AND v.channel = ?
		)
	`, string(channel)).Scan(&count)
	if err != nil {
		return 0, storeError("count undelivered donations", err)
	}
	return count, nil
}

func (s *DonationStore) queryDonations(ctx context.Context, query string, args ...any) ([]donation.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("query donations", err)
	}
	defer rows.Close()

	var records []donation.Record
	for rows.Next() {
		record, err := scanDonation(rows)
		if err != nil {
			return nil, storeError("scan donation row", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterate donation rows", err)
	}

	return records, nil
}

// attachDeliveries loads delivery rows after the donation rows are closed; the
// pool holds a single connection.
func (s *DonationStore) attachDeliveries(ctx context.Context, records []donation.Record, where string, args ...any) error {
	if len(records) == 0 {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint, channel FROM deliveries `+where, args...)
	if err != nil {
		return storeError("query deliveries", err)
	}
	defer rows.Close()

	byFingerprint := make(map[string][]delivery)
	for rows.Next() {
		var d delivery
		if err := rows.Scan(&d.Fingerprint, &d.Channel); err != nil {
			return storeError("scan delivery row", err)
		}
		byFingerprint[d.Fingerprint] = append(byFingerprint[d.Fingerprint], d)
	}
	if err := rows.Err(); err != nil {
		return storeError("iterate delivery rows", err)
	}

	for i := range records {
		for _, d := range byFingerprint[records[i].Fingerprint] {
			records[i].MarkDelivered(donation.Channel(d.Channel))
		}
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDonation(row scanner) (donation.Record, error) {
	var record donation.Record
	err := row.Scan(
		&record.Fingerprint, &record.Date, &record.Amount, &record.Category,
		&record.Grantee, &record.Link, &record.Why, &record.DateSeen,
	)
	return record, err
}

func storeError(action string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", action, ErrStoreIO, err)
}
