package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/donation-relay/app/donation"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "donations.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestStore(t *testing.T) *DonationStore {
	t.Helper()

	store := NewDonationStore(openTestDB(t))
	store.now = func() time.Time { return time.Date(2020, 5, 2, 12, 0, 0, 0, time.UTC) }
	return store
}

func mustRecord(t *testing.T, row ...string) donation.Record {
	t.Helper()

	record, err := donation.Normalize(row)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return record
}

func TestDonationStore_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := mustRecord(t, "2020-05-01", "10 000", "Housing", "Example Org", "http://x", "reason")
	if err := store.Upsert(ctx, &record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, record.Fingerprint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected stored donation, got nil")
	}
	if got.Amount != "10000" || got.Grantee != "Example Org" || got.Why != "reason" {
		t.Errorf("Unexpected stored donation: %#v", got)
	}
	if got.DateSeen != "2020-05-02" {
		t.Errorf("Expected date seen '2020-05-02', got '%s'", got.DateSeen)
	}
	if got.IsDelivered(donation.ChannelTwitter) {
		t.Error("New donation should not be delivered")
	}
}

func TestDonationStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing donation, got %#v", got)
	}
}

func TestDonationStore_UpsertRequiresFingerprint(t *testing.T) {
	store := newTestStore(t)

	if err := store.Upsert(context.Background(), &donation.Record{Amount: "1"}); err == nil {
		t.Error("Expected error for record without fingerprint")
	}
	if err := store.Upsert(context.Background(), nil); err == nil {
		t.Error("Expected error for nil record")
	}
}

func TestDonationStore_UpsertKeepsDateSeenAndDeliveries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "http://x", "reason")
	record.DateSeen = "2020-05-01"
	record.MarkDelivered(donation.ChannelTwitter)
	if err := store.Upsert(ctx, &record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	again := mustRecord(t, "2020-05-01", "100", "Food", "Example Org", "http://y", "other")
	again.DateSeen = "2021-01-01"
	again.MarkDelivered(donation.ChannelMastodon)
	if err := store.Upsert(ctx, &again); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := store.Get(ctx, record.Fingerprint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.DateSeen != "2020-05-01" {
		t.Errorf("Expected date seen to stay '2020-05-01', got '%s'", got.DateSeen)
	}
	if !got.IsDelivered(donation.ChannelTwitter) {
		t.Error("Expected twitter delivery to survive upsert without the flag")
	}
	if !got.IsDelivered(donation.ChannelMastodon) {
		t.Error("Expected mastodon delivery to be recorded")
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 donation, got %d", count)
	}
}

func TestDonationStore_FindUndelivered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := mustRecord(t, "2020-05-01", "100", "Housing", "Org A", "", "")
	second := mustRecord(t, "2020-05-02", "200", "Food", "Org B", "", "")
	third := mustRecord(t, "2020-05-03", "300", "Health", "Org C", "", "")
	second.MarkDelivered(donation.ChannelTwitter)

	for _, record := range []*donation.Record{&first, &second, &third} {
		if err := store.Upsert(ctx, record); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	undelivered, err := store.FindUndelivered(ctx, donation.ChannelTwitter)
	if err != nil {
		t.Fatalf("FindUndelivered failed: %v", err)
	}
	if len(undelivered) != 2 {
		t.Fatalf("Expected 2 undelivered donations, got %d", len(undelivered))
	}
	if undelivered[0].Grantee != "Org A" || undelivered[1].Grantee != "Org C" {
		t.Errorf("Expected insertion order [Org A, Org C], got [%s, %s]", undelivered[0].Grantee, undelivered[1].Grantee)
	}

	mastodon, err := store.FindUndelivered(ctx, donation.ChannelMastodon)
	if err != nil {
		t.Fatalf("FindUndelivered failed: %v", err)
	}
	if len(mastodon) != 3 {
		t.Errorf("Expected 3 donations undelivered on mastodon, got %d", len(mastodon))
	}
	if !mastodon[1].IsDelivered(donation.ChannelTwitter) {
		t.Error("Expected delivery state of other channels to be attached")
	}

	pending, err := store.CountUndelivered(ctx, donation.ChannelTwitter)
	if err != nil {
		t.Fatalf("CountUndelivered failed: %v", err)
	}
	if pending != 2 {
		t.Errorf("Expected 2 pending twitter donations, got %d", pending)
	}
}

func TestDonationStore_ListIsStable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	grantees := []string{"Org C", "Org A", "Org B"}
	for _, grantee := range grantees {
		record := mustRecord(t, "2020-05-01", "100", "", grantee, "", "")
		if err := store.Upsert(ctx, &record); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		records, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(records) != len(grantees) {
			t.Fatalf("Expected %d donations, got %d", len(grantees), len(records))
		}
		for i, grantee := range grantees {
			if records[i].Grantee != grantee {
				t.Errorf("Attempt %d: expected %s at position %d, got %s", attempt, grantee, i, records[i].Grantee)
			}
		}
	}
}

func TestDonationStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "", "")
	record.MarkDelivered(donation.ChannelTwitter)
	if err := store.Upsert(ctx, &record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	deleted, err := store.Delete(ctx, record.Fingerprint)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Expected Delete to report an existing donation")
	}

	deleted, err = store.Delete(ctx, record.Fingerprint)
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if deleted {
		t.Error("Expected second Delete to report not found")
	}

	var deliveries int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM deliveries`).Scan(&deliveries); err != nil {
		t.Fatalf("Count deliveries failed: %v", err)
	}
	if deliveries != 0 {
		t.Errorf("Expected deliveries to cascade on delete, %d remain", deliveries)
	}

	// Re-ingesting after delete starts with a clean delivery state
	fresh := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "", "")
	if err := store.Upsert(ctx, &fresh); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	got, _ := store.Get(ctx, fresh.Fingerprint)
	if got == nil || got.IsDelivered(donation.ChannelTwitter) {
		t.Errorf("Expected re-inserted donation to be undelivered, got %#v", got)
	}
}

func TestDonationStore_MarkDelivered(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "", "")
	if err := store.Upsert(ctx, &record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		exists, err := store.MarkDelivered(ctx, record.Fingerprint, donation.ChannelMastodon)
		if err != nil {
			t.Fatalf("MarkDelivered failed: %v", err)
		}
		if !exists {
			t.Errorf("Attempt %d: expected MarkDelivered to report an existing donation", attempt)
		}
	}

	got, _ := store.Get(ctx, record.Fingerprint)
	if got == nil || !got.IsDelivered(donation.ChannelMastodon) {
		t.Errorf("Expected donation delivered to mastodon, got %#v", got)
	}
	if got != nil && got.IsDelivered(donation.ChannelTwitter) {
		t.Error("Expected twitter to remain undelivered")
	}
}

func TestDonationStore_MarkDeliveredMissingDonation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "", "")
	if err := store.Upsert(ctx, &record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := store.Delete(ctx, record.Fingerprint); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := store.MarkDelivered(ctx, record.Fingerprint, donation.ChannelTwitter)
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	if exists {
		t.Error("Expected MarkDelivered to report a deleted donation as missing")
	}

	got, _ := store.Get(ctx, record.Fingerprint)
	if got != nil {
		t.Errorf("Expected MarkDelivered not to recreate the donation, got %#v", got)
	}

	var deliveries int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM deliveries`).Scan(&deliveries); err != nil {
		t.Fatalf("Count deliveries failed: %v", err)
	}
	if deliveries != 0 {
		t.Errorf("Expected no orphan deliveries, got %d", deliveries)
	}
}

func TestDonationStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "donations.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	record := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "", "")
	record.MarkDelivered(donation.ChannelTelegram)
	if err := NewDonationStore(db).Upsert(ctx, &record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	got, err := NewDonationStore(db).Get(ctx, record.Fingerprint)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || !got.IsDelivered(donation.ChannelTelegram) {
		t.Errorf("Expected persisted donation with telegram delivery, got %#v", got)
	}
}

func TestOpen_SecondWriterIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "donations.db")

	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	_, err = Open(context.Background(), path)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked for second writer, got %v", err)
	}
}

func TestOpen_DirtySchemaIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "donations.db")

	db, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.Exec(`UPDATE schema_migrations SET dirty = 1`); err != nil {
		t.Fatalf("Failed to mark schema dirty: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err = Open(context.Background(), path)
	if !errors.Is(err, ErrStoreIO) {
		t.Errorf("Expected ErrStoreIO for dirty schema, got %v", err)
	}
}

func TestDonationStore_ClosedDatabaseReportsStoreIO(t *testing.T) {
	db := openTestDB(t)
	store := NewDonationStore(db)
	_ = db.DB.Close()

	record := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "", "")
	err := store.Upsert(context.Background(), &record)
	if !errors.Is(err, ErrStoreIO) {
		t.Errorf("Expected ErrStoreIO, got %v", err)
	}
}

func TestDB_Snapshot(t *testing.T) {
	db := openTestDB(t)
	store := NewDonationStore(db)
	ctx := context.Background()

	record := mustRecord(t, "2020-05-01", "100", "Housing", "Example Org", "", "")
	if err := store.Upsert(ctx, &record); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := db.Snapshot(ctx, dest); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if err := db.Snapshot(ctx, dest); err == nil {
		t.Error("Expected error when snapshot destination exists")
	}

	snapshot, err := Open(ctx, dest)
	if err != nil {
		t.Fatalf("Open snapshot failed: %v", err)
	}
	defer snapshot.Close()

	count, err := NewDonationStore(snapshot).Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 donation in snapshot, got %d", count)
	}
}
