package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/donation-relay/app/donation"
)

func testRecords() []donation.Record {
	return []donation.Record{
		{
			Date: "2020-05-01", Amount: "10000", Category: "Housing", Grantee: "Example Org",
			Link: "https://example.org/grant", Why: "Rent relief", Fingerprint: "fp-1", DateSeen: "2020-05-02",
		},
		{
			Date: "", Amount: "500", Category: "", Grantee: "Food & Co", Link: "not a link",
			Why: "", Fingerprint: "fp-2", DateSeen: "2020-05-03",
		},
	}
}

func TestGenerateRSS(t *testing.T) {
	generator := NewGenerator(Options{
		Title:    "Start Small",
		Link:     "https://example.com",
		SelfLink: "https://relay.example.com/feed.xml",
		Version:  "1.2.3",
	}, time.UTC)

	rss, err := generator.Run(testRecords())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(rss, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("RSS should contain XML declaration")
	}
	if !strings.Contains(rss, `<atom:link href="https://relay.example.com/feed.xml" rel="self" type="application/rss+xml" />`) {
		t.Error("RSS should contain self link")
	}
	if !strings.Contains(rss, "<generator>Donation-Relay/1.2.3</generator>") {
		t.Error("RSS should contain generator with version")
	}
	if !strings.Contains(rss, "Food &amp; Co") {
		t.Error("RSS should escape grantee names")
	}

	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("Generated RSS failed to parse: %v", err)
	}

	if parsed.Title != "Start Small" {
		t.Errorf("Expected title 'Start Small', got '%s'", parsed.Title)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(parsed.Items))
	}

	newest := parsed.Items[0]
	if newest.GUID != "fp-2" {
		t.Errorf("Expected newest donation first, got '%s'", newest.GUID)
	}
	if newest.Link != "" {
		t.Errorf("Expected non-URL link to be omitted, got '%s'", newest.Link)
	}
	if newest.Description != "No description available" {
		t.Errorf("Expected fallback description, got '%s'", newest.Description)
	}
	if newest.PublishedParsed == nil || !newest.PublishedParsed.Equal(time.Date(2020, 5, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected undated donation to use date seen, got %v", newest.PublishedParsed)
	}

	oldest := parsed.Items[1]
	if oldest.Title != "10000 to Example Org" {
		t.Errorf("Expected title '10000 to Example Org', got '%s'", oldest.Title)
	}
	if oldest.Link != "https://example.org/grant" {
		t.Errorf("Expected link, got '%s'", oldest.Link)
	}
	if len(oldest.Categories) != 1 || oldest.Categories[0] != "Housing" {
		t.Errorf("Expected category 'Housing', got %v", oldest.Categories)
	}
	if oldest.PublishedParsed == nil || !oldest.PublishedParsed.Equal(time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected donation date as pubDate, got %v", oldest.PublishedParsed)
	}
}

func TestGenerateRSSEmpty(t *testing.T) {
	rss, err := NewGenerator(Options{}, nil).Run(nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("Generated RSS failed to parse: %v", err)
	}
	if parsed.Title != "Donations" {
		t.Errorf("Expected default title 'Donations', got '%s'", parsed.Title)
	}
	if len(parsed.Items) != 0 {
		t.Errorf("Expected no items, got %d", len(parsed.Items))
	}
	if !strings.Contains(rss, "<generator>Donation-Relay/dev</generator>") {
		t.Error("Expected dev generator version")
	}
}
