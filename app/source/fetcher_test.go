package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sheetCSV = "\ufeffStart Small,,,,,\n" +
	"Total:,\"$1,000\",,,,\n" +
	"Distributed:,,,,,\n" +
	"Date,Amount,Category,Grantee,Link,Why\n" +
	"2020-05-01,10 000,Housing,Example Org,http://x,reason\n" +
	"2020-05-02,\"1,500\",Food,\"Org, Inc\",,\"quoted, why\"\n" +
	"short,row\n"

func TestFetcher_ParseSkipsPreamble(t *testing.T) {
	fetcher := NewFetcher(http.DefaultClient, Config{})

	rows, err := fetcher.Parse(strings.NewReader(sheetCSV))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows after header, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "2020-05-01" || rows[0][1] != "10 000" {
		t.Errorf("Unexpected first row: %v", rows[0])
	}
	if rows[1][3] != "Org, Inc" || rows[1][5] != "quoted, why" {
		t.Errorf("Expected quoted fields to be preserved, got %v", rows[1])
	}
	if len(rows[2]) != 2 {
		t.Errorf("Expected short row to be passed through with 2 fields, got %v", rows[2])
	}
}

func TestFetcher_ParseRequiresSectionBeforeHeader(t *testing.T) {
	fetcher := NewFetcher(http.DefaultClient, Config{})

	data := "Date,Amount,Category,Grantee,Link,Why\n2020-05-01,1,a,b,c,d\n"
	rows, err := fetcher.Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows without section marker, got %v", rows)
	}
}

func TestFetcher_ParseCustomMarkers(t *testing.T) {
	fetcher := NewFetcher(http.DefaultClient, Config{SectionMarker: "Grants", HeaderMarker: "When"})

	data := "Grants\nWhen,How much\n2020-05-01,1,a,b,c,d\n"
	rows, err := fetcher.Parse(strings.NewReader(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 row, got %v", rows)
	}
}

func TestFetcher_Fetch(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sheetCSV))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), Config{URL: server.URL, UserAgent: "Donation Relay/test"})

	rows, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("Expected 3 rows, got %d", len(rows))
	}
	if userAgent != "Donation Relay/test" {
		t.Errorf("Expected user agent to be sent, got '%s'", userAgent)
	}
}

func TestFetcher_FetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), Config{URL: server.URL})

	_, err := fetcher.Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Expected ErrFetch, got %v", err)
	}
}

func TestFetcher_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), Config{URL: server.URL, Timeout: 50 * time.Millisecond})

	_, err := fetcher.Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Expected ErrFetch on timeout, got %v", err)
	}
}

func TestFetcher_FetchWithoutURL(t *testing.T) {
	fetcher := NewFetcher(http.DefaultClient, Config{})

	_, err := fetcher.Fetch(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Expected ErrFetch without URL, got %v", err)
	}
}
