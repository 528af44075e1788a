package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	DefaultSectionMarker = "Distributed:"
	DefaultHeaderMarker  = "Date"
)

var ErrFetch = errors.New("donation source fetch failed")

type Config struct {
	URL           string
	UserAgent     string
	Timeout       time.Duration
	SectionMarker string
	HeaderMarker  string
}

// Fetcher downloads the published donation spreadsheet as CSV and returns the
// rows that follow the distributed-donations header.
type Fetcher struct {
	httpClient *http.Client
	config     Config
}

func NewFetcher(httpClient *http.Client, config Config) *Fetcher {
	if config.SectionMarker == "" {
		config.SectionMarker = DefaultSectionMarker
	}
	if config.HeaderMarker == "" {
		config.HeaderMarker = DefaultHeaderMarker
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Fetcher{httpClient: httpClient, config: config}
}

func (f *Fetcher) Fetch(ctx context.Context) ([][]string, error) {
	if f.config.URL == "" {
		return nil, fmt.Errorf("%w: source URL is not configured", ErrFetch)
	}

	data, err := f.download(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer data.Close()

	rows, err := f.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	return rows, nil
}

func (f *Fetcher) download(ctx context.Context) (io.ReadCloser, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", f.config.URL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch %s: %w", f.config.URL, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// Parse decodes CSV data and drops every row up to and including the header row
// that follows the section marker.
func (f *Fetcher) Parse(r io.Reader) ([][]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		rows          [][]string
		inSection     bool
		pastHeaderRow bool
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}

		first := ""
		if len(record) > 0 {
			first = strings.TrimSpace(record[0])
		}

		switch {
		case pastHeaderRow:
			rows = append(rows, record)
		case first == f.config.SectionMarker:
			inSection = true
		case inSection && first == f.config.HeaderMarker:
			pastHeaderRow = true
		}
	}

	return rows, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
