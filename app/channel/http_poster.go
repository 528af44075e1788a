package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultTwitterURL = "https://api.twitter.com"
	maxErrorDetail    = 512
)

// newBearerClient wraps base so every request carries the static access token.
func newBearerClient(base *http.Client, token string, timeout time.Duration) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = timeout
	return client
}

// TwitterPoster publishes through the v2 create-tweet endpoint.
type TwitterPoster struct {
	name       string
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

func NewTwitterPoster(name, baseURL, token, userAgent string, base *http.Client, timeout time.Duration) *TwitterPoster {
	if baseURL == "" {
		baseURL = DefaultTwitterURL
	}
	return &TwitterPoster{
		name:       name,
		endpoint:   strings.TrimRight(baseURL, "/") + "/2/tweets",
		userAgent:  userAgent,
		httpClient: newBearerClient(base, token, timeout),
	}
}

func (p *TwitterPoster) Post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return send(p.httpClient, req, p.name, p.userAgent)
}

// MastodonPoster publishes a public status on a Mastodon instance.
type MastodonPoster struct {
	name       string
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

func NewMastodonPoster(name, baseURL, token, userAgent string, base *http.Client, timeout time.Duration) *MastodonPoster {
	return &MastodonPoster{
		name:       name,
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/v1/statuses",
		userAgent:  userAgent,
		httpClient: newBearerClient(base, token, timeout),
	}
}

func (p *MastodonPoster) Post(ctx context.Context, text string) error {
	form := url.Values{"status": {text}}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return send(p.httpClient, req, p.name, p.userAgent)
}

func send(client *http.Client, req *http.Request, channelName, userAgent string) error {
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &PostError{Channel: channelName, Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		return &PostError{
			Channel:    channelName,
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
