package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
)

// StdoutPoster writes each message to a writer instead of a remote service.
type StdoutPoster struct {
	mu  sync.Mutex
	out io.Writer
}

func NewStdoutPoster(out io.Writer) *StdoutPoster {
	return &StdoutPoster{out: out}
}

func (p *StdoutPoster) Post(ctx context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.out, "%s\n\n", text); err != nil {
		return &PostError{Channel: KindStdout, Detail: err.Error(), Err: err}
	}
	return nil
}

// Factory builds posters from channel configuration, resolving tokens from the environment.
type Factory struct {
	HTTPClient *http.Client
	UserAgent  string
	Stdout     io.Writer
	Getenv     func(string) string
}

func NewFactory(httpClient *http.Client, userAgent string) *Factory {
	return &Factory{
		HTTPClient: httpClient,
		UserAgent:  userAgent,
		Stdout:     os.Stdout,
		Getenv:     os.Getenv,
	}
}

func (f *Factory) NewPoster(config *Config) (Poster, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	if config.Kind == KindStdout {
		return NewStdoutPoster(f.Stdout), nil
	}

	token := f.Getenv(config.Credentials.TokenEnv)
	if token == "" {
		return nil, fmt.Errorf("channel %s: environment variable %s is not set", config.Name, config.Credentials.TokenEnv)
	}

	timeout := config.RequestTimeout()

	switch config.Kind {
	case KindTwitter:
		return NewTwitterPoster(config.Name, config.Credentials.BaseURL, token, f.UserAgent, f.HTTPClient, timeout), nil
	case KindMastodon:
		return NewMastodonPoster(config.Name, config.Credentials.BaseURL, token, f.UserAgent, f.HTTPClient, timeout), nil
	case KindTelegram:
		return NewTelegramPoster(config.Name, token, config.Credentials.ChatID, config.Credentials.BaseURL, f.HTTPClient, timeout), nil
	default:
		return nil, fmt.Errorf("unknown channel kind: %s", config.Kind)
	}
}
