package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/donation-relay/app/donation"
)

const (
	KindTwitter  = "twitter"
	KindMastodon = "mastodon"
	KindTelegram = "telegram"
	KindStdout   = "stdout"
)

type Poster interface {
	Post(ctx context.Context, text string) error
}

// PostError reports a message the channel did not accept.
type PostError struct {
	Channel    string
	StatusCode int
	Detail     string
	Err        error
}

func (e *PostError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s post failed with status %d: %s", e.Channel, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s post failed: %s", e.Channel, e.Detail)
}

func (e *PostError) Unwrap() error {
	return e.Err
}

// Configuration types

type Config struct {
	Name        string            // Derived from filename (without .yml extension)
	Kind        string            `yaml:"kind"`
	Settings    ConfigSettings    `yaml:"settings"`
	Credentials ConfigCredentials `yaml:"credentials"`
}

type ConfigSettings struct {
	Enabled   bool `yaml:"enabled"`
	MaxLength int  `yaml:"max_length"`
	RateLimit int  `yaml:"rate_limit"` // seconds between posts
	Timeout   int  `yaml:"timeout"`    // seconds
}

type ConfigCredentials struct {
	BaseURL  string `yaml:"base_url"`
	TokenEnv string `yaml:"token_env"`
	ChatID   string `yaml:"chat_id"`
}

func (c *Config) Channel() donation.Channel {
	return donation.Channel(c.Name)
}

func (c *Config) RateLimitDelay() time.Duration {
	return time.Duration(c.Settings.RateLimit) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}
