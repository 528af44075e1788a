package channel

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/donation-relay/app/donation"
)

type ConfigCache struct {
	channelsDir string
	cache       map[string]*Config
	mu          sync.RWMutex
}

func NewConfigCache(channelsDir string) *ConfigCache {
	return &ConfigCache{
		channelsDir: channelsDir,
		cache:       make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.channelsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.channelsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		channelName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(channelName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Channel configuration loaded", "channel", channelName, "kind", config.Kind, "enabled", config.Settings.Enabled, "rate_limit", config.Settings.RateLimit)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(channelName string) (*Config, error) {
	configFile := cc.getConfigFilePath(channelName)
	channelConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	channelConfig.Name = channelName

	if err := validateConfig(channelConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[channelConfig.Name] = channelConfig

	return channelConfig, nil
}

func (cc *ConfigCache) GetConfig(channel donation.Channel) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	channelConfig, ok := cc.cache[string(channel)]
	if !ok {
		return nil, fmt.Errorf("channel config with name '%s' not found", channel)
	}
	return channelConfig, nil
}

// GetEnabledConfigs returns enabled channels sorted by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	var enabled []*Config
	for _, v := range cc.cache {
		if v.Settings.Enabled {
			enabled = append(enabled, v)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Name < enabled[j].Name })
	return enabled
}

// Names returns every configured channel sorted by name.
func (cc *ConfigCache) Names() []string {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	names := make([]string, 0, len(cc.cache))
	for name := range cc.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var channelConfig Config
	if err := yaml.Unmarshal(data, &channelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if channelConfig.Settings.MaxLength == 0 {
		channelConfig.Settings.MaxLength = donation.DefaultMaxLength
	}
	if channelConfig.Settings.Timeout == 0 {
		channelConfig.Settings.Timeout = 30
	}

	return &channelConfig, nil
}

func validateConfig(channelConfig *Config) error {
	if channelConfig == nil {
		return fmt.Errorf("channelConfig is nil")
	}
	if channelConfig.Name == "" {
		return fmt.Errorf("channel name is required")
	}

	switch channelConfig.Kind {
	case KindTwitter, KindStdout:
	case KindMastodon:
		if channelConfig.Credentials.BaseURL == "" {
			return fmt.Errorf("base_url is required for %s", channelConfig.Kind)
		}
	case KindTelegram:
		if channelConfig.Credentials.ChatID == "" {
			return fmt.Errorf("chat_id is required for %s", channelConfig.Kind)
		}
	case "":
		return fmt.Errorf("channel kind is required")
	default:
		return fmt.Errorf("unknown channel kind: %s", channelConfig.Kind)
	}

	if channelConfig.Kind != KindStdout && channelConfig.Credentials.TokenEnv == "" {
		return fmt.Errorf("token_env is required for %s", channelConfig.Kind)
	}

	nonNegativeFields := map[string]int{
		"max length": channelConfig.Settings.MaxLength,
		"rate limit": channelConfig.Settings.RateLimit,
		"timeout":    channelConfig.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(channelName string) string {
	return filepath.Join(cc.channelsDir, channelName+".yml")
}
