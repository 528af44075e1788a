package cfg

import (
	"cmp"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// Options are the global flags shared by every command.
type Options struct {
	// Storage
	DBPath      string `long:"db" env:"DB_PATH" default:"./donations.db" description:"Path to the SQLite donation store"`
	ChannelsDir string `long:"channels-dir" env:"CHANNELS_DIR" default:"./channels" description:"Directory containing channel configuration files"`

	// Source spreadsheet
	SheetURL      string `long:"sheet-url" env:"SHEET_URL" description:"CSV export URL of the donation spreadsheet"`
	SectionMarker string `long:"section-marker" env:"SECTION_MARKER" default:"Distributed:" description:"First cell of the row that starts the donation section"`
	HeaderMarker  string `long:"header-marker" env:"HEADER_MARKER" default:"Date" description:"First cell of the header row inside the donation section"`
	FetchTimeout  int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Spreadsheet download timeout in seconds"`

	// Publishing
	Hashtag string `long:"hashtag" env:"HASHTAG" default:"#startsmall" description:"Attribution appended to full-length posts"`

	// Server
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://donations.example.com)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Seconds between scheduled ingest and publish runs"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Donation Relay/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for dates and timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	S3 S3Options `group:"S3 backup" namespace:"s3" env-namespace:"S3"`
}

type S3Options struct {
	Bucket          string `long:"bucket" env:"BUCKET" description:"Bucket receiving store backups"`
	Region          string `long:"region" env:"REGION" default:"us-east-1" description:"Bucket region"`
	Endpoint        string `long:"endpoint" env:"ENDPOINT" description:"Custom endpoint for S3-compatible storage"`
	Prefix          string `long:"prefix" env:"PREFIX" default:"backups" description:"Key prefix for backup objects"`
	AccessKeyID     string `long:"access-key-id" env:"ACCESS_KEY_ID" description:"Access key (defaults to the AWS credentials chain)"`
	SecretAccessKey string `long:"secret-access-key" env:"SECRET_ACCESS_KEY" description:"Secret key"`
	PathStyle       bool   `long:"path-style" env:"PATH_STYLE" description:"Use path-style bucket addressing"`
}

// Resolve validates parsed options and converts them into the configuration
// handed to every component.
func (o *Options) Resolve() (*Cfg, error) {
	if strings.TrimSpace(o.DBPath) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if o.FetchTimeout <= 0 {
		return nil, fmt.Errorf("fetch timeout must be positive")
	}
	if o.SchedulerInterval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive")
	}

	location, err := loadLocation(o.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", o.Timezone, err)
	}

	attribution := ""
	if hashtag := strings.TrimSpace(o.Hashtag); hashtag != "" {
		attribution = "\n" + hashtag
	}

	return &Cfg{
		DBPath:            o.DBPath,
		ChannelsDir:       o.ChannelsDir,
		SheetURL:          o.SheetURL,
		SectionMarker:     o.SectionMarker,
		HeaderMarker:      o.HeaderMarker,
		FetchTimeout:      time.Duration(o.FetchTimeout) * time.Second,
		Attribution:       attribution,
		Port:              o.Port,
		BaseUrl:           strings.TrimRight(o.BaseUrl, "/"),
		SchedulerInterval: time.Duration(o.SchedulerInterval) * time.Second,
		APIAccessKey:      o.APIAccessKey,
		UserAgent:         o.UserAgent,
		Timezone:          o.Timezone,
		Location:          location,
		Debug:             o.Debug,
		Version:           GetVersion(),
		Backup: BackupCfg{
			Bucket:          o.S3.Bucket,
			Region:          o.S3.Region,
			Endpoint:        o.S3.Endpoint,
			Prefix:          o.S3.Prefix,
			AccessKeyID:     o.S3.AccessKeyID,
			SecretAccessKey: o.S3.SecretAccessKey,
			PathStyle:       o.S3.PathStyle,
		},
	}, nil
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}
