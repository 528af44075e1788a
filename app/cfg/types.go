package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath      string
	ChannelsDir string

	// Source spreadsheet
	SheetURL      string
	SectionMarker string
	HeaderMarker  string
	FetchTimeout  time.Duration

	// Publishing
	Attribution string

	// Server
	Port              string
	BaseUrl           string
	SchedulerInterval time.Duration
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Location  *time.Location
	Debug     bool
	Version   string

	Backup BackupCfg
}

type BackupCfg struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// Now returns the current time in the configured timezone.
func (c *Cfg) Now() time.Time {
	return time.Now().In(c.Location)
}
