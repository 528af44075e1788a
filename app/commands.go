package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lysyi3m/donation-relay/app/api"
	"github.com/lysyi3m/donation-relay/app/backup"
	"github.com/lysyi3m/donation-relay/app/channel"
	"github.com/lysyi3m/donation-relay/app/donation"
	"github.com/lysyi3m/donation-relay/app/feed"
	"github.com/lysyi3m/donation-relay/app/publish"
	"github.com/lysyi3m/donation-relay/app/stats"
	"github.com/lysyi3m/donation-relay/app/tasks"
)

func registerCommands(parser *flags.Parser, app *application) {
	commands := []struct {
		name, short, long string
		data              interface{}
	}{
		{"ingest", "Record new donations", "Fetch the donation spreadsheet and record every donation not seen before.", &IngestCommand{app: app}},
		{"publish", "Post undelivered donations", "Post every donation not yet delivered to a channel, recording each delivery as it succeeds.", &PublishCommand{app: app}},
		{"print", "Print formatted donations", "Render every stored donation the way it would be posted.", &PrintCommand{app: app}},
		{"list", "List stored donations", "List stored donations with their delivery state.", &ListCommand{app: app}},
		{"retrieve", "Show one donation", "Show a stored donation by fingerprint.", &RetrieveCommand{app: app}},
		{"delete", "Delete one donation", "Remove a stored donation by fingerprint. It is recorded again, undelivered, on the next ingest.", &DeleteCommand{app: app}},
		{"stats", "Show store statistics", "Show donation totals and pending deliveries per channel.", &StatsCommand{app: app}},
		{"serve", "Run the scheduler and HTTP API", "Ingest and publish on an interval and serve the HTTP API.", &ServeCommand{app: app}},
		{"backup", "Upload a store snapshot to S3", "Take a consistent snapshot of the donation store and upload it to the configured bucket.", &BackupCommand{app: app}},
	}

	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(fmt.Sprintf("failed to register command %s: %v", c.name, err))
		}
	}
}

type IngestCommand struct {
	app *application
}

func (c *IngestCommand) Execute(args []string) error {
	task := c.app.tasks.NewIngestTask()
	task.Start()

	if err := task.Execute(c.app.ctx); err != nil {
		return err
	}

	result := task.Result
	fmt.Fprintf(c.app.stdout, "Recorded %d new donations (%d rows, %d already known, %d malformed)\n",
		result.Created, result.Total, result.Existing, result.Malformed)
	return nil
}

type PublishCommand struct {
	Channel   string  `short:"c" long:"channel" required:"true" description:"Channel to publish to"`
	Test      bool    `long:"test" description:"Print posts instead of sending them"`
	Sleep     float64 `long:"sleep" default:"-1" description:"Minutes between posts (defaults to the channel rate_limit)"`
	MaxLength int     `long:"maxlen" description:"Maximum post length (defaults to the channel max_length)"`

	app *application
}

func (c *PublishCommand) Execute(args []string) error {
	channelConfig, err := c.app.channels.GetConfig(donation.Channel(c.Channel))
	if err != nil {
		if !c.Test {
			return err
		}
		channelConfig = &channel.Config{
			Name:     c.Channel,
			Kind:     channel.KindStdout,
			Settings: channel.ConfigSettings{MaxLength: donation.DefaultMaxLength},
		}
	}

	opts := publish.Options{
		DryRun:         c.Test,
		MaxLength:      c.MaxLength,
		RateLimitDelay: -1,
	}
	if c.Sleep >= 0 {
		opts.RateLimitDelay = time.Duration(c.Sleep * float64(time.Minute))
	}

	task, err := c.app.tasks.NewPublishTask(channelConfig, opts)
	if err != nil {
		return err
	}
	task.Start()

	if err := task.Execute(c.app.ctx); err != nil {
		return err
	}

	if c.Test {
		return nil
	}

	result := task.Result
	fmt.Fprintf(c.app.stdout, "Posted %d of %d donations to %s\n", result.Posted, result.Attempted, c.Channel)
	for _, failure := range result.Failures {
		fmt.Fprintf(c.app.stdout, "  %s: %v\n", failure.Fingerprint, failure.Err)
	}

	if result.Posted == 0 && result.Failed() > 0 {
		return fmt.Errorf("failed to post any of %d donations to %s: %w", result.Failed(), c.Channel, result.Failures[0])
	}
	return nil
}

type PrintCommand struct {
	MaxLength int `long:"maxlen" default:"255" description:"Maximum post length"`

	app *application
}

func (c *PrintCommand) Execute(args []string) error {
	records, err := c.app.store.List(c.app.ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		fmt.Fprintf(c.app.stdout, "%s\n\n", c.app.formatter.Render(record, c.MaxLength))
	}
	return nil
}

type ListCommand struct {
	app *application
}

func (c *ListCommand) Execute(args []string) error {
	records, err := c.app.store.List(c.app.ctx)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(c.app.stdout, "No donations recorded")
		return nil
	}

	fmt.Fprintln(c.app.stdout, donationTable(records))
	return nil
}

type fingerprintArgs struct {
	Fingerprint string `positional-arg-name:"HASH" required:"yes" description:"Donation fingerprint"`
}

type RetrieveCommand struct {
	Args fingerprintArgs `positional-args:"yes"`

	app *application
}

func (c *RetrieveCommand) Execute(args []string) error {
	record, err := c.app.store.Get(c.app.ctx, c.Args.Fingerprint)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("donation %s not found", c.Args.Fingerprint)
	}

	fmt.Fprintln(c.app.stdout, donationDetails(*record))
	return nil
}

type DeleteCommand struct {
	Args fingerprintArgs `positional-args:"yes"`

	app *application
}

func (c *DeleteCommand) Execute(args []string) error {
	deleted, err := c.app.store.Delete(c.app.ctx, c.Args.Fingerprint)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("donation %s not found", c.Args.Fingerprint)
	}

	fmt.Fprintf(c.app.stdout, "Deleted %s\n", c.Args.Fingerprint)
	return nil
}

type StatsCommand struct {
	app *application
}

func (c *StatsCommand) Execute(args []string) error {
	summary, err := stats.Collect(c.app.ctx, c.app.store, c.app.store, stats.Channels(c.app.channels.Names()))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.app.stdout, "Donations: %d\n", summary.Donations)
	fmt.Fprintf(c.app.stdout, "Total amount: %s", summary.TotalAmount.StringFixed(2))
	if summary.UnparsedAmount > 0 {
		fmt.Fprintf(c.app.stdout, " (%d amounts not counted)", summary.UnparsedAmount)
	}
	fmt.Fprintln(c.app.stdout)

	rows := make([][]string, 0, len(summary.Channels))
	for _, ch := range summary.Channels {
		rows = append(rows, []string{string(ch.Channel), fmt.Sprint(ch.Delivered), fmt.Sprint(ch.Pending)})
	}
	fmt.Fprintln(c.app.stdout, renderTable([]string{"Channel", "Delivered", "Pending"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
	return nil
}

type ServeCommand struct {
	app *application
}

func (c *ServeCommand) Execute(args []string) error {
	config := c.app.cfg

	scheduler := tasks.NewScheduler(c.app.channels, c.app.tasks, config.SchedulerInterval, c.app.metrics)
	scheduler.Start()
	defer scheduler.Stop()

	selfLink := fmt.Sprintf("http://localhost:%s/feed.xml", config.Port)
	if config.BaseUrl != "" {
		selfLink = config.BaseUrl + "/feed.xml"
	}
	generator := feed.NewGenerator(feed.Options{
		Title:    "Donations",
		Link:     config.BaseUrl,
		SelfLink: selfLink,
		Version:  config.Version,
	}, config.Location)

	handler := api.NewHandler(c.app.store, generator, c.app.channels, scheduler, c.app.tasks, c.app.metrics, config.Version)

	httpServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      api.NewServer(handler, config.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server started", "port", config.Port, "scheduler_interval", config.SchedulerInterval, "channels", len(c.app.channels.GetEnabledConfigs()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-c.app.ctx.Done():
		slog.Info("Shutdown signal received")
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	return runErr
}

type BackupCommand struct {
	app *application
}

func (c *BackupCommand) Execute(args []string) error {
	backupCfg := backup.Config{
		Bucket:          c.app.cfg.Backup.Bucket,
		Region:          c.app.cfg.Backup.Region,
		Endpoint:        c.app.cfg.Backup.Endpoint,
		Prefix:          c.app.cfg.Backup.Prefix,
		AccessKeyID:     c.app.cfg.Backup.AccessKeyID,
		SecretAccessKey: c.app.cfg.Backup.SecretAccessKey,
		PathStyle:       c.app.cfg.Backup.PathStyle,
	}

	client, err := backup.NewS3Client(c.app.ctx, backupCfg)
	if err != nil {
		return err
	}

	b, err := backup.New(c.app.db, client, backupCfg)
	if err != nil {
		return err
	}

	key, err := b.Run(c.app.ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.app.stdout, "Uploaded s3://%s/%s\n", backupCfg.Bucket, key)
	return nil
}
