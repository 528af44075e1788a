package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/lysyi3m/donation-relay/app/cfg"
	"github.com/lysyi3m/donation-relay/app/channel"
	"github.com/lysyi3m/donation-relay/app/database"
	"github.com/lysyi3m/donation-relay/app/donation"
	"github.com/lysyi3m/donation-relay/app/ingest"
	"github.com/lysyi3m/donation-relay/app/metrics"
	"github.com/lysyi3m/donation-relay/app/publish"
	"github.com/lysyi3m/donation-relay/app/source"
	"github.com/lysyi3m/donation-relay/app/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &application{ctx: ctx, stdout: os.Stdout}

	parser := flags.NewParser(&app.opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "donation-relay"
	registerCommands(parser, app)

	parser.CommandHandler = func(command flags.Commander, args []string) error {
		if command == nil {
			return nil
		}
		if err := app.setup(); err != nil {
			return err
		}
		defer app.close()
		return command.Execute(args)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return
		}
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// application holds the components shared by every command. They are built
// once the global options are parsed.
type application struct {
	opts   cfg.Options
	cfg    *cfg.Cfg
	ctx    context.Context
	stdout io.Writer

	db        *database.DB
	store     *database.DonationStore
	channels  *channel.ConfigCache
	formatter *donation.Formatter
	metrics   *metrics.Metrics
	tasks     *tasks.Factory
}

func (a *application) setup() error {
	config, err := a.opts.Resolve()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = config

	setupLogging(config.Debug)
	slog.Debug("Configuration loaded", "version", config.Version, "db", config.DBPath, "channels_dir", config.ChannelsDir, "timezone", config.Location)

	db, err := database.Open(a.ctx, config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open donation store: %w", err)
	}
	a.db = db
	a.store = database.NewDonationStore(db)

	a.channels = channel.NewConfigCache(config.ChannelsDir)
	if err := a.channels.Run(); err != nil {
		a.close()
		return fmt.Errorf("failed to load channel configurations: %w", err)
	}
	slog.Debug("Channel configurations loaded", "count", a.channels.GetConfigCount())

	httpClient := &http.Client{}

	fetcher := source.NewFetcher(httpClient, source.Config{
		URL:           config.SheetURL,
		UserAgent:     config.UserAgent,
		Timeout:       config.FetchTimeout,
		SectionMarker: config.SectionMarker,
		HeaderMarker:  config.HeaderMarker,
	})

	pipeline := ingest.NewPipeline(a.store)
	pipeline.SetLocation(config.Location)

	tracker := publish.NewTracker(a.store)
	tracker.SetOutput(a.stdout)

	posters := channel.NewFactory(httpClient, config.UserAgent)
	posters.Stdout = a.stdout

	a.formatter = donation.NewFormatter(config.Attribution)
	a.metrics = metrics.New()
	a.tasks = tasks.NewFactory(config.SheetURL, fetcher, pipeline, tracker, a.formatter, posters, a.store, a.metrics)

	return nil
}

func (a *application) close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		slog.Error("Failed to close donation store", "error", err)
	}
	a.db = nil
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
