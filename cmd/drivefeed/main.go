package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/drivefeed/drivefeed"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	window := flag.Duration("window", 0, "override the lookback window (e.g. 72h)")
	dryRun := flag.Bool("dry-run", false, "list and extract but do not upload")
	listStaged := flag.Bool("list-staged", false, "list staged batch objects and exit")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("component", "drivefeed").Logger()

	cfg, err := drivefeed.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *window > 0 {
		cfg.Window = *window
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	clients, err := drivefeed.NewClients(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize GCP clients")
	}
	defer clients.Close()

	if *listStaged {
		objects, err := clients.ListStaged(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list staged objects")
		}
		for _, o := range objects {
			logger.Info().
				Str("object", o.Name).
				Int64("size", o.Size).
				Time("created", o.Created).
				Msg("staged batch")
		}
		return
	}

	job := drivefeed.NewJob(cfg, clients, logger)
	job.DryRun = *dryRun

	summary, err := job.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("ingestion run failed")
		os.Exit(1)
	}
	logger.Info().
		Int("found", summary.Found).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("ingestion run complete")
}
