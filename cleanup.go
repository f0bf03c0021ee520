package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/filemanager"
	"github.com/stupid-simple/assetpipe/pipeline"
)

func cleanupCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Cleanup.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	cfg, err := loadConfig(args.Cleanup.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	cfg.Journal.Disable = true

	startTime := time.Now()
	logger.Info().Msg("starting cleanup")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("cleanup cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("cleanup done")
		}
	}()

	p, err := pipeline.New(ctx, pipeline.Params{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	if err := p.MountAll(ctx, filemanager.WithoutPreprocess()); err != nil {
		return err
	}

	report, err := p.Cleanup(ctx, args.Cleanup.DryRun)
	if err != nil {
		return err
	}
	for _, e := range report.RemovedEntries {
		logger.Info().Object("entry", e).Msg("stale registry entry")
	}
	for _, path := range report.DeletedFiles {
		logger.Info().Str("path", path).Msg("stale compiled file")
	}
	return nil
}
