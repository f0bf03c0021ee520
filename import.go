package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/pipeline"
)

func importCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args.Import.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	logger.Info().Object("config", cfg).Msg("loaded config")

	startTime := time.Now()
	logger.Info().Msg("starting import")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("import cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("import done")
		}
	}()

	p, err := pipeline.New(ctx, pipeline.Params{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	if err := p.MountAll(ctx); err != nil {
		return err
	}
	if err := p.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	if args.Import.Cleanup {
		report, err := p.Cleanup(ctx, false)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		logger.Info().Object("report", report).Msg("cleaned up stale files")
	}

	logger.Info().Int("assets", p.Registry.Len()).Msg("registry up to date")
	return nil
}

func closePipeline(p *pipeline.Pipeline, logger zerolog.Logger) {
	if err := p.Close(); err != nil {
		logger.Warn().Err(err).Msg("could not close pipeline")
	}
}
