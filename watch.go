package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/config"
	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/pipeline"
	"github.com/stupid-simple/assetpipe/scheduler"
)

func watchCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Watch.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	cfg, err := loadConfig(args.Watch.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	logger.Info().Object("config", cfg).Msg("loaded config")

	p, err := pipeline.New(ctx, pipeline.Params{
		Config: cfg,
		Logger: logger,
		Watch:  true,
	})
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	if err := p.MountAll(ctx); err != nil {
		return err
	}

	scheduler := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})
	if err := p.ScheduleMaintenance(ctx, scheduler, cfg, args.Watch.DryRun); err != nil {
		return fmt.Errorf("could not schedule maintenance: %w", err)
	}

	if args.Watch.Config != "" {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		startConfigFileWatcher(ctx, args.Watch.Config, logger, ticker, func(newCfg *config.Config) {
			if !slices.Equal(newCfg.Mounts, cfg.Mounts) {
				logger.Warn().Msg("mount point changes take effect after a restart")
			}
			scheduler.RemoveJobs()
			if err := p.ScheduleMaintenance(ctx, scheduler, newCfg, args.Watch.DryRun); err != nil {
				logger.Error().Err(err).Msg("failed to schedule maintenance")
			}
		})
	}

	scheduler.Start()
	defer scheduler.Stop()

	logger.Info().Msg("watching for changes")
	return p.Run(ctx)
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, when(ticker.C), func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}

func when[T any](ch <-chan T) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for range ch {
			out <- struct{}{}
		}
	}()
	return out
}
