package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/pack"
	"github.com/stupid-simple/assetpipe/registry"
)

func unpackCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Unpack.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	cfg, err := loadConfig(args.Unpack.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	reg := registry.New(logger)
	if err := reg.Initialize(cfg.ProjectPath); err != nil {
		return err
	}

	report, err := pack.Unpack(ctx, args.Unpack.Directory, reg.CompiledAssetsPath(), logger,
		pack.WithUnpackDryRun(args.Unpack.DryRun),
		pack.WithRegistry(reg),
	)
	if err != nil {
		return err
	}

	if !args.Unpack.DryRun && report.Restored+report.Skipped > 0 {
		if err := reg.WriteFile(); err != nil {
			return err
		}
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d assets could not be restored", report.Failed)
	}
	return nil
}
