package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/pack"
	"github.com/stupid-simple/assetpipe/registry"
)

func packCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	if args.Pack.DryRun {
		logger = logger.With().Bool("dryrun", true).Logger()
	}

	cfg, err := loadConfig(args.Pack.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	dest := args.Pack.Dest
	if dest == "" {
		dest = cfg.Pack.Dir
	}
	if dest == "" {
		return fmt.Errorf("no destination directory, use --dest or set pack.dir in the config")
	}
	prefix := args.Pack.Prefix
	if prefix == "" {
		prefix = cfg.Pack.Prefix
	}
	if prefix == "" {
		prefix = pack.DefaultPrefix
	}
	maxSize := args.Pack.MaxSize.Size
	if maxSize == 0 {
		maxSize = cfg.Pack.MaxPartSize.Size
	}
	if maxSize > 0 && maxSize < 1024 {
		return fmt.Errorf("max size must be at least 1024 bytes")
	}

	if !args.Pack.DryRun {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("could not create dest path: %w", err)
		}
		if err := fileutils.VerifyWritable(dest); err != nil {
			return fmt.Errorf("dest path must be writable: %w", err)
		}
		dirPath := pack.DirectoryPath(dest, prefix)
		if args.Pack.Overwrite && fileutils.Exists(dirPath) {
			logger.Info().Str("path", dirPath).Msg("removing existing pack")
			if err := pack.RemovePack(dirPath); err != nil {
				return fmt.Errorf("could not remove existing pack: %w", err)
			}
		}
	}

	reg := registry.New(logger)
	if err := reg.Initialize(cfg.ProjectPath); err != nil {
		return err
	}

	_, err = pack.Pack(ctx, reg, dest, logger,
		pack.WithDryRun(args.Pack.DryRun),
		pack.WithPrefix(prefix),
		pack.WithMaxPartBytes(maxSize),
	)
	return err
}
