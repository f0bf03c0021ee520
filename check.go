package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/filemanager"
	"github.com/stupid-simple/assetpipe/pipeline"
)

func checkCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args.Check.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	cfg.Journal.Disable = true

	p, err := pipeline.New(ctx, pipeline.Params{Config: cfg, Logger: logger.Level(zerolog.WarnLevel)})
	if err != nil {
		return err
	}
	defer closePipeline(p, logger)

	if err := p.MountAll(ctx, filemanager.WithoutPreprocess()); err != nil {
		return err
	}

	var stale int
	for _, path := range args.Check.Paths {
		if !strings.HasPrefix(path, "$") {
			if path, err = filepath.Abs(path); err != nil {
				return err
			}
		}
		if !p.Importers.HasImporterForPath(path) {
			logger.Info().Str("path", path).Msg("no importer")
			continue
		}

		isStale, err := p.Files.CheckPath(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("cannot check path")
			continue
		}
		if isStale {
			stale++
			logger.Info().Str("path", path).Msg("stale")
		} else {
			logger.Info().Str("path", path).Msg("up to date")
		}
	}

	logger.Info().Int("checked", len(args.Check.Paths)).Int("stale", stale).Msg("check done")
	return nil
}
