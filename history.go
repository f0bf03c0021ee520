package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/database"
	"github.com/stupid-simple/assetpipe/fileutils"
)

func historyCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args.History.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	if cfg.Journal.Disable || !fileutils.Exists(cfg.Journal.Path) {
		logger.Info().Msg("no import journal")
		return nil
	}

	db, err := database.Open(cfg.Journal.Path, logger, true)
	if err != nil {
		return fmt.Errorf("could not open import journal: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("could not close import journal")
		}
	}()

	opts := []database.FindImportRunsOptions{database.WithFindImportRunsLimit(args.History.Limit)}
	if args.History.Failed {
		opts = append(opts, database.WithFindImportRunsOnlyFailed())
	}
	if args.History.Path != "" {
		opts = append(opts, database.WithFindImportRunsPath(args.History.Path))
	}

	var count int
	for run := range db.FindImportRuns(ctx, opts...) {
		logger.Info().Object("run", run).Msg("import")
		count++
	}
	logger.Info().Int("count", count).Msg("listed imports")
	return nil
}
