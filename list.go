package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/registry"
)

func listCommand(_ context.Context, args Command, logger zerolog.Logger) error {
	cfg, err := loadConfig(args.List.ProjectFlags)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	reg := registry.New(logger)
	if err := reg.Initialize(cfg.ProjectPath); err != nil {
		return err
	}

	var entries []registry.Entry
	switch {
	case args.List.Type != "":
		t := asset.ParseType(args.List.Type)
		if t == asset.Undefined && !strings.EqualFold(args.List.Type, asset.Undefined.String()) {
			return fmt.Errorf("unknown asset type %q", args.List.Type)
		}
		entries = reg.FindAllFilesOfType(t)
	case args.List.Path != "":
		entries = reg.FindAllByPath(args.List.Path)
	default:
		entries = reg.Entries()
	}

	for _, e := range entries {
		logger.Info().Object("entry", e).Bool("compiled", fileutils.Exists(reg.CompiledPath(e.UUID))).Msg("asset")
	}
	logger.Info().Int("count", len(entries)).Int("total", reg.Len()).Msg("listed assets")
	return nil
}
