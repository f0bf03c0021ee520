package asset

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ScanDirectory walks dirPath depth first and yields every regular source
// file. Sidecar files, hidden files and hidden directories below dirPath are
// skipped. Unreadable entries are logged and skipped.
func ScanDirectory(ctx context.Context, dirPath string, logger zerolog.Logger) iter.Seq[File] {
	return func(yield func(File) bool) {
		var statFiles int
		var scannedCount int

		logger = logger.With().Str("dir", dirPath).Logger()
		logger.Debug().Msg("start scanning for source files")
		defer func() {
			logger.Debug().
				Int("scanned", statFiles).
				Int("scanned_success", scannedCount).
				Msg("done scanning source files")
		}()

		throttledLogger := logger.Sample(&zerolog.BurstSampler{
			Burst:  1,
			Period: 1 * time.Second,
		})
		err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}

			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not scan path")
				return nil
			}
			if path != dirPath && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || IsMetaPath(path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not stat path")
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			statFiles++

			file, err := NewFromFS(path, info)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("could not read source file")
				return nil
			}

			if !yield(file) {
				return filepath.SkipAll
			}
			scannedCount++
			throttledLogger.Info().
				Int("scanned", statFiles).
				Int("scanned_success", scannedCount).
				Msg("scanning source files")

			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("could not scan directory")
		}
	}
}
