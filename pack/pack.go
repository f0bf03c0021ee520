// Package pack exports the compiled assets of a project into a set of zip
// parts plus a JSON directory, and restores them into a compiled directory.
package pack

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/pack/zipwriter"
	"github.com/stupid-simple/assetpipe/registry"
)

const DefaultPrefix = "assets"

var (
	ErrUnsupportedVersion = errors.New("unsupported pack directory version")
	ErrCorruptPack        = errors.New("corrupt asset pack")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
)

// Source is the registry view Pack reads from.
type Source interface {
	FindAllFilesOfType(assetType asset.Type) []registry.Entry
	CompiledPath(uuid asset.UUID) string
}

// EntryUpdater is the registry view Unpack writes to.
type EntryUpdater interface {
	UpdateEntry(path, identifier, displayName, address string, uuid asset.UUID, assetType asset.Type)
}

// DirectoryPath returns where Pack writes the directory for prefix in dest.
func DirectoryPath(dest, prefix string) string {
	return filepath.Join(dest, prefix+".json")
}

// Pack writes every registered asset with a compiled file into dest. Assets
// are grouped by type. Registered assets without a compiled file are skipped
// with a warning.
//
// In dry run mode nothing is written and the returned directory describes
// what would have been packed.
func Pack(ctx context.Context, src Source, dest string, logger zerolog.Logger, opts ...PackOption) (Directory, error) {
	o := packOptions{prefix: DefaultPrefix}
	for _, applyOpts := range opts {
		applyOpts(&o)
	}

	logger = logger.With().Str("dest", dest).Str("prefix", o.prefix).Logger()
	logger.Info().Msg("packing assets")

	dirPath := DirectoryPath(dest, o.prefix)
	if !o.dryRun && fileutils.Exists(dirPath) {
		return Directory{}, fmt.Errorf("pack directory already exists: %s", dirPath)
	}

	start := time.Now()
	dir := Directory{Version: DirectoryVersion}

	var parts []*zipwriter.ZipFile
	var part *zipwriter.ZipFile
	var written int64
	openPart := func() {
		name := partName(o.prefix, len(dir.Parts))
		part = newPart(filepath.Join(dest, name), o.dryRun)
		parts = append(parts, part)
		dir.Parts = append(dir.Parts, name)
		written = 0
		logger.Debug().Str("path", part.Path()).Int("part", len(dir.Parts)-1).Msg("open part")
	}
	closePart := func() error {
		if part == nil {
			return nil
		}
		if err := part.Close(); err != nil {
			return fmt.Errorf("close part %s: %w", part.Path(), err)
		}
		logger.Info().
			Str("path", part.Path()).
			Int64("files_size", written).
			Int("files_count", part.Entries()).
			Msg("successfully written part")
		return nil
	}

	fail := func(err error) (Directory, error) {
		_ = closePart()
		for _, p := range parts {
			if delErr := p.Delete(); delErr != nil {
				logger.Warn().Err(delErr).Str("path", p.Path()).Msg("could not delete partial part")
			}
		}
		return Directory{}, err
	}

	for _, assetType := range asset.Types() {
		for _, entry := range src.FindAllFilesOfType(assetType) {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}

			compiled := src.CompiledPath(entry.UUID)
			info, err := os.Stat(compiled)
			if err != nil {
				logger.Warn().Err(err).Object("entry", entry).Msg("no compiled file, skipping")
				continue
			}

			if part == nil || (o.maxPartBytes > 0 && written > 0 && written+info.Size() > o.maxPartBytes) {
				if err := closePart(); err != nil {
					return fail(err)
				}
				openPart()
			}

			checksum, err := writeEntry(part, entry.UUID, compiled, info)
			if err != nil {
				return fail(fmt.Errorf("pack %s: %w", entry.UUID, err))
			}
			written += info.Size()

			de := DirectoryEntry{
				UUID:       entry.UUID,
				Type:       entry.Type,
				Path:       entry.Path,
				Name:       entry.Name,
				Identifier: entry.Identifier,
				Address:    entry.Address,
				Part:       len(dir.Parts) - 1,
				Checksum:   checksum,
				Size:       info.Size(),
			}
			dir.Assets = append(dir.Assets, de)
			logger.Debug().Object("asset", de).Msg("packed asset")
		}
	}

	if err := closePart(); err != nil {
		return fail(err)
	}

	if !o.dryRun {
		if err := writeDirectory(dirPath, dir); err != nil {
			return fail(err)
		}
	}

	logger.Info().
		Int("assets", len(dir.Assets)).
		Int("parts", len(dir.Parts)).
		Int64("bytes", dir.TotalSize()).
		Bool("dry_run", o.dryRun).
		Dur("elapsed", time.Since(start)).
		Msg("done packing assets")
	return dir, nil
}

// writeEntry copies one compiled file into the part and returns its checksum.
func writeEntry(part *zipwriter.ZipFile, uuid asset.UUID, path string, info os.FileInfo) (checksum uint64, err error) {
	header := &zip.FileHeader{
		Name:               uuid.String(),
		UncompressedSize64: uint64(info.Size()),
		Modified:           info.ModTime(),
		Method:             zip.Deflate,
	}
	w, err := part.CreateHeader(header)
	if err != nil {
		return 0, err
	}

	r, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, r.Close())
	}()

	// Write to the part and hash in one pass.
	return fileutils.ComputeHash(io.TeeReader(r, w))
}

func partName(prefix string, index int) string {
	if index == 0 {
		return prefix + ".zip"
	}
	return fmt.Sprintf("%s.%d.zip", prefix, index)
}

func newPart(path string, dryRun bool) *zipwriter.ZipFile {
	if dryRun {
		return zipwriter.NewNullZipFile()
	}
	return zipwriter.NewLazyZipFile(path)
}
