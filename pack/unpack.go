package pack

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/fileutils"
)

type UnpackReport struct {
	Restored int
	Skipped  int
	Failed   int
}

func (r UnpackReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("restored", r.Restored)
	e.Int("skipped", r.Skipped)
	e.Int("failed", r.Failed)
}

// Unpack restores the assets described by the directory at dirPath into
// compiledDir. Every asset is verified against its checksum before it is
// written. Compiled files already matching their checksum are skipped;
// differing ones are overwritten.
//
// A corrupt asset is logged and counted; it does not stop the others.
func Unpack(ctx context.Context, dirPath, compiledDir string, logger zerolog.Logger, opts ...UnpackOption) (UnpackReport, error) {
	o := unpackOptions{}
	for _, applyOpts := range opts {
		applyOpts(&o)
	}

	report := UnpackReport{}
	dir, err := ReadDirectory(dirPath)
	if err != nil {
		return report, err
	}

	logger = logger.With().Str("directory", dirPath).Str("dest", compiledDir).Logger()
	logger.Info().Int("assets", len(dir.Assets)).Msg("unpacking assets")
	start := time.Now()

	parts := openParts(filepath.Dir(dirPath), dir.Parts)
	defer func() {
		if err := parts.Close(); err != nil {
			logger.Warn().Err(err).Msg("could not close pack parts")
		}
	}()

	for _, e := range dir.Assets {
		if err := ctx.Err(); err != nil {
			logger.Info().Object("report", report).Msg("cancelled unpack")
			return report, err
		}

		restored, err := restoreEntry(parts, e, compiledDir, o.dryRun)
		switch {
		case err != nil:
			report.Failed++
			logger.Warn().Err(err).Object("asset", e).Msg("could not restore asset")
			continue
		case restored:
			report.Restored++
			logger.Debug().Object("asset", e).Msg("restored asset")
		default:
			report.Skipped++
			logger.Debug().Object("asset", e).Msg("compiled file already present, skipping")
		}

		if o.registry != nil && !o.dryRun {
			o.registry.UpdateEntry(e.Path, e.Identifier, e.Name, e.Address, e.UUID, e.Type)
		}
	}

	logger.Info().
		Object("report", report).
		Bool("dry_run", o.dryRun).
		Dur("elapsed", time.Since(start)).
		Msg("done unpacking assets")
	return report, nil
}

func restoreEntry(parts *partReaders, e DirectoryEntry, compiledDir string, dryRun bool) (bool, error) {
	data, err := parts.Read(e.Part, e.UUID.String())
	if err != nil {
		return false, err
	}
	if int64(len(data)) != e.Size {
		return false, fmt.Errorf("%w: size %d, expected %d", ErrCorruptPack, len(data), e.Size)
	}
	sum, err := fileutils.ComputeHash(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	if sum != e.Checksum {
		return false, fmt.Errorf("%w: %s", ErrChecksumMismatch, e.UUID)
	}

	dest := filepath.Join(compiledDir, e.UUID.String())
	if existing, err := fileutils.ComputeFileHash(dest); err == nil && existing == e.Checksum {
		return false, nil
	}
	if dryRun {
		return true, nil
	}
	if err := fileutils.WriteFileAtomic(dest, data, 0644); err != nil {
		return false, err
	}
	return true, nil
}

// partReaders opens each part once, on first use.
type partReaders struct {
	dir     string
	names   []string
	readers map[int]*zip.ReadCloser
}

func openParts(dir string, names []string) *partReaders {
	return &partReaders{
		dir:     dir,
		names:   names,
		readers: make(map[int]*zip.ReadCloser),
	}
}

func (p *partReaders) Read(part int, name string) (data []byte, err error) {
	reader, ok := p.readers[part]
	if !ok {
		reader, err = zip.OpenReader(filepath.Join(p.dir, p.names[part]))
		if err != nil {
			return nil, err
		}
		p.readers[part] = reader
	}

	f, err := reader.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not in part %s", ErrCorruptPack, name, p.names[part])
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return io.ReadAll(f)
}

func (p *partReaders) Close() error {
	var errs []error
	for _, r := range p.readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// RemovePack deletes the directory at dirPath and every part it lists.
func RemovePack(dirPath string) error {
	dir, err := ReadDirectory(dirPath)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range dir.Parts {
		if err := os.Remove(filepath.Join(filepath.Dir(dirPath), name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, os.Remove(dirPath))
	return errors.Join(errs...)
}
