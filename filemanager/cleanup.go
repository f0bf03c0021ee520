package filemanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/metafile"
	"github.com/stupid-simple/assetpipe/registry"
)

// PreprocessFilesOnMount walks dir, which must be inside mp, and runs the
// staleness check on every source file so the mount catches up with changes
// made while nothing was watching. It returns the number of dispatched
// imports.
func (m *Manager) PreprocessFilesOnMount(ctx context.Context, mp MountPoint, dir string) int {
	logger := m.logger.With().Object("mount", mp).Str("dir", dir).Logger()
	logger.Debug().Msg("preprocessing files")

	var checked, dispatched int
	for f := range asset.ScanDirectory(ctx, dir, logger) {
		if isHidden(mp, f.Path()) {
			continue
		}
		checked++
		if isScript(f.Path()) {
			m.scripts.AddFileInitial(f.Path())
		}
		if m.UpdateCompiledFileIfNecessary(mp, f.Path()) {
			dispatched++
		}
	}

	logger.Info().
		Int("checked", checked).
		Int("dispatched", dispatched).
		Msg("done preprocessing files")
	return dispatched
}

type CleanupReport struct {
	RemovedEntries []registry.Entry
	DeletedFiles   []string
	FreedBytes     int64
}

func (r CleanupReport) MarshalZerologObject(e *zerolog.Event) {
	e.Int("removed_entries", len(r.RemovedEntries))
	e.Int("deleted_files", len(r.DeletedFiles))
	e.Int64("freed_bytes", r.FreedBytes)
}

type CleanupOption func(o *cleanupOptions)

type cleanupOptions struct {
	dryRun bool
}

// WithCleanupDryRun reports what would be removed without touching anything.
func WithCleanupDryRun(dryRun bool) CleanupOption {
	return func(o *cleanupOptions) {
		o.dryRun = dryRun
	}
}

// CleanupStaleFiles garbage collects the UUID space. Every UUID declared by a
// valid sidecar in a mounted tree is live; registry entries and compiled files
// of any other UUID are removed. The registry file and hidden temporaries in
// the compiled directory are never touched.
//
// It refuses to run while imports are in flight, since an import writes its
// outputs before its sidecar declares them.
func (m *Manager) CleanupStaleFiles(ctx context.Context, opts ...CleanupOption) (CleanupReport, error) {
	o := cleanupOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	report := CleanupReport{}
	if n := m.InFlight(); n > 0 {
		return report, fmt.Errorf("%w: %d", ErrImportsInFlight, n)
	}

	start := time.Now()
	logger := m.logger.With().Str("op", "cleanup").Logger()

	usedUUIDs := m.registry.GetUsedUUIDs()
	compiledFiles, err := m.listCompiledFiles()
	if err != nil {
		return report, err
	}

	for _, mp := range m.MountPoints() {
		if !fileutils.IsDir(mp.Path) {
			// a vanished mount would make every UUID it declares look dead
			return report, fmt.Errorf("%w: %s is not a directory", ErrInvalidMountPath, mp.Path)
		}
		for f := range asset.ScanDirectory(ctx, mp.Path, logger) {
			meta := metafile.Load(f.Path(), mountedPath(mp, f.Path()))
			if !meta.Exists() || !meta.IsValid() {
				continue
			}
			for _, uuid := range meta.UUIDs() {
				delete(usedUUIDs, uuid)
				delete(compiledFiles, uuid.String())
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	for uuid := range usedUUIDs {
		entry, ok := m.registry.TryGetAssetData(uuid)
		if !ok {
			continue
		}
		report.RemovedEntries = append(report.RemovedEntries, entry)
		if !o.dryRun {
			m.registry.RemoveEntry(uuid)
		}
		logger.Debug().Object("entry", entry).Bool("dry_run", o.dryRun).Msg("removing stale registry entry")
	}

	for name, size := range compiledFiles {
		path := filepath.Join(m.registry.CompiledAssetsPath(), name)
		if !o.dryRun {
			if err := os.Remove(path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("cannot delete stale compiled file")
				continue
			}
		}
		report.DeletedFiles = append(report.DeletedFiles, path)
		report.FreedBytes += size
		logger.Debug().Str("path", path).Bool("dry_run", o.dryRun).Msg("deleting stale compiled file")
	}

	if !o.dryRun && len(report.RemovedEntries) > 0 {
		if err := m.registry.WriteFile(); err != nil {
			return report, err
		}
	}

	logger.Info().
		Object("report", report).
		Bool("dry_run", o.dryRun).
		Dur("elapsed", time.Since(start)).
		Msg("cleanup done")
	return report, nil
}

func (m *Manager) listCompiledFiles() (map[string]int64, error) {
	dir := m.registry.CompiledAssetsPath()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read compiled assets directory: %w", err)
	}

	registryName := filepath.Base(m.registry.RegistryPath())
	out := make(map[string]int64, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == registryName || isHiddenName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[e.Name()] = info.Size()
	}
	return out, nil
}
