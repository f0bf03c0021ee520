package filemanager

import (
	"fmt"
	"time"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/metafile"
)

// CheckIfCompiledFileNeedsToBeUpdated reports whether the source file at path,
// inside mp, has to be imported again. A file is only as fresh as its least
// fresh declared output.
func (m *Manager) CheckIfCompiledFileNeedsToBeUpdated(mp MountPoint, path string) bool {
	if !m.importers.HasImporterForPath(path) {
		return false
	}

	srcTime, ok := fileutils.ModTime(path)
	if !ok {
		// nothing left to import
		return false
	}

	metaTime, ok := fileutils.ModTime(asset.MetaPath(path))
	if !ok {
		m.logger.Debug().Str("path", path).Msg("stale: no meta file")
		return true
	}

	lastWrite := srcTime
	if metaTime.After(lastWrite) {
		lastWrite = metaTime
	}

	mounted := mountedPath(mp, path)
	meta := metafile.Load(path, mounted)
	if meta.IsOutdatedMetaVersion() ||
		meta.IsOutdatedImporterVersion(m.importers.GetImporterVersionByPath(path)) ||
		!meta.IsValid() {
		m.logger.Debug().Str("path", path).Msg("stale: outdated meta file")
		return true
	}

	declared := declaredSubassets(meta)
	if len(declared) == 0 {
		m.logger.Debug().Str("path", path).Msg("stale: meta file declares no output")
		return true
	}

	for _, sub := range declared {
		if reason := m.staleReason(sub, mounted, lastWrite); reason != "" {
			m.logger.Debug().
				Str("path", path).
				Object("subasset", sub).
				Str("reason", reason).
				Msg("stale")
			return true
		}
	}
	return false
}

// UpdateCompiledFileIfNecessary dispatches an import when the file is stale
// and reports whether it did.
func (m *Manager) UpdateCompiledFileIfNecessary(mp MountPoint, path string) bool {
	if !m.CheckIfCompiledFileNeedsToBeUpdated(mp, path) {
		return false
	}
	m.DispatchTask(mp, path)
	return true
}

// CheckPath runs the staleness check for an absolute or virtual path.
func (m *Manager) CheckPath(path string) (bool, error) {
	abs, ok := m.TryGetAbsolutePathFromMountedPath(path)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrInvalidVirtualPath, path)
	}
	mp, ok := m.FindMountForPath(abs)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotMounted, path)
	}
	return m.CheckIfCompiledFileNeedsToBeUpdated(mp, abs), nil
}

func (m *Manager) staleReason(sub metafile.Subasset, mounted string, lastWrite time.Time) string {
	entry, ok := m.registry.TryGetAssetData(sub.UUID)
	if !ok {
		return "not registered"
	}
	if entry.Type != sub.Type {
		return "type changed"
	}
	if entry.Path != mounted {
		return "path changed"
	}
	compiledTime, ok := fileutils.ModTime(m.registry.CompiledPath(sub.UUID))
	if !ok {
		return "compiled file missing"
	}
	if compiledTime.Before(lastWrite) {
		return "compiled file older than source"
	}
	return ""
}

func declaredSubassets(meta *metafile.File) []metafile.Subasset {
	out := make([]metafile.Subasset, 0, meta.SubassetCount()+1)
	if def, ok := meta.TryGetDefaultSubasset(); ok {
		out = append(out, def)
	}
	for sub := range meta.Subassets() {
		out = append(out, sub)
	}
	return out
}
