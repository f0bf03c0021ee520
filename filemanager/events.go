package filemanager

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/watcher"
)

// Run handles events until ctx is done or events is closed.
func (m *Manager) Run(ctx context.Context, events <-chan watcher.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.HandleEvent(ctx, e)
		}
	}
}

// HandleEvent routes one filesystem event. Events outside every mount point
// are ignored. Handlers only stat files and dispatch; they never import
// inline.
func (m *Manager) HandleEvent(ctx context.Context, e watcher.Event) {
	logger := m.logger.With().Object("event", e).Logger()

	if e.Op == watcher.Move {
		newMount, newOK := m.FindMountForPath(e.Path)
		oldMount, oldOK := m.FindMountForPath(e.OldPath)
		switch {
		case newOK && oldOK:
			m.HandleMove(ctx, newMount, e.OldPath, e.Path, e.IsDir)
		case newOK:
			m.HandleAdd(ctx, newMount, e.Path, e.IsDir)
		case oldOK:
			m.HandleDelete(oldMount, e.OldPath)
		default:
			logger.Trace().Msg("ignoring event outside mount points")
		}
		return
	}

	mp, ok := m.FindMountForPath(e.Path)
	if !ok {
		logger.Trace().Msg("ignoring event outside mount points")
		return
	}
	if mp.Path == e.Path {
		return
	}
	if isHidden(mp, e.Path) {
		return
	}

	switch e.Op {
	case watcher.Add:
		m.HandleAdd(ctx, mp, e.Path, e.IsDir)
	case watcher.Modify:
		m.HandleModify(mp, e.Path, e.IsDir)
	case watcher.Delete:
		m.HandleDelete(mp, e.Path)
	}
}

func (m *Manager) HandleAdd(ctx context.Context, mp MountPoint, path string, isDir bool) {
	if isDir {
		m.PreprocessFilesOnMount(ctx, mp, path)
		return
	}

	if asset.IsMetaPath(path) {
		// a sidecar can arrive after its source, e.g. on checkout
		m.checkSourceOfMeta(mp, path)
		return
	}

	m.UpdateCompiledFileIfNecessary(mp, path)
	if isScript(path) {
		m.scripts.AddFile(path)
	}
}

func (m *Manager) HandleModify(mp MountPoint, path string, isDir bool) {
	if isDir {
		return
	}

	if asset.IsMetaPath(path) {
		m.checkSourceOfMeta(mp, path)
		return
	}

	m.UpdateCompiledFileIfNecessary(mp, path)
	if isScript(path) {
		m.scripts.ModifyFile(path)
	}
}

func (m *Manager) HandleDelete(mp MountPoint, path string) {
	if asset.IsMetaPath(path) {
		// the source needs its sidecar back
		m.checkSourceOfMeta(mp, path)
		return
	}

	metaPath := asset.MetaPath(path)
	if err := os.Remove(metaPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn().Err(err).Str("path", metaPath).Msg("cannot remove orphaned meta file")
		}
	} else {
		m.logger.Debug().Str("path", metaPath).Msg("removed orphaned meta file")
	}

	if isScript(path) {
		m.scripts.RemoveFile(path)
	}
}

// HandleMove handles a rename inside the mounted trees. A moved source takes
// its sidecar along so its UUIDs survive the move.
func (m *Manager) HandleMove(ctx context.Context, mp MountPoint, oldPath, newPath string, isDir bool) {
	if isDir {
		m.PreprocessFilesOnMount(ctx, mp, newPath)
		return
	}

	if asset.IsMetaPath(newPath) {
		m.checkSourceOfMeta(mp, newPath)
		if asset.IsMetaPath(oldPath) && oldPath != newPath {
			if oldMount, ok := m.FindMountForPath(oldPath); ok {
				m.checkSourceOfMeta(oldMount, oldPath)
			}
		}
		return
	}

	if isHidden(mp, newPath) {
		return
	}

	oldMeta := asset.MetaPath(oldPath)
	newMeta := asset.MetaPath(newPath)
	if fileutils.Exists(oldMeta) && !fileutils.Exists(newMeta) {
		if err := os.Rename(oldMeta, newMeta); err != nil {
			m.logger.Warn().Err(err).Str("from", oldMeta).Str("to", newMeta).Msg("cannot move meta file")
		} else {
			m.logger.Debug().Str("from", oldMeta).Str("to", newMeta).Msg("moved meta file")
		}
	}

	m.UpdateCompiledFileIfNecessary(mp, newPath)
	if isScript(newPath) {
		m.scripts.MoveFile(oldPath, newPath)
	}
}

func (m *Manager) checkSourceOfMeta(mp MountPoint, metaPath string) {
	src := asset.SourcePathFromMeta(metaPath)
	if !fileutils.Exists(src) || fileutils.IsDir(src) {
		return
	}
	m.UpdateCompiledFileIfNecessary(mp, src)
}
