package filemanager

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/stupid-simple/assetpipe/fileutils"
)

type MountOption func(o *mountOptions)

type mountOptions struct {
	skipPreprocess bool
}

// WithoutPreprocess mounts without looking for stale files, for read only
// inspection of a project.
func WithoutPreprocess() MountOption {
	return func(o *mountOptions) {
		o.skipPreprocess = true
	}
}

// Mount registers dir under name (e.g. "$MAIN"), starts watching it when a
// watcher is configured, and brings it up to date with
// PreprocessFilesOnMount.
func (m *Manager) Mount(ctx context.Context, name, dir string, opts ...MountOption) (MountPoint, error) {
	o := mountOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if !validMountName(name) {
		return MountPoint{}, fmt.Errorf("%w: %q", ErrInvalidMountName, name)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return MountPoint{}, fmt.Errorf("%w: %w", ErrInvalidMountPath, err)
	}
	if !fileutils.IsDir(abs) {
		return MountPoint{}, fmt.Errorf("%w: %s is not a directory", ErrInvalidMountPath, abs)
	}

	m.mu.Lock()
	for _, mp := range m.mounts {
		if mp.Name == name {
			m.mu.Unlock()
			return MountPoint{}, fmt.Errorf("%w: %s", ErrMountExists, name)
		}
		if isWithin(mp.Path, abs) || isWithin(abs, mp.Path) {
			m.mu.Unlock()
			return MountPoint{}, fmt.Errorf("%w: %s and %s", ErrMountOverlaps, abs, mp.Path)
		}
	}
	mp := MountPoint{WatchID: m.nextWatchID, Name: name, Path: abs}
	m.nextWatchID++
	m.mounts = append(m.mounts, mp)
	m.mu.Unlock()

	m.logger.Info().Object("mount", mp).Msg("mounted")

	if m.watcher != nil {
		if err := m.watcher.AddRecursive(abs); err != nil {
			m.logger.Error().Err(err).Object("mount", mp).Msg("cannot watch mount point")
		}
	}

	if !o.skipPreprocess {
		m.PreprocessFilesOnMount(ctx, mp, abs)
	}
	return mp, nil
}

func (m *Manager) Unmount(name string) error {
	m.mu.Lock()
	i := slices.IndexFunc(m.mounts, func(mp MountPoint) bool { return mp.Name == name })
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMountNotFound, name)
	}
	mp := m.mounts[i]
	m.mounts = slices.Delete(m.mounts, i, i+1)
	m.mu.Unlock()

	if m.watcher != nil {
		m.watcher.RemoveRecursive(mp.Path)
	}
	m.logger.Info().Object("mount", mp).Msg("unmounted")
	return nil
}

func (m *Manager) MountPoints() []MountPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.mounts)
}

func (m *Manager) MountPoint(name string) (MountPoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mp := range m.mounts {
		if mp.Name == name {
			return mp, true
		}
	}
	return MountPoint{}, false
}

// FindMountForPath returns the mount point containing the absolute path. The
// mount root itself counts as contained.
func (m *Manager) FindMountForPath(path string) (MountPoint, bool) {
	path = filepath.Clean(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mp := range m.mounts {
		if isWithin(mp.Path, path) {
			return mp, true
		}
	}
	return MountPoint{}, false
}

// TryGetPathWithMountPoint translates an absolute path into a virtual path. It
// fails unless path is a strict descendant of exactly one mount root.
func (m *Manager) TryGetPathWithMountPoint(path string) (VirtualPath, bool) {
	if !filepath.IsAbs(path) {
		return VirtualPath{}, false
	}
	path = filepath.Clean(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found VirtualPath
	matches := 0
	for _, mp := range m.mounts {
		vp, ok := virtualPathIn(mp, path)
		if !ok {
			continue
		}
		found = vp
		matches++
	}
	if matches != 1 {
		return VirtualPath{}, false
	}
	return found, true
}

// TryGetAbsolutePathFromMountedPath resolves a virtual path. A path without
// the '$' prefix is already a filesystem path and is returned unchanged.
func (m *Manager) TryGetAbsolutePathFromMountedPath(path string) (string, bool) {
	if !strings.HasPrefix(path, "$") {
		return path, true
	}
	vp, err := ParseVirtualPath(path)
	if err != nil {
		return "", false
	}
	mp, ok := m.MountPoint(vp.Mount)
	if !ok {
		return "", false
	}
	return filepath.Join(mp.Path, filepath.FromSlash(vp.Rel)), true
}

// mountedPath is the virtual path of path inside mp, or "" when path is not a
// strict descendant of mp.
func mountedPath(mp MountPoint, path string) string {
	vp, ok := virtualPathIn(mp, path)
	if !ok {
		return ""
	}
	return vp.String()
}

func virtualPathIn(mp MountPoint, path string) (VirtualPath, bool) {
	rel, err := filepath.Rel(mp.Path, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return VirtualPath{}, false
	}
	return VirtualPath{Mount: mp.Name, Rel: filepath.ToSlash(rel)}, true
}

func isWithin(root, path string) bool {
	if root == path {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(root, string(filepath.Separator))+string(filepath.Separator))
}
