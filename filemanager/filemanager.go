// Package filemanager tracks mounted source directories, decides which source
// files are stale relative to their compiled outputs, and dispatches imports.
package filemanager

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/importer"
	"github.com/stupid-simple/assetpipe/registry"
	"github.com/stupid-simple/assetpipe/tasks"
)

var (
	ErrInvalidMountName   = errors.New("invalid mount point name")
	ErrInvalidMountPath   = errors.New("invalid mount point path")
	ErrMountExists        = errors.New("mount point already exists")
	ErrMountOverlaps      = errors.New("mount point overlaps another mount point")
	ErrMountNotFound      = errors.New("mount point not found")
	ErrInvalidVirtualPath = errors.New("invalid virtual path")
	ErrNotMounted         = errors.New("path is not inside a mount point")
	ErrImportsInFlight    = errors.New("imports are in flight")
)

const scriptExtension = ".cs"

// Importers is the subset of the importer manager the file manager needs.
type Importers interface {
	HasImporterForPath(path string) bool
	GetImporterVersionByPath(path string) uint32
	Import(ctx context.Context, req importer.Request) error
}

// ScriptBuilder is told about script files so it can rebuild them.
type ScriptBuilder interface {
	AddFileInitial(path string)
	AddFile(path string)
	ModifyFile(path string)
	RemoveFile(path string)
	MoveFile(oldPath, newPath string)
}

// DirWatcher starts and stops watching mounted trees.
type DirWatcher interface {
	AddRecursive(root string) error
	RemoveRecursive(root string)
}

type Params struct {
	Registry  *registry.Registry
	Importers Importers
	Tasks     tasks.Runner
	// Scripts and Watcher are optional.
	Scripts ScriptBuilder
	Watcher DirWatcher
	Logger  zerolog.Logger
}

type MountPoint struct {
	WatchID int
	Name    string
	Path    string
}

func (m MountPoint) MarshalZerologObject(e *zerolog.Event) {
	e.Int("watch_id", m.WatchID)
	e.Str("name", m.Name)
	e.Str("path", m.Path)
}

type Manager struct {
	ctx       context.Context
	registry  *registry.Registry
	importers Importers
	tasks     tasks.Runner
	scripts   ScriptBuilder
	watcher   DirWatcher
	logger    zerolog.Logger

	mu          sync.RWMutex
	mounts      []MountPoint
	nextWatchID int

	inflightMu sync.Mutex
	inflight   map[string]*inflightImport
}

// New returns a file manager. ctx bounds every import it dispatches.
func New(ctx context.Context, params Params) *Manager {
	scripts := params.Scripts
	if scripts == nil {
		scripts = noopScripts{}
	}
	return &Manager{
		ctx:         ctx,
		registry:    params.Registry,
		importers:   params.Importers,
		tasks:       params.Tasks,
		scripts:     scripts,
		watcher:     params.Watcher,
		logger:      params.Logger,
		nextWatchID: 1,
		inflight:    map[string]*inflightImport{},
	}
}

func isScript(path string) bool {
	return strings.EqualFold(filepath.Ext(path), scriptExtension)
}

// Hidden files are editor or pipeline temporaries and are never imported.
// Everything below a hidden directory of the mount is hidden too.
func isHidden(mp MountPoint, path string) bool {
	rel, err := filepath.Rel(mp.Path, path)
	if err != nil {
		return isHiddenName(filepath.Base(path))
	}
	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if segment != "." && segment != ".." && isHiddenName(segment) {
			return true
		}
	}
	return false
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}

type noopScripts struct{}

func (noopScripts) AddFileInitial(string)   {}
func (noopScripts) AddFile(string)          {}
func (noopScripts) ModifyFile(string)       {}
func (noopScripts) RemoveFile(string)       {}
func (noopScripts) MoveFile(string, string) {}
