// Package registry keeps the process-wide map from asset UUID to compiled
// asset metadata and persists it as a single JSON document next to the
// compiled assets.
package registry

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
)

const (
	AssetsDir         = "assets"
	CompiledAssetsDir = "compiledAssets"
	RegistryFileName  = "_assetRegistry.json"
)

type Entry struct {
	UUID        asset.UUID `json:"uuid"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Type        asset.Type `json:"assetType"`
	DisplayName string     `json:"displayName,omitempty"`
	Identifier  string     `json:"subassetIdentifier,omitempty"`
	Address     string     `json:"address,omitempty"`
}

func (e Entry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("uuid", e.UUID)
	ev.Str("name", e.Name)
	ev.Str("path", e.Path)
	ev.Stringer("type", e.Type)
}

type Registry struct {
	mu     sync.RWMutex
	assets map[asset.UUID]Entry
	byPath map[string][]asset.UUID

	// serialises WriteFile so two renames never interleave
	writeMu sync.Mutex

	projectPath  string
	assetsPath   string
	compiledPath string
	registryPath string

	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Registry {
	return &Registry{
		assets: map[asset.UUID]Entry{},
		byPath: map[string][]asset.UUID{},
		logger: logger,
	}
}

// Initialize derives the registry locations from the project directory,
// creates the compiled assets directory and loads the registry file.
func (r *Registry) Initialize(projectPath string) error {
	abs, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	r.mu.Lock()
	r.projectPath = abs
	r.assetsPath = filepath.Join(abs, AssetsDir)
	r.compiledPath = filepath.Join(abs, CompiledAssetsDir)
	r.registryPath = filepath.Join(r.compiledPath, RegistryFileName)
	r.mu.Unlock()

	if err := os.MkdirAll(r.compiledPath, 0755); err != nil {
		return fmt.Errorf("create compiled assets directory: %w", err)
	}

	r.ReadFile()
	return nil
}

func (r *Registry) ProjectPath() string        { return r.projectPath }
func (r *Registry) AssetsPath() string         { return r.assetsPath }
func (r *Registry) CompiledAssetsPath() string { return r.compiledPath }
func (r *Registry) RegistryPath() string       { return r.registryPath }

// CompiledPath is where the compiled output of uuid lives.
func (r *Registry) CompiledPath(uuid asset.UUID) string {
	return filepath.Join(r.compiledPath, uuid.String())
}

// ReadFile replaces the in-memory map with the content of the registry file.
// A missing or malformed file leaves the registry empty.
func (r *Registry) ReadFile() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.assets = map[asset.UUID]Entry{}
	r.byPath = map[string][]asset.UUID{}

	raw, err := os.ReadFile(r.registryPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn().Err(err).Str("path", r.registryPath).Msg("cannot read asset registry")
		}
		return
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		r.logger.Warn().Err(err).Str("path", r.registryPath).Msg("asset registry is malformed, starting empty")
		return
	}

	for _, e := range entries {
		if !e.UUID.IsValid() {
			continue
		}
		r.putLocked(e)
	}

	r.logger.Debug().Int("entries", len(r.assets)).Msg("asset registry loaded")
}

// WriteFile persists every entry, replacing the registry file atomically.
// Entries are sorted by path and keep their registration order within a
// path, so ReadFile restores the path index as it was.
func (r *Registry) WriteFile() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	entries := r.entriesByPath()

	raw, err := json.MarshalIndent(entries, "", "\t")
	if err != nil {
		return fmt.Errorf("encode asset registry: %w", err)
	}
	if err := fileutils.WriteFileAtomic(r.registryPath, raw, 0644); err != nil {
		r.logger.Error().Err(err).Str("path", r.registryPath).Msg("cannot write asset registry")
		return err
	}
	return nil
}

// UpdateEntry inserts or overwrites the entry for uuid. Virtual paths are kept
// as they are; anything else is stored relative to the assets directory.
func (r *Registry) UpdateEntry(path, identifier, displayName, address string, uuid asset.UUID, assetType asset.Type) {
	if !uuid.IsValid() {
		return
	}
	if displayName == "" {
		displayName = identifier
	}

	e := Entry{
		UUID:        uuid,
		Name:        displayName,
		Path:        r.normalizePath(path),
		Type:        assetType,
		DisplayName: displayName,
		Identifier:  identifier,
		Address:     address,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(e)
}

func (r *Registry) RemoveEntry(uuid asset.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.assets[uuid]
	if !ok {
		return false
	}
	delete(r.assets, uuid)
	r.unindexLocked(e.Path, uuid)
	return true
}

func (r *Registry) TryGetAssetData(uuid asset.UUID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.assets[uuid]
	return e, ok
}

// TryGetAssetDataByPath returns the first entry registered for path. Sidecars
// register their default subasset first, and the order survives WriteFile and
// ReadFile.
func (r *Registry) TryGetAssetDataByPath(path string) (Entry, bool) {
	path = r.normalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byPath[path]
	if len(ids) == 0 {
		return Entry{}, false
	}
	return r.assets[ids[0]], true
}

// FindAllByPath returns every entry produced from path in registration order.
func (r *Registry) FindAllByPath(path string) []Entry {
	path = r.normalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byPath[path]
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.assets[id])
	}
	return out
}

func (r *Registry) TryGetAssetDataByAddress(address string) (Entry, bool) {
	if address == "" {
		return Entry{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.assets {
		if e.Address == address {
			return e, true
		}
	}
	return Entry{}, false
}

func (r *Registry) HasAsset(uuid asset.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.assets[uuid]
	return ok
}

// FindAllFilesOfType returns the entries of the given type sorted by path.
func (r *Registry) FindAllFilesOfType(assetType asset.Type) []Entry {
	r.mu.RLock()
	out := make([]Entry, 0)
	for _, e := range r.assets {
		if e.Type == assetType {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, compareEntries)
	return out
}

// GetUsedUUIDs returns a snapshot of every registered UUID.
func (r *Registry) GetUsedUUIDs() map[asset.UUID]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[asset.UUID]struct{}, len(r.assets))
	for id := range r.assets {
		out[id] = struct{}{}
	}
	return out
}

// Entries returns a snapshot of every entry, in no particular order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.assets))
	for _, e := range r.assets {
		out = append(out, e)
	}
	return out
}

func (r *Registry) entriesByPath() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.byPath))
	for path := range r.byPath {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	out := make([]Entry, 0, len(r.assets))
	for _, path := range paths {
		for _, uuid := range r.byPath[path] {
			out = append(out, r.assets[uuid])
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

func (r *Registry) putLocked(e Entry) {
	if old, ok := r.assets[e.UUID]; ok && old.Path != e.Path {
		r.unindexLocked(old.Path, e.UUID)
	}
	if !slices.Contains(r.byPath[e.Path], e.UUID) {
		r.byPath[e.Path] = append(r.byPath[e.Path], e.UUID)
	}
	r.assets[e.UUID] = e
}

func (r *Registry) unindexLocked(path string, uuid asset.UUID) {
	ids := slices.DeleteFunc(r.byPath[path], func(id asset.UUID) bool { return id == uuid })
	if len(ids) == 0 {
		delete(r.byPath, path)
		return
	}
	r.byPath[path] = ids
}

func (r *Registry) normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if strings.HasPrefix(path, "$") || r.assetsPath == "" {
		return path
	}
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	rel, err := filepath.Rel(r.assetsPath, filepath.FromSlash(path))
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func compareEntries(a, b Entry) int {
	return cmp.Or(
		strings.Compare(a.Path, b.Path),
		strings.Compare(a.Name, b.Name),
		strings.Compare(a.UUID.String(), b.UUID.String()),
	)
}
