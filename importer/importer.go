// Package importer maps source file extensions to importers and drives an
// import: load the sidecar, let the importer write compiled outputs, then
// persist the sidecar and the registry.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
	"github.com/stupid-simple/assetpipe/metafile"
	"github.com/stupid-simple/assetpipe/registry"
)

var (
	ErrNoImporter       = errors.New("no importer for file")
	ErrImporterExists   = errors.New("importer already registered")
	ErrInvalidExtension = errors.New("invalid extension")
	ErrNoOutputs        = errors.New("importer produced no outputs")
)

type Request struct {
	// Path is the absolute path of the source file.
	Path string
	// MountedPath is the virtual path of the source file, e.g. $MAIN/cube.fbx.
	MountedPath string
}

func (r Request) MarshalZerologObject(e *zerolog.Event) {
	e.Str("path", r.Path)
	if r.MountedPath != "" {
		e.Str("mounted_path", r.MountedPath)
	}
}

type Importer interface {
	Import(ic *Context) error
}

// ImporterFunc adapts a plain function to Importer.
type ImporterFunc func(ic *Context) error

func (f ImporterFunc) Import(ic *Context) error { return f(ic) }

// Journal records import runs.
type Journal interface {
	RecordImportStart(ctx context.Context, path, mountedPath string, importerVersion uint32) (uint, error)
	RecordImportFinish(ctx context.Context, id uint, outputs int, importErr error) error
}

type registration struct {
	version  uint32
	importer Importer
}

type ManagerParams struct {
	Registry *registry.Registry
	// Journal is optional.
	Journal Journal
	Logger  zerolog.Logger
}

type Manager struct {
	mu        sync.RWMutex
	importers map[string]registration

	registry *registry.Registry
	journal  Journal
	logger   zerolog.Logger
}

func NewManager(params ManagerParams) *Manager {
	return &Manager{
		importers: map[string]registration{},
		registry:  params.Registry,
		journal:   params.Journal,
		logger:    params.Logger,
	}
}

// Register binds an extension, with or without the leading dot and in any
// case, to an importer. version is stamped into every sidecar the importer
// saves; bump it whenever the compiled output format changes.
func (m *Manager) Register(ext string, version uint32, imp Importer) error {
	ext = normalizeExt(ext)
	if ext == "" || ext == asset.MetaExtension {
		return fmt.Errorf("%w: %q", ErrInvalidExtension, ext)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.importers[ext]; ok {
		return fmt.Errorf("%w: %s", ErrImporterExists, ext)
	}
	m.importers[ext] = registration{version: version, importer: imp}
	return nil
}

func (m *Manager) Unregister(ext string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.importers, normalizeExt(ext))
}

// Extensions returns the registered extensions, sorted.
func (m *Manager) Extensions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.importers))
	for ext := range m.importers {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

func (m *Manager) HasImporterForPath(path string) bool {
	_, ok := m.lookup(path)
	return ok
}

// GetImporterVersionByPath returns 0 when no importer handles path.
func (m *Manager) GetImporterVersionByPath(path string) uint32 {
	reg, ok := m.lookup(path)
	if !ok {
		return 0
	}
	return reg.version
}

// Import runs the importer registered for the request path. On failure the
// sidecar and the registry are left untouched, so the file stays stale.
func (m *Manager) Import(ctx context.Context, req Request) (err error) {
	reg, ok := m.lookup(req.Path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoImporter, req.Path)
	}

	logger := m.logger.With().Object("request", req).Logger()

	var outputs int
	if m.journal != nil {
		id, jerr := m.journal.RecordImportStart(ctx, req.Path, req.MountedPath, reg.version)
		if jerr != nil {
			logger.Warn().Err(jerr).Msg("cannot record import start")
		}
		defer func() {
			// the import outcome is recorded even when ctx was cancelled mid-run
			if jerr := m.journal.RecordImportFinish(context.WithoutCancel(ctx), id, outputs, err); jerr != nil {
				logger.Warn().Err(jerr).Msg("cannot record import finish")
			}
		}()
	}

	start := time.Now()
	srcBefore, _ := fileutils.ModTime(req.Path)
	ic := &Context{
		ctx:      ctx,
		Request:  req,
		Meta:     metafile.Load(req.Path, req.MountedPath),
		registry: m.registry,
		logger:   logger,
	}

	if err := reg.importer.Import(ic); err != nil {
		ic.discard()
		logger.Error().Err(err).Msg("import failed")
		return fmt.Errorf("import %s: %w", req.Path, err)
	}
	if err := ctx.Err(); err != nil {
		ic.discard()
		return err
	}
	if len(ic.written) == 0 {
		logger.Error().Msg("import produced no outputs")
		return fmt.Errorf("import %s: %w", req.Path, ErrNoOutputs)
	}

	if err := ic.Meta.Save(m.registry, reg.version); err != nil {
		ic.discard()
		logger.Error().Err(err).Msg("cannot save meta file")
		return err
	}

	// outputs must not look older than the sidecar that was just written,
	// unless the source changed under the importer: then they are dated back
	// to the source version that was read, so the file stays stale
	touchAt := time.Now()
	if srcAfter, ok := fileutils.ModTime(req.Path); ok && !srcAfter.Equal(srcBefore) {
		logger.Info().Time("source_modified", srcAfter).Msg("source changed during import, outputs left stale")
		touchAt = srcBefore
	}
	for _, uuid := range ic.written {
		if err := fileutils.Touch(m.registry.CompiledPath(uuid), touchAt); err != nil {
			logger.Warn().Err(err).Stringer("uuid", uuid).Msg("cannot touch compiled file")
		}
	}

	if err := m.registry.WriteFile(); err != nil {
		return err
	}

	outputs = len(ic.written)
	logger.Info().
		Int("outputs", outputs).
		Dur("elapsed", time.Since(start)).
		Msg("imported")
	return nil
}

func (m *Manager) lookup(path string) (registration, bool) {
	ext := asset.Ext(path)
	if ext == "" || ext == asset.MetaExtension {
		return registration{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.importers[ext]
	return reg, ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Context is handed to an importer for one import. It is not safe for
// concurrent use.
type Context struct {
	ctx      context.Context
	Request  Request
	Meta     *metafile.File
	registry *registry.Registry
	logger   zerolog.Logger
	written  []asset.UUID
}

func (c *Context) Context() context.Context { return c.ctx }
func (c *Context) Logger() zerolog.Logger   { return c.logger }

// ReadSource returns the bytes of the source file.
func (c *Context) ReadSource() ([]byte, error) {
	return os.ReadFile(c.Request.Path)
}

// WriteCompiled atomically writes the compiled output of uuid.
func (c *Context) WriteCompiled(uuid asset.UUID, data []byte) error {
	if !uuid.IsValid() {
		return errors.New("write compiled output: nil uuid")
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}
	if err := fileutils.WriteFileAtomic(c.registry.CompiledPath(uuid), data, 0644); err != nil {
		return fmt.Errorf("write compiled output %s: %w", uuid, err)
	}
	if !slices.Contains(c.written, uuid) {
		c.written = append(c.written, uuid)
	}
	c.logger.Debug().Stringer("uuid", uuid).Int("size", len(data)).Msg("compiled output written")
	return nil
}

// Written returns the UUIDs written so far.
func (c *Context) Written() []asset.UUID {
	return slices.Clone(c.written)
}

// discard removes outputs of a failed import whose UUID was allocated by that
// same import. Outputs of UUIDs already known to the registry are kept; they
// are stale and the next check will find them so.
func (c *Context) discard() {
	for _, uuid := range c.written {
		if c.registry.HasAsset(uuid) {
			continue
		}
		if err := os.Remove(c.registry.CompiledPath(uuid)); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn().Err(err).Stringer("uuid", uuid).Msg("cannot remove orphaned compiled output")
		}
	}
}
