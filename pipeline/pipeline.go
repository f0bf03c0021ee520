// Package pipeline builds the object graph of a running asset pipeline from a
// configuration: registry, import journal, importers, task pool, optional
// filesystem watcher and the file manager tying them together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/config"
	"github.com/stupid-simple/assetpipe/database"
	"github.com/stupid-simple/assetpipe/filemanager"
	"github.com/stupid-simple/assetpipe/importer"
	"github.com/stupid-simple/assetpipe/registry"
	"github.com/stupid-simple/assetpipe/tasks"
	"github.com/stupid-simple/assetpipe/watcher"
)

var ErrUnknownAssetType = errors.New("unknown asset type")

type Params struct {
	Config *config.Config
	Logger zerolog.Logger
	// Watch creates a filesystem watcher; Run needs it.
	Watch bool
	// DryRun keeps the import journal read only.
	DryRun bool
	// Scripts is optional.
	Scripts filemanager.ScriptBuilder
}

type Pipeline struct {
	Config    *config.Config
	Registry  *registry.Registry
	Journal   *database.Database
	Importers *importer.Manager
	Tasks     *tasks.Pool
	Watcher   *watcher.Watcher
	Files     *filemanager.Manager

	cancel context.CancelFunc
	logger zerolog.Logger
}

// New builds a pipeline. Imports dispatched by it are cancelled when ctx is
// done or Close is called.
func New(ctx context.Context, params Params) (_ *Pipeline, err error) {
	cfg := params.Config
	logger := params.Logger

	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		Config: cfg,
		cancel: cancel,
		logger: logger,
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, p.Close())
		}
	}()

	p.Registry = registry.New(logger.With().Str("component", "registry").Logger())
	if err := p.Registry.Initialize(cfg.ProjectPath); err != nil {
		return nil, err
	}

	var journal importer.Journal
	if !cfg.Journal.Disable {
		p.Journal, err = database.Open(cfg.Journal.Path, logger.With().Str("component", "journal").Logger(), params.DryRun)
		if err != nil {
			return nil, fmt.Errorf("could not open import journal: %w", err)
		}
		journal = p.Journal
	}

	p.Importers = importer.NewDefaultManager(importer.ManagerParams{
		Registry: p.Registry,
		Journal:  journal,
		Logger:   logger.With().Str("component", "importer").Logger(),
	})
	if err := registerRawImporters(p.Importers, cfg.RawImporters); err != nil {
		return nil, err
	}

	p.Tasks = tasks.NewPool(tasks.PoolParams{
		Workers: cfg.Workers,
		Logger:  logger.With().Str("component", "tasks").Logger(),
	})

	var dirWatcher filemanager.DirWatcher
	if params.Watch {
		p.Watcher, err = watcher.New(logger.With().Str("component", "watcher").Logger())
		if err != nil {
			return nil, err
		}
		dirWatcher = p.Watcher
	}

	p.Files = filemanager.New(ctx, filemanager.Params{
		Registry:  p.Registry,
		Importers: p.Importers,
		Tasks:     p.Tasks,
		Scripts:   params.Scripts,
		Watcher:   dirWatcher,
		Logger:    logger.With().Str("component", "files").Logger(),
	})

	return p, nil
}

func registerRawImporters(m *importer.Manager, bindings []config.RawImporter) error {
	for _, b := range bindings {
		t := asset.ParseType(b.Type)
		if t == asset.Undefined {
			return fmt.Errorf("%w: %q for extension %s", ErrUnknownAssetType, b.Type, b.Extension)
		}
		// configured bindings override the stock ones
		m.Unregister(b.Extension)
		if err := m.Register(b.Extension, b.Version, importer.RawImporter{Type: t}); err != nil {
			return err
		}
	}
	return nil
}

// MountAll mounts every configured directory, which queues the imports of
// every stale file in it. The project's own assets directory is created when
// missing.
func (p *Pipeline) MountAll(ctx context.Context, opts ...filemanager.MountOption) error {
	for _, m := range p.Config.Mounts {
		if m.Path == p.Registry.AssetsPath() {
			if err := os.MkdirAll(m.Path, 0755); err != nil {
				return err
			}
		}
		if _, err := p.Files.Mount(ctx, m.Name, m.Path, opts...); err != nil {
			return fmt.Errorf("could not mount %s: %w", m.Name, err)
		}
	}
	return nil
}

// Wait blocks until every dispatched import is done.
func (p *Pipeline) Wait(ctx context.Context) error {
	return p.Tasks.Wait(ctx)
}

// Run forwards filesystem events to the file manager until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.Watcher == nil {
		return errors.New("pipeline was built without a watcher")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Watcher.Run(ctx)
	})
	g.Go(func() error {
		p.Files.Run(ctx, p.Watcher.Events())
		return nil
	})

	return g.Wait()
}

// Close cancels running imports, drains the task pool and releases the
// watcher and the journal.
func (p *Pipeline) Close() error {
	p.cancel()

	var errs []error
	if p.Watcher != nil {
		errs = append(errs, p.Watcher.Close())
	}
	if p.Tasks != nil {
		errs = append(errs, p.Tasks.Close())
	}
	if p.Journal != nil {
		errs = append(errs, p.Journal.Close())
	}
	return errors.Join(errs...)
}
