package filemanager

import (
	"errors"

	"github.com/stupid-simple/assetpipe/importer"
)

type inflightImport struct {
	rerun bool
}

// DispatchTask submits an import of path. At most one import per path is in
// flight: a dispatch for a path already being imported is coalesced, and the
// path is checked again once the running import is done.
func (m *Manager) DispatchTask(mp MountPoint, path string) {
	m.inflightMu.Lock()
	if st, ok := m.inflight[path]; ok {
		st.rerun = true
		m.inflightMu.Unlock()
		m.logger.Debug().Str("path", path).Msg("import already in flight, coalescing")
		return
	}
	m.inflight[path] = &inflightImport{}
	m.inflightMu.Unlock()

	req := importer.Request{Path: path, MountedPath: mountedPath(mp, path)}
	name := "import " + req.MountedPath
	if req.MountedPath == "" {
		name = "import " + path
	}

	m.logger.Debug().Object("request", req).Msg("dispatching import")
	m.tasks.Execute(name, func() {
		m.runImport(mp, req)
	})
}

// InFlight returns the number of imports dispatched and not yet finished.
func (m *Manager) InFlight() int {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	return len(m.inflight)
}

func (m *Manager) runImport(mp MountPoint, req importer.Request) {
	// deferred so that an importer panic, recovered by the task runner, does
	// not leave the path in flight
	defer m.finishImport(mp, req.Path)

	err := m.importers.Import(m.ctx, req)
	if err != nil && !errors.Is(err, m.ctx.Err()) {
		m.logger.Warn().Err(err).Object("request", req).Msg("import did not complete, file stays stale")
	}
}

func (m *Manager) finishImport(mp MountPoint, path string) {
	m.inflightMu.Lock()
	st := m.inflight[path]
	delete(m.inflight, path)
	m.inflightMu.Unlock()

	if st != nil && st.rerun && m.ctx.Err() == nil {
		m.UpdateCompiledFileIfNecessary(mp, path)
	}
}
