package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/config"
	"github.com/stupid-simple/assetpipe/database"
	"github.com/stupid-simple/assetpipe/metafile"
	"github.com/stupid-simple/assetpipe/pipeline"
	"github.com/stupid-simple/assetpipe/scheduler"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	cfg.Workers = 2
	cfg.RawImporters = []config.RawImporter{{Extension: "fbx", Type: "Mesh3d", Version: 1}}
	return cfg
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func defaultUUID(t *testing.T, path string) asset.UUID {
	t.Helper()
	uuid, ok := metafile.Load(path, "").TryGetDefaultSubassetUUID()
	require.True(t, ok, "no default subasset for %s", path)
	return uuid
}

func TestPipeline_ImportOnMount(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	cfg := newConfig(t)
	assets := filepath.Join(cfg.ProjectPath, "assets")
	write(t, filepath.Join(assets, "cube.fbx"), "mesh")
	write(t, filepath.Join(assets, "textures", "grass.png"), "pixels")
	write(t, filepath.Join(assets, "readme.txt"), "not an asset")

	p, err := pipeline.New(context.Background(), pipeline.Params{Config: cfg, Logger: logger})
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	require.NoError(t, p.MountAll(context.Background()))
	require.NoError(t, p.Wait(context.Background()))

	assert.Equal(t, 2, p.Registry.Len())
	cube := defaultUUID(t, filepath.Join(assets, "cube.fbx"))
	entry, ok := p.Registry.TryGetAssetData(cube)
	require.True(t, ok)
	assert.Equal(t, "$MAIN/cube.fbx", entry.Path)
	assert.Equal(t, asset.Mesh3d, entry.Type)
	assert.FileExists(t, p.Registry.CompiledPath(cube))

	var runs []database.ImportRun
	for run := range p.Journal.FindImportRuns(context.Background()) {
		runs = append(runs, run)
	}
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, database.ImportStatusSucceeded, run.Status)
		assert.Equal(t, 1, run.Outputs)
	}

	// everything is fresh, a second mount pass dispatches nothing
	mp, ok := p.Files.MountPoint(config.DefaultMountName)
	require.True(t, ok)
	assert.Zero(t, p.Files.PreprocessFilesOnMount(context.Background(), mp, mp.Path))
}

func TestPipeline_UnknownRawImporterType(t *testing.T) {
	cfg := newConfig(t)
	cfg.RawImporters = []config.RawImporter{{Extension: "xyz", Type: "Hologram", Version: 1}}

	_, err := pipeline.New(context.Background(), pipeline.Params{Config: cfg, Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, pipeline.ErrUnknownAssetType)
}

func TestPipeline_JournalDisabled(t *testing.T) {
	cfg := newConfig(t)
	cfg.Journal.Disable = true
	write(t, filepath.Join(cfg.ProjectPath, "assets", "cube.fbx"), "mesh")

	p, err := pipeline.New(context.Background(), pipeline.Params{Config: cfg, Logger: zerolog.New(zerolog.NewTestWriter(t))})
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	assert.Nil(t, p.Journal)
	require.NoError(t, p.MountAll(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, 1, p.Registry.Len())
	assert.NoFileExists(t, cfg.Journal.Path)

	n, err := p.PruneJournal(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPipeline_Cleanup(t *testing.T) {
	cfg := newConfig(t)
	cube := filepath.Join(cfg.ProjectPath, "assets", "cube.fbx")
	write(t, cube, "mesh")

	p, err := pipeline.New(context.Background(), pipeline.Params{Config: cfg, Logger: zerolog.New(zerolog.NewTestWriter(t))})
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	require.NoError(t, p.MountAll(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	uuid := defaultUUID(t, cube)

	// the source and its sidecar go away while nothing is watching
	require.NoError(t, os.Remove(cube))
	require.NoError(t, os.Remove(asset.MetaPath(cube)))

	report, err := p.Cleanup(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, report.RemovedEntries, 1)
	assert.Equal(t, uuid, report.RemovedEntries[0].UUID)
	assert.NoFileExists(t, p.Registry.CompiledPath(uuid))
	assert.Zero(t, p.Registry.Len())
}

func TestPipeline_ScheduleMaintenance(t *testing.T) {
	cfg := newConfig(t)
	cfg.Cleanup.Schedule = "*/5 * * * *"
	cfg.Journal.Schedule = "0 3 * * *"

	p, err := pipeline.New(context.Background(), pipeline.Params{Config: cfg, Logger: zerolog.New(zerolog.NewTestWriter(t))})
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	s := scheduler.NewScheduler(scheduler.SchedulerParams{Logger: zerolog.New(zerolog.NewTestWriter(t))})
	require.NoError(t, p.ScheduleMaintenance(context.Background(), s, cfg, true))

	jobs := s.Jobs()
	slices.Sort(jobs)
	assert.Equal(t, []string{pipeline.CleanupJobName, pipeline.PruneJobName}, jobs)

	cfg.Cleanup.Schedule = "not a schedule"
	s.RemoveJobs()
	assert.Error(t, p.ScheduleMaintenance(context.Background(), s, cfg, true))
}

func TestPipeline_Watch(t *testing.T) {
	cfg := newConfig(t)
	p, err := pipeline.New(context.Background(), pipeline.Params{
		Config: cfg,
		Logger: zerolog.New(zerolog.NewTestWriter(t)),
		Watch:  true,
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Close()) }()

	require.NoError(t, p.MountAll(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cube := filepath.Join(cfg.ProjectPath, "assets", "models", "cube.fbx")
	write(t, cube, "mesh")

	require.Eventually(t, func() bool {
		uuid, ok := metafile.Load(cube, "").TryGetDefaultSubassetUUID()
		return ok && p.Registry.HasAsset(uuid)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
