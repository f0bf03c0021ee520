package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, reg.Initialize(t.TempDir()))
	return reg
}

func TestInitialize_Layout(t *testing.T) {
	project := t.TempDir()
	reg := registry.New(zerolog.Nop())
	require.NoError(t, reg.Initialize(project))

	assert.Equal(t, filepath.Join(project, "assets"), reg.AssetsPath())
	assert.Equal(t, filepath.Join(project, "compiledAssets"), reg.CompiledAssetsPath())
	assert.Equal(t, filepath.Join(project, "compiledAssets", "_assetRegistry.json"), reg.RegistryPath())
	assert.DirExists(t, reg.CompiledAssetsPath())
	assert.Equal(t, 0, reg.Len())
}

func TestWriteRead_RoundTrip(t *testing.T) {
	project := t.TempDir()
	reg := registry.New(zerolog.Nop())
	require.NoError(t, reg.Initialize(project))

	cube := asset.NewUUID()
	mat := asset.NewUUID()
	reg.UpdateEntry("$MAIN/cube.fbx", "cube", "Cube", "$MAIN/cube.fbx:cube", cube, asset.Mesh3d)
	reg.UpdateEntry("$MAIN/cube.fbx", "cube_mat", "", "", mat, asset.Material)
	require.NoError(t, reg.WriteFile())

	other := registry.New(zerolog.Nop())
	require.NoError(t, other.Initialize(project))

	assert.ElementsMatch(t, reg.Entries(), other.Entries())

	e, ok := other.TryGetAssetData(mat)
	require.True(t, ok)
	assert.Equal(t, "cube_mat", e.Name, "display name falls back to identifier")
	assert.Equal(t, asset.Material, e.Type)
}

func TestReadFile_Malformed(t *testing.T) {
	project := t.TempDir()
	compiled := filepath.Join(project, "compiledAssets")
	require.NoError(t, os.MkdirAll(compiled, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(compiled, "_assetRegistry.json"), []byte("[{"), 0644))

	reg := registry.New(zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, reg.Initialize(project))
	assert.Equal(t, 0, reg.Len())
}

func TestReadFile_Format(t *testing.T) {
	project := t.TempDir()
	compiled := filepath.Join(project, "compiledAssets")
	require.NoError(t, os.MkdirAll(compiled, 0755))
	doc := `[{"name":"grass","path":"$MAIN/grass.png","uuid":"3f2504e0-4f89-41d3-9a0c-0305e82c3301","assetType":"Texture"}]`
	require.NoError(t, os.WriteFile(filepath.Join(compiled, "_assetRegistry.json"), []byte(doc), 0644))

	reg := registry.New(zerolog.Nop())
	require.NoError(t, reg.Initialize(project))

	e, ok := reg.TryGetAssetDataByPath("$MAIN/grass.png")
	require.True(t, ok)
	assert.Equal(t, asset.MustParseUUID("3f2504e0-4f89-41d3-9a0c-0305e82c3301"), e.UUID)
	assert.Equal(t, asset.Texture, e.Type)
}

func TestUpdateEntry_PathNormalization(t *testing.T) {
	reg := newRegistry(t)

	abs := filepath.Join(reg.AssetsPath(), "models", "cube.fbx")
	u := asset.NewUUID()
	reg.UpdateEntry(abs, "cube", "cube", "", u, asset.Mesh3d)

	e, ok := reg.TryGetAssetData(u)
	require.True(t, ok)
	assert.Equal(t, "models/cube.fbx", e.Path)

	v := asset.NewUUID()
	reg.UpdateEntry(`$MAIN\models\rock.fbx`, "rock", "rock", "", v, asset.Mesh3d)
	_, ok = reg.TryGetAssetDataByPath("$MAIN/models/rock.fbx")
	assert.True(t, ok)
}

func TestPathIndex(t *testing.T) {
	reg := newRegistry(t)

	def := asset.NewUUID()
	sub := asset.NewUUID()
	reg.UpdateEntry("$MAIN/cube.fbx", "cube", "", "", def, asset.Scene)
	reg.UpdateEntry("$MAIN/cube.fbx", "mesh", "", "", sub, asset.Mesh3d)

	e, ok := reg.TryGetAssetDataByPath("$MAIN/cube.fbx")
	require.True(t, ok)
	assert.Equal(t, def, e.UUID)
	assert.Len(t, reg.FindAllByPath("$MAIN/cube.fbx"), 2)

	// moving an entry re-indexes it
	reg.UpdateEntry("$MAIN/moved.fbx", "cube", "", "", def, asset.Scene)
	e, ok = reg.TryGetAssetDataByPath("$MAIN/cube.fbx")
	require.True(t, ok)
	assert.Equal(t, sub, e.UUID)

	assert.True(t, reg.RemoveEntry(sub))
	assert.False(t, reg.RemoveEntry(sub))
	_, ok = reg.TryGetAssetDataByPath("$MAIN/cube.fbx")
	assert.False(t, ok)
	assert.False(t, reg.HasAsset(sub))
	assert.True(t, reg.HasAsset(def))
}

func TestPathIndex_SurvivesReload(t *testing.T) {
	project := t.TempDir()
	reg := registry.New(zerolog.Nop())
	require.NoError(t, reg.Initialize(project))

	def, sub := asset.NewUUID(), asset.NewUUID()
	if def.String() < sub.String() {
		def, sub = sub, def
	}
	reg.UpdateEntry("$MAIN/cube.fbx", "cube", "", "", def, asset.Scene)
	reg.UpdateEntry("$MAIN/cube.fbx", "mesh", "", "", sub, asset.Mesh3d)
	require.NoError(t, reg.WriteFile())

	loaded := registry.New(zerolog.Nop())
	require.NoError(t, loaded.Initialize(project))
	e, ok := loaded.TryGetAssetDataByPath("$MAIN/cube.fbx")
	require.True(t, ok)
	assert.Equal(t, def, e.UUID)
}

func TestLookups(t *testing.T) {
	reg := newRegistry(t)

	a := asset.NewUUID()
	b := asset.NewUUID()
	c := asset.NewUUID()
	reg.UpdateEntry("$MAIN/b.png", "b", "", "tex/b", b, asset.Texture)
	reg.UpdateEntry("$MAIN/a.png", "a", "", "tex/a", a, asset.Texture)
	reg.UpdateEntry("$MAIN/lit.glsl", "lit", "", "", c, asset.Shader)

	textures := reg.FindAllFilesOfType(asset.Texture)
	require.Len(t, textures, 2)
	assert.Equal(t, a, textures[0].UUID)
	assert.Equal(t, b, textures[1].UUID)
	assert.Empty(t, reg.FindAllFilesOfType(asset.Animation))

	e, ok := reg.TryGetAssetDataByAddress("tex/b")
	require.True(t, ok)
	assert.Equal(t, b, e.UUID)
	_, ok = reg.TryGetAssetDataByAddress("")
	assert.False(t, ok)

	used := reg.GetUsedUUIDs()
	assert.Len(t, used, 3)
	assert.Contains(t, used, c)

	assert.Equal(t, filepath.Join(reg.CompiledAssetsPath(), c.String()), reg.CompiledPath(c))
}

func TestUpdateEntry_IgnoresNilUUID(t *testing.T) {
	reg := newRegistry(t)
	reg.UpdateEntry("$MAIN/a.png", "a", "", "", asset.NilUUID, asset.Texture)
	assert.Equal(t, 0, reg.Len())
}
