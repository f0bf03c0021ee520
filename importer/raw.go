package importer

import (
	"path/filepath"
	"strings"

	"github.com/stupid-simple/assetpipe/asset"
)

// RawImporter copies the source bytes unchanged into a single default
// subasset named after the file.
type RawImporter struct {
	Type asset.Type
}

func (r RawImporter) Import(ic *Context) error {
	data, err := ic.ReadSource()
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(ic.Request.Path), filepath.Ext(ic.Request.Path))
	uuid := ic.Meta.GetOrCreateDefaultSubassetUUID(name, r.Type)
	return ic.WriteCompiled(uuid, data)
}

// RawImporterVersion is the version stamped by the stock raw importers.
const RawImporterVersion uint32 = 1

var defaultExtensions = map[string]asset.Type{
	"glsl":   asset.Shader,
	"hlsl":   asset.Shader,
	"png":    asset.Texture,
	"jpg":    asset.Texture,
	"jpeg":   asset.Texture,
	"tga":    asset.Texture,
	"bmp":    asset.Texture,
	"psd":    asset.Texture,
	"dds":    asset.Texture,
	"gmat":   asset.Material,
	"wav":    asset.AudioClip,
	"ogg":    asset.AudioClip,
	"gscene": asset.Scene,
}

// NewDefaultManager returns a manager with the raw importer registered for
// the stock extensions.
func NewDefaultManager(params ManagerParams) *Manager {
	m := NewManager(params)
	for ext, t := range defaultExtensions {
		// the table has no duplicates
		_ = m.Register(ext, RawImporterVersion, RawImporter{Type: t})
	}
	return m
}
