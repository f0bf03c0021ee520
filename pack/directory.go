package pack

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/assetpipe/asset"
	"github.com/stupid-simple/assetpipe/fileutils"
)

// DirectoryVersion is the version of the directory document written by Pack.
const DirectoryVersion uint32 = 1

// Directory describes a pack: its parts, in order, and where every asset is
// stored.
type Directory struct {
	Version uint32           `json:"version"`
	Parts   []string         `json:"parts"`
	Assets  []DirectoryEntry `json:"assets"`
}

type DirectoryEntry struct {
	UUID       asset.UUID `json:"uuid"`
	Type       asset.Type `json:"assetType"`
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	Identifier string     `json:"subassetIdentifier,omitempty"`
	Address    string     `json:"address,omitempty"`
	Part       int        `json:"part"`
	Checksum   uint64     `json:"checksum"`
	Size       int64      `json:"size"`
}

func (e DirectoryEntry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Stringer("uuid", e.UUID)
	ev.Stringer("type", e.Type)
	ev.Str("path", e.Path)
	ev.Int("part", e.Part)
	ev.Int64("size", e.Size)
}

// TotalSize is the uncompressed size of every asset in the pack.
func (d Directory) TotalSize() int64 {
	var n int64
	for _, e := range d.Assets {
		n += e.Size
	}
	return n
}

func ReadDirectory(path string) (Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Directory{}, fmt.Errorf("read pack directory: %w", err)
	}
	d := Directory{}
	if err := json.Unmarshal(raw, &d); err != nil {
		return Directory{}, fmt.Errorf("decode pack directory %s: %w", path, err)
	}
	if d.Version > DirectoryVersion {
		return Directory{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	for _, e := range d.Assets {
		if e.Part < 0 || e.Part >= len(d.Parts) {
			return Directory{}, fmt.Errorf("%w: asset %s references part %d", ErrCorruptPack, e.UUID, e.Part)
		}
	}
	return d, nil
}

func writeDirectory(path string, d Directory) error {
	raw, err := json.MarshalIndent(d, "", "\t")
	if err != nil {
		return fmt.Errorf("encode pack directory: %w", err)
	}
	return fileutils.WriteFileAtomic(path, raw, 0644)
}
