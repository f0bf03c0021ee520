package asset

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MetaExtension is the extension of the sidecar file stored next to every
// source asset.
const MetaExtension = ".meta"

// File is a source file found inside a mounted directory.
type File interface {
	zerolog.LogObjectMarshaler
	Path() string
	Name() string // base name of the file
	Ext() string  // lower case extension, including the dot
	Size() int64
	ModTime() time.Time
}

// MetaPath returns the sidecar path for a source file.
func MetaPath(path string) string {
	return path + MetaExtension
}

// IsMetaPath reports whether path names a sidecar file.
func IsMetaPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), MetaExtension)
}

// SourcePathFromMeta strips the sidecar extension.
func SourcePathFromMeta(metaPath string) string {
	return strings.TrimSuffix(metaPath, filepath.Ext(metaPath))
}

// Ext returns the lower case extension of path.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
