package asset

import (
	"errors"
	"io/fs"
	"time"

	"github.com/rs/zerolog"
)

var ErrNotRegular = errors.New("not a regular file")

func NewFromFS(path string, info fs.FileInfo) (File, error) {
	if !info.Mode().IsRegular() {
		return nil, ErrNotRegular
	}

	return &fsFile{
		path: path,
		info: info,
	}, nil
}

type fsFile struct {
	path string
	info fs.FileInfo
}

// Name implements File.
func (f *fsFile) Name() string {
	return f.info.Name()
}

// Ext implements File.
func (f *fsFile) Ext() string {
	return Ext(f.path)
}

// Size implements File.
func (f *fsFile) Size() int64 {
	return f.info.Size()
}

// ModTime implements File.
func (f *fsFile) ModTime() time.Time {
	return f.info.ModTime()
}

// MarshalZerologObject implements File.
func (f *fsFile) MarshalZerologObject(e *zerolog.Event) {
	e.Str("path", f.path)
	e.Int64("size", f.info.Size())
	e.Time("mod_time", f.info.ModTime())
}

// Path implements File.
func (f *fsFile) Path() string {
	return f.path
}
