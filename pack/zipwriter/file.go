// Package zipwriter wraps archive/zip so a pack part is only created on disk
// once something is written to it.
package zipwriter

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stupid-simple/assetpipe/fileutils"
)

// NewLazyZipFile returns a part that creates path on its first entry. It
// refuses to overwrite an existing file.
func NewLazyZipFile(path string) *ZipFile {
	return &ZipFile{
		path: path,
		lazyOpenFunc: func() (*os.File, error) {
			return openPartFile(path)
		},
		delFunc: func() error {
			return os.Remove(path)
		},
	}
}

// NewNullZipFile returns a part that writes to the null device, for dry runs.
func NewNullZipFile() *ZipFile {
	return &ZipFile{
		path:         os.DevNull,
		lazyOpenFunc: openNullFile,
		delFunc:      func() error { return nil },
	}
}

type ZipFile struct {
	path         string
	init         bool
	entries      int
	file         *os.File
	writer       *zip.Writer
	lazyOpenFunc func() (*os.File, error)
	delFunc      func() error
}

// Path is known before the file is opened.
func (z *ZipFile) Path() string {
	return z.path
}

// Entries returns the number of entries created so far.
func (z *ZipFile) Entries() int {
	return z.entries
}

// Close flushes the central directory and closes the file, if it was opened.
func (z *ZipFile) Close() error {
	if !z.init {
		return nil
	}
	defer func() {
		z.init = false
	}()
	err := z.writer.Close()
	return errors.Join(err, z.file.Close())
}

// Delete removes the file if it was opened.
func (z *ZipFile) Delete() error {
	if !z.init && z.entries == 0 {
		return nil
	}
	return z.delFunc()
}

func (z *ZipFile) CreateHeader(fh *zip.FileHeader) (io.Writer, error) {
	if !z.init {
		var err error
		z.file, err = z.lazyOpenFunc()
		if err != nil {
			return nil, err
		}
		z.writer = zip.NewWriter(z.file)
		z.init = true
	}

	w, err := z.writer.CreateHeader(fh)
	if err != nil {
		return nil, err
	}
	z.entries++
	return w, nil
}

func openNullFile() (*os.File, error) {
	return os.OpenFile(os.DevNull, os.O_WRONLY, 0600)
}

func openPartFile(path string) (*os.File, error) {
	if fileutils.Exists(path) {
		return nil, fmt.Errorf("file or directory already exists with this name: %s", path)
	}

	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
}
