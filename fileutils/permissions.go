package fileutils

import (
	"errors"
	"os"
)

// VerifyWritable returns nil if dirPath is a directory and a file can be
// created inside it. The temporary file is hidden so directory sweeps skip it.
func VerifyWritable(dirPath string) error {
	fil, err := os.CreateTemp(dirPath, ".writable-*")
	if err != nil {
		return err
	}
	return errors.Join(fil.Close(), os.Remove(fil.Name()))
}
