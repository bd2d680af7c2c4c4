//go:build darwin

package extract

import (
	"io/fs"

	"golang.org/x/sys/unix"
)

func chflags(path string, flags uint32) error {
	if err := unix.Chflags(path, int(flags)); err != nil {
		return &fs.PathError{Op: "chflags", Path: path, Err: err}
	}
	return nil
}
