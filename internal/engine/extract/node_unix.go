//go:build linux || darwin

package extract

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/lzfse-cli/lzfse-cli/internal/engine/archive"
	"golang.org/x/sys/unix"
)

func mknod(path string, h *archive.Header) error {
	perm := uint32(h.Mode.Perm())
	var err error
	switch h.Type {
	case archive.TypeFIFO:
		err = unix.Mkfifo(path, perm)
	case archive.TypeCharDevice:
		err = unix.Mknod(path, unix.S_IFCHR|perm, int(h.Device))
	case archive.TypeBlockDevice:
		err = unix.Mknod(path, unix.S_IFBLK|perm, int(h.Device))
	default:
		return fmt.Errorf("%s is not a special file type", h.Type)
	}
	if err != nil {
		return &fs.PathError{Op: "mknod", Path: path, Err: err}
	}
	return nil
}

func lchown(path string, uid, gid int) error {
	if err := unix.Lchown(path, uid, gid); err != nil {
		return &fs.PathError{Op: "lchown", Path: path, Err: err}
	}
	return nil
}

func lchtimes(path string, mtime time.Time) error {
	ts := unix.NsecToTimespec(mtime.UnixNano())
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, []unix.Timespec{ts, ts}, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return &fs.PathError{Op: "lutimes", Path: path, Err: err}
	}
	return nil
}
