package runner

import (
	"errors"
	"io/fs"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/spf13/afero"
)

// Filesystem answers the existence and size questions of the orchestrator.
type Filesystem struct {
	fs afero.Fs
}

func NewFilesystem(fsys afero.Fs) *Filesystem {
	return &Filesystem{fs: fsys}
}

// Exists reports whether path exists without following a final symlink.
func (f *Filesystem) Exists(path string) (bool, error) {
	_, err := f.lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, engine.ClassifyIO("stat", path, err)
	}
	return true, nil
}

func (f *Filesystem) IsDir(path string) (bool, error) {
	info, err := f.lstat(path)
	if err != nil {
		return false, engine.ClassifyIO("stat", path, err)
	}
	return info.IsDir(), nil
}

// Remove deletes path and everything below it.
func (f *Filesystem) Remove(path string) error {
	if err := f.fs.RemoveAll(path); err != nil {
		return engine.ClassifyIO("remove", path, err)
	}
	return nil
}

func (f *Filesystem) FileSize(path string) (uint64, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return 0, engine.ClassifyIO("stat", path, err)
	}
	return uint64(info.Size()), nil
}

// TotalSize sums the sizes of the regular files reachable from path without
// following symlinks. A regular file counts itself.
func (f *Filesystem) TotalSize(path string) (uint64, error) {
	var total uint64
	err := afero.Walk(f.fs, path, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	if err != nil {
		return 0, engine.ClassifyIO("walk", path, err)
	}
	return total, nil
}

// CreateDirectory creates path, whose parent must exist.
func (f *Filesystem) CreateDirectory(path string) error {
	if err := f.fs.Mkdir(path, 0o755); err != nil {
		return engine.NewError(engine.ErrDirectoryCreateFailed, "create directory", path, err)
	}
	return nil
}

func (f *Filesystem) lstat(path string) (fs.FileInfo, error) {
	if l, ok := f.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return f.fs.Stat(path)
}
