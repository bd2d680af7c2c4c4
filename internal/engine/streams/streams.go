// Package streams provides the byte stream stages at both ends of a chain:
// sequential reads from an existing file and exclusive writes to a new one.
package streams

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/spf13/afero"
)

// FileMode is the permission given to files created by OpenWrite.
const FileMode fs.FileMode = 0o644

type Reader struct {
	fs     afero.Fs
	path   string
	file   afero.File
	closed bool
}

// OpenRead opens path for sequential reading.
func OpenRead(fsys afero.Fs, path string) (*Reader, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, engine.ClassifyIO("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, engine.ClassifyIO("stat", path, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, engine.NewError(engine.ErrPathInvalid, "open", path, fmt.Errorf("is a directory"))
	}
	return &Reader{fs: fsys, path: path, file: f}, nil
}

func (r *Reader) Name() string {
	return fmt.Sprintf("read(%s)", r.path)
}

func (r *Reader) Kind() string {
	return "read"
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("read %s: %w", r.path, fs.ErrClosed)
	}
	n, err := r.file.Read(p)
	if err != nil && err != io.EOF {
		return n, engine.ClassifyIO("read", r.path, err)
	}
	return n, err
}

// Close releases the file. It is safe to call more than once.
func (r *Reader) Close(context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", r.path, err)
	}
	return nil
}

type Writer struct {
	fs      afero.Fs
	path    string
	file    afero.File
	written int64
	closed  bool
}

// OpenWrite creates path for writing. The path must not exist: a surviving
// file is never truncated and yields engine.ErrAlreadyExists.
func OpenWrite(fsys afero.Fs, path string) (*Writer, error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, FileMode)
	if err != nil {
		return nil, engine.ClassifyIO("create", path, err)
	}
	return &Writer{fs: fsys, path: path, file: f}, nil
}

func (w *Writer) Name() string {
	return fmt.Sprintf("write(%s)", w.path)
}

func (w *Writer) Kind() string {
	return "write"
}

func (w *Writer) Path() string {
	return w.path
}

// Written returns the number of bytes accepted so far.
func (w *Writer) Written() int64 {
	return w.written
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write %s: %w", w.path, fs.ErrClosed)
	}
	n, err := w.file.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, engine.ClassifyIO("write", w.path, err)
	}
	return n, nil
}

// Close flushes and releases the file. It is safe to call more than once.
func (w *Writer) Close(context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", w.path, err)
	}
	return nil
}

// Copy drives a byte chain to completion: everything src produces is
// written to dst.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("failed to copy stream: %w", err)
	}
	return n, nil
}
