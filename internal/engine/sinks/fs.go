package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/spf13/afero"
)

// FilesystemSink mirrors published artifacts into a directory. Each object
// is written to a temporary name and renamed into place once complete, so a
// reader of the directory never sees a partial artifact.
type FilesystemSink struct {
	fs   afero.Fs
	root string
}

func NewFilesystemSink(fs afero.Fs, root string) engine.Sink {
	return &FilesystemSink{fs: fs, root: filepath.Clean(root)}
}

// OpenFilesystemSink mirrors into root,
// creating it if needed.
func OpenFilesystemSink(fs afero.Fs, root string) (engine.Sink, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, engine.NewError(engine.ErrDirectoryCreateFailed, "mirror", root, err)
	}
	return NewFilesystemSink(fs, root), nil
}

func (s *FilesystemSink) Name() string {
	return fmt.Sprintf("filesystem(%s)", s.root)
}

func (s *FilesystemSink) Kind() string {
	return "filesystem"
}

func (s *FilesystemSink) Write(ctx context.Context, name string, data io.Reader) (err error) {
	if !filepath.IsLocal(name) {
		return engine.NewError(engine.ErrPathInvalid, "mirror", name, fmt.Errorf("object name escapes %s", s.root))
	}
	dst := filepath.Join(s.root, name)
	if dir := filepath.Dir(dst); dir != s.root {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return engine.NewError(engine.ErrDirectoryCreateFailed, "mirror", dir, err)
		}
	}

	f, err := afero.TempFile(s.fs, filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return engine.ClassifyIO("create", dst, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp)
		}
	}()

	if _, err = io.Copy(f, contextReader{ctx: ctx, r: data}); err != nil {
		return errors.Join(engine.ClassifyIO("write", dst, err), f.Close())
	}
	if err = f.Close(); err != nil {
		return engine.ClassifyIO("close", dst, err)
	}
	if err = s.fs.Rename(tmp, dst); err != nil {
		return engine.ClassifyIO("rename", dst, err)
	}
	return nil
}

func (s *FilesystemSink) Close(ctx context.Context) error {
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
