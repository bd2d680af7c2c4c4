// Package extract implements the extraction stage: it materializes decoded
// archive entries below a root directory.
//
// Failures to apply ownership, permissions or times, and failures to create
// device nodes, that are caused by missing privileges do not stop the
// extraction. They are recorded per entry as skipped and the next entry is
// processed. Every other failure aborts.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/lzfse-cli/lzfse-cli/internal/engine/archive"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// EntrySource yields decoded entries; Read returns the data of the entry
// last returned by Next.
type EntrySource interface {
	Next() (*archive.Header, error)
	io.Reader
}

type Report struct {
	Entries []engine.EntryResult
}

// Skipped returns the number of entries with metadata left unapplied.
func (r Report) Skipped() int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == engine.OutcomeSkippedPermission {
			n++
		}
	}
	return n
}

type Extractor struct {
	logger *zap.Logger
	fs     afero.Fs
	root   string

	report Report
	// directories get their metadata once all entries are written
	dirs   []pendingDir
	closed bool
}

type pendingDir struct {
	header *archive.Header
	index  int
}

// New returns an extraction stage writing below root, which must exist.
func New(logger *zap.Logger, fsys afero.Fs, root string) *Extractor {
	return &Extractor{
		logger: logger,
		fs:     fsys,
		root:   root,
	}
}

func (x *Extractor) Name() string {
	return fmt.Sprintf("extract(%s)", x.root)
}

func (x *Extractor) Kind() string {
	return "extract"
}

func (x *Extractor) Close(context.Context) error {
	x.closed = true
	return nil
}

// Extract consumes src until its end. The report lists the entries handled
// so far, also when an error is returned.
func (x *Extractor) Extract(ctx context.Context, src EntrySource) (Report, error) {
	if x.closed {
		return x.report, fmt.Errorf("extract: %w", fs.ErrClosed)
	}

	info, err := x.fs.Stat(x.root)
	if err != nil {
		return x.report, engine.ClassifyIO("stat", x.root, err)
	}
	if !info.IsDir() {
		return x.report, engine.NewError(engine.ErrPathInvalid, "extract", x.root, fmt.Errorf("not a directory"))
	}

	for {
		if err := ctx.Err(); err != nil {
			return x.report, err
		}
		h, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return x.report, err
		}
		if err := x.entry(h, src); err != nil {
			return x.report, err
		}
	}

	if err := x.finishDirectories(); err != nil {
		return x.report, err
	}

	x.logger.Debug("extraction finished",
		zap.String("root", x.root),
		zap.Int("entries", len(x.report.Entries)),
		zap.Int("skipped", x.report.Skipped()),
	)
	return x.report, nil
}

func (x *Extractor) target(h *archive.Header) string {
	return filepath.Join(x.root, filepath.FromSlash(h.Path))
}

func (x *Extractor) entry(h *archive.Header, data io.Reader) error {
	target := x.target(h)
	x.logger.Debug("extracting entry", zap.String("path", h.Path), zap.Stringer("type", h.Type))

	result := engine.EntryResult{
		Path:    displayPath(h.Path),
		Type:    h.Type.String(),
		Outcome: engine.OutcomeApplied,
	}

	var err error
	switch h.Type {
	case archive.TypeDirectory:
		if h.Path != "" {
			if err := x.fs.Mkdir(target, 0o700); err != nil {
				return engine.ClassifyIO("create directory", target, err)
			}
		}
		x.report.Entries = append(x.report.Entries, result)
		x.dirs = append(x.dirs, pendingDir{header: h, index: len(x.report.Entries) - 1})
		return nil
	case archive.TypeRegular:
		err = x.writeFile(target, data)
	case archive.TypeSymlink:
		err = x.symlink(h.Link, target)
	case archive.TypeHardlink:
		err = x.hardlink(filepath.Join(x.root, filepath.FromSlash(h.Link)), target)
	case archive.TypeCharDevice, archive.TypeBlockDevice, archive.TypeFIFO:
		err = x.special(h, target)
		if err != nil && isPermission(err) {
			x.skip(&result, h, "create node", err)
			x.report.Entries = append(x.report.Entries, result)
			return nil
		}
	default:
		err = fmt.Errorf("unsupported entry type %s", h.Type)
	}
	if err != nil {
		return err
	}

	if h.Type != archive.TypeHardlink {
		if err := x.applyMetadata(h, target, &result); err != nil {
			return err
		}
	}
	x.report.Entries = append(x.report.Entries, result)
	return nil
}

func (x *Extractor) writeFile(target string, data io.Reader) (err error) {
	f, err := x.fs.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return engine.ClassifyIO("create", target, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if _, err := io.Copy(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}

func (x *Extractor) symlink(link, target string) error {
	linker, ok := x.fs.(afero.Linker)
	if !ok {
		return fmt.Errorf("failed to create symlink %s: %w", target, afero.ErrNoSymlink)
	}
	if err := linker.SymlinkIfPossible(filepath.FromSlash(link), target); err != nil {
		return engine.ClassifyIO("create symlink", target, err)
	}
	return nil
}

// hardlink links target to the earlier entry existing. Filesystems without
// link support get a copy of the content and mode instead.
func (x *Extractor) hardlink(existing, target string) error {
	realExisting, ok1 := x.realPath(existing)
	realTarget, ok2 := x.realPath(target)
	if ok1 && ok2 {
		if err := os.Link(realExisting, realTarget); err != nil {
			return engine.ClassifyIO("create hard link", target, err)
		}
		return nil
	}

	info, err := x.fs.Stat(existing)
	if err != nil {
		return engine.ClassifyIO("stat", existing, err)
	}
	src, err := x.fs.Open(existing)
	if err != nil {
		return engine.ClassifyIO("open", existing, err)
	}
	defer src.Close()

	if err := x.writeFile(target, src); err != nil {
		return err
	}
	if err := x.fs.Chmod(target, info.Mode()); err != nil {
		return engine.ClassifyIO("chmod", target, err)
	}
	return nil
}

func (x *Extractor) special(h *archive.Header, target string) error {
	native, ok := x.realPath(target)
	if !ok {
		return fmt.Errorf("failed to create %s %s: filesystem %s has no device support", h.Type, target, x.fs.Name())
	}
	return mknod(native, h)
}

// applyMetadata sets owner, permissions, times and flags in that order, as
// changing the owner may clear setuid bits.
func (x *Extractor) applyMetadata(h *archive.Header, target string, result *engine.EntryResult) error {
	native, hasNative := x.realPath(target)
	symlink := h.Type == archive.TypeSymlink

	steps := []struct {
		name  string
		apply bool
		fn    func() error
	}{
		{
			name:  "chown",
			apply: h.Has(archive.FieldUID) || h.Has(archive.FieldGID),
			fn: func() error {
				uid, gid := -1, -1
				if h.Has(archive.FieldUID) {
					uid = int(h.UID)
				}
				if h.Has(archive.FieldGID) {
					gid = int(h.GID)
				}
				if hasNative {
					return lchown(native, uid, gid)
				}
				if symlink {
					return nil
				}
				return x.fs.Chown(target, uid, gid)
			},
		},
		{
			name:  "chmod",
			apply: h.Has(archive.FieldMode) && !symlink,
			fn:    func() error { return x.fs.Chmod(target, h.Mode) },
		},
		{
			name:  "chtimes",
			apply: h.Has(archive.FieldModTime),
			fn: func() error {
				if symlink {
					if !hasNative {
						return nil
					}
					return lchtimes(native, h.ModTime)
				}
				return x.fs.Chtimes(target, h.ModTime, h.ModTime)
			},
		},
		{
			name:  "chflags",
			apply: h.Has(archive.FieldFlags) && h.Flags != 0 && hasNative && !symlink,
			fn:    func() error { return chflags(native, h.Flags) },
		},
	}

	for _, step := range steps {
		if !step.apply {
			continue
		}
		err := step.fn()
		if err == nil {
			continue
		}
		if !isPermission(err) {
			return engine.ClassifyIO(step.name, target, err)
		}
		x.skip(result, h, step.name, err)
	}
	return nil
}

func (x *Extractor) skip(result *engine.EntryResult, h *archive.Header, op string, err error) {
	x.logger.Warn("operation not permitted, skipping",
		zap.String("path", displayPath(h.Path)),
		zap.String("operation", op),
		zap.Error(err),
	)
	if result.Outcome == engine.OutcomeSkippedPermission {
		result.Err = errors.Join(result.Err, engine.NewError(engine.ErrPartialPermission, op, h.Path, err))
		return
	}
	result.Outcome = engine.OutcomeSkippedPermission
	result.Err = engine.NewError(engine.ErrPartialPermission, op, h.Path, err)
}

// finishDirectories applies directory metadata deepest first, so that
// restrictive modes and times are set after the contents are in place.
func (x *Extractor) finishDirectories() error {
	dirs := slices.Clone(x.dirs)
	slices.SortStableFunc(dirs, func(a, b pendingDir) int {
		return depth(b.header.Path) - depth(a.header.Path)
	})

	for _, d := range dirs {
		result := &x.report.Entries[d.index]
		if err := x.applyMetadata(d.header, x.target(d.header), result); err != nil {
			return err
		}
	}
	x.dirs = nil
	return nil
}

func (x *Extractor) realPath(name string) (string, bool) {
	switch f := x.fs.(type) {
	case *afero.OsFs:
		return name, true
	case *afero.BasePathFs:
		p, err := f.RealPath(name)
		return p, err == nil
	default:
		return "", false
	}
}

func depth(p string) int {
	if p == "" {
		return -1
	}
	return strings.Count(p, "/")
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}
