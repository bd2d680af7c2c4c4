package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/spf13/afero"
)

var ErrWriteTooLong = errors.New("write too long")

// Encoder is the encode side of the archive stage. It writes entries to the
// downstream stage; closing it does not close that stage.
type Encoder struct {
	w         io.Writer
	fields    FieldSet
	remaining uint64
	entries   int
	closed    bool
}

func NewEncoder(w io.Writer, fields FieldSet) (*Encoder, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}
	return &Encoder{w: w, fields: fields}, nil
}

func (e *Encoder) Name() string {
	return "archive-encode"
}

func (e *Encoder) Kind() string {
	return "archive"
}

// Entries returns the number of entries written.
func (e *Encoder) Entries() int {
	return e.entries
}

// WriteHeader starts a new entry. For regular files exactly h.Size bytes of
// data must follow through Write.
func (e *Encoder) WriteHeader(h *Header) error {
	if e.closed {
		return fmt.Errorf("write header: %w", fs.ErrClosed)
	}
	if e.remaining > 0 {
		return fmt.Errorf("entry is missing %d bytes of data", e.remaining)
	}
	if !h.Type.valid() {
		return fmt.Errorf("entry %q has invalid type %s", h.Path, h.Type)
	}

	b, err := marshalHeader(h, e.fields)
	if err != nil {
		return err
	}
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("failed to write header for %q: %w", h.Path, err)
	}

	e.entries++
	if h.Type == TypeRegular && e.fields.Has(FieldData) {
		e.remaining = h.Size
	}
	return nil
}

func (e *Encoder) Write(p []byte) (int, error) {
	if e.closed {
		return 0, fmt.Errorf("write data: %w", fs.ErrClosed)
	}
	if uint64(len(p)) > e.remaining {
		return 0, ErrWriteTooLong
	}
	n, err := e.w.Write(p)
	e.remaining -= uint64(n)
	return n, err
}

// Close checks that the last entry is complete. It is safe to call more than
// once.
func (e *Encoder) Close(context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.remaining > 0 {
		return fmt.Errorf("last entry is missing %d bytes of data", e.remaining)
	}
	return nil
}

// WriteDirectoryContents encodes the tree rooted at root. The root is written
// first with an empty path, then every entry below it depth first with the
// names of each directory in sorted order. Symlinks are not followed and
// files sharing an inode are written once, later occurrences as hard links.
// Sockets are skipped.
func (e *Encoder) WriteDirectoryContents(ctx context.Context, fsys afero.Fs, root string) error {
	info, err := lstat(fsys, root)
	if err != nil {
		return engine.ClassifyIO("stat", root, err)
	}
	if !info.IsDir() {
		return engine.NewError(engine.ErrPathInvalid, "archive", root, fmt.Errorf("not a directory"))
	}

	t := &traversal{
		enc:   e,
		fs:    fsys,
		root:  root,
		links: make(map[inode]string),
	}
	if err := t.entry(ctx, "", info); err != nil {
		return err
	}
	return t.walk(ctx, "")
}

type inode struct {
	dev, ino uint64
}

type traversal struct {
	enc   *Encoder
	fs    afero.Fs
	root  string
	links map[inode]string
}

func (t *traversal) real(rel string) string {
	return filepath.Join(t.root, filepath.FromSlash(rel))
}

func (t *traversal) walk(ctx context.Context, dir string) error {
	infos, err := afero.ReadDir(t.fs, t.real(dir))
	if err != nil {
		return engine.ClassifyIO("read directory", t.real(dir), err)
	}
	slices.SortFunc(infos, func(a, b fs.FileInfo) int {
		return strings.Compare(a.Name(), b.Name())
	})

	for _, info := range infos {
		rel := path.Join(dir, info.Name())
		// directory listings may resolve symlinks on some filesystems
		if linfo, err := lstat(t.fs, t.real(rel)); err == nil {
			info = linfo
		}
		if err := t.entry(ctx, rel, info); err != nil {
			return err
		}
		if info.IsDir() {
			if err := t.walk(ctx, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *traversal) entry(ctx context.Context, rel string, info fs.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h := &Header{
		Path:    rel,
		Mode:    info.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky),
		ModTime: info.ModTime(),
	}
	meta, hasMeta := statMeta(info)
	if hasMeta {
		h.UID = meta.uid
		h.GID = meta.gid
		h.Flags = meta.flags
		h.BirthTime = meta.birthTime
		h.ChangeTime = meta.changeTime
	}

	mode := info.Mode()
	switch {
	case mode.IsDir():
		h.Type = TypeDirectory
	case mode.IsRegular():
		if hasMeta && meta.nlink > 1 {
			key := inode{dev: meta.dev, ino: meta.ino}
			if first, ok := t.links[key]; ok {
				return t.enc.WriteHeader(&Header{Type: TypeHardlink, Path: rel, Link: first})
			}
			t.links[key] = rel
		}
		h.Type = TypeRegular
		h.Size = uint64(info.Size())
		return t.file(h)
	case mode&fs.ModeSymlink != 0:
		reader, ok := t.fs.(afero.LinkReader)
		if !ok {
			return fmt.Errorf("failed to read link %s: %w", t.real(rel), afero.ErrNoReadlink)
		}
		target, err := reader.ReadlinkIfPossible(t.real(rel))
		if err != nil {
			return engine.ClassifyIO("read link", t.real(rel), err)
		}
		h.Type = TypeSymlink
		h.Link = filepath.ToSlash(target)
	case mode&fs.ModeDevice != 0:
		h.Type = TypeBlockDevice
		if mode&fs.ModeCharDevice != 0 {
			h.Type = TypeCharDevice
		}
		h.Device = meta.rdev
	case mode&fs.ModeNamedPipe != 0:
		h.Type = TypeFIFO
	default:
		return nil
	}

	return t.enc.WriteHeader(h)
}

func (t *traversal) file(h *Header) (err error) {
	if err := t.enc.WriteHeader(h); err != nil {
		return err
	}
	if !t.enc.fields.Has(FieldData) {
		return nil
	}

	f, err := t.fs.OpenFile(t.real(h.Path), os.O_RDONLY, 0)
	if err != nil {
		return engine.ClassifyIO("open", t.real(h.Path), err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	n, err := io.CopyN(t.enc, f, int64(h.Size))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("file %s shrank while archiving: read %d of %d bytes", t.real(h.Path), n, h.Size)
		}
		return fmt.Errorf("failed to archive %s: %w", t.real(h.Path), err)
	}
	return nil
}

func lstat(fsys afero.Fs, name string) (fs.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(name)
		return info, err
	}
	return fsys.Stat(name)
}
