package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/lzfse-cli/lzfse-cli/internal/engine"
)

const (
	opDecode = "archive-decode"

	maxBlobSize = 1 << 48
)

// Decoder is the decode side of the archive stage. It turns the upstream
// byte stream back into entries without touching any filesystem.
type Decoder struct {
	r io.Reader

	remaining uint64 // unread entry data
	after     uint64 // blobs following the entry data
	entries   int
	seen      map[string]EntryType

	err    error
	closed bool
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:    r,
		seen: make(map[string]EntryType),
	}
}

func (d *Decoder) Name() string {
	return "archive-decode"
}

func (d *Decoder) Kind() string {
	return "archive"
}

// Next advances to the next entry, discarding any unread data of the
// current one. It returns io.EOF at a clean end of the stream.
func (d *Decoder) Next() (*Header, error) {
	if d.closed {
		return nil, fmt.Errorf("next entry: %w", fs.ErrClosed)
	}
	if d.err != nil {
		return nil, d.err
	}

	h, err := d.next()
	if err != nil {
		d.err = err
		return nil, err
	}
	return h, nil
}

func (d *Decoder) next() (*Header, error) {
	if err := d.discard(d.remaining + d.after); err != nil {
		return nil, err
	}
	d.remaining, d.after = 0, 0

	prefix := make([]byte, entryPrefixLen)
	n, err := io.ReadFull(d.r, prefix)
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		return nil, io.EOF
	case err != nil:
		return nil, d.readError(err, "entry header")
	}
	if string(prefix[:4]) != entryMagic {
		return nil, d.corrupt("bad entry magic %q", prefix[:4])
	}
	size := int(binary.LittleEndian.Uint16(prefix[4:]))
	if size < entryPrefixLen {
		return nil, d.corrupt("header size %d too small", size)
	}

	body := make([]byte, size-entryPrefixLen)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, d.readError(err, "entry header")
	}

	h, blobs, err := parseFields(body)
	if err != nil {
		return nil, d.corrupt("%w", err)
	}
	if err := d.check(h); err != nil {
		return nil, err
	}

	// blobs are laid out in field order; only DAT is exposed
	var before uint64
	found := false
	for _, b := range blobs {
		if b.size > maxBlobSize {
			return nil, d.corrupt("blob %s of %d bytes exceeds limit", b.field, b.size)
		}
		switch {
		case b.field == FieldData:
			found = true
		case found:
			d.after += b.size
		default:
			before += b.size
		}
	}
	if err := d.discard(before); err != nil {
		return nil, err
	}
	d.remaining = h.Size

	d.entries++
	d.seen[h.Path] = h.Type
	return h, nil
}

func (d *Decoder) check(h *Header) error {
	if !h.Has(FieldType) || !h.Has(FieldPath) {
		return d.corrupt("entry %d lacks %s or %s", d.entries, FieldType, FieldPath)
	}
	if !h.Type.valid() {
		return d.corrupt("entry %q has unknown type %q", h.Path, byte(h.Type))
	}

	if h.Path == "" {
		if d.entries > 0 || h.Type != TypeDirectory {
			return d.corrupt("root entry must be the first entry and a directory")
		}
		return nil
	}
	if !safePath(h.Path) {
		return d.corrupt("unsafe path %q", h.Path)
	}
	if _, dup := d.seen[h.Path]; dup {
		return d.corrupt("duplicate entry %q", h.Path)
	}
	if parent := path.Dir(h.Path); parent != "." {
		if d.seen[parent] != TypeDirectory {
			return d.corrupt("entry %q precedes its parent directory", h.Path)
		}
	}

	if h.Size > 0 && h.Type != TypeRegular {
		return d.corrupt("%s entry %q carries data", h.Type, h.Path)
	}
	switch h.Type {
	case TypeSymlink:
		if !h.Has(FieldLink) {
			return d.corrupt("symlink %q has no target", h.Path)
		}
	case TypeHardlink:
		if !h.Has(FieldLink) || !safePath(h.Link) {
			return d.corrupt("hard link %q has invalid target %q", h.Path, h.Link)
		}
		if t, ok := d.seen[h.Link]; !ok || t == TypeDirectory || t == TypeHardlink {
			return d.corrupt("hard link %q refers to %q which is not an earlier file", h.Path, h.Link)
		}
	}
	return nil
}

// Read reads the data of the current entry.
func (d *Decoder) Read(p []byte) (int, error) {
	if d.closed {
		return 0, fmt.Errorf("read entry: %w", fs.ErrClosed)
	}
	if d.remaining == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > d.remaining {
		p = p[:d.remaining]
	}
	n, err := d.r.Read(p)
	d.remaining -= uint64(n)
	if errors.Is(err, io.EOF) {
		if d.remaining > 0 {
			d.err = d.corrupt("truncated entry data")
			return n, d.err
		}
		err = nil
	}
	return n, err
}

// Close is safe to call more than once. It does not close the upstream
// stage.
func (d *Decoder) Close(context.Context) error {
	d.closed = true
	return nil
}

func (d *Decoder) discard(n uint64) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, d.r, int64(n)); err != nil {
		return d.readError(err, "entry data")
	}
	return nil
}

func (d *Decoder) readError(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return d.corrupt("truncated %s", what)
	}
	return fmt.Errorf("failed to read %s: %w", what, err)
}

func (d *Decoder) corrupt(format string, args ...any) error {
	return engine.Corrupt(opDecode, format, args...)
}
