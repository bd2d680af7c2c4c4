package archive

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	entryMagic     = "AA01"
	entryPrefixLen = 6
)

type EntryType byte

const (
	TypeRegular     EntryType = 'F'
	TypeDirectory   EntryType = 'D'
	TypeSymlink     EntryType = 'L'
	TypeHardlink    EntryType = 'H'
	TypeCharDevice  EntryType = 'C'
	TypeBlockDevice EntryType = 'B'
	TypeFIFO        EntryType = 'P'
)

func (t EntryType) String() string {
	switch t {
	case TypeRegular:
		return "file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	case TypeHardlink:
		return "hardlink"
	case TypeCharDevice:
		return "char-device"
	case TypeBlockDevice:
		return "block-device"
	case TypeFIFO:
		return "fifo"
	default:
		return fmt.Sprintf("unknown(%q)", byte(t))
	}
}

func (t EntryType) valid() bool {
	switch t {
	case TypeRegular, TypeDirectory, TypeSymlink, TypeHardlink, TypeCharDevice, TypeBlockDevice, TypeFIFO:
		return true
	}
	return false
}

// Header describes one entry. Path is slash separated and relative to the
// archive root; the root itself has an empty path.
type Header struct {
	Type EntryType
	Path string
	// Link is the target of a symlink, or the path of the earlier entry a
	// hard link refers to.
	Link   string
	Device uint64
	Size   uint64
	UID    uint32
	GID    uint32
	// Mode holds the permission bits including setuid, setgid and sticky.
	Mode       fs.FileMode
	Flags      uint32
	ModTime    time.Time
	BirthTime  time.Time
	ChangeTime time.Time

	// Fields lists the fields that were present when decoding.
	Fields FieldSet
}

// Has reports whether f was present in the decoded entry.
func (h *Header) Has(f Field) bool {
	return h.Fields.Has(f)
}

// appliesTo reports whether field f is meaningful for h.
func (h *Header) appliesTo(f Field) bool {
	switch f {
	case FieldType, FieldPath:
		return true
	case FieldLink:
		return h.Type == TypeSymlink || h.Type == TypeHardlink
	case FieldDevice:
		return h.Type == TypeCharDevice || h.Type == TypeBlockDevice
	case FieldData:
		return h.Type == TypeRegular
	case FieldModTime:
		return h.Type != TypeHardlink && !h.ModTime.IsZero()
	case FieldBirthTime:
		return h.Type != TypeHardlink && !h.BirthTime.IsZero()
	case FieldChangeTime:
		return h.Type != TypeHardlink && !h.ChangeTime.IsZero()
	default:
		// hard links share the metadata of their target
		return h.Type != TypeHardlink
	}
}

func marshalHeader(h *Header, fields FieldSet) ([]byte, error) {
	b := make([]byte, entryPrefixLen, 128)
	copy(b, entryMagic)

	var err error
	for _, f := range fields {
		if !h.appliesTo(f) {
			continue
		}
		b = append(b, f...)
		b = append(b, subtypes[f])

		switch f {
		case FieldType:
			b = append(b, byte(h.Type))
		case FieldPath:
			if b, err = appendString(b, f, h.Path); err != nil {
				return nil, err
			}
		case FieldLink:
			if b, err = appendString(b, f, h.Link); err != nil {
				return nil, err
			}
		case FieldDevice:
			b = binary.LittleEndian.AppendUint64(b, h.Device)
		case FieldData:
			b = binary.LittleEndian.AppendUint64(b, h.Size)
		case FieldUID:
			b = binary.LittleEndian.AppendUint32(b, h.UID)
		case FieldGID:
			b = binary.LittleEndian.AppendUint32(b, h.GID)
		case FieldMode:
			b = binary.LittleEndian.AppendUint16(b, uint16(unixMode(h.Mode)))
		case FieldFlags:
			b = binary.LittleEndian.AppendUint32(b, h.Flags)
		case FieldModTime:
			b = appendTime(b, h.ModTime)
		case FieldBirthTime:
			b = appendTime(b, h.BirthTime)
		case FieldChangeTime:
			b = appendTime(b, h.ChangeTime)
		}
	}

	if len(b) > math.MaxUint16 {
		return nil, fmt.Errorf("header for %q is %d bytes, limit is %d", h.Path, len(b), math.MaxUint16)
	}
	binary.LittleEndian.PutUint16(b[4:], uint16(len(b)))
	return b, nil
}

func appendString(b []byte, f Field, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, fmt.Errorf("%s value is %d bytes, limit is %d", f, len(s), math.MaxUint16)
	}
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s)))
	return append(b, s...), nil
}

func appendTime(b []byte, t time.Time) []byte {
	b = binary.LittleEndian.AppendUint64(b, uint64(t.Unix()))
	return binary.LittleEndian.AppendUint32(b, uint32(t.Nanosecond()))
}

// blob is a 'B' field whose bytes follow the header.
type blob struct {
	field Field
	size  uint64
}

// parseFields decodes the fields of one header, b being everything after the
// size. Keys that are not known but carry a known subtype are skipped.
func parseFields(b []byte) (*Header, []blob, error) {
	h := &Header{}
	var blobs []blob

	for len(b) > 0 {
		if len(b) < 4 {
			return nil, nil, fmt.Errorf("truncated field key")
		}
		key, subtype := Field(b[:3]), b[3]
		b = b[4:]

		if want, known := subtypes[key]; known && want != subtype {
			return nil, nil, fmt.Errorf("field %s has subtype %q, expected %q", key, subtype, want)
		}
		if h.Fields.Has(key) {
			return nil, nil, fmt.Errorf("duplicate field %s", key)
		}

		var value []byte
		switch subtype {
		case '1', '2', '4', '8':
			n := int(subtype - '0')
			if len(b) < n {
				return nil, nil, fmt.Errorf("truncated field %s", key)
			}
			value, b = b[:n], b[n:]
		case 'T':
			if len(b) < 12 {
				return nil, nil, fmt.Errorf("truncated field %s", key)
			}
			value, b = b[:12], b[12:]
		case 'B':
			if len(b) < 8 {
				return nil, nil, fmt.Errorf("truncated field %s", key)
			}
			value, b = b[:8], b[8:]
			blobs = append(blobs, blob{field: key, size: binary.LittleEndian.Uint64(value)})
		case 'P':
			if len(b) < 2 {
				return nil, nil, fmt.Errorf("truncated field %s", key)
			}
			n := int(binary.LittleEndian.Uint16(b))
			if len(b) < 2+n {
				return nil, nil, fmt.Errorf("truncated field %s", key)
			}
			value, b = b[2:2+n], b[2+n:]
		default:
			return nil, nil, fmt.Errorf("field %s has unknown subtype %q", key, subtype)
		}

		if _, known := subtypes[key]; !known {
			continue
		}
		h.Fields = append(h.Fields, key)

		switch key {
		case FieldType:
			h.Type = EntryType(value[0])
		case FieldPath:
			h.Path = string(value)
		case FieldLink:
			h.Link = string(value)
		case FieldDevice:
			h.Device = binary.LittleEndian.Uint64(value)
		case FieldData:
			h.Size = binary.LittleEndian.Uint64(value)
		case FieldUID:
			h.UID = binary.LittleEndian.Uint32(value)
		case FieldGID:
			h.GID = binary.LittleEndian.Uint32(value)
		case FieldMode:
			h.Mode = fileMode(uint32(binary.LittleEndian.Uint16(value)))
		case FieldFlags:
			h.Flags = binary.LittleEndian.Uint32(value)
		case FieldModTime:
			h.ModTime = parseTime(value)
		case FieldBirthTime:
			h.BirthTime = parseTime(value)
		case FieldChangeTime:
			h.ChangeTime = parseTime(value)
		}
	}

	return h, blobs, nil
}

func parseTime(b []byte) time.Time {
	sec := int64(binary.LittleEndian.Uint64(b))
	nsec := int64(binary.LittleEndian.Uint32(b[8:]))
	return time.Unix(sec, nsec)
}

// unixMode converts permission bits to their numeric unix form.
func unixMode(m fs.FileMode) uint32 {
	mode := uint32(m.Perm())
	if m&fs.ModeSetuid != 0 {
		mode |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		mode |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		mode |= 0o1000
	}
	return mode
}

func fileMode(mode uint32) fs.FileMode {
	m := fs.FileMode(mode & 0o777)
	if mode&0o4000 != 0 {
		m |= fs.ModeSetuid
	}
	if mode&0o2000 != 0 {
		m |= fs.ModeSetgid
	}
	if mode&0o1000 != 0 {
		m |= fs.ModeSticky
	}
	return m
}

// safePath reports whether p is a clean relative path that stays below the
// archive root.
func safePath(p string) bool {
	if p == "" || strings.Contains(p, "\\") || path.Clean(p) != p {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}
