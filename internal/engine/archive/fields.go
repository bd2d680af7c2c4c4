// Package archive implements the archive stage: a directory tree encoded as
// a linear sequence of entries, each a header of typed metadata fields
// followed by the entry's data.
//
// Entry layout (integers little endian):
//
//	"AA01" | header size u16 | fields... | data
//
// A field is a three letter key and a subtype character:
//
//	'1' '2' '4' '8'  unsigned integer of that many bytes
//	'P'              u16 length followed by a slash separated path
//	'T'              i64 seconds followed by u32 nanoseconds
//	'B'              u64 blob size; the blob follows the header
package archive

import (
	"fmt"
	"slices"
	"strings"
)

type Field string

const (
	FieldType       Field = "TYP"
	FieldPath       Field = "PAT"
	FieldLink       Field = "LNK"
	FieldDevice     Field = "DEV"
	FieldData       Field = "DAT"
	FieldUID        Field = "UID"
	FieldGID        Field = "GID"
	FieldMode       Field = "MOD"
	FieldFlags      Field = "FLG"
	FieldModTime    Field = "MTM"
	FieldBirthTime  Field = "BTM"
	FieldChangeTime Field = "CTM"
)

// subtypes maps every known field to its encoding.
var subtypes = map[Field]byte{
	FieldType:       '1',
	FieldPath:       'P',
	FieldLink:       'P',
	FieldDevice:     '8',
	FieldData:       'B',
	FieldUID:        '4',
	FieldGID:        '4',
	FieldMode:       '2',
	FieldFlags:      '4',
	FieldModTime:    'T',
	FieldBirthTime:  'T',
	FieldChangeTime: 'T',
}

// FieldSet is the ordered list of fields written for every entry.
type FieldSet []Field

// DefaultFieldSet is the field set used for directory archives.
var DefaultFieldSet = FieldSet{
	FieldType, FieldPath, FieldLink, FieldDevice, FieldData,
	FieldUID, FieldGID, FieldMode, FieldFlags,
	FieldModTime, FieldBirthTime, FieldChangeTime,
}

// ParseFieldSet parses the comma separated form, e.g. "TYP,PAT,DAT".
// TYP and PAT are mandatory.
func ParseFieldSet(s string) (FieldSet, error) {
	var set FieldSet
	for part := range strings.SplitSeq(s, ",") {
		f := Field(strings.ToUpper(strings.TrimSpace(part)))
		if _, ok := subtypes[f]; !ok {
			return nil, fmt.Errorf("unknown field %q", part)
		}
		if set.Has(f) {
			return nil, fmt.Errorf("duplicate field %s", f)
		}
		set = append(set, f)
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s FieldSet) Has(f Field) bool {
	return slices.Contains(s, f)
}

func (s FieldSet) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func (s FieldSet) validate() error {
	for _, required := range []Field{FieldType, FieldPath} {
		if !s.Has(required) {
			return fmt.Errorf("field set %q is missing %s", s, required)
		}
	}
	for _, f := range s {
		if _, ok := subtypes[f]; !ok {
			return fmt.Errorf("unknown field %q", f)
		}
	}
	return nil
}
