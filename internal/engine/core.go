package engine

import (
	"context"
	"io"
)

type Named interface {
	Name() string
	Kind() string
}

type Closer interface {
	Close(context.Context) error
}

// Stage is one link of a processing chain. Every stage is released through Close
// exactly once by the chain that owns it.
type Stage interface {
	Named
	Closer
}

// Operation selects the direction of a run.
type Operation string

const (
	OperationEncode Operation = "encode"
	OperationDecode Operation = "decode"
)

// Target is what an operation works on: a single file or a directory tree.
type Target string

const (
	TargetFile      Target = "file"
	TargetDirectory Target = "directory"
)

const (
	// ExtensionFile is appended to single files on encode.
	ExtensionFile = "lzfse"
	// ExtensionDirectory is appended to directory archives on encode.
	ExtensionDirectory = "aar"

	// DefaultBlockSize is the uncompressed size of one block.
	DefaultBlockSize = 1 << 20
)

// Sink publishes a finished artifact to a destination beyond the operation's
// own output path.
type Sink interface {
	Named
	Closer
	Write(ctx context.Context, path string, data io.Reader) error
}
