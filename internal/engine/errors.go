package engine

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrPathInvalid           = errors.New("path invalid")
	ErrAlreadyExists         = errors.New("already exists")
	ErrNotFound              = errors.New("not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrCorruptStream         = errors.New("corrupt stream")
	ErrPartialPermission     = errors.New("operation not permitted on entry")
	ErrDirectoryCreateFailed = errors.New("directory create failed")
)

// Error carries the failing operation and path along with one of the
// sentinel kinds above, so that errors.Is matches both the kind and the
// underlying cause.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Corrupt reports a framing violation detected while decoding.
func Corrupt(op string, format string, args ...any) error {
	return &Error{Kind: ErrCorruptStream, Op: op, Err: fmt.Errorf(format, args...)}
}

// ClassifyIO wraps an I/O error with the matching kind. Errors that are
// already classified are returned as is.
func ClassifyIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewError(ErrNotFound, op, path, err)
	case errors.Is(err, fs.ErrPermission):
		return NewError(ErrPermissionDenied, op, path, err)
	case errors.Is(err, fs.ErrExist):
		return NewError(ErrAlreadyExists, op, path, err)
	default:
		return fmt.Errorf("failed to %s %s: %w", op, path, err)
	}
}

// KindOf returns the sentinel kind of err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrPathInvalid,
		ErrAlreadyExists,
		ErrNotFound,
		ErrPermissionDenied,
		ErrCorruptStream,
		ErrPartialPermission,
		ErrDirectoryCreateFailed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
