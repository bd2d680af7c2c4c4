package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Codec compresses and decompresses independent blocks. Implementations must
// be safe for concurrent use: block workers share a single codec.
type Codec interface {
	// ID is the identifier written into stream headers.
	ID() uint8
	Name() string
	// CompressBlock appends the compressed form of src to dst.
	CompressBlock(dst, src []byte) ([]byte, error)
	// DecompressBlock appends the expansion of src to dst. rawSize is the
	// expected expanded length.
	DecompressBlock(dst, src []byte, rawSize int) ([]byte, error)
}

// UnsupportedTypeError is returned when a codec is not registered.
type UnsupportedTypeError struct {
	Category  string   // "codec"
	Kind      string   // the requested name or id
	Available []string // registered names
}

func (e *UnsupportedTypeError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unsupported %s type %q: no %ss registered", e.Category, e.Kind, e.Category)
	}
	return fmt.Sprintf("unsupported %s type %q (available: %v)", e.Category, e.Kind, e.Available)
}

type Registry struct {
	mu     sync.RWMutex
	byName map[string]Codec
	byID   map[uint8]Codec
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Codec),
		byID:   make(map[uint8]Codec),
	}
}

func (r *Registry) Register(codec Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[codec.ID()]; ok && existing.Name() != codec.Name() {
		return fmt.Errorf("codec id %d already registered by %s", codec.ID(), existing.Name())
	}
	if existing, ok := r.byName[codec.Name()]; ok && existing.ID() != codec.ID() {
		return fmt.Errorf("codec %s already registered with id %d", codec.Name(), existing.ID())
	}

	r.byName[codec.Name()] = codec
	r.byID[codec.ID()] = codec
	return nil
}

func (r *Registry) ByName(name string) (Codec, error) {
	r.mu.RLock()
	codec, ok := r.byName[name]
	available := r.available()
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Category: "codec", Kind: name, Available: available}
	}
	return codec, nil
}

func (r *Registry) ByID(id uint8) (Codec, error) {
	r.mu.RLock()
	codec, ok := r.byID[id]
	available := r.available()
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedTypeError{Category: "codec", Kind: fmt.Sprintf("id:%d", id), Available: available}
	}
	return codec, nil
}

func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available()
}

func (r *Registry) available() []string {
	names := lo.Keys(r.byName)
	slices.Sort(names)
	return names
}
