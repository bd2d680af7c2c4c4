// Package codecs provides the block codecs used by the compression stage.
package codecs

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"github.com/pierrec/lz4/v4"
)

// Name identifies a codec on the command line and in configuration files.
type Name string

const (
	NameNone   Name = "none"
	NameZstd   Name = "zstd"
	NameLZ4    Name = "lz4"
	NameSnappy Name = "snappy"
	NameBrotli Name = "brotli"
	NameGzip   Name = "gzip"

	Default = NameZstd
)

// Identifiers written into stream headers. They are part of the on-disk
// format and must never be renumbered.
const (
	idNone uint8 = iota
	idZstd
	idLZ4
	idSnappy
	idBrotli
	idGzip
)

// New creates the codec registered under name.
func New(name Name) (engine.Codec, error) {
	switch name {
	case NameNone:
		return storeCodec{}, nil
	case NameZstd:
		return newZstdCodec()
	case NameLZ4:
		return lz4Codec{}, nil
	case NameSnappy:
		return snappyCodec{}, nil
	case NameBrotli:
		return brotliCodec{level: brotli.DefaultCompression}, nil
	case NameGzip:
		return gzipCodec{level: gzip.DefaultCompression}, nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s", name)
	}
}

// Register adds every codec to the registry.
func Register(registry *engine.Registry) error {
	for _, name := range []Name{NameNone, NameZstd, NameLZ4, NameSnappy, NameBrotli, NameGzip} {
		codec, err := New(name)
		if err != nil {
			return fmt.Errorf("failed to create codec %s: %w", name, err)
		}
		if err := registry.Register(codec); err != nil {
			return fmt.Errorf("failed to register codec %s: %w", name, err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding every codec.
func NewRegistry() (*engine.Registry, error) {
	registry := engine.NewRegistry()
	if err := Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func checkSize(codec string, out []byte, start, rawSize int) ([]byte, error) {
	if got := len(out) - start; got != rawSize {
		return nil, fmt.Errorf("%s: expanded to %d bytes, expected %d", codec, got, rawSize)
	}
	return out, nil
}

type storeCodec struct{}

func (storeCodec) ID() uint8    { return idNone }
func (storeCodec) Name() string { return string(NameNone) }

func (storeCodec) CompressBlock(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

func (storeCodec) DecompressBlock(dst, src []byte, rawSize int) ([]byte, error) {
	return checkSize(string(NameNone), append(dst, src...), len(dst), rawSize)
}

// zstdCodec shares one encoder and one decoder; EncodeAll and DecodeAll are
// safe for concurrent use.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}

	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) ID() uint8    { return idZstd }
func (c *zstdCodec) Name() string { return string(NameZstd) }

func (c *zstdCodec) CompressBlock(dst, src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, dst), nil
}

func (c *zstdCodec) DecompressBlock(dst, src []byte, rawSize int) ([]byte, error) {
	start := len(dst)
	out, err := c.dec.DecodeAll(src, dst)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return checkSize(c.Name(), out, start, rawSize)
}

// lz4Compressors pools block compressors, which are not safe for concurrent use.
var lz4Compressors = sync.Pool{
	New: func() any { return new(lz4.Compressor) },
}

type lz4Codec struct{}

func (lz4Codec) ID() uint8    { return idLZ4 }
func (lz4Codec) Name() string { return string(NameLZ4) }

func (lz4Codec) CompressBlock(dst, src []byte) ([]byte, error) {
	c := lz4Compressors.Get().(*lz4.Compressor)
	defer lz4Compressors.Put(c)

	start := len(dst)
	out := grow(dst, lz4.CompressBlockBound(len(src)))
	n, err := c.CompressBlock(src, out[start:])
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	return out[:start+n], nil
}

func (lz4Codec) DecompressBlock(dst, src []byte, rawSize int) ([]byte, error) {
	start := len(dst)
	out := grow(dst, rawSize)
	n, err := lz4.UncompressBlock(src, out[start:])
	if err != nil {
		return nil, fmt.Errorf("lz4: %w", err)
	}
	return checkSize(string(NameLZ4), out[:start+n], start, rawSize)
}

type snappyCodec struct{}

func (snappyCodec) ID() uint8    { return idSnappy }
func (snappyCodec) Name() string { return string(NameSnappy) }

func (snappyCodec) CompressBlock(dst, src []byte) ([]byte, error) {
	return append(dst, snappy.Encode(nil, src)...), nil
}

func (snappyCodec) DecompressBlock(dst, src []byte, rawSize int) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	if n != rawSize {
		return nil, fmt.Errorf("snappy: expands to %d bytes, expected %d", n, rawSize)
	}
	decoded, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	return append(dst, decoded...), nil
}

type brotliCodec struct {
	level int
}

func (brotliCodec) ID() uint8    { return idBrotli }
func (brotliCodec) Name() string { return string(NameBrotli) }

func (c brotliCodec) CompressBlock(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	w := brotli.NewWriterLevel(buf, c.level)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli: %w", err)
	}
	return buf.Bytes(), nil
}

func (c brotliCodec) DecompressBlock(dst, src []byte, rawSize int) ([]byte, error) {
	return readAllInto(c.Name(), dst, brotli.NewReader(bytes.NewReader(src)), rawSize)
}

type gzipCodec struct {
	level int
}

func (gzipCodec) ID() uint8    { return idGzip }
func (gzipCodec) Name() string { return string(NameGzip) }

func (c gzipCodec) CompressBlock(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	w, err := gzip.NewWriterLevel(buf, c.level)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func (c gzipCodec) DecompressBlock(dst, src []byte, rawSize int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer r.Close()
	return readAllInto(c.Name(), dst, r, rawSize)
}

// readAllInto reads exactly rawSize bytes from r onto dst and fails when r
// holds more or less than that.
func readAllInto(codec string, dst []byte, r io.Reader, rawSize int) ([]byte, error) {
	start := len(dst)
	out := grow(dst, rawSize)
	if _, err := io.ReadFull(r, out[start:]); err != nil {
		return nil, fmt.Errorf("%s: %w", codec, err)
	}
	var probe [1]byte
	if n, err := r.Read(probe[:]); n > 0 {
		return nil, fmt.Errorf("%s: expands beyond %d bytes", codec, rawSize)
	} else if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s: %w", codec, err)
	}
	return out, nil
}

// grow extends dst by n bytes, reusing its capacity when possible.
func grow(dst []byte, n int) []byte {
	if cap(dst)-len(dst) >= n {
		return dst[:len(dst)+n]
	}
	out := make([]byte, len(dst)+n)
	copy(out, dst)
	return out
}
