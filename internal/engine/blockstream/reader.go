package blockstream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/lzfse-cli/lzfse-cli/internal/engine"
	"golang.org/x/sync/errgroup"
)

const opDecompress = "decompress"

// Reader is the decompression stage. Frames are parsed in order from src and
// decoded by up to Options.Threads goroutines; Read delivers blocks in
// sequence order.
type Reader struct {
	src       io.Reader
	codec     engine.Codec
	blockSize uint32
	threads   int

	// framing state, owned by whoever parses frames
	seq   uint64
	total uint64
	ended bool

	cur    []byte
	err    error
	closed bool

	start   sync.Once
	workers *errgroup.Group
	blocks  chan chan decoded
	quit    chan struct{}
	done    chan struct{}
}

type decoded struct {
	data []byte
	err  error
}

type encodedBlock struct {
	header  blockHeader
	payload []byte
}

// NewReader reads and validates the stream header from src. Codecs are
// resolved through registry by the id recorded in the header. src is not
// closed by the stage.
func NewReader(src io.Reader, registry *engine.Registry, opts Options) (*Reader, error) {
	header := make([]byte, streamHeaderSize)
	if _, err := io.ReadFull(src, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, engine.Corrupt(opDecompress, "empty stream")
		}
		return nil, readError("stream header", err)
	}

	if string(header[:tagSize]) != streamMagic {
		return nil, engine.Corrupt(opDecompress, "bad magic %q", header[:tagSize])
	}
	if header[4] != formatVersion {
		return nil, engine.Corrupt(opDecompress, "unsupported format version %d", header[4])
	}
	codec, err := registry.ByID(header[5])
	if err != nil {
		return nil, &engine.Error{Kind: engine.ErrCorruptStream, Op: opDecompress, Err: err}
	}
	blockSize := binary.BigEndian.Uint32(header[8:])
	if blockSize == 0 || blockSize > MaxBlockSize {
		return nil, engine.Corrupt(opDecompress, "invalid block size %d", blockSize)
	}

	return &Reader{
		src:       src,
		codec:     codec,
		blockSize: blockSize,
		threads:   opts.threads(),
	}, nil
}

func (r *Reader) Name() string {
	return fmt.Sprintf("decompress(%s)", r.codec.Name())
}

func (r *Reader) Kind() string {
	return "decompress"
}

// Codec returns the codec recorded in the stream header.
func (r *Reader) Codec() engine.Codec {
	return r.codec
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("read from %s: %w", r.Name(), fs.ErrClosed)
	}
	for len(r.cur) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		data, err := r.next()
		if err != nil {
			r.err = err
			return 0, err
		}
		r.cur = data
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// Close stops the decoding goroutines. It is safe to call more than once.
func (r *Reader) Close(context.Context) error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.quit != nil {
		close(r.quit)
		<-r.done
		_ = r.workers.Wait()
	}
	r.cur = nil
	return nil
}

// next returns the next decoded block, or io.EOF after a valid trailer.
func (r *Reader) next() ([]byte, error) {
	if r.threads <= 1 {
		block, err := r.readFrame()
		if err != nil {
			return nil, err
		}
		return r.decode(block)
	}

	r.start.Do(func() {
		r.workers = new(errgroup.Group)
		r.workers.SetLimit(r.threads)
		r.blocks = make(chan chan decoded, r.threads)
		r.quit = make(chan struct{})
		r.done = make(chan struct{})
		go r.produce()
	})

	result, ok := <-r.blocks
	if !ok {
		return nil, io.EOF
	}
	d := <-result
	return d.data, d.err
}

// produce parses frames and dispatches them to the workers. A framing error
// is delivered in place of the block it was found at.
func (r *Reader) produce() {
	defer close(r.done)
	defer close(r.blocks)

	for {
		block, err := r.readFrame()
		if errors.Is(err, io.EOF) {
			return
		}

		result := make(chan decoded, 1)
		select {
		case r.blocks <- result:
		case <-r.quit:
			return
		}

		if err != nil {
			result <- decoded{err: err}
			return
		}
		r.workers.Go(func() error {
			data, err := r.decode(block)
			result <- decoded{data: data, err: err}
			return nil
		})
	}
}

// readFrame reads one block record. After the trailer it verifies the
// totals and returns io.EOF.
func (r *Reader) readFrame() (encodedBlock, error) {
	if r.ended {
		return encodedBlock{}, io.EOF
	}

	tag := make([]byte, tagSize)
	if _, err := io.ReadFull(r.src, tag); err != nil {
		if errors.Is(err, io.EOF) {
			return encodedBlock{}, engine.Corrupt(opDecompress, "missing trailer after block %d", r.seq)
		}
		return encodedBlock{}, readError("block tag", err)
	}

	switch string(tag) {
	case endTag:
		return encodedBlock{}, r.readTrailer()
	case blockTag:
	default:
		return encodedBlock{}, engine.Corrupt(opDecompress, "unexpected tag %q at block %d", tag, r.seq)
	}

	raw := make([]byte, blockHeaderSize-tagSize)
	if _, err := io.ReadFull(r.src, raw); err != nil {
		return encodedBlock{}, readError("block header", err)
	}
	h := unmarshalBlockHeader(raw)

	switch {
	case h.seq != r.seq:
		return encodedBlock{}, engine.Corrupt(opDecompress, "block sequence %d, expected %d", h.seq, r.seq)
	case h.flags&^flagStored != 0:
		return encodedBlock{}, engine.Corrupt(opDecompress, "unknown flags %#x in block %d", h.flags, h.seq)
	case h.raw == 0 || h.raw > r.blockSize:
		return encodedBlock{}, engine.Corrupt(opDecompress, "block %d raw length %d out of range", h.seq, h.raw)
	case h.flags&flagStored != 0 && h.payload != h.raw:
		return encodedBlock{}, engine.Corrupt(opDecompress, "stored block %d has payload %d, raw %d", h.seq, h.payload, h.raw)
	case h.flags&flagStored == 0 && (h.payload == 0 || h.payload >= h.raw):
		return encodedBlock{}, engine.Corrupt(opDecompress, "block %d payload length %d out of range", h.seq, h.payload)
	}

	payload := make([]byte, h.payload)
	if _, err := io.ReadFull(r.src, payload); err != nil {
		return encodedBlock{}, readError(fmt.Sprintf("block %d", h.seq), err)
	}

	r.seq++
	r.total += uint64(h.raw)
	return encodedBlock{header: h, payload: payload}, nil
}

func (r *Reader) readTrailer() error {
	b := make([]byte, trailerSize-tagSize)
	if _, err := io.ReadFull(r.src, b); err != nil {
		return readError("trailer", err)
	}
	count := binary.BigEndian.Uint64(b[0:])
	total := binary.BigEndian.Uint64(b[8:])
	if count != r.seq {
		return engine.Corrupt(opDecompress, "trailer counts %d blocks, read %d", count, r.seq)
	}
	if total != r.total {
		return engine.Corrupt(opDecompress, "trailer counts %d bytes, read %d", total, r.total)
	}

	var probe [1]byte
	n, err := io.ReadFull(r.src, probe[:])
	if n > 0 {
		return engine.Corrupt(opDecompress, "trailing data after trailer")
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return readError("end of stream", err)
	}

	r.ended = true
	return io.EOF
}

func (r *Reader) decode(block encodedBlock) ([]byte, error) {
	h := block.header
	data := block.payload
	if h.flags&flagStored == 0 {
		var err error
		data, err = r.codec.DecompressBlock(nil, block.payload, int(h.raw))
		if err != nil {
			return nil, engine.Corrupt(opDecompress, "block %d: %w", h.seq, err)
		}
	}
	if len(data) != int(h.raw) {
		return nil, engine.Corrupt(opDecompress, "block %d expanded to %d bytes, expected %d", h.seq, len(data), h.raw)
	}
	if sum := xxhash.Sum64(data); sum != h.sum {
		return nil, engine.Corrupt(opDecompress, "block %d checksum mismatch", h.seq)
	}
	return data, nil
}

func readError(what string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return engine.Corrupt(opDecompress, "truncated %s", what)
	}
	return fmt.Errorf("failed to read %s: %w", what, err)
}
