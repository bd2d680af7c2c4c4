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

// Writer is the compression stage. Bytes written to it are cut into blocks,
// compressed by up to Options.Threads goroutines and written to dst in their
// original order.
type Writer struct {
	dst       io.Writer
	codec     engine.Codec
	blockSize int

	buf     []byte
	seq     uint64
	total   uint64
	closed  bool
	aborted bool

	// set when blocks are compressed concurrently
	workers *errgroup.Group
	queue   chan chan frame
	done    chan struct{}

	mu  sync.Mutex
	err error
}

var errAborted = errors.New("stream aborted")

type frame struct {
	header  blockHeader
	payload []byte
	err     error
}

// NewWriter writes the stream header to dst and returns the stage. dst is not
// closed by the stage.
func NewWriter(dst io.Writer, codec engine.Codec, opts Options) (*Writer, error) {
	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = engine.DefaultBlockSize
	}
	if blockSize < 0 || blockSize > MaxBlockSize {
		return nil, fmt.Errorf("invalid block size %d: must be between 1 and %d", blockSize, MaxBlockSize)
	}

	w := &Writer{
		dst:       dst,
		codec:     codec,
		blockSize: blockSize,
	}

	header := make([]byte, streamHeaderSize)
	copy(header, streamMagic)
	header[4] = formatVersion
	header[5] = codec.ID()
	binary.BigEndian.PutUint32(header[8:], uint32(blockSize))
	if _, err := dst.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write stream header: %w", err)
	}

	if threads := opts.threads(); threads > 1 {
		w.workers = new(errgroup.Group)
		w.workers.SetLimit(threads)
		w.queue = make(chan chan frame, threads)
		w.done = make(chan struct{})
		go w.drain()
	}

	return w, nil
}

func (w *Writer) Name() string {
	return fmt.Sprintf("compress(%s)", w.codec.Name())
}

func (w *Writer) Kind() string {
	return "compress"
}

// Blocks returns the number of blocks emitted so far.
func (w *Writer) Blocks() uint64 {
	return w.seq
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write to %s: %w", w.Name(), fs.ErrClosed)
	}
	if err := w.failure(); err != nil {
		return 0, err
	}

	n := 0
	for len(p) > 0 {
		if w.buf == nil {
			w.buf = make([]byte, 0, w.blockSize)
		}
		take := min(w.blockSize-len(w.buf), len(p))
		w.buf = append(w.buf, p[:take]...)
		p = p[take:]
		n += take

		if len(w.buf) == w.blockSize {
			if err := w.emit(w.buf); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Abort makes Close release the stage without completing the stream, so
// that a failed run never leaves a well formed but truncated output.
func (w *Writer) Abort() {
	w.aborted = true
}

// Close flushes the last partial block and writes the trailer. It is safe to
// call more than once.
func (w *Writer) Close(context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.aborted {
		w.setFailure(errAborted)
	}
	if w.failure() == nil && len(w.buf) > 0 {
		err = w.emit(w.buf)
	}

	if w.queue != nil {
		close(w.queue)
		<-w.done
		_ = w.workers.Wait()
	}

	if ferr := w.failure(); ferr != nil {
		if errors.Is(ferr, errAborted) {
			return nil
		}
		return ferr
	}
	if err != nil {
		return err
	}

	trailer := make([]byte, trailerSize)
	copy(trailer, endTag)
	binary.BigEndian.PutUint64(trailer[4:], w.seq)
	binary.BigEndian.PutUint64(trailer[12:], w.total)
	if _, err := w.dst.Write(trailer); err != nil {
		return fmt.Errorf("failed to write stream trailer: %w", err)
	}
	return nil
}

// emit hands a full block over for compression. In concurrent mode the block
// buffer is owned by the worker afterwards.
func (w *Writer) emit(block []byte) error {
	seq := w.seq
	w.seq++
	w.total += uint64(len(block))

	if w.queue == nil {
		f := w.encode(seq, block)
		if f.err == nil {
			f.err = w.writeFrame(f)
		}
		w.buf = w.buf[:0]
		if f.err != nil {
			w.setFailure(f.err)
		}
		return f.err
	}

	w.buf = nil
	result := make(chan frame, 1)
	w.queue <- result
	w.workers.Go(func() error {
		result <- w.encode(seq, block)
		return nil
	})
	return nil
}

func (w *Writer) encode(seq uint64, block []byte) frame {
	header := blockHeader{
		seq: seq,
		raw: uint32(len(block)),
		sum: xxhash.Sum64(block),
	}

	payload, err := w.codec.CompressBlock(nil, block)
	if err != nil {
		return frame{err: fmt.Errorf("failed to compress block %d: %w", seq, err)}
	}
	if len(payload) >= len(block) {
		payload = block
		header.flags |= flagStored
	}
	header.payload = uint32(len(payload))

	return frame{header: header, payload: payload}
}

// drain writes compressed blocks in submission order. After the first
// failure it keeps receiving so that workers never block.
func (w *Writer) drain() {
	defer close(w.done)
	for result := range w.queue {
		f := <-result
		if w.failure() != nil {
			continue
		}
		err := f.err
		if err == nil {
			err = w.writeFrame(f)
		}
		if err != nil {
			w.setFailure(err)
		}
	}
}

func (w *Writer) writeFrame(f frame) error {
	if _, err := w.dst.Write(f.header.marshal()); err != nil {
		return fmt.Errorf("failed to write block %d header: %w", f.header.seq, err)
	}
	if _, err := w.dst.Write(f.payload); err != nil {
		return fmt.Errorf("failed to write block %d: %w", f.header.seq, err)
	}
	return nil
}

func (w *Writer) failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) setFailure(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
