// Package blockstream implements the compression stage: a block-framed
// container in which every block is compressed independently and carries
// its sequence number and checksum.
//
// Layout (all integers big endian):
//
//	stream header   "bvxs" | version u8 | codec u8 | reserved u16 | block size u32
//	block           "bvx2" | seq u64 | flags u8 | reserved [3]u8 | raw u32 | payload u32 | xxhash64 u64 | payload
//	trailer         "bvx$" | block count u64 | total raw bytes u64
package blockstream

import (
	"encoding/binary"
	"runtime"
)

const (
	streamMagic   = "bvxs"
	blockTag      = "bvx2"
	endTag        = "bvx$"
	formatVersion = 1

	flagStored = 1 << 0

	streamHeaderSize = 12
	blockHeaderSize  = 32
	trailerSize      = 20
	tagSize          = 4

	// MaxBlockSize bounds the memory a single block may claim while decoding.
	MaxBlockSize = 64 << 20
)

type Options struct {
	// BlockSize is the uncompressed size of every block but the last.
	// Zero selects engine.DefaultBlockSize. Ignored by readers.
	BlockSize int
	// Threads is the number of blocks processed concurrently. Zero selects
	// GOMAXPROCS; one processes blocks inline.
	Threads int
}

func (o Options) threads() int {
	if o.Threads <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Threads
}

type blockHeader struct {
	seq     uint64
	flags   uint8
	raw     uint32
	payload uint32
	sum     uint64
}

func (h blockHeader) marshal() []byte {
	b := make([]byte, blockHeaderSize)
	copy(b, blockTag)
	binary.BigEndian.PutUint64(b[4:], h.seq)
	b[12] = h.flags
	binary.BigEndian.PutUint32(b[16:], h.raw)
	binary.BigEndian.PutUint32(b[20:], h.payload)
	binary.BigEndian.PutUint64(b[24:], h.sum)
	return b
}

// unmarshalBlockHeader decodes the fields following the tag.
func unmarshalBlockHeader(b []byte) blockHeader {
	return blockHeader{
		seq:     binary.BigEndian.Uint64(b[0:]),
		flags:   b[8],
		raw:     binary.BigEndian.Uint32(b[12:]),
		payload: binary.BigEndian.Uint32(b[16:]),
		sum:     binary.BigEndian.Uint64(b[20:]),
	}
}
