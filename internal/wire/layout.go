// Package wire defines the on-the-wire byte layout of a CheckpointBlob,
// per spec.md §6, and a bounds-checked cursor to read and write it.
//
// spec.md §9 calls the original C implementation's raw pointer-cast
// approach out for replacement: "a re-architected implementation should
// define explicit framed records ... and a cursor abstraction with
// bounds checking; cursor overrun is CorruptLayout." That is exactly
// what Writer/Reader below do.
package wire

const (
	// LogModeBit marks an area for wholesale (not bitmap-driven) dumps.
	LogModeBit uint8 = 1 << 0
	// AreaLockBit marks an area as locked against reuse by the host
	// allocator. The engine preserves it across checkpoint/restore but
	// never interprets it.
	AreaLockBit uint8 = 1 << 1
)

// LPMemoryHeaderSize is the fixed on-wire size of LPMemoryHeader:
//
//	u64 timestamp, u32 num_areas, u32 max_num_areas,
//	u64 total_log_size, u64 total_inc_size,
//	u8 is_incremental, u8[7] padding.
const LPMemoryHeaderSize = 8 + 4 + 4 + 8 + 8 + 1 + 7

// LPMemoryHeader is the fixed-size record that opens every blob.
type LPMemoryHeader struct {
	Timestamp     uint64
	NumAreas      uint32
	MaxNumAreas   uint32
	TotalLogSize  uint64 // populated in full blobs
	TotalIncSize  uint64 // populated in incremental blobs
	IsIncremental bool
}

// ChunkedAreaHeaderSize is the fixed on-wire size of ChunkedAreaHeader:
//
//	u32 idx, prev, next, num_chunks, alloc_chunks, next_chunk,
//	    chunk_size, dirty_chunks (8 x u32),
//	u8 flags, u8[7] padding,
//	u64 last_access.
const ChunkedAreaHeaderSize = 8*4 + 1 + 7 + 8

// ChunkedAreaHeader is the fixed-size record preceding a logged area's
// bitmaps and payload.
type ChunkedAreaHeader struct {
	Idx          uint32
	Prev         uint32
	Next         uint32
	NumChunks    uint32
	AllocChunks  uint32
	NextChunk    uint32
	ChunkSize    uint32
	DirtyChunks  uint32 // 0 in full blobs
	Flags        uint8
	LastAccess   uint64
}

// LogMode reports whether LogModeBit is set.
func (h ChunkedAreaHeader) LogMode() bool { return h.Flags&LogModeBit != 0 }

// AreaLocked reports whether AreaLockBit is set.
func (h ChunkedAreaHeader) AreaLocked() bool { return h.Flags&AreaLockBit != 0 }
