// Package memory implements the bitmap-tracked chunk allocator that
// backs one LP's memory image: ChunkedArea (spec.md §3/§4.2) and
// LPMemory (spec.md §3/§4.3).
package memory

import (
	"github.com/rootsim-go/ckptengine/internal/bitset"
)

// Flag bits stored in ChunkedArea.Flags. Values match wire.LogModeBit /
// wire.AreaLockBit so (de)serialization is a plain copy.
const (
	LogModeBit  uint8 = 1 << 0
	AreaLockBit uint8 = 1 << 1
)

// ChunkRef identifies one chunk within an LPMemory: the area it lives
// in and its chunk index within that area's bitmaps and storage.
type ChunkRef struct {
	AreaIdx  uint32
	ChunkIdx uint32
}

// ChunkedArea is one homogeneous pool of equal-sized chunks, tagged
// with a use bitmap and a dirty bitmap, per spec.md §3.
type ChunkedArea struct {
	Idx  uint32
	Prev uint32
	Next uint32

	NumChunks   uint32
	AllocChunks uint32
	NextChunk   uint32
	ChunkSize   uint32 // bytes per chunk, including any host-reserved tag
	TagBytes    uint32 // bytes of ChunkSize reserved by the host allocator

	Storage []byte // len == NumChunks * ChunkSize

	UseBitmap   *bitset.BitSet
	DirtyBitmap *bitset.BitSet

	StateChanged bool
	DirtyChunks  uint32
	LastAccess   uint64
	Flags        uint8
}

// NewChunkedArea allocates an empty area of numChunks chunks of
// chunkSize bytes each.
func NewChunkedArea(idx uint32, numChunks, chunkSize uint32) *ChunkedArea {
	return &ChunkedArea{
		Idx:         idx,
		NumChunks:   numChunks,
		ChunkSize:   chunkSize,
		Storage:     make([]byte, int(numChunks)*int(chunkSize)),
		UseBitmap:   bitset.New(int(numChunks)),
		DirtyBitmap: bitset.New(int(numChunks)),
	}
}

// UntaggedChunkSize returns UNTAGGED_CHUNK_SIZE(area): the payload size
// per chunk, excluding any in-band tag byte(s) reserved by the host
// allocator.
func (a *ChunkedArea) UntaggedChunkSize() uint32 {
	return a.ChunkSize - a.TagBytes
}

// LogMode reports whether LOG_MODE is set: the host-set heuristic bit
// meaning "dump this area wholesale rather than walking its bitmap".
func (a *ChunkedArea) LogMode() bool { return a.Flags&LogModeBit != 0 }

// SetLogMode sets or clears LOG_MODE. The engine never flips this bit
// on its own (spec.md §4.4); only the host allocator does.
func (a *ChunkedArea) SetLogMode(on bool) {
	if on {
		a.Flags |= LogModeBit
	} else {
		a.Flags &^= LogModeBit
	}
}

// AreaLocked reports whether AREA_LOCK is set.
func (a *ChunkedArea) AreaLocked() bool { return a.Flags&AreaLockBit != 0 }

// SetAreaLocked sets or clears AREA_LOCK.
func (a *ChunkedArea) SetAreaLocked(on bool) {
	if on {
		a.Flags |= AreaLockBit
	} else {
		a.Flags &^= AreaLockBit
	}
}

// Chunk returns the full per-chunk byte range for chunk k, including
// any host-reserved tag prefix. Checkpoint/restore serialize this
// slice verbatim so the tag survives a round trip exactly (spec.md §4.4
// sizes payload as alloc_chunks * chunk_size, the tagged size, not the
// untagged one).
func (a *ChunkedArea) Chunk(k uint32) []byte {
	start := int(k) * int(a.ChunkSize)
	return a.Storage[start : start+int(a.ChunkSize)]
}

// ChunkPayload returns the untagged, host-writable slice of chunk k:
// the portion the host allocator hands out to its caller, excluding
// TagBytes bytes of its own bookkeeping.
func (a *ChunkedArea) ChunkPayload(k uint32) []byte {
	start := int(k)*int(a.ChunkSize) + int(a.TagBytes)
	return a.Storage[start : start+int(a.UntaggedChunkSize())]
}

// ResetEmpty resets the area to "not logged at snapshot time", per the
// trailing-area / unlogged-slot treatment shared by restore_full and
// restore_incremental (spec.md §4.5).
func (a *ChunkedArea) ResetEmpty(timestamp uint64) {
	a.AllocChunks = 0
	a.NextChunk = 0
	a.StateChanged = false
	a.DirtyChunks = 0
	a.SetLogMode(false)
	a.SetAreaLocked(false)
	a.UseBitmap.ClearAll()
	a.DirtyBitmap.ClearAll()
	a.LastAccess = timestamp
}
