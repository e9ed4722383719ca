package memory

import (
	"github.com/rootsim-go/ckptengine/internal/ckerr"
)

// SentinelUnknown is the timestamp a restored LPMemory carries until the
// host re-schedules an event on it: "inherited from snapshot" per
// spec.md §5.
const SentinelUnknown uint64 = ^uint64(0)

// LPMemory is a collection of ChunkedAreas owned by one LP: the
// allocation and write-tracking surface of spec.md §3/§4.3.
//
// The engine performs no internal locking on LPMemory (spec.md §5): the
// host scheduler guarantees no two goroutines touch the same LP's
// LPMemory concurrently.
type LPMemory struct {
	LPID string

	Areas       []*ChunkedArea // index i always has Areas[i].Idx == uint32(i)
	MaxNumAreas uint32         // high-watermark of len(Areas) ever observed

	Timestamp uint64 // LP virtual time of current content

	TotalLogSize uint64 // size the next full log will occupy
	TotalIncSize uint64 // size the next incremental log will occupy

	IsIncremental bool // 1 iff last log produced was incremental

	forceFull bool
}

// New creates an empty LPMemory for the given LP identifier.
func New(lpID string) *LPMemory {
	return &LPMemory{LPID: lpID, TotalIncSize: uint64(lpMemoryHeaderLogicalSize)}
}

// lpMemoryHeaderLogicalSize stands in for sizeof(malloc_state) in the
// original C: total_inc_size is always >= this baseline (spec.md §3).
// The real byte count is wire.LPMemoryHeaderSize; memory doesn't import
// wire to avoid a cycle, so checkpoint/restore re-stamp this field with
// the authoritative constant whenever they reset it.
const lpMemoryHeaderLogicalSize = 40

// AddArea appends a new, empty area sized numChunks x chunkSize and
// returns it. Growing the area list is the host allocator's job
// (spec.md §1 non-goals); this is the mechanism it uses to do so.
func (m *LPMemory) AddArea(numChunks, chunkSize uint32) *ChunkedArea {
	idx := uint32(len(m.Areas))
	area := NewChunkedArea(idx, numChunks, chunkSize)
	if idx > 0 {
		area.Prev = idx - 1
		m.Areas[idx-1].Next = idx
	}
	m.Areas = append(m.Areas, area)
	if uint32(len(m.Areas)) > m.MaxNumAreas {
		m.MaxNumAreas = uint32(len(m.Areas))
	}
	return area
}

// Allocate returns the next free chunk in some area whose untagged
// chunk size covers size, per spec.md §4.3. It fails with OutOfCapacity
// when no area has a free chunk that fits.
func (m *LPMemory) Allocate(size uint32) (ChunkRef, error) {
	for _, area := range m.Areas {
		if area.UntaggedChunkSize() < size {
			continue
		}
		if k, ok := findFreeChunk(area); ok {
			area.UseBitmap.Set(int(k))
			area.AllocChunks++
			area.NextChunk = (k + 1) % area.NumChunks
			area.StateChanged = true
			return ChunkRef{AreaIdx: area.Idx, ChunkIdx: k}, nil
		}
	}
	return ChunkRef{}, ckerr.OutOfCapacityf(m.LPID, "no area has a free chunk covering %d bytes", size)
}

// findFreeChunk scans starting at NextChunk for an unset use bit.
func findFreeChunk(area *ChunkedArea) (uint32, bool) {
	n := area.NumChunks
	if area.AllocChunks >= n {
		return 0, false
	}
	for i := uint32(0); i < n; i++ {
		k := (area.NextChunk + i) % n
		if !area.UseBitmap.Test(int(k)) {
			return k, true
		}
	}
	return 0, false
}

// Free clears the chunk's use bit. Freeing an already-free chunk is
// rejected (spec.md §4.3: "idempotent on already-free chunks is
// unspecified and must be rejected by the caller").
func (m *LPMemory) Free(ref ChunkRef) error {
	area, err := m.area(ref.AreaIdx)
	if err != nil {
		return err
	}
	if !area.UseBitmap.Test(int(ref.ChunkIdx)) {
		return ckerr.InvariantViolationf(m.LPID, int(ref.AreaIdx), "free of already-free chunk %d", ref.ChunkIdx)
	}
	area.UseBitmap.Clear(int(ref.ChunkIdx))
	area.AllocChunks--
	if ref.ChunkIdx < area.NextChunk {
		area.NextChunk = ref.ChunkIdx
	}
	area.StateChanged = true
	return nil
}

// NotifyWrite marks a chunk dirty. This is the hook the instrumentation
// layer calls on every write to LP-owned memory (spec.md §4.3).
func (m *LPMemory) NotifyWrite(ref ChunkRef) error {
	area, err := m.area(ref.AreaIdx)
	if err != nil {
		return err
	}
	if !area.DirtyBitmap.Test(int(ref.ChunkIdx)) {
		area.DirtyBitmap.Set(int(ref.ChunkIdx))
		area.DirtyChunks++
		m.TotalIncSize += uint64(area.ChunkSize)
	}
	area.StateChanged = true
	return nil
}

// ChunkBytes returns the payload slice backing ref, for the host to
// read or write through.
func (m *LPMemory) ChunkBytes(ref ChunkRef) ([]byte, error) {
	area, err := m.area(ref.AreaIdx)
	if err != nil {
		return nil, err
	}
	if int(ref.ChunkIdx) >= int(area.NumChunks) {
		return nil, ckerr.InvariantViolationf(m.LPID, int(ref.AreaIdx), "chunk index %d out of range", ref.ChunkIdx)
	}
	return area.ChunkPayload(ref.ChunkIdx), nil
}

func (m *LPMemory) area(idx uint32) (*ChunkedArea, error) {
	return m.AreaAt(idx)
}

// AreaAt returns the area at idx, bounds-checked. checkpoint/restore
// use this instead of indexing Areas directly so a blob that names an
// area index the live LPMemory doesn't have surfaces as a diagnosable
// error rather than a panic.
func (m *LPMemory) AreaAt(idx uint32) (*ChunkedArea, error) {
	if int(idx) >= len(m.Areas) {
		return nil, ckerr.InvariantViolationf(m.LPID, int(idx), "area index out of range")
	}
	return m.Areas[idx], nil
}

// ForceFull marks that the next checkpoint must be a full log,
// regardless of the configured snapshot mode (spec.md §6's
// force_full(lp) API).
func (m *LPMemory) ForceFull() {
	m.forceFull = true
}

// ConsumeForceFull reports and clears the force-full flag. Called by
// Checkpointer.Checkpoint once per checkpoint.
func (m *LPMemory) ConsumeForceFull() bool {
	v := m.forceFull
	m.forceFull = false
	return v
}
