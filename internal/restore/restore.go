// Package restore implements the Restorer component: reconstructing an
// LPMemory from a queue node, chaining through incrementals until a
// full log is found (spec.md §4.5).
package restore

import (
	"context"

	"github.com/rootsim-go/ckptengine/internal/bitset"
	"github.com/rootsim-go/ckptengine/internal/ckerr"
	"github.com/rootsim-go/ckptengine/clock"
	"github.com/rootsim-go/ckptengine/internal/memory"
	"github.com/rootsim-go/ckptengine/internal/metrics"
	"github.com/rootsim-go/ckptengine/internal/queue"
	"github.com/rootsim-go/ckptengine/internal/wire"
)

// Restorer reconstructs LPMemory state from checkpoint queue nodes.
type Restorer struct {
	Clock   clock.Clock
	Metrics metrics.Handle
}

// New builds a Restorer. A nil handle defaults to a no-op sink.
func New(c clock.Clock, h metrics.Handle) *Restorer {
	if h == nil {
		h = metrics.NewNoopHandle()
	}
	return &Restorer{Clock: c, Metrics: h}
}

// Restore reconstructs lp from node, dispatching to restoreFull or
// restoreIncremental depending on the node's blob header. RECOVERY is
// posted unconditionally before dispatch, mirroring log_restore's
// unconditional statistics_post_data call in the original source.
func (r *Restorer) Restore(ctx context.Context, lp *memory.LPMemory, node *queue.Node) error {
	start := r.Clock.Now()
	r.Metrics.Recovery(ctx, lp.LPID)

	rd := wire.NewReader(lp.LPID, node.GetBlob().Bytes)
	header, err := rd.ReadLPMemoryHeader()
	if err != nil {
		return err
	}

	if !header.IsIncremental {
		if err := r.restoreFull(lp, header, rd); err != nil {
			return err
		}
	} else {
		if err := r.restoreIncremental(lp, node); err != nil {
			return err
		}
	}

	micros := clock.ElapsedMicros(r.Clock, start)
	r.Metrics.RecoveryTime(ctx, lp.LPID, micros)
	return nil
}

// restoreFull implements spec.md §4.5's restore_full. The live Areas
// slice is never resized by restore (area growth is the host
// allocator's job, per §4.3); a blob that logged fewer areas than lp
// currently has simply leaves the extra slots to the peek-miss branch
// below, which resets them to empty — this is the "num_areas shrinks
// between checkpoint and restore" boundary scenario of spec.md §8,
// and it falls out of the loop without a separate post-pass.
func (r *Restorer) restoreFull(lp *memory.LPMemory, header wire.LPMemoryHeader, rd *wire.Reader) error {
	lp.Timestamp = header.Timestamp
	if header.MaxNumAreas > lp.MaxNumAreas {
		lp.MaxNumAreas = header.MaxNumAreas
	}
	lp.TotalLogSize = header.TotalLogSize

	for i := 0; i < len(lp.Areas); i++ {
		area := lp.Areas[i]
		area.StateChanged = false
		area.DirtyChunks = 0
		area.DirtyBitmap.ClearAll()

		idx, present := rd.PeekUint32At(rd.Pos())
		if !present || int(idx) != i {
			area.ResetEmpty(header.Timestamp)
			continue
		}

		ah, err := rd.ReadChunkedAreaHeader()
		if err != nil {
			return err
		}
		applyAreaHeader(area, ah)

		useBytes, err := rd.ReadBytes(bitset.RequiredBytes(int(area.NumChunks)))
		if err != nil {
			return err
		}
		area.UseBitmap = bitset.FromBytes(int(area.NumChunks), useBytes)

		if ah.LogMode() {
			for k := uint32(0); k < area.NumChunks; k++ {
				payload, err := rd.ReadBytes(int(area.ChunkSize))
				if err != nil {
					return err
				}
				copy(area.Chunk(k), payload)
			}
		} else {
			var readErr error
			area.UseBitmap.ForEachSet(func(k int) bool {
				var payload []byte
				payload, readErr = rd.ReadBytes(int(area.ChunkSize))
				if readErr != nil {
					return false
				}
				copy(area.Chunk(uint32(k)), payload)
				return true
			})
			if readErr != nil {
				return readErr
			}
		}
	}

	lp.Timestamp = memory.SentinelUnknown
	lp.IsIncremental = false
	lp.TotalIncSize = uint64(wire.LPMemoryHeaderSize)
	return nil
}

func applyAreaHeader(area *memory.ChunkedArea, ah wire.ChunkedAreaHeader) {
	area.Prev = ah.Prev
	area.Next = ah.Next
	area.NumChunks = ah.NumChunks
	area.AllocChunks = ah.AllocChunks
	area.NextChunk = ah.NextChunk
	area.ChunkSize = ah.ChunkSize
	area.Flags = ah.Flags
	area.LastAccess = ah.LastAccess
}

// toBeRestored tracks, per area index, the set of chunks a chained
// incremental restore still needs to fill in from an older log.
type toBeRestored struct {
	bitmaps map[uint32]*bitset.BitSet
}

func newToBeRestored() *toBeRestored {
	return &toBeRestored{bitmaps: make(map[uint32]*bitset.BitSet)}
}

func (t *toBeRestored) get(idx uint32) (*bitset.BitSet, bool) {
	b, ok := t.bitmaps[idx]
	return b, ok
}

func (t *toBeRestored) initFrom(idx uint32, useBitmap *bitset.BitSet) *bitset.BitSet {
	b := useBitmap.Clone()
	t.bitmaps[idx] = b
	return b
}

// restoreIncremental implements spec.md §4.5's restore_incremental: it
// walks the chain newer to older from node until it reaches a full
// log, tracking per-area "still needed" chunk sets so the newest
// sighting of any given chunk wins (spec.md §4.5 "Tie-break / ordering
// rules").
func (r *Restorer) restoreIncremental(lp *memory.LPMemory, node *queue.Node) error {
	tbr := newToBeRestored()

	cur := node
	var fullHeader wire.LPMemoryHeader
	var fullReader *wire.Reader

	for {
		if cur == nil {
			return ckerr.CorruptChainf(lp.LPID, "incremental restore ran out of chain without reaching a full log")
		}
		rd := wire.NewReader(lp.LPID, cur.GetBlob().Bytes)
		header, err := rd.ReadLPMemoryHeader()
		if err != nil {
			return err
		}

		if !header.IsIncremental {
			fullHeader = header
			fullReader = rd
			break
		}

		if cur == node {
			lp.Timestamp = header.Timestamp
			if header.MaxNumAreas > lp.MaxNumAreas {
				lp.MaxNumAreas = header.MaxNumAreas
			}
		}

		for !rd.AtEnd() {
			ah, err := rd.ReadChunkedAreaHeader()
			if err != nil {
				return err
			}
			area, err := lp.AreaAt(ah.Idx)
			if err != nil {
				return err
			}

			useBytes, err := rd.ReadBytes(bitset.RequiredBytes(int(ah.NumChunks)))
			if err != nil {
				return err
			}
			loggedUse := bitset.FromBytes(int(ah.NumChunks), useBytes)

			needed, seenBefore := tbr.get(ah.Idx)
			if !seenBefore {
				applyAreaHeader(area, ah)
				area.UseBitmap = loggedUse.Clone()
				area.StateChanged = false
				area.DirtyChunks = 0
				area.DirtyBitmap.ClearAll()
				needed = tbr.initFrom(ah.Idx, loggedUse)
			}

			if ah.DirtyChunks == 0 {
				continue
			}

			dirtyBytes, err := rd.ReadBytes(bitset.RequiredBytes(int(ah.NumChunks)))
			if err != nil {
				return err
			}
			dirty := bitset.FromBytes(int(ah.NumChunks), dirtyBytes)

			var readErr error
			dirty.ForEachSet(func(k int) bool {
				payload, err := rd.ReadBytes(int(ah.ChunkSize))
				if err != nil {
					readErr = err
					return false
				}
				if needed.Test(k) {
					copy(area.Chunk(uint32(k)), payload)
					needed.Clear(k)
				}
				return true
			})
			if readErr != nil {
				return readErr
			}
		}

		if err := rd.ExpectEnd(); err != nil {
			return err
		}

		prev := cur.Prev()
		if prev == nil {
			return ckerr.CorruptChainf(lp.LPID, "incremental restore reached the end of the chain without a full log")
		}
		cur = prev
	}

	for !fullReader.AtEnd() {
		ah, err := fullReader.ReadChunkedAreaHeader()
		if err != nil {
			return err
		}
		area, err := lp.AreaAt(ah.Idx)
		if err != nil {
			return err
		}

		useBytes, err := fullReader.ReadBytes(bitset.RequiredBytes(int(ah.NumChunks)))
		if err != nil {
			return err
		}
		loggedUse := bitset.FromBytes(int(ah.NumChunks), useBytes)

		needed, seenBefore := tbr.get(ah.Idx)
		if !seenBefore {
			applyAreaHeader(area, ah)
			area.UseBitmap = loggedUse.Clone()
			area.StateChanged = false
			area.DirtyChunks = 0
			area.DirtyBitmap.ClearAll()
			needed = tbr.initFrom(ah.Idx, loggedUse)
		}

		if ah.LogMode() {
			for k := uint32(0); k < ah.NumChunks; k++ {
				payload, err := fullReader.ReadBytes(int(ah.ChunkSize))
				if err != nil {
					return err
				}
				if needed.Test(int(k)) {
					copy(area.Chunk(k), payload)
					needed.Clear(int(k))
				}
			}
		} else {
			var readErr error
			loggedUse.ForEachSet(func(k int) bool {
				payload, err := fullReader.ReadBytes(int(ah.ChunkSize))
				if err != nil {
					readErr = err
					return false
				}
				if needed.Test(k) {
					copy(area.Chunk(uint32(k)), payload)
					needed.Clear(k)
				}
				return true
			})
			if readErr != nil {
				return readErr
			}
		}
	}
	if err := fullReader.ExpectEnd(); err != nil {
		return err
	}

	// Any area never mentioned anywhere in the chain (including the
	// full log) had alloc_chunks == 0 at full-log time — full() always
	// includes an area once it has allocated chunks, so absence here
	// means "never logged" and the area resets to empty, the same
	// treatment restore_full gives a peek-miss.
	for i := 0; i < len(lp.Areas); i++ {
		if _, ok := tbr.get(uint32(i)); !ok {
			lp.Areas[i].ResetEmpty(fullHeader.Timestamp)
		}
	}

	lp.Timestamp = memory.SentinelUnknown
	lp.IsIncremental = false
	lp.TotalIncSize = uint64(wire.LPMemoryHeaderSize)
	return nil
}
