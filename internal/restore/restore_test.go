package restore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsim-go/ckptengine/internal/checkpoint"
	"github.com/rootsim-go/ckptengine/clock"
	"github.com/rootsim-go/ckptengine/internal/memory"
	"github.com/rootsim-go/ckptengine/internal/metrics"
	"github.com/rootsim-go/ckptengine/internal/queue"
	"github.com/rootsim-go/ckptengine/internal/restore"
)

func newEngine() (*checkpoint.Checkpointer, *restore.Restorer) {
	fc := clock.NewFakeClock(clock.RealClock{}.Now())
	m := metrics.NewNoopHandle()
	return checkpoint.New(fc, m), restore.New(fc, m)
}

// S1: one area, 8 chunks of 16 bytes. Allocate 0,2,4. Write 0xAA into
// chunk 2. Full checkpoint, restore into a fresh LPMemory.
func TestS1FullCheckpointRoundTrip(t *testing.T) {
	ckp, rst := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	lp.AddArea(8, 16)

	// The allocator hands out the lowest free chunk, so allocate 0..4 and
	// free 1 and 3 to leave exactly 0, 2, 4 in use.
	ref0, err := lp.Allocate(16)
	require.NoError(t, err)
	ref1, err := lp.Allocate(16)
	require.NoError(t, err)
	ref2, err := lp.Allocate(16)
	require.NoError(t, err)
	ref3, err := lp.Allocate(16)
	require.NoError(t, err)
	ref4, err := lp.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, lp.Free(ref1))
	require.NoError(t, lp.Free(ref3))
	require.NoError(t, lp.NotifyWrite(ref2))
	payload, err := lp.ChunkBytes(ref2)
	require.NoError(t, err)
	for i := range payload {
		payload[i] = 0xAA
	}

	b, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, true)
	require.NoError(t, err)

	q := queue.New("lp-1")
	node := q.Push(b, lp.Timestamp)

	target := memory.New("lp-1")
	target.AddArea(8, 16)
	require.NoError(t, rst.Restore(ctx, target, node))

	area := target.Areas[0]
	assert.True(t, area.UseBitmap.Test(int(ref0.ChunkIdx)))
	assert.True(t, area.UseBitmap.Test(int(ref2.ChunkIdx)))
	assert.True(t, area.UseBitmap.Test(int(ref4.ChunkIdx)))
	assert.False(t, area.UseBitmap.Test(1))

	got, err := target.ChunkBytes(ref2)
	require.NoError(t, err)
	for _, b := range got {
		assert.Equal(t, byte(0xAA), b)
	}
}

// S2: a variant of S1 with three consecutively allocated chunks (0, 1,
// 2; chunk 1 holds 0xAA). Full checkpoint, then write 0xBB into chunk 2,
// allocate chunk 3, free chunk 0. Incremental checkpoint, restore via
// the chain to the full log.
func TestS2IncrementalChainedToFull(t *testing.T) {
	ckp, rst := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	lp.AddArea(8, 16)
	ref0, _ := lp.Allocate(16)
	ref2, _ := lp.Allocate(16)
	ref4, _ := lp.Allocate(16)
	require.NoError(t, lp.NotifyWrite(ref2))
	p2, _ := lp.ChunkBytes(ref2)
	for i := range p2 {
		p2[i] = 0xAA
	}

	fullBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, true)
	require.NoError(t, err)
	q := queue.New("lp-1")
	fullNode := q.Push(fullBlob, lp.Timestamp)

	require.NoError(t, lp.NotifyWrite(ref4))
	p4, _ := lp.ChunkBytes(ref4)
	for i := range p4 {
		p4[i] = 0xBB
	}
	ref6, err := lp.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, lp.Free(ref0))

	incBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, false)
	require.NoError(t, err)
	incNode := q.Push(incBlob, lp.Timestamp+1)
	_ = fullNode

	target := memory.New("lp-1")
	target.AddArea(8, 16)
	require.NoError(t, rst.Restore(ctx, target, incNode))

	area := target.Areas[0]
	assert.False(t, area.UseBitmap.Test(int(ref0.ChunkIdx)), "chunk 0 was freed")
	assert.True(t, area.UseBitmap.Test(int(ref2.ChunkIdx)))
	assert.True(t, area.UseBitmap.Test(int(ref4.ChunkIdx)))
	assert.True(t, area.UseBitmap.Test(int(ref6.ChunkIdx)))

	got2, _ := target.ChunkBytes(ref2)
	for _, b := range got2 {
		assert.Equal(t, byte(0xAA), b)
	}
	got4, _ := target.ChunkBytes(ref4)
	for _, b := range got4 {
		assert.Equal(t, byte(0xBB), b)
	}
	got6, _ := target.ChunkBytes(ref6)
	for _, b := range got6 {
		assert.Equal(t, byte(0), b)
	}
}

// S3: two areas; area 1 has LOG_MODE set. Full checkpoint then restore
// recovers the written pattern from the wholesale dump.
func TestS3WholesaleAreaRoundTrip(t *testing.T) {
	ckp, rst := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	lp.AddArea(4, 8)
	area1 := lp.AddArea(2, 64)
	area1.SetLogMode(true)

	ref, err := lp.Allocate(64)
	require.NoError(t, err)
	require.Equal(t, uint32(1), ref.AreaIdx)
	payload, err := lp.ChunkBytes(ref)
	require.NoError(t, err)
	for i := range payload {
		payload[i] = 0x7A
	}

	b, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, true)
	require.NoError(t, err)
	q := queue.New("lp-1")
	node := q.Push(b, lp.Timestamp)

	target := memory.New("lp-1")
	target.AddArea(4, 8)
	target.AddArea(2, 64)
	require.NoError(t, rst.Restore(ctx, target, node))

	got, err := target.ChunkBytes(ref)
	require.NoError(t, err)
	for _, v := range got {
		assert.Equal(t, byte(0x7A), v)
	}
}

// S4: forced full overrides the configured mode and force_full clears.
func TestS4ForceFullClearsAfterCheckpoint(t *testing.T) {
	ckp, _ := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	lp.AddArea(4, 8)
	_, err := lp.Allocate(8)
	require.NoError(t, err)
	lp.ForceFull()

	_, err = ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, false)
	require.NoError(t, err)
	assert.False(t, lp.ConsumeForceFull())
}

// S5: chain length 3 — F, I1 dirties X with v1, I2 dirties X with v2.
// Restoring I2 yields v2 at X (newest-wins).
func TestS5NewestIncrementalWins(t *testing.T) {
	ckp, rst := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	lp.AddArea(4, 16)
	ref, err := lp.Allocate(16)
	require.NoError(t, err)

	fullBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, true)
	require.NoError(t, err)
	q := queue.New("lp-1")
	q.Push(fullBlob, 1)

	require.NoError(t, lp.NotifyWrite(ref))
	p, _ := lp.ChunkBytes(ref)
	for i := range p {
		p[i] = 1
	}
	i1Blob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, false)
	require.NoError(t, err)
	q.Push(i1Blob, 2)

	require.NoError(t, lp.NotifyWrite(ref))
	p, _ = lp.ChunkBytes(ref)
	for i := range p {
		p[i] = 2
	}
	i2Blob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, false)
	require.NoError(t, err)
	i2Node := q.Push(i2Blob, 3)

	target := memory.New("lp-1")
	target.AddArea(4, 16)
	require.NoError(t, rst.Restore(ctx, target, i2Node))

	got, err := target.ChunkBytes(ref)
	require.NoError(t, err)
	for _, v := range got {
		assert.Equal(t, byte(2), v)
	}
}

// S6: shrinking areas — at F there are 3 areas; incremental I1 only
// lists area 2. Restoring I1: areas 0,1 keep F's payload; area 2
// reflects I1.
func TestS6ShrinkingAreasKeepUntouchedAreasFromFull(t *testing.T) {
	ckp, rst := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	lp.AddArea(2, 8)
	lp.AddArea(2, 8)
	lp.AddArea(2, 8)

	var refs []memory.ChunkRef
	for i := 0; i < 6; i++ {
		ref, err := lp.Allocate(8)
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	ref1 := refs[2] // first chunk of area 1
	ref2 := refs[4] // first chunk of area 2

	fullBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, true)
	require.NoError(t, err)
	q := queue.New("lp-1")
	q.Push(fullBlob, 1)

	require.NoError(t, lp.NotifyWrite(ref2))
	p2, _ := lp.ChunkBytes(ref2)
	for i := range p2 {
		p2[i] = 0xCC
	}
	incBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, false)
	require.NoError(t, err)
	incNode := q.Push(incBlob, 2)

	target := memory.New("lp-1")
	target.AddArea(2, 8)
	target.AddArea(2, 8)
	target.AddArea(2, 8)
	require.NoError(t, rst.Restore(ctx, target, incNode))

	assert.True(t, target.Areas[1].UseBitmap.Test(int(ref1.ChunkIdx)))
	got2, err := target.ChunkBytes(ref2)
	require.NoError(t, err)
	for _, v := range got2 {
		assert.Equal(t, byte(0xCC), v)
	}
}

// TestWholesaleAreaViaIncrementalChainCursorLandsExactly exercises
// spec.md §9's open question about restore_incremental's wholesale
// branch: area 0 is LOG_MODE and never touched again after the full
// log, so the incremental never mentions it and its bytes can only
// come from fullReader's wholesale branch at the tail of
// restoreIncremental. If that branch advanced the cursor by anything
// other than exactly num_chunks*chunk_size, fullReader.ExpectEnd would
// fail and Restore would return an error.
func TestWholesaleAreaViaIncrementalChainCursorLandsExactly(t *testing.T) {
	ckp, rst := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	area0 := lp.AddArea(2, 64)
	area0.SetLogMode(true)
	lp.AddArea(4, 128)

	ref0, err := lp.Allocate(64)
	require.NoError(t, err)
	require.Equal(t, uint32(0), ref0.AreaIdx)
	p0, err := lp.ChunkBytes(ref0)
	require.NoError(t, err)
	for i := range p0 {
		p0[i] = 0x11
	}
	// The other chunk of area 0 is never allocated/written, but LOG_MODE
	// dumps it wholesale regardless; its bytes are whatever the backing
	// buffer holds — zero, since area.Chunk was never written to.

	fullBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, true)
	require.NoError(t, err)
	q := queue.New("lp-1")
	q.Push(fullBlob, lp.Timestamp)

	ref1, err := lp.Allocate(128)
	require.NoError(t, err)
	require.Equal(t, uint32(1), ref1.AreaIdx)
	require.NoError(t, lp.NotifyWrite(ref1))
	p1, err := lp.ChunkBytes(ref1)
	require.NoError(t, err)
	for i := range p1 {
		p1[i] = 0x99
	}

	incBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, false)
	require.NoError(t, err)
	incNode := q.Push(incBlob, lp.Timestamp+1)

	target := memory.New("lp-1")
	target.AddArea(2, 64)
	target.AddArea(4, 128)
	require.NoError(t, rst.Restore(ctx, target, incNode))

	got0, err := target.ChunkBytes(ref0)
	require.NoError(t, err)
	for _, v := range got0 {
		assert.Equal(t, byte(0x11), v)
	}

	other := target.Areas[0].Chunk(1)
	for _, v := range other {
		assert.Equal(t, byte(0), v)
	}

	got1, err := target.ChunkBytes(ref1)
	require.NoError(t, err)
	for _, v := range got1 {
		assert.Equal(t, byte(0x99), v)
	}
}

func TestRestoreIncrementalWithoutFullInChainIsCorruptChain(t *testing.T) {
	ckp, rst := newEngine()
	ctx := context.Background()

	lp := memory.New("lp-1")
	lp.AddArea(2, 8)
	ref, err := lp.Allocate(8)
	require.NoError(t, err)
	require.NoError(t, lp.NotifyWrite(ref))

	// No full checkpoint ever taken: this incremental is the only node
	// in the chain, so a restore starting from it must fail to find a
	// full log to anchor on.
	incBlob, err := ckp.Checkpoint(ctx, lp, checkpoint.ModeHybrid, false)
	require.NoError(t, err)

	q := queue.New("lp-1")
	lonelyNode := q.Push(incBlob, 1)

	target := memory.New("lp-1")
	target.AddArea(2, 8)
	err = rst.Restore(ctx, target, lonelyNode)
	require.Error(t, err)
}
