package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsim-go/ckptengine/internal/memory"
)

func newTwoAreaMemory() *memory.LPMemory {
	m := memory.New("lp-0")
	m.AddArea(4, 16)
	m.AddArea(2, 64)
	return m
}

func TestAllocateFindsFreeChunkInFirstFittingArea(t *testing.T) {
	m := newTwoAreaMemory()

	ref, err := m.Allocate(16)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), ref.AreaIdx)
	assert.Equal(t, uint32(0), ref.ChunkIdx)

	ref2, err := m.Allocate(16)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), ref2.AreaIdx)
	assert.Equal(t, uint32(1), ref2.ChunkIdx)
}

func TestAllocateSkipsAreaWhoseChunksAreTooSmall(t *testing.T) {
	m := newTwoAreaMemory()

	ref, err := m.Allocate(32)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ref.AreaIdx)
}

func TestAllocateFailsWhenNothingFits(t *testing.T) {
	m := newTwoAreaMemory()

	_, err := m.Allocate(1000)
	require.Error(t, err)
}

func TestAllocateExhaustsAreaThenFails(t *testing.T) {
	m := memory.New("lp-0")
	m.AddArea(2, 8)

	_, err := m.Allocate(8)
	require.NoError(t, err)
	_, err = m.Allocate(8)
	require.NoError(t, err)
	_, err = m.Allocate(8)
	require.Error(t, err)
}

func TestFreeThenReallocateReusesChunk(t *testing.T) {
	m := newTwoAreaMemory()
	ref, err := m.Allocate(16)
	require.NoError(t, err)

	require.NoError(t, m.Free(ref))

	ref2, err := m.Allocate(16)
	require.NoError(t, err)
	assert.Equal(t, ref, ref2)
}

func TestDoubleFreeIsRejected(t *testing.T) {
	m := newTwoAreaMemory()
	ref, err := m.Allocate(16)
	require.NoError(t, err)

	require.NoError(t, m.Free(ref))
	err = m.Free(ref)
	require.Error(t, err)
}

func TestNotifyWriteIsIdempotentOnIncSize(t *testing.T) {
	m := newTwoAreaMemory()
	ref, err := m.Allocate(16)
	require.NoError(t, err)

	before := m.TotalIncSize
	require.NoError(t, m.NotifyWrite(ref))
	afterFirst := m.TotalIncSize
	assert.Greater(t, afterFirst, before)

	require.NoError(t, m.NotifyWrite(ref))
	assert.Equal(t, afterFirst, m.TotalIncSize)
}

func TestChunkBytesReturnsUntaggedSlice(t *testing.T) {
	m := memory.New("lp-0")
	area := m.AddArea(4, 16)
	area.TagBytes = 2

	ref, err := m.Allocate(14)
	require.NoError(t, err)

	b, err := m.ChunkBytes(ref)
	require.NoError(t, err)
	assert.Len(t, b, 14)
}

func TestForceFullIsConsumedOnce(t *testing.T) {
	m := newTwoAreaMemory()
	assert.False(t, m.ConsumeForceFull())

	m.ForceFull()
	assert.True(t, m.ConsumeForceFull())
	assert.False(t, m.ConsumeForceFull())
}

func TestOutOfRangeAreaIndexIsInvariantViolation(t *testing.T) {
	m := newTwoAreaMemory()
	_, err := m.ChunkBytes(memory.ChunkRef{AreaIdx: 99, ChunkIdx: 0})
	require.Error(t, err)
}
