package bitset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rootsim-go/ckptengine/internal/bitset"
)

func TestRequiredBytesIsPureFunctionOfN(t *testing.T) {
	cases := []struct {
		n     int
		bytes int
	}{
		{0, 0},
		{1, 8},
		{8, 8},
		{63, 8},
		{64, 8},
		{65, 16},
		{128, 16},
		{129, 24},
	}
	for _, c := range cases {
		assert.Equal(t, c.bytes, bitset.RequiredBytes(c.n), "n=%d", c.n)
		// Stable across repeated invocations.
		assert.Equal(t, bitset.RequiredBytes(c.n), bitset.RequiredBytes(c.n))
	}
}

func TestSetClearTest(t *testing.T) {
	b := bitset.New(70)
	assert.False(t, b.Test(0))
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(69)
	assert.True(t, b.Test(0))
	assert.True(t, b.Test(63))
	assert.True(t, b.Test(64))
	assert.True(t, b.Test(69))
	assert.False(t, b.Test(1))

	b.Clear(64)
	assert.False(t, b.Test(64))
	assert.Equal(t, 3, b.PopCount())
}

func TestForEachSetAscending(t *testing.T) {
	b := bitset.New(200)
	want := []int{0, 2, 4, 65, 130, 199}
	for _, i := range want {
		b.Set(i)
	}

	var got []int
	b.ForEachSet(func(i int) bool {
		got = append(got, i)
		return true
	})

	assert.Equal(t, want, got)
}

func TestForEachSetStopsEarly(t *testing.T) {
	b := bitset.New(10)
	b.Set(1)
	b.Set(2)
	b.Set(3)

	var got []int
	b.ForEachSet(func(i int) bool {
		got = append(got, i)
		return i != 2
	})

	assert.Equal(t, []int{1, 2}, got)
}

func TestBytesRoundTrip(t *testing.T) {
	b := bitset.New(100)
	b.Set(3)
	b.Set(99)
	b.Set(50)

	buf := b.Bytes()
	require.Len(t, buf, bitset.RequiredBytes(100))

	restored := bitset.FromBytes(100, buf)
	assert.True(t, restored.Test(3))
	assert.True(t, restored.Test(99))
	assert.True(t, restored.Test(50))
	assert.Equal(t, 3, restored.PopCount())
}

func TestCloneIsIndependent(t *testing.T) {
	b := bitset.New(10)
	b.Set(1)
	clone := b.Clone()
	clone.Set(2)

	assert.False(t, b.Test(2))
	assert.True(t, clone.Test(1))
	assert.True(t, clone.Test(2))
}

func TestSetOutOfRangePanics(t *testing.T) {
	b := bitset.New(4)
	assert.Panics(t, func() { b.Set(4) })
	assert.Panics(t, func() { b.Set(-1) })
}
