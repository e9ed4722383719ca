package ckerr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rootsim-go/ckptengine/internal/ckerr"
)

func TestOutOfCapacityIsRecoverable(t *testing.T) {
	err := ckerr.OutOfCapacityf("lp-1", "no free chunk fits size %d", 128)
	assert.False(t, err.Fatal())
	assert.Contains(t, err.Error(), "lp-1")
	assert.Contains(t, err.Error(), "no free chunk fits size 128")
}

func TestFatalKinds(t *testing.T) {
	fatal := []*ckerr.Error{
		ckerr.CorruptLayoutf("lp-2", 10, 12, "short write"),
		ckerr.CorruptChainf("lp-2", "missing prev"),
		ckerr.InvariantViolationf("lp-2", 3, "dirty without state_changed"),
		ckerr.AllocationFailedf("lp-2", "out of memory"),
	}
	for _, e := range fatal {
		assert.True(t, e.Fatal(), e.Kind.String())
	}
}

func TestCorruptLayoutIncludesOffsets(t *testing.T) {
	err := ckerr.CorruptLayoutf("lp-3", 100, 96, "cursor overrun")
	assert.Contains(t, err.Error(), "offset=100")
	assert.Contains(t, err.Error(), "want=96")
}

func TestWithArea(t *testing.T) {
	err := ckerr.InvariantViolationf("lp-4", 7, "boom")
	assert.Contains(t, err.Error(), "area=7")
}
