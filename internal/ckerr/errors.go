// Package ckerr defines the error taxonomy of the checkpoint/restore
// engine, per spec.md §7.
//
// One kind is recoverable (OutOfCapacity is returned to the caller to
// handle); the rest indicate data-structure corruption and are marked
// Fatal so the host can abort the simulation instead of retrying.
package ckerr

import "fmt"

// Kind classifies an engine error.
type Kind int

const (
	// OutOfCapacity: no free chunk in any area fits an allocation.
	// Recoverable — returned to the caller.
	OutOfCapacity Kind = iota
	// AllocationFailed: backing memory for a blob or a restore bitmap
	// could not be obtained.
	AllocationFailed
	// CorruptLayout: the computed blob size disagrees with the cursor
	// position at the end of serialize or deserialize.
	CorruptLayout
	// CorruptChain: incremental restore ran out of prev links before
	// reaching a full log.
	CorruptChain
	// InvariantViolation: state_changed == 0 while dirty_chunks > 0, or
	// another structural invariant from spec.md §3 was violated.
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case OutOfCapacity:
		return "OutOfCapacity"
	case AllocationFailed:
		return "AllocationFailed"
	case CorruptLayout:
		return "CorruptLayout"
	case CorruptChain:
		return "CorruptChain"
	case InvariantViolation:
		return "InvariantViolation"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind indicate the simulation
// cannot proceed and must abort rather than retry.
func (k Kind) Fatal() bool {
	return k != OutOfCapacity
}

// Error is the engine's error type. It names the LP, and optionally the
// area index and byte offsets involved, per spec.md §7's diagnostic
// requirement.
type Error struct {
	Kind      Kind
	LPID      string
	AreaIdx   int // -1 if not applicable
	Offset    int64
	ExpectOff int64 // -1 if not applicable
	Msg       string
}

func (e *Error) Error() string {
	s := fmt.Sprintf("ckpt: %s: lp=%s", e.Kind, e.LPID)
	if e.AreaIdx >= 0 {
		s += fmt.Sprintf(" area=%d", e.AreaIdx)
	}
	if e.ExpectOff >= 0 {
		s += fmt.Sprintf(" offset=%d want=%d", e.Offset, e.ExpectOff)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// Fatal reports whether this error must abort the simulation.
func (e *Error) Fatal() bool {
	return e.Kind.Fatal()
}

// New builds an Error with no offset/area context.
func New(kind Kind, lpID, msg string) *Error {
	return &Error{Kind: kind, LPID: lpID, AreaIdx: -1, ExpectOff: -1, Msg: msg}
}

// WithArea attaches an area index to the error.
func (e *Error) WithArea(idx int) *Error {
	e.AreaIdx = idx
	return e
}

// WithOffsets attaches the observed and expected byte offsets to the
// error, as spec.md §7 requires for CorruptLayout diagnostics.
func (e *Error) WithOffsets(got, want int64) *Error {
	e.Offset = got
	e.ExpectOff = want
	return e
}

// OutOfCapacityf builds a recoverable OutOfCapacity error.
func OutOfCapacityf(lpID, format string, args ...any) *Error {
	return New(OutOfCapacity, lpID, fmt.Sprintf(format, args...))
}

// CorruptLayoutf builds a fatal CorruptLayout error.
func CorruptLayoutf(lpID string, got, want int64, format string, args ...any) *Error {
	return New(CorruptLayout, lpID, fmt.Sprintf(format, args...)).WithOffsets(got, want)
}

// CorruptChainf builds a fatal CorruptChain error.
func CorruptChainf(lpID, format string, args ...any) *Error {
	return New(CorruptChain, lpID, fmt.Sprintf(format, args...))
}

// InvariantViolationf builds a fatal InvariantViolation error.
func InvariantViolationf(lpID string, areaIdx int, format string, args ...any) *Error {
	return New(InvariantViolation, lpID, fmt.Sprintf(format, args...)).WithArea(areaIdx)
}

// AllocationFailedf builds a fatal AllocationFailed error.
func AllocationFailedf(lpID, format string, args ...any) *Error {
	return New(AllocationFailed, lpID, fmt.Sprintf(format, args...))
}
