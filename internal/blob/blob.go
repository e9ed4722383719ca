// Package blob defines the opaque checkpoint payload the engine hands
// to the host and later reads back: spec.md §3's CheckpointBlob.
package blob

// Blob is a self-contained serialized LPMemory snapshot. The engine
// treats it as an opaque byte sequence; internal/wire interprets its
// layout on write and read.
type Blob struct {
	Bytes []byte
}

// Discard releases a blob's storage. A nil blob is a no-op (spec.md
// §4.6: "the engine must tolerate blob = null as a no-op").
func Discard(b *Blob) {
	if b == nil {
		return
	}
	b.Bytes = nil
}
