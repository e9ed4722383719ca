package wire

import (
	"encoding/binary"

	"github.com/rootsim-go/ckptengine/internal/ckerr"
)

// Writer is a bounds-checked cursor over a preallocated, exactly-sized
// byte slice. Every write advances the cursor; writing past the end
// returns a CorruptLayout error instead of panicking or growing the
// slice, so a layout bug surfaces where it happened rather than as an
// out-of-bounds panic deep in append().
type Writer struct {
	lpID string
	buf  []byte
	pos  int
}

// NewWriter allocates a Writer over a fresh buffer of exactly size
// bytes, as computed by checkpoint's fullLogSize/incrementalLogSize. A
// negative size — the signature left by int overflow in a chunk-count
// times chunk-size computation upstream — is rejected as a fatal
// AllocationFailed error instead of panicking inside make().
func NewWriter(lpID string, size int) (*Writer, error) {
	if size < 0 {
		return nil, ckerr.AllocationFailedf(lpID, "blob size %d is invalid (chunk arithmetic overflow?)", size)
	}
	return &Writer{lpID: lpID, buf: make([]byte, size)}, nil
}

// Pos returns the current write offset.
func (w *Writer) Pos() int { return w.pos }

// Len returns the total capacity of the underlying buffer.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the backing buffer. Valid once Finish has confirmed the
// cursor reached the end exactly.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) reserve(n int) ([]byte, error) {
	if w.pos+n > len(w.buf) {
		return nil, ckerr.CorruptLayoutf(w.lpID, int64(w.pos+n), int64(len(w.buf)), "write cursor overrun")
	}
	s := w.buf[w.pos : w.pos+n]
	w.pos += n
	return s, nil
}

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) error {
	s, err := w.reserve(1)
	if err != nil {
		return err
	}
	s[0] = v
	return nil
}

// WriteUint32 writes v little-endian.
func (w *Writer) WriteUint32(v uint32) error {
	s, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s, v)
	return nil
}

// WriteUint64 writes v little-endian.
func (w *Writer) WriteUint64(v uint64) error {
	s, err := w.reserve(8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s, v)
	return nil
}

// WritePad writes n zero bytes.
func (w *Writer) WritePad(n int) error {
	s, err := w.reserve(n)
	if err != nil {
		return err
	}
	for i := range s {
		s[i] = 0
	}
	return nil
}

// WriteBytes copies b verbatim into the cursor.
func (w *Writer) WriteBytes(b []byte) error {
	s, err := w.reserve(len(b))
	if err != nil {
		return err
	}
	copy(s, b)
	return nil
}

// WriteLPMemoryHeader writes h in the layout spec.md §6 declares.
func (w *Writer) WriteLPMemoryHeader(h LPMemoryHeader) error {
	var incr uint8
	if h.IsIncremental {
		incr = 1
	}
	for _, step := range []func() error{
		func() error { return w.WriteUint64(h.Timestamp) },
		func() error { return w.WriteUint32(h.NumAreas) },
		func() error { return w.WriteUint32(h.MaxNumAreas) },
		func() error { return w.WriteUint64(h.TotalLogSize) },
		func() error { return w.WriteUint64(h.TotalIncSize) },
		func() error { return w.WriteUint8(incr) },
		func() error { return w.WritePad(7) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// WriteChunkedAreaHeader writes h in the layout spec.md §6 declares.
func (w *Writer) WriteChunkedAreaHeader(h ChunkedAreaHeader) error {
	for _, step := range []func() error{
		func() error { return w.WriteUint32(h.Idx) },
		func() error { return w.WriteUint32(h.Prev) },
		func() error { return w.WriteUint32(h.Next) },
		func() error { return w.WriteUint32(h.NumChunks) },
		func() error { return w.WriteUint32(h.AllocChunks) },
		func() error { return w.WriteUint32(h.NextChunk) },
		func() error { return w.WriteUint32(h.ChunkSize) },
		func() error { return w.WriteUint32(h.DirtyChunks) },
		func() error { return w.WriteUint8(h.Flags) },
		func() error { return w.WritePad(7) },
		func() error { return w.WriteUint64(h.LastAccess) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Finish verifies the cursor landed exactly at the end of the buffer, as
// spec.md §3 requires ("the blob size declared in its header equals the
// byte offset reached after serialization").
func (w *Writer) Finish() error {
	if w.pos != len(w.buf) {
		return ckerr.CorruptLayoutf(w.lpID, int64(w.pos), int64(len(w.buf)), "serialized size does not match declared blob size")
	}
	return nil
}

// Reader is a bounds-checked cursor over an existing byte slice,
// produced by a prior Writer and handed back for restore.
type Reader struct {
	lpID string
	buf  []byte
	pos  int
}

// NewReader wraps buf for reading from offset 0.
func NewReader(lpID string, buf []byte) *Reader {
	return &Reader{lpID: lpID, buf: buf}
}

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

// Len returns the total length of the underlying buffer.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of bytes not yet read.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, ckerr.CorruptLayoutf(r.lpID, int64(r.pos+n), int64(len(r.buf)), "read cursor overrun")
	}
	s := r.buf[r.pos : r.pos+n]
	r.pos += n
	return s, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	s, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	s, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s), nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	s, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s), nil
}

// SkipPad discards n padding bytes.
func (r *Reader) SkipPad(n int) error {
	_, err := r.take(n)
	return err
}

// ReadBytes returns the next n bytes as a fresh copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	s, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s)
	return out, nil
}

// PeekUint32At reads a uint32 at an absolute offset without advancing
// the cursor. Used by restore to peek at a would-be area header's idx
// field before deciding whether to consume it (spec.md §4.5).
func (r *Reader) PeekUint32At(offset int) (uint32, bool) {
	if offset+4 > len(r.buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(r.buf[offset : offset+4]), true
}

// ReadLPMemoryHeader reads an LPMemoryHeader per spec.md §6.
func (r *Reader) ReadLPMemoryHeader() (LPMemoryHeader, error) {
	var h LPMemoryHeader
	var err error
	if h.Timestamp, err = r.ReadUint64(); err != nil {
		return h, err
	}
	if h.NumAreas, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.MaxNumAreas, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.TotalLogSize, err = r.ReadUint64(); err != nil {
		return h, err
	}
	if h.TotalIncSize, err = r.ReadUint64(); err != nil {
		return h, err
	}
	incr, err := r.ReadUint8()
	if err != nil {
		return h, err
	}
	h.IsIncremental = incr != 0
	if err = r.SkipPad(7); err != nil {
		return h, err
	}
	return h, nil
}

// ReadChunkedAreaHeader reads a ChunkedAreaHeader per spec.md §6.
func (r *Reader) ReadChunkedAreaHeader() (ChunkedAreaHeader, error) {
	var h ChunkedAreaHeader
	var err error
	if h.Idx, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.Prev, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.Next, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.NumChunks, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.AllocChunks, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.NextChunk, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.ChunkSize, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.DirtyChunks, err = r.ReadUint32(); err != nil {
		return h, err
	}
	if h.Flags, err = r.ReadUint8(); err != nil {
		return h, err
	}
	if err = r.SkipPad(7); err != nil {
		return h, err
	}
	if h.LastAccess, err = r.ReadUint64(); err != nil {
		return h, err
	}
	return h, nil
}

// AtEnd reports whether the cursor has consumed the whole buffer.
func (r *Reader) AtEnd() bool { return r.pos == len(r.buf) }

// ExpectEnd returns a CorruptLayout error if the cursor has not
// consumed exactly the whole buffer.
func (r *Reader) ExpectEnd() error {
	if !r.AtEnd() {
		return ckerr.CorruptLayoutf(r.lpID, int64(r.pos), int64(len(r.buf)), "trailing bytes after deserialize")
	}
	return nil
}
