// File: bytebuf/buffer.go
// Package bytebuf implements a segmented append-only byte buffer: a
// singly linked list of fixed-size chunks plus position/size/capacity
// cursors, typed endian-aware read/write, and vectored-I/O views for
// scatter/gather transport calls.
//
// Grounded on pool/bufferpool.go's size-classed chunk allocation strategy
// (allocate in whole-chunk increments, never shrink) and on
// core/protocol/frame_codec.go's manual big-endian field encoding,
// generalized here into a reusable typed buffer instead of one-off frame
// fields.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package bytebuf

import (
	"encoding/binary"
	"errors"
	"math"
)

// DefaultChunkSize is the size of each backing chunk, in bytes.
const DefaultChunkSize = 4096

// ErrShortRead is returned when a read would run past the buffer's size.
var ErrShortRead = errors.New("bytebuf: short read")

// ByteBuf is a growable, chunked byte buffer with a single cursor shared by
// reads and writes: writes advance position (and size, when they extend
// past it); reads only advance position, and never past size. Reading back
// what was just written takes a Seek to where the writes started.
type ByteBuf struct {
	chunks    [][]byte
	chunkSize int
	position  int // next read/write offset
	size      int // high-water mark
	capacity  int // chunkSize * len(chunks)
	order     binary.ByteOrder
}

// New builds an empty ByteBuf using DefaultChunkSize chunks and big-endian
// (network) byte order.
func New() *ByteBuf {
	return NewSize(DefaultChunkSize)
}

// NewSize builds an empty ByteBuf with a caller-chosen chunk size.
func NewSize(chunkSize int) *ByteBuf {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ByteBuf{chunkSize: chunkSize, order: binary.BigEndian}
}

// FromBytes wraps an existing byte slice as a readable ByteBuf, copying it
// into the buffer's chunk storage so the caller's slice may be reused
// afterward.
func FromBytes(data []byte) *ByteBuf {
	b := New()
	b.Write(data)
	b.position = 0
	return b
}

// SetOrder overrides the default big-endian byte order.
func (b *ByteBuf) SetOrder(order binary.ByteOrder) { b.order = order }

// Position returns the current cursor offset.
func (b *ByteBuf) Position() int { return b.position }

// Size returns the high-water mark of bytes written.
func (b *ByteBuf) Size() int { return b.size }

// Capacity returns the total addressable bytes currently allocated.
func (b *ByteBuf) Capacity() int { return b.capacity }

// Remaining returns the number of unread bytes ahead of the cursor.
func (b *ByteBuf) Remaining() int { return b.size - b.position }

// Seek repositions the cursor to an absolute offset within [0, size].
func (b *ByteBuf) Seek(pos int) error {
	if pos < 0 || pos > b.size {
		return errors.New("bytebuf: seek out of range")
	}
	b.position = pos
	return nil
}

// Reset clears the buffer back to empty, keeping allocated chunks for
// reuse.
func (b *ByteBuf) Reset() {
	b.position = 0
	b.size = 0
}

func (b *ByteBuf) growTo(capacity int) {
	for b.capacity < capacity {
		b.chunks = append(b.chunks, make([]byte, b.chunkSize))
		b.capacity += b.chunkSize
	}
}

// sliceFor returns a byte-addressable slice view of length n starting at
// absolute offset off, materializing it out of one or more underlying
// chunks. If the range does not cross a chunk boundary, the returned slice
// aliases the chunk directly (zero-copy); otherwise it is a fresh copy.
func (b *ByteBuf) sliceFor(off, n int) []byte {
	chunkIdx := off / b.chunkSize
	chunkOff := off % b.chunkSize
	if chunkOff+n <= b.chunkSize {
		return b.chunks[chunkIdx][chunkOff : chunkOff+n]
	}
	out := make([]byte, n)
	copy(out, b.chunks[chunkIdx][chunkOff:])
	written := b.chunkSize - chunkOff
	remaining := n - written
	idx := chunkIdx + 1
	for remaining > 0 {
		take := remaining
		if take > b.chunkSize {
			take = b.chunkSize
		}
		copy(out[written:written+take], b.chunks[idx][:take])
		written += take
		remaining -= take
		idx++
	}
	return out
}

func (b *ByteBuf) writeAt(off int, data []byte) {
	b.growTo(off + len(data))
	chunkIdx := off / b.chunkSize
	chunkOff := off % b.chunkSize
	remaining := data
	for len(remaining) > 0 {
		space := b.chunkSize - chunkOff
		take := len(remaining)
		if take > space {
			take = space
		}
		copy(b.chunks[chunkIdx][chunkOff:chunkOff+take], remaining[:take])
		remaining = remaining[take:]
		chunkIdx++
		chunkOff = 0
	}
}

// Write appends data at the cursor, growing capacity as needed, and
// advances both position and size.
func (b *ByteBuf) Write(data []byte) {
	b.writeAt(b.position, data)
	b.position += len(data)
	if b.position > b.size {
		b.size = b.position
	}
}

// Read copies up to len(p) unread bytes starting at the cursor into p,
// advancing the cursor by the number of bytes read. Returns ErrShortRead
// if fewer than len(p) bytes are available.
func (b *ByteBuf) Read(p []byte) error {
	if b.position+len(p) > b.size {
		return ErrShortRead
	}
	copy(p, b.sliceFor(b.position, len(p)))
	b.position += len(p)
	return nil
}

// Peek behaves like Read but does not advance the cursor.
func (b *ByteBuf) Peek(p []byte) error {
	if b.position+len(p) > b.size {
		return ErrShortRead
	}
	copy(p, b.sliceFor(b.position, len(p)))
	return nil
}

// Bytes materializes the buffer's readable region [0, size) as a single
// contiguous slice, for callers that need a plain []byte (e.g. handing off
// to net.Conn.Write outside the vectored path).
func (b *ByteBuf) Bytes() []byte {
	return b.sliceFor(0, b.size)
}

// --- fixed-width integers ---

// WriteUint8 writes one byte.
func (b *ByteBuf) WriteUint8(v uint8) { b.Write([]byte{v}) }

// ReadUint8 reads one byte.
func (b *ByteBuf) ReadUint8() (uint8, error) {
	var buf [1]byte
	if err := b.Read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteUint16 writes a fixed-width 16-bit unsigned integer in the buffer's
// configured byte order.
func (b *ByteBuf) WriteUint16(v uint16) {
	var buf [2]byte
	b.order.PutUint16(buf[:], v)
	b.Write(buf[:])
}

// ReadUint16 reads a fixed-width 16-bit unsigned integer.
func (b *ByteBuf) ReadUint16() (uint16, error) {
	var buf [2]byte
	if err := b.Read(buf[:]); err != nil {
		return 0, err
	}
	return b.order.Uint16(buf[:]), nil
}

// WriteUint32 writes a fixed-width 32-bit unsigned integer.
func (b *ByteBuf) WriteUint32(v uint32) {
	var buf [4]byte
	b.order.PutUint32(buf[:], v)
	b.Write(buf[:])
}

// ReadUint32 reads a fixed-width 32-bit unsigned integer.
func (b *ByteBuf) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := b.Read(buf[:]); err != nil {
		return 0, err
	}
	return b.order.Uint32(buf[:]), nil
}

// WriteUint64 writes a fixed-width 64-bit unsigned integer.
func (b *ByteBuf) WriteUint64(v uint64) {
	var buf [8]byte
	b.order.PutUint64(buf[:], v)
	b.Write(buf[:])
}

// ReadUint64 reads a fixed-width 64-bit unsigned integer.
func (b *ByteBuf) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := b.Read(buf[:]); err != nil {
		return 0, err
	}
	return b.order.Uint64(buf[:]), nil
}

// WriteFloat32 writes an IEEE-754 single-precision float by reinterpreting
// its bits as a fixed-width uint32.
func (b *ByteBuf) WriteFloat32(v float32) { b.WriteUint32(math.Float32bits(v)) }

// ReadFloat32 reads an IEEE-754 single-precision float.
func (b *ByteBuf) ReadFloat32() (float32, error) {
	bits, err := b.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// WriteFloat64 writes an IEEE-754 double-precision float by reinterpreting
// its bits as a fixed-width uint64.
func (b *ByteBuf) WriteFloat64(v float64) { b.WriteUint64(math.Float64bits(v)) }

// ReadFloat64 reads an IEEE-754 double-precision float.
func (b *ByteBuf) ReadFloat64() (float64, error) {
	bits, err := b.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// --- vectored I/O views ---

// Span is a single scatter/gather segment.
type Span []byte

// GetReadBuffers returns spans covering up to n unread bytes starting at
// the cursor, for scatter/gather reads. Neither this call advances the
// cursor; callers must call Seek/advance manually after the I/O completes.
func (b *ByteBuf) GetReadBuffers(n int) []Span {
	avail := b.Remaining()
	if n > avail {
		n = avail
	}
	return b.spansFrom(b.position, n)
}

// GetWriteBuffers returns spans covering up to n bytes of writable space
// starting at the cursor, growing the buffer if needed. Neither this call
// advances the cursor.
func (b *ByteBuf) GetWriteBuffers(n int) []Span {
	b.growTo(b.position + n)
	return b.spansFrom(b.position, n)
}

func (b *ByteBuf) spansFrom(off, n int) []Span {
	var spans []Span
	chunkIdx := off / b.chunkSize
	chunkOff := off % b.chunkSize
	remaining := n
	for remaining > 0 {
		take := b.chunkSize - chunkOff
		if take > remaining {
			take = remaining
		}
		spans = append(spans, Span(b.chunks[chunkIdx][chunkOff:chunkOff+take]))
		remaining -= take
		chunkIdx++
		chunkOff = 0
	}
	return spans
}

// Advance moves the cursor forward by n bytes after a vectored I/O call
// completed, updating size if the write extended past the previous
// high-water mark.
func (b *ByteBuf) Advance(n int) {
	b.position += n
	if b.position > b.size {
		b.size = b.position
	}
}
