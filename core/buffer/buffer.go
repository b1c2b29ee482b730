// Package buffer implements a growable byte buffer with separate read and
// write cursors, grown or compacted in place as data is consumed and
// appended.
package buffer

import (
	"github.com/searchktools/reactor-httpd/core/pools"
	"golang.org/x/sys/unix"
)

const bounceSize = 65536

// bouncePool supplies the per-call spillover buffer ReadFD needs when a
// read returns more than the buffer currently has writable capacity for,
// avoiding a 64 KiB stack allocation on every call.
var bouncePool = pools.NewBytePoolWithSizes([]int{bounceSize})

// Buffer is a read/write byte buffer. The zero value is not usable; use New.
type Buffer struct {
	buf  []byte
	r, w int
}

// New creates a Buffer with the given initial capacity.
func New(initialSize int) *Buffer {
	if initialSize <= 0 {
		initialSize = 1024
	}
	return &Buffer{buf: make([]byte, initialSize)}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.w - b.r }

// WritableBytes returns the number of bytes that can be written without growing.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.w }

// Peek returns the unread portion of the buffer without consuming it.
func (b *Buffer) Peek() []byte { return b.buf[b.r:b.w] }

// Advance marks n bytes as consumed from the read cursor.
func (b *Buffer) Advance(n int) {
	if n > b.ReadableBytes() {
		panic("buffer: advance past write cursor")
	}
	b.r += n
}

// Reset clears the buffer, retaining its backing array.
func (b *Buffer) Reset() {
	b.r = 0
	b.w = 0
}

// ensureWritable grows or compacts the buffer so at least n bytes can be
// written without reallocating on the next call.
func (b *Buffer) ensureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.WritableBytes()+b.r < n {
		// Not enough room even after compacting: grow.
		grown := make([]byte, b.w+n+1)
		copy(grown, b.buf[:b.w])
		b.buf = grown
		return
	}
	// Compact: slide the unread tail down to the front.
	readable := b.ReadableBytes()
	copy(b.buf, b.buf[b.r:b.w])
	b.r = 0
	b.w = readable
}

// Append copies p into the buffer, growing or compacting as needed.
func (b *Buffer) Append(p []byte) {
	b.ensureWritable(len(p))
	n := copy(b.buf[b.w:], p)
	b.w += n
}

// AppendString is a convenience wrapper around Append for string data.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// ReadFD performs a vectored read from fd directly into the buffer's spare
// write capacity, spilling any overflow into a per-call bounce buffer and
// appending it. This mirrors the two-iovec readv used to fill the buffer in
// one syscall while still being able to absorb more than is currently
// writable without an upfront resize.
func (b *Buffer) ReadFD(fd int) (int, error) {
	bounce := bouncePool.Get(bounceSize)
	defer bouncePool.Put(bounce)
	writable := b.WritableBytes()

	// &b.buf[b.w] is out of range when the buffer is exactly full
	// (b.w == len(b.buf)); readv still needs a valid base pointer for a
	// zero-length iovec, so pick it before indexing b.buf at all.
	base := &bounce[0]
	if writable > 0 {
		base = &b.buf[b.w]
	}

	iov := []unix.Iovec{
		{Base: base},
		{Base: &bounce[0]},
	}
	iov[0].SetLen(writable)
	iov[1].SetLen(bounceSize)

	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return n, err
	}
	if n <= writable {
		b.w += n
	} else {
		b.w = len(b.buf)
		b.Append(bounce[:n-writable])
	}
	return n, err
}

// WriteFD writes the readable portion of the buffer to fd, advancing the
// read cursor by however much was written.
func (b *Buffer) WriteFD(fd int) (int, error) {
	n, err := unix.Write(fd, b.buf[b.r:b.w])
	if n > 0 {
		b.r += n
	}
	return n, err
}

// String returns the unread portion as a string and resets the buffer.
func (b *Buffer) String() string {
	s := string(b.buf[b.r:b.w])
	b.Reset()
	return s
}
