/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package session

import (
	"errors"

	"github.com/nabbar/golib/size"
)

// ErrRingFull is returned by Write when the ring has no room for any of
// the given bytes.
var ErrRingFull = errors.New("session: ring buffer full")

// RingBuffer is a fixed-capacity byte ring with a single reader and a
// single writer, both expected to run on the scheduler goroutine that
// owns the session — no internal locking.
type RingBuffer struct {
	buf  []byte
	head int
	tail int
	len  int
}

// NewRingBuffer allocates a ring sized from a size.Size configuration
// value (buffer sizes are configured the same way elsewhere in the
// stack, e.g. proxy.Backend.BufferSize).
func NewRingBuffer(capacity size.Size) *RingBuffer {
	n := int(capacity)
	if n <= 0 {
		n = 16384
	}
	return &RingBuffer{buf: make([]byte, n)}
}

func (r *RingBuffer) Cap() int  { return len(r.buf) }
func (r *RingBuffer) Len() int  { return r.len }
func (r *RingBuffer) Free() int { return len(r.buf) - r.len }
func (r *RingBuffer) Empty() bool { return r.len == 0 }
func (r *RingBuffer) Full() bool  { return r.len == len(r.buf) }

// Write copies as much of p as fits and returns the number of bytes
// copied; it never blocks and never grows the buffer.
func (r *RingBuffer) Write(p []byte) (int, error) {
	if r.Full() {
		return 0, ErrRingFull
	}
	n := 0
	for n < len(p) && r.len < len(r.buf) {
		r.buf[r.tail] = p[n]
		r.tail = (r.tail + 1) % len(r.buf)
		r.len++
		n++
	}
	return n, nil
}

// Read copies as much buffered data into p as fits and returns the
// number of bytes copied.
func (r *RingBuffer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && r.len > 0 {
		p[n] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.len--
		n++
	}
	return n, nil
}

// Peek returns up to n bytes without consuming them, for protocols that
// need to inspect before committing (L7 rule inspection, inspect-delay).
func (r *RingBuffer) Peek(n int) []byte {
	if n > r.len {
		n = r.len
	}
	out := make([]byte, n)
	idx := r.head
	for i := 0; i < n; i++ {
		out[i] = r.buf[idx]
		idx = (idx + 1) % len(r.buf)
	}
	return out
}

// Discard drops up to n buffered bytes without copying them out.
func (r *RingBuffer) Discard(n int) int {
	if n > r.len {
		n = r.len
	}
	r.head = (r.head + n) % len(r.buf)
	r.len -= n
	return n
}

// Reset empties the buffer for reuse.
func (r *RingBuffer) Reset() {
	r.head, r.tail, r.len = 0, 0, 0
}
