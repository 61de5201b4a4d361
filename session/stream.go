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
	"io"

	"github.com/nabbar/golib/clock"
)

// Conn is the minimal surface a stream interface needs from a
// connection; *net.TCPConn and net.Pipe()'s net.Conn both satisfy it, as
// does any fake used in tests.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
}

// StreamInterface is one side (client or server) of a session: its own
// lifecycle state, its connection, and the timeout it is currently
// waiting on.
type StreamInterface struct {
	state State
	conn  Conn
	exp   clock.Tick
	err   ErrClass
}

// NewStreamInterface wraps conn at state INI with no expiry armed.
func NewStreamInterface(conn Conn) *StreamInterface {
	return &StreamInterface{conn: conn, state: StateINI, exp: clock.Eternity}
}

func (si *StreamInterface) State() State   { return si.state }
func (si *StreamInterface) Err() ErrClass  { return si.err }
func (si *StreamInterface) Expiry() clock.Tick { return si.exp }

func (si *StreamInterface) setState(s State) { si.state = s }

// SetConn attaches the connection once it becomes available (the server
// side has none until a connect attempt is made).
func (si *StreamInterface) SetConn(conn Conn) { si.conn = conn }
func (si *StreamInterface) arm(exp clock.Tick) { si.exp = exp }
func (si *StreamInterface) disarm()            { si.exp = clock.Eternity }

// Expired reports whether exp has passed as of now, per the SI_FL_EXP
// check the scheduler performs on every handler invocation.
func (si *StreamInterface) Expired(now clock.Tick) bool {
	return clock.IsExpired(si.exp, now)
}

// ReadInto reads as many bytes as the conn currently offers into dst's
// free space and returns the count. io.EOF is returned unwrapped so the
// caller can distinguish a clean shutdown from a real error.
func (si *StreamInterface) ReadInto(dst *RingBuffer) (int, error) {
	free := dst.Free()
	if free == 0 {
		return 0, nil
	}
	buf := make([]byte, free)
	n, err := si.conn.Read(buf)
	if n > 0 {
		_, _ = dst.Write(buf[:n])
	}
	return n, err
}

// WriteFrom writes as much of src's buffered data to the conn as it
// accepts in one call and discards what was written.
func (si *StreamInterface) WriteFrom(src *RingBuffer) (int, error) {
	if src.Empty() {
		return 0, nil
	}
	data := src.Peek(src.Len())
	n, err := si.conn.Write(data)
	src.Discard(n)
	return n, err
}

// Close closes the underlying connection; idempotent-enough for a
// conn that only supports being closed once.
func (si *StreamInterface) Close() error {
	if si.conn == nil {
		return nil
	}
	return si.conn.Close()
}
