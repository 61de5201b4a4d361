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

package session_test

import (
	"github.com/nabbar/golib/session"
	"github.com/nabbar/golib/size"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RingBuffer", func() {
	It("round-trips data smaller than capacity", func() {
		r := session.NewRingBuffer(size.Size(8))
		n, err := r.Write([]byte("abcd"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(4))

		out := make([]byte, 4)
		n, err = r.Read(out)
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(4))
		Expect(out).To(Equal([]byte("abcd")))
		Expect(r.Empty()).To(BeTrue())
	})

	It("wraps around the backing array", func() {
		r := session.NewRingBuffer(size.Size(4))
		_, _ = r.Write([]byte("ab"))
		out := make([]byte, 1)
		_, _ = r.Read(out)
		_, _ = r.Write([]byte("cde"))

		all := r.Peek(r.Len())
		Expect(string(all)).To(Equal("bcde"))
	})

	It("truncates a write that would overflow capacity", func() {
		r := session.NewRingBuffer(size.Size(4))
		n, err := r.Write([]byte("abcdef"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(4))
		Expect(r.Full()).To(BeTrue())
	})

	It("reports full on a second write once capacity is exhausted", func() {
		r := session.NewRingBuffer(size.Size(2))
		_, _ = r.Write([]byte("ab"))
		_, err := r.Write([]byte("c"))
		Expect(err).To(Equal(session.ErrRingFull))
	})

	It("discards buffered bytes without returning them", func() {
		r := session.NewRingBuffer(size.Size(8))
		_, _ = r.Write([]byte("abcdef"))
		n := r.Discard(3)
		Expect(n).To(Equal(3))
		Expect(string(r.Peek(r.Len()))).To(Equal("def"))
	})
})
