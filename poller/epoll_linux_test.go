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

//go:build linux

package poller_test

import (
	"os"
	"time"

	"github.com/nabbar/golib/poller"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("epoll poller", func() {
	var (
		p          poller.Poller
		r, w       *os.File
		readFired  int
		writeFired int
	)

	BeforeEach(func() {
		var err error
		p, err = poller.New()
		Expect(err).ToNot(HaveOccurred())

		r, w, err = os.Pipe()
		Expect(err).ToNot(HaveOccurred())

		readFired, writeFired = 0, 0
	})

	AfterEach(func() {
		_ = p.Close()
		_ = r.Close()
		_ = w.Close()
	})

	It("fires the read callback once data is written", func() {
		err := p.Register(int(r.Fd()), func(fd int) bool {
			buf := make([]byte, 16)
			n, _ := os.NewFile(uintptr(fd), "r").Read(buf)
			readFired += n
			return n > 0
		}, nil)
		Expect(err).ToNot(HaveOccurred())

		p.Set(int(r.Fd()), poller.DirRead)

		_, err = w.Write([]byte("ping"))
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() int {
			_, _ = p.Wait(50 * time.Millisecond)
			return readFired
		}, time.Second).Should(Equal(4))
	})

	It("fires the write callback for an always-writable fd speculatively", func() {
		err := p.Register(int(w.Fd()), nil, func(fd int) bool {
			writeFired++
			return true
		})
		Expect(err).ToNot(HaveOccurred())

		p.Set(int(w.Fd()), poller.DirWrite)

		processed, err := p.Wait(50 * time.Millisecond)
		Expect(err).ToNot(HaveOccurred())
		Expect(processed).To(BeNumerically(">=", 1))
		Expect(writeFired).To(BeNumerically(">=", 1))
	})

	It("stops delivering events after Remove", func() {
		err := p.Register(int(r.Fd()), func(fd int) bool {
			readFired++
			return true
		}, nil)
		Expect(err).ToNot(HaveOccurred())

		Expect(p.Remove(int(r.Fd()))).ToNot(HaveOccurred())

		_, _ = w.Write([]byte("x"))
		_, _ = p.Wait(10 * time.Millisecond)

		Expect(readFired).To(Equal(0))
	})

	It("rejects a duplicate Register for the same fd", func() {
		Expect(p.Register(int(r.Fd()), nil, nil)).ToNot(HaveOccurred())
		Expect(p.Register(int(r.Fd()), nil, nil)).To(HaveOccurred())
	})
})
