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

package queue_test

import (
	"net"

	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/queue"
	"github.com/nabbar/golib/session"
	"github.com/nabbar/golib/size"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type nopPool struct{}

func (nopPool) Pick([]byte, *lb.Server) (*lb.Server, bool) { return nil, false }
func (nopPool) TakeConn(*lb.Server)                        {}
func (nopPool) DropConn(*lb.Server)                        {}

func newQueuedSession(backend string, m *queue.Manager) *session.Session {
	client, _ := net.Pipe()
	req := session.NewRingBuffer(size.Size(1024))
	rep := session.NewRingBuffer(size.Size(1024))
	s := session.New(client, req, rep, nopPool{}, m)
	s.AssignBackend(backend)
	return s
}

var _ = Describe("Queue manager", func() {
	var m *queue.Manager

	BeforeEach(func() {
		m = queue.NewManager()
	})

	It("promotes sessions in FIFO order", func() {
		s1 := newQueuedSession("b1", m)
		s2 := newQueuedSession("b1", m)
		s3 := newQueuedSession("b1", m)
		m.Enqueue(s1)
		m.Enqueue(s2)
		m.Enqueue(s3)
		Expect(m.Len("b1")).To(Equal(3))

		srv, _ := lb.NewServer("s1", "10.0.0.1", 80, 10)
		first, ok := m.Promote("b1", srv)
		Expect(ok).To(BeTrue())
		Expect(first).To(BeIdenticalTo(s1))
		Expect(m.Len("b1")).To(Equal(2))

		second, ok := m.Promote("b1", srv)
		Expect(ok).To(BeTrue())
		Expect(second).To(BeIdenticalTo(s2))
	})

	It("splices a session out of the middle on removal", func() {
		s1 := newQueuedSession("b1", m)
		s2 := newQueuedSession("b1", m)
		s3 := newQueuedSession("b1", m)
		m.Enqueue(s1)
		m.Enqueue(s2)
		m.Enqueue(s3)

		m.Remove(s2)
		Expect(m.Len("b1")).To(Equal(2))

		srv, _ := lb.NewServer("s1", "10.0.0.1", 80, 10)
		first, _ := m.Promote("b1", srv)
		Expect(first).To(BeIdenticalTo(s1))
		second, _ := m.Promote("b1", srv)
		Expect(second).To(BeIdenticalTo(s3))
	})

	It("keeps separate FIFOs per backend", func() {
		sA := newQueuedSession("a", m)
		sB := newQueuedSession("b", m)
		m.Enqueue(sA)
		m.Enqueue(sB)

		Expect(m.Len("a")).To(Equal(1))
		Expect(m.Len("b")).To(Equal(1))
	})

	It("reports false when promoting from an empty or unknown backend", func() {
		srv, _ := lb.NewServer("s1", "10.0.0.1", 80, 10)
		_, ok := m.Promote("nonexistent", srv)
		Expect(ok).To(BeFalse())
	})

	It("assigns the target server to a promoted session", func() {
		s1 := newQueuedSession("b1", m)
		m.Enqueue(s1)

		srv, _ := lb.NewServer("s1", "10.0.0.1", 80, 10)
		_, ok := m.Promote("b1", srv)
		Expect(ok).To(BeTrue())
		Expect(s1.TargetServer()).To(Equal(srv))
		Expect(s1.Server.State()).To(Equal(session.StateASS))
	})
})
