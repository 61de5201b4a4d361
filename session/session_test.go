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
	"net"

	"github.com/nabbar/golib/clock"
	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/session"
	"github.com/nabbar/golib/size"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakePool is a minimal session.Pool used so these tests exercise the
// session state machine without depending on a real lb.Core/discipline.
type fakePool struct {
	servers []*lb.Server
	taken   map[string]int
	dropped map[string]int
}

func newFakePool(servers ...*lb.Server) *fakePool {
	return &fakePool{servers: servers, taken: map[string]int{}, dropped: map[string]int{}}
}

func (p *fakePool) Pick(_ []byte, avoid *lb.Server) (*lb.Server, bool) {
	for _, s := range p.servers {
		if avoid != nil && s.ID == avoid.ID {
			continue
		}
		return s, true
	}
	return nil, false
}

func (p *fakePool) TakeConn(s *lb.Server) { p.taken[s.ID]++ }
func (p *fakePool) DropConn(s *lb.Server) { p.dropped[s.ID]++ }

type fakeQueue struct {
	enqueued []*session.Session
	removed  []*session.Session
}

func (q *fakeQueue) Enqueue(s *session.Session) { q.enqueued = append(q.enqueued, s) }
func (q *fakeQueue) Remove(s *session.Session)  { q.removed = append(q.removed, s) }

var _ = Describe("Session lifecycle", func() {
	var (
		clientConn, remoteEnd net.Conn
		pool                  *fakePool
		queue                 *fakeQueue
		srv                   *lb.Server
		s                     *session.Session
	)

	BeforeEach(func() {
		clientConn, remoteEnd = net.Pipe()
		srv, _ = lb.NewServer("s1", "10.0.0.1", 80, 10)
		pool = newFakePool(srv)
		queue = &fakeQueue{}
		req := session.NewRingBuffer(size.Size(4096))
		rep := session.NewRingBuffer(size.Size(4096))
		s = session.New(clientConn, req, rep, pool, queue)
	})

	AfterEach(func() {
		_ = remoteEnd.Close()
	})

	It("starts with the client side established and the server side idle", func() {
		Expect(s.Client.State()).To(Equal(session.StateEST))
		Expect(s.Server.State()).To(Equal(session.StateINI))
	})

	It("moves through REQ -> ASS -> CON -> EST on a successful pick and connect", func() {
		s.BeginRequest()
		Expect(s.Server.State()).To(Equal(session.StateREQ))

		ok := s.SelectServer(nil)
		Expect(ok).To(BeTrue())
		Expect(s.Server.State()).To(Equal(session.StateASS))
		Expect(s.TargetServer().Name).To(Equal("s1"))
		Expect(pool.taken[srv.ID]).To(Equal(1))

		s.Connect(clock.Add(0, 1000))
		Expect(s.Server.State()).To(Equal(session.StateCON))

		s.ConnectEstablished()
		Expect(s.Server.State()).To(Equal(session.StateEST))
		Expect(s.Client.State()).To(Equal(session.StateEST))
	})

	It("queues when the pool has no usable server", func() {
		empty := newFakePool()
		req := session.NewRingBuffer(size.Size(4096))
		rep := session.NewRingBuffer(size.Size(4096))
		qs := session.New(clientConn, req, rep, empty, queue)
		qs.BeginRequest()

		ok := qs.SelectServer(nil)
		Expect(ok).To(BeFalse())
		Expect(qs.Server.State()).To(Equal(session.StateQUE))
		Expect(queue.enqueued).To(HaveLen(1))
	})

	It("retries through TAR after a connect failure within the retry budget", func() {
		s.BeginRequest()
		_ = s.SelectServer(nil)
		s.Connect(clock.Add(0, 1000))

		s.ConnectFailed(2, clock.Add(0, 200), false)
		Expect(s.Server.State()).To(Equal(session.StateTAR))
		Expect(pool.dropped[srv.ID]).To(Equal(1))
		Expect(s.Flags().Has(session.FlagRedispatched)).To(BeTrue())

		s.TarpitElapsed()
		Expect(s.Server.State()).To(Equal(session.StateREQ))
	})

	It("terminates with SRVTO after exhausting connect retries on a timeout", func() {
		s.BeginRequest()
		_ = s.SelectServer(nil)
		s.Connect(clock.Add(0, 1000))

		s.ConnectFailed(0, clock.Add(0, 200), true)
		Expect(s.Server.State()).To(Equal(session.StateCLO))
		Expect(s.ErrClass()).To(Equal(session.ErrSrvTO))
		Expect(s.FinishStep()).To(Equal(session.FinstC))
	})

	It("releases the server slot and records PRXCOND on a rule reject", func() {
		rejecting := []session.Analyser{
			func(*session.Session) session.AnalysisResult { return session.AnalysisReject },
		}
		result := s.RunAnalysers(rejecting, clock.Add(0, 5000))
		Expect(result).To(Equal(session.AnalysisReject))
		Expect(s.ErrClass()).To(Equal(session.ErrPrxCond))
		Expect(s.FinishStep()).To(Equal(session.FinstR))
		Expect(s.Done()).To(BeTrue())
	})

	It("arms the inspect-delay timer on miss without terminating", func() {
		missing := []session.Analyser{
			func(*session.Session) session.AnalysisResult { return session.AnalysisMiss },
		}
		result := s.RunAnalysers(missing, clock.Add(0, 5000))
		Expect(result).To(Equal(session.AnalysisMiss))
		Expect(s.Server.Expiry()).To(Equal(clock.Add(0, 5000)))
		Expect(s.Done()).To(BeFalse())
	})

	It("forwards bytes from client to server once established", func() {
		s.BeginRequest()
		_ = s.SelectServer(nil)
		s.Server.SetConn(remoteEnd)
		s.Connect(clock.Add(0, 1000))
		s.ConnectEstablished()

		done := make(chan []byte, 1)
		go func() {
			buf := make([]byte, 5)
			n, _ := remoteEnd.Read(buf)
			done <- buf[:n]
		}()

		go func() { _, _ = clientConn.Write([]byte("hello")) }()

		Eventually(func() (int, error) {
			return s.PumpClientToServer()
		}).Should(BeNumerically(">", 0))

		Eventually(done).Should(Receive(Equal([]byte("hello"))))
	})

	It("drops the server connection and releases the slot on Terminate", func() {
		s.BeginRequest()
		_ = s.SelectServer(nil)
		s.Connect(clock.Add(0, 1000))
		s.ConnectEstablished()

		s.Terminate(session.ErrCliCL, session.FinstD)
		Expect(s.Done()).To(BeTrue())
		Expect(pool.dropped[srv.ID]).To(Equal(1))
		Expect(s.ErrClass()).To(Equal(session.ErrCliCL))
	})
})
