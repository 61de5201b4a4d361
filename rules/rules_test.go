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

package rules_test

import (
	"net"

	"github.com/nabbar/golib/clock"
	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/rules"
	"github.com/nabbar/golib/session"
	"github.com/nabbar/golib/size"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type nopPool struct{}

func (nopPool) Pick([]byte, *lb.Server) (*lb.Server, bool) { return nil, false }
func (nopPool) TakeConn(*lb.Server)                        {}
func (nopPool) DropConn(*lb.Server)                        {}

type nopQueue struct{}

func (nopQueue) Enqueue(*session.Session) {}
func (nopQueue) Remove(*session.Session)  {}

func newTestSession(payload []byte) *session.Session {
	client, remote := net.Pipe()
	defer remote.Close()
	req := session.NewRingBuffer(size.Size(4096))
	rep := session.NewRingBuffer(size.Size(4096))
	s := session.New(client, req, rep, nopPool{}, nopQueue{})
	_, _ = req.Write(payload)
	return s
}

var _ = Describe("Predicates", func() {
	It("matches a prefix that is fully present", func() {
		s := newTestSession([]byte("GET / HTTP/1.1"))
		p := rules.PayloadPrefix([]byte("GET "))
		Expect(p(s)).To(Equal(rules.Match))
	})

	It("reports NeedMore when fewer bytes than the prefix have arrived", func() {
		s := newTestSession([]byte("GE"))
		p := rules.PayloadPrefix([]byte("GET "))
		Expect(p(s)).To(Equal(rules.NeedMore))
	})

	It("reports NoMatch on a full mismatch", func() {
		s := newTestSession([]byte("POST / HTTP/1.1"))
		p := rules.PayloadPrefix([]byte("GET "))
		Expect(p(s)).To(Equal(rules.NoMatch))
	})

	It("finds a needle anywhere in the buffered data", func() {
		s := newTestSession([]byte("Host: example.com\r\n"))
		p := rules.PayloadContains([]byte("example.com"))
		Expect(p(s)).To(Equal(rules.Match))
	})
})

var _ = Describe("Chain", func() {
	It("rejects on the first matching content rule", func() {
		bm := rules.NewBitmap(rules.KindTCPContent)
		c := rules.NewChain(bm)
		c.AddContentRule(rules.Rule{
			Kind:    rules.KindTCPContent,
			Match:   rules.PayloadContains([]byte("blocked")),
			OnMatch: rules.ActionReject,
		})

		s := newTestSession([]byte("this request is blocked here"))
		result := s.RunAnalysers(c.Build(), clock.Add(0, 1000))
		Expect(result).To(Equal(session.AnalysisReject))
		Expect(s.ErrClass()).To(Equal(session.ErrPrxCond))
	})

	It("assigns a backend via a switching rule and keeps evaluating", func() {
		bm := rules.NewBitmap(rules.KindBackendSwitch)
		c := rules.NewChain(bm)
		c.AddSwitchRule(rules.SwitchRule{
			Match:   rules.PayloadPrefix([]byte("GET /api")),
			Backend: "api-backend",
		})
		c.SetDefaultBackend("default-backend")

		s := newTestSession([]byte("GET /api/v1 HTTP/1.1"))
		result := s.RunAnalysers(c.Build(), clock.Add(0, 1000))
		Expect(result).To(Equal(session.AnalysisAccept))
		Expect(s.Backend()).To(Equal("api-backend"))
	})

	It("falls back to the default backend when no switch rule matches", func() {
		bm := rules.NewBitmap(rules.KindBackendSwitch)
		c := rules.NewChain(bm)
		c.AddSwitchRule(rules.SwitchRule{
			Match:   rules.PayloadPrefix([]byte("GET /api")),
			Backend: "api-backend",
		})
		c.SetDefaultBackend("default-backend")

		s := newTestSession([]byte("GET /static/a.css HTTP/1.1"))
		_ = s.RunAnalysers(c.Build(), clock.Add(0, 1000))
		Expect(s.Backend()).To(Equal("default-backend"))
	})

	It("skips stages the bitmap does not enable", func() {
		bm := rules.NewBitmap(rules.KindTCPContent)
		c := rules.NewChain(bm)
		c.AddSwitchRule(rules.SwitchRule{
			Match:   rules.PayloadPrefix([]byte("GET")),
			Backend: "should-not-run",
		})

		s := newTestSession([]byte("GET / HTTP/1.1"))
		_ = s.RunAnalysers(c.Build(), clock.Add(0, 1000))
		Expect(s.Backend()).To(BeEmpty())
	})
})
