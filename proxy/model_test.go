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

package proxy_test

import (
	"github.com/nabbar/golib/proxy"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Backend", func() {
	It("registers a disabled server in maintenance without making it pickable", func() {
		b := proxy.NewBackend("b1", proxy.AlgoRoundRobin)
		_, err := b.AddServer(proxy.ServerConfig{Name: "s1", Addr: "10.0.0.1", Port: 80, Weight: 10, Disabled: true})
		Expect(err).ToNot(HaveOccurred())

		_, ok := b.Core.Pick(nil, nil, 0, 0)
		Expect(ok).To(BeFalse())
	})

	It("ramps a server's dynamic maxconn with backend load", func() {
		b := proxy.NewBackend("b1", proxy.AlgoRoundRobin)
		srv, err := b.AddServer(proxy.ServerConfig{Name: "s1", Addr: "10.0.0.1", Port: 80, Weight: 10, MaxConn: 100})
		Expect(err).ToNot(HaveOccurred())

		b.FullConn = 1000
		Expect(b.DynamicMaxConn(srv)).To(Equal(int64(1)))

		for i := 0; i < 500; i++ {
			b.IncBEConn()
		}
		Expect(b.DynamicMaxConn(srv)).To(Equal(int64(50)))
	})

	It("routes a server past its dynamic maxconn away through Backend.Pick", func() {
		b := proxy.NewBackend("b1", proxy.AlgoRoundRobin)
		_, err := b.AddServer(proxy.ServerConfig{Name: "s1", Addr: "10.0.0.1", Port: 80, Weight: 10, MaxConn: 2})
		Expect(err).ToNot(HaveOccurred())

		s, ok := b.Pick(nil, nil)
		Expect(ok).To(BeTrue())
		b.TakeConn(s)
		s2, ok := b.Pick(nil, nil)
		Expect(ok).To(BeTrue())
		b.TakeConn(s2)
		Expect(s.Served()).To(Equal(int64(2)))

		// s1 is now at served==2==maxconn with fullconn unset (no ramp);
		// Backend.Pick must thread beconn/fullconn through to the
		// discipline and refuse rather than hand back the same server.
		_, ok = b.Pick(nil, nil)
		Expect(ok).To(BeFalse())

		b.DropConn(s)
		again, ok := b.Pick(nil, nil)
		Expect(ok).To(BeTrue())
		Expect(again.Name).To(Equal("s1"))
	})

	It("tracks frontend connection counters", func() {
		f := &proxy.Frontend{Name: "f1"}
		f.IncFEConn()
		f.IncFEConn()
		Expect(f.FEConn()).To(Equal(int64(2)))
		f.DecFEConn()
		Expect(f.FEConn()).To(Equal(int64(1)))
	})
})
