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

package lb_test

import (
	"github.com/nabbar/golib/lb"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	It("computes the effective weight from the user weight", func() {
		s, err := lb.NewServer("s1", "127.0.0.1", 8080, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.UWeight()).To(Equal(uint32(10)))
		Expect(s.EWeight()).To(Equal(uint32(10 * lb.WeightScale)))
	})

	It("clamps an out-of-range weight to the maximum", func() {
		s, err := lb.NewServer("s1", "127.0.0.1", 8080, 10000)
		Expect(err).ToNot(HaveOccurred())
		Expect(s.UWeight()).To(Equal(uint32(lb.UWeightMax)))
	})

	It("is usable only when running with a nonzero effective weight", func() {
		Expect(lb.Usable(lb.StateRunning, 16)).To(BeTrue())
		Expect(lb.Usable(lb.StateRunning, 0)).To(BeFalse())
		Expect(lb.Usable(lb.StateMaintenance, 16)).To(BeFalse())
		Expect(lb.Usable(lb.StateDownByCheck, 16)).To(BeFalse())
	})

	It("ramps maxconn proportionally to beconn/fullconn", func() {
		Expect(lb.DynamicMaxConn(100, 0, 1000)).To(Equal(int64(1)))
		Expect(lb.DynamicMaxConn(100, 500, 1000)).To(Equal(int64(50)))
		Expect(lb.DynamicMaxConn(100, 2000, 1000)).To(Equal(int64(100)))
		Expect(lb.DynamicMaxConn(100, 500, 0)).To(Equal(int64(100)))
	})

	It("tracks served connections through take/drop", func() {
		s, err := lb.NewServer("s1", "127.0.0.1", 8080, 10)
		Expect(err).ToNot(HaveOccurred())
		s.TakeConn()
		s.TakeConn()
		Expect(s.Served()).To(Equal(int64(2)))
		s.DropConn()
		Expect(s.Served()).To(Equal(int64(1)))
	})
})
