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

package clock_test

import (
	"github.com/nabbar/golib/clock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tick arithmetic", func() {
	Context("Add", func() {
		It("advances by the given milliseconds", func() {
			Expect(clock.Add(100, 50)).To(Equal(clock.Tick(150)))
		})

		It("is absorbing on Eternity", func() {
			Expect(clock.Add(clock.Eternity, 50)).To(Equal(clock.Eternity))
		})
	})

	Context("IsExpired", func() {
		It("is false for Eternity regardless of now", func() {
			Expect(clock.IsExpired(clock.Eternity, 1<<30)).To(BeFalse())
		})

		It("is true once now has reached exp", func() {
			Expect(clock.IsExpired(100, 100)).To(BeTrue())
			Expect(clock.IsExpired(100, 101)).To(BeTrue())
		})

		It("is false before exp", func() {
			Expect(clock.IsExpired(100, 99)).To(BeFalse())
		})

		It("handles wrap-around correctly", func() {
			near := clock.Tick(0x7FFFFFF0)
			wrapped := clock.Add(near, 32)
			Expect(clock.IsExpired(near, wrapped)).To(BeTrue())
		})
	})

	Context("First", func() {
		It("returns the earlier of two ticks", func() {
			Expect(clock.First(100, 200)).To(Equal(clock.Tick(100)))
			Expect(clock.First(200, 100)).To(Equal(clock.Tick(100)))
		})

		It("ignores Eternity unless both are Eternity", func() {
			Expect(clock.First(clock.Eternity, 100)).To(Equal(clock.Tick(100)))
			Expect(clock.First(100, clock.Eternity)).To(Equal(clock.Tick(100)))
			Expect(clock.First(clock.Eternity, clock.Eternity)).To(Equal(clock.Eternity))
		})

		It("satisfies tick_first(tick_add(now,x), tick_add(now,y)) = tick_add(now, min(x,y))", func() {
			now := clock.Tick(1000)
			x, y := uint32(30), uint32(70)
			Expect(clock.First(clock.Add(now, x), clock.Add(now, y))).To(Equal(clock.Add(now, 30)))
		})
	})

	Context("Remain", func() {
		It("is zero once expired", func() {
			Expect(clock.Remain(200, 100)).To(Equal(uint32(0)))
		})

		It("is the positive gap before expiry", func() {
			Expect(clock.Remain(100, 150)).To(Equal(uint32(50)))
		})
	})

	Context("Source", func() {
		It("produces a monotonically non-decreasing sequence of ticks", func() {
			s := clock.NewSource()
			a := s.Refresh()
			b := s.Refresh()
			Expect(clock.IsExpired(a, b) || a == b).To(BeTrue())
		})
	})
})
