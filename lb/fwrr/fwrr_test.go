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

package fwrr_test

import (
	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/lb/fwrr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FWRR discipline", func() {
	It("returns false when no server has been added", func() {
		d := fwrr.New()
		_, ok := d.Pick(nil, nil, 0, 0)
		Expect(ok).To(BeFalse())
	})

	It("distributes picks proportionally to weight over many rounds", func() {
		d := fwrr.New()
		s1, _ := lb.NewServer("s1", "10.0.0.1", 80, 1)
		s2, _ := lb.NewServer("s2", "10.0.0.2", 80, 3)
		d.Add(s1)
		d.Add(s2)

		counts := map[string]int{}
		const rounds = 4000
		for i := 0; i < rounds; i++ {
			s, ok := d.Pick(nil, nil, 0, 0)
			Expect(ok).To(BeTrue())
			counts[s.Name]++
		}

		ratio := float64(counts["s2"]) / float64(counts["s1"])
		Expect(ratio).To(BeNumerically("~", 3, 0.3))
	})

	It("skips a server pulled down by StatusDown and resumes it on StatusUp", func() {
		d := fwrr.New()
		s1, _ := lb.NewServer("s1", "10.0.0.1", 80, 1)
		s2, _ := lb.NewServer("s2", "10.0.0.2", 80, 1)
		d.Add(s1)
		d.Add(s2)

		d.StatusDown(s1)
		for i := 0; i < 5; i++ {
			s, ok := d.Pick(nil, nil, 0, 0)
			Expect(ok).To(BeTrue())
			Expect(s.Name).To(Equal("s2"))
		}

		d.StatusUp(s1)
		seen := map[string]bool{}
		for i := 0; i < 10; i++ {
			s, _ := d.Pick(nil, nil, 0, 0)
			seen[s.Name] = true
		}
		Expect(seen["s1"]).To(BeTrue())
	})

	It("never returns the avoided server while an alternative exists", func() {
		d := fwrr.New()
		s1, _ := lb.NewServer("s1", "10.0.0.1", 80, 1)
		s2, _ := lb.NewServer("s2", "10.0.0.2", 80, 1)
		d.Add(s1)
		d.Add(s2)

		for i := 0; i < 10; i++ {
			s, ok := d.Pick(nil, s1, 0, 0)
			Expect(ok).To(BeTrue())
			Expect(s.Name).To(Equal("s2"))
		}
	})

	It("skips a server at its dynamic maxconn and queues once every candidate is saturated", func() {
		d := fwrr.New()
		s1, _ := lb.NewServer("s1", "10.0.0.1", 80, 1)
		s1.SetMaxConn(2)
		d.Add(s1)

		s, ok := d.Pick(nil, nil, 0, 0)
		Expect(ok).To(BeTrue())
		s.TakeConn()
		s.TakeConn()
		Expect(s.Served()).To(Equal(int64(2)))

		_, ok = d.Pick(nil, nil, 0, 0)
		Expect(ok).To(BeFalse())

		s.DropConn()
		again, ok := d.Pick(nil, nil, 0, 0)
		Expect(ok).To(BeTrue())
		Expect(again.Name).To(Equal("s1"))
	})
})
