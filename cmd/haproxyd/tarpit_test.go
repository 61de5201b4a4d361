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

package main

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buildTarpitSchedule", func() {
	It("returns nil for a non-positive tarpit timeout, keeping the flat-delay fallback", func() {
		Expect(buildTarpitSchedule(0)).To(BeNil())
		Expect(buildTarpitSchedule(-time.Second)).To(BeNil())
	})

	It("ramps from the retry floor up to the configured timeout", func() {
		sched := buildTarpitSchedule(5 * time.Second)
		Expect(sched).ToNot(BeEmpty())
		Expect(sched[0]).To(Equal(tarpitRetryFloor))
		Expect(sched[len(sched)-1]).To(Equal(5 * time.Second))

		for i := 1; i < len(sched); i++ {
			Expect(sched[i]).To(BeNumerically(">=", sched[i-1]))
		}
	})

	It("clamps the floor to the timeout when the timeout is smaller", func() {
		sched := buildTarpitSchedule(50 * time.Millisecond)
		Expect(sched).ToNot(BeEmpty())
		for _, d := range sched {
			Expect(d).To(BeNumerically("<=", 50*time.Millisecond))
		}
	})
})
