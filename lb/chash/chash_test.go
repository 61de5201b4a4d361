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

package chash_test

import (
	"fmt"

	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/lb/chash"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CHash discipline", func() {
	It("returns false when no server has been added", func() {
		d := chash.New()
		_, ok := d.Pick([]byte("10.0.0.1"), nil, 0, 0)
		Expect(ok).To(BeFalse())
	})

	It("maps the same key to the same server consistently", func() {
		d := chash.New()
		s1, _ := lb.NewServer("s1", "10.0.0.1", 80, 10)
		s2, _ := lb.NewServer("s2", "10.0.0.2", 80, 10)
		s3, _ := lb.NewServer("s3", "10.0.0.3", 80, 10)
		d.Add(s1)
		d.Add(s2)
		d.Add(s3)

		key := []byte("client-203.0.113.7")
		first, ok := d.Pick(key, nil, 0, 0)
		Expect(ok).To(BeTrue())
		for i := 0; i < 20; i++ {
			again, ok := d.Pick(key, nil, 0, 0)
			Expect(ok).To(BeTrue())
			Expect(again.Name).To(Equal(first.Name))
		}
	})

	It("remaps only a minority of keys when one server leaves", func() {
		d := chash.New()
		var servers []*lb.Server
		for i := 0; i < 5; i++ {
			s, _ := lb.NewServer(fmt.Sprintf("s%d", i), "10.0.0.1", 80, 10)
			servers = append(servers, s)
			d.Add(s)
		}

		keys := make([][]byte, 500)
		before := make([]string, 500)
		for i := range keys {
			keys[i] = []byte(fmt.Sprintf("client-%d", i))
			s, _ := d.Pick(keys[i], nil, 0, 0)
			before[i] = s.Name
		}

		d.Remove(servers[0])

		moved := 0
		for i := range keys {
			s, ok := d.Pick(keys[i], nil, 0, 0)
			Expect(ok).To(BeTrue())
			if s.Name != before[i] {
				moved++
			}
		}

		// Only keys that were owned by the removed server should move;
		// with 5 equally-weighted servers that is roughly a fifth.
		Expect(moved).To(BeNumerically("<", 200))
	})

	It("excludes an avoided server while an alternative virtual node exists", func() {
		d := chash.New()
		s1, _ := lb.NewServer("s1", "10.0.0.1", 80, 10)
		s2, _ := lb.NewServer("s2", "10.0.0.2", 80, 10)
		d.Add(s1)
		d.Add(s2)

		for i := 0; i < 10; i++ {
			key := []byte(fmt.Sprintf("k-%d", i))
			s, ok := d.Pick(key, s1, 0, 0)
			Expect(ok).To(BeTrue())
			Expect(s.Name).To(Equal("s2"))
		}
	})

	It("skips a saturated server for every key and reports false once all are", func() {
		d := chash.New()
		s1, _ := lb.NewServer("s1", "10.0.0.1", 80, 10)
		s2, _ := lb.NewServer("s2", "10.0.0.2", 80, 10)
		s1.SetMaxConn(1)
		s2.SetMaxConn(1)
		d.Add(s1)
		d.Add(s2)
		s1.TakeConn()

		for i := 0; i < 10; i++ {
			key := []byte(fmt.Sprintf("k-%d", i))
			s, ok := d.Pick(key, nil, 0, 0)
			Expect(ok).To(BeTrue())
			Expect(s.Name).To(Equal("s2"))
		}

		s2.TakeConn()
		_, ok := d.Pick([]byte("k-0"), nil, 0, 0)
		Expect(ok).To(BeFalse())
	})
})
