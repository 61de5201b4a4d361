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
	"bytes"

	"github.com/spf13/viper"

	"github.com/nabbar/golib/proxy"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const sampleConfig = `
frontends:
  - name: web
    listen: ["0.0.0.0:80"]
    maxconn: 2000
    default_backend: app

backends:
  - name: app
    algorithm: leastconn
    fullconn: 1000
    buffer_size: 64KiB
    servers:
      - name: app1
        addr: 10.0.0.1
        port: 8080
        weight: 10
      - name: app2
        addr: 10.0.0.2
        port: 8080
        weight: 20
        backup: true
`

var _ = Describe("Config loading", func() {
	It("decodes frontends and backends, wiring servers into the backend's Core", func() {
		v := viper.New()
		v.SetConfigType("yaml")
		Expect(v.ReadConfig(bytes.NewBufferString(sampleConfig))).To(Succeed())

		frontends, backends, err := proxy.Load(v)
		Expect(err).ToNot(HaveOccurred())
		Expect(frontends).To(HaveLen(1))
		Expect(backends).To(HaveLen(1))

		f := frontends[0]
		Expect(f.Name).To(Equal("web"))
		Expect(f.DefaultBack).To(Equal("app"))
		Expect(f.Listeners).To(HaveLen(1))

		b := backends[0]
		Expect(b.Name).To(Equal("app"))
		Expect(b.FullConn).To(Equal(int64(1000)))
		Expect(b.BufferSize).To(BeNumerically("==", 64*1024))
		Expect(b.Servers()).To(HaveLen(2))

		srv, ok := b.Server("app1")
		Expect(ok).To(BeTrue())
		Expect(srv.UWeight()).To(Equal(uint32(10)))

		picked, ok := b.Core.Pick(nil, nil, 0, 0)
		Expect(ok).To(BeTrue())
		Expect(picked.Name).To(Equal("app1"))
	})

	It("rejects a frontend whose default_backend does not exist", func() {
		v := viper.New()
		v.SetConfigType("yaml")
		Expect(v.ReadConfig(bytes.NewBufferString(`
frontends:
  - name: web
    default_backend: missing
backends: []
`))).To(Succeed())

		_, _, err := proxy.Load(v)
		Expect(err).To(HaveOccurred())
	})
})
