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

package admin_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	ginsdk "github.com/gin-gonic/gin"

	"github.com/nabbar/golib/admin"
	"github.com/nabbar/golib/proxy"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTP admin surface", func() {
	var (
		srv *httptest.Server
		b   *proxy.Backend
	)

	BeforeEach(func() {
		ginsdk.SetMode(ginsdk.TestMode)

		b = proxy.NewBackend("app", proxy.AlgoRoundRobin)
		_, err := b.AddServer(proxy.ServerConfig{Name: "s1", Addr: "10.0.0.1", Port: 80, Weight: 10})
		Expect(err).ToNot(HaveOccurred())

		reg := admin.NewRegistry([]*proxy.Backend{b})
		h := admin.NewHTTPHandler(reg, nil)
		srv = httptest.NewServer(h)
	})

	AfterEach(func() {
		srv.Close()
	})

	It("serves the version endpoint", func() {
		resp, err := http.Get(srv.URL + "/version")
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body["version"]).To(Equal(admin.Version))
	})

	It("adds a server via JSON POST", func() {
		payload, _ := json.Marshal(admin.AddServerRequest{Backend: "app", Name: "s2", Addr: "10.0.0.2", Port: 81, Weight: 7})
		resp, err := http.Post(srv.URL+"/pool/add", "application/json", bytes.NewReader(payload))
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(b.Servers()).To(HaveLen(2))
	})

	It("reports 404 for an unknown backend", func() {
		resp, err := http.Get(srv.URL + "/pool/status?backend=missing&server=s1")
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("enumerates a backend's contents", func() {
		resp, err := http.Get(srv.URL + "/pool/contents/app")
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var list []admin.ServerStatus
		Expect(json.NewDecoder(resp.Body).Decode(&list)).To(Succeed())
		Expect(list).To(HaveLen(1))
		Expect(list[0].Name).To(Equal("s1"))
	})
})
