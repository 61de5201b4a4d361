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
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabbar/golib/logger"
	"github.com/nabbar/golib/proxy"
	"github.com/nabbar/golib/rules"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// Worker/pipeline are exercised end to end here rather than unit-by-unit:
// the state machine in pipeline.go only makes sense driven by a real
// poller+scheduler pair reacting to real socket readiness, which is
// exactly what NewWorker/Worker.Run assembles.
var _ = Describe("Worker", func() {
	It("proxies a full client<->backend byte stream end to end", func() {
		upstream, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = upstream.Close() }()

		go func() {
			conn, aerr := upstream.Accept()
			if aerr != nil {
				return
			}
			defer func() { _ = conn.Close() }()
			buf := make([]byte, 4096)
			for {
				n, rerr := conn.Read(buf)
				if n > 0 {
					_, _ = conn.Write(buf[:n])
				}
				if rerr != nil {
					return
				}
			}
		}()

		upAddr := upstream.Addr().(*net.TCPAddr)

		be := proxy.NewBackend("be1", proxy.AlgoRoundRobin)
		_, err = be.AddServer(proxy.ServerConfig{Name: "s1", Addr: "127.0.0.1", Port: upAddr.Port, Weight: 1})
		Expect(err).NotTo(HaveOccurred())

		const frontendAddr = "127.0.0.1:19987"
		f := &proxy.Frontend{
			Name:        "fe1",
			Listeners:   []proxy.Listener{{Addr: frontendAddr}},
			DefaultBack: "be1",
			Timeouts: proxy.Timeouts{
				Connect:      time.Second,
				InspectDelay: 50 * time.Millisecond,
			},
		}

		log := logger.New(context.Background())
		metrics := newMetricsSet(prometheus.NewRegistry())

		chains := map[string]*rules.Chain{"fe1": defaultChain(f)}
		w, err := NewWorker(0, []*proxy.Frontend{f}, []*proxy.Backend{be}, chains, log, metrics)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		Eventually(func() error {
			c, derr := net.DialTimeout("tcp", frontendAddr, 100*time.Millisecond)
			if derr == nil {
				_ = c.Close()
			}
			return derr
		}, 2*time.Second, 10*time.Millisecond).Should(Succeed())

		client, err := net.Dial("tcp", frontendAddr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = client.Close() }()

		_, err = client.Write([]byte("hello-proxy"))
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 64)
		Expect(client.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())
		n, err := client.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("hello-proxy"))

		w.Stop()
		cancel()
		Eventually(done, time.Second).Should(Receive())
	})

	It("refuses a connection past a frontend's maxconn and counts it", func() {
		be := proxy.NewBackend("be1", proxy.AlgoRoundRobin)
		_, err := be.AddServer(proxy.ServerConfig{Name: "s1", Addr: "127.0.0.1", Port: 1, Weight: 1})
		Expect(err).NotTo(HaveOccurred())

		f := &proxy.Frontend{Name: "fe1", DefaultBack: "be1", MaxConn: 0}
		log := logger.New(context.Background())
		metrics := newMetricsSet(prometheus.NewRegistry())

		w, err := NewWorker(0, []*proxy.Frontend{f}, []*proxy.Backend{be}, map[string]*rules.Chain{}, log, metrics)
		Expect(err).NotTo(HaveOccurred())

		f.MaxConn = 1
		f.IncFEConn()

		before := counterValue(metrics.deniedConn, "fe1")
		w.spawnSession(-1, f)
		Expect(counterValue(metrics.deniedConn, "fe1")).To(Equal(before + 1))
	})
})
