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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nabbar/golib/proxy"
)

// metricsSet is the ambient stats surface SPEC_FULL §9 asks for: the
// per-frontend/per-backend counters HAProxy's stats page would show,
// exposed the way this daemon actually ships observability, through
// Prometheus's /metrics exposition format rather than an HTML page.
type metricsSet struct {
	deniedReq  *prometheus.CounterVec
	deniedResp *prometheus.CounterVec
	deniedConn *prometheus.CounterVec
	served     *prometheus.CounterVec
	feconn     *prometheus.GaugeVec
	beconn     *prometheus.GaugeVec
}

func newMetricsSet(reg prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		deniedReq: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haproxyd",
			Name:      "denied_req_total",
			Help:      "Requests denied by a content/connection rule, per frontend.",
		}, []string{"frontend"}),
		deniedResp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haproxyd",
			Name:      "denied_resp_total",
			Help:      "Responses denied by a rule, per backend.",
		}, []string{"backend"}),
		deniedConn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haproxyd",
			Name:      "denied_conn_total",
			Help:      "Connections refused at accept time (maxconn), per frontend.",
		}, []string{"frontend"}),
		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "haproxyd",
			Name:      "served_total",
			Help:      "Sessions that reached EST on a server, per backend.",
		}, []string{"backend"}),
		feconn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "haproxyd",
			Name:      "frontend_conn_current",
			Help:      "Current number of connections open on a frontend.",
		}, []string{"frontend"}),
		beconn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "haproxyd",
			Name:      "backend_conn_current",
			Help:      "Current number of connections open on a backend.",
		}, []string{"backend"}),
	}

	reg.MustRegister(m.deniedReq, m.deniedResp, m.deniedConn, m.served, m.feconn, m.beconn)
	return m
}

// sample reads the live feconn/beconn counters off every frontend/backend
// into the gauges; called on a short ticker from main rather than wired
// through every accept/release path, since these are cheap int64 reads.
func (m *metricsSet) sample(frontends []*proxy.Frontend, backends []*proxy.Backend) {
	for _, f := range frontends {
		m.feconn.WithLabelValues(f.Name).Set(float64(f.FEConn()))
	}
	for _, b := range backends {
		m.beconn.WithLabelValues(b.Name).Set(float64(b.BEConn()))
	}
}
