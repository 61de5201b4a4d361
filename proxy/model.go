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

package proxy

import (
	"time"

	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/lb/chash"
	"github.com/nabbar/golib/lb/fwlc"
	"github.com/nabbar/golib/lb/fwrr"
	"github.com/nabbar/golib/size"
)

// Algorithm selects which lb.Discipline factory a backend uses.
type Algorithm string

const (
	AlgoRoundRobin      Algorithm = "roundrobin"
	AlgoLeastConn       Algorithm = "leastconn"
	AlgoConsistentHash  Algorithm = "hash"
)

func (a Algorithm) factory() lb.Factory {
	switch a {
	case AlgoLeastConn:
		return fwlc.New
	case AlgoConsistentHash:
		return chash.New
	default:
		return fwrr.New
	}
}

// ListenerState mirrors spec.md §3's listener lifecycle.
type ListenerState uint8

const (
	ListenerInit ListenerState = iota
	ListenerAssigned
	ListenerListening
	ListenerReady
	ListenerLimited
	ListenerPaused
	ListenerFull
	ListenerError
)

// Listener is one bound socket a Frontend accepts on.
type Listener struct {
	Addr  string
	State ListenerState
}

// Timeouts groups every configurable timeout spec.md §6 names.
type Timeouts struct {
	Client       time.Duration
	Server       time.Duration
	Connect      time.Duration
	Queue        time.Duration
	Tarpit       time.Duration
	HTTPKeepAlive time.Duration
	HTTPRequest   time.Duration
	Check         time.Duration
	InspectDelay  time.Duration
}

// ServerConfig is a server as it appears in configuration, before it is
// turned into a live lb.Server.
type ServerConfig struct {
	Name     string
	Addr     string
	Port     int
	Weight   uint32
	Backup   bool
	MaxConn  int64
	Disabled bool
}

// Frontend accepts client connections and dispatches to a backend.
type Frontend struct {
	Name         string
	Listeners    []Listener
	MaxConn      int64
	RateLimit    int
	DefaultBack  string
	Timeouts     Timeouts

	feconn int64
}

func (f *Frontend) FEConn() int64 { return f.feconn }
func (f *Frontend) IncFEConn()    { f.feconn++ }
func (f *Frontend) DecFEConn() {
	if f.feconn > 0 {
		f.feconn--
	}
}

// Backend is a pool of candidate servers behind one load-balancing
// discipline.
type Backend struct {
	Name      string
	Algorithm Algorithm
	FullConn  int64
	WDiv      uint32
	BufferSize size.Size
	Timeouts  Timeouts

	Core    *lb.Core
	servers map[string]*lb.Server

	beconn int64
}

// NewBackend builds an empty backend with a Core matching Algorithm.
func NewBackend(name string, algo Algorithm) *Backend {
	if algo == "" {
		algo = AlgoRoundRobin
	}
	return &Backend{
		Name:      name,
		Algorithm: algo,
		WDiv:      1,
		Core:      lb.NewCore(algo.factory()),
		servers:   make(map[string]*lb.Server),
	}
}

func (b *Backend) BEConn() int64 { return b.beconn }
func (b *Backend) IncBEConn()    { b.beconn++ }
func (b *Backend) DecBEConn() {
	if b.beconn > 0 {
		b.beconn--
	}
}

// AddServer builds an lb.Server from cfg, registers it with the
// backend's Core, and tracks it by name for admin-API lookups.
func (b *Backend) AddServer(cfg ServerConfig) (*lb.Server, error) {
	s, err := lb.NewServer(cfg.Name, cfg.Addr, cfg.Port, cfg.Weight)
	if err != nil {
		return nil, err
	}
	s.Backup = cfg.Backup
	s.SetMaxConn(cfg.MaxConn)
	if cfg.Disabled {
		s.SetState(lb.StateMaintenance)
	}
	b.servers[cfg.Name] = s
	b.Core.Add(s)
	if !cfg.Disabled {
		b.Core.StatusUp(s)
	}
	return s, nil
}

// Server looks a server up by name for the admin API.
func (b *Backend) Server(name string) (*lb.Server, bool) {
	s, ok := b.servers[name]
	return s, ok
}

// Servers returns every server currently registered, for pool.contents.
func (b *Backend) Servers() []*lb.Server {
	out := make([]*lb.Server, 0, len(b.servers))
	for _, s := range b.servers {
		out = append(out, s)
	}
	return out
}

// DynamicMaxConn applies the backend's fullconn ramp-up to s.
func (b *Backend) DynamicMaxConn(s *lb.Server) int64 {
	return lb.DynamicMaxConn(s.MaxConn(), b.beconn, b.FullConn)
}

// Pick, TakeConn and DropConn make *Backend itself satisfy session.Pool:
// Pick forwards to the Core with the backend's own beconn/fullconn so
// the discipline can skip servers saturated per spec.md §4.4.1/§4.4.2
// without session needing any visibility into backend-level counters.
func (b *Backend) Pick(key []byte, avoid *lb.Server) (*lb.Server, bool) {
	return b.Core.Pick(key, avoid, b.beconn, b.FullConn)
}

func (b *Backend) TakeConn(s *lb.Server) { b.Core.TakeConn(s) }
func (b *Backend) DropConn(s *lb.Server) { b.Core.DropConn(s) }
