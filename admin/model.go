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

package admin

import (
	"fmt"
	"sync"

	"github.com/nabbar/golib/proxy"
)

// Version is the arbitrary API version string spec.md §6's "version"
// command returns.
const Version = "haproxyd-core/1"

// Registry is the admin surface's view of the running proxy: every
// backend, keyed by name, so pool.* commands can find their target.
// It is safe for concurrent use from both the Unix applet and the HTTP
// surface.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*proxy.Backend
}

// NewRegistry wraps an already-built backend set (as returned by
// proxy.Load) for admin access.
func NewRegistry(backends []*proxy.Backend) *Registry {
	r := &Registry{backends: make(map[string]*proxy.Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Name] = b
	}
	return r
}

// Backend looks a backend up by name.
func (r *Registry) Backend(name string) (*proxy.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// AddBackend registers a new backend, for configuration reloads that add
// one at runtime.
func (r *Registry) AddBackend(b *proxy.Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name] = b
}

// checkSpec carries the health-check hint fields spec.md §6's pool.add
// payload accepts. Health-check probing itself is out of scope (spec.md
// §1: "Health-check probes... produces server state transitions
// consumed by the LB core" is listed among what this module does not
// implement); these fields are accepted and stored for a future checker
// to read, never acted on here.
type checkSpec struct {
	Enabled bool   `json:"bool"`
	Addr    string `json:"addr"`
	Port    int    `json:"port"`
}

// AddServerRequest is the pool.add payload, per spec.md §6.
type AddServerRequest struct {
	Backend  string    `json:"backend"`
	Name     string    `json:"name"`
	Addr     string    `json:"addr"`
	Port     int       `json:"port"`
	Weight   uint32    `json:"weight"`
	Check    checkSpec `json:"check"`
	Inter    int       `json:"inter"`
	Rise     int       `json:"rise"`
	Fall     int       `json:"fall"`
	Disabled bool      `json:"disabled"`
}

// ServerRef names a single server within a backend, the shared shape of
// pool.disable / pool.enable / pool.status.
type ServerRef struct {
	Backend string `json:"backend"`
	Server  string `json:"server"`
}

// WeightRequest is the pool.weight payload.
type WeightRequest struct {
	Backend string `json:"backend"`
	Server  string `json:"server"`
	Weight  uint32 `json:"weight"`
}

// ServerStatus is the pool.status / pool.contents response shape for one
// server.
type ServerStatus struct {
	Name    string `json:"name"`
	Addr    string `json:"addr"`
	Port    int    `json:"port"`
	Backup  bool   `json:"backup"`
	State   string `json:"state"`
	Weight  uint32 `json:"weight"`
	Served  int64  `json:"served"`
	Pending int64  `json:"pending"`
}

func (cs checkSpec) String() string {
	if !cs.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%s:%d", cs.Addr, cs.Port)
}
