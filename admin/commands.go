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

	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/proxy"
)

// PoolAdd implements pool.add: build a server from req and register it
// with the named backend's Core.
func (r *Registry) PoolAdd(req AddServerRequest) (ServerStatus, error) {
	b, ok := r.Backend(req.Backend)
	if !ok {
		return ServerStatus{}, fmt.Errorf("admin: no such backend %q", req.Backend)
	}

	s, err := b.AddServer(proxy.ServerConfig{
		Name:     req.Name,
		Addr:     req.Addr,
		Port:     req.Port,
		Weight:   req.Weight,
		Disabled: req.Disabled,
	})
	if err != nil {
		return ServerStatus{}, err
	}

	return statusOf(s), nil
}

// PoolDisable implements pool.disable.
func (r *Registry) PoolDisable(ref ServerRef) (ServerStatus, error) {
	b, ok := r.Backend(ref.Backend)
	if !ok {
		return ServerStatus{}, fmt.Errorf("admin: no such backend %q", ref.Backend)
	}
	s, err := b.Disable(ref.Server)
	if err != nil {
		return ServerStatus{}, err
	}
	return statusOf(s), nil
}

// PoolEnable implements pool.enable.
func (r *Registry) PoolEnable(ref ServerRef) (ServerStatus, error) {
	b, ok := r.Backend(ref.Backend)
	if !ok {
		return ServerStatus{}, fmt.Errorf("admin: no such backend %q", ref.Backend)
	}
	s, err := b.Enable(ref.Server)
	if err != nil {
		return ServerStatus{}, err
	}
	return statusOf(s), nil
}

// PoolWeight implements pool.weight.
func (r *Registry) PoolWeight(req WeightRequest) (ServerStatus, error) {
	b, ok := r.Backend(req.Backend)
	if !ok {
		return ServerStatus{}, fmt.Errorf("admin: no such backend %q", req.Backend)
	}
	s, err := b.SetServerWeight(req.Server, req.Weight)
	if err != nil {
		return ServerStatus{}, err
	}
	return statusOf(s), nil
}

// PoolStatus implements pool.status.
func (r *Registry) PoolStatus(ref ServerRef) (ServerStatus, error) {
	b, ok := r.Backend(ref.Backend)
	if !ok {
		return ServerStatus{}, fmt.Errorf("admin: no such backend %q", ref.Backend)
	}
	s, ok := b.Server(ref.Server)
	if !ok {
		return ServerStatus{}, fmt.Errorf("admin: backend %q: no such server %q", ref.Backend, ref.Server)
	}
	return statusOf(s), nil
}

// PoolContents implements pool.contents: every server currently
// registered with the named backend.
func (r *Registry) PoolContents(backend string) ([]ServerStatus, error) {
	b, ok := r.Backend(backend)
	if !ok {
		return nil, fmt.Errorf("admin: no such backend %q", backend)
	}
	servers := b.Servers()
	out := make([]ServerStatus, 0, len(servers))
	for _, s := range servers {
		out = append(out, statusOf(s))
	}
	return out, nil
}

// PoolRemove implements the quiesce-not-remove pool.remove semantics
// SPEC_FULL.md §9 resolves spec.md's open question with.
func (r *Registry) PoolRemove(ref ServerRef) (removed bool, err error) {
	b, ok := r.Backend(ref.Backend)
	if !ok {
		return false, fmt.Errorf("admin: no such backend %q", ref.Backend)
	}
	return b.Quiesce(ref.Server)
}

func statusOf(s *lb.Server) ServerStatus {
	return ServerStatus{
		Name:    s.Name,
		Addr:    s.Addr,
		Port:    s.Port,
		Backup:  s.Backup,
		State:   s.State().String(),
		Weight:  s.UWeight(),
		Served:  s.Served(),
		Pending: s.PendingCount(),
	}
}
