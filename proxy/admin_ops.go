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
	"fmt"

	"github.com/nabbar/golib/lb"
)

// Disable puts a server into maintenance and pulls it out of its
// discipline's selectable structure, per spec.md §6 "pool.disable".
func (b *Backend) Disable(name string) (*lb.Server, error) {
	s, ok := b.servers[name]
	if !ok {
		return nil, fmt.Errorf("proxy: backend %q: no such server %q", b.Name, name)
	}
	s.SetState(lb.StateMaintenance)
	b.Core.StatusDown(s)
	return s, nil
}

// Enable reinstates a server from maintenance, per spec.md §6
// "pool.enable".
func (b *Backend) Enable(name string) (*lb.Server, error) {
	s, ok := b.servers[name]
	if !ok {
		return nil, fmt.Errorf("proxy: backend %q: no such server %q", b.Name, name)
	}
	s.SetState(lb.StateRunning)
	b.Core.StatusUp(s)
	return s, nil
}

// SetServerWeight re-weights a server in place, per spec.md §6
// "pool.weight".
func (b *Backend) SetServerWeight(name string, weight uint32) (*lb.Server, error) {
	s, ok := b.servers[name]
	if !ok {
		return nil, fmt.Errorf("proxy: backend %q: no such server %q", b.Name, name)
	}
	s.SetWeight(weight)
	b.Core.WeightUpdate(s, weight)
	return s, nil
}

// Quiesce implements the SPEC_FULL.md §9 resolution of spec.md's
// "pool.remove is non-functional" open question: the server is detached
// from the discipline's selectable structure immediately (it receives no
// further traffic), but it is only actually dropped from the backend
// once its last in-flight connection closes. removed reports which of
// the two happened.
func (b *Backend) Quiesce(name string) (removed bool, err error) {
	s, ok := b.servers[name]
	if !ok {
		return false, fmt.Errorf("proxy: backend %q: no such server %q", b.Name, name)
	}
	s.SetState(lb.StateMaintenance)
	b.Core.StatusDown(s)
	if s.Served() == 0 {
		delete(b.servers, name)
		b.Core.Remove(s)
		return true, nil
	}
	return false, nil
}
