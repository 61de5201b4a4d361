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

// Package chash implements the consistent-hashing discipline: each server
// owns a number of virtual nodes on a hash ring proportional to its
// effective weight, and a lookup key (source IP, URI, a header value, a
// cookie, ...) is mapped to the first virtual node at or after its hash,
// wrapping around to the ring's minimum when the key hashes past the
// last node. This minimizes remapping when the server set changes, at
// the cost of exact weighted fairness.
package chash

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/google/btree"

	"github.com/nabbar/golib/lb"
)

// vnodesPerWeightUnit controls ring density: a server's virtual node
// count is eweight/WeightScale (its user weight) times this factor.
const vnodesPerWeightUnit = 40

type vnode struct {
	hash uint64
	s    *lb.Server
	idx  int
}

func (n *vnode) Less(than btree.Item) bool {
	o := than.(*vnode)
	if n.hash != o.hash {
		return n.hash < o.hash
	}
	return n.s.ID < o.s.ID
}

// Discipline is the chash Discipline implementation; a fresh instance
// must be created per backend partition via New().
type Discipline struct {
	ring    *btree.BTree
	vnodes  map[string][]*vnode
	waiting map[string]bool
}

// New returns an empty chash discipline.
func New() lb.Discipline {
	return &Discipline{
		ring:    btree.New(32),
		vnodes:  make(map[string][]*vnode),
		waiting: make(map[string]bool),
	}
}

func hashKey(key []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(key)
	return h.Sum64()
}

func vnodeHash(serverID string, idx int) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(serverID))
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(idx))
	_, _ = h.Write(b[:])
	return h.Sum64()
}

func (d *Discipline) place(s *lb.Server) {
	count := int(s.UWeight()) * vnodesPerWeightUnit
	if count < 1 {
		count = 1
	}
	nodes := make([]*vnode, 0, count)
	for i := 0; i < count; i++ {
		vn := &vnode{hash: vnodeHash(s.ID, i), s: s, idx: i}
		nodes = append(nodes, vn)
		d.ring.ReplaceOrInsert(vn)
	}
	d.vnodes[s.ID] = nodes
}

func (d *Discipline) unplace(s *lb.Server) {
	for _, vn := range d.vnodes[s.ID] {
		d.ring.Delete(vn)
	}
	delete(d.vnodes, s.ID)
}

func (d *Discipline) Add(s *lb.Server) {
	if lb.Usable(s.State(), s.EWeight()) {
		d.place(s)
	} else {
		d.waiting[s.ID] = true
	}
}

func (d *Discipline) Remove(s *lb.Server) {
	d.unplace(s)
	delete(d.waiting, s.ID)
}

func (d *Discipline) StatusUp(s *lb.Server) {
	if _, ok := d.vnodes[s.ID]; ok {
		return
	}
	delete(d.waiting, s.ID)
	d.place(s)
}

func (d *Discipline) StatusDown(s *lb.Server) {
	if _, ok := d.vnodes[s.ID]; !ok {
		return
	}
	d.unplace(s)
	d.waiting[s.ID] = true
}

func (d *Discipline) WeightUpdate(s *lb.Server, newUWeight uint32) {
	_, placed := d.vnodes[s.ID]
	s.SetWeight(newUWeight)
	if placed {
		d.unplace(s)
		if lb.Usable(s.State(), s.EWeight()) {
			d.place(s)
		} else {
			d.waiting[s.ID] = true
		}
	}
}

func (d *Discipline) TakeConn(s *lb.Server) { s.TakeConn() }
func (d *Discipline) DropConn(s *lb.Server) { s.DropConn() }

// Pick maps key to the nearest virtual node at or after its hash,
// wrapping to the ring's minimum entry. When the first match belongs to
// avoid, or is saturated per its backend's dynamic maxconn, the scan
// continues forward (then wraps once) to the next distinct, unsaturated
// server.
func (d *Discipline) Pick(key []byte, avoid *lb.Server, beconn, fullconn int64) (*lb.Server, bool) {
	if d.ring.Len() == 0 {
		return nil, false
	}

	h := hashKey(key)
	var found *lb.Server
	visit := func(i btree.Item) bool {
		vn := i.(*vnode)
		if avoid != nil && vn.s.ID == avoid.ID {
			return true
		}
		if vn.s.Saturated(beconn, fullconn) {
			return true
		}
		found = vn.s
		return false
	}
	d.ring.AscendGreaterOrEqual(&vnode{hash: h}, visit)
	if found == nil {
		d.ring.Ascend(visit)
	}
	return found, found != nil
}
