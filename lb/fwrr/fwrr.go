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

// Package fwrr implements the fixed-weighted round-robin discipline: each
// server carries a virtual "next turn" position on a tree; picking a
// server always takes the smallest position and reinserts it further out
// by an amount inversely proportional to its effective weight, so a
// server with twice the weight of another is picked twice as often while
// keeping selection cost at O(log n).
package fwrr

import (
	"github.com/google/btree"

	"github.com/nabbar/golib/lb"
)

// resolution scales the per-pick step so integer division against a wide
// range of effective weights still keeps servers from colliding onto the
// same position.
const resolution = 1 << 20

type node struct {
	s   *lb.Server
	pos uint64
}

func (n *node) Less(than btree.Item) bool {
	o := than.(*node)
	if n.pos != o.pos {
		return n.pos < o.pos
	}
	return n.s.ID < o.s.ID
}

// Discipline is the fwrr Discipline implementation; a fresh instance must
// be created per backend partition via New().
type Discipline struct {
	tree    *btree.BTree
	idx     map[string]*node
	waiting map[string]*node
	clock   uint64
}

// New returns an empty fwrr discipline.
func New() lb.Discipline {
	return &Discipline{
		tree:    btree.New(32),
		idx:     make(map[string]*node),
		waiting: make(map[string]*node),
	}
}

func step(eweight uint32) uint64 {
	if eweight == 0 {
		return 0
	}
	return uint64(lb.EWeightMax) * resolution / uint64(eweight)
}

func (d *Discipline) Add(s *lb.Server) {
	n := &node{s: s}
	if lb.Usable(s.State(), s.EWeight()) {
		d.clock++
		n.pos = d.clock
		d.idx[s.ID] = n
		d.tree.ReplaceOrInsert(n)
	} else {
		d.waiting[s.ID] = n
	}
}

func (d *Discipline) Remove(s *lb.Server) {
	if n, ok := d.idx[s.ID]; ok {
		d.tree.Delete(n)
		delete(d.idx, s.ID)
	}
	delete(d.waiting, s.ID)
}

func (d *Discipline) StatusUp(s *lb.Server) {
	if _, ok := d.idx[s.ID]; ok {
		return
	}
	n, ok := d.waiting[s.ID]
	if !ok {
		n = &node{s: s}
	}
	delete(d.waiting, s.ID)
	d.clock++
	n.pos = d.clock
	d.idx[s.ID] = n
	d.tree.ReplaceOrInsert(n)
}

func (d *Discipline) StatusDown(s *lb.Server) {
	n, ok := d.idx[s.ID]
	if !ok {
		return
	}
	d.tree.Delete(n)
	delete(d.idx, s.ID)
	d.waiting[s.ID] = n
}

func (d *Discipline) WeightUpdate(s *lb.Server, newUWeight uint32) {
	s.SetWeight(newUWeight)
	if n, ok := d.idx[s.ID]; ok {
		// Position is kept: only the future step size changes, matching
		// the at-most-one-repositioning-per-change rule — a weight change
		// does not itself cause a reshuffle of the tree.
		_ = n
		return
	}
}

func (d *Discipline) TakeConn(s *lb.Server) { s.TakeConn() }
func (d *Discipline) DropConn(s *lb.Server) { s.DropConn() }

// Pick returns the next server in round-robin order, skipping avoid and
// any server saturated per its backend's dynamic maxconn (spec.md
// §4.4.1 step 3: "check saturation ... chain it to a local list,
// continue the loop with the next candidate").
func (d *Discipline) Pick(_ []byte, avoid *lb.Server, beconn, fullconn int64) (*lb.Server, bool) {
	if d.tree.Len() == 0 {
		return nil, false
	}

	var picked *node
	d.tree.AscendGreaterOrEqual(&node{pos: 0}, func(i btree.Item) bool {
		n := i.(*node)
		if avoid != nil && n.s.ID == avoid.ID {
			return true
		}
		if n.s.Saturated(beconn, fullconn) {
			return true
		}
		picked = n
		return false
	})
	if picked == nil {
		return nil, false
	}

	d.tree.Delete(picked)
	picked.pos += step(picked.s.EWeight())
	d.tree.ReplaceOrInsert(picked)
	return picked.s, true
}
