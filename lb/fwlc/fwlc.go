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

// Package fwlc implements the fixed-weighted least-connections discipline:
// a single tree keyed on served×EWeightMax/eweight, so the leftmost entry
// is always the server with the most spare weighted capacity. The key is
// recomputed and the entry reinserted on every connection take/drop and
// on every weight change, keeping the ordering exact rather than
// approximate.
package fwlc

import (
	"github.com/google/btree"

	"github.com/nabbar/golib/lb"
)

type node struct {
	s   *lb.Server
	key uint64
}

func computeKey(s *lb.Server) uint64 {
	ew := s.EWeight()
	if ew == 0 {
		return ^uint64(0)
	}
	return uint64(s.Served()) * uint64(lb.EWeightMax) / uint64(ew)
}

func (n *node) Less(than btree.Item) bool {
	o := than.(*node)
	if n.key != o.key {
		return n.key < o.key
	}
	return n.s.ID < o.s.ID
}

// Discipline is the fwlc Discipline implementation; a fresh instance must
// be created per backend partition via New().
type Discipline struct {
	tree    *btree.BTree
	idx     map[string]*node
	waiting map[string]*node
}

// New returns an empty fwlc discipline.
func New() lb.Discipline {
	return &Discipline{
		tree:    btree.New(32),
		idx:     make(map[string]*node),
		waiting: make(map[string]*node),
	}
}

func (d *Discipline) reinsert(n *node) {
	d.tree.Delete(n)
	n.key = computeKey(n.s)
	d.tree.ReplaceOrInsert(n)
}

func (d *Discipline) Add(s *lb.Server) {
	n := &node{s: s, key: computeKey(s)}
	if lb.Usable(s.State(), s.EWeight()) {
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
	n.key = computeKey(s)
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
		d.reinsert(n)
	}
}

func (d *Discipline) TakeConn(s *lb.Server) {
	s.TakeConn()
	if n, ok := d.idx[s.ID]; ok {
		d.reinsert(n)
	}
}

func (d *Discipline) DropConn(s *lb.Server) {
	s.DropConn()
	if n, ok := d.idx[s.ID]; ok {
		d.reinsert(n)
	}
}

// Pick returns the leftmost (least-weighted-load) server, skipping avoid
// if given and skipping any server already saturated per its backend's
// dynamic maxconn (spec.md §4.4.2: "leftmost node whose server is not
// saturated"); ties are broken by server ID for determinism.
func (d *Discipline) Pick(_ []byte, avoid *lb.Server, beconn, fullconn int64) (*lb.Server, bool) {
	if d.tree.Len() == 0 {
		return nil, false
	}

	var picked *node
	d.tree.Ascend(func(i btree.Item) bool {
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
	return picked.s, true
}
