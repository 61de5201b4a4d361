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

package clock

import (
	"github.com/google/btree"
)

// entry is the btree.Item stored for one pending timer. seq breaks ties
// between entries sharing the same expiry tick, preserving insertion order
// as the scheduler's ordering guarantee requires.
type entry[ID comparable] struct {
	expire Tick
	seq    uint64
	id     ID
}

func (e *entry[ID]) less(than *entry[ID]) bool {
	if e.expire != than.expire {
		return e.expire < than.expire
	}
	return e.seq < than.seq
}

// item adapts entry[ID] to btree.Item; btree.Item requires comparing
// against another btree.Item, so the generic entry can't implement it
// directly without a type assertion at the call site.
type item[ID comparable] struct {
	*entry[ID]
}

func (i item[ID]) Less(than btree.Item) bool {
	return i.entry.less(than.(item[ID]).entry)
}

// Wheel is the expiry-ordered timer tree described in the scheduler: tasks
// are inserted keyed on their expiry tick and the scheduler queries First
// once per iteration to compute its poller wait timeout.
type Wheel[ID comparable] struct {
	tree  *btree.BTree
	index map[ID]*entry[ID]
	seq   uint64
}

// NewWheel returns an empty timer wheel for task identifiers of type ID.
func NewWheel[ID comparable]() *Wheel[ID] {
	return &Wheel[ID]{
		tree:  btree.New(32),
		index: make(map[ID]*entry[ID]),
	}
}

// Insert arms or re-arms the timer for id at the given expiry tick. If id
// already has a pending timer, it is replaced.
func (w *Wheel[ID]) Insert(id ID, expire Tick) {
	if old, ok := w.index[id]; ok {
		w.tree.Delete(item[ID]{old})
	}

	w.seq++
	e := &entry[ID]{expire: expire, seq: w.seq, id: id}
	w.index[id] = e
	w.tree.ReplaceOrInsert(item[ID]{e})
}

// Cancel removes id's pending timer, if any, and reports whether one was
// removed.
func (w *Wheel[ID]) Cancel(id ID) bool {
	e, ok := w.index[id]
	if !ok {
		return false
	}
	delete(w.index, id)
	w.tree.Delete(item[ID]{e})
	return true
}

// Len returns the number of pending timers.
func (w *Wheel[ID]) Len() int {
	return w.tree.Len()
}

// First returns the nearest pending expiry tick, or Eternity if the wheel
// is empty.
func (w *Wheel[ID]) First() (id ID, expire Tick, ok bool) {
	m := w.tree.Min()
	if m == nil {
		return id, Eternity, false
	}
	e := m.(item[ID]).entry
	return e.id, e.expire, true
}

// Expired removes and returns, in expiry then insertion order, every timer
// whose expiry has passed relative to now.
func (w *Wheel[ID]) Expired(now Tick) []ID {
	var (
		ids []ID
		hit []*entry[ID]
	)

	w.tree.Ascend(func(i btree.Item) bool {
		e := i.(item[ID]).entry
		if !IsExpired(e.expire, now) {
			return false
		}
		ids = append(ids, e.id)
		hit = append(hit, e)
		return true
	})

	for _, e := range hit {
		w.tree.Delete(item[ID]{e})
		delete(w.index, e.id)
	}

	return ids
}
