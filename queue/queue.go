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

package queue

import (
	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/session"
)

type node struct {
	s          *session.Session
	prev, next *node
}

// fifo is an intrusive doubly-linked list: the node carries its own
// prev/next so removing a specific session from the middle (client
// abort while queued) is O(1) given its node, not a linear scan.
type fifo struct {
	head, tail *node
	count      int
}

func (f *fifo) pushBack(n *node) {
	n.prev, n.next = f.tail, nil
	if f.tail != nil {
		f.tail.next = n
	} else {
		f.head = n
	}
	f.tail = n
	f.count++
}

func (f *fifo) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		f.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		f.tail = n.prev
	}
	n.prev, n.next = nil, nil
	f.count--
}

func (f *fifo) popFront() *node {
	n := f.head
	if n == nil {
		return nil
	}
	f.unlink(n)
	return n
}

// Manager holds one FIFO per backend and implements session.Queue.
// Granularity is per-backend rather than per-server: a session reaches
// QUE before a specific server has been chosen (pick_server failed for
// every candidate), so the backend name is the only key session.Session
// exposes at that point.
type Manager struct {
	queues map[string]*fifo
	byPtr  map[*session.Session]*node
}

// NewManager returns an empty queue manager.
func NewManager() *Manager {
	return &Manager{
		queues: make(map[string]*fifo),
		byPtr:  make(map[*session.Session]*node),
	}
}

func (m *Manager) queueFor(backend string) *fifo {
	q, ok := m.queues[backend]
	if !ok {
		q = &fifo{}
		m.queues[backend] = q
	}
	return q
}

// Enqueue appends s to its backend's pending queue. Satisfies
// session.Queue.
func (m *Manager) Enqueue(s *session.Session) {
	n := &node{s: s}
	m.queueFor(s.Backend()).pushBack(n)
	m.byPtr[s] = n
}

// Remove splices s out of its backend's queue wherever it sits,
// including mid-list (client abort while queued). Satisfies
// session.Queue.
func (m *Manager) Remove(s *session.Session) {
	n, ok := m.byPtr[s]
	if !ok {
		return
	}
	m.queueFor(s.Backend()).unlink(n)
	delete(m.byPtr, s)
}

// Len reports how many sessions are waiting for backend.
func (m *Manager) Len(backend string) int {
	q, ok := m.queues[backend]
	if !ok {
		return 0
	}
	return q.count
}

// Promote pops the oldest queued session for backend, if any, and
// assigns it srv via session.Session.Dequeued — the caller is
// responsible for having verified srv has a free slot.
func (m *Manager) Promote(backend string, srv *lb.Server) (*session.Session, bool) {
	q, ok := m.queues[backend]
	if !ok {
		return nil, false
	}
	n := q.popFront()
	if n == nil {
		return nil, false
	}
	delete(m.byPtr, n.s)
	n.s.Dequeued(srv)
	return n.s, true
}
