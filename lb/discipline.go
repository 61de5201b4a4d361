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

package lb

// Discipline is implemented by each selection algorithm (fwrr, fwlc,
// chash). A Discipline owns exactly one partition (active or backup
// servers) of one backend and keeps its own ordered structure consistent
// as servers are added, removed, or change weight/status.
//
// Key, when a discipline supports key-based selection (chash), carries
// the lookup key (source IP bytes, URI, header value, ...); disciplines
// that select by load alone ignore it.
type Discipline interface {
	// Add inserts a server into the discipline's structure. Add must be
	// called at most once per server before any other method is called
	// with that server.
	Add(s *Server)

	// Remove drops a server from the structure entirely (used when a
	// server is deleted from the backend, not for a transient down).
	Remove(s *Server)

	// Pick returns the next server to route a connection to, or false if
	// the partition has no usable, unsaturated server. avoid, when
	// non-nil, is excluded from consideration (used for backend retry-on-
	// a-different-server logic). beconn and fullconn are the owning
	// backend's current connection count and fullconn threshold; Pick
	// uses them with Server.Saturated to skip a candidate at or beyond
	// its dynamic maxconn, continuing to the next one, per spec.md
	// §4.4.1 step 3 / §4.4.2.
	Pick(key []byte, avoid *Server, beconn, fullconn int64) (*Server, bool)

	// TakeConn notifies the discipline that a connection was assigned to
	// s, for disciplines whose ordering depends on current load (fwlc).
	TakeConn(s *Server)

	// DropConn notifies the discipline that a connection was released
	// from s.
	DropConn(s *Server)

	// StatusUp notifies the discipline that s became usable (it must
	// already have been added).
	StatusUp(s *Server)

	// StatusDown notifies the discipline that s became unusable; the
	// discipline pulls it out of the selectable structure but keeps its
	// bookkeeping so a later StatusUp can re-insert it at a fair
	// position.
	StatusDown(s *Server)

	// WeightUpdate notifies the discipline that s's weight changed to
	// newUWeight; the discipline recomputes s's effective weight and
	// repositions it.
	WeightUpdate(s *Server, newUWeight uint32)
}

// Factory builds a fresh, empty Discipline instance; each backend
// partition (active, backup) gets its own instance from the same
// factory.
type Factory func() Discipline

// Core binds an active-partition and a backup-partition Discipline
// together and implements the partition-selection half of server
// selection described in spec.md: prefer the active partition, fall back
// to backup only when no active server is usable.
type Core struct {
	active Discipline
	backup Discipline

	actCount int
	bckCount int
}

// NewCore builds a Core from a Factory, creating one Discipline instance
// per partition.
func NewCore(f Factory) *Core {
	return &Core{active: f(), backup: f()}
}

func (c *Core) disciplineFor(s *Server) Discipline {
	if s.Backup {
		return c.backup
	}
	return c.active
}

// Add registers a server with the partition matching its Backup flag.
func (c *Core) Add(s *Server) {
	c.disciplineFor(s).Add(s)
	if s.Backup {
		c.bckCount++
	} else {
		c.actCount++
	}
}

// Remove drops a server entirely.
func (c *Core) Remove(s *Server) {
	c.disciplineFor(s).Remove(s)
	if s.Backup {
		c.bckCount--
	} else {
		c.actCount--
	}
}

// StatusUp/StatusDown/WeightUpdate/TakeConn/DropConn forward to the
// server's own partition.
func (c *Core) StatusUp(s *Server)     { c.disciplineFor(s).StatusUp(s) }
func (c *Core) StatusDown(s *Server)   { c.disciplineFor(s).StatusDown(s) }
func (c *Core) TakeConn(s *Server)     { c.disciplineFor(s).TakeConn(s) }
func (c *Core) DropConn(s *Server)     { c.disciplineFor(s).DropConn(s) }
func (c *Core) WeightUpdate(s *Server, w uint32) {
	c.disciplineFor(s).WeightUpdate(s, w)
}

// Pick selects a server for a new connection: the active partition is
// tried first; only if it yields nothing (empty, or every candidate
// saturated) is the backup partition consulted. avoid excludes a
// specific server from both passes (retry logic). beconn/fullconn are
// forwarded unchanged to both partitions' disciplines so each can skip
// saturated candidates (spec.md §4.4.1 step 3 / §4.4.2); the caller is
// not the right place to pre-filter since only the discipline knows
// which candidate is next in its ordering.
func (c *Core) Pick(key []byte, avoid *Server, beconn, fullconn int64) (*Server, bool) {
	if s, ok := c.active.Pick(key, avoid, beconn, fullconn); ok {
		return s, true
	}
	return c.backup.Pick(key, avoid, beconn, fullconn)
}
