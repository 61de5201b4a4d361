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

import (
	"github.com/hashicorp/go-uuid"
)

// WeightScale is the internal multiplier applied to a user-facing weight
// to produce the smoother effective weight used by the selection trees.
const WeightScale = 16

// UWeightMax is the largest user-facing weight accepted.
const UWeightMax = 256

// EWeightMax is the largest effective weight a server can carry.
const EWeightMax = UWeightMax * WeightScale

// State is a server's administrative/health status.
type State uint8

const (
	StateRunning State = iota
	StateMaintenance
	StateDownByCheck
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateMaintenance:
		return "maintenance"
	case StateDownByCheck:
		return "down"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Server belongs to exactly one backend and is tracked by exactly one
// Discipline's ordered structure at a time.
type Server struct {
	ID   string
	Name string
	Addr string
	Port int

	// Backup marks this server as only eligible once no non-backup server
	// is usable.
	Backup bool

	state     State
	prevState State

	uweight     uint32
	eweight     uint32
	prevEWeight uint32

	served  int64
	maxconn int64
	nbpend  int64

	// pos is a scratch field the owning Discipline uses for its ordering
	// key; its meaning is discipline-specific (FWRR's lpos/npos/rweight,
	// FWLC's composite key, chash's ring slot).
	pos [3]int64
}

// NewServer creates a server with a freshly generated numeric identity and
// the given user weight (0..UWeightMax).
func NewServer(name, addr string, port int, uweight uint32) (*Server, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return nil, err
	}
	s := &Server{ID: id, Name: name, Addr: addr, Port: port}
	s.SetWeight(uweight)
	s.state = StateRunning
	s.prevState = StateRunning
	s.prevEWeight = s.eweight
	return s, nil
}

// SetWeight sets the user-facing weight and recomputes the effective
// weight; an uweight of 0 makes the server unusable even if running.
func (s *Server) SetWeight(uweight uint32) {
	if uweight > UWeightMax {
		uweight = UWeightMax
	}
	s.uweight = uweight
	s.eweight = uweight * WeightScale
}

func (s *Server) UWeight() uint32    { return s.uweight }
func (s *Server) EWeight() uint32    { return s.eweight }
func (s *Server) State() State       { return s.state }
func (s *Server) Served() int64      { return s.served }
func (s *Server) MaxConn() int64     { return s.maxconn }
func (s *Server) PendingCount() int64 { return s.nbpend }

// SetMaxConn sets the static per-server connection cap; 0 means unlimited.
func (s *Server) SetMaxConn(n int64) { s.maxconn = n }

// SetState transitions the administrative/health state directly (used by
// health-check callbacks and the admin API); it does not itself notify a
// Discipline — callers invoke Core.StatusUp/StatusDown afterwards.
func (s *Server) SetState(st State) { s.state = st }

// Usable reports whether a server in the given state and effective weight
// should receive traffic. Eweight=0 with an otherwise-usable state is
// explicitly forbidden per the transition rules and treated as down.
func Usable(state State, eweight uint32) bool {
	return state == StateRunning && eweight > 0
}

// DynamicMaxConn implements the fullconn ramp-up formula: a backend whose
// current connection count is still below fullconn scales down the
// server's static maxconn proportionally, so newly-added backends don't
// immediately accept a full burst of traffic.
func DynamicMaxConn(maxconn, beconn, fullconn int64) int64 {
	if maxconn <= 0 {
		return 0
	}
	if fullconn <= 0 {
		return maxconn
	}
	ratio := float64(beconn) / float64(fullconn)
	if ratio > 1 {
		ratio = 1
	}
	dyn := int64(float64(maxconn) * ratio)
	if dyn < 1 {
		dyn = 1
	}
	return dyn
}

// Saturated reports whether s has no room for another connection given the
// backend's fullconn-adjusted maxconn, and has no pending-queue slot
// either.
func (s *Server) Saturated(beconn, fullconn int64) bool {
	if s.maxconn <= 0 {
		return false
	}
	dyn := DynamicMaxConn(s.maxconn, beconn, fullconn)
	return s.served >= dyn
}

// TakeConn records a connection being assigned to s.
func (s *Server) TakeConn() { s.served++ }

// DropConn records a connection being released from s.
func (s *Server) DropConn() {
	if s.served > 0 {
		s.served--
	}
}

// EnqueuePending records one more session waiting in s's pending queue.
func (s *Server) EnqueuePending() { s.nbpend++ }

// DequeuePending records one fewer session waiting in s's pending queue.
func (s *Server) DequeuePending() {
	if s.nbpend > 0 {
		s.nbpend--
	}
}
