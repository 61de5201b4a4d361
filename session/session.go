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

package session

import (
	"github.com/nabbar/golib/clock"
	"github.com/nabbar/golib/lb"
)

// Pool is the subset of lb.Core a session needs: pick a server and
// report connection take/drop. *lb.Core satisfies this directly.
type Pool interface {
	Pick(key []byte, avoid *lb.Server) (*lb.Server, bool)
	TakeConn(s *lb.Server)
	DropConn(s *lb.Server)
}

// Queue is the subset of the per-server/per-backend pending queue a
// session needs when pick_server finds every candidate saturated.
type Queue interface {
	Enqueue(s *Session)
	Remove(s *Session)
}

// AnalysisResult is the outcome of one analyser in the request-analysis
// chain.
type AnalysisResult uint8

const (
	AnalysisContinue AnalysisResult = iota
	AnalysisMiss
	AnalysisAccept
	AnalysisReject
)

// Analyser inspects (and may consume from) the session's request buffer.
type Analyser func(s *Session) AnalysisResult

// Session is an end-to-end forwarding context bound to one accepted
// client connection.
type Session struct {
	Client *StreamInterface
	Server *StreamInterface

	Req *RingBuffer // client -> server
	Rep *RingBuffer // server -> client

	flags Flags

	backend string
	srv     *lb.Server
	avoid   *lb.Server
	retries int

	errClass ErrClass
	finst    FinishStep

	bytesIn  int64
	bytesOut int64

	pool  Pool
	queue Queue
}

// New creates a session around an already-accepted client connection;
// the caller is expected to have already admitted it against the
// frontend's maxconn/session-rate checks. req and rep are the session's
// two ring buffers (client->server and server->client).
func New(client Conn, req, rep *RingBuffer, pool Pool, queue Queue) *Session {
	s := &Session{
		Client: NewStreamInterface(client),
		Req:    req,
		Rep:    rep,
		pool:   pool,
		queue:  queue,
	}
	s.Client.setState(StateEST)
	s.Server = &StreamInterface{state: StateINI, exp: clock.Eternity}
	return s
}

func (s *Session) Flags() Flags          { return s.flags }
func (s *Session) SetFlag(f Flags)       { s.flags.Set(f) }
func (s *Session) Backend() string       { return s.backend }
func (s *Session) TargetServer() *lb.Server { return s.srv }
func (s *Session) ErrClass() ErrClass    { return s.errClass }
func (s *Session) FinishStep() FinishStep { return s.finst }
func (s *Session) BytesIn() int64        { return s.bytesIn }
func (s *Session) BytesOut() int64       { return s.bytesOut }

// RetryCount reports how many CON->CER transitions this session has gone
// through, for callers that space out successive tarpit delays by retry
// (spec.md §4.5 CER: "spreads load after a burst of failures").
func (s *Session) RetryCount() int { return s.retries }

// BeginRequest moves the server-side interface to REQ, the state that
// triggers backend/server selection.
func (s *Session) BeginRequest() {
	s.Server.setState(StateREQ)
}

// RunAnalysers runs the ordered analyser chain; on Miss, inspectDelay is
// armed as the server-side interface's expiry so the scheduler re-drives
// this session when it elapses even if no more bytes arrive. On Reject
// the session is terminated with PRXCOND/FinstR immediately.
func (s *Session) RunAnalysers(chain []Analyser, inspectDelay clock.Tick) AnalysisResult {
	for _, a := range chain {
		switch a(s) {
		case AnalysisContinue:
			continue
		case AnalysisMiss:
			s.Server.arm(inspectDelay)
			return AnalysisMiss
		case AnalysisReject:
			s.Terminate(ErrPrxCond, FinstR)
			return AnalysisReject
		case AnalysisAccept:
			return AnalysisAccept
		}
	}
	return AnalysisAccept
}

// AssignBackend records the chosen backend name and marks be_assigned.
func (s *Session) AssignBackend(name string) {
	s.backend = name
	s.flags.Set(FlagBeAssigned)
}

// SetPool rebinds the pool pick_server draws from. A Session is built
// against the frontend's default backend pool; a switchAnalyser firing
// mid-chain (rules.Chain's KindBackendSwitch stage) changes which backend
// the caller must pick from, so the caller looks up the newly assigned
// backend's pool and rebinds it here before calling SelectServer.
func (s *Session) SetPool(pool Pool) {
	s.pool = pool
}

// SelectServer implements pick_server: on success the server is taken
// from the pool and the session moves to ASS; on failure (every
// candidate saturated or down) the session enqueues and moves to QUE.
func (s *Session) SelectServer(key []byte) bool {
	srv, ok := s.pool.Pick(key, s.avoid)
	if !ok {
		s.Server.setState(StateQUE)
		if s.queue != nil {
			s.queue.Enqueue(s)
		}
		return false
	}
	s.srv = srv
	s.pool.TakeConn(srv)
	s.Server.setState(StateASS)
	return true
}

// Dequeued is called by the queue when a pending slot frees up; it
// retries server selection exactly once for the freed slot's server.
func (s *Session) Dequeued(srv *lb.Server) {
	s.srv = srv
	s.pool.TakeConn(srv)
	s.Server.setState(StateASS)
}

// Connect moves ASS -> CON: the connect() syscall has been issued and
// the session is waiting for writability or an error, bounded by
// connectTimeout.
func (s *Session) Connect(connectTimeout clock.Tick) {
	s.Server.setState(StateCON)
	s.Server.arm(connectTimeout)
}

// ConnectEstablished moves CON -> EST on both sides once the backend
// connection is writable without error.
func (s *Session) ConnectEstablished() {
	s.Server.setState(StateEST)
	s.Server.disarm()
	s.Client.setState(StateEST)
}

// ConnectFailed handles a CON-state failure: if retries remain (and
// redispatch is honoured by letting the next SelectServer call avoid the
// failing server), the session moves to TAR to wait out a retry delay;
// otherwise it terminates.
func (s *Session) ConnectFailed(maxRetries int, tarpitDelay clock.Tick, timedOut bool) {
	if s.srv != nil {
		s.pool.DropConn(s.srv)
	}
	s.Server.setState(StateCER)
	s.retries++
	if s.retries <= maxRetries {
		s.avoid = s.srv
		s.flags.Set(FlagRedispatched)
		s.srv = nil
		s.Server.setState(StateTAR)
		s.Server.arm(tarpitDelay)
		return
	}
	class := ErrSrvCL
	if timedOut {
		class = ErrSrvTO
	}
	// Already dropped above; clear so Terminate does not double-drop it.
	s.srv = nil
	s.Terminate(class, FinstC)
}

// TarpitElapsed moves TAR back to REQ so the session retries server
// selection.
func (s *Session) TarpitElapsed() {
	s.Server.disarm()
	s.Server.setState(StateREQ)
}

// PumpClientToServer forwards bytes currently available on the client
// side into the server side, when both are established.
func (s *Session) PumpClientToServer() (int, error) {
	n, err := s.Client.ReadInto(s.Req)
	s.bytesIn += int64(n)
	if s.Server.state == StateEST && !s.Req.Empty() {
		if _, werr := s.Server.WriteFrom(s.Req); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

// PumpServerToClient forwards bytes currently available on the server
// side into the client side.
func (s *Session) PumpServerToClient() (int, error) {
	n, err := s.Server.ReadInto(s.Rep)
	s.bytesOut += int64(n)
	if s.Client.state == StateEST && !s.Rep.Empty() {
		if _, werr := s.Client.WriteFrom(s.Rep); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

// HalfClose moves one side to DIS, draining its remaining buffered data
// subject to the caller-supplied timeout; the session as a whole moves
// to DIS once either side has shut.
func (s *Session) HalfClose(client bool, drainTimeout clock.Tick) {
	if client {
		s.Client.setState(StateDIS)
		s.Client.arm(drainTimeout)
	} else {
		s.Server.setState(StateDIS)
		s.Server.arm(drainTimeout)
	}
}

// Terminate performs full teardown: both sides close, the target server
// (if any) is released back to the pool, a queued slot (if any) is
// cancelled, and the termination class/phase are recorded.
func (s *Session) Terminate(class ErrClass, finst FinishStep) {
	s.errClass = class
	s.finst = finst

	if s.Server.state == StateQUE && s.queue != nil {
		s.queue.Remove(s)
	}
	if s.srv != nil {
		s.pool.DropConn(s.srv)
		s.srv = nil
	}

	s.Client.setState(StateCLO)
	s.Server.setState(StateCLO)
	_ = s.Client.Close()
	_ = s.Server.Close()
}

// Done reports whether both sides have reached CLO.
func (s *Session) Done() bool {
	return s.Client.state == StateCLO && s.Server.state == StateCLO
}
