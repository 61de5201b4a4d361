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

package main

import (
	"fmt"
	"time"

	"github.com/nabbar/golib/clock"
	"github.com/nabbar/golib/lb"
	loglvl "github.com/nabbar/golib/logger/level"
	"github.com/nabbar/golib/poller"
	"github.com/nabbar/golib/proxy"
	"github.com/nabbar/golib/scheduler"
	"github.com/nabbar/golib/session"
)

// connCtx is the per-connection state a Worker's scheduler task closes
// over: the session state machine plus the raw fds and backend binding
// that drive it. One connCtx backs exactly one scheduler.TaskID.
type connCtx struct {
	worker   *Worker
	frontend *proxy.Frontend
	backend  *proxy.Backend

	clientFd int
	serverFd int

	sess   *session.Session
	chain  []session.Analyser
	taskID scheduler.TaskID

	maxRetries    int
	beconnCounted bool
}

// step is this connection's scheduler.Handler: it runs the session's
// server-side state machine one step further and tells the scheduler
// when to run again, mirroring how the teacher's single-goroutine
// poller callbacks never block and always report back what they did.
func (c *connCtx) step() scheduler.Result {
	s := c.sess

	switch s.Server.State() {
	case session.StateINI:
		s.BeginRequest()
		return scheduler.Runnable()

	case session.StateREQ:
		return c.stepRequest()

	case session.StateQUE:
		// Parked: only tryPromote (called from a freed connection's
		// teardown) wakes a queued task back up, via Dequeued.
		return scheduler.WakeAt(clock.Eternity)

	case session.StateTAR:
		s.TarpitElapsed()
		return scheduler.Runnable()

	case session.StateASS:
		return c.stepAssigned()

	case session.StateCON:
		return c.stepConnecting()

	case session.StateEST:
		return c.stepEstablished()

	default:
		return scheduler.Finished()
	}
}

// stepRequest drains whatever the client has sent so far into Req, runs
// the frontend's analyser chain over it, and on acceptance resolves the
// target backend and picks a server.
func (c *connCtx) stepRequest() scheduler.Result {
	s := c.sess

	if _, err := s.Client.ReadInto(s.Req); err != nil {
		return c.teardown(session.ErrCliCL)
	}

	now := c.worker.sched.Now()
	inspectDelay := clock.Add(now, durationMS(c.frontend.Timeouts.InspectDelay))

	switch s.RunAnalysers(c.chain, inspectDelay) {
	case session.AnalysisReject:
		// RunAnalysers already called Terminate; no server was ever
		// picked for this session, so there is nothing to free.
		if c.worker.metrics != nil {
			c.worker.metrics.deniedReq.WithLabelValues(c.frontend.Name).Inc()
		}
		return c.finishTerminated(nil)
	case session.AnalysisMiss:
		return scheduler.WakeAt(s.Server.Expiry())
	case session.AnalysisContinue:
		// Unreachable: RunAnalysers never returns Continue to its caller.
		return scheduler.Runnable()
	}

	backendName := s.Backend()
	if backendName == "" {
		backendName = c.frontend.DefaultBack
		s.AssignBackend(backendName)
	}

	be, ok := c.worker.backends[backendName]
	if !ok {
		if c.worker.log != nil {
			c.worker.log.Entry(loglvl.ErrorLevel, "unknown backend").FieldAdd("backend", backendName).Log()
		}
		return c.teardown(session.ErrPrxCond)
	}
	c.backend = be
	s.SetPool(be)

	key := s.Req.Peek(s.Req.Len())
	if !s.SelectServer(key) {
		// Enqueued: Dequeued (called from tryPromote via queue.Manager)
		// moves the session to ASS and wakes this task directly.
		return scheduler.WakeAt(clock.Eternity)
	}

	be.IncBEConn()
	c.beconnCounted = true
	return c.stepAssigned()
}

// stepAssigned issues the non-blocking connect() to the picked server.
func (c *connCtx) stepAssigned() scheduler.Result {
	s := c.sess
	srv := s.TargetServer()
	if srv == nil {
		return c.teardown(session.ErrResource)
	}

	addr := fmt.Sprintf("%s:%d", srv.Addr, srv.Port)
	fd, inProgress, err := dialTCP(addr)
	if err != nil {
		s.ConnectFailed(c.maxRetries, c.tarpitDelay(), false)
		return c.afterConnectFailed(srv)
	}

	c.serverFd = fd
	s.Server.SetConn(&rawConn{fd: fd})

	connectTimeout := clock.Add(c.worker.sched.Now(), durationMS(c.backend.Timeouts.Connect))
	s.Connect(connectTimeout)

	if err = c.worker.pol.Register(fd, c.worker.wakeCB(), c.worker.wakeCB()); err != nil {
		s.ConnectFailed(c.maxRetries, c.tarpitDelay(), false)
		return c.afterConnectFailed(srv)
	}
	c.worker.byFd[fd] = c

	if !inProgress {
		s.ConnectEstablished()
		c.markServed()
		c.worker.pol.Set(c.serverFd, poller.DirRead)
		c.worker.pol.Set(c.clientFd, poller.DirRead)
		return scheduler.Runnable()
	}

	c.worker.pol.Set(fd, poller.DirWrite)
	return scheduler.WakeAt(s.Server.Expiry())
}

// stepConnecting is reached either because serverFd became writable or
// because the connect timeout elapsed.
func (c *connCtx) stepConnecting() scheduler.Result {
	s := c.sess
	now := c.worker.sched.Now()
	srv := s.TargetServer()

	if s.Server.Expired(now) {
		s.ConnectFailed(c.maxRetries, c.tarpitDelay(), true)
		return c.afterConnectFailed(srv)
	}
	if err := connectErr(c.serverFd); err != nil {
		s.ConnectFailed(c.maxRetries, c.tarpitDelay(), false)
		return c.afterConnectFailed(srv)
	}

	s.ConnectEstablished()
	c.markServed()
	c.worker.pol.Clear(c.serverFd, poller.DirWrite)
	c.worker.pol.Set(c.serverFd, poller.DirRead)
	c.worker.pol.Set(c.clientFd, poller.DirRead)
	return scheduler.Runnable()
}

func (c *connCtx) markServed() {
	if c.worker.metrics != nil && c.backend != nil {
		c.worker.metrics.served.WithLabelValues(c.backend.Name).Inc()
	}
}

// afterConnectFailed drops the failed server fd's registration and
// either waits out the tarpit delay ConnectFailed just armed, or, if
// ConnectFailed instead terminated the session outright (retries
// exhausted), finishes teardown and tries to promote a queued session
// onto the server slot ConnectFailed just released. failedSrv is the
// server the session was attached to right before calling
// session.ConnectFailed, which always clears it from the session itself.
func (c *connCtx) afterConnectFailed(failedSrv *lb.Server) scheduler.Result {
	if c.serverFd >= 0 {
		_ = c.worker.pol.Remove(c.serverFd)
		delete(c.worker.byFd, c.serverFd)
		_ = closeFd(c.serverFd)
		c.serverFd = -1
	}

	if !c.sess.Done() {
		return scheduler.WakeAt(c.sess.Server.Expiry())
	}
	return c.finishTerminated(failedSrv)
}

// stepEstablished pumps bytes in both directions and adjusts poller
// interest to match what each ring buffer still has pending. Any pump
// error tears the whole session down immediately; the teacher's more
// granular half-close/drain behaviour (session.HalfClose) is exercised
// directly by session's own tests but is not reached from this pipeline,
// a deliberate simplification for a first cut of the daemon loop.
func (c *connCtx) stepEstablished() scheduler.Result {
	s := c.sess

	if _, err := s.PumpClientToServer(); err != nil {
		return c.teardown(session.ErrCliCL)
	}
	if _, err := s.PumpServerToClient(); err != nil {
		return c.teardown(session.ErrSrvCL)
	}

	if !s.Req.Empty() {
		c.worker.pol.Set(c.serverFd, poller.DirWrite)
	} else {
		c.worker.pol.Clear(c.serverFd, poller.DirWrite)
	}
	if !s.Rep.Empty() {
		c.worker.pol.Set(c.clientFd, poller.DirWrite)
	} else {
		c.worker.pol.Clear(c.clientFd, poller.DirWrite)
	}

	return scheduler.WakeAt(clock.Eternity)
}

// teardown terminates the session with class, releases the connCtx's
// fds, and tries to promote a queued session onto the server slot this
// one just freed.
func (c *connCtx) teardown(class session.ErrClass) scheduler.Result {
	freed := c.sess.TargetServer()
	c.sess.Terminate(class, session.FinstD)
	return c.finishTerminated(freed)
}

// finishTerminated runs after the session has already reached its
// terminal Terminate() call (from teardown, from ConnectFailed's
// retries-exhausted path, or from the analyser chain's own Reject path):
// it releases fds/bookkeeping and, if freed names a server this session
// held a connection slot on, gives that slot to the next queued session.
func (c *connCtx) finishTerminated(freed *lb.Server) scheduler.Result {
	backendName := c.sess.Backend()
	be := c.backend

	c.worker.releaseConn(c)

	if be != nil && c.beconnCounted {
		be.DecBEConn()
		c.beconnCounted = false
	}
	if freed != nil {
		c.worker.tryPromote(backendName, freed)
	}

	return scheduler.Finished()
}

// tarpitDelay spaces successive retries against the same backend along
// its precomputed schedule (worker.go's buildTarpitSchedule), indexed by
// how many times this session has already failed to connect; a backend
// with no schedule (non-positive timeout tarpit) keeps the old flat
// delay.
func (c *connCtx) tarpitDelay() clock.Tick {
	now := c.worker.sched.Now()
	sched := c.worker.tarpitSchedule[c.backend.Name]
	if len(sched) == 0 {
		return clock.Add(now, durationMS(c.backend.Timeouts.Tarpit))
	}
	idx := c.sess.RetryCount()
	if idx >= len(sched) {
		idx = len(sched) - 1
	}
	return clock.Add(now, durationMS(sched[idx]))
}

func durationMS(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
