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
	"context"
	"fmt"
	"time"

	golibctx "github.com/nabbar/golib/context"
	"github.com/nabbar/golib/duration"
	"github.com/nabbar/golib/lb"
	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"github.com/nabbar/golib/poller"
	"github.com/nabbar/golib/proxy"
	"github.com/nabbar/golib/queue"
	"github.com/nabbar/golib/rules"
	"github.com/nabbar/golib/scheduler"
	"github.com/nabbar/golib/session"
	"github.com/nabbar/golib/size"
)

// tarpitRetryFloor is the shortest spacing the first CER->TAR retry ever
// gets, regardless of how small a backend's `timeout tarpit` is; the
// schedule then ramps from here up to the configured timeout.
const tarpitRetryFloor = 200 * time.Millisecond

// buildTarpitSchedule spaces successive tarpit retries between
// tarpitRetryFloor and the backend's configured tarpit timeout using a
// PID-shaped ramp (duration.RangeDefTo), so a burst of CON failures
// against the same backend doesn't retry in lockstep (spec.md §4.5 TAR:
// "spreads load after a burst of failures"). A non-positive Tarpit
// timeout keeps the old flat-delay behavior (nil schedule).
func buildTarpitSchedule(tarpit time.Duration) []time.Duration {
	if tarpit <= 0 {
		return nil
	}
	floor := tarpitRetryFloor
	if floor > tarpit {
		floor = tarpit
	}
	steps := duration.ParseDuration(floor).RangeDefTo(duration.ParseDuration(tarpit))
	sched := make([]time.Duration, 0, len(steps))
	for _, d := range steps {
		sched = append(sched, d.Time())
	}
	return sched
}

// Worker is one single-threaded scheduler+poller pair, the unit
// cmd/haproxyd's pre-fork model (SPEC_FULL §5) replicates N of. It owns
// every listener fd it accepts on and every connCtx it spawns; nothing
// here is shared with another Worker.
type Worker struct {
	id  int
	log logger.Logger

	pol   poller.Poller
	sched *scheduler.Scheduler
	wctx  golibctx.Config[WorkerKey]

	frontends []*proxy.Frontend
	backends  map[string]*proxy.Backend
	chains    map[string][]session.Analyser

	queues *queue.Manager

	byFd     map[int]*connCtx
	sessCtx  map[*session.Session]*connCtx
	listenFd map[int]*proxy.Frontend

	maxRetries     int
	tarpitSchedule map[string][]time.Duration
	metrics        *metricsSet
}

// NewWorker builds a Worker around a fresh poller+scheduler pair. chains
// maps a frontend name to the rules.Chain its connections run requests
// through.
func NewWorker(id int, frontends []*proxy.Frontend, backends []*proxy.Backend, chains map[string]*rules.Chain, log logger.Logger, metrics *metricsSet) (*Worker, error) {
	pol, err := poller.New()
	if err != nil {
		return nil, fmt.Errorf("haproxyd: worker %d: poller: %w", id, err)
	}
	sched, err := scheduler.New(pol, log)
	if err != nil {
		return nil, fmt.Errorf("haproxyd: worker %d: scheduler: %w", id, err)
	}

	w := &Worker{
		id:             id,
		log:            log,
		pol:            pol,
		sched:          sched,
		wctx:           golibctx.NewConfig[WorkerKey](nil),
		frontends:      frontends,
		backends:       make(map[string]*proxy.Backend, len(backends)),
		chains:         make(map[string][]session.Analyser, len(chains)),
		queues:         queue.NewManager(),
		byFd:           make(map[int]*connCtx),
		sessCtx:        make(map[*session.Session]*connCtx),
		listenFd:       make(map[int]*proxy.Frontend),
		maxRetries:     3,
		tarpitSchedule: make(map[string][]time.Duration, len(backends)),
		metrics:        metrics,
	}

	for _, b := range backends {
		w.backends[b.Name] = b
		w.tarpitSchedule[b.Name] = buildTarpitSchedule(b.Timeouts.Tarpit)
	}
	for name, c := range chains {
		w.chains[name] = c.Build()
	}

	w.wctx.Store(KeyScheduler, sched)
	w.wctx.Store(KeyPoller, pol)
	w.wctx.Store(KeyWorkerID, id)

	return w, nil
}

// Run binds every frontend's listeners and drives the scheduler loop
// until ctx is cancelled or Stop is called.
func (w *Worker) Run(ctx context.Context) error {
	for _, f := range w.frontends {
		for i := range f.Listeners {
			l := &f.Listeners[i]
			fd, err := listenTCP(l.Addr)
			if err != nil {
				return fmt.Errorf("haproxyd: worker %d: frontend %q: %w", w.id, f.Name, err)
			}
			l.State = proxy.ListenerListening

			front := f
			if err = w.pol.Register(fd, func(lfd int) bool { return w.acceptLoop(lfd, front) }, nil); err != nil {
				return fmt.Errorf("haproxyd: worker %d: register listener: %w", w.id, err)
			}
			w.pol.Set(fd, poller.DirRead)
			w.listenFd[fd] = f
			l.State = proxy.ListenerReady

			if w.log != nil {
				w.log.Entry(loglvl.InfoLevel, "listening").FieldAdd("frontend", f.Name).FieldAdd("addr", l.Addr).Log()
			}
		}
	}

	return w.sched.Run(ctx)
}

// Stop asks the worker's scheduler to return after its current
// iteration.
func (w *Worker) Stop() { w.sched.Stop() }

// acceptLoop drains every pending connection on a listening fd
// (level-triggered epoll may report readiness once for several queued
// connections) and spawns one connCtx/task per accepted client.
func (w *Worker) acceptLoop(listenFd int, f *proxy.Frontend) bool {
	progressed := false
	for {
		fd, ok, err := acceptOne(listenFd)
		if err != nil {
			if w.log != nil {
				w.log.Entry(loglvl.ErrorLevel, "accept failed").FieldAdd("frontend", f.Name).ErrorAdd(true, err).Log()
			}
			return progressed
		}
		if !ok {
			return progressed
		}
		progressed = true
		w.spawnSession(fd, f)
	}
}

// spawnSession builds the session/connCtx pair for a freshly accepted
// client fd, binds it to the frontend's default backend pool, and
// schedules its first run.
func (w *Worker) spawnSession(clientFd int, f *proxy.Frontend) {
	if f.MaxConn > 0 && f.FEConn() >= f.MaxConn {
		if w.metrics != nil {
			w.metrics.deniedConn.WithLabelValues(f.Name).Inc()
		}
		_ = closeFd(clientFd)
		return
	}

	be, ok := w.backends[f.DefaultBack]
	if !ok {
		if w.log != nil {
			w.log.Entry(loglvl.ErrorLevel, "frontend has no resolvable default backend").FieldAdd("frontend", f.Name).FieldAdd("backend", f.DefaultBack).Log()
		}
		_ = closeFd(clientFd)
		return
	}

	conn := &rawConn{fd: clientFd}
	c := &connCtx{
		worker:     w,
		frontend:   f,
		clientFd:   clientFd,
		serverFd:   -1,
		chain:      w.chains[f.Name],
		maxRetries: w.maxRetries,
	}
	bufSize := requestBufferSize(f)
	c.sess = session.New(conn, session.NewRingBuffer(bufSize), session.NewRingBuffer(bufSize), be, w.queues)

	f.IncFEConn()

	if err := w.pol.Register(clientFd, w.wakeCB(), w.wakeCB()); err != nil {
		if w.log != nil {
			w.log.Entry(loglvl.ErrorLevel, "register client fd failed").ErrorAdd(true, err).Log()
		}
		w.releaseConn(c)
		return
	}
	w.pol.Set(clientFd, poller.DirRead)
	w.byFd[clientFd] = c
	w.sessCtx[c.sess] = c

	c.taskID = w.sched.Spawn(c.step)
}

// wakeCB returns a poller.Callback that resolves fd back to its connCtx
// and re-queues its task; used for every per-connection read/write
// registration (client and server fds alike).
func (w *Worker) wakeCB() poller.Callback {
	return func(fd int) bool { return w.wake(fd) }
}

func (w *Worker) wake(fd int) bool {
	c, ok := w.byFd[fd]
	if !ok {
		return false
	}
	w.sched.Wake(c.taskID)
	return true
}

// releaseConn tears down a connCtx's fds/poller registrations/bookkeeping.
// It does not touch c.sess, which the caller is expected to have already
// terminated (or never started).
func (w *Worker) releaseConn(c *connCtx) {
	if c.clientFd >= 0 {
		_ = w.pol.Remove(c.clientFd)
		delete(w.byFd, c.clientFd)
		_ = closeFd(c.clientFd)
		c.clientFd = -1
	}
	if c.serverFd >= 0 {
		_ = w.pol.Remove(c.serverFd)
		delete(w.byFd, c.serverFd)
		_ = closeFd(c.serverFd)
		c.serverFd = -1
	}
	delete(w.sessCtx, c.sess)
	c.frontend.DecFEConn()
}

// tryPromote pops the oldest session queued for backendName (if any)
// onto srv and wakes its task, implementing the "freed slot -> next
// queued session" half of admission control (spec.md §4.6).
func (w *Worker) tryPromote(backendName string, srv *lb.Server) {
	if srv == nil {
		return
	}
	s, ok := w.queues.Promote(backendName, srv)
	if !ok {
		return
	}
	if c, ok := w.sessCtx[s]; ok {
		w.sched.Wake(c.taskID)
	}
}

func closeFd(fd int) error {
	return (&rawConn{fd: fd}).Close()
}

// requestBufferSize picks the ring-buffer capacity for both directions
// of a frontend's sessions. A per-frontend override is not yet exposed
// in proxy.FrontendSpec, so every frontend shares one default for now.
func requestBufferSize(f *proxy.Frontend) size.Size {
	return defaultBufferSize
}

const defaultBufferSize size.Size = 16 * 1024
