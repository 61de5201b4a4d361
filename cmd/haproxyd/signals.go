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
	"os"
	"syscall"

	"github.com/nabbar/golib/clock"
	loglvl "github.com/nabbar/golib/logger/level"
	"github.com/nabbar/golib/poller"
	"github.com/nabbar/golib/proxy"
	"github.com/nabbar/golib/scheduler"
	"github.com/nabbar/golib/session"
)

// wireSignals arms the four control signals spec.md §6's admin surface
// needs a way to trigger without a client connection: SIGUSR1 for a
// graceful drain, SIGTTOU/SIGTTIN to pause/resume accepting without
// dropping live sessions, and SIGTERM for an immediate hard stop. All
// four run on the worker's own scheduler goroutine, so they touch
// w.listenFd/w.sessCtx without locking.
func (w *Worker) wireSignals() {
	w.sched.OnSignal(syscall.SIGUSR1, func(os.Signal) { w.gracefulQuit() })
	w.sched.OnSignal(syscall.SIGTTOU, func(os.Signal) { w.pauseListening() })
	w.sched.OnSignal(syscall.SIGTTIN, func(os.Signal) { w.resumeListening() })
	w.sched.OnSignal(syscall.SIGTERM, func(os.Signal) { w.hardQuit() })
}

// pauseListening clears read interest on every listener without closing
// it, so the socket keeps its backlog but acceptLoop is never invoked.
func (w *Worker) pauseListening() {
	for fd, f := range w.listenFd {
		w.pol.Clear(fd, poller.DirRead)
		for i := range f.Listeners {
			f.Listeners[i].State = proxy.ListenerPaused
		}
	}
	if w.log != nil {
		w.log.Entry(loglvl.InfoLevel, "worker paused accepting").FieldAdd("worker", w.id).Log()
	}
}

// resumeListening re-arms read interest on every listener paused by
// pauseListening.
func (w *Worker) resumeListening() {
	for fd, f := range w.listenFd {
		w.pol.Set(fd, poller.DirRead)
		for i := range f.Listeners {
			f.Listeners[i].State = proxy.ListenerReady
		}
	}
	if w.log != nil {
		w.log.Entry(loglvl.InfoLevel, "worker resumed accepting").FieldAdd("worker", w.id).Log()
	}
}

// gracefulQuit stops accepting and spawns a task that waits for every
// live session to finish on its own before stopping the scheduler.
func (w *Worker) gracefulQuit() {
	w.pauseListening()
	if w.log != nil {
		w.log.Entry(loglvl.InfoLevel, "worker draining").FieldAdd("worker", w.id).FieldAdd("sessions", len(w.sessCtx)).Log()
	}

	w.sched.Spawn(func() scheduler.Result {
		if len(w.sessCtx) == 0 {
			w.Stop()
			return scheduler.Finished()
		}
		return scheduler.WakeAt(clock.Add(w.sched.Now(), drainPollMS))
	})
}

// hardQuit terminates every live session immediately and stops the
// scheduler on the next iteration.
func (w *Worker) hardQuit() {
	if w.log != nil {
		w.log.Entry(loglvl.WarnLevel, "worker hard stop").FieldAdd("worker", w.id).FieldAdd("sessions", len(w.sessCtx)).Log()
	}
	for _, c := range w.sessCtx {
		c.sess.Terminate(session.ErrResource, session.FinstL)
		w.releaseConn(c)
	}
	w.Stop()
}

// drainPollMS is how often gracefulQuit's drain task re-checks whether
// every session has finished.
const drainPollMS = 200
