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

package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/nabbar/golib/clock"
	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	"github.com/nabbar/golib/poller"
)

// Scheduler is a single-threaded, cooperative task runner. Create one per
// worker; it owns a Poller and a timer Wheel and must be driven exclusively
// by its own Run goroutine.
type Scheduler struct {
	log logger.Logger
	pol poller.Poller

	clk   *clock.Source
	wheel *clock.Wheel[TaskID]

	mu      sync.Mutex
	tasks   map[TaskID]*task
	runq    []TaskID
	nextID  TaskID
	stopped bool

	sig      *signalQueue
	wakeR    *os.File
	wakeW    *os.File
	wakeBuf  [64]byte
}

// New creates a Scheduler driving the given Poller.
func New(p poller.Poller, log logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		log:   log,
		pol:   p,
		clk:   clock.NewSource(),
		wheel: clock.NewWheel[TaskID](),
		tasks: make(map[TaskID]*task),
	}
	s.sig = newSignalQueue(s.wakeUp)

	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	s.wakeR, s.wakeW = r, w

	if err = p.Register(int(r.Fd()), s.drainWakePipe, nil); err != nil {
		return nil, err
	}
	p.Set(int(r.Fd()), poller.DirRead)

	return s, nil
}

func (s *Scheduler) drainWakePipe(fd int) bool {
	n, _ := s.wakeR.Read(s.wakeBuf[:])
	return n > 0
}

func (s *Scheduler) wakeUp() {
	_, _ = s.wakeW.Write([]byte{0})
}

// OnSignal arms h to run on the scheduler goroutine when sig is delivered.
func (s *Scheduler) OnSignal(sig os.Signal, h SignalHandler) {
	s.sig.On(sig, h)
}

// Spawn enqueues a new task for immediate execution and returns its id.
func (s *Scheduler) Spawn(h Handler) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	t := &task{id: id, handler: h, queued: true}
	s.tasks[id] = t
	s.runq = append(s.runq, id)
	return id
}

// Wake re-queues an existing task for execution on the next iteration,
// cancelling any pending timer it had armed.
func (s *Scheduler) Wake(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.queued {
		return
	}
	t.queued = true
	s.wheel.Cancel(id)
	s.runq = append(s.runq, id)
}

// Cancel removes a task from the scheduler entirely, whether it is
// currently queued, timer-armed, or idle waiting on an fd callback to
// call Wake.
func (s *Scheduler) Cancel(id TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, id)
	s.wheel.Cancel(id)
}

// Stop asks Run to return after completing its current iteration.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.wakeUp()
}

// Now returns the tick cached as of the start of the current iteration.
func (s *Scheduler) Now() clock.Tick {
	return s.clk.Now()
}

// Run drives the main loop described by the scheduler design: drain
// signals, run the ready queue, compute the nearest timer expiry, wait in
// the poller, move expired timers to the ready queue, repeat. It returns
// when Stop is called or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	stopPump := make(chan struct{})
	go s.sig.pump(stopPump)
	defer close(stopPump)

	for {
		s.clk.Refresh()

		s.sig.drain()

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return nil
		}
		select {
		case <-ctx.Done():
			s.mu.Unlock()
			return ctx.Err()
		default:
		}

		ready := s.runq
		s.runq = nil
		s.mu.Unlock()

		for _, id := range ready {
			s.runOne(id)
		}

		s.mu.Lock()
		_, firstExp, hasTimer := s.wheel.First()
		runAgain := len(s.runq) > 0
		s.mu.Unlock()

		timeout := poller.MaxDelay
		switch {
		case runAgain:
			timeout = 0
		case hasTimer:
			remain := clock.Remain(s.clk.Now(), firstExp)
			timeout = time.Duration(remain) * time.Millisecond
			if timeout > poller.MaxDelay {
				timeout = poller.MaxDelay
			}
		}

		if _, err := s.pol.Wait(timeout); err != nil {
			if s.log != nil {
				s.log.Entry(loglvl.ErrorLevel, "poller wait failed").ErrorAdd(true, err).Log()
			}
		}

		s.clk.Refresh()
		now := s.clk.Now()

		s.mu.Lock()
		expired := s.wheel.Expired(now)
		for _, id := range expired {
			if t, ok := s.tasks[id]; ok && !t.queued {
				t.queued = true
				s.runq = append(s.runq, id)
			}
		}
		s.mu.Unlock()
	}
}

// runOne executes a single task handler to completion and applies its
// Result: re-arm a timer, retire the task, or leave it idle (the handler
// is expected to call Wake itself later, e.g. from an fd callback).
func (s *Scheduler) runOne(id TaskID) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	t.queued = false
	h := t.handler
	s.mu.Unlock()

	res := h()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, stillExists := s.tasks[id]; !stillExists {
		return
	}
	if res.Done {
		delete(s.tasks, id)
		s.wheel.Cancel(id)
		return
	}
	if res.Next == 0 {
		t.queued = true
		s.runq = append(s.runq, id)
		return
	}
	s.wheel.Insert(id, res.Next)
}
