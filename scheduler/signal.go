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
	"os"
	"os/signal"
	"sync"
)

// SignalHandler reacts to one delivered OS signal. It runs on the
// scheduler goroutine, during the signal-queue pass of the main loop,
// never on the signal.Notify goroutine itself.
type SignalHandler func(os.Signal)

// signalQueue records signals delivered asynchronously by the Go runtime
// and replays them on the scheduler goroutine. The real signal handler
// (the os/signal delivery goroutine) only ever appends here; the
// scheduler is the sole reader, draining it once per iteration.
type signalQueue struct {
	mu       sync.Mutex
	pending  []os.Signal
	handlers map[os.Signal][]SignalHandler
	ch       chan os.Signal
	wake     func()
}

func newSignalQueue(wake func()) *signalQueue {
	return &signalQueue{
		handlers: make(map[os.Signal][]SignalHandler),
		ch:       make(chan os.Signal, 16),
		wake:     wake,
	}
}

// On registers h to run when sig is delivered.
func (q *signalQueue) On(sig os.Signal, h SignalHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	signal.Notify(q.ch, sig)
	q.handlers[sig] = append(q.handlers[sig], h)
}

// pump is started once by the scheduler; it moves delivered signals from
// the runtime channel into the pending queue and wakes the scheduler out
// of poller.Wait, mirroring a self-pipe without requiring a raw fd.
func (q *signalQueue) pump(stop <-chan struct{}) {
	for {
		select {
		case s := <-q.ch:
			q.mu.Lock()
			q.pending = append(q.pending, s)
			q.mu.Unlock()
			q.wake()
		case <-stop:
			return
		}
	}
}

// drain invokes every registered handler for each signal queued since the
// last call, in delivery order. Called once per scheduler iteration.
func (q *signalQueue) drain() {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, s := range pending {
		for _, h := range q.handlers[s] {
			h(s)
		}
	}
}
