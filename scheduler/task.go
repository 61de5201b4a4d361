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
	"github.com/nabbar/golib/clock"
)

// TaskID identifies a task across the run queue and the timer wheel.
type TaskID uint64

// Result is what a Handler returns after running: either a next expiry to
// be woken at, or Done to retire the task.
type Result struct {
	Next clock.Tick
	Done bool
}

// Runnable returns a Result that re-queues the task for immediate
// execution on the next iteration's run-queue pass.
func Runnable() Result {
	return Result{Next: 0, Done: false}
}

// WakeAt returns a Result that arms the task's timer for the given tick.
func WakeAt(t clock.Tick) Result {
	return Result{Next: t, Done: false}
}

// Finished returns a Result that retires the task.
func Finished() Result {
	return Result{Done: true}
}

// Handler is one task's unit of work. It must not block; if more data or
// time is needed it returns WakeAt/Runnable and is invoked again later.
type Handler func() Result

type task struct {
	id      TaskID
	handler Handler
	// queued marks a task already present in the run queue, so a timer
	// expiry or an explicit Wake cannot double-enqueue it.
	queued bool
}
