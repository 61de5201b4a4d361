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

package poller

import (
	"time"
)

// Dir identifies one direction of interest on a file descriptor.
type Dir uint8

const (
	DirRead Dir = iota
	DirWrite
)

// State is the lifecycle of one (fd, direction) pair.
type State uint8

const (
	// StateIdle: no interest registered.
	StateIdle State = iota
	// StateSpec: interest registered but not yet handed to the kernel;
	// the next Wait pass attempts the I/O optimistically first.
	StateSpec
	// StateWait: registered with the kernel poller.
	StateWait
	// StateStop: was StateWait, pending removal from the kernel poller.
	StateStop
)

// Callback is invoked when fd becomes ready in the direction it was
// registered for. A true return means the callback made progress and the
// caller may attempt another speculative round; false means "nothing to
// do right now", which demotes the fd to StateWait.
type Callback func(fd int) (progressed bool)

// MaxDelay bounds how long a single Wait call may block the scheduler,
// even when no timer is due sooner.
const MaxDelay = 1000 * time.Millisecond

// MinReturnEvents bounds how many purely-speculative completions Wait
// processes before it must return control to the scheduler, so a burst of
// SPEC-state fds can never starve already-polled kernel events.
const MinReturnEvents = 25

// Poller multiplexes read/write readiness across many file descriptors.
// All methods are idempotent and must be called from the single owning
// scheduler goroutine; no locking is performed internally.
type Poller interface {
	// Register installs read and write callbacks for fd. Either callback
	// may be nil if that direction is never used.
	Register(fd int, onRead, onWrite Callback) error

	// Set requests interest in dir for fd, moving it to StateSpec if it
	// was idle. Idempotent if already active.
	Set(fd int, dir Dir)

	// Clear drops interest in dir for fd.
	Clear(fd int, dir Dir)

	// Remove drops all interest in fd and forgets its callbacks.
	Remove(fd int) error

	// Wait runs one poll iteration: it first drains the speculative list,
	// then blocks in the kernel poller for at most until, and finally
	// dispatches ready events to their callbacks. It returns the number
	// of (fd, direction) pairs it invoked a callback for.
	Wait(until time.Duration) (processed int, err error)

	// Reopen recreates the kernel poller handle. Must be called after
	// fork() in the child, per the no-shared-readiness-queue requirement.
	Reopen() error

	// Close releases the kernel poller handle.
	Close() error
}
