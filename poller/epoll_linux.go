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

//go:build linux

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// fdEntry holds both directions' callbacks and state for one descriptor.
type fdEntry struct {
	fd      int
	onRead  Callback
	onWrite Callback
	rState  State
	wState  State
	specIdx int // index into epoller.spec, or -1 if not in the SPEC list.
}

// epoller is the epoll-backed Poller implementation.
type epoller struct {
	epfd int
	fds  map[int]*fdEntry
	spec []*fdEntry
	buf  []unix.EpollEvent
}

// New returns a Poller backed by Linux epoll.
func New() (Poller, error) {
	p := &epoller{
		fds: make(map[int]*fdEntry),
		buf: make([]unix.EpollEvent, 256),
	}
	if err := p.Reopen(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *epoller) Reopen() error {
	if p.epfd != 0 {
		_ = unix.Close(p.epfd)
	}
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("poller: epoll_create1: %w", err)
	}
	p.epfd = fd

	// after fork, every previously-WAIT fd must be re-armed against the
	// new kernel handle; demoting to SPEC achieves that on the next Wait.
	for _, e := range p.fds {
		if e.rState == StateWait || e.rState == StateStop {
			e.rState = StateIdle
			p.pushSpec(e)
		}
		if e.wState == StateWait || e.wState == StateStop {
			e.wState = StateIdle
			p.pushSpec(e)
		}
	}
	return nil
}

func (p *epoller) Close() error {
	return unix.Close(p.epfd)
}

func (p *epoller) Register(fd int, onRead, onWrite Callback) error {
	if _, ok := p.fds[fd]; ok {
		return fmt.Errorf("poller: fd %d already registered", fd)
	}
	p.fds[fd] = &fdEntry{fd: fd, onRead: onRead, onWrite: onWrite, specIdx: -1}
	return nil
}

func (p *epoller) Set(fd int, dir Dir) {
	e, ok := p.fds[fd]
	if !ok {
		return
	}
	state := p.stateFor(e, dir)
	if *state == StateIdle {
		*state = StateSpec
		p.pushSpec(e)
	} else if *state == StateStop {
		*state = StateWait
	}
}

func (p *epoller) Clear(fd int, dir Dir) {
	e, ok := p.fds[fd]
	if !ok {
		return
	}
	state := p.stateFor(e, dir)
	switch *state {
	case StateSpec:
		*state = StateIdle
		p.dropSpec(e)
	case StateWait:
		*state = StateStop
		p.syncEpoll(e)
	}
}

func (p *epoller) Remove(fd int) error {
	e, ok := p.fds[fd]
	if !ok {
		return nil
	}
	if e.rState == StateWait || e.wState == StateWait {
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	p.dropSpec(e)
	delete(p.fds, fd)
	return nil
}

func (p *epoller) stateFor(e *fdEntry, dir Dir) *State {
	if dir == DirRead {
		return &e.rState
	}
	return &e.wState
}

func (p *epoller) pushSpec(e *fdEntry) {
	if e.specIdx >= 0 {
		return
	}
	e.specIdx = len(p.spec)
	p.spec = append(p.spec, e)
}

// dropSpec removes e from the SPEC list in O(1) via swap-with-last, using
// the back-reference stored on the entry.
func (p *epoller) dropSpec(e *fdEntry) {
	if e.specIdx < 0 {
		return
	}
	last := len(p.spec) - 1
	p.spec[e.specIdx] = p.spec[last]
	p.spec[e.specIdx].specIdx = e.specIdx
	p.spec = p.spec[:last]
	e.specIdx = -1
}

func (p *epoller) Wait(until time.Duration) (int, error) {
	processed := 0

	processed += p.drainSpec()

	if until > MaxDelay {
		until = MaxDelay
	}
	msec := int(until / time.Millisecond)
	if msec < 0 {
		msec = 0
	}
	if len(p.spec) > 0 {
		// speculative work remains queued; don't block the scheduler.
		msec = 0
	}

	n, err := unix.EpollWait(p.epfd, p.buf, msec)
	if err != nil && err != unix.EINTR {
		return processed, fmt.Errorf("poller: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		ev := p.buf[i]
		e, ok := p.fds[int(ev.Fd)]
		if !ok {
			continue
		}
		if ev.Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0 && e.rState == StateWait && e.onRead != nil {
			e.onRead(e.fd)
			processed++
		}
		if ev.Events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0 && e.wState == StateWait && e.onWrite != nil {
			e.onWrite(e.fd)
			processed++
		}
	}

	// a fresh batch of SPEC entries may have been produced by the
	// callbacks above (e.g. accept() seeding new connection fds); give
	// them one more speculative pass to save the first syscall.
	if len(p.spec) > 0 {
		processed += p.drainSpec()
	}

	return processed, nil
}

// drainSpec walks the SPEC list, attempting the I/O optimistically; a
// callback returning false demotes the fd to StateWait and registers it
// with the kernel. Bounded by MinReturnEvents so a burst of speculative
// completions cannot starve already-polled fds indefinitely.
func (p *epoller) drainSpec() int {
	processed := 0

	for processed < MinReturnEvents && len(p.spec) > 0 {
		e := p.spec[len(p.spec)-1]
		p.dropSpec(e)

		if e.rState == StateSpec {
			if e.onRead != nil && e.onRead(e.fd) {
				processed++
				e.rState = StateIdle
			} else {
				e.rState = StateWait
			}
		}
		if e.wState == StateSpec {
			if e.onWrite != nil && e.onWrite(e.fd) {
				processed++
				e.wState = StateIdle
			} else {
				e.wState = StateWait
			}
		}

		p.syncEpoll(e)
	}

	return processed
}

// syncEpoll reconciles e's current rState/wState with the kernel epoll
// set: EPOLL_CTL_ADD/MOD/DEL as needed.
func (p *epoller) syncEpoll(e *fdEntry) {
	var events uint32
	if e.rState == StateWait {
		events |= unix.EPOLLIN
	}
	if e.wState == StateWait {
		events |= unix.EPOLLOUT
	}

	if e.rState == StateStop {
		e.rState = StateIdle
	}
	if e.wState == StateStop {
		e.wState = StateIdle
	}

	ev := &unix.EpollEvent{Events: events, Fd: int32(e.fd)}

	if events == 0 {
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, e.fd, nil)
		return
	}

	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, e.fd, ev); err != nil {
		_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, e.fd, ev)
	}
}
