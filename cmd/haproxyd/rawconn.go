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
	"net"

	"golang.org/x/sys/unix"
)

// rawConn is a non-blocking socket wrapped as a session.Conn. Built
// directly on golang.org/x/sys/unix rather than net.TCPConn/net.Listener
// so the scheduler's own poller owns readiness for this fd instead of
// competing with Go's internal netpoller (the pair the scheduler relies
// on, poller.Poller + scheduler.Scheduler, only ever sees fds it was
// handed explicitly).
type rawConn struct {
	fd     int
	closed bool
}

// EAGAIN/EWOULDBLOCK on a non-blocking fd is not an I/O error: it means
// "no data/room right now", exactly the condition the scheduler's fd
// callback exists to wait out. session.StreamInterface.ReadInto/WriteFrom
// pass Read/Write errors straight through unwrapped, so mapping the two
// would-block errnos to (0, nil) here is what lets the rest of the
// session machinery treat "nothing happened" uniformly whether the cause
// was an empty ring buffer or a socket with no data queued.
func (c *rawConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rawconn: read: %w", err)
	}
	if n == 0 {
		return 0, errConnClosed
	}
	return n, nil
}

func (c *rawConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, nil
	}
	if err != nil {
		return n, fmt.Errorf("rawconn: write: %w", err)
	}
	return n, nil
}

func (c *rawConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}

func (c *rawConn) Fd() int { return c.fd }

// errConnClosed is returned, like io.EOF would be from a blocking
// net.Conn, when Read observes the peer's orderly shutdown (recv()
// returning 0). session.StreamInterface treats it like any other read
// error except where callers explicitly special-case io.EOF; a raw fd
// has no equivalent of io.EOF, so this is the sentinel this package uses
// instead.
var errConnClosed = fmt.Errorf("rawconn: connection closed by peer")

// listenTCP builds a non-blocking, listening TCP socket bound to addr
// ("host:port"), returning its raw file descriptor.
func listenTCP(addr string) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, fmt.Errorf("rawconn: resolve %q: %w", addr, err)
	}

	domain := unix.AF_INET
	if tcpAddr.IP == nil || tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("rawconn: socket: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("rawconn: setsockopt SO_REUSEADDR: %w", err)
	}

	sa, err := sockaddr(domain, tcpAddr.IP, tcpAddr.Port)
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("rawconn: bind %q: %w", addr, err)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("rawconn: listen %q: %w", addr, err)
	}
	return fd, nil
}

// acceptOne accepts at most one pending connection off listenFd without
// blocking. ok is false when the listener currently has nothing pending
// (EAGAIN/EWOULDBLOCK) rather than a real failure.
func acceptOne(listenFd int) (fd int, ok bool, err error) {
	nfd, _, aerr := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if aerr == unix.EAGAIN || aerr == unix.EWOULDBLOCK {
		return -1, false, nil
	}
	if aerr != nil {
		return -1, false, fmt.Errorf("rawconn: accept4: %w", aerr)
	}
	return nfd, true, nil
}

// dialTCP issues a non-blocking connect() to addr. inProgress is true
// when the connect is still pending (EINPROGRESS) and the caller must
// wait for write-readiness, then call connectErr to learn the outcome.
func dialTCP(addr string) (fd int, inProgress bool, err error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, false, fmt.Errorf("rawconn: resolve %q: %w", addr, err)
	}

	domain := unix.AF_INET
	if tcpAddr.IP == nil || tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err = unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, false, fmt.Errorf("rawconn: socket: %w", err)
	}

	sa, err := sockaddr(domain, tcpAddr.IP, tcpAddr.Port)
	if err != nil {
		_ = unix.Close(fd)
		return -1, false, err
	}

	err = unix.Connect(fd, sa)
	if err == nil {
		return fd, false, nil
	}
	if err == unix.EINPROGRESS {
		return fd, true, nil
	}
	_ = unix.Close(fd)
	return -1, false, fmt.Errorf("rawconn: connect %q: %w", addr, err)
}

// connectErr reads SO_ERROR off fd once it becomes writable, reporting
// whether the pending non-blocking connect succeeded.
func connectErr(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("rawconn: getsockopt SO_ERROR: %w", err)
	}
	if errno != 0 {
		return fmt.Errorf("rawconn: connect: %w", unix.Errno(errno))
	}
	return nil
}

func sockaddr(domain int, ip net.IP, port int) (unix.Sockaddr, error) {
	if domain == unix.AF_INET6 {
		sa := &unix.SockaddrInet6{Port: port}
		copy(sa.Addr[:], ip.To16())
		return sa, nil
	}
	sa := &unix.SockaddrInet4{Port: port}
	v4 := ip.To4()
	if v4 == nil {
		// unspecified address ("" host in listen spec): bind to all IPv4.
		v4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], v4)
	return sa, nil
}
