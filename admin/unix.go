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

package admin

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

// UnixApplet serves the line-oriented diagnostic variant of the admin
// interface spec.md §6 describes: one command per line, one or more
// response lines terminated by a blank line, patterned on HAProxy's own
// stats socket command grammar (`key=value` pairs for the multi-field
// pool.add, positional arguments otherwise).
type UnixApplet struct {
	reg *Registry
	log logger.Logger
	ln  *net.UnixListener
}

// NewUnixApplet binds path as a Unix socket. The socket is removed first
// if a stale one is left over from a previous run.
func NewUnixApplet(path string, reg *Registry, log logger.Logger) (*UnixApplet, error) {
	_ = os.Remove(path)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}

	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}

	return &UnixApplet{reg: reg, log: log, ln: ln}, nil
}

// Close stops accepting new connections.
func (a *UnixApplet) Close() error {
	return a.ln.Close()
}

// Serve accepts connections until the listener is closed. Run it in its
// own goroutine.
func (a *UnixApplet) Serve() {
	for {
		conn, err := a.ln.AcceptUnix()
		if err != nil {
			if a.log != nil {
				a.log.Entry(loglvl.InfoLevel, "admin unix applet stopped accepting").ErrorAdd(true, err).Log()
			}
			return
		}
		go a.handle(conn)
	}
}

func (a *UnixApplet) handle(conn *net.UnixConn) {
	defer func() { _ = conn.Close() }()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		for _, out := range a.dispatch(line) {
			if _, err := fmt.Fprintln(conn, out); err != nil {
				return
			}
		}
		if _, err := fmt.Fprintln(conn, ""); err != nil {
			return
		}
	}
}

func (a *UnixApplet) dispatch(line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return []string{"ERROR: empty command"}
	}

	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "version":
		return []string{Version}

	case "pool.add":
		kv := parseKV(args)
		port, _ := strconv.Atoi(kv["port"])
		weight, _ := strconv.ParseUint(kv["weight"], 10, 32)
		disabled := kv["disabled"] == "true"
		s, err := a.reg.PoolAdd(AddServerRequest{
			Backend: kv["backend"], Name: kv["name"], Addr: kv["addr"],
			Port: port, Weight: uint32(weight), Disabled: disabled,
		})
		if err != nil {
			return []string{"ERROR: " + err.Error()}
		}
		return []string{formatStatus(s)}

	case "pool.disable":
		if len(args) != 2 {
			return []string{"ERROR: usage: pool.disable <backend> <server>"}
		}
		s, err := a.reg.PoolDisable(ServerRef{Backend: args[0], Server: args[1]})
		if err != nil {
			return []string{"ERROR: " + err.Error()}
		}
		return []string{formatStatus(s)}

	case "pool.enable":
		if len(args) != 2 {
			return []string{"ERROR: usage: pool.enable <backend> <server>"}
		}
		s, err := a.reg.PoolEnable(ServerRef{Backend: args[0], Server: args[1]})
		if err != nil {
			return []string{"ERROR: " + err.Error()}
		}
		return []string{formatStatus(s)}

	case "pool.weight":
		if len(args) != 3 {
			return []string{"ERROR: usage: pool.weight <backend> <server> <weight>"}
		}
		w, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return []string{"ERROR: invalid weight " + args[2]}
		}
		s, err := a.reg.PoolWeight(WeightRequest{Backend: args[0], Server: args[1], Weight: uint32(w)})
		if err != nil {
			return []string{"ERROR: " + err.Error()}
		}
		return []string{formatStatus(s)}

	case "pool.status":
		if len(args) != 2 {
			return []string{"ERROR: usage: pool.status <backend> <server>"}
		}
		s, err := a.reg.PoolStatus(ServerRef{Backend: args[0], Server: args[1]})
		if err != nil {
			return []string{"ERROR: " + err.Error()}
		}
		return []string{formatStatus(s)}

	case "pool.contents":
		if len(args) != 1 {
			return []string{"ERROR: usage: pool.contents <backend>"}
		}
		list, err := a.reg.PoolContents(args[0])
		if err != nil {
			return []string{"ERROR: " + err.Error()}
		}
		out := make([]string, 0, len(list))
		for _, s := range list {
			out = append(out, formatStatus(s))
		}
		return out

	case "pool.remove":
		if len(args) != 2 {
			return []string{"ERROR: usage: pool.remove <backend> <server>"}
		}
		removed, err := a.reg.PoolRemove(ServerRef{Backend: args[0], Server: args[1]})
		if err != nil {
			return []string{"ERROR: " + err.Error()}
		}
		if removed {
			return []string{"removed"}
		}
		return []string{"quiesced"}

	default:
		return []string{"ERROR: unknown command " + cmd}
	}
}

func parseKV(args []string) map[string]string {
	kv := make(map[string]string, len(args))
	for _, a := range args {
		if i := strings.IndexByte(a, '='); i >= 0 {
			kv[a[:i]] = a[i+1:]
		}
	}
	return kv
}

func formatStatus(s ServerStatus) string {
	return fmt.Sprintf("server %s addr=%s:%d backup=%t state=%s weight=%d served=%d pending=%d",
		s.Name, s.Addr, s.Port, s.Backup, s.State, s.Weight, s.Served, s.Pending)
}
