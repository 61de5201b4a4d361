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

	"github.com/spf13/viper"

	"github.com/nabbar/golib/proxy"
)

// daemonFlags mirrors the subset of configuration cmd/haproxyd itself
// needs on top of the frontends/backends proxy.Load already decodes:
// how many worker goroutines to run and where to serve the admin
// surface. Bound to cobra flags in main.go and to viper the same way
// proxy.Load binds frontends/backends, so a single config file covers
// both.
type daemonFlags struct {
	ConfigFile string `mapstructure:"-"`
	Workers    int    `mapstructure:"workers"`
	AdminSock  string `mapstructure:"admin_socket"`
	AdminHTTP  string `mapstructure:"admin_http"`
}

func defaultFlags() daemonFlags {
	return daemonFlags{Workers: 1}
}

// loadConfig reads the daemon-level keys plus every frontend/backend
// proxy.Load understands out of v.
func loadConfig(v *viper.Viper, flags daemonFlags) (daemonFlags, []*proxy.Frontend, []*proxy.Backend, error) {
	out := flags
	if v.IsSet("workers") {
		out.Workers = v.GetInt("workers")
	}
	if v.IsSet("admin_socket") {
		out.AdminSock = v.GetString("admin_socket")
	}
	if v.IsSet("admin_http") {
		out.AdminHTTP = v.GetString("admin_http")
	}
	if out.Workers < 1 {
		out.Workers = 1
	}

	frontends, backends, err := proxy.Load(v)
	if err != nil {
		return out, nil, nil, fmt.Errorf("haproxyd: %w", err)
	}
	return out, frontends, backends, nil
}

// WorkerKey is the key type threaded through a worker's
// context.Config[WorkerKey] (SPEC_FULL §9's "one worker context"
// consolidating now_ms/jobs/stopping/poller tables/per-proxy counters).
type WorkerKey uint8

const (
	KeyScheduler WorkerKey = iota
	KeyPoller
	KeyStopping
	KeyWorkerID
)
