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
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/nabbar/golib/admin"
	"github.com/nabbar/golib/logger"
	"github.com/nabbar/golib/logger/config"
	loglvl "github.com/nabbar/golib/logger/level"
	"github.com/nabbar/golib/proxy"
	"github.com/nabbar/golib/rules"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the cobra command tree. haproxyd takes a single
// configuration file (viper-decoded, see proxy.Load and loadConfig) and
// runs until SIGTERM/SIGUSR1, as wired per-worker in signals.go.
func newRootCmd() *cobra.Command {
	flags := defaultFlags()

	cmd := &cobra.Command{
		Use:   "haproxyd",
		Short: "Reverse-proxy and load-balancer daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.ConfigFile, "config", "c", "", "path to the daemon's configuration file")
	cmd.Flags().IntVarP(&flags.Workers, "workers", "w", flags.Workers, "number of worker goroutines")
	cmd.Flags().StringVar(&flags.AdminSock, "admin-socket", "", "path to the admin Unix socket (disabled if empty)")
	cmd.Flags().StringVar(&flags.AdminHTTP, "admin-http", "", "address to serve the admin HTTP API and /metrics on (disabled if empty)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func run(ctx context.Context, flags daemonFlags) error {
	log := logger.New(ctx)
	log.SetLevel(loglvl.InfoLevel)
	if err := log.SetOptions(&config.Options{Stdout: &config.OptionsStd{EnableTrace: true}}); err != nil {
		return fmt.Errorf("haproxyd: logger: %w", err)
	}
	defer func() { _ = log.Close() }()

	v := viper.New()
	v.SetConfigFile(flags.ConfigFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("haproxyd: reading %q: %w", flags.ConfigFile, err)
	}

	flags, frontends, backends, err := loadConfig(v, flags)
	if err != nil {
		return err
	}

	chains := make(map[string]*rules.Chain, len(frontends))
	for _, f := range frontends {
		chains[f.Name] = defaultChain(f)
	}

	metrics := newMetricsSet(prometheus.DefaultRegisterer)

	group, gctx := errgroup.WithContext(ctx)

	workers := make([]*Worker, 0, flags.Workers)
	for i := 0; i < flags.Workers; i++ {
		w, werr := NewWorker(i, frontends, backends, chains, log, metrics)
		if werr != nil {
			return werr
		}
		w.wireSignals()
		workers = append(workers, w)

		group.Go(func() error { return w.Run(gctx) })
	}

	if flags.AdminSock != "" {
		reg := admin.NewRegistry(backends)
		applet, aerr := admin.NewUnixApplet(flags.AdminSock, reg, log)
		if aerr != nil {
			return fmt.Errorf("haproxyd: admin socket: %w", aerr)
		}
		group.Go(func() error { applet.Serve(); return nil })
		go func() {
			<-gctx.Done()
			_ = applet.Close()
		}()
	}

	if flags.AdminHTTP != "" {
		reg := admin.NewRegistry(backends)
		mux := http.NewServeMux()
		mux.Handle("/", admin.NewHTTPHandler(reg, log))
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{Addr: flags.AdminHTTP, Handler: mux}
		group.Go(func() error {
			if serr := srv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
				return serr
			}
			return nil
		})
		go func() {
			<-gctx.Done()
			_ = srv.Close()
		}()
	}

	if err = group.Wait(); err != nil {
		log.Entry(loglvl.ErrorLevel, "haproxyd exiting with error").ErrorAdd(true, err).Log()
		return err
	}
	return nil
}

// defaultChain builds the TCP-connection/TCP-content/backend-switch
// chain every frontend runs, per rules.Bitmap's default set (SPEC_FULL
// §4). Rule sources beyond the frontend's default backend are not yet
// exposed in proxy.FrontendSpec, so every frontend gets a chain that
// just dispatches to its default backend; operators wanting content
// rules configure them by extending FrontendSpec and feeding AddContentRule
// etc. here.
func defaultChain(f *proxy.Frontend) *rules.Chain {
	bm := rules.NewBitmap()
	bm.Enable(rules.KindBackendSwitch)
	c := rules.NewChain(bm)
	c.SetDefaultBackend(f.DefaultBack)
	return c
}
