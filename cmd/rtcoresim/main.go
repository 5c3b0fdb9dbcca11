// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	_ "go.uber.org/automaxprocs"

	"github.com/dualkernel/rtcore/pkg/healthz"
	rtcorehttp "github.com/dualkernel/rtcore/pkg/http"
	logger "github.com/dualkernel/rtcore/pkg/log"
	"github.com/dualkernel/rtcore/pkg/sched"
	"github.com/dualkernel/rtcore/pkg/sysfs"
	"github.com/dualkernel/rtcore/pkg/utils/cpuset"
)

var log = logger.NewLogger("rtcoresim")

type runOptions struct {
	cpus            string
	listenAddr      string
	watchdogTimeout time.Duration
	debug           bool
}

func main() {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:   "rtcoresim",
		Short: "A userspace simulation harness for the dual-kernel rescheduling core",
		Long: `rtcoresim drives pkg/sched's Engine against a synthetic arch/root-domain
boundary, so the scheduling core's behavior can be exercised and observed
without an actual dual-kernel host underneath it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.cpus, "cpus", "", "CPU set to run on, e.g. 0-3 (default: all online CPUs)")
	root.PersistentFlags().StringVar(&opts.listenAddr, "listen", ":8890", "address to serve metrics and introspection on")
	root.PersistentFlags().DurationVar(&opts.watchdogTimeout, "watchdog-timeout", time.Second, "watchdog sweep period")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		log.Fatal("%v", err)
	}
}

func run(ctx context.Context, opts *runOptions) error {
	if opts.debug {
		logger.SetLevel(logger.LevelDebug)
	}

	sys, err := sysfs.DiscoverSystem()
	if err != nil {
		return fmt.Errorf("failed to discover system topology: %w", err)
	}

	cpus := sys.OnlineCPUs()
	if opts.cpus != "" {
		cpus, err = cpuset.Parse(opts.cpus)
		if err != nil {
			return fmt.Errorf("invalid --cpus %q: %w", opts.cpus, err)
		}
	}

	cfg := sched.EngineConfig{CPUs: cpus, WatchdogTimeout: opts.watchdogTimeout}

	timers := newRealTimers()
	engine, err := sched.NewEngine(cfg, &noopArch{}, &noopRootDomain{}, timers, &noopIPI{})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := engine.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer engine.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(engine.Collectors()...)

	srv := rtcorehttp.NewServer()
	mux := srv.GetMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	engine.RegisterIntrospection(mux)
	healthz.Setup(mux)

	if err := srv.Start(opts.listenAddr); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	defer srv.Stop()

	log.Info("rtcoresim running on cpus %s, serving %s", cpus, opts.listenAddr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return nil
	})

	return g.Wait()
}
