// SPDX-License-Identifier: AGPL-3.0-or-later

// Command pagi runs the PAGI gateway: a Supervisor process that pre-forks
// a pool of Worker processes sharing one listening socket, or, when
// re-exec'd with PAGI_WORKER set, a single Worker process serving
// connections off the inherited listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pagi-run/pagi/internal/admin"
	"github.com/pagi-run/pagi/internal/config"
	"github.com/pagi-run/pagi/internal/conn"
	"github.com/pagi-run/pagi/internal/demoapp"
	"github.com/pagi-run/pagi/internal/lifespan"
	"github.com/pagi-run/pagi/internal/listener"
	"github.com/pagi-run/pagi/internal/logging"
	"github.com/pagi-run/pagi/internal/supervisor"
	"github.com/pagi-run/pagi/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (overrides the default search path)")
	addr := flag.String("addr", "", "listen address, overriding supervisor.listen_addr")
	flag.Parse()

	if *configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "pagi: setenv %s: %v\n", config.ConfigPathEnvVar, err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pagi: load config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Supervisor.ListenAddr = *addr
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if os.Getenv(supervisor.WorkerRoleEnv) == "" {
		// The Supervisor watches SIGTERM/SIGINT/SIGHUP/SIGTTIN/SIGTTOU
		// itself (internal/supervisor.Run), so it gets a plain
		// background context rather than one already tied to a signal.
		if err := runSupervisor(context.Background(), cfg); err != nil {
			logging.Error().Err(err).Msg("supervisor exited with error")
			os.Exit(1)
		}
		return
	}

	if err := runWorker(context.Background(), cfg); err != nil {
		logging.Error().Err(err).Msg("worker exited with error")
		os.Exit(1)
	}
}

// runSupervisor binds the listen socket and pre-forks the configured
// Worker pool, per spec.md §4.1.
func runSupervisor(ctx context.Context, cfg *config.Config) error {
	sup := supervisor.New(supervisor.Config{
		Workers:              cfg.Supervisor.Workers,
		ListenAddr:           cfg.Supervisor.ListenAddr,
		MaxRequestsPerWorker: cfg.Supervisor.MaxRequestsPerWorker,
		RespawnBackoffMin:    cfg.Supervisor.RespawnBackoffMin,
		RespawnBackoffMax:    cfg.Supervisor.RespawnBackoffMax,
	})
	logging.Info().
		Int("workers", cfg.Supervisor.Workers).
		Str("addr", cfg.Supervisor.ListenAddr).
		Msg("supervisor starting")
	return sup.Run(ctx)
}

// runWorker reconstructs the inherited listener from fd 3 and serves the
// gateway and admin surfaces until it receives SIGTERM/SIGINT or its
// parent Supervisor exits. The signal watch and the Worker's Serve loop
// (itself a suture tree running the gateway listener and the admin
// server) run as a bounded errgroup: whichever returns first cancels the
// other's context, and the first real error is the one reported.
func runWorker(ctx context.Context, cfg *config.Config) error {
	file := os.NewFile(3, "pagi-listener")
	if file == nil {
		return fmt.Errorf("pagi: worker: fd 3 (%s) is not open", supervisor.ListenerFDEnv)
	}
	ln, err := net.FileListener(file)
	if err != nil {
		return fmt.Errorf("pagi: worker: reconstruct listener from fd 3: %w", err)
	}

	w := worker.New(worker.Config{
		Listener: listener.Config{
			MaxConnections:   cfg.Listener.MaxConnections,
			AcceptBackoffMin: cfg.Listener.AcceptBackoffMin,
			AcceptBackoffMax: cfg.Listener.AcceptBackoffMax,
		},
		Conn: conn.Limits{
			MaxBodyBytes:      cfg.Connection.MaxBodyBytes,
			MaxReceiveQueue:   cfg.Connection.MaxReceiveQueue,
			MaxWSFrameBytes:   cfg.WebSocket.MaxFrameBytes,
			MaxWSMessageBytes: cfg.WebSocket.MaxMessageBytes,
			IdleTimeout:       cfg.Connection.IdleTimeout,
			SSEKeepAlive:      cfg.SSE.KeepAliveInterval,
		},
		Lifespan: lifespan.Config{
			StartupTimeout:  cfg.Lifespan.StartupTimeout,
			ShutdownTimeout: cfg.Lifespan.ShutdownTimeout,
		},
		Admin: admin.Config{
			Addr: cfg.Admin.Addr,
		},
		Tree: worker.DefaultTreeConfig(),
	}, demoapp.Handle, demoapp.Lifespan)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("worker: shutting down")
			cancel()
			return nil
		case <-gctx.Done():
			return nil
		}
	})
	group.Go(func() error {
		return w.Run(gctx, ln)
	})
	return group.Wait()
}
