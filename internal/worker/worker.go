// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/pagi-run/pagi/internal/admin"
	"github.com/pagi-run/pagi/internal/conn"
	"github.com/pagi-run/pagi/internal/lifespan"
	"github.com/pagi-run/pagi/internal/listener"
	"github.com/pagi-run/pagi/internal/logging"
)

// Config bundles everything one Worker process needs to run the gateway
// and admin services, sourced from internal/config.
type Config struct {
	Listener listener.Config
	Conn     conn.Limits
	Lifespan lifespan.Config
	Admin    admin.Config
	Tree     TreeConfig
}

// Worker owns one OS process's share of the work: it runs the Lifespan
// startup dialogue, then serves connections and the admin surface under a
// Tree, then runs the Lifespan shutdown dialogue on the way out.
type Worker struct {
	cfg       Config
	handler   Handler
	lifecycle lifespan.Handler
	pid       int

	lifespanCoord *lifespan.Coordinator
	tree          *Tree
	ln            *listener.Listener
}

// New constructs a Worker for the current OS process. appHandler serves
// every http/websocket/sse Scope; lifecycleHandler serves the lifespan
// Scope (may be nil).
func New(cfg Config, appHandler Handler, lifecycleHandler lifespan.Handler) *Worker {
	return &Worker{
		cfg:           cfg,
		handler:       appHandler,
		lifecycle:     lifecycleHandler,
		pid:           os.Getpid(),
		lifespanCoord: lifespan.New(cfg.Lifespan, lifecycleHandler),
	}
}

// Run runs the Worker to completion: Lifespan startup, serve until ctx is
// cancelled, Lifespan shutdown. A startup failure is returned without ever
// accepting a connection on rawListener, per spec.md §4.7.
func (w *Worker) Run(ctx context.Context, rawListener net.Listener) error {
	log := logging.WithWorker(w.pid)
	log.Info().Msg("worker starting lifespan startup")

	if err := w.lifespanCoord.Startup(ctx); err != nil {
		return fmt.Errorf("worker: lifespan startup: %w", err)
	}

	w.ln = listener.New(rawListener, w.cfg.Listener)

	slogger := logging.NewSlogLogger()
	tree, err := NewTree(slogger, w.cfg.Tree)
	if err != nil {
		return fmt.Errorf("worker: build supervision tree: %w", err)
	}
	w.tree = tree

	gatewaySvc := NewGatewayService(w.ln, w.cfg.Conn, w.handler, w.pid, w.lifespanCoord.State)
	tree.AddGatewayService(gatewaySvc)

	adminSvc := admin.NewService(w.cfg.Admin, func() admin.Status {
		return admin.Status{
			WorkerPID:         w.pid,
			ActiveConnections: w.ln.ActiveConnections(),
			MaxConnections:    w.cfg.Listener.MaxConnections,
		}
	})
	tree.AddAdminService(adminSvc)

	log.Info().Msg("worker serving")
	serveErr := tree.Serve(ctx)

	shutdownCtx := context.Background()
	if err := w.lifespanCoord.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("lifespan shutdown did not complete cleanly")
	}

	return serveErr
}
