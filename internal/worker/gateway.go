// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/pagi-run/pagi/internal/channel"
	"github.com/pagi-run/pagi/internal/conn"
	"github.com/pagi-run/pagi/internal/listener"
	"github.com/pagi-run/pagi/internal/logging"
	"github.com/pagi-run/pagi/internal/scope"
)

// GatewayService is a suture.Service wrapping the Listener's accept loop:
// it spawns one Connection per admitted socket and tracks them so Serve
// waits for in-flight connections to drain before returning, the spec.md §4.1 Supervisor
// "drain before restart" behavior applied at the Worker level.
type GatewayService struct {
	ln        *listener.Listener
	limits    conn.Limits
	handler   conn.Handler
	workerPID int
	stateFn   func() map[string]any

	wg sync.WaitGroup
}

// NewGatewayService constructs a GatewayService. stateFn is called once
// per accepted connection to snapshot the Lifespan-managed State map.
func NewGatewayService(ln *listener.Listener, limits conn.Limits, handler conn.Handler, workerPID int, stateFn func() map[string]any) *GatewayService {
	return &GatewayService{ln: ln, limits: limits, handler: handler, workerPID: workerPID, stateFn: stateFn}
}

// Serve implements suture.Service: accept connections until ctx is
// cancelled, then wait for every in-flight Connection to finish.
func (g *GatewayService) Serve(ctx context.Context) error {
	acceptErrCh := make(chan error, 1)
	go func() {
		for {
			c, err := g.ln.Accept(ctx)
			if err != nil {
				acceptErrCh <- err
				return
			}
			g.wg.Add(1)
			go g.serveConn(ctx, c)
		}
	}()

	select {
	case err := <-acceptErrCh:
		g.wg.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		_ = g.ln.Close()
		<-acceptErrCh
		g.wg.Wait()
		return nil
	}
}

func (g *GatewayService) serveConn(ctx context.Context, c net.Conn) {
	defer g.wg.Done()
	state := map[string]any{}
	if g.stateFn != nil {
		state = g.stateFn()
	}
	connection := conn.New(c, g.limits, g.handler, g.workerPID, state)
	logging.WithConn(connection.ID()).Info().Msg("connection accepted")
	connection.Serve(ctx)
}

// Handler adapts an application-level conn.Handler into the shape every
// protocol sub-state-machine expects, a thin alias kept here so callers
// composing a Worker do not need to import internal/channel and
// internal/scope directly just to spell the function type.
type Handler = func(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error
