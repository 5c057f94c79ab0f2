// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conn implements the per-socket Connection state machine: it owns
// one net.Conn for its lifetime, reads exactly one request at a time
// (spec.md §3.2.8, no pipelining), and dispatches to the HTTP/1.1,
// WebSocket or SSE sub-state-machines based on the request's headers.
package conn

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/pagi-run/pagi/internal/channel"
	"github.com/pagi-run/pagi/internal/httpproto"
	"github.com/pagi-run/pagi/internal/logging"
	"github.com/pagi-run/pagi/internal/scope"
	"github.com/pagi-run/pagi/internal/sseproto"
	"github.com/pagi-run/pagi/internal/wsproto"
)

// Limits aggregates the per-connection resource caps spec.md §5 lists,
// sourced from internal/config.
type Limits struct {
	MaxBodyBytes      int64
	MaxReceiveQueue   int
	MaxWSFrameBytes   int64
	MaxWSMessageBytes int64
	IdleTimeout       time.Duration
	SSEKeepAlive      time.Duration
}

// Handler is the single application entry point for every Scope type this
// Connection may dispatch: http, websocket or sse. The Worker wires it to
// whatever serves the application's own request-handling logic.
type Handler func(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error

// Connection drives one accepted net.Conn end to end.
type Connection struct {
	id        string
	raw       net.Conn
	limits    Limits
	handler   Handler
	workerPID int
	state     map[string]any
}

// New constructs a Connection for a freshly accepted socket and assigns it
// a random UUID as its identifier (spec.md §3.1).
func New(raw net.Conn, limits Limits, handler Handler, workerPID int, state map[string]any) *Connection {
	return &Connection{
		id:        uuid.New().String(),
		raw:       raw,
		limits:    limits,
		handler:   handler,
		workerPID: workerPID,
		state:     state,
	}
}

// ID returns this Connection's identifier.
func (c *Connection) ID() string { return c.id }

// Serve runs the Connection's full lifetime: it loops reading HTTP
// request heads off the socket, serving each as HTTP, WebSocket or SSE,
// until the peer closes the connection, a request asks for Connection:
// close, or ctx is cancelled.
func (c *Connection) Serve(ctx context.Context) {
	defer c.raw.Close()

	br := bufio.NewReader(c.raw)
	bw := bufio.NewWriter(c.raw)

	log := logging.WithConn(c.id)

	for {
		if ctx.Err() != nil {
			return
		}
		if c.limits.IdleTimeout > 0 {
			_ = c.raw.SetReadDeadline(time.Now().Add(c.limits.IdleTimeout))
		}

		head := httpproto.ReadRequestHead(br)
		switch head.Outcome {
		case httpproto.OutcomeNeedMore:
			return
		case httpproto.OutcomeErr:
			log.Warn().Err(head.Err).Msg("malformed request")
			rw := httpproto.NewResponseWriter(bw)
			_ = rw.Start("HTTP/1.1", head.RequiredStatus, nil, false)
			_ = rw.Body(nil, false)
			return
		}

		head.Scope.ConnID = c.id
		head.Scope.WorkerPID = c.workerPID
		head.Scope.ServerAddr = c.raw.LocalAddr().String()
		head.Scope.ClientAddr = c.raw.RemoteAddr().String()
		head.Scope.Scheme = "http"
		head.Scope.State = c.state

		keepAlive, err := c.dispatch(ctx, br, bw, head, log)
		if err != nil {
			log.Warn().Err(err).Msg("connection exchange ended with error")
			return
		}
		if !keepAlive {
			return
		}
	}
}

func (c *Connection) dispatch(ctx context.Context, br *bufio.Reader, bw *bufio.Writer, head httpproto.ParseResult, log logging.Entry) (bool, error) {
	switch {
	case isWebSocketUpgrade(head.Scope):
		return false, c.serveWebSocket(ctx, bw, head.Scope, log)
	case sseproto.IsSSERequest(head.Scope):
		return false, c.serveSSE(ctx, bw, head.Scope, log)
	default:
		return c.serveHTTP(ctx, br, bw, head)
	}
}

func isWebSocketUpgrade(sc scope.Scope) bool {
	upgrade, ok := sc.Headers.Get("Upgrade")
	return ok && upgrade != ""
}

func (c *Connection) serveHTTP(ctx context.Context, br *bufio.Reader, bw *bufio.Writer, head httpproto.ParseResult) (bool, error) {
	limits := httpproto.Limits{MaxBodyBytes: c.limits.MaxBodyBytes, MaxReceiveQueue: c.limits.MaxReceiveQueue}
	return httpproto.RunExchange(ctx, br, bw, head, limits, c.handler)
}

func (c *Connection) serveWebSocket(ctx context.Context, bw *bufio.Writer, sc scope.Scope, log logging.Entry) error {
	sc.Type = scope.TypeWebSocket
	hs, err := wsproto.ValidateHandshake(sc)
	if err != nil {
		log.Warn().Err(err).Msg("websocket handshake rejected")
		return wsproto.WriteReject(bw, 400, err.Error())
	}

	limits := wsproto.Limits{
		MaxFrameSize:    c.limits.MaxWSFrameBytes,
		MaxMessageSize:  c.limits.MaxWSMessageBytes,
		MaxReceiveQueue: c.limits.MaxReceiveQueue,
		IdleTimeout:     c.limits.IdleTimeout,
	}
	return wsproto.RunExchange(ctx, c.raw, bw, hs, limits, sc, func(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error {
		return c.handler(ctx, sc, recv, send)
	})
}

func (c *Connection) serveSSE(ctx context.Context, bw *bufio.Writer, sc scope.Scope, log logging.Entry) error {
	sc.Type = scope.TypeSSE
	if err := sseproto.WriteAccept(bw, sc.HTTPVersion, nil); err != nil {
		return err
	}
	limits := sseproto.Limits{KeepAliveInterval: c.limits.SSEKeepAlive}
	err := sseproto.RunExchange(ctx, bw, limits, sc, func(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error {
		return c.handler(ctx, sc, recv, send)
	})
	if err != nil {
		log.Debug().Err(err).Msg("sse stream ended")
	}
	return nil
}
