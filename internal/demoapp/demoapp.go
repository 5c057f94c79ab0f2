// SPDX-License-Identifier: AGPL-3.0-or-later

// Package demoapp is the default application cmd/pagi hosts when no other
// application is wired in: a GET /hello responder with 404 for every other
// request, a WebSocket echo, and an SSE stream that sends one record, plus
// a Lifespan handler that seeds scope.state. It exists so the
// binary is runnable end to end, the way spec.md §8's literal scenarios
// describe, and is not meant to be a template for real applications.
package demoapp

import (
	"context"
	"fmt"

	"github.com/pagi-run/pagi/internal/channel"
	"github.com/pagi-run/pagi/internal/scope"
)

// Handle implements worker.Handler: it dispatches on sc.Type to one of the
// three per-protocol app loops below.
func Handle(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error {
	switch sc.Type {
	case scope.TypeHTTP:
		return handleHTTP(ctx, sc, recv, send)
	case scope.TypeWebSocket:
		return handleWebSocket(ctx, recv, send)
	case scope.TypeSSE:
		return handleSSE(ctx, send)
	default:
		return fmt.Errorf("demoapp: unhandled scope type %q", sc.Type)
	}
}

// handleHTTP answers spec.md §8 scenario 1 literally for GET /hello, and a
// generic 404 for anything else.
func handleHTTP(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error {
	req, err := recv.Receive(ctx)
	if err != nil {
		return fmt.Errorf("demoapp: receive http.request: %w", err)
	}
	if req.Type != scope.EventHTTPRequest {
		return fmt.Errorf("demoapp: expected http.request, got %q", req.Type)
	}

	if sc.Path == "/hello" && sc.Method == "GET" {
		body := []byte("hello")
		headers := scope.Headers{}
		headers.Add("content-type", "text/plain")
		headers.Add("content-length", fmt.Sprintf("%d", len(body)))
		if err := send.Send(ctx, scope.Event{Type: scope.EventHTTPResponseStart, Status: 200, Headers: headers}); err != nil {
			return err
		}
		return send.Send(ctx, scope.Event{Type: scope.EventHTTPResponseBody, Body: body, MoreBody: false})
	}

	if db, ok := sc.State["startup_message"]; ok {
		body := []byte(fmt.Sprintf("not found (startup_message=%v)", db))
		headers := scope.Headers{}
		headers.Add("content-type", "text/plain")
		headers.Add("content-length", fmt.Sprintf("%d", len(body)))
		if err := send.Send(ctx, scope.Event{Type: scope.EventHTTPResponseStart, Status: 404, Headers: headers}); err != nil {
			return err
		}
		return send.Send(ctx, scope.Event{Type: scope.EventHTTPResponseBody, Body: body, MoreBody: false})
	}

	headers := scope.Headers{}
	headers.Add("content-length", "0")
	if err := send.Send(ctx, scope.Event{Type: scope.EventHTTPResponseStart, Status: 404, Headers: headers}); err != nil {
		return err
	}
	return send.Send(ctx, scope.Event{Type: scope.EventHTTPResponseBody, Body: nil, MoreBody: false})
}

// handleWebSocket answers spec.md §8 scenario 4: accept, then echo every
// text message back verbatim until disconnect.
func handleWebSocket(ctx context.Context, recv channel.ReceiveHandle, send channel.SendHandle) error {
	connectEvt, err := recv.Receive(ctx)
	if err != nil {
		return fmt.Errorf("demoapp: receive websocket.connect: %w", err)
	}
	if connectEvt.Type != scope.EventWebSocketConnect {
		return fmt.Errorf("demoapp: expected websocket.connect, got %q", connectEvt.Type)
	}
	if err := send.Send(ctx, scope.Event{Type: scope.EventWebSocketAccept}); err != nil {
		return err
	}

	for {
		evt, err := recv.Receive(ctx)
		if err != nil {
			return fmt.Errorf("demoapp: receive websocket event: %w", err)
		}
		switch evt.Type {
		case scope.EventWebSocketReceive:
			if err := send.Send(ctx, scope.Event{Type: scope.EventWebSocketSend, Text: evt.Text, IsText: evt.IsText, Body: evt.Body}); err != nil {
				return err
			}
		case scope.EventWebSocketDisconnect:
			return nil
		}
	}
}

// handleSSE answers spec.md §8 scenario 5: a 200 SSE response with one
// "x" data record. Keepalive ticks are the state machine's own
// responsibility (internal/sseproto), not the application's.
func handleSSE(ctx context.Context, send channel.SendHandle) error {
	headers := scope.Headers{}
	if err := send.Send(ctx, scope.Event{Type: scope.EventSSEAccept, Status: 200, Headers: headers}); err != nil {
		return err
	}
	return send.Send(ctx, scope.Event{Type: scope.EventSSESend, Body: []byte("x")})
}

// Lifespan answers spec.md §8 scenario 6: on startup, seed
// state["startup_message"] and report success; on shutdown, report
// success immediately.
func Lifespan(ctx context.Context, recv channel.ReceiveHandle, send channel.SendHandle) error {
	for {
		evt, err := recv.Receive(ctx)
		if err != nil {
			return fmt.Errorf("demoapp: receive lifespan event: %w", err)
		}
		switch evt.Type {
		case scope.EventLifespanStartup:
			if err := send.Send(ctx, scope.Event{Type: scope.EventLifespanStartupComplete, Message: "ok"}); err != nil {
				return err
			}
		case scope.EventLifespanShutdown:
			return send.Send(ctx, scope.Event{Type: scope.EventLifespanShutdownComplete})
		}
	}
}
