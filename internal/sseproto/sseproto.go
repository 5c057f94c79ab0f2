// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sseproto implements the SSE state machine: text/event-stream
// framing, per-record atomicity, and the accept/send/disconnect event
// loop. No SSE server library in the retrieval pack operates on a raw
// net.Conn outside net/http, so this package is a standard-library
// implementation, justified in DESIGN.md.
package sseproto

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pagi-run/pagi/internal/channel"
	"github.com/pagi-run/pagi/internal/scope"
)

// Limits bounds one SSE stream, sourced from internal/config.
type Limits struct {
	KeepAliveInterval time.Duration
}

// Handler produces Events for one accepted SSE stream. recv only ever
// yields sse.disconnect; SSE is a send-only stream from the application's
// point of view once accepted (spec.md §4.6).
type Handler func(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error

// IsSSERequest reports whether an HTTP request Scope should be routed to
// the SSE state machine rather than handled as a plain HTTP exchange. This
// implementation resolves spec.md §9 Open Question #1 by giving SSE a
// distinct Scope type (scope.TypeSSE) once Accept: text/event-stream is
// present, rather than layering it underneath scope.TypeHTTP; see
// DESIGN.md for the reasoning.
func IsSSERequest(sc scope.Scope) bool {
	accept, ok := sc.Headers.Get("Accept")
	if !ok {
		return false
	}
	for _, v := range strings.Split(accept, ",") {
		if strings.EqualFold(strings.TrimSpace(v), "text/event-stream") {
			return true
		}
	}
	return false
}

// WriteAccept writes the response head committing the connection to an
// SSE stream: status 200, Content-Type: text/event-stream, and no
// Content-Length (the body is unbounded).
func WriteAccept(bw *bufio.Writer, httpVersion string, extra scope.Headers) error {
	if _, err := fmt.Fprintf(bw, "%s 200 OK\r\n", httpVersion); err != nil {
		return err
	}
	if _, err := bw.WriteString("Content-Type: text/event-stream\r\n"); err != nil {
		return err
	}
	if _, err := bw.WriteString("Cache-Control: no-cache\r\n"); err != nil {
		return err
	}
	if _, err := bw.WriteString("Connection: keep-alive\r\n"); err != nil {
		return err
	}
	for _, h := range extra {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteRecord serializes one sse.send Event as a single atomic
// text/event-stream record: spec.md §3.2.6 (SSE record atomicity) requires
// that a reader never observes a partial record, so every field is
// buffered and written in one Write call.
func WriteRecord(bw *bufio.Writer, e scope.Event) error {
	var b strings.Builder
	if e.EventName != "" {
		fmt.Fprintf(&b, "event: %s\n", e.EventName)
	}
	if e.EventID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.EventID)
	}
	if e.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", e.Retry)
	}
	data := e.Body
	if e.IsText {
		data = []byte(e.Text)
	}
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := bw.WriteString(b.String()); err != nil {
		return err
	}
	return bw.Flush()
}

// writeComment writes an SSE comment line, used for keepalive pings that
// must not be mistaken for a data record by the client's EventSource.
func writeComment(bw *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(bw, ": %s\n\n", text); err != nil {
		return err
	}
	return bw.Flush()
}

// RunExchange drives the sse.send event loop for one accepted stream until
// the application returns, the peer disconnects (detected only when a
// write fails, since SSE is unidirectional), or ctx is cancelled.
func RunExchange(ctx context.Context, bw *bufio.Writer, limits Limits, sc scope.Scope, handler Handler) error {
	q := channel.NewReceiveQueue(1)
	defer q.Close()

	sendDone := make(chan struct{})

	send := channel.NewSendHandle(func(_ context.Context, e scope.Event) error {
		switch e.Type {
		case scope.EventSSESend:
			return WriteRecord(bw, e)
		case scope.EventSSEAccept:
			// The response head was already written by WriteAccept before
			// the handler ran, so sse.accept is acknowledged without
			// writing anything; its Status and Headers are not applied.
			return nil
		default:
			return fmt.Errorf("sseproto: unexpected event %q on sse scope", e.Type)
		}
	})

	var ticker *time.Ticker
	tickerCh := make(<-chan time.Time)
	if limits.KeepAliveInterval > 0 {
		ticker = time.NewTicker(limits.KeepAliveInterval)
		defer ticker.Stop()
		tickerCh = ticker.C
	}

	appErrCh := make(chan error, 1)
	go func() {
		appErrCh <- handler(ctx, sc, channel.NewReceiveHandle(q), send)
		close(sendDone)
	}()

	for {
		select {
		case err := <-appErrCh:
			return err
		case <-tickerCh:
			if err := writeComment(bw, "keepalive"); err != nil {
				_ = q.Push(context.Background(), scope.Event{Type: scope.EventSSEDisconnect})
				<-appErrCh
				return err
			}
		case <-ctx.Done():
			_ = q.Push(context.Background(), scope.Event{Type: scope.EventSSEDisconnect})
			<-appErrCh
			return ctx.Err()
		case <-sendDone:
			return nil
		}
	}
}
