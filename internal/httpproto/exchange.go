// SPDX-License-Identifier: AGPL-3.0-or-later

package httpproto

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pagi-run/pagi/internal/channel"
	"github.com/pagi-run/pagi/internal/scope"
)

// Limits bounds one HTTP exchange, sourced from internal/config.
type Limits struct {
	MaxBodyBytes     int64
	MaxReceiveQueue  int
}

// RunExchange drives exactly one HTTP/1.1 request/response exchange: it
// takes the request head already parsed by the caller, feeds the body (if
// any) into a ReceiveQueue as http.request Events, followed by
// http.disconnect only when reading the body fails, hands the
// application a ReceiveHandle/SendHandle pair, and serializes whatever the
// application sends back. It returns whether the connection may serve
// another request (keep-alive) per spec.md §3.2.8's connection-level
// linearity — no pipelining, one exchange fully completes before the next
// begins.
func RunExchange(ctx context.Context, br *bufio.Reader, bw *bufio.Writer, head ParseResult, limits Limits, handle func(context.Context, scope.Scope, channel.ReceiveHandle, channel.SendHandle) error) (keepAlive bool, err error) {
	body := NewBodyReader(br, head.Chunked, head.ContentLength, limits.MaxBodyBytes)
	rw := NewResponseWriter(bw)
	if head.Scope.Method == "HEAD" {
		rw.SuppressBody()
	}

	q := channel.NewReceiveQueue(limits.MaxReceiveQueue)
	defer q.Close()

	feedErrCh := make(chan error, 1)
	go func() {
		feedErrCh <- feedBody(ctx, q, body)
	}()

	keepAliveWanted := head.Scope.HTTPVersion == "HTTP/1.1"
	if conn, ok := head.Scope.Headers.Get("Connection"); ok && strings.EqualFold(strings.TrimSpace(conn), "close") {
		keepAliveWanted = false
	}
	send := channel.NewSendHandle(func(_ context.Context, e scope.Event) error {
		switch e.Type {
		case scope.EventHTTPResponseStart:
			return rw.Start(head.Scope.HTTPVersion, e.Status, e.Headers, keepAliveWanted)
		case scope.EventHTTPResponseBody:
			return rw.Body(e.Body, e.MoreBody)
		default:
			return fmt.Errorf("httpproto: unexpected event %q on http scope", e.Type)
		}
	})

	appErr := handle(ctx, head.Scope, channel.NewReceiveHandle(q), send)
	feedErr := <-feedErrCh

	// A body that exceeded max_body_size is a wire-level condition the
	// core itself must answer with 413, per spec.md §4.4/§8, regardless
	// of whatever error the application surfaced once its receive queue
	// was closed out from under it.
	if feedErr == ErrBodyTooLarge {
		if !rw.Started() {
			_ = rw.Start(head.Scope.HTTPVersion, 413, scope.Headers{}, false)
			_ = rw.Body(nil, false)
		}
		return false, ErrBodyTooLarge
	}
	if appErr == nil && feedErr != nil && feedErr != io.EOF {
		appErr = feedErr
	}
	if appErr != nil {
		if !rw.Started() {
			_ = rw.Start(head.Scope.HTTPVersion, 500, scope.Headers{}, false)
			_ = rw.Body(nil, false)
		}
		return false, appErr
	}
	return keepAliveWanted && !rw.CloseConnection(), nil
}

// feedBody streams the request body into q as http.request Events, one
// per chunk read, terminated by a final Event with MoreBody=false.
func feedBody(ctx context.Context, q *channel.ReceiveQueue, body *BodyReader) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			more := err == nil
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if perr := q.Push(ctx, scope.Event{Type: scope.EventHTTPRequest, Body: chunk, MoreBody: more}); perr != nil {
				return perr
			}
		}
		if err != nil {
			if err == io.EOF {
				if n == 0 {
					return q.Push(ctx, scope.Event{Type: scope.EventHTTPRequest, Body: nil, MoreBody: false})
				}
				return nil
			}
			// A real read error (e.g. ErrBodyTooLarge) leaves the
			// application's Receive blocked forever unless the queue is
			// closed here rather than waiting for RunExchange's deferred
			// Close, which only runs after handle() has already returned.
			// http.disconnect is queued first (if there is room) so the
			// application sees the failure as an event, not only as a
			// closed queue.
			_ = q.TryPush(scope.Event{Type: scope.EventHTTPDisconnect})
			q.Close()
			return err
		}
	}
}
