// SPDX-License-Identifier: AGPL-3.0-or-later

package wsproto

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pagi-run/pagi/internal/channel"
	"github.com/pagi-run/pagi/internal/logging"
	"github.com/pagi-run/pagi/internal/scope"
)

// Limits bounds one WebSocket connection, sourced from internal/config.
type Limits struct {
	MaxFrameSize    int64
	MaxMessageSize  int64
	MaxReceiveQueue int
	IdleTimeout     time.Duration
}

// Handler processes the full Event stream for one WebSocket connection: it
// first receives websocket.connect and must reply with websocket.accept or
// websocket.close, then — if accepted — continues receiving
// websocket.receive/websocket.disconnect Events and sending
// websocket.send/websocket.close Events for the life of the connection.
// It is invoked exactly once per connection, matching the single
// (scope, receive, send) contract spec.md §2 describes.
type Handler func(ctx context.Context, sc scope.Scope, recv channel.ReceiveHandle, send channel.SendHandle) error

// RunExchange drives one WebSocket connection end to end: the
// accept/reject negotiation (writing the handshake response itself, since
// gorilla's Upgrader cannot defer that decision to application code) and,
// once accepted, the frame read/write loop via gorilla/websocket's public
// NewConn wrapping raw.
func RunExchange(ctx context.Context, raw net.Conn, bw *bufio.Writer, hs Handshake, limits Limits, sc scope.Scope, handler Handler) error {
	q := channel.NewReceiveQueue(limits.MaxReceiveQueue)
	defer q.Close()

	var (
		mu       sync.Mutex
		accepted bool
		wsConn   *websocket.Conn
	)

	send := channel.NewSendHandle(func(_ context.Context, e scope.Event) error {
		mu.Lock()
		already := accepted
		mu.Unlock()

		if !already {
			switch e.Type {
			case scope.EventWebSocketAccept:
				subProto := ""
				if len(hs.SubProtocols) > 0 {
					subProto = hs.SubProtocols[0]
				}
				if err := WriteAccept(bw, hs.AcceptKey, subProto, e.Headers); err != nil {
					return err
				}
				mu.Lock()
				wsConn = websocket.NewConn(raw, true, int(limits.MaxFrameSize), int(limits.MaxFrameSize))
				wsConn.SetReadLimit(limits.MaxMessageSize)
				accepted = true
				mu.Unlock()
				go readLoop(ctx, wsConn, q, limits)
				return nil
			case scope.EventWebSocketClose:
				return WriteReject(bw, 403, e.Reason)
			default:
				return fmt.Errorf("wsproto: unexpected event %q before accept", e.Type)
			}
		}

		switch e.Type {
		case scope.EventWebSocketSend:
			if e.IsText {
				return wsConn.WriteMessage(websocket.TextMessage, []byte(e.Text))
			}
			return wsConn.WriteMessage(websocket.BinaryMessage, e.Body)
		case scope.EventWebSocketClose:
			code := e.Code
			if code == 0 {
				code = websocket.CloseNormalClosure
			}
			_ = wsConn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, e.Reason), time.Now().Add(5*time.Second))
			return raw.Close()
		default:
			return fmt.Errorf("wsproto: unexpected event %q on websocket scope", e.Type)
		}
	})

	if err := q.Push(ctx, scope.Event{Type: scope.EventWebSocketConnect}); err != nil {
		return err
	}

	appErrCh := make(chan error, 1)
	go func() { appErrCh <- handler(ctx, sc, channel.NewReceiveHandle(q), send) }()

	select {
	case err := <-appErrCh:
		mu.Lock()
		wc := wsConn
		mu.Unlock()
		if wc != nil {
			_ = raw.Close()
		}
		return err
	case <-ctx.Done():
		mu.Lock()
		wc := wsConn
		mu.Unlock()
		if wc != nil {
			_ = wc.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		}
		_ = raw.Close()
		<-appErrCh
		return ctx.Err()
	}
}

func readLoop(ctx context.Context, wsConn *websocket.Conn, q *channel.ReceiveQueue, limits Limits) {
	defer func() {
		_ = q.Push(context.Background(), scope.Event{Type: scope.EventWebSocketDisconnect})
	}()
	for {
		if limits.IdleTimeout > 0 {
			_ = wsConn.SetReadDeadline(time.Now().Add(limits.IdleTimeout))
		}
		msgType, data, err := wsConn.ReadMessage()
		if err != nil {
			logging.Debug().Err(err).Msg("websocket read loop ended")
			return
		}
		e := scope.Event{Type: scope.EventWebSocketReceive}
		switch msgType {
		case websocket.TextMessage:
			e.IsText = true
			e.Text = string(data)
		case websocket.BinaryMessage:
			e.Body = data
		default:
			continue
		}
		if err := q.Push(ctx, e); err != nil {
			return
		}
	}
}
