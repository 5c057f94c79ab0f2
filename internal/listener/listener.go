// SPDX-License-Identifier: AGPL-3.0-or-later

// Package listener implements the Listener + Admission component: accept
// loop, connection-cap enforcement, and EMFILE backoff paced with
// golang.org/x/time/rate at the accept-loop level rather than per request.
package listener

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/pagi-run/pagi/internal/logging"
)

// Config bounds admission, sourced from internal/config.
type Config struct {
	// MaxConnections is the effective_max_connections cap spec.md §3.2
	// calls "admission inequality": active_connections must never
	// exceed it.
	MaxConnections int64
	// AcceptBackoffMin/Max bound the EMFILE retry-backoff pacer.
	AcceptBackoffMin time.Duration
	AcceptBackoffMax time.Duration
}

// Listener wraps a net.Listener with admission accounting.
type Listener struct {
	ln     net.Listener
	cfg    Config
	active atomic.Int64
}

// New wraps ln for admission-controlled accept.
func New(ln net.Listener, cfg Config) *Listener {
	if cfg.AcceptBackoffMin <= 0 {
		cfg.AcceptBackoffMin = 5 * time.Millisecond
	}
	if cfg.AcceptBackoffMax <= 0 {
		cfg.AcceptBackoffMax = time.Second
	}
	return &Listener{ln: ln, cfg: cfg}
}

// ActiveConnections returns the current count of admitted, not-yet-closed
// connections.
func (l *Listener) ActiveConnections() int64 { return l.active.Load() }

// Accept blocks for the next connection the Listener is willing to admit.
// If MaxConnections is already reached, the connection is accepted off the
// OS backlog (so the backlog itself does not grow unbounded) and
// immediately closed after a 503 Service Unavailable response, per
// spec.md §4.2; Accept then loops to the next candidate rather than
// returning an over-admission error to the caller.
//
// On EMFILE/ENFILE from the OS, Accept backs off using an exponential
// pacer bounded by AcceptBackoffMin/Max before retrying, rather than
// busy-looping the accept call (spec.md §7.2, resource-exhaustion
// category).
func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	backoff := l.cfg.AcceptBackoffMin
	limiter := rate.NewLimiter(rate.Every(l.cfg.AcceptBackoffMin), 1)

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c, err := l.ln.Accept()
		if err != nil {
			if isResourceExhausted(err) {
				logging.Warn().Err(err).Dur("backoff", backoff).Msg("listener: resource exhaustion, backing off accept")
				if werr := limiter.Wait(ctx); werr != nil {
					return nil, werr
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				if backoff > l.cfg.AcceptBackoffMax {
					backoff = l.cfg.AcceptBackoffMax
				}
				continue
			}
			return nil, err
		}
		backoff = l.cfg.AcceptBackoffMin

		if l.cfg.MaxConnections > 0 && l.active.Load() >= l.cfg.MaxConnections {
			rejectOverAdmission(c)
			continue
		}

		l.active.Add(1)
		return &trackedConn{Conn: c, onClose: func() { l.active.Add(-1) }}, nil
	}
}

// Close closes the underlying net.Listener.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the underlying net.Listener's address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func rejectOverAdmission(c net.Conn) {
	defer c.Close()
	body := []byte("connection limit reached")
	_, _ = c.Write([]byte("HTTP/1.1 503 Service Unavailable\r\n" +
		"Retry-After: 5\r\n" +
		"Content-Length: " + itoa(len(body)) + "\r\n" +
		"Connection: close\r\n\r\n"))
	_, _ = c.Write(body)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func isResourceExhausted(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, syscall.EMFILE) || errors.Is(opErr.Err, syscall.ENFILE)
	}
	return false
}

// trackedConn decrements the Listener's active count exactly once on
// Close, however the Connection FSM reaches the end of its lifetime.
type trackedConn struct {
	net.Conn
	onClose func()
	closed  atomic.Bool
}

func (t *trackedConn) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.onClose()
	}
	return t.Conn.Close()
}
