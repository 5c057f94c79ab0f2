// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lifespan implements the Lifespan Coordinator: the once-per-Worker
// startup/shutdown dialogue between the transport core and the application,
// and the shared State map that dialogue populates for every later Scope.
package lifespan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagi-run/pagi/internal/channel"
	"github.com/pagi-run/pagi/internal/logging"
	"github.com/pagi-run/pagi/internal/scope"
)

// Handler is the application's lifespan entry point. The Coordinator calls
// it once per phase, each time with a fresh receive/send pair: Startup's
// call receives only lifespan.startup and must reply with exactly one of
// lifespan.startup.complete or lifespan.startup.failed; Shutdown's call
// receives only lifespan.shutdown and must reply with exactly one of
// lifespan.shutdown.complete or lifespan.shutdown.failed. The context of
// each call is cancelled when that phase returns, so a single call never
// sees both events.
type Handler func(ctx context.Context, recv channel.ReceiveHandle, send channel.SendHandle) error

// Config bounds the Coordinator's two timeouts (spec.md §5).
type Config struct {
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Coordinator runs the Lifespan scope once per Worker process: a single
// startup dialogue before the Listener begins accepting connections, and a
// single shutdown dialogue after it stops. It also owns the shared State
// map spec.md §3.8 says every later Scope observes read-only.
type Coordinator struct {
	cfg     Config
	handler Handler

	mu    sync.RWMutex
	state map[string]any
}

// New constructs a Coordinator. handler may be nil, in which case Startup
// and Shutdown both succeed immediately with an empty State map — the
// degenerate case of an application that does not implement a lifespan
// protocol at all.
func New(cfg Config, handler Handler) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		handler: handler,
		state:   make(map[string]any),
	}
}

// State returns a read-only snapshot of the shared State map, safe to
// attach to a Scope of any type.
func (c *Coordinator) State() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.state))
	for k, v := range c.state {
		out[k] = v
	}
	return out
}

func (c *Coordinator) setState(k string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[k] = v
}

// Startup runs the lifespan.startup dialogue, blocking until the
// application replies or StartupTimeout elapses. A timeout or a
// lifespan.startup.failed reply are both reported as errors: per spec.md
// §4.7, a Worker whose startup fails must not begin accepting connections.
func (c *Coordinator) Startup(ctx context.Context) error {
	if c.handler == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StartupTimeout)
	defer cancel()

	q := channel.NewReceiveQueue(1)
	result := make(chan error, 1)

	send := channel.NewSendHandle(func(_ context.Context, e scope.Event) error {
		switch e.Type {
		case scope.EventLifespanStartupComplete:
			for k, v := range stateFromEvent(e) {
				c.setState(k, v)
			}
			result <- nil
		case scope.EventLifespanStartupFailed:
			result <- fmt.Errorf("lifespan: startup failed: %s", e.Message)
		default:
			return fmt.Errorf("lifespan: unexpected event %q during startup", e.Type)
		}
		return nil
	})

	if err := q.Push(ctx, scope.Event{Type: scope.EventLifespanStartup}); err != nil {
		return fmt.Errorf("lifespan: queue startup event: %w", err)
	}

	appErrCh := make(chan error, 1)
	go func() {
		appErrCh <- c.handler(ctx, channel.NewReceiveHandle(q), send)
	}()

	select {
	case err := <-result:
		return err
	case err := <-appErrCh:
		if err != nil {
			return fmt.Errorf("lifespan: startup handler returned: %w", err)
		}
		return fmt.Errorf("lifespan: startup handler returned without a reply")
	case <-ctx.Done():
		logging.Warn().Msg("lifespan startup timed out")
		return fmt.Errorf("lifespan: startup timed out after %s", c.cfg.StartupTimeout)
	}
}

// Shutdown runs the lifespan.shutdown dialogue, blocking until the
// application replies or ShutdownTimeout elapses. Unlike Startup, a failed
// or timed-out Shutdown is logged but does not change process exit
// behavior — the Worker is already on its way out.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if c.handler == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
	defer cancel()

	q := channel.NewReceiveQueue(1)
	result := make(chan error, 1)

	send := channel.NewSendHandle(func(_ context.Context, e scope.Event) error {
		switch e.Type {
		case scope.EventLifespanShutdownComplete:
			result <- nil
		case scope.EventLifespanShutdownFailed:
			result <- fmt.Errorf("lifespan: shutdown failed: %s", e.Message)
		default:
			return fmt.Errorf("lifespan: unexpected event %q during shutdown", e.Type)
		}
		return nil
	})

	if err := q.Push(ctx, scope.Event{Type: scope.EventLifespanShutdown}); err != nil {
		return fmt.Errorf("lifespan: queue shutdown event: %w", err)
	}

	appErrCh := make(chan error, 1)
	go func() {
		appErrCh <- c.handler(ctx, channel.NewReceiveHandle(q), send)
	}()

	select {
	case err := <-result:
		return err
	case err := <-appErrCh:
		if err != nil {
			return fmt.Errorf("lifespan: shutdown handler returned: %w", err)
		}
		return fmt.Errorf("lifespan: shutdown handler returned without a reply")
	case <-ctx.Done():
		logging.Warn().Msg("lifespan shutdown timed out")
		return fmt.Errorf("lifespan: shutdown timed out after %s", c.cfg.ShutdownTimeout)
	}
}

// stateFromEvent turns a lifespan.startup.complete Event into State-table
// updates: a non-empty Message is stored, unparsed, under the single key
// "startup_message". No other State keys can be set through the lifespan
// dialogue.
func stateFromEvent(e scope.Event) map[string]any {
	if e.Message == "" {
		return nil
	}
	return map[string]any{"startup_message": e.Message}
}
