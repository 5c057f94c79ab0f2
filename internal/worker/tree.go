// SPDX-License-Identifier: AGPL-3.0-or-later

package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds per-Worker supervision tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the per-Worker-process suture supervision tree: one root
// supervisor with a gateway-layer child (the admission-controlled accept
// loop and every Connection it spawns) and an admin-layer child (the
// operator-facing status/metrics HTTP service). Isolating them means a
// service failure that suture sees (Serve returning, or panicking in its
// own goroutine) restarts only that layer rather than taking the whole
// Worker process down — the goroutine-level analogue of the process-level
// isolation the Supervisor provides between Workers. Goroutines a service
// starts itself, such as GatewayService's accept loop and its Connection
// goroutines, are outside that recovery: a panic in one ends the process.
type Tree struct {
	root    *suture.Supervisor
	gateway *suture.Supervisor
	admin   *suture.Supervisor
	logger  *slog.Logger
	config  TreeConfig
}

// NewTree constructs a Tree. logger backs both suture's structured event
// logging (via sutureslog) and is otherwise unused here; the core's own
// components log through internal/logging directly.
func NewTree(logger *slog.Logger, config TreeConfig) (*Tree, error) {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("pagi-worker", rootSpec)
	gateway := suture.New("gateway-layer", childSpec)
	admin := suture.New("admin-layer", childSpec)

	root.Add(gateway)
	root.Add(admin)

	return &Tree{root: root, gateway: gateway, admin: admin, logger: logger, config: config}, nil
}

// AddGatewayService adds a service to the gateway layer (the Listener
// accept loop).
func (t *Tree) AddGatewayService(svc suture.Service) suture.ServiceToken {
	return t.gateway.Add(svc)
}

// AddAdminService adds a service to the admin layer (the operator HTTP
// surface).
func (t *Tree) AddAdminService(svc suture.Service) suture.ServiceToken {
	return t.admin.Add(svc)
}

// Serve starts the tree and blocks until ctx is cancelled or an
// unrecoverable failure occurs.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree in a background goroutine, returning a
// channel that receives the terminal error (or nil) when it stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport reports services that failed to stop within
// ShutdownTimeout, for diagnosing a Worker that will not drain cleanly.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
