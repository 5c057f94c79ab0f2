// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package worker is the per-Worker-process composition point: it wires the
Listener+Admission accept loop, the Connection FSM it spawns, and the
admin HTTP surface into one suture v4 supervision tree, and runs the
Lifespan Coordinator's startup/shutdown dialogue around that tree's
lifetime.

# Overview

	Tree ("pagi-worker")
	├── gateway-layer
	│   └── gateway accept-loop service (spawns one Connection per accept)
	└── admin-layer
	    └── admin HTTP service (/admin/healthz, /admin/metrics, /admin/workers)

A failure of the gateway service that suture sees (its Serve returning, or
panicking in its own goroutine) restarts only that layer; the admin
surface keeps serving throughout, which matters because an operator
polling /admin/healthz during a restart needs an honest answer. A panic
inside a Connection goroutine is not recovered by the tree and ends the
Worker process.

# Process vs. goroutine isolation

This tree supervises goroutines within one OS process. It is not what
provides Worker isolation per spec.md §3.2.7 — that is internal/supervisor,
which runs each Worker as a separate OS process. This tree only isolates
failures *within* a single Worker.

# Usage

	tree, err := worker.NewTree(slogger, worker.DefaultTreeConfig())
	tree.AddGatewayService(gatewaySvc)
	tree.AddAdminService(adminSvc)
	err = tree.Serve(ctx) // blocks until ctx is cancelled

# Debugging shutdown

	report, err := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    log.Printf("service did not stop in time: %v", svc)
	}
*/
package worker
