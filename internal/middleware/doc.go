// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package middleware provides the HTTP middleware the admin surface
(internal/admin) wraps its chi router with: request ID tracking,
Prometheus instrumentation, and gzip compression. It is not used by the
gateway's own HTTP/1.1, WebSocket, or SSE state machines, which operate
on raw net.Conn and never see an http.Handler.

The admin router composes these, outermost first:

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Prometheus)
	r.Use(middleware.Compression)

Compression only compresses when the client sends Accept-Encoding: gzip.
RequestID generates (or forwards) an X-Request-ID and threads it into
internal/logging's correlation context. Prometheus records
metrics.AdminRequestDuration by route and status code.
*/
package middleware
