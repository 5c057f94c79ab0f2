// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides centralized zerolog-based structured logging
// for pagi.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for production (machine-parseable)
//   - Console output format for development (human-readable)
//   - Global logger configuration from internal/config's LoggingConfig
//   - Connection/Worker-scoped loggers (see Entry in scoped.go)
//   - A request-scoped Ctx helper for the admin HTTP surface, picking up
//     the correlation/request IDs internal/middleware.RequestID attaches
//     to a request's context
//   - An slog.Handler adapter (slog_adapter.go) so suture v4's event log
//     writes through the same zerolog sink
//
// # Quick Start
//
//	import "github.com/pagi-run/pagi/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Caller: false,
//	})
//
//	logging.Info().Str("worker", "w1").Msg("worker started")
//	logging.Error().Err(err).Msg("accept failed")
//
//	logging.WithConn(connID).Info().Msg("connection accepted")
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
package logging
