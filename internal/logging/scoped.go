// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import "github.com/rs/zerolog"

// Entry is a logger pre-bound to one scoped identifier (a connection,
// worker or request), so every log line for that scope carries its
// correlation field without repeating it at each call site.
type Entry struct {
	logger zerolog.Logger
}

// WithConn returns an Entry with conn_id attached to every event, for log
// lines emitted while serving one Connection.
func WithConn(connID string) Entry {
	return Entry{logger: Logger().With().Str("conn_id", connID).Logger()}
}

// WithWorker returns an Entry with worker_pid attached to every event.
func WithWorker(pid int) Entry {
	return Entry{logger: Logger().With().Int("worker_pid", pid).Logger()}
}

func (e Entry) Debug() *zerolog.Event { return e.logger.Debug() }
func (e Entry) Info() *zerolog.Event  { return e.logger.Info() }
func (e Entry) Warn() *zerolog.Event  { return e.logger.Warn() }
func (e Entry) Error() *zerolog.Event { return e.logger.Error() }
