// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package supervisor is cmd/pagi's parent-process role: bind the listen
socket, fork Workers, and react to signals for the life of the process.

	PAGI_WORKER unset  -> this process is the Supervisor: bind, fork, supervise.
	PAGI_WORKER=1      -> this process is a Worker: reconstruct the listener
	                      from fd 3 (PAGI_LISTENER_FD) and run internal/worker.

# Signals

	SIGTERM / SIGINT  stop every Worker gracefully, then exit.
	SIGHUP            roll every Worker one at a time (spawn-then-stop).
	SIGTTIN           add one Worker.
	SIGTTOU           remove one Worker.
*/
package supervisor
