// SPDX-License-Identifier: AGPL-3.0-or-later

package channel

import (
	"context"

	"github.com/pagi-run/pagi/internal/scope"
)

// SendFunc is the Connection FSM's own send operation: validate and write
// one Event to the wire, applying the owning protocol state machine's
// rules (response exclusivity, frame ordering, SSE record atomicity).
// ReceiveHandle/SendHandle hold a SendFunc/ReceiveQueue by reference rather
// than closing over the FSM's private fields directly, so the handle
// itself owns no mutable state and can be copied freely — spec.md §9's
// "non-owning handle" re-architecture note.
type SendFunc func(ctx context.Context, e scope.Event) error

// ReceiveHandle is the only way application code observes a Connection's
// incoming Events. It does not own the ReceiveQueue; it only holds a
// reference, so closing the queue (done by the FSM, not the application)
// does not require the application to cooperate.
type ReceiveHandle struct {
	q *ReceiveQueue
}

// NewReceiveHandle wraps q for application-facing use.
func NewReceiveHandle(q *ReceiveQueue) ReceiveHandle {
	return ReceiveHandle{q: q}
}

// Receive blocks for the next Event. Per spec.md §3.2.5 an application must
// never call Receive concurrently from more than one goroutine for the
// same handle; doing so is a programmer error this type does not detect,
// matching spec.md §9's preference for documented invariants over runtime
// policing where the cost of checking exceeds the value.
func (h ReceiveHandle) Receive(ctx context.Context) (scope.Event, error) {
	return h.q.Pop(ctx)
}

// SendHandle is the only way application code emits outgoing Events. It
// wraps the FSM's SendFunc rather than the FSM itself.
type SendHandle struct {
	send SendFunc
}

// NewSendHandle wraps fn for application-facing use.
func NewSendHandle(fn SendFunc) SendHandle {
	return SendHandle{send: fn}
}

// Send writes one Event via the underlying protocol state machine. The
// returned error is non-nil only for genuinely exceptional failures
// (connection gone, context cancelled); protocol-level rule violations
// (e.g. a second http.response.start) are reported as errors too, since by
// the time Send is called the application has committed to the action —
// there is no Result-style return for a call the application cannot retry
// mid-flight.
func (h SendHandle) Send(ctx context.Context, e scope.Event) error {
	return h.send(ctx, e)
}
