// SPDX-License-Identifier: AGPL-3.0-or-later

package scope

// Type identifies the kind of connection a Scope describes.
type Type string

const (
	// TypeHTTP covers plain request/response and chunked-body HTTP/1.1
	// exchanges.
	TypeHTTP Type = "http"
	// TypeWebSocket covers an upgraded, full-duplex connection.
	TypeWebSocket Type = "websocket"
	// TypeSSE covers a server-sent-events stream. Whether SSE is modeled
	// as a distinct Scope type or as an HTTP scope routed on
	// Accept: text/event-stream is spec.md §9 Open Question #1; this
	// implementation takes SSE as a distinct Scope type (see DESIGN.md).
	TypeSSE Type = "sse"
	// TypeLifespan covers the single process-lifetime startup/shutdown
	// dialogue between a Worker and the application.
	TypeLifespan Type = "lifespan"
)

// Scope is the immutable, read-only description of one connection or the
// process lifespan, handed to an application handler at the start of an
// exchange. Per spec.md §3.2.1 (Scope immutability) no field may be mutated
// after creation; callers that need a derived view (e.g. a response scope)
// must build a new value rather than writing into this one. Scope is a
// plain struct, not an interface, since its fields are data, not behavior —
// the tagged-Event surface is where capability variation belongs.
type Scope struct {
	Type Type

	// HTTP and WebSocket fields. Zero-valued for TypeLifespan.
	Method      string
	Path        string
	RawQuery    string
	HTTPVersion string
	Scheme      string
	ClientAddr  string
	ServerAddr  string
	Headers     Headers

	// ConnID is the random UUID assigned to the underlying Connection
	// (spec.md §3.1 Connection).
	ConnID string

	// WorkerPID is the OS process ID of the Worker handling this Scope,
	// included so application logs can be correlated back to a single
	// isolated OS process per spec.md §3.2.7.
	WorkerPID int

	// State is the read-only snapshot of the Lifespan-managed shared
	// State map (spec.md §3.8), visible to every Scope of every type so
	// request handlers can read values the application stored during
	// its startup phase.
	State map[string]any
}

// Clone returns a value copy of the Scope with its own Headers slice and
// State map, so a holder can be handed a Scope without being able to
// observe or cause mutation of the core's own copy.
func (s Scope) Clone() Scope {
	out := s
	out.Headers = s.Headers.Clone()
	if s.State != nil {
		st := make(map[string]any, len(s.State))
		for k, v := range s.State {
			st[k] = v
		}
		out.State = st
	}
	return out
}
