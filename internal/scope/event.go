// SPDX-License-Identifier: AGPL-3.0-or-later

package scope

// EventType tags the variant carried by an Event. spec.md §9 calls for
// tagged variants and capability sets in place of dynamic dispatch: rather
// than a family of interfaces with type assertions scattered across the
// core, every message that crosses the (scope, receive, send) boundary is
// one Event value with a Type discriminant and only the fields its Type
// defines populated.
type EventType string

const (
	// HTTP request/response events.
	EventHTTPRequest       EventType = "http.request"
	EventHTTPResponseStart EventType = "http.response.start"
	EventHTTPResponseBody  EventType = "http.response.body"
	EventHTTPDisconnect    EventType = "http.disconnect"

	// WebSocket events.
	EventWebSocketConnect    EventType = "websocket.connect"
	EventWebSocketAccept     EventType = "websocket.accept"
	EventWebSocketReceive    EventType = "websocket.receive"
	EventWebSocketSend       EventType = "websocket.send"
	EventWebSocketClose      EventType = "websocket.close"
	EventWebSocketDisconnect EventType = "websocket.disconnect"

	// SSE events.
	EventSSEConnect      EventType = "sse.connect"
	EventSSEAccept       EventType = "sse.accept"
	EventSSESend         EventType = "sse.send"
	EventSSEDisconnect   EventType = "sse.disconnect"

	// Lifespan events.
	EventLifespanStartup         EventType = "lifespan.startup"
	EventLifespanStartupComplete EventType = "lifespan.startup.complete"
	EventLifespanStartupFailed   EventType = "lifespan.startup.failed"
	EventLifespanShutdown        EventType = "lifespan.shutdown"
	EventLifespanShutdownComplete EventType = "lifespan.shutdown.complete"
	EventLifespanShutdownFailed  EventType = "lifespan.shutdown.failed"
)

// Event is the single message envelope exchanged via ReceiveQueue/Send.
// Only the fields relevant to Type are meaningful; this mirrors the wire
// contract table in spec.md §6.1, where each row names exactly the keys an
// event of that type carries.
type Event struct {
	Type EventType

	// http.request / http.response.body / websocket.send / websocket.receive
	Body     []byte
	MoreBody bool // true: more body chunks/frames follow

	// http.response.start
	Status  int
	Headers Headers

	// websocket.send / websocket.receive
	Text     string
	IsText   bool // true: Text is populated; false: Body is populated
	SubProtocol string

	// websocket.close / websocket.disconnect / sse.disconnect
	Code   int
	Reason string

	// sse.send
	EventName string
	EventID   string
	Retry     int // milliseconds; 0 means "not set"

	// lifespan.startup.complete / lifespan.startup.failed /
	// lifespan.shutdown.failed
	Message string
}

// IsDisconnect reports whether this Event signals the peer or transport
// has gone away, the point past which further Send calls on the same
// Connection are errors (spec.md §7.3).
func (e Event) IsDisconnect() bool {
	switch e.Type {
	case EventHTTPDisconnect, EventWebSocketDisconnect, EventSSEDisconnect:
		return true
	default:
		return false
	}
}
