// SPDX-License-Identifier: AGPL-3.0-or-later

package httpproto

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/pagi-run/pagi/internal/scope"
)

// rfc1123GMT is the HTTP-date format RFC 7231 §7.1.1.2 requires: RFC 1123
// with a literal "GMT" zone rather than Go's "UTC" abbreviation.
const rfc1123GMT = "Mon, 02 Jan 2006 15:04:05 GMT"

// ErrResponseAlreadyStarted is returned when a second http.response.start
// Event is attempted on the same exchange, the wire-level expression of
// spec.md §3.2.2 (response exclusivity).
var ErrResponseAlreadyStarted = errors.New("httpproto: http.response.start already sent")

// ErrResponseNotStarted is returned when an http.response.body Event
// arrives before http.response.start.
var ErrResponseNotStarted = errors.New("httpproto: http.response.body before http.response.start")

// ResponseWriter serializes one HTTP/1.1 response to w, enforcing response
// exclusivity and choosing chunked transfer-encoding when the application
// does not supply Content-Length up front.
type ResponseWriter struct {
	w            *bufio.Writer
	started      bool
	chunked      bool
	closeConn    bool
	done         bool
	suppressBody bool
}

// NewResponseWriter wraps w for one request/response exchange.
func NewResponseWriter(w *bufio.Writer) *ResponseWriter {
	return &ResponseWriter{w: w}
}

// SuppressBody marks this response as HEAD-shaped: Start still writes
// every header exactly as it would for GET, including a Content-Length
// the application supplies, but Body never writes the payload bytes
// themselves, per spec.md §4.4's "HEAD response omits body bytes but
// preserves Content-Length".
func (rw *ResponseWriter) SuppressBody() {
	rw.suppressBody = true
}

// Started reports whether Start has already written a status line, the
// point past which the Connection FSM may no longer substitute an error
// status of its own (response exclusivity, spec.md §3.2.2).
func (rw *ResponseWriter) Started() bool { return rw.started }

// Start writes the status line and headers in response to an
// http.response.start Event. A Connection header is always added:
// keep-alive when keepAlive is true, close otherwise; httpVersion controls
// the status line's protocol token.
func (rw *ResponseWriter) Start(httpVersion string, status int, headers scope.Headers, keepAlive bool) error {
	if rw.started {
		return ErrResponseAlreadyStarted
	}
	rw.started = true

	if _, ok := headers.Get("Content-Length"); !ok {
		if status != 204 && status != 304 {
			rw.chunked = true
		}
	}
	if !keepAlive {
		rw.closeConn = true
	}

	if _, err := fmt.Fprintf(rw.w, "%s %d %s\r\n", httpVersion, status, statusText(status)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(rw.w, "Date: %s\r\n", time.Now().UTC().Format(rfc1123GMT)); err != nil {
		return err
	}
	for _, h := range headers {
		if _, err := fmt.Fprintf(rw.w, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	if rw.chunked {
		if _, err := rw.w.WriteString("Transfer-Encoding: chunked\r\n"); err != nil {
			return err
		}
	}
	if rw.closeConn {
		if _, err := rw.w.WriteString("Connection: close\r\n"); err != nil {
			return err
		}
	} else {
		if _, err := rw.w.WriteString("Connection: keep-alive\r\n"); err != nil {
			return err
		}
	}
	_, err := rw.w.WriteString("\r\n")
	return err
}

// Body writes one http.response.body Event's payload. more=false marks the
// final chunk; for chunked responses this writes the terminating 0-length
// chunk, and for fixed-length responses it simply flushes.
func (rw *ResponseWriter) Body(body []byte, more bool) error {
	if !rw.started {
		return ErrResponseNotStarted
	}
	if rw.done {
		return errors.New("httpproto: body written after response already completed")
	}

	if rw.suppressBody {
		if !more {
			rw.done = true
			return rw.w.Flush()
		}
		return nil
	}

	if rw.chunked {
		if len(body) > 0 {
			if _, err := fmt.Fprintf(rw.w, "%x\r\n", len(body)); err != nil {
				return err
			}
			if _, err := rw.w.Write(body); err != nil {
				return err
			}
			if _, err := rw.w.WriteString("\r\n"); err != nil {
				return err
			}
		}
		if !more {
			if _, err := rw.w.WriteString("0\r\n\r\n"); err != nil {
				return err
			}
			rw.done = true
		}
	} else {
		if len(body) > 0 {
			if _, err := rw.w.Write(body); err != nil {
				return err
			}
		}
		if !more {
			rw.done = true
		}
	}
	if !more {
		return rw.w.Flush()
	}
	return nil
}

// CloseConnection reports whether this exchange ended with Connection:
// close, the signal the Connection FSM uses to decide whether a next
// request may be served on the same socket.
func (rw *ResponseWriter) CloseConnection() bool { return rw.closeConn }

func statusText(code int) string {
	if t, ok := commonStatusText[code]; ok {
		return t
	}
	return "Unknown"
}

var commonStatusText = map[int]string{
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	413: "Payload Too Large",
	426: "Upgrade Required",
	429: "Too Many Requests",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	505: "HTTP Version Not Supported",
}
