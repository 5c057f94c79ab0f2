// SPDX-License-Identifier: AGPL-3.0-or-later

// Package httpproto implements the HTTP/1.1 wire state machine: request
// line and header parsing, chunked and content-length body framing, and
// response serialization, operating directly on a net.Conn rather than
// through net/http (the Connection FSM owns the raw bytes itself so it can
// offer the same connection to the WebSocket and SSE state machines after
// a successful upgrade or an Accept header negotiation).
//
// No third-party library in the retrieval pack parses server-side HTTP/1.1
// off an arbitrary net.Conn; this package is deliberately built on
// bufio/net/textproto, justified in DESIGN.md as one of the places this
// implementation falls back to the standard library.
package httpproto

import (
	"bufio"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/pagi-run/pagi/internal/scope"
)

// Outcome tags a parse result the way spec.md §9 prescribes for routine
// protocol signaling: Ok carries a value, NeedMore means reading stopped
// before a request line arrived, Err carries a required wire-level action
// rather than an opaque Go error.
type Outcome int

const (
	// OutcomeOk means parsing succeeded and the result is usable.
	OutcomeOk Outcome = iota
	// OutcomeNeedMore means reading the request line failed (end of
	// stream, a read deadline, a closed connection) before a complete
	// line arrived; ReadRequestHead has already read as far as it can, so
	// the caller treats it as the end of the connection.
	OutcomeNeedMore
	// OutcomeErr means the bytes are malformed past the point where more
	// reading could help; RequiredStatus names the response the caller
	// must send before closing the connection.
	OutcomeErr
)

// ParseResult is the Result-style return value of ReadRequestHead.
type ParseResult struct {
	Outcome Outcome

	Scope   scope.Scope
	Chunked bool
	// ContentLength is -1 when neither Content-Length nor
	// Transfer-Encoding: chunked is present, meaning the request has no
	// body.
	ContentLength int64

	// RequiredStatus is set when Outcome == OutcomeErr: the status code
	// the Connection FSM must write before closing, per spec.md §7.1.
	RequiredStatus int
	Err            error
}

const maxRequestLineAndHeaders = 64 * 1024

// ReadRequestHead parses one HTTP/1.1 request line and header block from r.
// It does not read the body; callers use the returned Chunked/ContentLength
// to construct a body reader via NewBodyReader. Per spec.md §3.2.8
// (connection-level linearity), a caller must fully drain one request's
// body before calling ReadRequestHead again on the same r.
func ReadRequestHead(r *bufio.Reader) ParseResult {
	tp := textproto.NewReader(r)

	line, err := tp.ReadLine()
	if err != nil {
		return ParseResult{Outcome: OutcomeNeedMore}
	}
	if len(line) == 0 {
		// RFC 7230 §3.5: a robust server skips a single leading CRLF.
		line, err = tp.ReadLine()
		if err != nil {
			return ParseResult{Outcome: OutcomeNeedMore}
		}
	}

	method, path, version, ok := parseRequestLine(line)
	if !ok {
		return ParseResult{Outcome: OutcomeErr, RequiredStatus: 400, Err: fmt.Errorf("httpproto: malformed request line %q", line)}
	}
	if version != "HTTP/1.1" && version != "HTTP/1.0" {
		return ParseResult{Outcome: OutcomeErr, RequiredStatus: 505, Err: fmt.Errorf("httpproto: unsupported version %q", version)}
	}

	headers, err := readHeaderLines(tp)
	if err != nil {
		return ParseResult{Outcome: OutcomeErr, RequiredStatus: 400, Err: fmt.Errorf("httpproto: malformed headers: %w", err)}
	}

	path, rawQuery := splitQuery(path)

	contentLength := int64(-1)
	chunked := false
	if te, ok := headers.Get("Transfer-Encoding"); ok && strings.EqualFold(strings.TrimSpace(te), "chunked") {
		chunked = true
	} else if cl, ok := headers.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			return ParseResult{Outcome: OutcomeErr, RequiredStatus: 400, Err: fmt.Errorf("httpproto: bad Content-Length %q", cl)}
		}
		contentLength = n
	}

	sc := scope.Scope{
		Type:        scope.TypeHTTP,
		Method:      method,
		Path:        path,
		RawQuery:    rawQuery,
		HTTPVersion: version,
		Headers:     headers,
	}

	return ParseResult{
		Outcome:       OutcomeOk,
		Scope:         sc,
		Chunked:       chunked,
		ContentLength: contentLength,
	}
}

// readHeaderLines reads the header block up to the terminating blank
// line, preserving wire order and lowercasing every header name. It reads
// raw lines directly rather than textproto.Reader.ReadMIMEHeader, which
// folds same-named headers into a map and so randomizes cross-header
// order on every read — spec.md §3.2/§6.1 require the order observed on
// the wire to survive into the delivered Headers list, lowercased.
func readHeaderLines(tp *textproto.Reader) (scope.Headers, error) {
	headers := scope.Headers{}
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			return nil, fmt.Errorf("httpproto: malformed header line %q", line)
		}
		name := strings.ToLower(strings.TrimSpace(line[:i]))
		value := strings.TrimSpace(line[i+1:])
		headers.Add(name, value)
	}
}

func parseRequestLine(line string) (method, target, version string, ok bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func splitQuery(target string) (path, rawQuery string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}
