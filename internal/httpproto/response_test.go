// SPDX-License-Identifier: AGPL-3.0-or-later

package httpproto

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pagi-run/pagi/internal/scope"
)

func TestResponseWriterChunked(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	rw := NewResponseWriter(bw)

	h := scope.Headers{}
	h.Add("Content-Type", "text/plain")
	if err := rw.Start("HTTP/1.1", 200, h, true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rw.Body([]byte("hello "), true); err != nil {
		t.Fatalf("Body: %v", err)
	}
	if err := rw.Body([]byte("world"), false); err != nil {
		t.Fatalf("Body: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("bad status line: %q", out)
	}
	if !strings.Contains(out, "Transfer-Encoding: chunked\r\n") {
		t.Fatalf("missing chunked header: %q", out)
	}
	if !strings.Contains(out, "6\r\nhello \r\n") || !strings.Contains(out, "5\r\nworld\r\n") {
		t.Fatalf("bad chunk framing: %q", out)
	}
	if !strings.HasSuffix(out, "0\r\n\r\n") {
		t.Fatalf("missing terminating chunk: %q", out)
	}
}

func TestResponseWriterDateHeader(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	rw := NewResponseWriter(bw)

	if err := rw.Start("HTTP/1.1", 200, scope.Headers{}, true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rw.Body(nil, false); err != nil {
		t.Fatalf("Body: %v", err)
	}

	out := buf.String()
	i := strings.Index(out, "\r\nDate: ")
	if i < 0 {
		t.Fatalf("missing Date header: %q", out)
	}
	line := out[i+2:]
	line = line[:strings.Index(line, "\r\n")]
	value := strings.TrimPrefix(line, "Date: ")
	if _, err := time.Parse(rfc1123GMT, value); err != nil {
		t.Fatalf("Date value %q not in RFC 1123 GMT form: %v", value, err)
	}
	if !strings.HasSuffix(value, "GMT") {
		t.Fatalf("Date value %q does not end in literal GMT", value)
	}
}

func TestResponseWriterHeadSuppressesBodyButKeepsHeaders(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	rw := NewResponseWriter(bw)
	rw.SuppressBody()

	h := scope.Headers{}
	h.Add("Content-Length", "5")
	if err := rw.Start("HTTP/1.1", 200, h, true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rw.Body([]byte("hello"), false); err != nil {
		t.Fatalf("Body: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Fatalf("missing Content-Length header: %q", out)
	}
	if strings.Contains(out, "hello") {
		t.Fatalf("body bytes were written for a suppressed response: %q", out)
	}
}

func TestResponseWriterDoubleStart(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	rw := NewResponseWriter(bw)
	if err := rw.Start("HTTP/1.1", 200, nil, true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rw.Start("HTTP/1.1", 500, nil, true); err != ErrResponseAlreadyStarted {
		t.Fatalf("expected ErrResponseAlreadyStarted, got %v", err)
	}
}

func TestResponseWriterBodyBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	rw := NewResponseWriter(bw)
	if err := rw.Body([]byte("x"), false); err != ErrResponseNotStarted {
		t.Fatalf("expected ErrResponseNotStarted, got %v", err)
	}
}
