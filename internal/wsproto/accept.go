// SPDX-License-Identifier: AGPL-3.0-or-later

package wsproto

import (
	"bufio"
	"fmt"

	"github.com/pagi-run/pagi/internal/scope"
)

// WriteAccept serializes the 101 Switching Protocols response. extra is
// written verbatim after the mandatory upgrade headers, letting the
// application add headers (e.g. Set-Cookie) via its websocket.accept
// Event the way spec.md §6.1 allows for http.response.start.
func WriteAccept(bw *bufio.Writer, acceptKey string, subProtocol string, extra scope.Headers) error {
	if _, err := bw.WriteString("HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	if _, err := bw.WriteString("Upgrade: websocket\r\n"); err != nil {
		return err
	}
	if _, err := bw.WriteString("Connection: Upgrade\r\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "Sec-WebSocket-Accept: %s\r\n", acceptKey); err != nil {
		return err
	}
	if subProtocol != "" {
		if _, err := fmt.Fprintf(bw, "Sec-WebSocket-Protocol: %s\r\n", subProtocol); err != nil {
			return err
		}
	}
	for _, h := range extra {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteReject serializes a plain HTTP error response for a websocket.close
// Event sent in reply to websocket.connect before the handshake completes.
func WriteReject(bw *bufio.Writer, status int, reason string) error {
	body := []byte(reason)
	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", status, statusText(status)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "Content-Length: %d\r\n", len(body)); err != nil {
		return err
	}
	if _, err := bw.WriteString("Connection: close\r\n\r\n"); err != nil {
		return err
	}
	if _, err := bw.Write(body); err != nil {
		return err
	}
	return bw.Flush()
}

func statusText(code int) string {
	switch code {
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 426:
		return "Upgrade Required"
	default:
		return "Unknown"
	}
}
