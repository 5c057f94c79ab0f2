// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wsproto implements the WebSocket state machine (RFC 6455):
// handshake validation, the application's accept/reject decision point,
// and frame-level read/write once accepted. Framing, masking and
// ping/pong/close-code handling are delegated to gorilla/websocket via its
// public NewConn constructor, which wraps an already-obtained net.Conn
// instead of performing its own HTTP upgrade — the Connection FSM has
// already parsed the handshake request itself and must let the
// application decide accept/reject before any 101 response is written,
// which gorilla's Upgrader (designed around net/http) does not support.
package wsproto

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/pagi-run/pagi/internal/scope"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrNotUpgrade is returned by ValidateHandshake when the request does not
// carry the headers RFC 6455 §4.2.1 requires for an upgrade.
var ErrNotUpgrade = errors.New("wsproto: not a websocket upgrade request")

// Handshake carries the parsed, validated fields of a WebSocket upgrade
// request needed to complete or reject it.
type Handshake struct {
	AcceptKey    string
	SubProtocols []string
}

// ValidateHandshake checks an HTTP request Scope for the headers RFC 6455
// requires (Upgrade: websocket, Connection: Upgrade, Sec-WebSocket-Key,
// Sec-WebSocket-Version: 13) and computes the accept key. It does not
// write anything; the caller emits a websocket.connect Event to the
// application and waits for websocket.accept or websocket.close before any
// bytes go on the wire, per spec.md §4.5.
func ValidateHandshake(sc scope.Scope) (Handshake, error) {
	upgrade, _ := sc.Headers.Get("Upgrade")
	if !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		return Handshake{}, ErrNotUpgrade
	}
	conn, _ := sc.Headers.Get("Connection")
	if !headerTokenContains(conn, "upgrade") {
		return Handshake{}, ErrNotUpgrade
	}
	version, _ := sc.Headers.Get("Sec-WebSocket-Version")
	if strings.TrimSpace(version) != "13" {
		return Handshake{}, errors.New("wsproto: unsupported Sec-WebSocket-Version")
	}
	key, ok := sc.Headers.Get("Sec-WebSocket-Key")
	if !ok || strings.TrimSpace(key) == "" {
		return Handshake{}, errors.New("wsproto: missing Sec-WebSocket-Key")
	}

	var subs []string
	if raw, ok := sc.Headers.Get("Sec-WebSocket-Protocol"); ok {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				subs = append(subs, p)
			}
		}
	}

	return Handshake{
		AcceptKey:    computeAcceptKey(key),
		SubProtocols: subs,
	}, nil
}

func computeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(strings.TrimSpace(key)))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func headerTokenContains(header, token string) bool {
	for _, t := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(t), token) {
			return true
		}
	}
	return false
}
