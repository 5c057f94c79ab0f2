// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scope implements the PAGI Scope, Event and header-list types: the
// immutable per-request/connection metadata and the tagged messages
// exchanged between the transport core and an application handler.
package scope

import "strings"

// Header is a single ordered, case-preserving HTTP header field.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered, duplicate-preserving list of header fields with
// case-insensitive lookup. Neither a map[string]string (loses duplicates
// and order) nor an ordered map (awkward append-many-read-by-name access
// pattern) fits the wire contract: HTTP allows repeated fields
// (Set-Cookie, Cache-Control) and their relative order is observable.
type Headers []Header

// Add appends a header, preserving any existing entries with the same name.
func (h *Headers) Add(name, value string) {
	*h = append(*h, Header{Name: name, Value: value})
}

// Get returns the value of the first header matching name, case-insensitively.
// Returns "" and false if no such header is present.
func (h Headers) Get(name string) (string, bool) {
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) {
			return hd.Value, true
		}
	}
	return "", false
}

// Values returns every value for headers matching name, case-insensitively,
// in wire order.
func (h Headers) Values(name string) []string {
	var out []string
	for _, hd := range h {
		if strings.EqualFold(hd.Name, name) {
			out = append(out, hd.Value)
		}
	}
	return out
}

// Has reports whether any header matches name, case-insensitively.
func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Clone returns an independent copy, preserving Scope immutability when a
// caller needs to derive a new Headers value (e.g. adding a response header)
// without mutating the one already handed to an application.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Raw returns the headers as [][2]string pairs in wire order, the shape an
// application handler receives them in over the (scope, receive, send)
// contract.
func (h Headers) Raw() [][2]string {
	out := make([][2]string, len(h))
	for i, hd := range h {
		out[i] = [2]string{hd.Name, hd.Value}
	}
	return out
}

// HeadersFromRaw builds a Headers value from [][2]string pairs, the inverse
// of Raw.
func HeadersFromRaw(pairs [][2]string) Headers {
	out := make(Headers, len(pairs))
	for i, p := range pairs {
		out[i] = Header{Name: p[0], Value: p[1]}
	}
	return out
}
