/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"net"
	"strconv"
	"strings"

	"github.com/badu/hookhttp/hdr"
)

// Response is the structured response value a handler returns. Header
// carries everything the handler sets explicitly (Content-Type, ETag,
// Set-Cookie, Location, ...); the writer (§4.E) computes and appends the
// transfer-framing headers (Content-Length/Transfer-Encoding/Connection/
// Accept-Ranges) itself, so handlers never set those directly.
type Response struct {
	Status   int
	Header   []hdr.RawPair
	Producer *ContentProducer

	// Hijack, set only on a Status 101 response, receives the raw
	// connection and its buffered reader/writer once the 101 status line
	// and headers have been written. The core treats the connection as
	// handed off: it neither closes it nor loops for another request;
	// everything from here on belongs to the protocol Hijack switched to.
	Hijack func(net.Conn, *bufio.ReadWriter)
}

// NewUpgradeResponse builds a 101 Switching Protocols response that hands
// the raw connection to fn once the status line and headers are on the
// wire. fn owns nc from that point on, including closing it.
func NewUpgradeResponse(protocol string, fn func(net.Conn, *bufio.ReadWriter)) *Response {
	r := NewResponse(StatusSwitchingProtocols, NewBufferedProducer(nil))
	r.SetHeader(hdr.Connection, "Upgrade")
	r.SetHeader("Upgrade", protocol)
	r.Hijack = fn
	return r
}

// NewResponse builds a Response with status and producer, empty header list.
func NewResponse(status int, producer *ContentProducer) *Response {
	return &Response{Status: status, Producer: producer}
}

// Text is a convenience constructor for a small buffered text/plain body.
func Text(status int, body string) *Response {
	r := NewResponse(status, NewBufferedProducer([]byte(body)))
	r.SetHeader(hdr.ContentType, "text/plain; charset=utf-8")
	return r
}

// HTML is a convenience constructor for a small buffered text/html body.
func HTML(status int, body string) *Response {
	r := NewResponse(status, NewBufferedProducer([]byte(body)))
	r.SetHeader(hdr.ContentType, "text/html; charset=utf-8")
	return r
}

// SetHeader replaces every existing value for name with a single value,
// preserving the position of the first occurrence if one existed.
func (r *Response) SetHeader(name, value string) {
	for i, p := range r.Header {
		if strings.EqualFold(p.Name, name) {
			r.Header[i].Value = value
			r.Header = append(r.Header[:i+1], dropName(r.Header[i+1:], name)...)
			return
		}
	}
	r.Header = append(r.Header, hdr.RawPair{Name: name, Value: value})
}

func dropName(pairs []hdr.RawPair, name string) []hdr.RawPair {
	out := pairs[:0]
	for _, p := range pairs {
		if !strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	return out
}

// AddHeader appends an additional value under name without disturbing any
// existing ones, for multi-value headers like Set-Cookie.
func (r *Response) AddHeader(name, value string) {
	r.Header = append(r.Header, hdr.RawPair{Name: name, Value: value})
}

// GetHeader returns the first value stored under name, or "".
func (r *Response) GetHeader(name string) string {
	for _, p := range r.Header {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}

// HasHeader reports whether any value is stored under name.
func (r *Response) HasHeader(name string) bool {
	for _, p := range r.Header {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// Cookie is the set of attributes that SetCookie renders into a single
// Set-Cookie header value.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int // rendered verbatim as Max-Age, only when HasMaxAge is set
	HasMaxAge bool
	Secure   bool
	HTTPOnly bool
	SameSite string // "Strict", "Lax", "None", or "" to omit
}

// SetCookie appends a Set-Cookie header rendered from c.
func (r *Response) SetCookie(c Cookie) {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.HasMaxAge {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite)
	}
	r.AddHeader(hdr.SetCookie, b.String())
}
