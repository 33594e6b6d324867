/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"strconv"
	"strings"

	"github.com/badu/hookhttp/body"
	"github.com/badu/hookhttp/hdr"
	"github.com/badu/hookhttp/urlkit"
)

// Method is one of the recognized HTTP request methods (§1's scope: no
// CONNECT, TRACE or OPTIONS).
type Method string

const (
	MethodGet    Method = "GET"
	MethodHead   Method = "HEAD"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodPatch  Method = "PATCH"
	MethodDelete Method = "DELETE"
)

// Request is the structured request object described by the data model.
// It is constructed by the parser, passed by shared non-owning reference
// to the handler, and torn down (cleanups run) after the response is
// written.
type Request struct {
	ProtoMajor int
	ProtoMinor int
	Method     Method
	URL        *urlkit.URL
	Header     *hdr.Header

	sourceAddr string // always the peer address, host:port

	postParsed bool
	postForm   urlkit.Values
	files      map[string][]*body.FileUpload

	cleanups []func()
}

// ProtoAtLeast reports whether the request's declared version is >= major.minor.
func (r *Request) ProtoAtLeast(major, minor int) bool {
	return r.ProtoMajor > major || (r.ProtoMajor == major && r.ProtoMinor >= minor)
}

// SourceIP is always the TCP peer address, regardless of forwarding headers.
func (r *Request) SourceIP() string {
	return stripPort(r.sourceAddr)
}

// ClientIP is XForwardedFor's leftmost entry when present, else SourceIP.
func (r *Request) ClientIP() string {
	if len(r.Header.XForwardedFor) > 0 {
		return r.Header.XForwardedFor[0]
	}
	return r.SourceIP()
}

func stripPort(hostport string) string {
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		return hostport[:i]
	}
	return hostport
}

// port returns the request's effective port: from the Host header if
// present, else the scheme default (80/443).
func (r *Request) port() int {
	if i := strings.LastIndexByte(r.Header.Host, ':'); i >= 0 {
		if p, err := strconv.Atoi(r.Header.Host[i+1:]); err == nil {
			return p
		}
	}
	if r.URL.HTTPS {
		return 443
	}
	return 80
}

// withHookMatch returns a derived Request sharing everything except URL,
// which is narrowed via urlkit.URL.Sub to drop the hook's matched
// prefix/suffix into the parent overlay (§4.F item 4).
func (r *Request) withHookMatch(pathPrefix, domainSuffix string) *Request {
	derived := *r
	derived.URL = r.URL.Sub(pathPrefix, domainSuffix)
	return &derived
}

// Get returns the URL query values (lazily parsed on first access, per
// the percent-decoding policy).
func (r *Request) Get() urlkit.Values {
	return r.URL.Query()
}

// Post returns the parsed POST/PUT/PATCH body fields. They are filled in
// by the connection worker's readRequestBody, which runs before the
// handler is invoked whenever the request carries a recognized body
// content type.
func (r *Request) Post() urlkit.Values {
	return r.postForm
}

// Files returns the parsed file uploads, keyed by form field name.
func (r *Request) Files() map[string][]*body.FileUpload {
	return r.files
}

// addCleanup registers a deferred action run, in order, after the
// response has been fully written.
func (r *Request) addCleanup(f func()) {
	r.cleanups = append(r.cleanups, f)
}

// runCleanups executes every registered cleanup, discarding individual
// panics/errors so one failing cleanup never blocks the rest.
func (r *Request) runCleanups() {
	for _, f := range r.cleanups {
		func() {
			defer func() { recover() }()
			f()
		}()
	}
}
