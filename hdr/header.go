/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr implements the request/response header model: a raw,
// order-preserving list of (name, value) pairs plus typed views over the
// fields the core actually inspects. Recognized fields are parsed
// best-effort from the raw list; a parse failure leaves the typed field at
// its default and never removes the header from the raw list.
package hdr

import (
	"strconv"
	"strings"
	"time"

	"github.com/badu/hookhttp/hutil"
)

// Well-known header names, canonical case as sent on the wire by this
// module and as matched case-insensitively when reading.
const (
	Accept           = "Accept"
	AcceptCharset    = "Accept-Charset"
	AcceptEncoding   = "Accept-Encoding"
	AcceptLanguage   = "Accept-Language"
	AcceptRanges     = "Accept-Ranges"
	CacheControl     = "Cache-Control"
	Connection       = "Connection"
	ContentEncoding  = "Content-Encoding"
	ContentLength    = "Content-Length"
	ContentRange     = "Content-Range"
	ContentType      = "Content-Type"
	Cookie           = "Cookie"
	SetCookie        = "Set-Cookie"
	Date             = "Date"
	ETag             = "Etag"
	Expect           = "Expect"
	Expires          = "Expires"
	Host             = "Host"
	IfModifiedSince  = "If-Modified-Since"
	IfNoneMatch      = "If-None-Match"
	LastModified     = "Last-Modified"
	Location         = "Location"
	Range            = "Range"
	TransferEncoding = "Transfer-Encoding"
	UserAgent        = "User-Agent"
	XForwardedFor    = "X-Forwarded-For"
)

// RawPair is one (name, value) entry exactly as it appeared on the wire:
// case and order preserved.
type RawPair struct {
	Name  string
	Value string
}

// ConnFlags is the bit-flag set for a parsed Connection header.
type ConnFlags uint8

const (
	ConnClose ConnFlags = 1 << iota
	ConnKeepAlive
	ConnUpgrade
)

// Has reports whether flag is set.
func (f ConnFlags) Has(flag ConnFlags) bool { return f&flag != 0 }

// ContentKind is the recognized Content-Type of a request body.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentURLEncoded
	ContentMultipartFormData
	ContentOther
)

// RangeSpec is one (from?, to?) entry of a parsed Range header. A nil From
// with a non-nil To is a suffix range ("last To bytes"); a non-nil From
// with a nil To means "from From to the end".
type RangeSpec struct {
	From *int64
	To   *int64
}

// Header is the typed view plus the raw record described by the data
// model. Raw always contains every header received, recognized or not;
// the typed fields are a best-effort, lazily-inapplicable overlay.
type Header struct {
	Raw []RawPair

	Accept         []hutil.QValue
	AcceptCharset  []hutil.QValue
	AcceptEncoding []hutil.QValue
	AcceptLanguage []hutil.QValue

	Connection ConnFlags

	ContentLength int64 // -1 when absent/unparsed
	ContentKind   ContentKind
	Boundary      string

	CookieValues map[string]string

	Expect string

	Host string // lowercased, trailing dots trimmed

	IfModifiedSince    time.Time
	IfModifiedSinceSet bool
	IfNoneMatch        string

	RangeSpecs []RangeSpec

	UserAgentValue string

	XForwardedFor []string
}

// Get returns the first raw value stored under name, matched
// case-insensitively, or "" if absent.
func (h *Header) Get(name string) string {
	for _, p := range h.Raw {
		if strings.EqualFold(p.Name, name) {
			return p.Value
		}
	}
	return ""
}

// Values returns every raw value stored under name, in wire order.
func (h *Header) Values(name string) []string {
	var out []string
	for _, p := range h.Raw {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p.Value)
		}
	}
	return out
}

// Add appends a raw (name, value) pair, preserving case and order. It
// does not update any typed field; call Parse after all pairs are added.
func (h *Header) Add(name, value string) {
	h.Raw = append(h.Raw, RawPair{Name: name, Value: value})
}

// New returns a Header with typed defaults (ContentLength unknown).
func New() *Header {
	return &Header{ContentLength: -1}
}

func firstValid[T any](h *Header, name string, parse func(string) (T, bool)) (T, bool) {
	var zero T
	for _, p := range h.Raw {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		if v, ok := parse(p.Value); ok {
			return v, true
		}
	}
	return zero, false
}

// Parse fills in every typed field from Raw, best-effort: a field whose
// value fails to parse is simply left at its default (the zero value, or
// -1 for ContentLength), and the raw pair stays in Raw regardless.
func (h *Header) Parse() {
	h.Accept = hutil.ParseQValues(h.Get(Accept), nil)
	h.AcceptCharset = hutil.ParseQValues(h.Get(AcceptCharset), nil)
	h.AcceptEncoding = hutil.ParseQValues(h.Get(AcceptEncoding), nil)
	h.AcceptLanguage = hutil.ParseQValues(h.Get(AcceptLanguage), nil)

	h.Connection = parseConnection(h.Get(Connection))

	if v, ok := firstValid(h, ContentLength, parseContentLength); ok {
		h.ContentLength = v
	} else {
		h.ContentLength = -1
	}

	h.ContentKind, h.Boundary = parseContentType(h.Get(ContentType))

	h.CookieValues = parseCookies(h.Get(Cookie))

	h.Expect = h.Get(Expect)

	if host, ok := firstValid(h, Host, parseHost); ok {
		h.Host = host
	}

	if t, ok := firstValid(h, IfModifiedSince, parseIMS); ok {
		h.IfModifiedSince = t
		h.IfModifiedSinceSet = true
	}

	h.IfNoneMatch = h.Get(IfNoneMatch)

	h.RangeSpecs = parseRange(h.Get(Range))

	h.UserAgentValue = h.Get(UserAgent)

	h.XForwardedFor = parseXForwardedFor(h.Get(XForwardedFor))
}

func parseConnection(v string) ConnFlags {
	var f ConnFlags
	for _, tok := range strings.Split(v, ",") {
		switch strings.ToLower(strings.TrimSpace(tok)) {
		case "close":
			f |= ConnClose
		case "keep-alive":
			f |= ConnKeepAlive
		case "upgrade":
			f |= ConnUpgrade
		}
	}
	return f
}

func parseContentLength(v string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseContentType(v string) (ContentKind, string) {
	if v == "" {
		return ContentNone, ""
	}
	parts := strings.Split(v, ";")
	mediaType := strings.ToLower(strings.TrimSpace(parts[0]))
	boundary := ""
	for _, param := range parts[1:] {
		param = strings.TrimSpace(param)
		if i := strings.IndexByte(param, '='); i >= 0 && strings.EqualFold(strings.TrimSpace(param[:i]), "boundary") {
			boundary = strings.Trim(strings.TrimSpace(param[i+1:]), `"`)
		}
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		return ContentURLEncoded, ""
	case "multipart/form-data":
		return ContentMultipartFormData, boundary
	default:
		return ContentOther, ""
	}
}

func parseCookies(v string) map[string]string {
	if v == "" {
		return nil
	}
	out := make(map[string]string)
	for v != "" {
		var part string
		if i := strings.IndexByte(v, ';'); i >= 0 {
			part, v = v[:i], v[i+1:]
		} else {
			part, v = v, ""
		}
		part = strings.TrimSpace(part)
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			// Malformed entry: skip past it, tolerate and continue.
			continue
		}
		name := strings.TrimSpace(part[:eq])
		value := strings.TrimSpace(part[eq+1:])
		if name == "" {
			continue
		}
		out[name] = value
	}
	return out
}

func parseIMS(v string) (time.Time, bool) {
	t, err := hutil.ParseHTTPDate(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseHost(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	v = strings.ToLower(v)
	v = strings.TrimRight(v, ".")
	return v, true
}

func parseRange(v string) []RangeSpec {
	const prefix = "bytes="
	if !strings.HasPrefix(v, prefix) {
		return nil
	}
	v = v[len(prefix):]
	var specs []RangeSpec
	for _, tok := range strings.Split(v, ",") {
		tok = strings.TrimSpace(tok)
		dash := strings.IndexByte(tok, '-')
		if dash < 0 {
			continue
		}
		fromStr, toStr := tok[:dash], tok[dash+1:]
		var from, to *int64
		if fromStr != "" {
			n, err := strconv.ParseInt(fromStr, 10, 64)
			if err != nil {
				continue
			}
			from = &n
		}
		if toStr != "" {
			n, err := strconv.ParseInt(toStr, 10, 64)
			if err != nil {
				continue
			}
			to = &n
		}
		if from == nil && to == nil {
			continue
		}
		specs = append(specs, RangeSpec{From: from, To: to})
	}
	return specs
}

func parseXForwardedFor(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
