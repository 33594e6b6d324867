/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package urlkit

import "strings"

// URL is the immutable value described by the resolver component. A URL
// constructed straight from wire input has empty ParentDomains/ParentPaths;
// they only get populated when a hook narrows the request down and hands a
// derived URL to an inner resolver (see Sub).
type URL struct {
	HTTPS bool

	// ParentDomains holds the domain suffixes already consumed by outer
	// resolvers, in host order: the suffix consumed last (nearest Domain)
	// comes first. Each entry is the suffix exactly as the matching hook
	// named it.
	ParentDomains []string
	// Domain is what's left of the host after removing ParentDomains. May
	// be empty (no Host on the wire, or fully consumed by an outer
	// resolver). Built from wire input it is the Host header value, which
	// carries no trailing dot.
	Domain string

	// ParentPaths holds the path prefixes already consumed by outer
	// resolvers, outermost first. An entry is empty when the matching hook
	// had no path.
	ParentPaths []string
	// Path is what's left of the request path after removing
	// ParentPaths. Begins with '/' when non-empty.
	Path string

	rawQuery    string
	hasQuery    bool
	query       Values
	queryParsed bool
}

// ParseTarget splits a request-target (the bytes between the method and
// the HTTP-version token on the request line) into path and raw query.
// Percent-decoding is deliberately NOT performed here -- per spec it only
// happens on Get/Post accessor access, never on the raw URL string.
func ParseTarget(target string) (path, rawQuery string, hasQuery bool) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:], true
	}
	return target, "", false
}

// New builds a URL fresh from wire input: no parent overlay yet.
func New(https bool, domain, path, rawQuery string, hasQuery bool) *URL {
	return &URL{
		HTTPS:    https,
		Domain:   domain,
		Path:     path,
		rawQuery: rawQuery,
		hasQuery: hasQuery,
	}
}

// FullPath concatenates ParentPaths and Path, giving the complete request
// path regardless of how many resolvers have narrowed it down.
func (u *URL) FullPath() string {
	if len(u.ParentPaths) == 0 {
		return u.Path
	}
	var b strings.Builder
	for _, p := range u.ParentPaths {
		b.WriteString(p)
	}
	b.WriteString(u.Path)
	return b.String()
}

// FullDomain concatenates Domain and ParentDomains, giving the complete
// host regardless of how many resolvers have narrowed it down.
func (u *URL) FullDomain() string {
	if len(u.ParentDomains) == 0 {
		return u.Domain
	}
	var b strings.Builder
	b.WriteString(u.Domain)
	for _, d := range u.ParentDomains {
		b.WriteString(d)
	}
	return b.String()
}

// RequestTarget reconstructs the exact bytes that would follow the method
// on a request line for this URL: FullPath() plus "?"+query when present.
// For a URL built straight from wire input via New+ParseTarget this is a
// byte-for-byte round trip of the original request-target.
func (u *URL) RequestTarget() string {
	if !u.hasQuery {
		return u.FullPath()
	}
	return u.FullPath() + "?" + u.rawQuery
}

// ToFull renders the absolute form of the URL: scheme://domain + request
// target. Useful for building Location headers from a request URL.
func (u *URL) ToFull() string {
	scheme := "http://"
	if u.HTTPS {
		scheme = "https://"
	}
	return scheme + u.FullDomain() + u.RequestTarget()
}

// RawQuery returns the unparsed query string and whether one was present
// on the wire at all (so "?" with an empty query is distinguishable from
// no "?").
func (u *URL) RawQuery() (string, bool) {
	return u.rawQuery, u.hasQuery
}

// Query lazily percent-decodes the query string into an ordered multimap.
// Keys and values are both unescaped; '+' is never treated as space, only
// %20 is. Malformed pairs are tolerated: an empty key is skipped, and a
// second '=' in a pair folds into the value.
func (u *URL) Query() Values {
	if u.queryParsed {
		return u.query
	}
	u.query = parseQuery(u.rawQuery)
	u.queryParsed = true
	return u.query
}

func parseQuery(raw string) Values {
	v := NewValues()
	for raw != "" {
		var part string
		if i := strings.IndexByte(raw, '&'); i >= 0 {
			part, raw = raw[:i], raw[i+1:]
		} else {
			part, raw = raw, ""
		}
		if part == "" {
			continue
		}
		key := part
		value := ""
		if i := strings.IndexByte(part, '='); i >= 0 {
			key, value = part[:i], part[i+1:]
		}
		dk, err := Unescape(key)
		if err != nil {
			continue
		}
		if dk == "" {
			continue
		}
		dv, err := Unescape(value)
		if err != nil {
			continue
		}
		v.Add(dk, dv)
	}
	return v
}

// Sub returns a derived URL for a hook that matched pathPrefix of the
// current Path and domainSuffix of the current Domain: the prefix/suffix
// move into ParentPaths/ParentDomains and Path/Domain shrink to the
// remainder. This is a pure value transformation -- the backing strings of
// the original URL are untouched; only the new value's slices grow.
func (u *URL) Sub(pathPrefix, domainSuffix string) *URL {
	n := &URL{
		HTTPS:       u.HTTPS,
		rawQuery:    u.rawQuery,
		hasQuery:    u.hasQuery,
		query:       u.query,
		queryParsed: u.queryParsed,
	}
	n.ParentPaths = append(append([]string{}, u.ParentPaths...), pathPrefix)
	n.Path = strings.TrimPrefix(u.Path, pathPrefix)
	if domainSuffix != "" {
		n.ParentDomains = append([]string{domainSuffix}, u.ParentDomains...)
		n.Domain = strings.TrimSuffix(u.Domain, domainSuffix)
	} else {
		n.ParentDomains = append([]string{}, u.ParentDomains...)
		n.Domain = u.Domain
	}
	return n
}
