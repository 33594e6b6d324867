/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import "strings"

// resolve implements §4.F: try applicable hooks in stored (most-specific
// first) order, invoking the first non-skippable one; a skippable hook
// that declines (returns nil) yields to the next applicable hook. A
// non-skippable hook returning nil is a fatal bug in the registered
// handler set. No applicable hook at all is a 404.
func resolve(req *Request, hooks []Hook) (resp *Response, internalBug bool) {
	host := req.URL.FullDomain()
	path := req.URL.FullPath()
	proto := ProtoHTTP
	if req.URL.HTTPS {
		proto = ProtoHTTPS
	}

	for _, h := range hooks {
		if h.Protocols&proto == 0 {
			continue
		}
		if h.HasPort && h.Port != req.port() {
			continue
		}
		domainSuffix, domainOK := matchDomain(h, host)
		if !domainOK {
			continue
		}
		pathPrefix, pathOK := matchPath(h, path)
		if !pathOK {
			continue
		}

		derived := req.withHookMatch(pathPrefix, domainSuffix)
		r := h.Handler(derived)
		if r != nil {
			return r, false
		}
		if !h.Skippable {
			return nil, true
		}
		// Skippable hook declined; try the next applicable hook.
	}
	return nil, false
}

func matchDomain(h Hook, host string) (matchedSuffix string, ok bool) {
	if h.Domain == "" {
		return "", true
	}
	if h.SpecificDomain {
		if host == h.Domain {
			return h.Domain, true
		}
		return "", false
	}
	if host == h.Domain {
		return h.Domain, true
	}
	if strings.HasSuffix(host, "."+h.Domain) {
		return h.Domain, true
	}
	return "", false
}

func matchPath(h Hook, path string) (matchedPrefix string, ok bool) {
	if h.Path == "" {
		return "", true
	}
	if h.SpecificPath {
		if path == h.Path {
			return h.Path, true
		}
		return "", false
	}
	if path == h.Path {
		return h.Path, true
	}
	prefix := h.Path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if strings.HasPrefix(path, prefix) {
		return h.Path, true
	}
	return "", false
}
