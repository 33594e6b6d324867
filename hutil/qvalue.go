/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hutil holds the leaf-level shared utilities (component H of the
// design): Q-value parsing, HTTP-date formatting and random temp file
// names. It has no dependency on any other package in this module so that
// hdr, urlkit and body can all import it without creating a cycle.
package hutil

import (
	"sort"
	"strconv"
	"strings"
)

// QValue is one entry of a parsed Accept* header: a value together with its
// relative quality factor.
type QValue struct {
	Value string
	Q     float64
}

// ParseQValues parses a comma-separated Accept*-style header value into a
// list ordered by descending Q, with ties broken by original insertion
// order (Go's sort.SliceStable preserves that automatically since it is
// stable and we never reorder equal-Q runs).
//
// converter, if non-nil, is applied to each raw token before it is stored
// (e.g. to split off the "charset=" portion of a Content-Type-like value).
// Malformed q= parameters default to 1.0, matching the tolerant-parsing
// policy the rest of the request parser uses.
func ParseQValues(value string, converter func(string) string) []QValue {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]QValue, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tok := part
		q := 1.0
		if i := strings.IndexByte(part, ';'); i >= 0 {
			tok = strings.TrimSpace(part[:i])
			params := part[i+1:]
			for _, p := range strings.Split(params, ";") {
				p = strings.TrimSpace(p)
				if strings.HasPrefix(p, "q=") || strings.HasPrefix(p, "Q=") {
					if v, err := strconv.ParseFloat(strings.TrimSpace(p[2:]), 64); err == nil {
						q = v
					}
				}
			}
		}
		if tok == "" {
			continue
		}
		if converter != nil {
			tok = converter(tok)
		}
		out = append(out, QValue{Value: tok, Q: q})
	}
	// Stable sort descending by Q; equal-Q entries keep their insertion order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Q > out[j].Q })
	return out
}
