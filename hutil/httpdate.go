/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hutil

import "time"

// TimeFormat is the RFC 1123 variant used on the wire for Date,
// Last-Modified, Expires, If-Modified-Since, etc.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

var obsoleteTimeFormats = []string{
	time.RFC850,
	time.ANSIC,
}

// FormatHTTPDate formats t per RFC 1123, always in GMT.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseHTTPDate parses a Date-like header value, tolerating the two
// obsolete RFC 7231 formats in addition to the preferred one.
func ParseHTTPDate(value string) (time.Time, error) {
	if t, err := time.Parse(TimeFormat, value); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range obsoleteTimeFormats {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
