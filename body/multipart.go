/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package body

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// ErrBoundaryTooLong is returned when the Content-Type boundary parameter
// exceeds 1024 octets.
var ErrBoundaryTooLong = errors.New("body: multipart boundary too long")

const maxBoundaryLen = 1024

// scanBufSize bounds how much of the body this parser ever looks ahead;
// it must comfortably exceed maxBoundaryLen plus the few bytes of framing
// searched around it.
const scanBufSize = 64 << 10

// ParseMultipart implements the body parser's multipart/form-data
// contract: a part with both name and filename becomes a file upload (spilled
// to tempDir once total in-memory upload bytes would exceed spillThreshold);
// a part with only name becomes a text field; a part with neither is
// discarded. Premature end of stream finalizes whatever part was open and
// returns the form parsed so far, tolerating buggy clients.
func ParseMultipart(r io.Reader, boundary, tempDir string, spillThreshold int64) (*Form, error) {
	if len(boundary) > maxBoundaryLen {
		return nil, ErrBoundaryTooLong
	}
	form := newForm()
	br := bufio.NewReaderSize(r, scanBufSize)
	tracker := newMemTracker(spillThreshold, tempDir)

	if !consumeFirstBoundary(br, boundary) {
		return form, nil
	}

	delimPrefix := []byte("\r\n--" + boundary)

	for {
		headers, err := readPartHeaders(br)
		if err != nil {
			// Premature end of stream before this part's headers even
			// finished: nothing to finalize, return what we have.
			return form, nil
		}
		name, filename, hasName := parseContentDisposition(headers.Get("Content-Disposition"))
		contentType := headers.Get("Content-Type")

		switch {
		case !hasName:
			_, terminal := scanPartBody(br, delimPrefix, func([]byte) {})
			if terminal {
				return form, nil
			}
		case filename != "":
			upload := tracker.newUpload(contentType, filename)
			_, terminal := scanPartBody(br, delimPrefix, upload.write)
			upload.finish()
			form.Files[name] = append(form.Files[name], upload.toFileUpload())
			if terminal {
				return form, nil
			}
		default:
			var buf bytes.Buffer
			_, terminal := scanPartBody(br, delimPrefix, func(b []byte) { buf.Write(b) })
			form.Values.Add(name, decodeUTF8(buf.Bytes()))
			if terminal {
				return form, nil
			}
		}
	}
}

// consumeFirstBoundary skips ignorable leading CRLFs and then the
// "--boundary\r\n" that opens the first part. Reports false if the body
// never produces one (empty or malformed body -- tolerated as zero parts).
func consumeFirstBoundary(br *bufio.Reader, boundary string) bool {
	for {
		b, err := br.Peek(1)
		if err != nil || len(b) == 0 {
			return false
		}
		if b[0] == '\r' || b[0] == '\n' {
			br.Discard(1)
			continue
		}
		break
	}
	want := []byte("--" + boundary + "\r\n")
	got, err := br.Peek(len(want))
	if err != nil || !bytes.Equal(got, want) {
		// Tolerate a final-boundary-only empty body: "--boundary--".
		wantFinal := []byte("--" + boundary + "--")
		if gotFinal, err2 := br.Peek(len(wantFinal)); err2 == nil && bytes.Equal(gotFinal, wantFinal) {
			br.Discard(len(wantFinal))
		}
		return false
	}
	br.Discard(len(want))
	return true
}

type partHeaders struct {
	pairs [][2]string
}

func (h partHeaders) Get(name string) string {
	for _, p := range h.pairs {
		if strings.EqualFold(p[0], name) {
			return p[1]
		}
	}
	return ""
}

// readPartHeaders reads UTF-8 header lines up to the CRLF-CRLF that ends
// them. Header folding (obsolete line-wrapping) is not supported, matching
// the request parser's policy.
func readPartHeaders(br *bufio.Reader) (partHeaders, error) {
	var h partHeaders
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return h, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return h, nil
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		name := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		h.pairs = append(h.pairs, [2]string{name, value})
	}
}

// parseContentDisposition extracts name/filename from a
// `form-data; name="..."; filename="..."` (or `file; ...`) header value.
func parseContentDisposition(v string) (name, filename string, hasName bool) {
	parts := strings.Split(v, ";")
	if len(parts) == 0 {
		return "", "", false
	}
	kind := strings.ToLower(strings.TrimSpace(parts[0]))
	if kind != "form-data" && kind != "file" {
		return "", "", false
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		eq := strings.IndexByte(p, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(p[:eq]))
		val := strings.Trim(strings.TrimSpace(p[eq+1:]), `"`)
		switch key {
		case "name":
			name = val
			hasName = true
		case "filename":
			filename = val
		}
	}
	return name, filename, hasName
}

// scanPartBody consumes bytes from br up to (but not including) the next
// occurrence of delimPrefix ("\r\n--boundary"), forwarding confirmed-safe
// bytes to sink as it goes so that a large upload never needs to sit fully
// buffered in br. It reports whether the boundary that ended the part was
// the final one ("--boundary--") and whether the stream ended prematurely
// (terminal=true in both cases from the caller's point of view: either way
// there is nothing more to read).
func scanPartBody(br *bufio.Reader, delimPrefix []byte, sink func([]byte)) (found, terminal bool) {
	peekSize := len(delimPrefix) + 256
	for {
		peek, _ := br.Peek(peekSize)
		n := len(peek)
		atEOF := n < peekSize

		idx := bytes.Index(peek, delimPrefix)
		if idx == -1 {
			if atEOF {
				sink(peek)
				br.Discard(n)
				return false, true
			}
			// No match in this window; everything except a safety tail
			// (in case the delimiter straddles the refill boundary) is
			// confirmed body content.
			safe := n - (len(delimPrefix) - 1)
			if safe > 0 {
				sink(peek[:safe])
				br.Discard(safe)
			}
			continue
		}

		need := idx + len(delimPrefix) + 2
		if need > n {
			if atEOF {
				// Truncated right at the boundary marker: finalize
				// tolerantly with what we have.
				sink(peek[:idx])
				br.Discard(n)
				return true, true
			}
			peekSize = need + 16
			continue
		}

		sink(peek[:idx])
		after := peek[idx+len(delimPrefix) : need]
		br.Discard(need)
		if string(after) == "--" {
			return true, true
		}
		// Continuation: after == "\r\n" (or tolerated as such regardless).
		return false, false
	}
}

func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
