/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/badu/hookhttp/hdr"
	"github.com/badu/hookhttp/urlkit"
)

var recognizedMethods = map[string]Method{
	"GET":    MethodGet,
	"HEAD":   MethodHead,
	"POST":   MethodPost,
	"PUT":    MethodPut,
	"PATCH":  MethodPatch,
	"DELETE": MethodDelete,
}

// parseRequest reads one request off br: the request line, then headers
// up to CRLF-CRLF. It enforces the limits and validation policies in §4.C
// and returns a Request ready for body parsing and handler dispatch.
func parseRequest(br *bufio.Reader, https bool, sourceAddr string, maxHeaderBytes int64) (*Request, error) {
	line, err := readLine(br, maxHeaderBytes)
	if err != nil {
		return nil, badRequestError("failed to read request line: " + err.Error())
	}
	for line == "" {
		// Tolerate a stray leading blank line some clients send after the
		// previous response (RFC 2616 §4.1).
		line, err = readLine(br, maxHeaderBytes)
		if err != nil {
			return nil, badRequestError("failed to read request line: " + err.Error())
		}
	}

	method, target, major, minor, err := parseRequestLine(line)
	if err != nil {
		return nil, badRequestError(err.Error())
	}
	m, ok := recognizedMethods[method]
	if !ok {
		return nil, badRequestError("unsupported method " + method)
	}

	h := hdr.New()
	var headerBytes int64
	for {
		hline, err := readLine(br, maxHeaderBytes-headerBytes)
		if err != nil {
			return nil, badRequestError("failed to read headers: " + err.Error())
		}
		headerBytes += int64(len(hline)) + 2
		if headerBytes > maxHeaderBytes {
			return nil, badRequestError("header section too large")
		}
		if hline == "" {
			break
		}
		if hline[0] == ' ' || hline[0] == '\t' {
			// Obsolete line-folding is not supported.
			return nil, badRequestError("header folding not supported")
		}
		i := strings.IndexByte(hline, ':')
		if i < 0 {
			return nil, badRequestError("malformed header line")
		}
		name := strings.TrimSpace(hline[:i])
		value := strings.TrimSpace(hline[i+1:])
		if name == "" {
			return nil, badRequestError("empty header name")
		}
		h.Add(name, value)
	}
	h.Parse()

	if major == 1 && minor == 1 {
		if h.Host == "" && h.Get(hdr.Host) == "" {
			return nil, badRequestError("missing required Host header")
		}
	}

	if (m == MethodPost || m == MethodPut || m == MethodPatch) &&
		h.ContentLength < 0 &&
		!strings.EqualFold(h.Get(hdr.TransferEncoding), "chunked") {
		return nil, lengthRequiredError("missing Content-Length")
	}

	path, rawQuery, hasQuery := urlkit.ParseTarget(target)
	u := urlkit.New(https, hostWithoutPort(h.Host), path, rawQuery, hasQuery)

	req := &Request{
		ProtoMajor: major,
		ProtoMinor: minor,
		Method:     m,
		URL:        u,
		Header:     h,
		sourceAddr: sourceAddr,
	}
	return req, nil
}

// parseRequestLine splits "METHOD SP REQUEST-TARGET SP HTTP/1.x".
func parseRequestLine(line string) (method, target string, major, minor int, err error) {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 < 0 {
		return "", "", 0, 0, errMalformed("request line")
	}
	rest := line[sp1+1:]
	sp2 := strings.LastIndexByte(rest, ' ')
	if sp2 < 0 {
		return "", "", 0, 0, errMalformed("request line")
	}
	method = line[:sp1]
	target = rest[:sp2]
	proto := rest[sp2+1:]
	major, minor, err = parseHTTPVersion(proto)
	if err != nil {
		return "", "", 0, 0, err
	}
	if target == "" {
		return "", "", 0, 0, errMalformed("empty request target")
	}
	return method, target, major, minor, nil
}

func parseHTTPVersion(proto string) (major, minor int, err error) {
	const prefix = "HTTP/1."
	if !strings.HasPrefix(proto, prefix) || len(proto) != len(prefix)+1 {
		return 0, 0, errMalformed("bad protocol version")
	}
	switch proto[len(prefix)] {
	case '0':
		return 1, 0, nil
	case '1':
		return 1, 1, nil
	default:
		return 0, 0, errMalformed("bad protocol version")
	}
}

// hostWithoutPort strips a trailing ":port" from an already-lowercased,
// trailing-dot-trimmed Host value (hdr.Header.Host) before it becomes the
// URL's Domain (§4.F item 1: host and port are extracted separately).
// Request.port() (request.go) is the single place that re-derives the
// port from the raw Host header; this keeps the resolver's domain match
// from ever seeing it.
func hostWithoutPort(host string) string {
	i := strings.LastIndexByte(host, ':')
	if i < 0 {
		return host
	}
	if _, err := strconv.Atoi(host[i+1:]); err != nil {
		return host
	}
	return host[:i]
}

type errMalformed string

func (e errMalformed) Error() string { return string(e) }

// readLine reads a single CRLF-or-LF-terminated line, enforcing limit as
// a byte budget against header-parsing resource exhaustion.
func readLine(br *bufio.Reader, limit int64) (string, error) {
	var b strings.Builder
	for {
		chunk, err := br.ReadString('\n')
		b.WriteString(chunk)
		if int64(b.Len()) > limit && limit > 0 {
			return "", errMalformed("line too long")
		}
		if err == nil {
			break
		}
		if err == io.EOF && chunk != "" {
			break
		}
		return "", err
	}
	return strings.TrimRight(b.String(), "\r\n"), nil
}
