/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/google/uuid"

	"github.com/badu/hookhttp/hdr"
	"github.com/badu/hookhttp/hutil"
)

// GzipMode selects the response writer's Accept-Encoding: gzip policy
// (Config.UseGzip, §6).
type GzipMode int

const (
	GzipAutoDetect GzipMode = iota
	GzipAlways
	GzipNever
)

const gzipSampleSize = 512
const gzipMinShrinkRatio = 0.10

type byteRange struct{ from, to int64 }

// writeResponse implements §4.E: status line, transfer framing, Range /
// multipart-byteranges, gzip negotiation, the Connection decision, and HEAD
// suppression. It returns whether the connection must be closed afterward.
func writeResponse(bw *bufio.Writer, req *Request, resp *Response, gzipMode GzipMode, keepAlivesEnabled bool) (closeConn bool, err error) {
	proto11 := req.ProtoAtLeast(1, 1)
	isHEAD := req.Method == MethodHead
	header := append([]hdr.RawPair(nil), resp.Header...)
	status := resp.Status
	producer := resp.Producer

	dynamic := producer.Kind() == ProducerDynamic
	chunkedWire := dynamic && proto11
	closeUnknownLength := dynamic && !proto11

	var body []byte
	contentLength := int64(0)
	rangeApplied := false

	// HEAD never invokes the body producer (§4.E): headers and
	// Content-Length are derived from producer.Length() alone, and the
	// Range/gzip materialization below is skipped entirely.
	if !dynamic && isHEAD {
		if n := producer.Length(); n > 0 {
			contentLength = n
		}
		setHeaderValue(&header, hdr.AcceptRanges, "bytes")
	}

	if !dynamic && !isHEAD && len(req.Header.RangeSpecs) > 0 && producer.Seekable() && producer.Length() >= 0 {
		if ranges, ok := resolveRanges(req.Header.RangeSpecs, producer.Length()); ok {
			rangeApplied = true
			status = StatusPartialContent
			if len(ranges) == 1 {
				data, rerr := producer.ReadRange(ranges[0].from, ranges[0].to)
				if rerr != nil {
					return true, rerr
				}
				body = data
				setHeaderValue(&header, hdr.ContentRange,
					fmt.Sprintf("bytes %d-%d/%d", ranges[0].from, ranges[0].to, producer.Length()))
			} else {
				boundary := newBoundary()
				data, rerr := encodeMultipartByteranges(ranges, producer, boundary)
				if rerr != nil {
					return true, rerr
				}
				body = data
				setHeaderValue(&header, hdr.ContentType, "multipart/byteranges; boundary="+boundary)
			}
		}
	}

	if !dynamic && !isHEAD && !rangeApplied {
		if producer.Length() > 0 {
			data, rerr := producer.ReadRange(0, producer.Length()-1)
			if rerr != nil {
				return true, rerr
			}
			body = data
		}
		if shouldGzip(req, gzipMode, body) {
			if compressed, gerr := gzipCompress(body); gerr == nil {
				body = compressed
				setHeaderValue(&header, hdr.ContentEncoding, "gzip")
			}
		}
		setHeaderValue(&header, hdr.AcceptRanges, "bytes")
	}

	if !isHEAD {
		contentLength = int64(len(body))
	}

	shouldClose := decideClose(req, proto11, keepAlivesEnabled, closeUnknownLength, status)
	if shouldClose {
		setHeaderValue(&header, hdr.Connection, "close")
	} else if !proto11 {
		setHeaderValue(&header, hdr.Connection, "keep-alive")
	} else {
		removeHeaderName(&header, hdr.Connection)
	}

	switch {
	case chunkedWire:
		setHeaderValue(&header, hdr.TransferEncoding, "chunked")
		removeHeaderName(&header, hdr.ContentLength)
	case closeUnknownLength:
		removeHeaderName(&header, hdr.TransferEncoding)
		removeHeaderName(&header, hdr.ContentLength)
	default:
		removeHeaderName(&header, hdr.TransferEncoding)
		setHeaderValue(&header, hdr.ContentLength, strconv.FormatInt(contentLength, 10))
	}

	if err := writeStatusLine(bw, proto11, status); err != nil {
		return true, err
	}
	if err := writeHeaderList(bw, header); err != nil {
		return true, err
	}
	if _, err := bw.Write(crlf); err != nil {
		return true, err
	}

	if isHEAD {
		return shouldClose, bw.Flush()
	}

	switch {
	case chunkedWire:
		fw := chunkFrameWriter{bw}
		if err := producer.WriteFull(fw); err != nil {
			return true, err
		}
		if err := writeChunkedTerminator(bw); err != nil {
			return true, err
		}
	case dynamic:
		if err := producer.WriteFull(bw); err != nil {
			return true, err
		}
	default:
		if len(body) > 0 {
			if _, err := bw.Write(body); err != nil {
				return true, err
			}
		}
	}
	return shouldClose, bw.Flush()
}

// writeUpgradeResponse writes a 101 Switching Protocols status line and
// header list verbatim, with no transfer-framing headers and no body: the
// connection is handed off to resp.Hijack immediately afterward, so
// nothing about request framing (Content-Length, chunking, keep-alive)
// applies to what follows.
func writeUpgradeResponse(bw *bufio.Writer, req *Request, resp *Response) error {
	proto11 := req.ProtoAtLeast(1, 1)
	if err := writeStatusLine(bw, proto11, resp.Status); err != nil {
		return err
	}
	if err := writeHeaderList(bw, resp.Header); err != nil {
		return err
	}
	if _, err := bw.Write(crlf); err != nil {
		return err
	}
	return bw.Flush()
}

// decideClose implements §4.E's Connection precedence: explicit
// Connection: close, the fixed error-status set, unknown-length framing
// under HTTP/1.0, and the HTTP/1.0-vs-1.1 default.
func decideClose(req *Request, proto11, keepAlivesEnabled, closeUnknownLength bool, status int) bool {
	if !keepAlivesEnabled || closeUnknownLength {
		return true
	}
	if req.Header.Connection.Has(hdr.ConnClose) {
		return true
	}
	switch status {
	case StatusBadRequest, StatusLengthRequired, StatusInternalServerError, StatusNotFound:
		return true
	}
	if proto11 {
		return false
	}
	return !req.Header.Connection.Has(hdr.ConnKeepAlive)
}

func resolveRanges(specs []hdr.RangeSpec, length int64) ([]byteRange, bool) {
	var out []byteRange
	for _, s := range specs {
		var from, to int64
		switch {
		case s.From == nil && s.To != nil:
			n := *s.To
			if n > length {
				n = length
			}
			from, to = length-n, length-1
		case s.From != nil && s.To == nil:
			from, to = *s.From, length-1
		case s.From != nil && s.To != nil:
			from, to = *s.From, *s.To
			if to >= length {
				to = length - 1
			}
		default:
			continue
		}
		if from < 0 || from >= length || from > to {
			continue
		}
		out = append(out, byteRange{from, to})
	}
	return out, len(out) > 0
}

func encodeMultipartByteranges(ranges []byteRange, producer *ContentProducer, boundary string) ([]byte, error) {
	var buf bytes.Buffer
	for _, rg := range ranges {
		data, err := producer.ReadRange(rg.from, rg.to)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "--%s\r\n%s: bytes %d-%d/%d\r\n\r\n", boundary, hdr.ContentRange, rg.from, rg.to, producer.Length())
		buf.Write(data)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}

func newBoundary() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func shouldGzip(req *Request, mode GzipMode, body []byte) bool {
	if mode == GzipNever || len(body) == 0 {
		return false
	}
	if !acceptsGzip(req.Header.AcceptEncoding) {
		return false
	}
	if mode == GzipAlways {
		return true
	}
	sample := middleSample(body, gzipSampleSize)
	return compressibleSample(sample, gzipMinShrinkRatio, gzipCompress)
}

func acceptsGzip(accepted []hutil.QValue) bool {
	for _, v := range accepted {
		if v.Value == "gzip" && v.Q > 0 {
			return true
		}
	}
	return false
}

func middleSample(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	start := (len(b) - n) / 2
	return b[start : start+n]
}

func gzipCompress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(p); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// chunkFrameWriter adapts an io.Writer so each Write call becomes one
// complete chunked-encoding frame, for ContentProducer.WriteFull to drive
// a dynamic producer directly onto the wire.
type chunkFrameWriter struct{ w io.Writer }

func (c chunkFrameWriter) Write(p []byte) (int, error) {
	if err := writeChunked(c.w, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func writeStatusLine(bw *bufio.Writer, proto11 bool, status int) error {
	proto := "HTTP/1.0"
	if proto11 {
		proto = "HTTP/1.1"
	}
	reason := StatusText(status)
	_, err := fmt.Fprintf(bw, "%s %d %s\r\n", proto, status, reason)
	return err
}

func writeHeaderList(bw *bufio.Writer, header []hdr.RawPair) error {
	for _, p := range header {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", p.Name, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func setHeaderValue(header *[]hdr.RawPair, name, value string) {
	for i, p := range *header {
		if strings.EqualFold(p.Name, name) {
			(*header)[i].Value = value
			return
		}
	}
	*header = append(*header, hdr.RawPair{Name: name, Value: value})
}

func removeHeaderName(header *[]hdr.RawPair, name string) {
	out := (*header)[:0]
	for _, p := range *header {
		if !strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	*header = out
}
