/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/badu/hookhttp/body"
	"github.com/badu/hookhttp/hdr"
)

// serveConn drives the per-connection state machine (§4.B):
//
//	IDLE ──first-byte──▶ READING_REQUEST ──parsed──▶ INVOKING_HANDLER
//	INVOKING_HANDLER ──response──▶ WRITING_RESPONSE
//	WRITING_RESPONSE ──keep-alive──▶ IDLE   (loop)
//	WRITING_RESPONSE ──close───────▶ CLOSED
//	any state ──error──▶ WRITING_ERROR_RESPONSE ──▶ CLOSED
func (s *Server) serveConn(nc net.Conn, rec *connRecord) {
	hijacked := false
	defer func() {
		if r := recover(); r != nil {
			s.logger().Errorf("hookhttp: panic serving %v: %v", nc.RemoteAddr(), r)
		}
		if !hijacked {
			nc.Close()
		}
	}()

	https := s.isHTTPS(nc)
	br := bufio.NewReaderSize(nc, 4096)
	bw := bufio.NewWriterSize(nc, 4096)

	for {
		if s.isStopping() {
			return
		}

		s.stats.enterActive()
		if s.config.ReadTimeout > 0 {
			nc.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		req, perr := parseRequest(br, https, nc.RemoteAddr().String(), s.config.MaxHeaderBytes)
		if perr != nil {
			s.stats.leaveActive()
			s.writeParseError(bw, perr)
			return
		}
		nc.SetReadDeadline(time.Time{})

		if s.wantsContinue(req) {
			io.WriteString(bw, "HTTP/1.1 100 Continue\r\n\r\n")
			bw.Flush()
		}

		if berr := s.readRequestBody(req, br); berr != nil {
			resp := Text(StatusBadRequest, "400 Bad Request: "+berr.Error())
			writeResponse(bw, req, resp, s.config.UseGzip, false)
			s.stats.leaveActive()
			return
		}

		resp := s.dispatch(req)

		if resp.Status == StatusSwitchingProtocols && resp.Hijack != nil {
			werr := writeUpgradeResponse(bw, req, resp)
			req.runCleanups()
			s.stats.leaveActive()
			if werr != nil {
				return
			}
			hijacked = true
			resp.Hijack(nc, bufio.NewReadWriter(br, bw))
			return
		}

		closeConn, werr := writeResponse(bw, req, resp, s.config.UseGzip, !s.isStopping())
		req.runCleanups()
		s.stats.leaveActive()
		if werr != nil {
			// Mid-response socket closure: log once and close cleanly, never propagate.
			s.logger().Warnf("hookhttp: mid-response socket closure for %v: %v", nc.RemoteAddr(), werr)
			return
		}
		if closeConn {
			return
		}

		rec.idle.Store(true)
		s.stats.enterIdle()
		if s.config.KeepAliveTimeout > 0 {
			nc.SetReadDeadline(time.Now().Add(s.config.KeepAliveTimeout))
		}
		_, err := br.Peek(1)
		s.stats.leaveIdle()
		rec.idle.Store(false)
		if err != nil {
			return
		}
		nc.SetReadDeadline(time.Time{})
	}
}

func (s *Server) isHTTPS(nc net.Conn) bool {
	_, ok := nc.(*tls.Conn)
	return ok
}

func (s *Server) wantsContinue(req *Request) bool {
	return req.ProtoAtLeast(1, 1) && strings.EqualFold(req.Header.Expect, "100-continue")
}

// readRequestBody frames the request body (Content-Length or chunked) and,
// for a recognized Content-Type, parses it into the request's POST fields
// and file uploads (§4.D). Unrecognized bodies are simply drained so the
// wire stays aligned for the next request on this connection.
func (s *Server) readRequestBody(req *Request, br *bufio.Reader) error {
	if req.Method != MethodPost && req.Method != MethodPut && req.Method != MethodPatch {
		return nil
	}

	var bodyReader io.Reader
	switch {
	case strings.EqualFold(req.Header.Get(hdr.TransferEncoding), "chunked"):
		bodyReader = newChunkReader(br)
	case req.Header.ContentLength > 0:
		bodyReader = io.LimitReader(br, req.Header.ContentLength)
	default:
		return nil
	}

	switch req.Header.ContentKind {
	case hdr.ContentURLEncoded:
		values, err := body.ParseURLEncoded(bodyReader)
		if err != nil {
			return err
		}
		req.postParsed = true
		req.postForm = values
	case hdr.ContentMultipartFormData:
		form, err := body.ParseMultipart(bodyReader, req.Header.Boundary, s.config.TempDir, s.config.StoreFileUploadInFileAtSize)
		if err != nil {
			return err
		}
		req.postParsed = true
		req.postForm = form.Values
		req.files = form.Files
		for _, uploads := range form.Files {
			for _, up := range uploads {
				u := up
				req.addCleanup(func() { u.Cleanup() })
			}
		}
	default:
		if _, err := io.Copy(io.Discard, bodyReader); err != nil {
			return err
		}
	}
	return nil
}

// dispatch runs the URL resolver and handler, converting a panic (the
// Go-idiomatic stand-in for the source language's "handler throws") into
// the error-handler path described in §7.
func (s *Server) dispatch(req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = s.handlePanic(req, r)
		}
	}()

	hooks := s.hooks.Snapshot()
	if len(hooks) == 0 && s.config.Handler != nil {
		if result := s.config.Handler(req); result != nil {
			return result
		}
	}
	result, bug := resolve(req, hooks)
	if bug {
		s.logger().Errorf("hookhttp: non-skippable hook for %s returned no response", req.URL.FullPath())
		return s.errorResponse(req, StatusInternalServerError, ErrInternalResolverBug)
	}
	if result != nil {
		return result
	}
	if s.config.Handler != nil {
		if result := s.config.Handler(req); result != nil {
			return result
		}
	}
	return s.notFound(req)
}

func (s *Server) handlePanic(req *Request, r interface{}) *Response {
	if httpErr, ok := r.(*HTTPError); ok {
		return s.errorResponse(req, httpErr.Status, httpErr)
	}
	if err, ok := r.(error); ok {
		return s.errorResponse(req, StatusInternalServerError, err)
	}
	return s.errorResponse(req, StatusInternalServerError, fmt.Errorf("%v", r))
}

// errorResponse implements §4.G's error-handler contract: a panic inside
// the user error handler falls back to the default page rendered with the
// ORIGINAL status, never the error handler's own.
func (s *Server) errorResponse(req *Request, status int, cause error) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Errorf("hookhttp: error handler panicked: %v", r)
			resp = s.defaultErrorPage(status, cause)
		}
	}()
	if s.config.ErrorHandler != nil {
		if result := s.config.ErrorHandler(req, cause); result != nil {
			return result
		}
	}
	return s.defaultErrorPage(status, cause)
}

func (s *Server) notFound(req *Request) *Response {
	return s.defaultErrorPage(StatusNotFound, nil)
}

func (s *Server) defaultErrorPage(status int, cause error) *Response {
	var detail string
	if cause != nil && s.config.OutputExceptionInformation {
		detail = fmt.Sprintf("<pre>%s</pre>", cause.Error())
	}
	page := fmt.Sprintf("<html><body><h1>%d %s</h1>%s</body></html>", status, StatusText(status), detail)
	return HTML(status, page)
}

// writeParseError writes a minimal, connection-closing error response
// directly: parseRequest failed before a Request object exists, so the
// normal writer pipeline (which needs one) doesn't apply.
func (s *Server) writeParseError(bw *bufio.Writer, err error) {
	status := StatusBadRequest
	switch err.(type) {
	case lengthRequiredError:
		status = StatusLengthRequired
	}
	msg := err.Error()
	page := fmt.Sprintf("<html><body><h1>%d %s</h1><p>%s</p></body></html>", status, StatusText(status), msg)
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", status, StatusText(status))
	fmt.Fprintf(bw, "%s: text/html; charset=utf-8\r\n", hdr.ContentType)
	fmt.Fprintf(bw, "%s: %d\r\n", hdr.ContentLength, len(page))
	fmt.Fprintf(bw, "%s: close\r\n\r\n", hdr.Connection)
	bw.WriteString(page)
	bw.Flush()
}
