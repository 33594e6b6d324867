/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	cfg.ReadTimeout = time.Second
	cfg.KeepAliveTimeout = time.Second
	s := NewServer(cfg)
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		s.Stop(true)
		select {
		case <-s.ShutdownComplete():
		case <-time.After(time.Second):
		}
	})
	return s, s.Addr().String()
}

func dialAndSend(t *testing.T, addr, raw string) *http.Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = io.WriteString(conn, raw)
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	return resp
}

func TestServerNotFoundWithNoHooks(t *testing.T) {
	_, addr := startTestServer(t, Config{})
	resp := dialAndSend(t, addr, "GET /nope HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n")
	defer resp.Body.Close()
	require.Equal(t, StatusNotFound, resp.StatusCode)
}

func TestServerStaticHookEchoesQueryValues(t *testing.T) {
	s := NewServer(Config{ReadTimeout: time.Second, KeepAliveTimeout: time.Second})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(true) })

	require.NoError(t, s.AddHook(Hook{
		Path:      "/static",
		Protocols: ProtoHTTP,
		Handler: func(req *Request) *Response {
			q := req.Get()
			return Text(StatusOK, "x="+q.Get("x")+" z="+q.Get("z")+" zig="+q.Get("zig"))
		},
	}))

	addr := s.Addr().String()
	resp := dialAndSend(t, addr, "GET /static?x=y&z=%20&zig=%3D%3d HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n")
	defer resp.Body.Close()
	require.Equal(t, StatusOK, resp.StatusCode)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "x=y z=  zig===", string(out))
}

func TestServerRangeRequest(t *testing.T) {
	s := NewServer(Config{ReadTimeout: time.Second, KeepAliveTimeout: time.Second})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(true) })

	data := strings.Repeat("abcdefgh", 8192) // 64KiB
	require.NoError(t, s.AddHook(Hook{
		Path:      "/file",
		Protocols: ProtoHTTP,
		Handler: func(req *Request) *Response {
			return NewResponse(StatusOK, NewBufferedProducer([]byte(data)))
		},
	}))

	addr := s.Addr().String()
	resp := dialAndSend(t, addr, "GET /file HTTP/1.1\r\nHost: example.com\r\nRange: bytes=0-9\r\nConnection: close\r\n\r\n")
	defer resp.Body.Close()
	require.Equal(t, StatusPartialContent, resp.StatusCode)
	require.Equal(t, "bytes 0-9/65536", resp.Header.Get("Content-Range"))
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, data[:10], string(out))
}

func TestServerMultiRangeRequest(t *testing.T) {
	s := NewServer(Config{ReadTimeout: time.Second, KeepAliveTimeout: time.Second})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(true) })

	data := "0123456789abcdef"
	require.NoError(t, s.AddHook(Hook{
		Path:      "/file",
		Protocols: ProtoHTTP,
		Handler: func(req *Request) *Response {
			return NewResponse(StatusOK, NewBufferedProducer([]byte(data)))
		},
	}))

	addr := s.Addr().String()
	resp := dialAndSend(t, addr, "GET /file HTTP/1.1\r\nHost: example.com\r\nRange: bytes=0-1,4-5\r\nConnection: close\r\n\r\n")
	defer resp.Body.Close()
	require.Equal(t, StatusPartialContent, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "multipart/byteranges")
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(out), "bytes 0-1/16")
	require.Contains(t, string(out), "bytes 4-5/16")
}

func TestServerURLEncodedPostBracketKeys(t *testing.T) {
	s := NewServer(Config{ReadTimeout: time.Second, KeepAliveTimeout: time.Second})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(true) })

	require.NoError(t, s.AddHook(Hook{
		Path:      "/submit",
		Protocols: ProtoHTTP,
		Handler: func(req *Request) *Response {
			vals := req.Post().All("a[]")
			return Text(StatusOK, strings.Join(vals, ","))
		},
	}))

	addr := s.Addr().String()
	payload := "a%5B%5D=1&a[]=2"
	raw := "POST /submit HTTP/1.1\r\nHost: example.com\r\n" +
		"Content-Type: application/x-www-form-urlencoded\r\n" +
		"Content-Length: " + strconv.Itoa(len(payload)) + "\r\n" +
		"Connection: close\r\n\r\n" + payload
	resp := dialAndSend(t, addr, raw)
	defer resp.Body.Close()
	require.Equal(t, StatusOK, resp.StatusCode)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "1,2", string(out))
}

func TestServerKeepAliveThenGentleStop(t *testing.T) {
	s := NewServer(Config{ReadTimeout: time.Second, KeepAliveTimeout: 2 * time.Second})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(true) })

	require.NoError(t, s.AddHook(Hook{
		Path:      "/ping",
		Protocols: ProtoHTTP,
		Handler: func(req *Request) *Response {
			return Text(StatusOK, "pong")
		},
	}))

	addr := s.Addr().String()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	br := bufio.NewReader(conn)

	for i := 0; i < 3; i++ {
		_, err := io.WriteString(conn, "GET /ping HTTP/1.1\r\nHost: example.com\r\n\r\n")
		require.NoError(t, err)
		conn.SetReadDeadline(time.Now().Add(time.Second))
		resp, err := http.ReadResponse(br, nil)
		require.NoError(t, err)
		out, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, "pong", string(out))
	}

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int64(0), s.Stats().ActiveHandlers())

	start := time.Now()
	s.Stop(false)
	select {
	case <-s.ShutdownComplete():
	case <-time.After(time.Second):
		t.Fatal("gentle stop did not complete within 1s")
	}
	require.LessOrEqual(t, time.Since(start), time.Second)
	require.Equal(t, int64(0), s.Stats().ActiveHandlers())
	require.Equal(t, int64(0), s.Stats().KeepAliveHandlers())
}

// TestServerMidResponseSocketClosureLogsOnce regression-tests §4.B: closing
// the client socket partway through a chunked response must be swallowed
// cleanly, with exactly one warning logged and no panic.
func TestServerMidResponseSocketClosureLogsOnce(t *testing.T) {
	var logBuf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logBuf)
	logger.SetLevel(logrus.WarnLevel)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	s := NewServer(Config{ReadTimeout: time.Second, KeepAliveTimeout: time.Second, Logger: logger})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(true) })

	started := make(chan struct{})
	var once bool
	chunk := bytes.Repeat([]byte("x"), 64*1024)
	require.NoError(t, s.AddHook(Hook{
		Path:      "/stream",
		Protocols: ProtoHTTP,
		Handler: func(req *Request) *Response {
			n := 0
			return NewResponse(StatusOK, NewDynamicProducer(func() ([]byte, error) {
				if !once {
					once = true
					close(started)
				}
				n++
				if n > 64 {
					return nil, io.EOF
				}
				return chunk, nil
			}))
		},
	}))

	addr := s.Addr().String()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	_, err = io.WriteString(conn, "GET /stream HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("handler never started producing")
	}
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(logBuf.String(), "mid-response socket closure")
	}, 2*time.Second, 10*time.Millisecond, "expected a mid-response socket closure warning")

	require.Equal(t, 1, strings.Count(logBuf.String(), "mid-response socket closure"))
}
