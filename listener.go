/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"net"
	"time"
)

// Listener is Component A: it accepts raw TCP sockets, applies a fixed
// 3-minute TCP keep-alive period, hands each one through the optional TLS
// collaborator, and otherwise never looks at a single HTTP byte.
type Listener struct {
	ln          net.Listener
	tlsProvider TLSProvider
}

// tlsPeekTimeout bounds how long Accept will block reading the ClientHello
// for SNI before handing off to the TLSProvider, so a slow or malicious
// client can't stall the single-threaded accept loop indefinitely.
const tlsPeekTimeout = 5 * time.Second

// Listen opens a TCP listening socket on addr ("host:port").
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// SetTLSProvider installs the external TLS collaborator used to wrap
// every accepted socket before it reaches the connection worker.
func (l *Listener) SetTLSProvider(p TLSProvider) { l.tlsProvider = p }

// Accept returns the next plaintext duplex stream, TLS-wrapped if a
// provider is configured.
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetKeepAlive(true)
		tcp.SetKeepAlivePeriod(3 * time.Minute)
	}
	if l.tlsProvider == nil {
		return conn, nil
	}

	conn.SetReadDeadline(time.Now().Add(tlsPeekTimeout))
	br := bufio.NewReader(conn)
	hostname, _, err := PeekClientHello(br)
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.Close()
		return nil, err
	}
	var preface net.Conn = conn
	if br.Buffered() > 0 {
		preface = &bufferedConn{Conn: conn, br: br}
	}

	wrapped, err := l.wrapTLS(preface, hostname)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return wrapped, nil
}

// wrapTLS hands the (possibly SNI-peeked) socket to the configured
// provider, using WrapSNI when the provider opts into the peeked hostname.
func (l *Listener) wrapTLS(raw net.Conn, hostname string) (net.Conn, error) {
	if sni, ok := l.tlsProvider.(SNIAware); ok {
		return sni.WrapSNI(raw, hostname)
	}
	return l.tlsProvider.Wrap(raw)
}

// Addr returns the listener's bound network address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }
