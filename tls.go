/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"net"
)

// TLSProvider is the external collaborator (§6) that owns certificates and
// cipher choice. Wrap turns a raw socket into a plaintext duplex stream;
// the core never parses a handshake itself beyond the SNI pre-peek below.
type TLSProvider interface {
	Wrap(raw net.Conn) (net.Conn, error)
}

// SNIAware is an optional TLSProvider extension: a provider implementing
// it receives the hostname the Listener peeked from the ClientHello before
// the handshake, e.g. to pick a certificate without its own SNI callback.
type SNIAware interface {
	TLSProvider
	WrapSNI(raw net.Conn, hostname string) (net.Conn, error)
}

// bufferedConn replays the bytes PeekClientHello looked at (and anything
// else the peek's bufio.Reader already pulled off the wire) ahead of the
// rest of the stream, so the real TLS handshake sees an unbroken byte
// sequence despite the pre-peek.
type bufferedConn struct {
	net.Conn
	br *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.br.Read(p) }

const (
	tlsRecordHandshake = 0x16
	tlsHandshakeHello  = 0x01
	tlsExtServerName   = 0
	tlsServerNameHost  = 0
)

// PeekClientHello reads exactly the bytes of a single-record ClientHello
// off br without consuming them, extracts the SNI hostname (extension
// type 0, name type 0) if present, and returns it along with the raw
// bytes peeked so the caller's plaintext stream can replay them ahead of
// the real TLS handshake. A malformed or absent SNI extension yields an
// empty hostname with a nil error; only failing to read the 5-byte record
// header is an error. A record that cannot be peeked whole yields an empty
// hostname, a nil error and just the 5 header bytes.
func PeekClientHello(br *bufio.Reader) (hostname string, original []byte, err error) {
	head, err := br.Peek(5)
	if err != nil {
		return "", nil, err
	}
	if head[0] != tlsRecordHandshake {
		return "", head, nil
	}
	recLen := int(head[3])<<8 | int(head[4])
	total := 5 + recLen
	buf, err := br.Peek(total)
	if err != nil {
		// Can't see the whole ClientHello in one record (e.g. it spans
		// multiple TLS records); replay what we have and skip SNI.
		return "", head, nil
	}
	body := buf[5:total]
	if len(body) < 4 || body[0] != tlsHandshakeHello {
		return "", buf, nil
	}
	msgLen := int(body[1])<<16 | int(body[2])<<8 | int(body[3])
	hello := body[4:]
	if len(hello) > msgLen {
		hello = hello[:msgLen]
	}
	name, ok := parseClientHelloSNI(hello)
	if !ok {
		return "", buf, nil
	}
	return name, buf, nil
}

func parseClientHelloSNI(b []byte) (string, bool) {
	// client_version(2) + random(32)
	if len(b) < 34 {
		return "", false
	}
	b = b[34:]

	sessionIDLen, b, ok := readByteLen(b)
	if !ok || len(b) < sessionIDLen {
		return "", false
	}
	b = b[sessionIDLen:]

	cipherSuitesLen, b, ok := readUint16Len(b)
	if !ok || len(b) < cipherSuitesLen {
		return "", false
	}
	b = b[cipherSuitesLen:]

	compressionLen, b, ok := readByteLen(b)
	if !ok || len(b) < compressionLen {
		return "", false
	}
	b = b[compressionLen:]

	if len(b) < 2 {
		return "", false
	}
	extsLen := int(b[0])<<8 | int(b[1])
	b = b[2:]
	if len(b) < extsLen {
		return "", false
	}
	b = b[:extsLen]

	for len(b) >= 4 {
		extType := int(b[0])<<8 | int(b[1])
		extLen := int(b[2])<<8 | int(b[3])
		b = b[4:]
		if len(b) < extLen {
			return "", false
		}
		data := b[:extLen]
		b = b[extLen:]
		if extType != tlsExtServerName {
			continue
		}
		if name, ok := parseServerNameExtension(data); ok {
			return name, true
		}
	}
	return "", false
}

func parseServerNameExtension(data []byte) (string, bool) {
	if len(data) < 2 {
		return "", false
	}
	listLen := int(data[0])<<8 | int(data[1])
	data = data[2:]
	if len(data) < listLen {
		return "", false
	}
	data = data[:listLen]
	for len(data) >= 3 {
		nameType := data[0]
		nameLen := int(data[1])<<8 | int(data[2])
		data = data[3:]
		if len(data) < nameLen {
			return "", false
		}
		name := data[:nameLen]
		data = data[nameLen:]
		if nameType == tlsServerNameHost {
			return string(name), true
		}
	}
	return "", false
}

func readByteLen(b []byte) (n int, rest []byte, ok bool) {
	if len(b) < 1 {
		return 0, nil, false
	}
	return int(b[0]), b[1:], true
}

func readUint16Len(b []byte) (n int, rest []byte, ok bool) {
	if len(b) < 2 {
		return 0, nil, false
	}
	return int(b[0])<<8 | int(b[1]), b[2:], true
}
