/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteChunkedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeChunked(&buf, []byte("hello ")))
	require.NoError(t, writeChunked(&buf, []byte("world")))
	require.NoError(t, writeChunkedTerminator(&buf))

	r := newChunkReader(bufio.NewReader(&buf))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestWriteChunkedEmptyWriteIsNoop(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeChunked(&buf, nil))
	require.Equal(t, 0, buf.Len())
}

func TestChunkReaderHonorsSmallBuffers(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeChunked(&buf, []byte(strings.Repeat("a", 10))))
	require.NoError(t, writeChunkedTerminator(&buf))

	r := newChunkReader(bufio.NewReader(&buf))
	var out []byte
	p := make([]byte, 3)
	for {
		n, err := r.Read(p)
		out = append(out, p[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	require.Equal(t, strings.Repeat("a", 10), string(out))
}

func TestChunkReaderRejectsBadHexSize(t *testing.T) {
	r := newChunkReader(bufio.NewReader(strings.NewReader("zz\r\nabc\r\n0\r\n\r\n")))
	_, err := io.ReadAll(r)
	require.Error(t, err)
}

func TestChunkReaderTruncatedStreamErrors(t *testing.T) {
	r := newChunkReader(bufio.NewReader(strings.NewReader("5\r\nabc")))
	_, err := io.ReadAll(r)
	require.Error(t, err)
}
