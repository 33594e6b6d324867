/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package body

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMultipart(boundary string) string {
	var b strings.Builder
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"field1\"\r\n\r\n")
	b.WriteString("value1")
	b.WriteString("\r\n--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"file1\"; filename=\"a.txt\"\r\n")
	b.WriteString("Content-Type: text/plain\r\n\r\n")
	b.WriteString(strings.Repeat("x", 5000))
	b.WriteString("\r\n--" + boundary + "--\r\n")
	return b.String()
}

// nByteReader returns at most n bytes per Read, forcing the scanner through
// its refill path at every n-byte step of the body.
type nByteReader struct {
	r io.Reader
	n int
}

func (o nByteReader) Read(p []byte) (int, error) {
	if len(p) > o.n {
		p = p[:o.n]
	}
	return o.r.Read(p)
}

func TestParseMultipartChunkingInvariance(t *testing.T) {
	raw := buildMultipart("XYZ")
	chunkSizes := []int{1, 3, 17, 4096, len(raw)}
	var results []*Form
	for _, cs := range chunkSizes {
		var r io.Reader = nByteReader{r: strings.NewReader(raw), n: cs}
		form, err := ParseMultipart(r, "XYZ", t.TempDir(), 1<<20)
		require.NoError(t, err)
		results = append(results, form)
	}
	for _, form := range results {
		require.Equal(t, "value1", form.Values.Get("field1"))
		require.Len(t, form.Files["file1"], 1)
		require.Equal(t, int64(5000), form.Files["file1"][0].Size())
	}
}

func TestParseMultipartDiscardsPartWithoutName(t *testing.T) {
	boundary := "B"
	raw := "--" + boundary + "\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"orphan" +
		"\r\n--" + boundary + "--\r\n"
	form, err := ParseMultipart(strings.NewReader(raw), boundary, t.TempDir(), 1<<20)
	require.NoError(t, err)
	require.Empty(t, form.Values.Keys())
	require.Empty(t, form.Files)
}

func TestParseMultipartSpillsLargestWhenThresholdExceeded(t *testing.T) {
	boundary := "B"
	var b strings.Builder
	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"small\"; filename=\"s.bin\"\r\n\r\n")
	b.WriteString(strings.Repeat("a", 100))
	b.WriteString("\r\n--" + boundary + "\r\n")
	b.WriteString("Content-Disposition: form-data; name=\"big\"; filename=\"b.bin\"\r\n\r\n")
	b.WriteString(strings.Repeat("b", 200))
	b.WriteString("\r\n--" + boundary + "--\r\n")

	form, err := ParseMultipart(strings.NewReader(b.String()), boundary, t.TempDir(), 250)
	require.NoError(t, err)

	small := form.Files["small"][0]
	big := form.Files["big"][0]
	require.Equal(t, int64(100), small.Size())
	require.Equal(t, int64(200), big.Size())
	// Writing "big" would push memory to 300 > 250; no in-memory upload is
	// larger than big's 200 bytes, so big itself -- not "small" -- is the
	// one spilled to disk.
	require.True(t, big.OnDisk())
	require.False(t, small.OnDisk())
}

func TestParseMultipartPrematureEOFFinalizesOpenPart(t *testing.T) {
	boundary := "B"
	raw := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"field1\"\r\n\r\n" +
		"partial-value-no-terminator"
	form, err := ParseMultipart(strings.NewReader(raw), boundary, t.TempDir(), 1<<20)
	require.NoError(t, err)
	require.Equal(t, "partial-value-no-terminator", form.Values.Get("field1"))
}

func TestParseMultipartRejectsLongBoundary(t *testing.T) {
	_, err := ParseMultipart(strings.NewReader(""), strings.Repeat("x", 1025), t.TempDir(), 1<<20)
	require.ErrorIs(t, err, ErrBoundaryTooLong)
}
