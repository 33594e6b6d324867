/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package body implements the body parser component: streaming
// application/x-www-form-urlencoded and multipart/form-data decoding, with
// a spill-to-disk policy bounding how many upload bytes are ever held in
// memory at once.
package body

import (
	"bytes"
	"io"
	"os"

	"github.com/badu/hookhttp/urlkit"
)

// FileUpload is exactly one of two storage modes, mutated only by the
// parser: an in-memory buffer, or a file spilled to tempDir.
type FileUpload struct {
	ContentType string
	Filename    string

	mem  []byte
	path string
	size int64
}

// Size returns the upload's total byte count regardless of storage mode.
func (u *FileUpload) Size() int64 { return u.size }

// OnDisk reports whether this upload has been spilled to a temp file.
func (u *FileUpload) OnDisk() bool { return u.path != "" }

// Open returns a fresh reader over the upload's content. For an on-disk
// upload this opens the temp file; for an in-memory upload it wraps the
// buffer. The caller must Close the result.
func (u *FileUpload) Open() (io.ReadCloser, error) {
	if u.OnDisk() {
		f, err := os.Open(u.path)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return io.NopCloser(bytes.NewReader(u.mem)), nil
}

// Cleanup removes the backing temp file, if any. Safe to call on an
// in-memory upload (no-op). The connection worker registers this as a
// per-request cleanup callback.
func (u *FileUpload) Cleanup() error {
	if !u.OnDisk() {
		return nil
	}
	return os.Remove(u.path)
}

// Form is the result of parsing a request body: text fields plus file
// uploads, both keyed by the multipart/urlencoded field name.
type Form struct {
	Values urlkit.Values
	Files  map[string][]*FileUpload
}

func newForm() *Form {
	return &Form{Values: urlkit.NewValues(), Files: make(map[string][]*FileUpload)}
}
