/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package body

import (
	"os"

	"github.com/badu/hookhttp/hutil"
)

// memTracker enforces the invariant that total in-memory upload bytes
// never exceed spillThreshold: before any write would push the total over
// the line, it spills someone to disk first -- the largest in-memory
// upload strictly larger than the one currently being written, or failing
// that, the current upload itself.
type memTracker struct {
	threshold int64
	tempDir   string
	totalMem  int64
	inMemory  []*trackedUpload
}

func newMemTracker(threshold int64, tempDir string) *memTracker {
	return &memTracker{threshold: threshold, tempDir: tempDir}
}

type trackedUpload struct {
	tracker     *memTracker
	contentType string
	filename    string
	mem         []byte
	path        string
	f           *os.File
	size        int64
}

func (t *memTracker) newUpload(contentType, filename string) *trackedUpload {
	u := &trackedUpload{tracker: t, contentType: contentType, filename: filename}
	t.inMemory = append(t.inMemory, u)
	return u
}

// writeTo appends chunk to the upload, spilling as needed first to keep the
// tracker's total in-memory usage within threshold.
func (t *memTracker) writeTo(u *trackedUpload, chunk []byte) {
	if u.f != nil {
		u.f.Write(chunk)
		u.size += int64(len(chunk))
		return
	}
	prospective := t.totalMem + int64(len(chunk))
	if prospective > t.threshold {
		targetSize := u.size + int64(len(chunk))
		victim := t.largestInMemoryLargerThan(u, targetSize)
		if victim != nil {
			t.spillToDisk(victim)
		} else {
			t.spillToDisk(u)
			if u.f != nil {
				u.f.Write(chunk)
				u.size += int64(len(chunk))
				return
			}
		}
	}
	u.mem = append(u.mem, chunk...)
	u.size += int64(len(chunk))
	t.totalMem += int64(len(chunk))
}

func (u *trackedUpload) write(chunk []byte) {
	u.tracker.writeTo(u, chunk)
}

// largestInMemoryLargerThan scans the still-in-memory uploads (excluding
// exclude) for the largest one whose size is strictly greater than min.
func (t *memTracker) largestInMemoryLargerThan(exclude *trackedUpload, min int64) *trackedUpload {
	var best *trackedUpload
	for _, u := range t.inMemory {
		if u == exclude || u.f != nil {
			continue
		}
		if u.size > min && (best == nil || u.size > best.size) {
			best = u
		}
	}
	return best
}

func (t *memTracker) spillToDisk(u *trackedUpload) {
	path, f, err := hutil.RandomTempFilepath(t.tempDir)
	if err != nil {
		// Nothing sane to do without a temp file; keep it in memory and
		// let the invariant be approximately honored rather than losing
		// the upload outright.
		return
	}
	if len(u.mem) > 0 {
		f.Write(u.mem)
	}
	t.totalMem -= int64(len(u.mem))
	u.mem = nil
	u.path = path
	u.f = f
}

func (u *trackedUpload) finish() {
	if u.f != nil {
		u.f.Close()
	}
}

func (u *trackedUpload) toFileUpload() *FileUpload {
	return &FileUpload{
		ContentType: u.contentType,
		Filename:    u.filename,
		mem:         u.mem,
		path:        u.path,
		size:        u.size,
	}
}
