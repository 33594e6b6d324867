/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RandomTempFilepath creates a fresh, owner-read/write temp file under dir
// and returns its path together with the still-open handle. The caller
// owns the handle and is responsible for closing and, eventually,
// deleting it. dir is never created here -- per the body parser's
// contract, only the file itself is created.
func RandomTempFilepath(dir string) (path string, f *os.File, err error) {
	name := strings.ReplaceAll(uuid.New().String(), "-", "")
	path = filepath.Join(dir, name)
	f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", nil, err
	}
	return path, f, nil
}
