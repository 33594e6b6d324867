/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package body

import (
	"bufio"
	"io"
	"strings"

	"github.com/badu/hookhttp/urlkit"
)

// ParseURLEncoded streams an application/x-www-form-urlencoded body and
// returns the decoded ordered multimap. Bad pairs are tolerated: an empty
// key is skipped, and a second '=' in a pair folds into the value ("a=1=2"
// decodes to key "a", value "1=2").
func ParseURLEncoded(r io.Reader) (urlkit.Values, error) {
	v := urlkit.NewValues()
	br := bufio.NewReader(r)
	var pair strings.Builder
	flush := func() error {
		if pair.Len() == 0 {
			return nil
		}
		raw := pair.String()
		pair.Reset()
		key := raw
		value := ""
		if i := strings.IndexByte(raw, '='); i >= 0 {
			key, value = raw[:i], raw[i+1:]
		}
		dk, err := urlkit.Unescape(key)
		if err != nil || dk == "" {
			return nil
		}
		dv, err := urlkit.Unescape(value)
		if err != nil {
			dv = value
		}
		v.Add(dk, dv)
		return nil
	}
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			flush()
			return v, nil
		}
		if err != nil {
			return v, err
		}
		if b == '&' {
			flush()
			continue
		}
		pair.WriteByte(b)
	}
}
