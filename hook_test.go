/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hookhttp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func noopHandler(*Request) *Response { return nil }

func TestCompareSpecificityPathBeatsNoPath(t *testing.T) {
	withPath := Hook{Path: "/a"}
	withoutPath := Hook{}
	require.Negative(t, compareSpecificity(withPath, withoutPath))
	require.Positive(t, compareSpecificity(withoutPath, withPath))
}

func TestCompareSpecificityLongerPathFirst(t *testing.T) {
	longer := Hook{Path: "/a/b/c"}
	shorter := Hook{Path: "/a"}
	require.Negative(t, compareSpecificity(longer, shorter))
}

func TestCompareSpecificitySpecificPathBeatsPrefixPath(t *testing.T) {
	specific := Hook{Path: "/a", SpecificPath: true}
	prefix := Hook{Path: "/a"}
	require.Negative(t, compareSpecificity(specific, prefix))
}

func TestCompareSpecificityDomainBeatsNoDomain(t *testing.T) {
	withDomain := Hook{Domain: "example.com"}
	withoutDomain := Hook{}
	require.Negative(t, compareSpecificity(withDomain, withoutDomain))
}

func TestCompareSpecificityLongerDomainFirst(t *testing.T) {
	longer := Hook{Domain: "api.example.com"}
	shorter := Hook{Domain: "example.com"}
	require.Negative(t, compareSpecificity(longer, shorter))
}

func TestCompareSpecificityPortBeatsAnyPort(t *testing.T) {
	withPort := Hook{HasPort: true, Port: 8080}
	anyPort := Hook{}
	require.Negative(t, compareSpecificity(withPort, anyPort))
}

func TestHookSetInsertOrdersBySpecificity(t *testing.T) {
	var set HookSet
	require.NoError(t, set.Insert(Hook{Path: "/a", Handler: noopHandler}))
	require.NoError(t, set.Insert(Hook{Path: "/a/b/c", Handler: noopHandler}))
	require.NoError(t, set.Insert(Hook{Handler: noopHandler}))
	require.NoError(t, set.Insert(Hook{Path: "/a/b", Handler: noopHandler}))

	snap := set.Snapshot()
	require.Len(t, snap, 4)
	require.Equal(t, "/a/b/c", snap[0].Path)
	require.Equal(t, "/a/b", snap[1].Path)
	require.Equal(t, "/a", snap[2].Path)
	require.Equal(t, "", snap[3].Path)
}

func TestHookSetInsertRejectsDuplicateNonSkippableMatcher(t *testing.T) {
	var set HookSet
	h := Hook{Domain: "example.com", Path: "/x", Handler: noopHandler}
	require.NoError(t, set.Insert(h))
	err := set.Insert(h)
	require.ErrorIs(t, err, ErrDuplicateHook)
	require.Len(t, set.Snapshot(), 1)
}

func TestHookSetInsertAllowsDuplicateMatcherWhenSkippable(t *testing.T) {
	var set HookSet
	h := Hook{Domain: "example.com", Path: "/x", Skippable: true, Handler: noopHandler}
	require.NoError(t, set.Insert(h))
	require.NoError(t, set.Insert(h))
	require.Len(t, set.Snapshot(), 2)
}

func TestHookSetInsertAllowsDistinctMatchersAtSameSpecificity(t *testing.T) {
	var set HookSet
	require.NoError(t, set.Insert(Hook{Domain: "example.com", Handler: noopHandler}))
	require.NoError(t, set.Insert(Hook{Domain: "example.org", Handler: noopHandler}))
	require.Len(t, set.Snapshot(), 2)
}

func TestHookSetRemoveDeletesMatchingMatcher(t *testing.T) {
	var set HookSet
	h := Hook{Path: "/x", Handler: noopHandler}
	require.NoError(t, set.Insert(h))
	require.True(t, set.Remove(Hook{Path: "/x"}))
	require.Empty(t, set.Snapshot())
}

func TestHookSetRemoveReportsFalseWhenNotFound(t *testing.T) {
	var set HookSet
	require.False(t, set.Remove(Hook{Path: "/nope"}))
}
