/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pathsafe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"a/./b":       "a/b",
		`a\b`:         "a/b",
		"///a//b":     "a/b",
		"./a/b":       "a/b",
		"a/b/":        "a/b",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestNormalizeRejectsTraversal(t *testing.T) {
	for _, in := range []string{"", ".", "..", "../a", "a/../b", "a/..", "/absolute/path"} {
		_, err := Normalize(in)
		if in == "/absolute/path" {
			// A leading slash is stripped, not rejected outright; but it
			// must never resolve outside the root once joined.
			got, nerr := Normalize(in)
			require.NoError(t, nerr)
			require.Equal(t, "absolute/path", got)
			continue
		}
		require.Error(t, err, in)
	}
}

func TestResolveStaysWithinRoot(t *testing.T) {
	root := t.TempDir()
	p, err := Resolve(root, "a/b.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "a", "b.txt"), p)
}

func TestResolveRejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve(root, "../escape.txt")
	require.Error(t, err)
}

func TestCandidate(t *testing.T) {
	require.Equal(t, "/out/x.txt", Candidate("/out/x.txt", 0))
	require.Equal(t, "/out/x(1).txt", Candidate("/out/x.txt", 1))
	require.Equal(t, "/out/x(10000).txt", Candidate("/out/x.txt", 10000))
}
