/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamingSumHexMatchesFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.bin")
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(p, data, 0o644))

	want, err := FileSha256Hex(p)
	require.NoError(t, err)

	s := New()
	s.Write(data)
	require.Equal(t, want, s.SumHex())
}

func TestSeedFromFilePartial(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.bin")
	data := []byte("hello world")
	require.NoError(t, os.WriteFile(p, data, 0o644))

	s := New()
	require.NoError(t, s.SeedFromFile(p, 5))
	s.Write(data[5:])
	want, err := FileSha256Hex(p)
	require.NoError(t, err)
	require.Equal(t, want, s.SumHex())
}

func TestIsHex64(t *testing.T) {
	require.True(t, IsHex64(strings.Repeat("a", 64)))
	require.False(t, IsHex64(strings.Repeat("a", 63)))
	require.False(t, IsHex64(strings.Repeat("A", 64)))
	require.False(t, IsHex64(strings.Repeat("g", 64)))
}
