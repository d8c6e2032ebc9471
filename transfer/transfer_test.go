/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTransferEntriesSingleFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("alpha"), 0o600))

	entries, err := BuildTransferEntries(p)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.txt", entries[0].RelativePath)
	require.EqualValues(t, 5, entries[0].SizeBytes)
}

func TestBuildTransferEntriesDirectorySortedByRelativePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "a.txt"), []byte("alpha"), 0o600))

	entries, err := BuildTransferEntries(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "b.txt", entries[0].RelativePath)
	require.Equal(t, "sub/a.txt", entries[1].RelativePath)
}

func TestBuildTransferEntriesRejectsEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildTransferEntries(dir)
	require.Error(t, err, "expected error for empty directory")
}

func TestBuildTransferEntriesRejectsMissingPath(t *testing.T) {
	_, err := BuildTransferEntries("/nonexistent/path")
	require.Error(t, err, "expected error for missing path")
}
