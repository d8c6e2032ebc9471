/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameReaderReadsRecords(t *testing.T) {
	src := strings.NewReader(`{"type":"header","version":1,"relative_path":"a.txt","file_size":5,"sha256_hex":"abc"}` + "\n" + "payload")
	fr := NewFrameReader(src)
	h, err := fr.ReadHeader()
	require.NoError(t, err)
	require.Equal(t, "a.txt", h.RelativePath)
	require.EqualValues(t, 5, h.FileSize)

	payload, err := io.ReadAll(fr.Payload())
	require.NoError(t, err)
	require.Equal(t, "payload", string(payload))
}

func TestFrameReaderClosedBeforeFrame(t *testing.T) {
	fr := NewFrameReader(strings.NewReader(`{"type":"header"`))
	_, err := fr.ReadHeader()
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection closed before header")
}

func TestFrameReaderTooLarge(t *testing.T) {
	big := strings.Repeat("a", MaxFrameSize+1)
	fr := NewFrameReader(strings.NewReader(big))
	_, err := fr.ReadFrame("header")
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFrameReaderAtBoundaryAccepted(t *testing.T) {
	// Total record size (payload + newline) of exactly MaxFrameSize is
	// within the inclusive "<=65536 B including the newline" bound.
	line := strings.Repeat("a", MaxFrameSize-1)
	fr := NewFrameReader(strings.NewReader(line + "\n"))
	got, err := fr.ReadFrame("header")
	require.NoError(t, err)
	require.Len(t, got, MaxFrameSize-1)
}

func TestFrameReaderOverBoundaryRejected(t *testing.T) {
	// A record whose payload alone is MaxFrameSize bytes pushes the total
	// frame past the inclusive bound once the newline is counted.
	line := strings.Repeat("a", MaxFrameSize)
	fr := NewFrameReader(strings.NewReader(line + "\n"))
	_, err := fr.ReadFrame("header")
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeader("a/b.txt", 10, strings.Repeat("0", 64), "123456")
	require.NoError(t, WriteFrame(&buf, h))
	require.True(t, strings.HasSuffix(buf.String(), "\n"))

	fr := NewFrameReader(&buf)
	got, err := fr.ReadHeader()
	require.NoError(t, err)
	require.Equal(t, h, got)
}
