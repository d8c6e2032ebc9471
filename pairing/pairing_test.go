/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pairing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sequenceGenerator(codes ...string) Generator {
	i := 0
	return GeneratorFunc(func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	})
}

func TestAdmitNilCodeAcceptsAnything(t *testing.T) {
	s, err := New("", Config{})
	require.NoError(t, err)
	require.True(t, s.Admit("anything", time.Now()))
	require.True(t, s.Admit("", time.Now()))
}

func TestAdmitRequiresCurrentOrGracePrevious(t *testing.T) {
	s, err := New("123456", Config{})
	require.NoError(t, err)
	require.True(t, s.Admit("123456", time.Now()))
	require.False(t, s.Admit("000000", time.Now()))
}

func TestRotatePerTransfer(t *testing.T) {
	gen := sequenceGenerator("654321", "111222", "333444")
	s, err := New("123456", Config{RotatePerTransfer: true, Generator: gen})
	require.NoError(t, err)

	next, err := s.RotatePerTransferIfConfigured()
	require.NoError(t, err)
	require.Equal(t, "654321", next)
	require.Equal(t, "654321", s.CurrentCode())
	require.Empty(t, s.Snapshot().Previous)

	// the old code is no longer accepted after per-transfer rotation
	require.False(t, s.Admit("123456", time.Now()))
	require.True(t, s.Admit("654321", time.Now()))
}

func TestTTLTickSkippedWhileActive(t *testing.T) {
	gen := sequenceGenerator("888888")
	s, err := New("777777", Config{TTL: time.Second, Generator: gen})
	require.NoError(t, err)
	s.BeginTransfer()
	s.Tick(time.Now())
	require.Equal(t, "777777", s.CurrentCode())
	require.Equal(t, 1, s.ActiveTransfers())
}

func TestTTLGraceWindow(t *testing.T) {
	gen := sequenceGenerator("888888", "999999", "121212")
	s, err := New("777777", Config{TTL: 2 * time.Second, Generator: gen})
	require.NoError(t, err)

	now := time.Now()
	s.Tick(now)
	require.Equal(t, "888888", s.CurrentCode())
	snap := s.Snapshot()
	require.Equal(t, "777777", snap.Previous)

	// within the grace window, the old code is still honored
	require.True(t, s.Admit("777777", now.Add(time.Second)))
	// once the grace window has elapsed, it is not
	require.False(t, s.Admit("777777", now.Add(3*time.Second)))
	require.True(t, s.Admit("888888", now.Add(3*time.Second)))
}

func TestDistinctCodeAvoidsCollision(t *testing.T) {
	// generator returns the current code twice before a new one
	calls := 0
	gen := GeneratorFunc(func() (string, error) {
		calls++
		if calls <= 2 {
			return "123456", nil
		}
		return "654321", nil
	})
	s, err := New("123456", Config{RotatePerTransfer: true, Generator: gen})
	require.NoError(t, err)
	next, err := s.RotatePerTransferIfConfigured()
	require.NoError(t, err)
	require.Equal(t, "654321", next)
}

func TestNewRequiresGeneratorWhenRotating(t *testing.T) {
	_, err := New("123456", Config{RotatePerTransfer: true})
	require.ErrorIs(t, err, ErrNoGenerator)
	_, err = New("123456", Config{TTL: time.Second})
	require.ErrorIs(t, err, ErrNoGenerator)
}
