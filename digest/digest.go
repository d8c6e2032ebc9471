/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package digest streams SHA-256 over file prefixes and live payload
// bytes, both for computing the content hash a sender advertises and for
// verifying what a receiver actually wrote to disk.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// Streaming wraps a running SHA-256 computation. Every payload buffer
// the caller writes to disk must also be passed through Write so the
// digest reflects exactly what landed on disk.
type Streaming struct {
	h hash.Hash
}

// New starts a fresh streaming digest.
func New() *Streaming {
	return &Streaming{h: sha256.New()}
}

// Write feeds b into the running digest. It never fails.
func (s *Streaming) Write(b []byte) {
	s.h.Write(b)
}

// SumHex returns the lowercase 64-character hex digest accumulated so
// far.
func (s *Streaming) SumHex() string {
	return hex.EncodeToString(s.h.Sum(nil))
}

// SeedFromFile pre-seeds the running digest with the first n bytes of
// the file at path, as required when resuming a partially-received
// transfer. It fails if the file is shorter than n bytes.
func (s *Streaming) SeedFromFile(path string, n int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyN(s.h, f, n)
	return err
}

// FileSha256Hex computes the full SHA-256 digest of the file at path.
func FileSha256Hex(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReaderSha256Hex computes the SHA-256 digest of everything read from r.
func ReaderSha256Hex(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsHex64 reports whether s looks like a lowercase 64-character hex
// SHA-256 digest.
func IsHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
