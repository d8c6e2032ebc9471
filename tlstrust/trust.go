/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package tlstrust implements peer certificate fingerprint pinning and
// trust-on-first-use persistence for the transfer TLS connections.
package tlstrust

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrFingerprintMismatch is returned when a peer's certificate does not
// match the pinned expected fingerprint.
var ErrFingerprintMismatch = errors.New("TLS fingerprint mismatch")

// ErrFingerprintChanged is returned when a TOFU known-hosts entry exists
// for an endpoint and the peer now presents a different fingerprint.
var ErrFingerprintChanged = errors.New("TLS fingerprint changed")

// Fingerprint returns the lowercase hex SHA-256 digest of a certificate's
// raw DER encoding.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// PeerFingerprint extracts the leaf certificate's fingerprint from a
// completed TLS connection state. It is an error to call this before
// the handshake has completed or if the peer presented no certificate.
func PeerFingerprint(state tls.ConnectionState) (string, error) {
	if len(state.PeerCertificates) == 0 {
		return "", errors.New("no peer certificate presented")
	}
	return Fingerprint(state.PeerCertificates[0]), nil
}

// VerifyExpectedPin fails with ErrFingerprintMismatch if got does not
// case-insensitively equal expected.
func VerifyExpectedPin(expected, got string) error {
	if !equalFold64(expected, got) {
		return fmt.Errorf("%w: expected %s, got %s", ErrFingerprintMismatch, expected, got)
	}
	return nil
}

func equalFold64(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
