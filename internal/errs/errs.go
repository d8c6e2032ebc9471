/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package errs defines the error-kind taxonomy used by the sender and
// receiver engines and the transfer-entry builder, so callers can
// classify a failure with IsProtocol, IsAuth and the other Is helpers
// instead of matching on message text. The helpers look at the
// outermost error only.
package errs

import (
	"fmt"
	"strings"
)

// Kind wraps an underlying error with one of the categories a
// control-frame failure or fatal abort falls into.
type Kind struct {
	kind string
	msg  string
	err  error
}

func (k *Kind) Error() string {
	if k.err != nil {
		return fmt.Sprintf("%s: %s: %v", k.kind, k.msg, k.err)
	}
	return fmt.Sprintf("%s: %s", k.kind, k.msg)
}

func (k *Kind) Unwrap() error { return k.err }

func newKind(kind, msg string, err error) *Kind {
	return &Kind{kind: kind, msg: msg, err: err}
}

// Protocol covers malformed or oversized frames, wrong message types,
// and unexpected bytes after a session has completed.
func Protocol(msg string, err error) error { return newKind("ProtocolError", msg, err) }

// Integrity covers sha256 mismatches and size mismatches.
func Integrity(msg string, err error) error { return newKind("IntegrityError", msg, err) }

// Auth covers pair-code mismatches and TLS fingerprint mismatch/change.
func Auth(msg string, err error) error { return newKind("AuthError", msg, err) }

// Path covers traversal attempts, non-regular-file sources, and
// unresolvable targets.
func Path(msg string, err error) error { return newKind("PathError", msg, err) }

// IO covers connection reset, broken pipe, and disk write failures.
func IO(msg string, err error) error { return newKind("IOError", msg, err) }

// Config covers cert/key imbalance, conflicting TLS flags, and pair
// rotation requested without a generator.
func Config(msg string, err error) error { return newKind("ConfigError", msg, err) }

// Discovery covers "no receiver found" and broadcast send failures.
func Discovery(msg string, err error) error { return newKind("DiscoveryError", msg, err) }

func isKind(err error, kind string) bool {
	k, ok := err.(*Kind)
	return ok && k.kind == kind
}

func IsProtocol(err error) bool  { return isKind(err, "ProtocolError") }
func IsIntegrity(err error) bool { return isKind(err, "IntegrityError") }
func IsAuth(err error) bool      { return isKind(err, "AuthError") }
func IsPath(err error) bool      { return isKind(err, "PathError") }
func IsIO(err error) bool        { return isKind(err, "IOError") }
func IsConfig(err error) bool    { return isKind(err, "ConfigError") }
func IsDiscovery(err error) bool { return isKind(err, "DiscoveryError") }

// resumablePatterns are substrings of an error's message, whatever its
// kind, that the sender engine treats as a resumable interrupt rather
// than a fatal abort.
var resumablePatterns = []string{
	"connection closed before ack",
	"connection reset",
	"broken pipe",
	"receiver rejected transfer",
	"connection closed before ready",
	"use of closed network connection",
	"EOF",
}

// Resumable reports whether err matches one of the interrupt patterns
// the sender engine may retry without re-picking the file.
func Resumable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range resumablePatterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
