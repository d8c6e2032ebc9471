//go:build !linux
// +build !linux

/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package discovery

import "syscall"

// enableBroadcast is a no-op on platforms where the standard library's
// UDP socket already permits broadcast sends without an explicit
// SO_BROADCAST opt-in (or where a bespoke syscall path has not been
// written); see broadcast_linux.go for the Linux case that needs it.
func enableBroadcast(network, address string, c syscall.RawConn) error {
	return nil
}

// reuseAddr is a no-op on platforms without a bespoke SO_REUSEADDR path.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
