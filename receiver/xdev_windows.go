//go:build windows
// +build windows

/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package receiver

// isCrossDevice is always false on Windows; renameio-style fallbacks
// are not applicable to NTFS's own cross-volume rename failure mode,
// which this implementation does not attempt to distinguish.
func isCrossDevice(err error) bool {
	return false
}
