/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package receiver

// ConfirmRequest is what a receive-confirm hook (C9) is invoked with,
// between header validation and ready emission.
type ConfirmRequest struct {
	From         string
	RelativePath string
	FileSize     int64
}

// ConfirmDecision is what a hook returns. Message is surfaced in the
// failure ready frame when Accept is false.
type ConfirmDecision struct {
	Accept  bool
	Message string
}

// ConfirmFunc is the optional out-of-band approval gate invoked between
// header validation and ready emission. Its absence means auto-accept.
// The receiver blocks on this call
// for the duration of one session, so a slow hook delays only its own
// connection, not others.
type ConfirmFunc func(req ConfirmRequest) (ConfirmDecision, error)
