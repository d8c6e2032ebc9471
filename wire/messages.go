/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package wire defines the control-plane records exchanged on a transfer
// connection and the framing codec used to read and write them.
package wire

const (
	// ProtoVersion is the only header version this implementation emits
	// or accepts.
	ProtoVersion = 1

	typeHeader = "header"
	typeReady  = "ready"
	typeAck    = "ack"

	// DefaultTransferPort is the default TCP/TLS port for transfer
	// connections.
	DefaultTransferPort = 37373

	// DefaultDiscoveryPort is the UDP port the broadcast probe/responder
	// listens and replies on.
	DefaultDiscoveryPort = 37374

	// MDNSServiceType is the mDNS service type advertised by receivers
	// and browsed for by senders.
	MDNSServiceType = "_localsent._tcp"

	// DiscoverMagic is the exact ASCII payload of a UDP discovery probe.
	DiscoverMagic = "LOCAL_SENT_DISCOVER_V1"
)

// Header is the first record written by the sender on a connection.
type Header struct {
	Type         string `json:"type"`
	Version      int    `json:"version"`
	RelativePath string `json:"relative_path"`
	FileSize     int64  `json:"file_size"`
	Sha256Hex    string `json:"sha256_hex"`
	PairCode     string `json:"pair_code,omitempty"`
}

// NewHeader builds a Header with the fixed type and version fields set.
func NewHeader(relativePath string, fileSize int64, sha256Hex, pairCode string) Header {
	return Header{
		Type:         typeHeader,
		Version:      ProtoVersion,
		RelativePath: relativePath,
		FileSize:     fileSize,
		Sha256Hex:    sha256Hex,
		PairCode:     pairCode,
	}
}

// Ready is the receiver's reply to a Header.
type Ready struct {
	Type      string `json:"type"`
	OK        bool   `json:"ok"`
	Offset    int64  `json:"offset"`
	Message   string `json:"message,omitempty"`
	SavedPath string `json:"saved_path,omitempty"`
}

// ReadyOK builds a successful Ready record.
func ReadyOK(offset int64, savedPath string) Ready {
	return Ready{Type: typeReady, OK: true, Offset: offset, SavedPath: savedPath}
}

// ReadyFail builds a failed Ready record; the connection is expected to
// terminate once this has been written.
func ReadyFail(message string) Ready {
	return Ready{Type: typeReady, OK: false, Message: message}
}

// Ack is the receiver's final reply for a transfer.
type Ack struct {
	Type          string `json:"type"`
	OK            bool   `json:"ok"`
	Message       string `json:"message,omitempty"`
	Sha256Hex     string `json:"sha256_hex,omitempty"`
	ReceivedBytes int64  `json:"received_bytes,omitempty"`
	SavedPath     string `json:"saved_path,omitempty"`
	ResumedFrom   int64  `json:"resumed_from,omitempty"`
	NextPairCode  string `json:"next_pair_code,omitempty"`
}

// AckOK builds a successful Ack record.
func AckOK(sha256Hex string, receivedBytes, resumedFrom int64, savedPath, nextPairCode string) Ack {
	return Ack{
		Type:          typeAck,
		OK:            true,
		Sha256Hex:     sha256Hex,
		ReceivedBytes: receivedBytes,
		SavedPath:     savedPath,
		ResumedFrom:   resumedFrom,
		NextPairCode:  nextPairCode,
	}
}

// AckFail builds a failed Ack record.
func AckFail(message string) Ack {
	return Ack{Type: typeAck, OK: false, Message: message}
}
