/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package receiver

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/wxl482/local-sent/digest"
	"github.com/wxl482/local-sent/internal/errs"
	"github.com/wxl482/local-sent/internal/logctx"
	"github.com/wxl482/local-sent/wire"
)

// payloadChunkSize is the buffer size used to read payload bytes off
// the connection and write them to the temp file.
const payloadChunkSize = 64 * 1024

// progressMinInterval and progressMinDelta throttle progress emission
// to at most one line per 80ms, or sooner once 0.35% of the file has
// moved since the last emission.
const (
	progressMinInterval = 80 * time.Millisecond
	progressMinDelta    = 0.0035
)

// handleConn runs one receive session start to finish: header, pair
// admission, target selection, optional confirmation, resume offset,
// payload streaming, digest verification, promotion, and ack.
func (r *Receiver) handleConn(conn net.Conn, log *logctx.ScopedLogger) error {
	fr := wire.NewFrameReader(conn)

	header, err := fr.ReadHeader()
	if err != nil {
		return errs.Protocol("failed to read header", err)
	}
	if header.Type != "header" || header.Version != wire.ProtoVersion || header.FileSize < 0 || !digest.IsHex64(header.Sha256Hex) {
		writeReadyFail(conn, "malformed header")
		return errs.Protocol("malformed header", nil)
	}
	log.Info("header received", logctx.KV("relative_path", header.RelativePath), logctx.KV("file_size", header.FileSize))

	r.pairing.BeginTransfer()
	defer r.pairing.EndTransfer()

	if !r.pairing.Admit(header.PairCode, time.Now()) {
		writeReadyFail(conn, "pair code mismatch")
		return errs.Auth("pair code mismatch", nil)
	}

	finalPath, tempPath, base, startIdx, _, err := chooseTargetPaths(r.cfg.OutputDir, header)
	if err != nil {
		writeReadyFail(conn, "path escapes output directory")
		return errs.Path("failed to choose target path", err)
	}

	if r.cfg.ConfirmTransfer != nil {
		decision, err := r.cfg.ConfirmTransfer(ConfirmRequest{
			From:         peerHost(conn),
			RelativePath: header.RelativePath,
			FileSize:     header.FileSize,
		})
		if err != nil || !decision.Accept {
			msg := decision.Message
			if msg == "" {
				msg = "transfer rejected"
			}
			writeReadyFail(conn, msg)
			return errs.Auth("transfer not confirmed", err)
		}
	}

	offset, hasher, err := prepareResume(tempPath, header.FileSize, header.Sha256Hex)
	if err != nil {
		writeReadyFail(conn, "failed to inspect existing partial file")
		return errs.IO("failed to prepare resume", err)
	}

	// Opened regardless of whether there is payload left to receive: a
	// zero-byte file, or an already-fully-matched resume, still needs
	// the temp file to exist on disk before promotion.
	f, err := openTempFile(tempPath, offset)
	if err != nil {
		writeReadyFail(conn, "failed to open destination file")
		return errs.IO("failed to open temp file", err)
	}

	if err := wire.WriteFrame(conn, wire.ReadyOK(offset, finalPath)); err != nil {
		f.Close()
		return errs.IO("failed to write ready", err)
	}

	received := offset
	if offset < header.FileSize {
		n, err := receivePayload(fr, f, hasher, header, offset, log)
		received = n
		closeErr := f.Close()
		if err != nil {
			os.Remove(tempPath)
			writeAckFail(conn, err.Error())
			return err
		}
		if closeErr != nil {
			os.Remove(tempPath)
			writeAckFail(conn, "failed to flush destination file")
			return errs.IO("failed to close temp file", closeErr)
		}
	} else if err := f.Close(); err != nil {
		os.Remove(tempPath)
		writeAckFail(conn, "failed to flush destination file")
		return errs.IO("failed to close temp file", err)
	}

	if received != header.FileSize {
		os.Remove(tempPath)
		writeAckFail(conn, "received size does not match file size")
		return errs.Integrity("received size mismatch", nil)
	}

	if hasher.SumHex() != header.Sha256Hex {
		os.Remove(tempPath)
		writeAckFail(conn, "sha256 mismatch")
		return errs.Integrity("sha256 mismatch", nil)
	}

	savedPath, err := promote(tempPath, base, startIdx)
	if err != nil {
		writeAckFail(conn, "failed to finalize file")
		return errs.IO("failed to promote temp file", err)
	}

	nextCode, err := r.pairing.RotatePerTransferIfConfigured()
	if err != nil {
		log.Warn("pair code rotation failed", logctx.KVErr(err))
	}
	if nextCode == "" {
		// A sender admitted under the grace-window previous code learns
		// the rotated current code here, so the rest of its batch keeps
		// flowing after a TTL rotation.
		if cur := r.pairing.CurrentCode(); cur != "" && header.PairCode != cur {
			nextCode = cur
		}
	}

	ack := wire.AckOK(header.Sha256Hex, header.FileSize, offset, savedPath, nextCode)
	if err := wire.WriteFrame(conn, ack); err != nil {
		return errs.IO("failed to write ack", err)
	}
	closeWrite(conn)
	log.Info("saved", logctx.KV("saved_path", savedPath), logctx.KV("resumed_from", offset))
	return nil
}

// receivePayload reads exactly fileSize-offset bytes from the
// connection's payload stream, writing each chunk to f and feeding it
// to hasher, enforcing that received bytes never exceed the declared
// file size.
func receivePayload(fr *wire.FrameReader, f *os.File, hasher *digest.Streaming, header wire.Header, offset int64, log *logctx.ScopedLogger) (int64, error) {
	payload := fr.Payload()
	fileSize := header.FileSize
	received := offset
	buf := make([]byte, payloadChunkSize)

	start := time.Now()
	lastEmit := time.Time{}
	lastFrac := -1.0

	for received < fileSize {
		want := fileSize - received
		readLen := int64(len(buf))
		if want < readLen {
			readLen = want
		}
		n, err := payload.Read(buf[:readLen])
		if n > 0 {
			if received+int64(n) > fileSize {
				return received, errs.Protocol("payload exceeds declared file size", nil)
			}
			hasher.Write(buf[:n])
			if _, werr := f.Write(buf[:n]); werr != nil {
				return received, errs.IO("failed to write payload", werr)
			}
			received += int64(n)

			now := time.Now()
			frac := float64(received) / float64(fileSize)
			if now.Sub(lastEmit) >= progressMinInterval || frac-lastFrac >= progressMinDelta || received == fileSize {
				log.Info(progressLine(header.RelativePath, received, fileSize, start))
				lastEmit = now
				lastFrac = frac
			}
		}
		if err != nil {
			if err == io.EOF && received == fileSize {
				break
			}
			return received, errs.IO("connection closed before ack", err)
		}
	}
	return received, nil
}

// progressLine formats the receiver half of the `[send|recv name] p%
// (received/total) rate/s ETA Ns` stream collaborators may parse.
func progressLine(name string, received, total int64, start time.Time) string {
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(received) / float64(total)
	}
	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(received) / elapsed
	}
	eta := 0.0
	if rate > 0 {
		eta = float64(total-received) / rate
	}
	return fmt.Sprintf("[recv %s] %.1f%% (%d/%d) %.0f/s ETA %.0fs", name, pct, received, total, rate, eta)
}

func writeReadyFail(conn net.Conn, message string) {
	wire.WriteFrame(conn, wire.ReadyFail(message))
	closeWrite(conn)
}

func writeAckFail(conn net.Conn, message string) {
	wire.WriteFrame(conn, wire.AckFail(message))
	closeWrite(conn)
}

// closeWrite half-closes the write side of conn if it supports it
// (*net.TCPConn and *tls.Conn both do), leaving the read side open so
// the peer's own half-close can still be observed.
func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}
