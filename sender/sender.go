/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package sender implements the sender engine (C7): walk a batch of
// transfer entries, compute each file's digest, negotiate resume with
// the receiver, stream payload under backpressure, and chain rotated
// pair codes across the batch.
package sender

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wxl482/local-sent/digest"
	"github.com/wxl482/local-sent/internal/errs"
	"github.com/wxl482/local-sent/internal/logctx"
	"github.com/wxl482/local-sent/tlstrust"
	"github.com/wxl482/local-sent/transfer"
	"github.com/wxl482/local-sent/wire"
)

// progressMinInterval and progressMinDelta mirror the receiver's
// throttle: a progress line is emitted at most every 80ms, or sooner if
// at least 0.35% of the file has moved since the last emission.
const (
	progressMinInterval = 80 * time.Millisecond
	progressMinDelta    = 0.0035
	payloadChunkSize    = 64 * 1024
)

// TLSConfig names the sender-side TLS knobs. At most one pinning mode
// applies: expected-pin (Fingerprint set) or TOFU (TrustOnFirstUse);
// setting both is a config error. Insecure skips chain validation
// entirely, for self-signed testing only. With none of the three set,
// the certificate chain is validated against the system roots, or
// against CAPath when it is set.
type TLSConfig struct {
	Enabled         bool
	CAPath          string
	Insecure        bool
	Fingerprint     string
	TrustOnFirstUse bool
	KnownHostsPath  string
}

// Request is the send_entries programmatic surface.
type Request struct {
	Entries  []transfer.Entry
	Host     string
	Port     int
	PairCode string
	TLS      *TLSConfig
}

// EntryResult pairs one transfer entry with the ack the receiver
// returned for it.
type EntryResult struct {
	Entry transfer.Entry
	Ack   wire.Ack
}

// Result is the aggregate send_entries return value.
type Result struct {
	FileCount    int
	TotalBytes   int64
	ResumedBytes int64
	Results      []EntryResult
}

// ProgressFunc is invoked with one line of progress text
// (`[send name] p% (sent/total) rate/s ETA Ns`); a thin
// CLI collaborator may also get the same text via the Logger's Info
// sink, but callers that want it directly (e.g. a desktop bridge) can
// supply this instead of scraping logs.
type ProgressFunc func(line string)

// Option configures a single SendEntries call beyond the Request.
type Option func(*options)

type options struct {
	onProgress ProgressFunc
}

// WithProgress registers a callback invoked on every throttled progress
// emission, in addition to the logger.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.onProgress = fn }
}

// SendEntries processes req.Entries sequentially: one connection at a
// time, no intra-batch concurrency. A per-transfer pair code rotation
// observed in entry N's ack is used for entry N+1 before that entry's
// header is written, so a rotating receiver admits the whole batch.
func SendEntries(req Request, log *logctx.Logger, opts ...Option) (Result, error) {
	if log == nil {
		log = logctx.NewDiscard()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if req.Port == 0 {
		req.Port = wire.DefaultTransferPort
	}

	var res Result
	pairCode := req.PairCode
	for _, entry := range req.Entries {
		ack, err := sendOne(req, entry, pairCode, log, &o)
		if err != nil {
			return res, err
		}
		res.FileCount++
		res.TotalBytes += entry.SizeBytes
		res.ResumedBytes += ack.ResumedFrom
		res.Results = append(res.Results, EntryResult{Entry: entry, Ack: ack})
		if ack.NextPairCode != "" {
			pairCode = ack.NextPairCode
		}
	}
	return res, nil
}

// sendOne drives the full header/ready/payload/ack sequence on one
// connection for one entry and returns the ack it received.
func sendOne(req Request, entry transfer.Entry, pairCode string, log *logctx.Logger, o *options) (wire.Ack, error) {
	slog := log.With(logctx.KV("relative_path", entry.RelativePath))

	fi, err := os.Stat(entry.AbsoluteSourcePath)
	if err != nil {
		return wire.Ack{}, errs.Path("cannot stat source file", err)
	}
	if !fi.Mode().IsRegular() {
		return wire.Ack{}, errs.Path("source is not a regular file", nil)
	}
	fileSize := fi.Size()

	sum, err := digest.FileSha256Hex(entry.AbsoluteSourcePath)
	if err != nil {
		return wire.Ack{}, errs.IO("failed to hash source file", err)
	}

	conn, fingerprint, err := dial(req.Host, req.Port, req.TLS, slog)
	if err != nil {
		return wire.Ack{}, err
	}
	defer conn.Close()
	if fingerprint != "" {
		slog.Debug("tls handshake complete", logctx.KV("fingerprint", fingerprint))
	}

	header := wire.NewHeader(entry.RelativePath, fileSize, sum, pairCode)
	if err := wire.WriteFrame(conn, header); err != nil {
		return wire.Ack{}, resumableIO("failed to write header", err)
	}

	fr := wire.NewFrameReader(conn)
	ready, err := fr.ReadReady()
	if err != nil {
		return wire.Ack{}, resumableIO("connection closed before ready", err)
	}
	if !ready.OK {
		return wire.Ack{}, errs.Auth(fmt.Sprintf("receiver rejected transfer: %s", ready.Message), nil)
	}
	if ready.Offset < 0 || ready.Offset > fileSize {
		return wire.Ack{}, errs.Protocol("ready offset out of range", nil)
	}

	if ready.Offset < fileSize {
		if err := streamPayload(conn, entry, fileSize, ready.Offset, slog, o); err != nil {
			return wire.Ack{}, err
		}
	}
	closeWrite(conn)

	ack, err := fr.ReadAck()
	if err != nil {
		return wire.Ack{}, resumableIO("connection closed before ack", err)
	}
	if !ack.OK {
		return wire.Ack{}, errs.Integrity(fmt.Sprintf("transfer failed: %s", ack.Message), nil)
	}
	slog.Info("sent", logctx.KV("saved_path", ack.SavedPath), logctx.KV("resumed_from", ack.ResumedFrom))
	return ack, nil
}

// streamPayload copies the file from offset to EOF onto conn, emitting
// throttled progress lines and respecting backpressure: each Write
// blocks the reader until the receiver drains the previous chunk, so
// the source pauses whenever the socket would block and resumes on
// drain.
func streamPayload(conn net.Conn, entry transfer.Entry, fileSize, offset int64, log *logctx.ScopedLogger, o *options) error {
	f, err := os.Open(entry.AbsoluteSourcePath)
	if err != nil {
		return errs.IO("failed to reopen source file", err)
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return errs.IO("failed to seek source file", err)
		}
	}

	buf := make([]byte, payloadChunkSize)
	sent := offset
	lastEmit := time.Time{}
	lastFrac := -1.0
	start := time.Now()

	for sent < fileSize {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				return resumableIO("failed to write payload", werr)
			}
			sent += int64(n)

			now := time.Now()
			frac := float64(sent) / float64(fileSize)
			if now.Sub(lastEmit) >= progressMinInterval || frac-lastFrac >= progressMinDelta || sent == fileSize {
				line := progressLine("send", entry.RelativePath, sent, fileSize, start)
				log.Info(line)
				if o.onProgress != nil {
					o.onProgress(line)
				}
				lastEmit = now
				lastFrac = frac
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return errs.IO("failed to read source file", rerr)
		}
	}
	if sent != fileSize {
		return errs.IO("source file changed size during transfer", nil)
	}
	return nil
}

// progressLine formats the `[send|recv name] p% (sent/total) rate/s ETA
// Ns` line collaborators may parse.
func progressLine(verb, name string, sent, total int64, start time.Time) string {
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(sent) / float64(total)
	}
	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(sent) / elapsed
	}
	eta := 0.0
	if rate > 0 {
		eta = float64(total-sent) / rate
	}
	return fmt.Sprintf("[%s %s] %.1f%% (%d/%d) %.0f/s ETA %.0fs", verb, name, pct, sent, total, rate, eta)
}

// closeWrite half-closes the write side once payload streaming is done,
// mirroring the receiver's own half-close after a failure frame.
func closeWrite(conn net.Conn) {
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}

// resumableIO wraps an I/O failure as an errs.IO. errs.Resumable reports
// the result as resumable when msg or err's text contains one of its
// interrupt patterns; this function adds no pattern of its own.
func resumableIO(msg string, err error) error {
	return errs.IO(msg, err)
}

// dial opens a TCP or TLS connection to host:port. For TLS it performs
// the pin or TOFU trust check immediately after the handshake completes
// and before any payload bytes are written, returning the negotiated
// peer fingerprint for logging.
func dial(host string, port int, tlsCfg *TLSConfig, log *logctx.ScopedLogger) (net.Conn, string, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if tlsCfg == nil || !tlsCfg.Enabled {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, "", resumableIO("failed to connect", err)
		}
		return conn, "", nil
	}

	if tlsCfg.Fingerprint != "" && tlsCfg.TrustOnFirstUse {
		return nil, "", errs.Config("expected-pin and trust-on-first-use are mutually exclusive", nil)
	}

	cfg := &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: tlsCfg.Insecure || tlsCfg.Fingerprint != "" || tlsCfg.TrustOnFirstUse,
	}
	if tlsCfg.CAPath != "" {
		pool, err := loadCAPool(tlsCfg.CAPath)
		if err != nil {
			return nil, "", errs.Config("failed to load CA certificate", err)
		}
		cfg.RootCAs = pool
		cfg.InsecureSkipVerify = false
	}

	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, "", resumableIO("failed to establish TLS connection", err)
	}

	fingerprint, err := tlstrust.PeerFingerprint(conn.ConnectionState())
	if err != nil {
		conn.Close()
		return nil, "", errs.Auth("failed to extract peer fingerprint", err)
	}

	// KnownHosts keys are lowercase host:port; lowercase here since
	// neither tlstrust.Open's Lookup nor CheckOrTrust normalizes case
	// themselves.
	hostport := net.JoinHostPort(strings.ToLower(host), strconv.Itoa(port))
	switch {
	case tlsCfg.Fingerprint != "":
		if verr := tlstrust.VerifyExpectedPin(tlsCfg.Fingerprint, fingerprint); verr != nil {
			conn.Close()
			return nil, "", errs.Auth(verr.Error(), verr)
		}
	case tlsCfg.TrustOnFirstUse:
		khPath := tlsCfg.KnownHostsPath
		if khPath == "" {
			var perr error
			khPath, perr = tlstrust.DefaultKnownHostsPath()
			if perr != nil {
				conn.Close()
				return nil, "", errs.Config("failed to resolve known-hosts path", perr)
			}
		}
		kh := tlstrust.Open(khPath)
		firstUse, terr := kh.CheckOrTrust(hostport, fingerprint)
		if terr != nil {
			conn.Close()
			return nil, "", errs.Auth(terr.Error(), terr)
		}
		if firstUse {
			log.Info("trust on first use", logctx.KV("host", hostport), logctx.KV("fingerprint", fingerprint))
		}
	case tlsCfg.Insecure:
		// Chain validation and pinning both skipped; self-signed testing
		// only.
	}

	return conn, fingerprint, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(b) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
