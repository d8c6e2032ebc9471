/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package receiver implements the receiver engine (C8) and its
// receive-confirm hook (C9): accept connections, validate headers,
// choose target paths, compute resume offsets, stream payload to a temp
// file, verify its digest, promote it, and reply with an ack.
package receiver

import (
	"crypto/tls"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wxl482/local-sent/discovery"
	"github.com/wxl482/local-sent/internal/errs"
	"github.com/wxl482/local-sent/internal/logctx"
	"github.com/wxl482/local-sent/pairing"
	"github.com/wxl482/local-sent/wire"
)

// TLSConfig names the cert/key pair a receiver listens with.
type TLSConfig struct {
	CertPath string
	KeyPath  string
}

// Config enumerates everything a caller can set when starting a
// receiver.
type Config struct {
	Port              int
	OutputDir         string
	ServiceName       string
	PairCode          string
	RotatePerTransfer bool
	PairTTLSeconds    int
	GeneratePairCode  pairing.Generator
	OnPairCodeChange  func(string)
	ConfirmTransfer   ConfirmFunc
	TLS               *TLSConfig
	// PairCheckpointPath, if set, persists the current/previous pair
	// code pair to this path after every rotation (per-transfer or
	// TTL-driven) and restores it on Start, so a receiver restart does
	// not silently drop back to its configured fixed code while a
	// sender mid-batch still holds a rotated one.
	PairCheckpointPath  string
	shutdownGracePeriod time.Duration // overridable by tests; defaults to 2s
}

// Receiver owns the listener, the mDNS/UDP advertiser, the pairing
// state, and the set of in-flight session connections.
type Receiver struct {
	cfg      Config
	log      *logctx.Logger
	listener net.Listener
	pairing  *pairing.State
	advert   *discovery.Advertiser
	stopTTL  func()

	wg sync.WaitGroup

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
}

// Start builds the listener (plain TCP or TLS per cfg.TLS), the
// advertiser, and the pairing state, and begins accepting connections in
// a background goroutine. Call Stop to shut everything down.
func Start(cfg Config, log *logctx.Logger) (*Receiver, error) {
	if log == nil {
		log = logctx.NewDiscard()
	}
	if cfg.Port == 0 {
		cfg.Port = wire.DefaultTransferPort
	}
	if (cfg.RotatePerTransfer || cfg.PairTTLSeconds > 0) && cfg.GeneratePairCode == nil {
		cfg.GeneratePairCode = pairing.DefaultGenerator
	}

	var pst *pairing.State
	userHook := cfg.OnPairCodeChange
	onRotate := userHook
	if cfg.PairCheckpointPath != "" {
		checkpointPath := cfg.PairCheckpointPath
		onRotate = func(newCode string) {
			if userHook != nil {
				userHook(newCode)
			}
			if cerr := pst.Checkpoint(checkpointPath); cerr != nil {
				log.Warn("failed to checkpoint pair code", logctx.KVErr(cerr))
			}
		}
	}

	var err error
	pst, err = pairing.New(cfg.PairCode, pairing.Config{
		RotatePerTransfer: cfg.RotatePerTransfer,
		TTL:               time.Duration(cfg.PairTTLSeconds) * time.Second,
		Generator:         cfg.GeneratePairCode,
		OnRotate:          onRotate,
	})
	if err != nil {
		return nil, errs.Config("failed to initialize pairing state", err)
	}

	if cfg.PairCheckpointPath != "" {
		if err := pst.LoadCheckpoint(cfg.PairCheckpointPath); err != nil && err != pairing.ErrNoCheckpoint {
			return nil, errs.Config("failed to load pair checkpoint", err)
		}
	}

	listener, err := listen(cfg)
	if err != nil {
		return nil, errs.IO("failed to bind listener", err)
	}

	advert, err := discovery.Advertise(cfg.ServiceName, cfg.Port)
	if err != nil {
		listener.Close()
		return nil, errs.Discovery("failed to advertise service", err)
	}

	r := &Receiver{
		cfg:      cfg,
		log:      log,
		listener: listener,
		pairing:  pst,
		advert:   advert,
		conns:    map[net.Conn]struct{}{},
	}
	r.stopTTL = pst.StartTTLTicker()

	r.wg.Add(1)
	go r.acceptLoop()
	return r, nil
}

func listen(cfg Config) (net.Listener, error) {
	addr := net.JoinHostPort("", strconv.Itoa(cfg.Port))
	if cfg.TLS == nil {
		return net.Listen("tcp", addr)
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertPath, cfg.TLS.KeyPath)
	if err != nil {
		return nil, err
	}
	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	return tls.Listen("tcp", addr, tlsCfg)
}

// Stop closes the listener, tears down discovery, cancels the TTL
// rotation ticker, and forcibly closes any still-open session
// connections after a 2-second grace period.
func (r *Receiver) Stop() {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	r.listener.Close()
	r.advert.Stop()
	r.stopTTL()

	grace := r.cfg.shutdownGracePeriod
	if grace == 0 {
		grace = 2 * time.Second
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		r.mu.Lock()
		for c := range r.conns {
			c.Close()
		}
		r.mu.Unlock()
		r.wg.Wait()
	}
}

func (r *Receiver) isClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closing
}

func (r *Receiver) trackConn(c net.Conn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

func (r *Receiver) untrackConn(c net.Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
}

func (r *Receiver) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if r.isClosing() {
				return
			}
			r.log.Warn("accept failed", logctx.KVErr(err))
			continue
		}
		r.trackConn(conn)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer r.untrackConn(conn)
			defer conn.Close()
			sessionID := uuid.New().String()
			slog := r.log.With(logctx.KV("session", sessionID), logctx.KV("peer", conn.RemoteAddr().String()))
			if err := r.handleConn(conn, slog); err != nil {
				slog.Warn("session failed", logctx.KVErr(err))
			}
		}()
	}
}

func peerHost(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}
