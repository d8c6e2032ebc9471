/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command local-sent-recv starts a receiver that accepts inbound
// transfers over the length-framed wire protocol, advertising
// itself via mDNS and a UDP broadcast responder.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wxl482/local-sent/config"
	"github.com/wxl482/local-sent/internal/logctx"
	"github.com/wxl482/local-sent/pairing"
	"github.com/wxl482/local-sent/receiver"
	"github.com/wxl482/local-sent/wire"
)

func main() {
	var (
		configPath        = flag.String("config", "", "path to an INI receiver config file")
		port              = flag.Int("port", 0, "TCP/TLS port to listen on (default 37373)")
		outDir            = flag.String("out", "", "output directory for received files")
		name              = flag.String("name", "", "mDNS service name to advertise")
		pairCode          = flag.String("pair-code", "", "required pair code (empty accepts any header)")
		rotatePerTransfer = flag.Bool("rotate-per-transfer", false, "rotate the pair code after every acknowledged transfer")
		pairTTL           = flag.Int("pair-ttl", 0, "rotate the pair code every N seconds while idle (0 disables)")
		pairCheckpoint    = flag.String("pair-checkpoint", "", "persist the current/previous pair code here across restarts")
		tlsCert           = flag.String("tls-cert", "", "TLS certificate path (enables TLS when set with -tls-key)")
		tlsKey            = flag.String("tls-key", "", "TLS private key path")
		logLevel          = flag.String("log-level", "info", "minimum log level: debug, info, warn, error")
	)
	flag.Parse()

	cfg := receiver.Config{
		Port:              wire.DefaultTransferPort,
		ServiceName:       "local-sent",
		RotatePerTransfer: *rotatePerTransfer,
	}
	if *configPath != "" {
		fileCfg, err := config.LoadReceiverConfig(*configPath)
		if err != nil {
			fatalf("failed to load config: %v", err)
		}
		applyReceiverFileConfig(&cfg, fileCfg)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if *name != "" {
		cfg.ServiceName = *name
	}
	if *pairCode != "" {
		cfg.PairCode = *pairCode
	}
	if *pairTTL != 0 {
		cfg.PairTTLSeconds = *pairTTL
	}
	if *rotatePerTransfer {
		cfg.RotatePerTransfer = true
	}
	if *pairCheckpoint != "" {
		cfg.PairCheckpointPath = *pairCheckpoint
	}
	if *tlsCert != "" || *tlsKey != "" {
		cfg.TLS = &receiver.TLSConfig{CertPath: *tlsCert, KeyPath: *tlsKey}
	}
	if cfg.OutputDir == "" {
		fatalf("an output directory is required (-out or config Output_Dir)")
	}
	if cfg.RotatePerTransfer || cfg.PairTTLSeconds > 0 {
		cfg.GeneratePairCode = pairing.DefaultGenerator
	}

	log := logctx.New(os.Stderr, parseLevel(*logLevel), true)
	cfg.OnPairCodeChange = func(code string) {
		log.Info("pair code rotated")
	}

	r, err := receiver.Start(cfg, log)
	if err != nil {
		fatalf("failed to start receiver: %v", err)
	}
	log.Info("receiver started", logctx.KV("port", cfg.Port), logctx.KV("output_dir", cfg.OutputDir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	r.Stop()
}

func applyReceiverFileConfig(cfg *receiver.Config, fileCfg *config.ReceiverConfig) {
	if fileCfg.Global.Port != 0 {
		cfg.Port = fileCfg.Global.Port
	}
	cfg.OutputDir = fileCfg.Global.Output_Dir
	cfg.ServiceName = fileCfg.Global.Service_Name
	cfg.PairCode = fileCfg.Global.Pair_Code
	cfg.RotatePerTransfer = fileCfg.Global.Rotate_Per_Transfer
	cfg.PairTTLSeconds = fileCfg.Global.Pair_TTL_Seconds
	cfg.PairCheckpointPath = fileCfg.Global.Pair_Checkpoint_Path
	if fileCfg.TLS.Cert_Path != "" || fileCfg.TLS.Key_Path != "" {
		cfg.TLS = &receiver.TLSConfig{CertPath: fileCfg.TLS.Cert_Path, KeyPath: fileCfg.TLS.Key_Path}
	}
}

func parseLevel(s string) logctx.Level {
	switch s {
	case "debug":
		return logctx.DEBUG
	case "warn":
		return logctx.WARN
	case "error":
		return logctx.ERROR
	default:
		return logctx.INFO
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
