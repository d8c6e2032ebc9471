/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command local-sent-send walks one or more file or directory paths
// into transfer entries and sends them to a receiver over the wire
// protocol, or lists receivers on the local network with -discover.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wxl482/local-sent/config"
	"github.com/wxl482/local-sent/discovery"
	"github.com/wxl482/local-sent/internal/logctx"
	"github.com/wxl482/local-sent/sender"
	"github.com/wxl482/local-sent/transfer"
	"github.com/wxl482/local-sent/wire"
)

func main() {
	var (
		configPath     = flag.String("config", "", "path to an INI sender config file")
		host           = flag.String("host", "", "receiver host or IP")
		port           = flag.Int("port", 0, "receiver port (default 37373)")
		pairCode       = flag.String("pair-code", "", "pair code to present in the header")
		tlsEnabled     = flag.Bool("tls", false, "connect over TLS")
		tlsCA          = flag.String("tls-ca", "", "CA certificate to validate the receiver against")
		tlsInsecure    = flag.Bool("tls-insecure", false, "skip TLS chain validation entirely (self-signed testing only)")
		tlsFingerprint = flag.String("tls-fingerprint", "", "expected SHA-256 fingerprint of the receiver's certificate")
		tlsTOFU        = flag.Bool("tls-tofu", false, "trust the receiver's certificate on first use and pin it thereafter")
		knownHosts     = flag.String("known-hosts", "", "path to the TOFU known-hosts file (default ~/.local-sent/known_hosts.json)")
		logLevel       = flag.String("log-level", "info", "minimum log level: debug, info, warn, error")
		discover       = flag.Bool("discover", false, "list receivers on the local network and exit")
		discoverMS     = flag.Int("discover-timeout-ms", 3000, "how long to browse for receivers")
	)
	flag.Parse()

	if *discover {
		devices, err := discovery.Browse(context.Background(), time.Duration(*discoverMS)*time.Millisecond, discovery.Options{OnlyLANIPv4: true})
		if err != nil {
			fatalf("discovery failed: %v", err)
		}
		if len(devices) == 0 {
			fatalf("%v", discovery.ErrNoReceiverFound)
		}
		for _, d := range devices {
			fmt.Printf("%s\t%s:%d\t%s\n", d.Name, d.Host, d.Port, strings.Join(d.Addresses, ","))
		}
		return
	}

	paths := flag.Args()

	req := sender.Request{
		Port: wire.DefaultTransferPort,
	}
	if *configPath != "" {
		fileCfg, err := config.LoadSenderConfig(*configPath)
		if err != nil {
			fatalf("failed to load config: %v", err)
		}
		applySenderFileConfig(&req, fileCfg)
	}
	if *host != "" {
		req.Host = *host
	}
	if *port != 0 {
		req.Port = *port
	}
	if *pairCode != "" {
		req.PairCode = *pairCode
	}
	if *tlsEnabled || (req.TLS != nil && req.TLS.Enabled) {
		tlsCfg := req.TLS
		if tlsCfg == nil {
			tlsCfg = &sender.TLSConfig{}
		}
		tlsCfg.Enabled = true
		if *tlsCA != "" {
			tlsCfg.CAPath = *tlsCA
		}
		if *tlsInsecure {
			tlsCfg.Insecure = true
		}
		if *tlsFingerprint != "" {
			tlsCfg.Fingerprint = *tlsFingerprint
		}
		if *tlsTOFU {
			tlsCfg.TrustOnFirstUse = true
		}
		if *knownHosts != "" {
			tlsCfg.KnownHostsPath = *knownHosts
		}
		req.TLS = tlsCfg
	}
	if req.Host == "" {
		fatalf("a receiver host is required (-host or config Global.Host)")
	}
	if len(paths) == 0 {
		fatalf("at least one file or directory path is required")
	}

	log := logctx.New(os.Stderr, parseLevel(*logLevel), true)

	var entries []transfer.Entry
	for _, p := range paths {
		es, err := transfer.BuildTransferEntries(p)
		if err != nil {
			fatalf("failed to walk %s: %v", p, err)
		}
		entries = append(entries, es...)
	}
	req.Entries = entries

	result, err := sender.SendEntries(req, log)
	if err != nil {
		log.Error("send failed", logctx.KVErr(err))
		fatalf("[error] %v", err)
	}
	log.Info("done", logctx.KV("files", result.FileCount), logctx.KV("bytes", result.TotalBytes), logctx.KV("resumed", result.ResumedBytes))
	fmt.Printf("[send] done: files=%d bytes=%d resumed=%d\n", result.FileCount, result.TotalBytes, result.ResumedBytes)
}

func applySenderFileConfig(req *sender.Request, fileCfg *config.SenderConfig) {
	req.Host = fileCfg.Global.Host
	if fileCfg.Global.Port != 0 {
		req.Port = fileCfg.Global.Port
	}
	req.PairCode = fileCfg.Global.Pair_Code
	if fileCfg.TLS.Enabled {
		req.TLS = &sender.TLSConfig{
			Enabled:         fileCfg.TLS.Enabled,
			CAPath:          fileCfg.TLS.CA_Path,
			Insecure:        fileCfg.TLS.Insecure,
			Fingerprint:     fileCfg.TLS.Fingerprint,
			TrustOnFirstUse: fileCfg.TLS.Trust_On_First_Use,
			KnownHostsPath:  fileCfg.TLS.Known_Hosts_Path,
		}
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
