/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config loads receiver and sender configuration from INI-style
// files via gcfg, the config-parsing library this repository has always
// used for its own component configs. Every field is also settable from
// flags by the CLI entry points, which layer on top of (or replace) a
// config file.
package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/gravwell/gcfg"
)

const maxConfigSize int64 = 4 * 1024 * 1024

var (
	ErrConfigFileTooLarge = errors.New("config file is too large")
	ErrFailedFileRead     = errors.New("failed to read entire config file")
)

// ReceiverConfig is the INI-file shape of the start_receiver surface
// described in the programmatic interface: a Global section plus an
// optional TLS section.
type ReceiverConfig struct {
	Global struct {
		Port                 int
		Output_Dir           string
		Service_Name         string
		Pair_Code            string
		Rotate_Per_Transfer  bool
		Pair_TTL_Seconds     int
		Pair_Checkpoint_Path string
		Log_Level            string
	}
	TLS struct {
		Cert_Path string
		Key_Path  string
	}
}

// SenderConfig is the INI-file shape of the send_entries surface.
type SenderConfig struct {
	Global struct {
		Host      string
		Port      int
		Pair_Code string
		Log_Level string
	}
	TLS struct {
		Enabled            bool
		CA_Path            string
		Insecure           bool
		Fingerprint        string
		Trust_On_First_Use bool
		Known_Hosts_Path   string
	}
}

// LoadReceiverConfig parses path into a ReceiverConfig. Fields the file
// omits keep their zero values: Port 0 leaves the choice of port to the
// caller, and Pair_TTL_Seconds 0 means no TTL rotation.
func LoadReceiverConfig(path string) (*ReceiverConfig, error) {
	var c ReceiverConfig
	if err := loadInto(&c, path); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadSenderConfig parses path into a SenderConfig.
func LoadSenderConfig(path string) (*SenderConfig, error) {
	var c SenderConfig
	if err := loadInto(&c, path); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadInto(v interface{}, path string) error {
	fin, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return err
	}
	if fi.Size() > maxConfigSize {
		return ErrConfigFileTooLarge
	}

	bb := bytes.NewBuffer(nil)
	n, err := io.Copy(bb, fin)
	if err != nil {
		return err
	}
	if n != fi.Size() {
		return ErrFailedFileRead
	}
	return gcfg.ReadStringInto(v, bb.String())
}
