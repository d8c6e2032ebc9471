/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pairing

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/dchest/safefile"
)

// ErrNoCheckpoint is returned by LoadCheckpoint when the file does not
// exist yet.
var ErrNoCheckpoint = errors.New("pairing: no checkpoint available")

type checkpointData struct {
	Current          string    `json:"current"`
	Previous         string    `json:"previous"`
	PreviousValidTil time.Time `json:"previous_valid_until"`
}

// Checkpoint atomically persists s's current/previous code pair to path
// so a receiver restart does not silently fall back to a fixed code
// while a sender mid-batch still holds a rotated one. Writes go through
// safefile so a crash mid-write never leaves a truncated checkpoint.
func (s *State) Checkpoint(path string) (err error) {
	snap := s.Snapshot()
	data := checkpointData{
		Current:          snap.Current,
		Previous:         snap.Previous,
		PreviousValidTil: snap.PreviousValidTil,
	}

	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	var fout *safefile.File
	if fout, err = safefile.Create(path, 0o600); err != nil {
		return err
	}
	name := fout.Name()
	enc := json.NewEncoder(fout)
	enc.SetIndent("", "  ")
	if err = enc.Encode(&data); err != nil {
		fout.File.Close()
		os.Remove(name)
		return err
	}
	if err = fout.Commit(); err != nil {
		fout.File.Close()
		os.Remove(name)
		return err
	}
	return nil
}

// LoadCheckpoint reads a checkpoint previously written by Checkpoint and
// applies it to s under its lock. Rotation configuration (cfg) is left
// untouched; only the current/previous code pair is restored.
func (s *State) LoadCheckpoint(path string) error {
	fin, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNoCheckpoint
		}
		return err
	}
	defer fin.Close()

	var data checkpointData
	if err := json.NewDecoder(fin).Decode(&data); err != nil {
		return err
	}

	s.mtx.Lock()
	s.current = data.Current
	s.previous = data.Previous
	s.validTil = data.PreviousValidTil
	s.mtx.Unlock()
	return nil
}
