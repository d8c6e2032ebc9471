/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package tlstrust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
)

// DefaultKnownHostsPath returns "<home>/.local-sent/known_hosts.json".
func DefaultKnownHostsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local-sent", "known_hosts.json"), nil
}

// KnownHosts is a persisted host:port -> fingerprint map used by TOFU
// mode. CheckOrTrust's read-modify-write of the backing file is guarded
// by an on-disk advisory lock (github.com/gofrs/flock); Lookup reads
// without taking it. The lock is there so that, within the
// documented precondition that a known-hosts path is not shared across
// concurrent sender batches from different processes, a stray second
// writer cannot corrupt the file.
type KnownHosts struct {
	path string
}

// Open prepares a KnownHosts backed by the file at path. The file itself
// need not exist yet; it is created by the first CheckOrTrust call that
// records an entry.
func Open(path string) *KnownHosts {
	return &KnownHosts{path: path}
}

// lock acquires the on-disk advisory lock guarding the known-hosts file,
// blocking until it is available.
func (k *KnownHosts) lock() (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return nil, err
	}
	fl := flock.New(k.path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return fl, nil
}

// load reads the current contents of the known-hosts file. A missing
// file is treated as an empty map.
func (k *KnownHosts) load() (map[string]string, error) {
	b, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return map[string]string{}, nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// save writes m back to the known-hosts file, pretty-printed with keys
// sorted and a trailing newline, atomically via renameio.
func (k *KnownHosts) save(m map[string]string) error {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ordered := make(map[string]string, len(m))
	for _, key := range keys {
		ordered[key] = m[key]
	}
	// `ordered` is a plain Go map and carries no order of its own; the
	// keys come out sorted because encoding/json writes map keys in
	// lexicographic order.
	b, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return err
	}
	return renameio.WriteFile(k.path, b, 0o600)
}

// Lookup returns the pinned fingerprint for hostport, if any.
func (k *KnownHosts) Lookup(hostport string) (fingerprint string, ok bool, err error) {
	m, err := k.load()
	if err != nil {
		return "", false, err
	}
	fp, ok := m[hostport]
	return fp, ok, nil
}

// CheckOrTrust implements TOFU admission for a single endpoint: if no
// entry exists yet for hostport, it is recorded and nil is returned
// (with firstUse=true); if an entry exists and matches, nil is returned;
// otherwise ErrFingerprintChanged is returned.
func (k *KnownHosts) CheckOrTrust(hostport, fingerprint string) (firstUse bool, err error) {
	fl, ferr := k.lock()
	if ferr != nil {
		return false, ferr
	}
	defer fl.Unlock()

	m, err := k.load()
	if err != nil {
		return false, err
	}
	if existing, ok := m[hostport]; ok {
		if !equalFold64(existing, fingerprint) {
			return false, fmt.Errorf("%w: %s", ErrFingerprintChanged, hostport)
		}
		return false, nil
	}
	m[hostport] = fingerprint
	if err := k.save(m); err != nil {
		return false, err
	}
	return true, nil
}

