/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.ini")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadReceiverConfig(t *testing.T) {
	p := writeTempConfig(t, `
[Global]
Port=37373
Output-Dir=/tmp/incoming
Service-Name=desk
Pair-Code=123456
Rotate-Per-Transfer=true
Pair-TTL-Seconds=60

[TLS]
Cert-Path=/etc/local-sent/cert.pem
Key-Path=/etc/local-sent/key.pem
`)
	c, err := LoadReceiverConfig(p)
	require.NoError(t, err)
	require.Equal(t, 37373, c.Global.Port)
	require.Equal(t, "/tmp/incoming", c.Global.Output_Dir)
	require.True(t, c.Global.Rotate_Per_Transfer)
	require.Equal(t, 60, c.Global.Pair_TTL_Seconds)
	require.NotEmpty(t, c.TLS.Cert_Path, "expected TLS cert path to be set")
}

func TestLoadSenderConfig(t *testing.T) {
	p := writeTempConfig(t, `
[Global]
Host=192.168.1.50
Port=37373
Pair-Code=654321

[TLS]
Enabled=true
Trust-On-First-Use=true
`)
	c, err := LoadSenderConfig(p)
	require.NoError(t, err)
	require.Equal(t, "192.168.1.50", c.Global.Host)
	require.True(t, c.TLS.Enabled)
	require.True(t, c.TLS.Trust_On_First_Use)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadReceiverConfig("/nonexistent/path.ini")
	require.Error(t, err, "expected error for missing file")
}
