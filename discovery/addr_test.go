/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIPv4(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"192.168.1.5", "192.168.1.5", true},
		{"192.168.1.5%eth0", "192.168.1.5", true},
		{"::ffff:192.168.1.5", "192.168.1.5", true},
		{"fe80::1", "", false},
		{"not-an-ip", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeIPv4(c.in)
		assert.Equal(t, c.ok, ok, "NormalizeIPv4(%q) ok", c.in)
		assert.Equal(t, c.want, got, "NormalizeIPv4(%q) value", c.in)
	}
}

func TestIsRFC1918(t *testing.T) {
	trueCases := []string{"10.0.0.1", "172.16.0.1", "172.31.255.255", "192.168.0.1"}
	for _, ip := range trueCases {
		assert.True(t, IsRFC1918(ip), "IsRFC1918(%q) should be true", ip)
	}
	falseCases := []string{"8.8.8.8", "172.32.0.1", "172.15.0.1", "127.0.0.1"}
	for _, ip := range falseCases {
		assert.False(t, IsRFC1918(ip), "IsRFC1918(%q) should be false", ip)
	}
}

func TestIsLinkLocal(t *testing.T) {
	assert.True(t, IsLinkLocal("169.254.1.1"), "expected 169.254.1.1 to be link-local")
	assert.False(t, IsLinkLocal("192.168.1.1"), "expected 192.168.1.1 to not be link-local")
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, IsLoopback("127.0.0.1"), "expected 127.0.0.1 to be loopback")
	assert.False(t, IsLoopback("10.0.0.1"), "expected 10.0.0.1 to not be loopback")
}
