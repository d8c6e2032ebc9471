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
	"github.com/stretchr/testify/require"
)

func TestAddrAllowedFiltersLinkLocal(t *testing.T) {
	assert.False(t, addrAllowed("169.254.1.1", Options{OnlyLANIPv4: true}), "link-local address must never be allowed")
}

func TestAddrAllowedLoopbackRequiresOptIn(t *testing.T) {
	assert.False(t, addrAllowed("127.0.0.1", Options{OnlyLANIPv4: true}), "loopback should be excluded by default")
	assert.True(t, addrAllowed("127.0.0.1", Options{OnlyLANIPv4: true, IncludeLoopback: true}), "loopback should be allowed when IncludeLoopback is set")
}

func TestAddrAllowedOnlyLANRejectsPublic(t *testing.T) {
	assert.False(t, addrAllowed("8.8.8.8", Options{OnlyLANIPv4: true}), "public address should be rejected under OnlyLANIPv4")
	assert.True(t, addrAllowed("8.8.8.8", Options{OnlyLANIPv4: false}), "public address should be allowed when OnlyLANIPv4 is false")
}

func TestIsSelfMatchesHostOrAddress(t *testing.T) {
	local := []string{"192.168.1.10"}
	d := Device{Host: "192.168.1.10", Port: 37373}
	assert.True(t, isSelf(d, local), "expected device with matching host to be self")

	d2 := Device{Host: "192.168.1.20", Addresses: []string{"192.168.1.10"}, Port: 37373}
	assert.True(t, isSelf(d2, local), "expected device with matching address to be self")

	d3 := Device{Host: "192.168.1.30", Port: 37373}
	assert.False(t, isSelf(d3, local), "expected unrelated device to not be self")
}

func TestUnionStringsDedups(t *testing.T) {
	got := unionStrings([]string{"a", "b"}, []string{"b", "c"})
	require.Len(t, got, 3, "expected 3 unique entries, got %v", got)
}

func TestNormalizeDeviceDropsLinkLocalAddresses(t *testing.T) {
	d := Device{Host: "192.168.1.5", Addresses: []string{"192.168.1.5", "169.254.3.3"}}
	nd, ok := normalizeDevice(d, Options{OnlyLANIPv4: true})
	require.True(t, ok, "expected device to normalize successfully")
	assert.NotContains(t, nd.Addresses, "169.254.3.3", "link-local address should have been filtered out")
}
