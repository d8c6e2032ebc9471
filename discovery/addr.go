/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package discovery

import (
	"net"
	"strings"
)

// NormalizeIPv4 converts an address as it may arrive from a socket or
// an mDNS record into a plain IPv4 dotted-quad: it maps an IPv4-mapped
// IPv6 address (::ffff:a.b.c.d) down to a.b.c.d and strips any trailing
// zone suffix ("%eth0"). It fails (ok=false) for anything that is not,
// after that normalization, a valid IPv4 address.
func NormalizeIPv4(addr string) (ip string, ok bool) {
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}
	parsed := net.ParseIP(addr)
	if parsed == nil {
		return "", false
	}
	v4 := parsed.To4()
	if v4 == nil {
		return "", false
	}
	return v4.String(), true
}

// IsLoopback reports whether ip (a dotted-quad) is in 127.0.0.0/8.
func IsLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

// IsLinkLocal reports whether ip is in 169.254.0.0/16.
func IsLinkLocal(ip string) bool {
	parsed := net.ParseIP(ip).To4()
	return parsed != nil && parsed[0] == 169 && parsed[1] == 254
}

// IsRFC1918 reports whether ip (a dotted-quad) falls within one of the
// private IPv4 ranges 10/8, 172.16/12, or 192.168/16.
func IsRFC1918(ip string) bool {
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		return false
	}
	switch {
	case parsed[0] == 10:
		return true
	case parsed[0] == 172 && parsed[1] >= 16 && parsed[1] <= 31:
		return true
	case parsed[0] == 192 && parsed[1] == 168:
		return true
	}
	return false
}

// LocalIPv4Addrs enumerates this host's non-loopback IPv4 addresses, for
// use in self-filtering discovered devices.
func LocalIPv4Addrs() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, a := range addrs {
		var ipNet *net.IPNet
		switch v := a.(type) {
		case *net.IPNet:
			ipNet = v
		default:
			continue
		}
		v4 := ipNet.IP.To4()
		if v4 == nil || v4.IsLoopback() {
			continue
		}
		out = append(out, v4.String())
	}
	return out, nil
}
