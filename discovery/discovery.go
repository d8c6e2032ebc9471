/*************************************************************************
 * Copyright 2026 the local-sent authors. All rights reserved.
 * Contact: <wxl482@outlook.com>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package discovery implements dual-channel peer discovery: mDNS
// service advertisement/browsing layered with a UDP broadcast
// probe/responder fallback, merged and self-filtered into a single
// device list.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/wxl482/local-sent/wire"
)

// Device is a peer found via either discovery channel, after address
// normalization and merging.
type Device struct {
	Name      string
	Host      string
	Port      int
	Addresses []string
}

// Options controls filtering applied to browse results.
type Options struct {
	// IncludeSelf keeps devices whose host or any advertised address
	// matches one of this host's own IPv4 addresses. Default: excluded.
	IncludeSelf bool
	// IncludeLoopback keeps 127.0.0.0/8 addresses. Default: excluded.
	IncludeLoopback bool
	// OnlyLANIPv4, when true (the default the caller should pass),
	// restricts results to RFC1918 ranges.
	OnlyLANIPv4 bool
}

type probeReply struct {
	Magic string `json:"magic"`
	Name  string `json:"name"`
	Port  int    `json:"port"`
}

// Advertiser owns the mDNS registration and the UDP probe responder for
// a receiver. Stop tears both down.
type Advertiser struct {
	server   *zeroconf.Server
	udpConn  *net.UDPConn
	stopChan chan struct{}
	doneChan chan struct{}
}

// Advertise publishes an mDNS record for name on port and starts a UDP
// responder on DefaultDiscoveryPort that answers probes with this
// receiver's name and port.
func Advertise(name string, port int) (*Advertiser, error) {
	server, err := zeroconf.Register(name, wire.MDNSServiceType, "local.", port, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns advertise: %w", err)
	}

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", wire.DefaultDiscoveryPort))
	if err != nil {
		server.Shutdown()
		return nil, fmt.Errorf("udp responder bind: %w", err)
	}
	udpConn := pc.(*net.UDPConn)

	a := &Advertiser{
		server:   server,
		udpConn:  udpConn,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go a.respond(name, port)
	return a, nil
}

func (a *Advertiser) respond(name string, port int) {
	defer close(a.doneChan)
	buf := make([]byte, 512)
	for {
		select {
		case <-a.stopChan:
			return
		default:
		}
		a.udpConn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, addr, err := a.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-a.stopChan:
				return
			default:
				continue
			}
		}
		if string(buf[:n]) != wire.DiscoverMagic {
			continue
		}
		reply := probeReply{Magic: wire.DiscoverMagic, Name: name, Port: port}
		b, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		b = append(b, '\n')
		a.udpConn.WriteToUDP(b, addr)
	}
}

// Stop tears down the mDNS record and the UDP responder, with a bounded
// grace period for the responder goroutine to exit.
func (a *Advertiser) Stop() {
	a.server.Shutdown()
	close(a.stopChan)
	a.udpConn.Close()
	select {
	case <-a.doneChan:
	case <-time.After(2 * time.Second):
	}
}

// Browse runs an mDNS browse and a UDP broadcast probe in parallel for
// timeout, merges the results, normalizes and filters addresses per
// opts, and self-filters unless opts.IncludeSelf is set.
func Browse(ctx context.Context, timeout time.Duration, opts Options) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mdnsResults := make(chan Device, 16)
	udpResults := make(chan Device, 16)

	go browseMDNS(ctx, mdnsResults)
	go probeUDP(ctx, udpResults)

	merged := map[string]*Device{}
	collect := func(ch <-chan Device) {
		for d := range ch {
			key := fmt.Sprintf("%s:%d", d.Host, d.Port)
			if existing, ok := merged[key]; ok {
				existing.Addresses = unionStrings(existing.Addresses, d.Addresses)
				if existing.Name == "" {
					existing.Name = d.Name
				}
			} else {
				cp := d
				merged[key] = &cp
			}
		}
	}
	collect(mdnsResults)
	collect(udpResults)

	var local []string
	if !opts.IncludeSelf {
		var err error
		local, err = LocalIPv4Addrs()
		if err != nil {
			local = nil
		}
	}

	var out []Device
	for _, d := range merged {
		nd, ok := normalizeDevice(*d, opts)
		if !ok {
			continue
		}
		if !opts.IncludeSelf && isSelf(nd, local) {
			continue
		}
		out = append(out, nd)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Host != out[j].Host {
			return out[i].Host < out[j].Host
		}
		return out[i].Port < out[j].Port
	})
	return out, nil
}

func browseMDNS(ctx context.Context, out chan<- Device) {
	defer close(out)
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return
	}
	entries := make(chan *zeroconf.ServiceEntry, 16)
	go func() {
		for e := range entries {
			var addrs []string
			for _, ip := range e.AddrIPv4 {
				addrs = append(addrs, ip.String())
			}
			host := ""
			if len(addrs) > 0 {
				host = addrs[0]
			}
			out <- Device{Name: e.Instance, Host: host, Port: e.Port, Addresses: addrs}
		}
	}()
	if err := resolver.Browse(ctx, wire.MDNSServiceType, "local.", entries); err != nil {
		return
	}
	<-ctx.Done()
}

func probeUDP(ctx context.Context, out chan<- Device) {
	defer close(out)
	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return
	}
	conn := pc.(*net.UDPConn)
	defer conn.Close()

	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: wire.DefaultDiscoveryPort}
	if _, err := conn.WriteToUDP([]byte(wire.DiscoverMagic), broadcastAddr); err != nil {
		return
	}

	buf := make([]byte, 512)
	for {
		deadline := time.Now().Add(250 * time.Millisecond)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		conn.SetReadDeadline(deadline)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				return
			}
		}
		var reply probeReply
		if err := json.Unmarshal(buf[:n], &reply); err != nil || reply.Magic != wire.DiscoverMagic {
			continue
		}
		out <- Device{Name: reply.Name, Host: addr.IP.String(), Port: reply.Port, Addresses: []string{addr.IP.String()}}
	}
}

func normalizeDevice(d Device, opts Options) (Device, bool) {
	host, ok := NormalizeIPv4(d.Host)
	if !ok {
		return Device{}, false
	}
	var addrs []string
	seen := map[string]bool{}
	for _, a := range d.Addresses {
		na, ok := NormalizeIPv4(a)
		if !ok || seen[na] {
			continue
		}
		if !addrAllowed(na, opts) {
			continue
		}
		seen[na] = true
		addrs = append(addrs, na)
	}
	if !addrAllowed(host, opts) {
		return Device{}, false
	}
	d.Host = host
	d.Addresses = addrs
	return d, true
}

func addrAllowed(ip string, opts Options) bool {
	if IsLinkLocal(ip) {
		return false
	}
	if IsLoopback(ip) && !opts.IncludeLoopback {
		return false
	}
	if opts.OnlyLANIPv4 && !IsRFC1918(ip) && !(IsLoopback(ip) && opts.IncludeLoopback) {
		return false
	}
	return true
}

func isSelf(d Device, local []string) bool {
	for _, l := range local {
		if d.Host == l {
			return true
		}
		for _, a := range d.Addresses {
			if a == l {
				return true
			}
		}
	}
	return false
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ErrNoReceiverFound reports that a browse found no device. Browse
// itself returns an empty list and a nil error in that case; the send
// CLI's -discover mode reports this error.
var ErrNoReceiverFound = errors.New("no receiver found")
