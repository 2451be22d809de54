// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxyRanges may set X-Forwarded-For and X-Real-IP. Loopback and private
// ranges cover a reverse proxy on the same host or LAN.
var proxyRanges = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
}

func fromProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range proxyRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetClientIP returns the address rate limits and logs are keyed on.
// Forwarding headers count only when the peer is a proxy and the header
// holds a valid address.
func GetClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !fromProxy(addr) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if a, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
			return a.String()
		}
	}
	return peer
}
