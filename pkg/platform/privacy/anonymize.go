// Package privacy reduces client addresses to network prefixes before they reach logs.
package privacy

import (
	"net"
	"net/netip"
)

// AnonymizeIP masks an IP address to its /24 (IPv4) or /48 (IPv6) network.
// Returns "unknown" for empty input and "invalid" for unparseable input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// AnonymizeRemoteAddr is AnonymizeIP for host:port values such as http.Request.RemoteAddr.
func AnonymizeRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return AnonymizeIP(remoteAddr)
	}
	return AnonymizeIP(host)
}
