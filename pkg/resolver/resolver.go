// Package resolver implements the Address Resolver: turning
// a configuration string into zero or more dialable socket endpoints.
// Grounded on the net.SplitHostPort/net.JoinHostPort usage
// throughout pkg/network and pkg/connmgr (HostPort() in discovery_test.go's
// fakeTransp); no ecosystem resolver library appears anywhere in the
// corpus, so this stays on net.DefaultResolver (see DESIGN.md).
package resolver

import (
	"context"
	"net"
	"strconv"
	"strings"
)

// ToHostService splits a configuration string into an optional host and
// optional service, following this bracket rule:
//
//	"[::1]:8333"  -> ("::1", "8333")
//	"example.com" -> ("example.com", "")
//	":8333"       -> (":8333", "")   (no brackets, no colon-split target)
//	""            -> ("", "") with ok=false
func ToHostService(s string) (host, service string, ok bool) {
	if s == "" {
		return "", "", false
	}
	if s[0] == '[' {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return s, "", true
		}
		host = s[1:end]
		rest := s[end+1:]
		if strings.HasPrefix(rest, ":") {
			service = rest[1:]
		}
		return host, service, true
	}
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		// A bare leading colon (":8333") has no content before it, so the
		// whole string is treated as the host.
		if idx == 0 {
			return s, "", true
		}
		return s[:idx], s[idx+1:], true
	}
	return s, "", true
}

// Resolve resolves a configuration string to socket endpoints, using
// defaultPort when no service was specified. Resolution failures are
// swallowed into an empty list: DNS/socket resolution
// is never fatal to the caller.
func Resolve(ctx context.Context, addr string, defaultPort uint16) []*net.TCPAddr {
	host, service, ok := ToHostService(addr)
	if !ok || host == "" {
		return nil
	}
	port := defaultPort
	if service != "" {
		if p, err := strconv.ParseUint(service, 10, 16); err == nil {
			port = uint16(p)
		}
	}
	if ip := net.ParseIP(host); ip != nil {
		return []*net.TCPAddr{{IP: ip, Port: int(port)}}
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil
	}
	out := make([]*net.TCPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, &net.TCPAddr{IP: ip.IP, Port: int(port)})
	}
	return out
}

// ResolveSeeds resolves a set of DNS-seed hostnames, one
// lookup per seed, merging the results.
func ResolveSeeds(ctx context.Context, seeds []string, defaultPort uint16) []*net.TCPAddr {
	var out []*net.TCPAddr
	for _, seed := range seeds {
		out = append(out, Resolve(ctx, seed, defaultPort)...)
	}
	return out
}
