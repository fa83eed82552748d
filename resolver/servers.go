// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package resolver

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/netip"
	"strings"

	"github.com/miekg/dns"
)

// ErrNoServers signals that no usable DNS server could be determined.
var ErrNoServers = errors.New("no usable DNS server")

// resolvConf is the system resolver configuration consulted when no DNS
// servers have been configured explicitly.
var resolvConf = "/etc/resolv.conf"

// NormalizeServer returns the “host:port” form of a DNS server endpoint given
// as “ip”, “ip:port”, “[ipv6]:port”, or “host:port”. Bare addresses get the
// standard DNS port 53.
func NormalizeServer(server string) (string, error) {
	server = strings.TrimSpace(server)
	if server == "" {
		return "", errors.New("empty DNS server address")
	}
	if addr, err := netip.ParseAddr(strings.Trim(server, "[]")); err == nil {
		return net.JoinHostPort(addr.String(), "53"), nil
	}
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		return "", fmt.Errorf("invalid DNS server address %q: %w", server, err)
	}
	if host == "" || port == "" {
		return "", fmt.Errorf("invalid DNS server address %q", server)
	}
	if _, err := net.LookupPort("udp", port); err != nil {
		return "", fmt.Errorf("invalid DNS server port in %q: %w", server, err)
	}
	return net.JoinHostPort(host, port), nil
}

// systemServers returns the DNS servers from the system resolver
// configuration.
func systemServers() ([]string, error) {
	conf, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %s", ErrNoServers, resolvConf, err.Error())
	}
	port := conf.Port
	if port == "" {
		port = "53"
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, server := range conf.Servers {
		servers = append(servers, net.JoinHostPort(server, port))
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("%w: %s lists no name servers", ErrNoServers, resolvConf)
	}
	return servers, nil
}

// startIndex deterministically picks the index of the first server to query
// for the specified name.
func startIndex(name string, numServers int) int {
	if numServers <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int(h.Sum32() % uint32(numServers))
}
